package ingest

import (
	"context"
	"sync"
	"testing"
)

// fakeGeocoder resolves addresses from a fixed table and counts lookups.
type fakeGeocoder struct {
	mu      sync.Mutex
	known   map[string]Coordinates
	lookups int
}

func (f *fakeGeocoder) Lookup(ctx context.Context, address string) *Coordinates {
	f.mu.Lock()
	f.lookups++
	f.mu.Unlock()
	if c, ok := f.known[address]; ok {
		return &c
	}
	return nil
}

func addrRecord(key, addr string) *CandidateRecord {
	rec := &CandidateRecord{NaturalKey: key}
	if addr != "" {
		rec.Address = &addr
	}
	return rec
}

func TestEnrichFillsMissingCoordinates(t *testing.T) {
	geo := &fakeGeocoder{known: map[string]Coordinates{
		"11 Elm St, Tupelo, MS": {Lat: 34.25, Lng: -88.70},
	}}

	withCoords := addrRecord("k1", "11 Elm St, Tupelo, MS")
	withCoords.Coordinates = &Coordinates{Lat: 1, Lng: 2}

	records := []*CandidateRecord{
		withCoords,
		addrRecord("k2", "11 Elm St, Tupelo, MS"),
		addrRecord("k3", "nowhere"),
		addrRecord("k4", ""), // no derivable address
	}

	stats := NewEnricher(geo, 10).Enrich(context.Background(), records)

	if stats.Attempted != 2 || stats.Succeeded != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if geo.lookups != 2 {
		t.Errorf("lookups = %d, records with coordinates or no address must be skipped", geo.lookups)
	}
	// Pre-existing coordinates untouched
	if withCoords.Coordinates.Lat != 1 {
		t.Error("existing coordinates overwritten")
	}
	if records[1].Coordinates == nil || records[1].Coordinates.Lat != 34.25 {
		t.Errorf("k2 not enriched: %v", records[1].Coordinates)
	}
	if records[2].Coordinates != nil {
		t.Error("failed lookup must leave coordinates nil")
	}
}

func TestEnrichBatching(t *testing.T) {
	geo := &fakeGeocoder{known: map[string]Coordinates{}}

	var records []*CandidateRecord
	for i := 0; i < 7; i++ {
		records = append(records, addrRecord("k", "some address"))
	}

	stats := NewEnricher(geo, 3).Enrich(context.Background(), records)
	if stats.Attempted != 7 {
		t.Errorf("attempted = %d", stats.Attempted)
	}
	if geo.lookups != 7 {
		t.Errorf("lookups = %d", geo.lookups)
	}
}

func TestEnrichCancelledContext(t *testing.T) {
	geo := &fakeGeocoder{known: map[string]Coordinates{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []*CandidateRecord{addrRecord("k1", "a"), addrRecord("k2", "b")}
	stats := NewEnricher(geo, 1).Enrich(ctx, records)

	if stats.Attempted != 0 || geo.lookups != 0 {
		t.Errorf("cancelled context should release no batches: %+v, lookups=%d", stats, geo.lookups)
	}
}

func TestEnrichNilGeocoder(t *testing.T) {
	e := &Enricher{geo: nil, batchSize: 10}
	stats := e.Enrich(context.Background(), []*CandidateRecord{addrRecord("k", "a")})
	if stats.Attempted != 0 {
		t.Errorf("stats = %+v", stats)
	}
}
