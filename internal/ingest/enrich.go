package ingest

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// Geocoder resolves a postal address to coordinates. Implementations must
// return nil on any failure (no match, quota, network) rather than an
// error; coordinates are optional and a failed lookup never fails an
// import.
type Geocoder interface {
	Lookup(ctx context.Context, address string) *Coordinates
}

// DefaultGeocodeBatchSize caps in-flight lookups against the provider.
const DefaultGeocodeBatchSize = 50

// EnrichStats reports lookup outcomes for the import report.
type EnrichStats struct {
	Attempted int
	Succeeded int
}

// Enricher fills missing coordinates by geocoding derived addresses in
// fixed-size batches. Within a batch all lookups run concurrently and
// every outcome is collected before the next batch starts, which bounds
// pressure on the provider's rate limit.
type Enricher struct {
	geo       Geocoder
	batchSize int
}

func NewEnricher(geo Geocoder, batchSize int) *Enricher {
	if batchSize <= 0 {
		batchSize = DefaultGeocodeBatchSize
	}
	return &Enricher{geo: geo, batchSize: batchSize}
}

// Enrich mutates eligible records in place. Records with coordinates
// already set, or with no derivable address, are skipped. A cancelled
// context stops releasing new batches; lookups already in flight settle
// and their results are kept.
func (e *Enricher) Enrich(ctx context.Context, records []*CandidateRecord) EnrichStats {
	if e.geo == nil {
		return EnrichStats{}
	}

	var eligible []*CandidateRecord
	for _, rec := range records {
		if rec.NeedsGeocoding() {
			eligible = append(eligible, rec)
		}
	}
	if len(eligible) == 0 {
		return EnrichStats{}
	}

	var succeeded int64
	attempted := 0

	for start := 0; start < len(eligible); start += e.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + e.batchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		batch := eligible[start:end]
		attempted += len(batch)

		var wg sync.WaitGroup
		for _, rec := range batch {
			wg.Add(1)
			go func(rec *CandidateRecord) {
				defer wg.Done()
				if coords := e.geo.Lookup(ctx, *rec.Address); coords != nil {
					rec.Coordinates = coords
					atomic.AddInt64(&succeeded, 1)
				}
			}(rec)
		}
		wg.Wait()
	}

	stats := EnrichStats{Attempted: attempted, Succeeded: int(succeeded)}
	if stats.Attempted > stats.Succeeded {
		log.Printf("[ingest] geocoding: %d/%d lookups resolved", stats.Succeeded, stats.Attempted)
	}
	return stats
}
