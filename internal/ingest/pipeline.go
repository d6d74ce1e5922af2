package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
)

// DefaultSourceTag is stamped on records when the caller supplies none.
const DefaultSourceTag = "csv-import"

// Options are the pipeline's tuning knobs. Zero values select defaults.
type Options struct {
	GeocodeBatchSize int
	WriteChunkSize   int
	ErrorSampleSize  int
	// MaxRows rejects files beyond this many data rows; 0 means unlimited.
	MaxRows          int
	DefaultSourceTag string
}

// Pipeline runs the full import: decode, schema check, per-row
// normalization, intra-batch dedup, geocoding enrichment and chunked
// idempotent writes. One Pipeline is safe for concurrent use; every Run
// owns its records and batch id.
type Pipeline struct {
	store ListingStore
	geo   Geocoder // nil disables enrichment
	opts  Options
}

func New(store ListingStore, geo Geocoder, opts Options) *Pipeline {
	if opts.ErrorSampleSize <= 0 {
		opts.ErrorSampleSize = DefaultErrorSampleSize
	}
	if opts.DefaultSourceTag == "" {
		opts.DefaultSourceTag = DefaultSourceTag
	}
	return &Pipeline{store: store, geo: geo, opts: opts}
}

// Run ingests one submission for ownerID. Fatal conditions (empty or
// undecodable input, missing mandatory columns, zero surviving records)
// return a typed error; everything else is folded into the report.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, ownerID, sourceTag string) (*ImportReport, error) {
	header, rows, rowErrs, err := DecodeRows(r)
	if err != nil {
		return nil, err
	}

	if p.opts.MaxRows > 0 && len(rows)+len(rowErrs) > p.opts.MaxRows {
		return nil, fmt.Errorf("file has %d rows, limit is %d", len(rows)+len(rowErrs), p.opts.MaxRows)
	}

	mapping := MapColumns(header)
	if missing := mapping.MissingRequired(); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	if sourceTag == "" {
		sourceTag = p.opts.DefaultSourceTag
	}
	prov := Provenance{
		BatchID:   uuid.New().String(),
		OwnerID:   ownerID,
		SourceTag: sourceTag,
		Timestamp: time.Now().UTC(),
	}

	var candidates []*CandidateRecord
	for _, row := range rows {
		rec, rowErr := NormalizeRow(row, mapping, prov)
		if rowErr != nil {
			rowErrs = append(rowErrs, *rowErr)
			continue
		}
		candidates = append(candidates, rec)
	}

	survivors, duplicates := Dedupe(candidates)

	// rows with decode errors count toward rowsRead alongside decoded rows
	totalRead := len(candidates) + len(rowErrs)

	if len(survivors) == 0 {
		return nil, &NoValidRecordsError{
			ImportBatchID: prov.BatchID,
			RowsRead:      totalRead,
			Errors:        rowErrs,
		}
	}

	stats := EnrichStats{}
	if p.geo != nil {
		enricher := NewEnricher(p.geo, p.opts.GeocodeBatchSize)
		stats = enricher.Enrich(ctx, survivors)
	}

	writer := NewBatchWriter(p.store, p.opts.WriteChunkSize)
	writeResult := writer.Write(ctx, survivors)

	report := &ImportReport{
		ImportBatchID:     prov.BatchID,
		RowsRead:          totalRead,
		ValidRows:         len(candidates),
		DuplicatesRemoved: len(duplicates),
		RecordsWritten:    writeResult.Written,
		GeocodeAttempted:  stats.Attempted,
		GeocodeSucceeded:  stats.Succeeded,
		ErrorTotal:        len(rowErrs),
		ErrorSample:       sampleRowErrors(rowErrs, p.opts.ErrorSampleSize),
		DuplicateTotal:    len(duplicates),
		DuplicateSample:   sampleStrings(duplicates, p.opts.ErrorSampleSize),
		WriteErrors:       writeResult.Errors,
		CompletedAt:       time.Now().UTC(),
	}

	log.Printf("[ingest] batch %s: read=%d valid=%d dupes=%d written=%d errors=%d geocoded=%d/%d",
		report.ImportBatchID, report.RowsRead, report.ValidRows, report.DuplicatesRemoved,
		report.RecordsWritten, report.ErrorTotal, report.GeocodeSucceeded, report.GeocodeAttempted)

	return report, nil
}
