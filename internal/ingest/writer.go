package ingest

import (
	"context"
	"errors"
	"log"
)

var (
	// ErrDestinationNotConfigured means the listings table does not exist.
	// Storage implementations map their driver's missing-relation error to
	// this sentinel so the report can carry remediation text.
	ErrDestinationNotConfigured = errors.New("listings destination table does not exist")

	// ErrPermissionDenied means the database role was refused write access.
	ErrPermissionDenied = errors.New("write access to listings destination denied")
)

// ListingStore is the storage collaborator contract: one idempotent
// insert-or-update call per chunk, keyed on the natural key, returning the
// number of rows inserted or updated.
type ListingStore interface {
	UpsertBatch(ctx context.Context, records []*CandidateRecord) (int, error)
}

// DefaultWriteChunkSize bounds per-call payload size and transaction scope.
const DefaultWriteChunkSize = 100

// Chunk error kinds, user-visible in the import report.
const (
	WriteErrDestinationNotConfigured = "destination_not_configured"
	WriteErrPermissionDenied         = "permission_denied"
	WriteErrFailed                   = "write_failed"
)

// ChunkError records the outcome of one failed storage chunk.
type ChunkError struct {
	Kind    string `json:"kind"`
	Records int    `json:"records"`
	Message string `json:"message"`
}

// WriteResult aggregates per-chunk outcomes.
type WriteResult struct {
	Written int
	Errors  []ChunkError
}

// BatchWriter persists records through sequential chunked upserts. A
// failed chunk is recorded against its records and the remaining chunks
// still run, except when the destination itself is missing: that applies
// to the whole table, so later chunks are not attempted.
type BatchWriter struct {
	store     ListingStore
	chunkSize int
}

func NewBatchWriter(store ListingStore, chunkSize int) *BatchWriter {
	if chunkSize <= 0 {
		chunkSize = DefaultWriteChunkSize
	}
	return &BatchWriter{store: store, chunkSize: chunkSize}
}

func (w *BatchWriter) Write(ctx context.Context, records []*CandidateRecord) WriteResult {
	var result WriteResult

	for start := 0; start < len(records); start += w.chunkSize {
		end := start + w.chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		n, err := w.store.UpsertBatch(ctx, chunk)
		if err == nil {
			result.Written += n
			continue
		}

		switch {
		case errors.Is(err, ErrDestinationNotConfigured):
			log.Printf("[ingest] destination table missing, aborting remaining chunks: %v", err)
			result.Errors = append(result.Errors, ChunkError{
				Kind:    WriteErrDestinationNotConfigured,
				Records: len(records) - start,
				Message: "listings table does not exist — run the migrations (cmd/migrate) before importing",
			})
			return result
		case errors.Is(err, ErrPermissionDenied):
			result.Errors = append(result.Errors, ChunkError{
				Kind:    WriteErrPermissionDenied,
				Records: len(chunk),
				Message: "database role may not write to the listings table — grant INSERT/UPDATE and retry",
			})
		default:
			result.Errors = append(result.Errors, ChunkError{
				Kind:    WriteErrFailed,
				Records: len(chunk),
				Message: err.Error(),
			})
		}
		log.Printf("[ingest] chunk %d-%d write failed: %v", start, end, err)
	}

	return result
}
