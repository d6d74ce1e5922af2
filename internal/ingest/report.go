package ingest

import (
	"fmt"
	"strings"
	"time"
)

// DefaultErrorSampleSize caps the samples embedded in a report; the full
// counts are always preserved alongside.
const DefaultErrorSampleSize = 10

// ImportReport is the terminal output of one pipeline invocation.
type ImportReport struct {
	ImportBatchID     string `json:"import_batch_id"`
	RowsRead          int    `json:"rows_read"`
	ValidRows         int    `json:"valid_rows"`
	DuplicatesRemoved int    `json:"duplicates_removed"`
	RecordsWritten    int    `json:"records_written"`

	GeocodeAttempted int `json:"geocode_attempted"`
	GeocodeSucceeded int `json:"geocode_succeeded"`

	ErrorTotal  int        `json:"error_total"`
	ErrorSample []RowError `json:"error_sample,omitempty"`

	DuplicateTotal  int      `json:"duplicate_total"`
	DuplicateSample []string `json:"duplicate_sample,omitempty"`

	WriteErrors []ChunkError `json:"write_errors,omitempty"`

	CompletedAt time.Time `json:"completed_at"`
}

// SchemaError rejects an import whose header lacks the mandatory columns.
// This is the only failure that aborts before per-row processing, because
// without these columns no record can be keyed.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// NoValidRecordsError means the header was acceptable but not a single
// row survived normalization. It carries the full error sample so the
// caller can report every rejection.
type NoValidRecordsError struct {
	ImportBatchID string     `json:"import_batch_id"`
	RowsRead      int        `json:"rows_read"`
	Errors        []RowError `json:"errors"`
}

func (e *NoValidRecordsError) Error() string {
	return fmt.Sprintf("no valid records in %d rows", e.RowsRead)
}

// sampleRowErrors truncates to size, preserving the originals.
func sampleRowErrors(errs []RowError, size int) []RowError {
	if len(errs) <= size {
		return errs
	}
	return errs[:size]
}

func sampleStrings(vals []string, size int) []string {
	if len(vals) <= size {
		return vals
	}
	return vals[:size]
}
