package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/leadmap/listing-ingest/internal/ingest"
)

// ImportJob is one row of import history.
type ImportJob struct {
	ImportBatchID     string    `json:"import_batch_id"`
	OwnerID           string    `json:"owner_id"`
	Filename          string    `json:"filename"`
	SourceTag         string    `json:"source_tag"`
	RowsRead          int       `json:"rows_read"`
	ValidRows         int       `json:"valid_rows"`
	DuplicatesRemoved int       `json:"duplicates_removed"`
	RecordsWritten    int       `json:"records_written"`
	ErrorCount        int       `json:"error_count"`
	CompletedAt       time.Time `json:"completed_at"`
}

// RecordImportJob persists one completed import's counters. History is
// best-effort bookkeeping; callers may log and ignore a failure here.
func (r *ListingRepo) RecordImportJob(ctx context.Context, ownerID, filename, sourceTag string, rep *ingest.ImportReport) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listing_import_jobs (
			import_batch_id, owner_id, filename, source_tag, rows_read, valid_rows,
			duplicates_removed, records_written, error_count, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rep.ImportBatchID, ownerID, filename, sourceTag, rep.RowsRead, rep.ValidRows,
		rep.DuplicatesRemoved, rep.RecordsWritten, rep.ErrorTotal, rep.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("record import job: %w", err)
	}
	return nil
}

// ListImportJobs returns the owner's most recent imports, newest first.
func (r *ListingRepo) ListImportJobs(ctx context.Context, ownerID string, limit int) ([]ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT import_batch_id, owner_id, filename, COALESCE(source_tag, ''),
		       rows_read, valid_rows, duplicates_removed, records_written,
		       error_count, completed_at
		FROM listing_import_jobs
		WHERE owner_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ImportJob
	for rows.Next() {
		var j ImportJob
		if err := rows.Scan(
			&j.ImportBatchID, &j.OwnerID, &j.Filename, &j.SourceTag,
			&j.RowsRead, &j.ValidRows, &j.DuplicatesRemoved, &j.RecordsWritten,
			&j.ErrorCount, &j.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
