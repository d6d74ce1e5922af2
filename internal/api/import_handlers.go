package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leadmap/listing-ingest/internal/ingest"
	"github.com/leadmap/listing-ingest/internal/repository/postgres"
)

// =============================================================================
// LISTING IMPORT HANDLERS
// =============================================================================
// HTTP handlers for the bulk listing import API. Supports:
// - Field mapping reference (which column names are recognized)
// - Header validation before committing to an upload
// - Direct synchronous imports (multipart file or inline CSV content)
// - Imports pulled from the scraper drop bucket on S3
// - Import job history

// ImportRunner runs one import submission end to end.
type ImportRunner interface {
	Run(ctx context.Context, r io.Reader, ownerID, sourceTag string) (*ingest.ImportReport, error)
}

// ObjectFetcher streams a stored object, used for S3-sourced imports.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// JobStore persists and lists import job history.
type JobStore interface {
	RecordImportJob(ctx context.Context, ownerID, filename, sourceTag string, rep *ingest.ImportReport) error
	ListImportJobs(ctx context.Context, ownerID string, limit int) ([]postgres.ImportJob, error)
}

// ImportHandlers provides HTTP handlers for listing imports.
type ImportHandlers struct {
	pipeline ImportRunner
	jobs     JobStore      // nil disables job history
	fetcher  ObjectFetcher // nil disables S3-sourced imports
}

// NewImportHandlers creates a new handler instance. jobs and fetcher
// may be nil; the corresponding endpoints report the feature as
// unavailable.
func NewImportHandlers(pipeline ImportRunner, jobs JobStore, fetcher ObjectFetcher) *ImportHandlers {
	return &ImportHandlers{
		pipeline: pipeline,
		jobs:     jobs,
		fetcher:  fetcher,
	}
}

// RegisterRoutes registers the listing import routes.
func (h *ImportHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/listings", func(r chi.Router) {
		// Field mapping reference
		r.Get("/import/fields", h.HandleGetFields)

		// Header validation (no writes)
		r.Post("/import/validate", h.HandleValidateHeaders)

		// Synchronous import
		r.Post("/import", h.HandleImport)

		// Import from the scraper drop bucket
		r.Post("/import/s3", h.HandleImportFromS3)

		// Job history
		r.Get("/import/jobs", h.HandleListJobs)
	})
}

// =============================================================================
// FIELD MAPPING ENDPOINTS
// =============================================================================

// HandleGetFields returns the canonical fields and the column aliases
// that map to each of them.
// GET /api/listings/import/fields
func (h *ImportHandlers) HandleGetFields(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fields":          ingest.RecognizedColumns(),
		"required_fields": ingest.RequiredFields(),
	})
}

// =============================================================================
// HEADER VALIDATION ENDPOINT
// =============================================================================

// ValidateHeadersRequest is the request body for header validation
type ValidateHeadersRequest struct {
	// For multipart form upload, use "file" field
	// Or pass CSV content directly in "content" field
	Content string `json:"content,omitempty"`
}

// HandleValidateHeaders checks a CSV header against the canonical schema
// without importing anything.
// POST /api/listings/import/validate
// Accepts: multipart/form-data with "file" field OR application/json with "content" field
func (h *ImportHandlers) HandleValidateHeaders(w http.ResponseWriter, r *http.Request) {
	reader, _, errMsg := readImportBody(r)
	if errMsg != "" {
		writeError(w, errMsg, http.StatusBadRequest)
		return
	}

	header, _, _, err := ingest.DecodeRows(reader)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyFile) {
			writeError(w, "file is empty", http.StatusBadRequest)
			return
		}
		writeError(w, fmt.Sprintf("failed to analyze file: %v", err), http.StatusBadRequest)
		return
	}

	mapping := ingest.MapColumns(header)
	missing := mapping.MissingRequired()

	if len(missing) > 0 {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"valid":            false,
			"missing_required": missing,
			"recognized":       mapping.Recognized(),
			"unrecognized":     mapping.Unmapped(),
			"total_columns":    len(header),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":         true,
		"recognized":    mapping.Recognized(),
		"unrecognized":  mapping.Unmapped(),
		"total_columns": len(header),
	})
}

// =============================================================================
// IMPORT ENDPOINTS
// =============================================================================

// HandleImport runs a synchronous import and returns the full report.
// POST /api/listings/import
// Accepts: multipart/form-data with "file" field OR application/json with "content" field
// Optional: "source_tag" form value / query param, X-User-ID header.
func (h *ImportHandlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reader, filename, errMsg := readImportBody(r)
	if errMsg != "" {
		writeError(w, errMsg, http.StatusBadRequest)
		return
	}

	ownerID := ownerFromRequest(r)
	sourceTag := r.FormValue("source_tag")
	if sourceTag == "" {
		sourceTag = r.URL.Query().Get("source_tag")
	}

	h.runImport(ctx, w, reader, ownerID, filename, sourceTag)
}

// ImportFromS3Request is the request body for S3-sourced imports
type ImportFromS3Request struct {
	Bucket    string `json:"bucket,omitempty"` // empty uses the configured drop bucket
	Key       string `json:"key"`
	SourceTag string `json:"source_tag,omitempty"`
}

// HandleImportFromS3 pulls a CSV from the scraper drop bucket and imports it.
// POST /api/listings/import/s3
func (h *ImportHandlers) HandleImportFromS3(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.fetcher == nil {
		writeError(w, "S3 import is not configured", http.StatusServiceUnavailable)
		return
	}

	var req ImportFromS3Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		writeError(w, "key is required", http.StatusBadRequest)
		return
	}

	body, err := h.fetcher.Fetch(ctx, req.Bucket, req.Key)
	if err != nil {
		log.Printf("[api] s3 fetch %s/%s failed: %v", req.Bucket, req.Key, err)
		writeError(w, fmt.Sprintf("failed to fetch object: %v", err), http.StatusBadGateway)
		return
	}
	defer body.Close()

	sourceTag := req.SourceTag
	if sourceTag == "" {
		sourceTag = "s3-import"
	}

	h.runImport(ctx, w, body, ownerFromRequest(r), req.Key, sourceTag)
}

// runImport executes the pipeline and maps its typed failures onto HTTP
// responses. Successful runs are recorded in the job history when a job
// store is configured.
func (h *ImportHandlers) runImport(ctx context.Context, w http.ResponseWriter, reader io.Reader, ownerID, filename, sourceTag string) {
	report, err := h.pipeline.Run(ctx, reader, ownerID, sourceTag)
	if err != nil {
		var schemaErr *ingest.SchemaError
		var noValid *ingest.NoValidRecordsError
		var malformed *ingest.MalformedInputError

		switch {
		case errors.Is(err, ingest.ErrEmptyFile):
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   "empty_file",
				"message": "file contains no data",
			})
		case errors.As(err, &malformed):
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   "malformed_input",
				"message": malformed.Error(),
			})
		case errors.As(err, &schemaErr):
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":   "missing_required_columns",
				"message": schemaErr.Error(),
				"missing": schemaErr.Missing,
			})
		case errors.As(err, &noValid):
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":           "no_valid_records",
				"message":         noValid.Error(),
				"import_batch_id": noValid.ImportBatchID,
				"rows_read":       noValid.RowsRead,
				"error_total":     len(noValid.Errors),
				"error_sample":    sampleErrors(noValid.Errors, ingest.DefaultErrorSampleSize),
			})
		default:
			log.Printf("[api] import for owner %s failed: %v", ownerID, err)
			writeError(w, fmt.Sprintf("import failed: %v", err), http.StatusInternalServerError)
		}
		return
	}

	if h.jobs != nil {
		if err := h.jobs.RecordImportJob(ctx, ownerID, filename, sourceTag, report); err != nil {
			// History is best-effort; the import itself succeeded.
			log.Printf("[api] failed to record import job for batch %s: %v", report.ImportBatchID, err)
		}
	}

	status := http.StatusOK
	if len(report.WriteErrors) > 0 {
		// Partial success: some chunks were rejected by the store.
		status = http.StatusMultiStatus
	}
	respondJSON(w, status, report)
}

// =============================================================================
// JOB HISTORY ENDPOINT
// =============================================================================

// HandleListJobs returns recent import jobs for the caller, newest first.
// GET /api/listings/import/jobs?limit=50
func (h *ImportHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, "job history is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	jobs, err := h.jobs.ListImportJobs(r.Context(), ownerFromRequest(r), limit)
	if err != nil {
		writeError(w, fmt.Sprintf("failed to list jobs: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// readImportBody extracts the CSV payload from either a JSON body with a
// "content" field or a multipart form with a "file" field. It returns a
// non-empty error message on failure.
func readImportBody(r *http.Request) (io.Reader, string, string) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req ValidateHeadersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, "", "invalid request body"
		}
		if req.Content == "" {
			return nil, "", "content is required"
		}
		return strings.NewReader(req.Content), "inline", ""
	}

	// Multipart form (100MB max for synchronous imports)
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		return nil, "", "failed to parse upload, file may be too large"
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "file is required"
	}
	return file, header.Filename, ""
}

// ownerFromRequest resolves the caller's owner id. Falls back to a shared
// default so single-tenant deployments work without auth plumbing.
func ownerFromRequest(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "default"
}

func sampleErrors(errs []ingest.RowError, size int) []ingest.RowError {
	if len(errs) <= size {
		return errs
	}
	return errs[:size]
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
