package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadmap/listing-ingest/internal/config"
	"github.com/leadmap/listing-ingest/internal/ingest"
	"github.com/leadmap/listing-ingest/internal/repository/postgres"
)

// mockRunner returns a canned report or error and captures its inputs.
type mockRunner struct {
	report    *ingest.ImportReport
	err       error
	gotOwner  string
	gotSource string
	gotBody   string
}

func (m *mockRunner) Run(ctx context.Context, r io.Reader, ownerID, sourceTag string) (*ingest.ImportReport, error) {
	body, _ := io.ReadAll(r)
	m.gotBody = string(body)
	m.gotOwner = ownerID
	m.gotSource = sourceTag
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

type mockJobStore struct {
	recorded []string // filenames
	jobs     []postgres.ImportJob
	err      error
}

func (m *mockJobStore) RecordImportJob(ctx context.Context, ownerID, filename, sourceTag string, rep *ingest.ImportReport) error {
	m.recorded = append(m.recorded, filename)
	return m.err
}

func (m *mockJobStore) ListImportJobs(ctx context.Context, ownerID string, limit int) ([]postgres.ImportJob, error) {
	return m.jobs, m.err
}

type mockFetcher struct {
	content   string
	err       error
	gotBucket string
	gotKey    string
}

func (m *mockFetcher) Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	m.gotBucket, m.gotKey = bucket, key
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(strings.NewReader(m.content)), nil
}

func setupImportTest(runner *mockRunner, jobs JobStore, fetcher ObjectFetcher) http.Handler {
	handlers := NewImportHandlers(runner, jobs, fetcher)
	return SetupRoutes(handlers, nil)
}

func okReport() *ingest.ImportReport {
	return &ingest.ImportReport{
		ImportBatchID:  "batch-1",
		RowsRead:       3,
		ValidRows:      3,
		RecordsWritten: 3,
		CompletedAt:    time.Now().UTC(),
	}
}

func postJSON(t *testing.T, handler http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHandleGetFields(t *testing.T) {
	handler := setupImportTest(&mockRunner{report: okReport()}, nil, nil)

	req := httptest.NewRequest("GET", "/api/listings/import/fields", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Fields         map[string][]string `json:"fields"`
		RequiredFields []string            `json:"required_fields"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.RequiredFields, "property_url")
	assert.Contains(t, resp.Fields, "list_price")
}

func TestHandleValidateHeaders(t *testing.T) {
	handler := setupImportTest(&mockRunner{report: okReport()}, nil, nil)

	body := `{"content":"listing_id,property_url,price,neighborhood\n"}`
	rr := postJSON(t, handler, "/api/listings/import/validate", body, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Valid        bool              `json:"valid"`
		Recognized   map[string]string `json:"recognized"`
		Unrecognized []string          `json:"unrecognized"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, "list_price", resp.Recognized["price"])
	assert.Equal(t, []string{"neighborhood"}, resp.Unrecognized)
}

func TestHandleValidateHeadersMissingRequired(t *testing.T) {
	handler := setupImportTest(&mockRunner{report: okReport()}, nil, nil)

	rr := postJSON(t, handler, "/api/listings/import/validate", `{"content":"city,state\n"}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp struct {
		Valid           bool     `json:"valid"`
		MissingRequired []string `json:"missing_required"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, []string{"listing_id", "property_url"}, resp.MissingRequired)
}

func TestHandleImportJSONContent(t *testing.T) {
	runner := &mockRunner{report: okReport()}
	jobs := &mockJobStore{}
	handler := setupImportTest(runner, jobs, nil)

	body := `{"content":"listing_id,property_url\nL1,https://x/1\n"}`
	rr := postJSON(t, handler, "/api/listings/import", body, map[string]string{"X-User-ID": "user-7"})
	require.Equal(t, http.StatusOK, rr.Code)

	var rep ingest.ImportReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, "batch-1", rep.ImportBatchID)

	assert.Equal(t, "user-7", runner.gotOwner)
	assert.Contains(t, runner.gotBody, "L1,https://x/1")
	assert.Equal(t, []string{"inline"}, jobs.recorded)
}

func TestHandleImportMultipart(t *testing.T) {
	runner := &mockRunner{report: okReport()}
	handler := setupImportTest(runner, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "listings.csv")
	require.NoError(t, err)
	fw.Write([]byte("listing_id,property_url\nL1,https://x/1\n"))
	mw.WriteField("source_tag", "zillow")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/listings/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "zillow", runner.gotSource)
	assert.Equal(t, "default", runner.gotOwner)
}

func TestHandleImportMissingFile(t *testing.T) {
	handler := setupImportTest(&mockRunner{report: okReport()}, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("source_tag", "x")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/listings/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleImportTypedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"empty file", ingest.ErrEmptyFile, http.StatusBadRequest, "empty_file"},
		{"malformed", &ingest.MalformedInputError{Err: io.ErrUnexpectedEOF}, http.StatusBadRequest, "malformed_input"},
		{"schema", &ingest.SchemaError{Missing: []string{"property_url"}}, http.StatusUnprocessableEntity, "missing_required_columns"},
		{"no valid records", &ingest.NoValidRecordsError{ImportBatchID: "b", RowsRead: 2, Errors: []ingest.RowError{{Row: 2, Message: "missing property_url"}}}, http.StatusUnprocessableEntity, "no_valid_records"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := setupImportTest(&mockRunner{err: tt.err}, nil, nil)
			rr := postJSON(t, handler, "/api/listings/import", `{"content":"x\n"}`, nil)
			require.Equal(t, tt.wantStatus, rr.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp["error"])
		})
	}
}

func TestHandleImportPartialWrite(t *testing.T) {
	report := okReport()
	report.WriteErrors = []ingest.ChunkError{{
		Kind:    ingest.WriteErrPermissionDenied,
		Records: 100,
		Message: "denied",
	}}
	handler := setupImportTest(&mockRunner{report: report}, nil, nil)

	rr := postJSON(t, handler, "/api/listings/import", `{"content":"listing_id,property_url\nL1,https://x/1\n"}`, nil)
	assert.Equal(t, http.StatusMultiStatus, rr.Code)
}

func TestHandleImportFromS3(t *testing.T) {
	runner := &mockRunner{report: okReport()}
	fetcher := &mockFetcher{content: "listing_id,property_url\nL1,https://x/1\n"}
	handler := setupImportTest(runner, nil, fetcher)

	rr := postJSON(t, handler, "/api/listings/import/s3", `{"key":"drops/2026-08-30.csv"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, "drops/2026-08-30.csv", fetcher.gotKey)
	assert.Equal(t, "s3-import", runner.gotSource)
	assert.Contains(t, runner.gotBody, "L1")
}

func TestHandleImportFromS3NotConfigured(t *testing.T) {
	handler := setupImportTest(&mockRunner{report: okReport()}, nil, nil)

	rr := postJSON(t, handler, "/api/listings/import/s3", `{"key":"x.csv"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleImportFromS3MissingKey(t *testing.T) {
	handler := setupImportTest(&mockRunner{report: okReport()}, nil, &mockFetcher{})

	rr := postJSON(t, handler, "/api/listings/import/s3", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleListJobs(t *testing.T) {
	jobs := &mockJobStore{jobs: []postgres.ImportJob{
		{ImportBatchID: "batch-2", Filename: "b.csv"},
		{ImportBatchID: "batch-1", Filename: "a.csv"},
	}}
	handler := setupImportTest(&mockRunner{report: okReport()}, jobs, nil)

	req := httptest.NewRequest("GET", "/api/listings/import/jobs", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Jobs  []postgres.ImportJob `json:"jobs"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "batch-2", resp.Jobs[0].ImportBatchID)
}

func TestServerHandler(t *testing.T) {
	handlers := NewImportHandlers(&mockRunner{report: okReport()}, nil, nil)
	server := NewServer(config.ServerConfig{Host: "localhost", Port: 0}, handlers, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
