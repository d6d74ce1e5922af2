package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Timeout: 2 * time.Second,
	})
}

func TestLookupSuccess(t *testing.T) {
	var gotAddress, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":34.2576,"lng":-88.7034}}}]}`))
	}))
	defer server.Close()

	coords := newTestClient(server.URL).Lookup(context.Background(), "11 Elm St, Tupelo, MS")
	if coords == nil {
		t.Fatal("expected coordinates")
	}
	if coords.Lat != 34.2576 || coords.Lng != -88.7034 {
		t.Errorf("coords = %+v", coords)
	}
	if gotAddress != "11 Elm St, Tupelo, MS" {
		t.Errorf("address param = %q", gotAddress)
	}
	if gotKey != "test-key" {
		t.Errorf("key param = %q", gotKey)
	}
}

func TestLookupZeroResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	if coords := newTestClient(server.URL).Lookup(context.Background(), "nowhere"); coords != nil {
		t.Errorf("expected nil, got %+v", coords)
	}
}

func TestLookupServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	if coords := newTestClient(server.URL).Lookup(context.Background(), "x"); coords != nil {
		t.Errorf("expected nil on 500, got %+v", coords)
	}
}

func TestLookupMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":`))
	}))
	defer server.Close()

	if coords := newTestClient(server.URL).Lookup(context.Background(), "x"); coords != nil {
		t.Errorf("expected nil on malformed JSON, got %+v", coords)
	}
}

func TestLookupNoRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	newTestClient(server.URL).Lookup(context.Background(), "x")
	if calls != 1 {
		t.Errorf("a failed lookup must not be retried, got %d calls", calls)
	}
}

func TestLookupMissingKeyOrAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made")
	}))
	defer server.Close()

	noKey := NewClient(Config{BaseURL: server.URL})
	if coords := noKey.Lookup(context.Background(), "x"); coords != nil {
		t.Error("expected nil without an API key")
	}
	if coords := newTestClient(server.URL).Lookup(context.Background(), ""); coords != nil {
		t.Error("expected nil for an empty address")
	}
}
