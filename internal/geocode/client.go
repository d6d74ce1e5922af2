// Package geocode wraps the external geocoding service behind the
// pipeline's Geocoder contract: one lookup per call, nil on any failure.
// Third-party instability (timeouts, quota errors, malformed responses)
// never reaches pipeline correctness.
package geocode

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/leadmap/listing-ingest/internal/ingest"
)

// Config holds geocoding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Client is a stateless request/response wrapper around the provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Lookup resolves an address to coordinates. Returns nil on a missing
// credential, request failure, non-2xx status, provider error status, or
// an empty result set. Lookups are not retried; a single failed attempt
// is final for that record in this run.
func (c *Client) Lookup(ctx context.Context, address string) *ingest.Coordinates {
	if c.apiKey == "" || address == "" {
		return nil
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[geocode] lookup failed for %q: %v", address, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[geocode] lookup for %q returned status %d", address, resp.StatusCode)
		return nil
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Printf("[geocode] malformed response for %q: %v", address, err)
		return nil
	}

	if body.Status != "OK" || len(body.Results) == 0 {
		return nil
	}

	loc := body.Results[0].Geometry.Location
	return &ingest.Coordinates{Lat: loc.Lat, Lng: loc.Lng}
}
