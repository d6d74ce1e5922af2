package ingest

import "time"

// Coordinates is a latitude/longitude pair from the geocoding provider.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CandidateRecord is the normalized unit of work produced from one CSV row.
// A surviving record always has a non-empty NaturalKey. The enrichment
// coordinator is the only stage that mutates a record after normalization
// (to fill Coordinates); the batch writer treats records as read-only.
type CandidateRecord struct {
	NaturalKey  string
	PropertyURL string

	// Address components
	Street string
	Unit   string
	City   string
	State  string
	Zip    string

	// Integer fields; nil when the source value was absent or unparseable
	Beds      *int
	FullBaths *int
	HalfBaths *int
	Sqft      *int
	YearBuilt *int

	// Price fields can exceed 32-bit range
	ListPrice      *int64
	ListPriceMin   *int64
	ListPriceMax   *int64
	EstimatedValue *int64
	LastSaleAmount *int64

	PricePerSqft *float64

	Status     string
	MLS        string
	AgentName  string
	AgentEmail string
	AgentPhone string

	Photos []string

	TimeListed   *time.Time
	LastSaleDate *time.Time

	Coordinates *Coordinates

	// Address is the geocoding query string derived from the address
	// components; nil when no component was present.
	Address *string

	// Unmapped columns, persisted as the "other" JSONB blob
	Extra map[string]string

	// Provenance, stamped once per pipeline invocation
	ImportBatchID string
	SourceTag     string
	OwnerID       string
	ImportedAt    time.Time

	// File line number this record came from (header is line 1)
	RowNumber int
}

// NeedsGeocoding reports whether the record is eligible for enrichment.
func (r *CandidateRecord) NeedsGeocoding() bool {
	return r.Coordinates == nil && r.Address != nil
}

// RowError records why a single row was rejected during normalization.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Provenance carries the per-invocation fields stamped onto every record.
type Provenance struct {
	BatchID   string
	OwnerID   string
	SourceTag string
	Timestamp time.Time
}
