// Package postgres implements the ingest storage contracts against
// PostgreSQL via database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/leadmap/listing-ingest/internal/ingest"
)

// ListingRepo implements ingest.ListingStore against PostgreSQL.
type ListingRepo struct{ db *sql.DB }

// NewListingRepo creates a Postgres-backed listing repository.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// UpsertBatch inserts or updates one chunk of records inside a single
// transaction, keyed on (owner_id, natural_key). Re-running the same
// import updates rows in place instead of duplicating them. Incoming
// empty/null values never clobber previously stored data.
func (r *ListingRepo) UpsertBatch(ctx context.Context, records []*ingest.CandidateRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for _, rec := range records {
		var lat, lng *float64
		if rec.Coordinates != nil {
			lat, lng = &rec.Coordinates.Lat, &rec.Coordinates.Lng
		}

		otherJSON, _ := json.Marshal(rec.Extra)

		res, err := tx.ExecContext(ctx, `
			INSERT INTO listings (
				natural_key, owner_id, property_url,
				street, unit, city, state, zip_code,
				beds, full_baths, half_baths, sqft, year_built,
				list_price, list_price_min, list_price_max, estimated_value, last_sale_amount,
				price_per_sqft, status, mls,
				agent_name, agent_email, agent_phone,
				photos, time_listed, last_sale_date,
				latitude, longitude, other,
				import_batch_id, source_tag, imported_at,
				created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
				$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
				$31, $32, $33, NOW(), NOW()
			)
			ON CONFLICT (owner_id, natural_key) DO UPDATE SET
				property_url = EXCLUDED.property_url,
				street = COALESCE(NULLIF(EXCLUDED.street, ''), listings.street),
				unit = COALESCE(NULLIF(EXCLUDED.unit, ''), listings.unit),
				city = COALESCE(NULLIF(EXCLUDED.city, ''), listings.city),
				state = COALESCE(NULLIF(EXCLUDED.state, ''), listings.state),
				zip_code = COALESCE(NULLIF(EXCLUDED.zip_code, ''), listings.zip_code),
				beds = COALESCE(EXCLUDED.beds, listings.beds),
				full_baths = COALESCE(EXCLUDED.full_baths, listings.full_baths),
				half_baths = COALESCE(EXCLUDED.half_baths, listings.half_baths),
				sqft = COALESCE(EXCLUDED.sqft, listings.sqft),
				year_built = COALESCE(EXCLUDED.year_built, listings.year_built),
				list_price = COALESCE(EXCLUDED.list_price, listings.list_price),
				list_price_min = COALESCE(EXCLUDED.list_price_min, listings.list_price_min),
				list_price_max = COALESCE(EXCLUDED.list_price_max, listings.list_price_max),
				estimated_value = COALESCE(EXCLUDED.estimated_value, listings.estimated_value),
				last_sale_amount = COALESCE(EXCLUDED.last_sale_amount, listings.last_sale_amount),
				price_per_sqft = COALESCE(EXCLUDED.price_per_sqft, listings.price_per_sqft),
				status = COALESCE(NULLIF(EXCLUDED.status, ''), listings.status),
				mls = COALESCE(NULLIF(EXCLUDED.mls, ''), listings.mls),
				agent_name = COALESCE(NULLIF(EXCLUDED.agent_name, ''), listings.agent_name),
				agent_email = COALESCE(NULLIF(EXCLUDED.agent_email, ''), listings.agent_email),
				agent_phone = COALESCE(NULLIF(EXCLUDED.agent_phone, ''), listings.agent_phone),
				photos = CASE WHEN array_length(EXCLUDED.photos, 1) > 0 THEN EXCLUDED.photos ELSE listings.photos END,
				time_listed = COALESCE(EXCLUDED.time_listed, listings.time_listed),
				last_sale_date = COALESCE(EXCLUDED.last_sale_date, listings.last_sale_date),
				latitude = COALESCE(EXCLUDED.latitude, listings.latitude),
				longitude = COALESCE(EXCLUDED.longitude, listings.longitude),
				other = listings.other || EXCLUDED.other,
				import_batch_id = EXCLUDED.import_batch_id,
				source_tag = EXCLUDED.source_tag,
				imported_at = EXCLUDED.imported_at,
				updated_at = NOW()`,
			rec.NaturalKey, rec.OwnerID, rec.PropertyURL,
			rec.Street, rec.Unit, rec.City, rec.State, rec.Zip,
			rec.Beds, rec.FullBaths, rec.HalfBaths, rec.Sqft, rec.YearBuilt,
			rec.ListPrice, rec.ListPriceMin, rec.ListPriceMax, rec.EstimatedValue, rec.LastSaleAmount,
			rec.PricePerSqft, rec.Status, rec.MLS,
			rec.AgentName, rec.AgentEmail, rec.AgentPhone,
			pq.Array(rec.Photos), rec.TimeListed, rec.LastSaleDate,
			lat, lng, string(otherJSON),
			rec.ImportBatchID, rec.SourceTag, rec.ImportedAt,
		)
		if err != nil {
			return 0, classifyWriteError(err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}
	return written, nil
}

// classifyWriteError maps Postgres error codes to the pipeline's write
// sentinels so the batch writer can drive the user-visible remediation.
func classifyWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("%w: %s", ingest.ErrDestinationNotConfigured, pqErr.Message)
		case "42501": // insufficient_privilege
			return fmt.Errorf("%w: %s", ingest.ErrPermissionDenied, pqErr.Message)
		}
	}
	return fmt.Errorf("upsert listings: %w", err)
}
