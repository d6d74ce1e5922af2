package ingest

import "strings"

// CanonicalField is a normalized column name used across all listing sources.
type CanonicalField string

const (
	FieldListingID   CanonicalField = "listing_id"
	FieldPropertyURL CanonicalField = "property_url"

	FieldStreet CanonicalField = "street"
	FieldUnit   CanonicalField = "unit"
	FieldCity   CanonicalField = "city"
	FieldState  CanonicalField = "state"
	FieldZip    CanonicalField = "zip_code"

	FieldBeds      CanonicalField = "beds"
	FieldFullBaths CanonicalField = "full_baths"
	FieldHalfBaths CanonicalField = "half_baths"
	FieldSqft      CanonicalField = "sqft"
	FieldYearBuilt CanonicalField = "year_built"

	FieldListPrice      CanonicalField = "list_price"
	FieldListPriceMin   CanonicalField = "list_price_min"
	FieldListPriceMax   CanonicalField = "list_price_max"
	FieldEstimatedValue CanonicalField = "estimated_value"
	FieldLastSaleAmount CanonicalField = "last_sale_amount"
	FieldPricePerSqft   CanonicalField = "price_per_sqft"

	FieldStatus     CanonicalField = "status"
	FieldMLS        CanonicalField = "mls"
	FieldAgentName  CanonicalField = "agent_name"
	FieldAgentEmail CanonicalField = "agent_email"
	FieldAgentPhone CanonicalField = "agent_phone"

	FieldPhotos       CanonicalField = "photos"
	FieldTimeListed   CanonicalField = "time_listed"
	FieldLastSaleDate CanonicalField = "last_sale_date"

	FieldLatitude  CanonicalField = "latitude"
	FieldLongitude CanonicalField = "longitude"
)

// requiredFields are the logical columns every import must supply. Without
// them no record can be keyed, so their absence rejects the whole file.
var requiredFields = []CanonicalField{FieldListingID, FieldPropertyURL}

// columnAliases maps lowercase header names to canonical fields.
// When multiple raw headers mean the same thing, they all map here.
var columnAliases = map[string]CanonicalField{
	// Keying fields
	"listing_id":  FieldListingID,
	"listingid":   FieldListingID,
	"property_id": FieldListingID,

	"property_url": FieldPropertyURL,
	"propertyurl":  FieldPropertyURL,
	"url":          FieldPropertyURL,
	"permalink":    FieldPropertyURL,

	// Address components
	"address":        FieldStreet,
	"street":         FieldStreet,
	"street_address": FieldStreet,
	"unit":           FieldUnit,
	"city":           FieldCity,
	"state":          FieldState,
	"zip":            FieldZip,
	"zipcode":        FieldZip,
	"zip_code":       FieldZip,
	"postal_code":    FieldZip,

	// Property attributes
	"beds":        FieldBeds,
	"bedrooms":    FieldBeds,
	"full_baths":  FieldFullBaths,
	"baths":       FieldFullBaths,
	"bathrooms":   FieldFullBaths,
	"half_baths":  FieldHalfBaths,
	"sqft":        FieldSqft,
	"square_feet": FieldSqft,
	"living_area": FieldSqft,
	"year_built":  FieldYearBuilt,

	// Prices
	"list_price":       FieldListPrice,
	"price":            FieldListPrice,
	"listing_price":    FieldListPrice,
	"list_price_min":   FieldListPriceMin,
	"list_price_max":   FieldListPriceMax,
	"estimated_value":  FieldEstimatedValue,
	"last_sale_amount": FieldLastSaleAmount,
	"last_sale_price":  FieldLastSaleAmount,
	"price_per_sqft":   FieldPricePerSqft,

	// Listing metadata
	"status":     FieldStatus,
	"mls_status": FieldStatus,
	"mls":        FieldMLS,
	"mls_id":     FieldMLS,

	// Agent contact
	"agent_name":          FieldAgentName,
	"agent_email":         FieldAgentEmail,
	"listing_agent_email": FieldAgentEmail,
	"agent_phone":         FieldAgentPhone,
	"agent_phone_1":       FieldAgentPhone,
	"listing_agent_phone": FieldAgentPhone,

	// Media / dates
	"photos":         FieldPhotos,
	"time_listed":    FieldTimeListed,
	"list_date":      FieldTimeListed,
	"listed_date":    FieldTimeListed,
	"last_sale_date": FieldLastSaleDate,

	// Coordinates already present in some exports
	"latitude":  FieldLatitude,
	"lat":       FieldLatitude,
	"longitude": FieldLongitude,
	"lng":       FieldLongitude,
	"long":      FieldLongitude,
}

// ColumnMapping holds the resolved mapping from CSV column indices to
// canonical fields.
type ColumnMapping struct {
	FieldMap map[int]CanonicalField // column index -> canonical field
	RawNames []string               // original header names
}

// MapColumns takes a raw CSV header row and returns a resolved mapping.
// Header names match case-insensitively with surrounding whitespace and
// quotes ignored. Unknown columns are left unmapped, not rejected.
func MapColumns(header []string) *ColumnMapping {
	m := &ColumnMapping{
		FieldMap: make(map[int]CanonicalField, len(header)),
		RawNames: header,
	}

	for i, h := range header {
		normalized := strings.ToLower(strings.TrimSpace(h))
		normalized = strings.Trim(normalized, "\"'")

		if field, ok := columnAliases[normalized]; ok {
			// First matching column wins when a file repeats a header
			if !m.hasField(field) {
				m.FieldMap[i] = field
			}
		}
	}

	return m
}

func (m *ColumnMapping) hasField(field CanonicalField) bool {
	for _, f := range m.FieldMap {
		if f == field {
			return true
		}
	}
	return false
}

// MissingRequired returns the logical names of mandatory columns absent
// from the header, in declaration order.
func (m *ColumnMapping) MissingRequired() []string {
	var missing []string
	for _, f := range requiredFields {
		if !m.hasField(f) {
			missing = append(missing, string(f))
		}
	}
	return missing
}

// Recognized returns the header columns that mapped to a canonical field.
func (m *ColumnMapping) Recognized() map[string]string {
	out := make(map[string]string, len(m.FieldMap))
	for i, f := range m.FieldMap {
		out[m.RawNames[i]] = string(f)
	}
	return out
}

// Unmapped returns the header columns no alias matched. Their values
// still survive the import in the record's extra attributes.
func (m *ColumnMapping) Unmapped() []string {
	var out []string
	for i, name := range m.RawNames {
		if _, ok := m.FieldMap[i]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// RequiredFields returns the logical names of the mandatory columns.
func RequiredFields() []string {
	out := make([]string, 0, len(requiredFields))
	for _, f := range requiredFields {
		out = append(out, string(f))
	}
	return out
}

// RecognizedColumns returns the alias table for the field-reference endpoint.
func RecognizedColumns() map[string][]string {
	out := make(map[string][]string)
	for alias, field := range columnAliases {
		out[string(field)] = append(out[string(field)], alias)
	}
	return out
}
