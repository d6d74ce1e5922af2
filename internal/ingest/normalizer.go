package ingest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NormalizeRow converts one raw row into a CandidateRecord, or a RowError
// when the row cannot be keyed. Numeric and date coercion is permissive:
// a value that fails to parse becomes nil, never a row error. This stage
// performs no I/O.
func NormalizeRow(row RawRow, mapping *ColumnMapping, prov Provenance) (*CandidateRecord, *RowError) {
	rec := &CandidateRecord{
		Extra:         make(map[string]string),
		ImportBatchID: prov.BatchID,
		OwnerID:       prov.OwnerID,
		SourceTag:     prov.SourceTag,
		ImportedAt:    prov.Timestamp,
		RowNumber:     row.Number,
	}

	var lat, lng *float64
	var listingID string

	for i, val := range row.Fields {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}

		field, mapped := mapping.FieldMap[i]
		if !mapped {
			rawHeader := ""
			if i < len(mapping.RawNames) {
				rawHeader = strings.TrimSpace(mapping.RawNames[i])
			}
			if rawHeader != "" {
				rec.Extra[rawHeader] = val
			}
			continue
		}

		switch field {
		case FieldListingID:
			listingID = val
		case FieldPropertyURL:
			rec.PropertyURL = val
		case FieldStreet:
			rec.Street = val
		case FieldUnit:
			rec.Unit = val
		case FieldCity:
			rec.City = val
		case FieldState:
			rec.State = strings.ToUpper(val)
		case FieldZip:
			rec.Zip = normalizeZip(val)
		case FieldBeds:
			rec.Beds = parseInteger(val)
		case FieldFullBaths:
			rec.FullBaths = parseInteger(val)
		case FieldHalfBaths:
			rec.HalfBaths = parseInteger(val)
		case FieldSqft:
			rec.Sqft = parseInteger(val)
		case FieldYearBuilt:
			rec.YearBuilt = parseInteger(val)
		case FieldListPrice:
			rec.ListPrice = parsePrice(val)
		case FieldListPriceMin:
			rec.ListPriceMin = parsePrice(val)
		case FieldListPriceMax:
			rec.ListPriceMax = parsePrice(val)
		case FieldEstimatedValue:
			rec.EstimatedValue = parsePrice(val)
		case FieldLastSaleAmount:
			rec.LastSaleAmount = parsePrice(val)
		case FieldPricePerSqft:
			rec.PricePerSqft = parseFloat(val)
		case FieldStatus:
			rec.Status = val
		case FieldMLS:
			rec.MLS = val
		case FieldAgentName:
			rec.AgentName = val
		case FieldAgentEmail:
			rec.AgentEmail = strings.ToLower(val)
		case FieldAgentPhone:
			rec.AgentPhone = normalizePhone(val)
		case FieldPhotos:
			photos, err := parsePhotos(val)
			if err != nil {
				return nil, &RowError{Row: row.Number, Message: fmt.Sprintf("invalid photos value: %v", err)}
			}
			rec.Photos = photos
		case FieldTimeListed:
			rec.TimeListed = parseDate(val)
		case FieldLastSaleDate:
			rec.LastSaleDate = parseDate(val)
		case FieldLatitude:
			lat = parseFloat(val)
		case FieldLongitude:
			lng = parseFloat(val)
		}
	}

	if rec.PropertyURL == "" {
		return nil, &RowError{Row: row.Number, Message: "missing property_url"}
	}

	// Prefer the explicit listing id; fall back to the trailing URL segment
	rec.NaturalKey = listingID
	if rec.NaturalKey == "" {
		rec.NaturalKey = keyFromURL(rec.PropertyURL)
	}
	if rec.NaturalKey == "" {
		return nil, &RowError{Row: row.Number, Message: "missing listing id and no usable property_url segment"}
	}

	if lat != nil && lng != nil {
		rec.Coordinates = &Coordinates{Lat: *lat, Lng: *lng}
	}

	rec.Address = buildAddress(rec)

	return rec, nil
}

// keyFromURL derives a natural key from the trailing path segment of a
// listing URL, e.g. ".../home/12345" -> "12345".
func keyFromURL(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		path = u.Path
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			return seg
		}
	}
	return ""
}

// buildAddress assembles the geocoding query from the address components,
// omitting empty ones. Returns nil when no component is present.
func buildAddress(rec *CandidateRecord) *string {
	var parts []string
	for _, p := range []string{rec.Street, rec.Unit, rec.City, rec.State, rec.Zip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	addr := strings.Join(parts, ", ")
	return &addr
}

var nonNumeric = regexp.MustCompile(`[^0-9.+-]`)

// parseInteger coerces values like "3", "1,200" or "38824.0" to an int.
// Unparseable values become nil.
func parseInteger(val string) *int {
	clean := nonNumeric.ReplaceAllString(val, "")
	if idx := strings.Index(clean, "."); idx >= 0 {
		clean = clean[:idx]
	}
	n, err := strconv.Atoi(clean)
	if err != nil {
		return nil
	}
	return &n
}

// parsePrice coerces values like "$1,250,000" or "1250000.00" to an int64.
func parsePrice(val string) *int64 {
	clean := nonNumeric.ReplaceAllString(val, "")
	if clean == "" {
		return nil
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil
	}
	n := int64(f)
	return &n
}

func parseFloat(val string) *float64 {
	clean := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil
	}
	return &f
}

// relativeTime matches values like "34 minutes" or "4 days" that some
// exports put in date columns.
var relativeTime = regexp.MustCompile(`(?i)^\d+\s+(minute|hour|day|week|month|year)`)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
}

// parseDate tries a fixed set of layouts; anything unparseable (including
// relative-time strings) becomes nil rather than an error.
func parseDate(val string) *time.Time {
	val = strings.TrimSpace(val)
	if val == "" || relativeTime.MatchString(val) {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, val); err == nil {
			return &t
		}
	}
	return nil
}

// parsePhotos accepts either a JSON array of URL strings or a
// comma-separated URL list. A value that looks like JSON but does not
// parse is the one malformed-structured-data case that fails the row.
func parsePhotos(val string) ([]string, error) {
	trimmed := strings.TrimSpace(val)
	if strings.HasPrefix(trimmed, "[") {
		var urls []string
		if err := json.Unmarshal([]byte(trimmed), &urls); err != nil {
			return nil, fmt.Errorf("malformed JSON array: %w", err)
		}
		return urls, nil
	}

	var urls []string
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "http://") || strings.HasPrefix(part, "https://") {
			urls = append(urls, part)
		}
	}
	return urls, nil
}

func normalizeZip(val string) string {
	// Strip .0 suffix from float-parsed zip codes (e.g. "38824.0")
	if idx := strings.Index(val, "."); idx > 0 {
		return val[:idx]
	}
	return val
}

func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
		} else if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
