package ingest

// Dedupe collapses records sharing a natural key within one submission.
// The first record in file order wins; later duplicates are dropped
// entirely, their keys returned in encounter order for reporting.
func Dedupe(records []*CandidateRecord) (kept []*CandidateRecord, duplicates []string) {
	seen := make(map[string]bool, len(records))
	kept = records[:0:0]
	for _, rec := range records {
		if seen[rec.NaturalKey] {
			duplicates = append(duplicates, rec.NaturalKey)
			continue
		}
		seen[rec.NaturalKey] = true
		kept = append(kept, rec)
	}
	return kept, duplicates
}
