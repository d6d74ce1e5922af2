package ingest

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeRowsEmptyInput(t *testing.T) {
	_, _, _, err := DecodeRows(strings.NewReader(""))
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}

	_, _, _, err = DecodeRows(strings.NewReader("\n\n"))
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile for blank lines, got %v", err)
	}
}

func TestDecodeRowsStripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFlisting_id,property_url\n1,https://example.com/home/1\n"
	header, rows, rowErrs, err := DecodeRows(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if header[0] != "listing_id" {
		t.Errorf("BOM not stripped from header, got %q", header[0])
	}
	if len(rows) != 1 || len(rowErrs) != 0 {
		t.Errorf("expected 1 row 0 errors, got %d rows %d errors", len(rows), len(rowErrs))
	}
}

func TestDecodeRowsNumbering(t *testing.T) {
	input := "listing_id,property_url\na,https://x/1\nb,https://x/2\n"
	_, rows, _, err := DecodeRows(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Header is line 1, so data rows start at 2
	if rows[0].Number != 2 || rows[1].Number != 3 {
		t.Errorf("wrong row numbers: %d, %d", rows[0].Number, rows[1].Number)
	}
}

func TestDecodeRowsRaggedRowsPassThrough(t *testing.T) {
	input := "listing_id,property_url,city\n1,https://x/1\n2,https://x/2,Tupelo,extra\n"
	_, rows, rowErrs, err := DecodeRows(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("ragged rows should not be decode errors, got %v", rowErrs)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if len(rows[0].Fields) != 2 || len(rows[1].Fields) != 4 {
		t.Errorf("field counts not preserved: %d, %d", len(rows[0].Fields), len(rows[1].Fields))
	}
}

func TestDecodeRowsHeaderOnly(t *testing.T) {
	header, rows, rowErrs, err := DecodeRows(strings.NewReader("listing_id,property_url\n"))
	if err != nil {
		t.Fatalf("header-only file should decode, got %v", err)
	}
	if len(header) != 2 || len(rows) != 0 || len(rowErrs) != 0 {
		t.Errorf("unexpected decode output: header=%v rows=%d errs=%d", header, len(rows), len(rowErrs))
	}
}
