package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrEmptyFile means the submission contained no rows at all.
	ErrEmptyFile = errors.New("file is empty")
)

// MalformedInputError wraps a failure to decode the submission as tabular
// data at all. It aborts the import before any row processing.
type MalformedInputError struct {
	Err error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("input could not be decoded as CSV: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// RawRow is one decoded data row. Number is the file line number, counting
// the header as line 1, so the first data row is 2.
type RawRow struct {
	Number int
	Fields []string
}

// DecodeRows reads the entire submission as CSV. Ragged rows (field count
// differing from the header) are passed through for per-row handling
// downstream; lines the CSV reader cannot parse at all become RowErrors
// rather than failing the file. Only an empty or undecodable submission is
// fatal.
func DecodeRows(r io.Reader) (header []string, rows []RawRow, rowErrs []RowError, err error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err = reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, nil, ErrEmptyFile
		}
		return nil, nil, nil, &MalformedInputError{Err: err}
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: line, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}
		rows = append(rows, RawRow{Number: line, Fields: record})
	}

	if len(rows) == 0 && len(rowErrs) == 0 && isBlankHeader(header) {
		return nil, nil, nil, ErrEmptyFile
	}

	return header, rows, rowErrs, nil
}

func isBlankHeader(header []string) bool {
	for _, h := range header {
		if strings.TrimSpace(h) != "" {
			return false
		}
	}
	return true
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := r.Read(buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
