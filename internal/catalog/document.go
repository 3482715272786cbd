package catalog

import (
	"encoding/json"
	"strings"
)

// ImportResult is the ordered per-row outcome of parsing one import file.
// The header row is never part of the result. Once built it is not modified;
// accessors return copies.
type ImportResult struct {
	rows []RowOutcome
}

// NewImportResult builds a result from already validated rows.
func NewImportResult(rows []RowOutcome) ImportResult {
	return ImportResult{rows: append([]RowOutcome(nil), rows...)}
}

// ParseDocument tokenizes and validates every data line of a CSV document.
//
// The document is trimmed and split on newlines; the first line is treated as
// the header and skipped without checking its column names. No line is
// filtered out, so a blank line in the middle of the file is reported as a row
// with one column.
func ParseDocument(text string) ImportResult {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return ImportResult{}
	}

	rows := make([]RowOutcome, 0, len(lines)-1)
	for i, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		rows = append(rows, ValidateRow(Tokenize(line), i+2))
	}

	return ImportResult{rows: rows}
}

// Len returns the number of data rows.
func (r ImportResult) Len() int {
	return len(r.rows)
}

// Rows returns a copy of the per-row outcomes in input order.
func (r ImportResult) Rows() []RowOutcome {
	return append([]RowOutcome(nil), r.rows...)
}

// ValidCount returns how many rows produced a product.
func (r ImportResult) ValidCount() int {
	n := 0
	for _, row := range r.rows {
		if row.Valid() {
			n++
		}
	}
	return n
}

// InvalidCount returns how many rows failed validation.
func (r ImportResult) InvalidCount() int {
	return len(r.rows) - r.ValidCount()
}

// Products returns the valid products in input order.
func (r ImportResult) Products() []Product {
	products := make([]Product, 0, len(r.rows))
	for _, row := range r.rows {
		if row.Product != nil {
			products = append(products, *row.Product)
		}
	}
	return products
}

// Errors returns the error strings of invalid rows in input order.
func (r ImportResult) Errors() []string {
	var errs []string
	for _, row := range r.rows {
		if !row.Valid() {
			errs = append(errs, row.Error)
		}
	}
	return errs
}

type importResultJSON struct {
	Rows         []RowOutcome `json:"rows"`
	ValidCount   int          `json:"validCount"`
	InvalidCount int          `json:"invalidCount"`
}

func (r ImportResult) MarshalJSON() ([]byte, error) {
	rows := r.rows
	if rows == nil {
		rows = []RowOutcome{}
	}
	return json.Marshal(importResultJSON{
		Rows:         rows,
		ValidCount:   r.ValidCount(),
		InvalidCount: r.InvalidCount(),
	})
}

func (r *ImportResult) UnmarshalJSON(data []byte) error {
	var raw importResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.rows = raw.Rows
	return nil
}
