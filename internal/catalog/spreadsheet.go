package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseSpreadsheet reads the first worksheet of an XLSX workbook and validates
// it with the same rules as a CSV document.
//
// Row 1 is the header. excelize omits trailing blank cells, so each row is
// padded to the header width before validation; rows with no content at all
// are skipped. Row numbers are the worksheet row numbers.
func ParseSpreadsheet(r io.Reader) (ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ImportResult{}, fmt.Errorf("invalid xlsx: workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ImportResult{}, fmt.Errorf("invalid xlsx: read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return ImportResult{}, nil
	}

	width := len(rows[0])
	outcomes := make([]RowOutcome, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if blankRow(cells) {
			continue
		}
		outcomes = append(outcomes, ValidateRow(padRow(cells, width), i+2))
	}

	return ImportResult{rows: outcomes}, nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func padRow(cells []string, width int) []string {
	if len(cells) >= width {
		return cells
	}
	padded := make([]string, width)
	copy(padded, cells)
	return padded
}
