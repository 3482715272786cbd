package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// TemplateFilename is the download name of the import template.
const TemplateFilename = "menu_items_template.csv"

// templateRows are the illustrative rows shipped in the template, one per
// common bowl size.
var templateRows = [][]string{
	{"Caesar Salad", "Classic", "gm350", "250", "350", "15", "25", "18", "5", "3"},
	{"Greek Salad", "Mediterranean", "gm250", "200", "280", "12", "20", "15", "4", "2"},
	{"Protein Power Bowl", "High Protein", "gm500", "350", "450", "35", "30", "12", "8", "4"},
}

// Template returns the seed CSV users fill in for a bulk import.
func Template() []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = WriteTemplate(&buf)
	return buf.Bytes()
}

// WriteTemplate writes the header and example rows to w.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write template header: %w", err)
	}
	for _, row := range templateRows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write template row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportColumns is the header of a catalog export. The first ColumnCount
// columns match the import contract so an export can be re-imported.
var ExportColumns = append(append([]string(nil), Columns...), "active")

// ExportFilename returns the dated download name for a catalog export.
func ExportFilename(now time.Time) string {
	return "menu_items_export_" + now.Format("2006-01-02") + ".csv"
}

// WriteExport writes products as CSV with every cell quoted.
func WriteExport(w io.Writer, products []Product) error {
	if err := writeQuotedLine(w, ExportColumns); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, p := range products {
		if err := writeQuotedLine(w, exportRecord(p)); err != nil {
			return fmt.Errorf("write export row %q: %w", p.Name, err)
		}
	}
	return nil
}

func exportRecord(p Product) []string {
	return []string{
		p.Name,
		p.Category,
		p.BowlType.String(),
		strconv.FormatInt(p.Price, 10),
		strconv.FormatInt(p.Calories, 10),
		strconv.FormatInt(p.Protein, 10),
		strconv.FormatInt(p.Carbs, 10),
		strconv.FormatInt(p.Fat, 10),
		strconv.FormatInt(p.Fiber, 10),
		strconv.FormatInt(p.Sugar, 10),
		strconv.FormatBool(p.Active),
	}
}

// writeQuotedLine quotes every cell, which csv.Writer only does on demand.
func writeQuotedLine(w io.Writer, cells []string) error {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
