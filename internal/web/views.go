package web

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/JonMunkholm/bowlhouse/internal/importer"
	"github.com/a-h/templ"
)

// PreviewTable renders an import preview as an HTMX fragment: a summary, one
// table row per data row, and a confirm button when anything is importable.
func PreviewTable(p importer.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		res := p.Result
		out := &htmlWriter{w: w}

		out.printf(`<div id="import-preview" data-batch-id="%s">`, templ.EscapeString(p.BatchID))
		out.printf(`<p class="summary"><strong>%s</strong>: %d valid, %d invalid</p>`,
			templ.EscapeString(p.FileName), res.ValidCount(), res.InvalidCount())

		out.print(`<table class="preview"><thead><tr><th>Row</th>`)
		for _, col := range catalog.Columns {
			out.printf(`<th>%s</th>`, templ.EscapeString(col))
		}
		out.print(`<th>Status</th></tr></thead><tbody>`)

		for _, row := range res.Rows() {
			if row.Valid() {
				out.printf(`<tr class="valid"><td>%d</td>`, row.Row)
				for _, cell := range productCells(*row.Product) {
					out.printf(`<td>%s</td>`, templ.EscapeString(cell))
				}
				out.print(`<td>OK</td></tr>`)
				continue
			}
			out.printf(`<tr class="invalid" data-rule="%s"><td>%d</td><td colspan="%d">%s</td><td>Invalid</td></tr>`,
				templ.EscapeString(string(row.Rule)), row.Row, catalog.ColumnCount, templ.EscapeString(row.Error))
		}
		out.print(`</tbody></table>`)

		if res.ValidCount() > 0 {
			out.printf(`<button hx-post="/api/products/import/%s" hx-target="#import-preview" hx-swap="outerHTML">Import %d products</button>`,
				templ.EscapeString(p.BatchID), res.ValidCount())
		}
		out.print(`</div>`)
		return out.err
	})
}

// OutcomeSummary renders the result of a submission.
func OutcomeSummary(o importer.Outcome) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &htmlWriter{w: w}
		out.printf(`<div id="import-preview" class="outcome"><p>Imported %d of %d products.</p>`, o.Accepted, o.Submitted)
		if o.RejectedByServer > 0 {
			out.printf(`<p class="warning">%d rejected by the catalog (duplicate names).</p>`, o.RejectedByServer)
		}
		if o.InvalidRows > 0 {
			out.printf(`<p class="warning">%d rows skipped as invalid.</p>`, o.InvalidRows)
		}
		out.print(`</div>`)
		return out.err
	})
}

// ErrorAlert renders a user message as an alert box.
func ErrorAlert(msg importer.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &htmlWriter{w: w}
		out.printf(`<div class="alert alert-error" role="alert"><p>%s</p>`, templ.EscapeString(msg.Message))
		if msg.Action != "" {
			out.printf(`<p class="action">%s</p>`, templ.EscapeString(msg.Action))
		}
		out.printf(`<small>Code: %s</small></div>`, templ.EscapeString(msg.Code))
		return out.err
	})
}

func productCells(p catalog.Product) []string {
	return []string{
		p.Name,
		p.Category,
		string(p.BowlType),
		strconv.FormatInt(p.Price, 10),
		strconv.FormatInt(p.Calories, 10),
		strconv.FormatInt(p.Protein, 10),
		strconv.FormatInt(p.Carbs, 10),
		strconv.FormatInt(p.Fat, 10),
		strconv.FormatInt(p.Fiber, 10),
		strconv.FormatInt(p.Sugar, 10),
	}
}

// htmlWriter keeps the first write error so components can write freely.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) print(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) printf(format string, args ...any) {
	if h.err == nil {
		_, h.err = fmt.Fprintf(h.w, format, args...)
	}
}
