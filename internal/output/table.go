package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
	"github.com/blockstreet/blockstreet/internal/core/store"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

func (f *TableFormatter) FormatPage(title string, page engine.Page[core.Item]) (string, error) {
	t := newTable(title, "ID", "Author", "Content", "Created", "Counts")
	for _, item := range page.Items {
		t.AppendRow(toRow(itemCells(item)))
	}
	t.AppendFooter(table.Row{"", "", pageSummary(page), "", ""})

	rendered := t.Render()
	if page.HasMore && page.Cursor != "" {
		rendered += "\nnext cursor: " + string(page.Cursor)
	}
	return rendered, nil
}

func (f *TableFormatter) FormatRateLimits(statuses []core.RateLimitStatus) (string, error) {
	t := newTable("Rate limits", "Action", "Used", "Window", "Resets In")
	for _, status := range statuses {
		t.AppendRow(toRow(statusCells(status)))
	}
	return t.Render(), nil
}

func (f *TableFormatter) FormatRateLimitEntries(entries []store.RateLimitEntry) (string, error) {
	t := newTable("", "User", "Bucket", "Actions", "Oldest", "Updated")
	for _, entry := range entries {
		t.AppendRow(toRow(entryCells(entry)))
	}
	return t.Render(), nil
}

func newTable(title string, headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(toRow(headers))
	return t
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}
	return row
}
