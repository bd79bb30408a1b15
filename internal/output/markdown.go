package output

import (
	"fmt"
	"strings"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
	"github.com/blockstreet/blockstreet/internal/core/store"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatPage(title string, page engine.Page[core.Item]) (string, error) {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(title)))
	}
	writeMarkdownTable(&sb, []string{"ID", "Author", "Content", "Created", "Counts"}, len(page.Items), func(i int) []string {
		return itemCells(page.Items[i])
	})
	sb.WriteString(fmt.Sprintf("\n**Page**: %s\n", pageSummary(page)))
	if page.HasMore && page.Cursor != "" {
		sb.WriteString(fmt.Sprintf("\n**Next cursor**: `%s`\n", page.Cursor))
	}
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatRateLimits(statuses []core.RateLimitStatus) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Rate limits\n\n")
	writeMarkdownTable(&sb, []string{"Action", "Used", "Window", "Resets In"}, len(statuses), func(i int) []string {
		return statusCells(statuses[i])
	})
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatRateLimitEntries(entries []store.RateLimitEntry) (string, error) {
	var sb strings.Builder
	writeMarkdownTable(&sb, []string{"User", "Bucket", "Actions", "Oldest", "Updated"}, len(entries), func(i int) []string {
		return entryCells(entries[i])
	})
	return sb.String(), nil
}

func writeMarkdownTable(sb *strings.Builder, headers []string, rows int, cells func(int) []string) {
	sb.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	sb.WriteString("|")
	for range headers {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
	for i := 0; i < rows; i++ {
		row := cells(i)
		for j := range row {
			row[j] = escapeMarkdownCell(row[j])
		}
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
