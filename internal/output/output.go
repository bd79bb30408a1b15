package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
	"github.com/blockstreet/blockstreet/internal/core/store"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders command results.
type Formatter interface {
	FormatPage(title string, page engine.Page[core.Item]) (string, error)
	FormatRateLimits(statuses []core.RateLimitStatus) (string, error)
	FormatRateLimitEntries(entries []store.RateLimitEntry) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

const maxContentWidth = 60

func itemCells(item core.Item) []string {
	counts := ""
	if item.PostID == "" {
		counts = fmt.Sprintf("%d likes, %d comments", item.Likes, item.CommentsCount)
	}
	author := item.Username
	if author == "" {
		author = item.AuthorID
	}
	return []string{
		item.ID,
		author,
		truncate(item.Content, maxContentWidth),
		item.CreatedAt.UTC().Format(time.RFC3339),
		counts,
	}
}

func pageSummary(page engine.Page[core.Item]) string {
	hidden := page.RawCount - len(page.Items)
	summary := fmt.Sprintf("%d shown", len(page.Items))
	if hidden > 0 {
		summary += fmt.Sprintf(", %d hidden", hidden)
	}
	if page.HasMore {
		summary += ", more available"
	}
	return summary
}

func statusCells(status core.RateLimitStatus) []string {
	return []string{
		string(status.Action),
		fmt.Sprintf("%d/%d", status.Current, status.Max),
		formatMinutes(status.WindowMinutes),
		formatReset(status.TimeUntilReset),
	}
}

func entryCells(entry store.RateLimitEntry) []string {
	if entry.Corrupt {
		return []string{entry.UserID, entry.Bucket, "corrupt", "-", entry.UpdatedAt.Format(time.RFC3339)}
	}
	oldest := "-"
	if len(entry.Window.Timestamps) > 0 {
		first := entry.Window.Timestamps[0]
		for _, ts := range entry.Window.Timestamps[1:] {
			first = min(first, ts)
		}
		oldest = time.UnixMilli(first).UTC().Format(time.RFC3339)
	}
	return []string{
		entry.UserID,
		entry.Bucket,
		fmt.Sprintf("%d", len(entry.Window.Timestamps)),
		oldest,
		entry.UpdatedAt.Format(time.RFC3339),
	}
}

func formatMinutes(minutes float64) string {
	if minutes == float64(int(minutes)) {
		return fmt.Sprintf("%dm", int(minutes))
	}
	return fmt.Sprintf("%.1fm", minutes)
}

func formatReset(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	return d.Round(time.Second).String()
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}
