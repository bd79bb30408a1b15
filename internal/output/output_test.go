package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
	"github.com/blockstreet/blockstreet/internal/core/store"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func samplePage() engine.Page[core.Item] {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	items := []core.Item{
		{ID: "p2", AuthorID: "u1", Username: "alice", Content: "second | post", CreatedAt: created.Add(time.Minute), Likes: 3, CommentsCount: 1},
		{ID: "p1", AuthorID: "u2", Content: "first post", CreatedAt: created},
	}
	return engine.Page[core.Item]{
		Items:    items,
		Cursor:   engine.CursorFor(items[1]),
		RawCount: 3,
		HasMore:  true,
	}
}

func TestFormatPage(t *testing.T) {
	page := samplePage()

	tableRendered, err := NewFormatter(FormatTable).FormatPage("Feed", page)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "AUTHOR")
	require.Contains(t, tableRendered, "alice")
	require.Contains(t, tableRendered, "u2")
	require.Contains(t, strings.ToLower(tableRendered), "2 shown, 1 hidden, more available")
	require.Contains(t, tableRendered, "next cursor: "+string(page.Cursor))

	jsonRendered, err := NewFormatter(FormatJSON).FormatPage("Feed", page)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"raw_count\": 3")
	require.Contains(t, jsonRendered, "\"has_more\": true")
	require.Contains(t, jsonRendered, "\"user_id\": \"u1\"")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatPage("Feed", page)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "## Feed")
	require.Contains(t, markdownRendered, "| ID | Author | Content | Created | Counts |")
	require.Contains(t, markdownRendered, "second \\| post")
	require.Contains(t, markdownRendered, "3 likes, 1 comments")
}

func TestFormatRateLimits(t *testing.T) {
	reset := 9*time.Minute + 50*time.Second
	statuses := []core.RateLimitStatus{
		{Action: core.ActionPostCreation, Current: 10, Max: 10, WindowMinutes: 10, TimeUntilReset: &reset},
		{Action: core.ActionCommentCreation, Current: 0, Max: 20, WindowMinutes: 5},
	}

	tableRendered, err := NewFormatter(FormatTable).FormatRateLimits(statuses)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "post_creation")
	require.Contains(t, tableRendered, "10/10")
	require.Contains(t, tableRendered, "9m50s")
	require.Contains(t, tableRendered, "0/20")

	jsonRendered, err := NewFormatter(FormatJSON).FormatRateLimits(statuses)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"action\": \"comment_creation\"")
}

func TestFormatRateLimitEntries(t *testing.T) {
	updated := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []store.RateLimitEntry{
		{
			Key:       "rateLimit_alice_posts",
			UserID:    "alice",
			Bucket:    "posts",
			Window:    core.RateLimitWindow{Timestamps: []int64{updated.UnixMilli(), updated.Add(-time.Minute).UnixMilli()}},
			UpdatedAt: updated,
		},
		{Key: "rateLimit_bob_comments", UserID: "bob", Bucket: "comments", UpdatedAt: updated, Corrupt: true},
	}

	tableRendered, err := NewFormatter(FormatTable).FormatRateLimitEntries(entries)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "alice")
	require.Contains(t, tableRendered, "2025-01-01T11:59:00Z")
	require.Contains(t, tableRendered, "corrupt")

	jsonRendered, err := NewFormatter(FormatJSON).FormatRateLimitEntries(entries)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"key\": \"rateLimit_alice_posts\"")
	require.Contains(t, jsonRendered, "\"corrupt\": true")
	require.Contains(t, jsonRendered, "\"timestamps\": []")
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "a b", truncate("a\n  b", 10))
	require.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
