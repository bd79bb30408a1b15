package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/metrics"
)

// Default page sizes used by the convenience fetchers.
const (
	DefaultPostPageSize    = 20
	DefaultCommentPageSize = 30
)

// Query selects an ordered collection with an optional equality filter.
type Query struct {
	Collection  core.Collection
	FilterField string
	FilterValue string
}

// Page is one page of filtered results.
//
// HasMore is derived from RawCount, the number of items the source returned
// before blocked authors were removed.
type Page[T any] struct {
	Items    []T    `json:"items"`
	Cursor   Cursor `json:"cursor,omitempty"`
	RawCount int    `json:"raw_count"`
	HasMore  bool   `json:"has_more"`
}

// OrderedSource returns up to limit items strictly after the cursor, newest
// first, along with a cursor for the last returned item.
type OrderedSource interface {
	QueryOrdered(ctx context.Context, q Query, limit int, after Cursor) ([]core.Item, Cursor, error)
}

// BlockList resolves the authors a viewer has blocked.
type BlockList interface {
	BlockedUsers(ctx context.Context, viewerID string) ([]string, error)
}

// QueryError wraps a failure of the ordered query. Callers may retry.
type QueryError struct {
	Collection core.Collection
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Collection, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Retryable reports whether the fetch may be retried.
func (e *QueryError) Retryable() bool { return true }

// FeedFetcher pages through ordered collections, hiding blocked authors.
type FeedFetcher struct {
	Source          OrderedSource
	Blocks          BlockList
	Logger          *logging.Logger
	PostPageSize    int
	CommentPageSize int
}

// FetchPage returns the page after cursor. When viewerID is set, items by
// authors the viewer blocked are removed; a failing block lookup shows
// everything.
func (f *FeedFetcher) FetchPage(ctx context.Context, q Query, pageSize int, cursor Cursor, viewerID string) (Page[core.Item], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if f == nil || f.Source == nil {
		return Page[core.Item]{}, errors.New("feed source is not configured")
	}
	if pageSize <= 0 {
		return Page[core.Item]{}, fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidInput, pageSize)
	}
	if _, _, err := cursor.Decode(); err != nil {
		return Page[core.Item]{}, err
	}

	var (
		raw     []core.Item
		last    Cursor
		blocked map[string]struct{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, next, err := f.Source.QueryOrdered(gctx, q, pageSize, cursor)
		if err != nil {
			return &QueryError{Collection: q.Collection, Err: err}
		}
		raw, last = items, next
		return nil
	})
	if viewerID = strings.TrimSpace(viewerID); viewerID != "" && f.Blocks != nil {
		g.Go(func() error {
			blocked = f.blockedSet(gctx, viewerID, q.Collection)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Page[core.Item]{}, err
	}

	items := make([]core.Item, 0, len(raw))
	for _, item := range raw {
		if _, hide := blocked[item.AuthorID]; hide {
			continue
		}
		items = append(items, item)
	}

	page := Page[core.Item]{
		Items:    items,
		RawCount: len(raw),
		HasMore:  len(raw) == pageSize,
	}
	if page.HasMore {
		page.Cursor = last
		if page.Cursor.IsZero() {
			page.Cursor = CursorFor(raw[len(raw)-1])
		}
	}

	metrics.RecordFeedPage(string(q.Collection), page.HasMore, len(raw)-len(items))
	return page, nil
}

// Feed pages through all posts.
func (f *FeedFetcher) Feed(ctx context.Context, cursor Cursor, viewerID string) (Page[core.Item], error) {
	return f.FetchPage(ctx, Query{Collection: core.CollectionPosts}, f.PostPageSizeOrDefault(), cursor, viewerID)
}

// UserPosts pages through the posts authored by userID.
func (f *FeedFetcher) UserPosts(ctx context.Context, userID string, cursor Cursor, viewerID string) (Page[core.Item], error) {
	if strings.TrimSpace(userID) == "" {
		return Page[core.Item]{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	q := Query{Collection: core.CollectionPosts, FilterField: "user_id", FilterValue: userID}
	return f.FetchPage(ctx, q, f.PostPageSizeOrDefault(), cursor, viewerID)
}

// PostComments pages through the comments on postID.
func (f *FeedFetcher) PostComments(ctx context.Context, postID string, cursor Cursor, viewerID string) (Page[core.Item], error) {
	if strings.TrimSpace(postID) == "" {
		return Page[core.Item]{}, fmt.Errorf("%w: post id is required", ErrInvalidInput)
	}
	q := Query{Collection: core.CollectionComments, FilterField: "post_id", FilterValue: postID}
	return f.FetchPage(ctx, q, f.CommentPageSizeOrDefault(), cursor, viewerID)
}

func (f *FeedFetcher) blockedSet(ctx context.Context, viewerID string, collection core.Collection) map[string]struct{} {
	ids, err := f.Blocks.BlockedUsers(ctx, viewerID)
	if err != nil {
		metrics.RecordBlockListFailOpen(string(collection))
		if f.Logger != nil {
			f.Logger.Warn("Blocked user lookup failed, showing unfiltered page",
				zap.String("viewer_id", viewerID),
				zap.String("collection", string(collection)),
				zap.Error(err))
		}
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// PostPageSizeOrDefault returns the configured post page size.
func (f *FeedFetcher) PostPageSizeOrDefault() int {
	if f != nil && f.PostPageSize > 0 {
		return f.PostPageSize
	}
	return DefaultPostPageSize
}

// CommentPageSizeOrDefault returns the configured comment page size.
func (f *FeedFetcher) CommentPageSizeOrDefault() int {
	if f != nil && f.CommentPageSize > 0 {
		return f.CommentPageSize
	}
	return DefaultCommentPageSize
}
