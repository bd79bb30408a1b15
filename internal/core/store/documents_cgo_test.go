//go:build cgo

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockstreet/blockstreet/internal/config"
	"github.com/blockstreet/blockstreet/internal/content"
	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	current := c.now
	c.now = c.now.Add(time.Second)
	return current
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	clock := &stepClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store.Clock = clock.Now
	return store
}

func TestDocumentsCreateAndPage(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i := 0; i < 25; i++ {
		_, err := store.CreatePost(ctx, core.NewPost{UserID: "alice", Content: fmt.Sprintf("post %d", i)})
		require.NoError(t, err)
	}

	fetcher := &engine.FeedFetcher{Source: store, Blocks: store}

	first, err := fetcher.Feed(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, first.Items, 20)
	require.True(t, first.HasMore)
	require.Equal(t, "post 24", first.Items[0].Content)

	second, err := fetcher.Feed(ctx, first.Cursor, "")
	require.NoError(t, err)
	require.Len(t, second.Items, 5)
	require.False(t, second.HasMore)
	require.Equal(t, "post 4", second.Items[0].Content)
	require.Equal(t, "post 0", second.Items[4].Content)
}

func TestDocumentsTieBreakOnEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return fixed }

	for i := 0; i < 5; i++ {
		_, err := store.CreatePost(ctx, core.NewPost{UserID: "alice", Content: fmt.Sprintf("post %d", i)})
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	var cursor engine.Cursor
	for {
		items, next, err := store.QueryOrdered(ctx, engine.Query{Collection: core.CollectionPosts}, 2, cursor)
		require.NoError(t, err)
		for _, item := range items {
			require.False(t, seen[item.ID], "duplicate item %s", item.ID)
			seen[item.ID] = true
		}
		if len(items) < 2 {
			break
		}
		cursor = next
	}
	require.Len(t, seen, 5)
}

func TestDocumentsCommentsAndCascade(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	postID, err := store.CreatePost(ctx, core.NewPost{
		UserID:    "alice",
		Content:   "with media",
		MediaURL:  "https://cdn.example/1.jpg",
		MediaType: core.MediaImage,
	})
	require.NoError(t, err)

	commentIDs := []string{}
	for i := 0; i < 3; i++ {
		id, err := store.CreateComment(ctx, core.NewComment{PostID: postID, UserID: "bob", Content: fmt.Sprintf("c%d", i)})
		require.NoError(t, err)
		commentIDs = append(commentIDs, id)
	}

	post, err := store.GetPost(ctx, postID)
	require.NoError(t, err)
	require.Equal(t, 3, post.CommentsCount)
	require.Equal(t, core.MediaImage, post.MediaType)

	fetcher := &engine.FeedFetcher{Source: store}
	page, err := fetcher.PostComments(ctx, postID, "", "")
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.Equal(t, "c2", page.Items[0].Content)
	require.Equal(t, postID, page.Items[0].PostID)

	require.ErrorIs(t, store.DeleteComment(ctx, "alice", postID, commentIDs[0]), ErrForbidden)
	require.NoError(t, store.DeleteComment(ctx, "bob", postID, commentIDs[0]))
	require.ErrorIs(t, store.DeleteComment(ctx, "bob", postID, commentIDs[0]), ErrNotFound)
	post, err = store.GetPost(ctx, postID)
	require.NoError(t, err)
	require.Equal(t, 2, post.CommentsCount)

	require.ErrorIs(t, store.DeletePost(ctx, "bob", postID), ErrForbidden)
	require.NoError(t, store.DeletePost(ctx, "alice", postID))
	_, err = store.GetPost(ctx, postID)
	require.ErrorIs(t, err, ErrNotFound)

	items, _, err := store.QueryOrdered(ctx, engine.Query{Collection: core.CollectionComments, FilterField: "post_id", FilterValue: postID}, 10, "")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestDocumentsValidation(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.CreateComment(ctx, core.NewComment{PostID: "missing", UserID: "bob", Content: "hi"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.CreatePost(ctx, core.NewPost{UserID: "alice", Content: "x", MediaURL: "u", MediaType: "gif"})
	require.Error(t, err)

	_, _, err = store.QueryOrdered(ctx, engine.Query{Collection: core.CollectionPosts, FilterField: "content"}, 10, "")
	require.Error(t, err)

	_, _, err = store.QueryOrdered(ctx, engine.Query{Collection: "likes"}, 10, "")
	require.Error(t, err)

	require.ErrorIs(t, store.DeletePost(ctx, "alice", "missing"), ErrNotFound)
	require.ErrorIs(t, store.DeletePost(ctx, "", "missing"), engine.ErrInvalidInput)
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	postID, err := store.CreatePost(ctx, core.NewPost{UserID: "alice", Content: "first draft"})
	require.NoError(t, err)

	post, err := store.GetPost(ctx, postID)
	require.NoError(t, err)
	require.Nil(t, post.UpdatedAt)

	updated, err := store.UpdatePost(ctx, "alice", postID, "  second   draft ")
	require.NoError(t, err)
	require.Equal(t, "second draft", updated.Content)
	require.NotNil(t, updated.UpdatedAt)
	require.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	_, err = store.UpdatePost(ctx, "bob", postID, "hijacked")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = store.UpdatePost(ctx, "alice", postID, "total scam")
	require.ErrorIs(t, err, content.ErrRejected)

	_, err = store.UpdatePost(ctx, "alice", "missing", "text")
	require.ErrorIs(t, err, ErrNotFound)

	post, err = store.GetPost(ctx, postID)
	require.NoError(t, err)
	require.Equal(t, "second draft", post.Content)
}

func TestDocumentsCopyProfileUsername(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.CreateUserProfile(ctx, "alice", "Alice_01")
	require.NoError(t, err)

	postID, err := store.CreatePost(ctx, core.NewPost{UserID: "alice", Content: "named"})
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, core.NewComment{PostID: postID, UserID: "alice", Content: "me again"})
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, core.NewComment{PostID: postID, UserID: "anon", Content: "who"})
	require.NoError(t, err)

	post, err := store.GetPost(ctx, postID)
	require.NoError(t, err)
	require.Equal(t, "alice_01", post.Username)

	comments, _, err := store.QueryOrdered(ctx, engine.Query{Collection: core.CollectionComments, FilterField: "post_id", FilterValue: postID}, 10, "")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, "", comments[0].Username)
	require.Equal(t, "alice_01", comments[1].Username)
}

func TestUserPostsFilteredByBlocks(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i := 0; i < 20; i++ {
		author := "alice"
		if i < 15 {
			author = "spammer"
		}
		_, err := store.CreatePost(ctx, core.NewPost{UserID: author, Content: fmt.Sprintf("post %d", i)})
		require.NoError(t, err)
	}
	require.NoError(t, store.BlockUser(ctx, "viewer", "spammer"))

	fetcher := &engine.FeedFetcher{Source: store, Blocks: store}
	page, err := fetcher.Feed(ctx, "", "viewer")
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	require.Equal(t, 20, page.RawCount)
	require.True(t, page.HasMore)

	next, err := fetcher.Feed(ctx, page.Cursor, "viewer")
	require.NoError(t, err)
	require.Empty(t, next.Items)
	require.False(t, next.HasMore)

	mine, err := fetcher.UserPosts(ctx, "spammer", "", "")
	require.NoError(t, err)
	require.Len(t, mine.Items, 15)
}
