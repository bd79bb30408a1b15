package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blockstreet/blockstreet/internal/content"
	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
)

var (
	// ErrNotFound is returned when a referenced post or comment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a user changes a post or comment they did not write.
	ErrForbidden = errors.New("not the author")
)

// filterColumns lists the equality filters each collection accepts.
var filterColumns = map[core.Collection]map[string]string{
	core.CollectionPosts: {
		"user_id": "user_id",
		"userId":  "user_id",
	},
	core.CollectionComments: {
		"post_id": "post_id",
		"postId":  "post_id",
		"user_id": "user_id",
		"userId":  "user_id",
	},
}

const postColumns = `id, user_id, username, content, media_url, media_type, media_thumbnail, likes, comments_count, created_at, updated_at`

const commentColumns = `id, post_id, user_id, username, content, created_at`

// authorName copies the author's profile username onto a new row.
const authorName = `COALESCE((SELECT username FROM users WHERE id = ?), '')`

// QueryOrdered returns up to limit items of q.Collection strictly after the
// cursor, ordered newest first with id as the tie-break.
func (s *Store) QueryOrdered(ctx context.Context, q engine.Query, limit int, after engine.Cursor) ([]core.Item, engine.Cursor, error) {
	if s == nil || s.DB == nil {
		return nil, "", errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		return nil, "", fmt.Errorf("limit must be positive, got %d", limit)
	}

	var (
		table   string
		columns string
	)
	switch q.Collection {
	case core.CollectionPosts:
		table, columns = "posts", postColumns
	case core.CollectionComments:
		table, columns = "comments", commentColumns
	default:
		return nil, "", fmt.Errorf("unknown collection %q", q.Collection)
	}

	clauses := []string{}
	args := []any{}

	if field := strings.TrimSpace(q.FilterField); field != "" {
		column, ok := filterColumns[q.Collection][field]
		if !ok {
			return nil, "", fmt.Errorf("unsupported filter %q on %s", field, q.Collection)
		}
		clauses = append(clauses, column+" = ?")
		args = append(args, q.FilterValue)
	}

	pos, ok, err := after.Decode()
	if err != nil {
		return nil, "", err
	}
	if ok {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, pos.CreatedAtMs, pos.CreatedAtMs, pos.ID)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, columns, table, where), args...)
	if err != nil {
		return nil, "", fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	items := make([]core.Item, 0, limit)
	for rows.Next() {
		var item core.Item
		if q.Collection == core.CollectionPosts {
			item, err = scanPost(rows)
		} else {
			item, err = scanComment(rows)
		}
		if err != nil {
			return nil, "", fmt.Errorf("scan %s: %w", table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("query %s: %w", table, err)
	}

	if len(items) == 0 {
		return items, "", nil
	}
	return items, engine.CursorFor(items[len(items)-1]), nil
}

// GetPost returns a single post.
func (s *Store) GetPost(ctx context.Context, postID string) (*core.Item, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, strings.TrimSpace(postID))
	item, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", postID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch post: %w", err)
	}
	return &item, nil
}

// CreatePost inserts a post and returns its id.
func (s *Store) CreatePost(ctx context.Context, post core.NewPost) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(post.UserID) == "" {
		return "", fmt.Errorf("%w: user id is required", engine.ErrInvalidInput)
	}
	if post.MediaURL != "" && post.MediaType != core.MediaImage && post.MediaType != core.MediaVideo {
		return "", fmt.Errorf("%w: unsupported media type %q", engine.ErrInvalidInput, post.MediaType)
	}

	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO posts (id, user_id, username, content, media_url, media_type, media_thumbnail, likes, comments_count, created_at)
		VALUES (?, ?, `+authorName+`, ?, ?, ?, ?, 0, 0, ?)
	`, id, post.UserID, post.UserID, post.Content,
		nullString(post.MediaURL), nullString(string(post.MediaType)), nullString(post.MediaThumbnail),
		s.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return id, nil
}

// CreateComment inserts a comment and bumps the parent post's comment count.
func (s *Store) CreateComment(ctx context.Context, comment core.NewComment) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(comment.UserID) == "" {
		return "", fmt.Errorf("%w: user id is required", engine.ErrInvalidInput)
	}

	id := uuid.NewString()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE posts SET comments_count = comments_count + 1 WHERE id = ?`, comment.PostID)
		if err != nil {
			return fmt.Errorf("update comment count: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("post %s: %w", comment.PostID, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO comments (id, post_id, user_id, username, content, created_at)
			VALUES (?, ?, ?, `+authorName+`, ?, ?)
		`, id, comment.PostID, comment.UserID, comment.UserID, comment.Content, s.now().UnixMilli()); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdatePost replaces the text of a post userID wrote and stamps updated_at.
func (s *Store) UpdatePost(ctx context.Context, userID, postID, text string) (*core.Item, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	userID, postID = strings.TrimSpace(userID), strings.TrimSpace(postID)
	if userID == "" || postID == "" {
		return nil, fmt.Errorf("%w: user id and post id are required", engine.ErrInvalidInput)
	}
	text = content.Sanitize(text)
	if err := content.Validate(text); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireAuthor(ctx, tx, "post "+postID, userID,
			`SELECT user_id FROM posts WHERE id = ?`, postID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE posts SET content = ?, updated_at = ? WHERE id = ?`,
			text, s.now().UnixMilli(), postID); err != nil {
			return fmt.Errorf("update post: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetPost(ctx, postID)
}

// DeletePost removes a post userID wrote and all of its comments.
func (s *Store) DeletePost(ctx context.Context, userID, postID string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	userID, postID = strings.TrimSpace(userID), strings.TrimSpace(postID)
	if userID == "" || postID == "" {
		return fmt.Errorf("%w: user id and post id are required", engine.ErrInvalidInput)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireAuthor(ctx, tx, "post "+postID, userID,
			`SELECT user_id FROM posts WHERE id = ?`, postID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, postID); err != nil {
			return fmt.Errorf("delete post comments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, postID); err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		return nil
	})
}

// DeleteComment removes a comment userID wrote and decrements its post's
// comment count.
func (s *Store) DeleteComment(ctx context.Context, userID, postID, commentID string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	userID, postID, commentID = strings.TrimSpace(userID), strings.TrimSpace(postID), strings.TrimSpace(commentID)
	if userID == "" || postID == "" || commentID == "" {
		return fmt.Errorf("%w: user id, post id and comment id are required", engine.ErrInvalidInput)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireAuthor(ctx, tx, "comment "+commentID, userID,
			`SELECT user_id FROM comments WHERE id = ? AND post_id = ?`, commentID, postID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, commentID); err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET comments_count = MAX(comments_count - 1, 0) WHERE id = ?`, postID); err != nil {
			return fmt.Errorf("update comment count: %w", err)
		}
		return nil
	})
}

// requireAuthor runs query for a single user_id and checks it is userID.
func requireAuthor(ctx context.Context, tx *sql.Tx, what, userID, query string, args ...any) error {
	var author string
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&author); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return fmt.Errorf("fetch %s: %w", what, err)
	}
	if author != userID {
		return fmt.Errorf("%s: %w", what, ErrForbidden)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (core.Item, error) {
	var (
		item      core.Item
		mediaURL  sql.NullString
		mediaType sql.NullString
		thumbnail sql.NullString
		createdAt int64
		updatedAt sql.NullInt64
	)
	if err := row.Scan(&item.ID, &item.AuthorID, &item.Username, &item.Content,
		&mediaURL, &mediaType, &thumbnail, &item.Likes, &item.CommentsCount, &createdAt, &updatedAt); err != nil {
		return core.Item{}, err
	}
	item.MediaURL = mediaURL.String
	item.MediaType = core.MediaType(mediaType.String)
	item.MediaThumbnail = thumbnail.String
	item.CreatedAt = time.UnixMilli(createdAt).UTC()
	if updatedAt.Valid {
		edited := time.UnixMilli(updatedAt.Int64).UTC()
		item.UpdatedAt = &edited
	}
	return item, nil
}

func scanComment(row rowScanner) (core.Item, error) {
	var (
		item      core.Item
		createdAt int64
	)
	if err := row.Scan(&item.ID, &item.PostID, &item.AuthorID, &item.Username, &item.Content, &createdAt); err != nil {
		return core.Item{}, err
	}
	item.CreatedAt = time.UnixMilli(createdAt).UTC()
	return item, nil
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
