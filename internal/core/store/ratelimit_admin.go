package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
)

// RateLimitEntry is one persisted sliding window.
type RateLimitEntry struct {
	Key       string
	UserID    string
	Bucket    string
	Window    core.RateLimitWindow
	UpdatedAt time.Time
	// Corrupt is set when the stored value could not be decoded.
	Corrupt bool
}

// RateLimitQuery selects persisted windows. User requires Buckets, the policy
// keys to match for that user.
type RateLimitQuery struct {
	All     bool
	User    string
	Buckets []string
	Prefix  string
}

func (q RateLimitQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.User) != "" {
		if len(q.Buckets) == 0 {
			return errors.New("user query requires at least one bucket")
		}
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --user, or --prefix")
}

func (q RateLimitQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "WHERE substr(key, 1, ?) = ?", []any{len(engine.RateLimitKeyPrefix), engine.RateLimitKeyPrefix}, nil
	}
	if user := strings.TrimSpace(q.User); user != "" {
		placeholders := make([]string, 0, len(q.Buckets))
		args := make([]any, 0, len(q.Buckets))
		for _, bucket := range q.Buckets {
			placeholders = append(placeholders, "?")
			args = append(args, engine.RateLimitKey(user, core.RateLimitPolicy{KeyPrefix: bucket}))
		}
		return "WHERE key IN (" + strings.Join(placeholders, ", ") + ")", args, nil
	}
	prefix := engine.RateLimitKeyPrefix + strings.TrimSpace(q.Prefix)
	return "WHERE substr(key, 1, ?) = ?", []any{len(prefix), prefix}, nil
}

func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT key, value, updated_at
		FROM kv
		%s
		ORDER BY key
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []RateLimitEntry{}
	for rows.Next() {
		var (
			key       string
			value     string
			updatedAt int64
		)
		if err := rows.Scan(&key, &value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}

		entry := RateLimitEntry{Key: key, UpdatedAt: time.UnixMilli(updatedAt).UTC()}
		entry.UserID, entry.Bucket = splitRateLimitKey(key)
		if err := json.Unmarshal([]byte(value), &entry.Window); err != nil {
			entry.Corrupt = true
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}

	return entries, nil
}

func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM kv
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM kv
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return affected, nil
}

// splitRateLimitKey splits "rateLimit_{user}_{bucket}" at the last underscore.
func splitRateLimitKey(key string) (userID string, bucket string) {
	rest := strings.TrimPrefix(key, engine.RateLimitKeyPrefix)
	idx := strings.LastIndex(rest, "_")
	if idx < 0 {
		return rest, ""
	}
	return rest[:idx], rest[idx+1:]
}
