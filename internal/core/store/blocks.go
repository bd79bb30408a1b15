package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/blockstreet/blockstreet/internal/content"
	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
)

// ErrUsernameTaken is returned when another user already holds a username.
var ErrUsernameTaken = errors.New("username is already taken")

// CreateUserProfile claims username for userID. The name is validated,
// stored lower-cased, and must not belong to another user. An existing
// profile keeps its block list and takes the new name.
func (s *Store) CreateUserProfile(ctx context.Context, userID, username string) (*core.UserProfile, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", engine.ErrInvalidInput)
	}
	username = strings.TrimSpace(username)
	if err := content.ValidateUsername(username); err != nil {
		return nil, err
	}
	name := content.NormalizeUsername(username)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var holder string
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, name).Scan(&holder)
		switch {
		case err == nil && holder != userID:
			return fmt.Errorf("%s: %w", name, ErrUsernameTaken)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check username: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, username, blocked_users, created_at)
			VALUES (?, ?, '[]', ?)
			ON CONFLICT(id) DO UPDATE SET username = excluded.username
		`, userID, name, s.now().UnixMilli())
		if err != nil {
			if strings.Contains(strings.ToUpper(err.Error()), "UNIQUE") {
				return fmt.Errorf("%s: %w", name, ErrUsernameTaken)
			}
			return fmt.Errorf("store user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

// IsUsernameAvailable reports whether no user holds username, compared
// case-insensitively.
func (s *Store) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	profile, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return profile == nil, nil
}

// GetUser returns a profile, or nil when the user is unknown.
func (s *Store) GetUser(ctx context.Context, userID string) (*core.UserProfile, error) {
	return s.queryUser(ctx, "id", strings.TrimSpace(userID))
}

// GetUserByUsername returns the profile holding username, or nil.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*core.UserProfile, error) {
	name := content.NormalizeUsername(username)
	if name == "" {
		return nil, fmt.Errorf("%w: username is required", engine.ErrInvalidInput)
	}
	return s.queryUser(ctx, "username", name)
}

func (s *Store) queryUser(ctx context.Context, column, value string) (*core.UserProfile, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		profile   core.UserProfile
		blocked   string
		createdAt int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, username, blocked_users, created_at
		FROM users
		WHERE `+column+` = ?
		LIMIT 1
	`, value)
	if err := row.Scan(&profile.ID, &profile.Username, &blocked, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}

	ids, err := decodeBlocked(blocked)
	if err != nil {
		return nil, err
	}
	profile.BlockedUsers = ids
	profile.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &profile, nil
}

// BlockedUsers returns the ids userID has blocked. Unknown users have none.
func (s *Store) BlockedUsers(ctx context.Context, userID string) ([]string, error) {
	profile, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return []string{}, nil
	}
	return profile.BlockedUsers, nil
}

// IsUserBlocked reports whether userID has blocked otherID.
func (s *Store) IsUserBlocked(ctx context.Context, userID, otherID string) (bool, error) {
	blocked, err := s.BlockedUsers(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(blocked, strings.TrimSpace(otherID)), nil
}

// BlockUser adds blockedID to userID's block list. Blocking twice is a no-op.
func (s *Store) BlockUser(ctx context.Context, userID, blockedID string) error {
	userID, blockedID = strings.TrimSpace(userID), strings.TrimSpace(blockedID)
	if userID == "" || blockedID == "" {
		return fmt.Errorf("%w: user id and blocked user id are required", engine.ErrInvalidInput)
	}
	if userID == blockedID {
		return fmt.Errorf("%w: users cannot block themselves", engine.ErrInvalidInput)
	}

	return s.updateBlocked(ctx, userID, func(ids []string) []string {
		if slices.Contains(ids, blockedID) {
			return ids
		}
		return append(ids, blockedID)
	})
}

// UnblockUser removes blockedID from userID's block list.
func (s *Store) UnblockUser(ctx context.Context, userID, blockedID string) error {
	userID, blockedID = strings.TrimSpace(userID), strings.TrimSpace(blockedID)
	if userID == "" || blockedID == "" {
		return fmt.Errorf("%w: user id and blocked user id are required", engine.ErrInvalidInput)
	}

	return s.updateBlocked(ctx, userID, func(ids []string) []string {
		return slices.DeleteFunc(ids, func(id string) bool { return id == blockedID })
	})
}

func (s *Store) updateBlocked(ctx context.Context, userID string, mutate func([]string) []string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT blocked_users FROM users WHERE id = ?`, userID).Scan(&raw)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("fetch block list: %w", err)
		}

		ids, err := decodeBlocked(raw)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(mutate(ids))
		if err != nil {
			return fmt.Errorf("encode block list: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, username, blocked_users, created_at)
			VALUES (?, '', ?, ?)
			ON CONFLICT(id) DO UPDATE SET blocked_users = excluded.blocked_users
		`, userID, string(payload), s.now().UnixMilli())
		if err != nil {
			return fmt.Errorf("store block list: %w", err)
		}
		return nil
	})
}

func decodeBlocked(raw string) ([]string, error) {
	ids := []string{}
	if strings.TrimSpace(raw) == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode block list: %w", err)
	}
	return ids, nil
}
