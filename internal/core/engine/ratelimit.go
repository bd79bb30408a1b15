package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/metrics"
)

// RateLimitKeyPrefix prefixes every persisted window key.
const RateLimitKeyPrefix = "rateLimit_"

var (
	// ErrRateLimitExceeded matches any *RateLimitExceededError via errors.Is.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidInput is returned for empty users, unknown actions and bad paging arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// RateLimitExceededError carries the user-facing denial.
type RateLimitExceededError struct {
	UserID     string
	Action     core.ActionType
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitExceededError) Error() string {
	if e.Message == "" {
		return ErrRateLimitExceeded.Error()
	}
	return e.Message
}

func (e *RateLimitExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// KeyValueStorage is the durable string store holding rate limit windows.
// Get reports ok=false for absent keys.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// RateLimiter enforces per-user sliding windows on write actions.
type RateLimiter struct {
	Storage  KeyValueStorage
	Policies map[core.ActionType]core.RateLimitPolicy
	Clock    func() time.Time
	Logger   *logging.Logger
}

// NewRateLimiter returns a limiter over storage. A nil policies map selects
// the built-in defaults.
func NewRateLimiter(storage KeyValueStorage, policies map[core.ActionType]core.RateLimitPolicy) *RateLimiter {
	if policies == nil {
		policies = core.DefaultRateLimitPolicies()
	}
	return &RateLimiter{Storage: storage, Policies: policies}
}

// RateLimitKey builds the storage key for a user and policy.
func RateLimitKey(userID string, policy core.RateLimitPolicy) string {
	return RateLimitKeyPrefix + userID + "_" + policy.KeyPrefix
}

// CheckRateLimit decides whether userID may perform action now. It never
// records anything. A storage failure yields OutcomeIndeterminate.
func (r *RateLimiter) CheckRateLimit(ctx context.Context, userID string, action core.ActionType) (core.Decision, error) {
	policy, key, err := r.resolve(userID, action)
	if err != nil {
		return core.Decision{}, err
	}

	window, err := r.load(ctx, key)
	if err != nil {
		r.warn("Rate limit check failed, allowing action", err, userID, action)
		metrics.RecordRateLimitFailOpen(string(action), "check")
		metrics.RecordRateLimitDecision(string(action), core.OutcomeIndeterminate.String())
		return core.Decision{Outcome: core.OutcomeIndeterminate, Err: err}, nil
	}

	nowMs := r.now().UnixMilli()
	active := pruneWindow(window.Timestamps, nowMs, policy.Window)

	if len(active) >= policy.MaxActions {
		wait := resetAfter(oldestTimestamp(active), nowMs, policy.Window)
		metrics.RecordRateLimitDecision(string(action), core.OutcomeDenied.String())
		return core.Decision{
			Outcome:        core.OutcomeDenied,
			TimeUntilReset: wait,
			Message:        denialMessage(action.Noun(), wait),
		}, nil
	}

	metrics.RecordRateLimitDecision(string(action), core.OutcomeAllowed.String())
	return core.Decision{Outcome: core.OutcomeAllowed}, nil
}

// RecordAction appends the current instant to the window. Persistence
// failures are logged and swallowed.
func (r *RateLimiter) RecordAction(ctx context.Context, userID string, action core.ActionType) error {
	policy, key, err := r.resolve(userID, action)
	if err != nil {
		return err
	}
	if r.Storage == nil {
		return nil
	}

	window, err := r.load(ctx, key)
	if err != nil {
		var decodeErr *windowDecodeError
		if !errors.As(err, &decodeErr) {
			r.warn("Rate limit record skipped", err, userID, action)
			metrics.RecordRateLimitFailOpen(string(action), "record")
			return nil
		}
		// Overwrite a corrupt entry rather than leaving it permanently unreadable.
		window = core.RateLimitWindow{}
	}

	nowMs := r.now().UnixMilli()
	window.Timestamps = append(pruneWindow(window.Timestamps, nowMs, policy.Window), nowMs)
	window.LastCleanup = nowMs

	payload, err := json.Marshal(window)
	if err != nil {
		r.warn("Rate limit record encode failed", err, userID, action)
		return nil
	}
	if err := r.Storage.Set(ctx, key, string(payload)); err != nil {
		r.warn("Rate limit record persist failed", err, userID, action)
		metrics.RecordRateLimitFailOpen(string(action), "record")
	}
	return nil
}

// Status reports current usage for display. It does not write.
func (r *RateLimiter) Status(ctx context.Context, userID string, action core.ActionType) (core.RateLimitStatus, error) {
	policy, key, err := r.resolve(userID, action)
	if err != nil {
		return core.RateLimitStatus{}, err
	}

	status := core.RateLimitStatus{
		Action:        action,
		Max:           policy.MaxActions,
		WindowMinutes: policy.WindowMinutes(),
	}

	window, err := r.load(ctx, key)
	if err != nil {
		r.warn("Rate limit status unavailable", err, userID, action)
		return status, nil
	}

	nowMs := r.now().UnixMilli()
	active := pruneWindow(window.Timestamps, nowMs, policy.Window)
	status.Current = len(active)
	if len(active) > 0 {
		wait := resetAfter(oldestTimestamp(active), nowMs, policy.Window)
		status.TimeUntilReset = &wait
	}
	return status, nil
}

// Clear removes stored windows for userID. With no actions, every configured
// action is cleared.
func (r *RateLimiter) Clear(ctx context.Context, userID string, actions ...core.ActionType) error {
	if r == nil || r.Storage == nil {
		return nil
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if len(actions) == 0 {
		for action := range r.Policies {
			actions = append(actions, action)
		}
	}

	var errs []error
	for _, action := range actions {
		policy, ok := r.Policies[action]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action))
			continue
		}
		if err := r.Storage.Remove(ctx, RateLimitKey(userID, policy)); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", action, err))
		}
	}
	return errors.Join(errs...)
}

// ApplyOverrides replaces policies for the given actions. Invalid policies are ignored.
func (r *RateLimiter) ApplyOverrides(overrides map[core.ActionType]core.RateLimitPolicy) {
	if r == nil || len(overrides) == 0 {
		return
	}
	if r.Policies == nil {
		r.Policies = core.DefaultRateLimitPolicies()
	}
	for action, policy := range overrides {
		if policy.KeyPrefix == "" {
			if existing, ok := r.Policies[action]; ok {
				policy.KeyPrefix = existing.KeyPrefix
			}
		}
		if err := policy.Validate(); err != nil {
			continue
		}
		r.Policies[action] = policy
	}
}

// WithRateLimit runs fn only when the limiter permits it, and records the
// action only when fn succeeds.
func WithRateLimit[T any](ctx context.Context, r *RateLimiter, userID string, action core.ActionType, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	decision, err := r.CheckRateLimit(ctx, userID, action)
	if err != nil {
		return zero, err
	}
	if !decision.Permits() {
		return zero, &RateLimitExceededError{
			UserID:     userID,
			Action:     action,
			RetryAfter: decision.TimeUntilReset,
			Message:    decision.Message,
		}
	}

	result, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	if err := r.RecordAction(ctx, userID, action); err != nil {
		return result, err
	}
	return result, nil
}

type windowDecodeError struct {
	key string
	err error
}

func (e *windowDecodeError) Error() string {
	return fmt.Sprintf("decode rate limit window %s: %v", e.key, e.err)
}

func (e *windowDecodeError) Unwrap() error { return e.err }

func (r *RateLimiter) load(ctx context.Context, key string) (core.RateLimitWindow, error) {
	if r.Storage == nil {
		return core.RateLimitWindow{}, nil
	}

	raw, ok, err := r.Storage.Get(ctx, key)
	if err != nil {
		return core.RateLimitWindow{}, fmt.Errorf("read rate limit window %s: %w", key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return core.RateLimitWindow{}, nil
	}

	var window core.RateLimitWindow
	if err := json.Unmarshal([]byte(raw), &window); err != nil {
		return core.RateLimitWindow{}, &windowDecodeError{key: key, err: err}
	}
	return window, nil
}

func (r *RateLimiter) resolve(userID string, action core.ActionType) (core.RateLimitPolicy, string, error) {
	if r == nil {
		return core.RateLimitPolicy{}, "", fmt.Errorf("%w: limiter is nil", ErrInvalidInput)
	}
	if strings.TrimSpace(userID) == "" {
		return core.RateLimitPolicy{}, "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	policy, ok := r.Policies[action]
	if !ok {
		return core.RateLimitPolicy{}, "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}
	return policy, RateLimitKey(userID, policy), nil
}

func (r *RateLimiter) warn(msg string, err error, userID string, action core.ActionType) {
	if r.Logger == nil {
		return
	}
	r.Logger.Warn(msg,
		zap.String("user_id", userID),
		zap.String("action", string(action)),
		zap.Error(err))
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
