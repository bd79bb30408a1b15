package core

import (
	"fmt"
	"time"
)

// ActionType identifies a rate limited write action.
type ActionType string

const (
	ActionPostCreation    ActionType = "post_creation"
	ActionCommentCreation ActionType = "comment_creation"
)

// Actions lists every rate limited action in display order.
func Actions() []ActionType {
	return []ActionType{ActionPostCreation, ActionCommentCreation}
}

// Noun returns the word used in user-facing limiter messages.
func (a ActionType) Noun() string {
	switch a {
	case ActionPostCreation:
		return "post"
	case ActionCommentCreation:
		return "comment"
	default:
		return string(a)
	}
}

// RateLimitPolicy configures the sliding window for one action type.
type RateLimitPolicy struct {
	MaxActions int           `json:"max_actions" yaml:"max_actions"`
	Window     time.Duration `json:"window" yaml:"window"`
	KeyPrefix  string        `json:"key" yaml:"key"`
}

// Validate reports whether the policy can be enforced.
func (p RateLimitPolicy) Validate() error {
	if p.MaxActions <= 0 {
		return fmt.Errorf("max actions must be positive, got %d", p.MaxActions)
	}
	if p.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", p.Window)
	}
	if p.KeyPrefix == "" {
		return fmt.Errorf("policy key is required")
	}
	return nil
}

// WindowMinutes returns the window length in minutes.
func (p RateLimitPolicy) WindowMinutes() float64 {
	return p.Window.Minutes()
}

// DefaultRateLimitPolicies returns the built-in policies.
func DefaultRateLimitPolicies() map[ActionType]RateLimitPolicy {
	return map[ActionType]RateLimitPolicy{
		ActionPostCreation:    {MaxActions: 10, Window: 10 * time.Minute, KeyPrefix: "posts"},
		ActionCommentCreation: {MaxActions: 20, Window: 5 * time.Minute, KeyPrefix: "comments"},
	}
}

// RateLimitWindow is the persisted per-user, per-action timestamp log.
// Timestamps are milliseconds since epoch in insertion (chronological) order.
type RateLimitWindow struct {
	Timestamps  []int64 `json:"timestamps"`
	LastCleanup int64   `json:"lastCleanup"`
}

// Outcome classifies a limiter decision.
type Outcome int

const (
	OutcomeAllowed Outcome = iota
	OutcomeDenied
	// OutcomeIndeterminate means the window could not be read. It permits the action.
	OutcomeIndeterminate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeDenied:
		return "denied"
	case OutcomeIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// Decision is the result of a rate limit check.
type Decision struct {
	Outcome        Outcome
	TimeUntilReset time.Duration
	Message        string
	Err            error
}

// Permits reports whether the caller may proceed.
func (d Decision) Permits() bool {
	return d.Outcome != OutcomeDenied
}

// RateLimitStatus is a display snapshot of a window.
type RateLimitStatus struct {
	Action         ActionType     `json:"action"`
	Current        int            `json:"current"`
	Max            int            `json:"max"`
	WindowMinutes  float64        `json:"window_minutes"`
	TimeUntilReset *time.Duration `json:"time_until_reset,omitempty"`
}
