package engine

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockstreet/blockstreet/internal/core"
)

type memoryKV struct {
	values map[string]string
	getErr error
	setErr error
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	val, ok := m.values[key]
	return val, ok, nil
}

func (m *memoryKV) Set(ctx context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *memoryKV) Remove(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(store KeyValueStorage, clock *testClock) *RateLimiter {
	limiter := NewRateLimiter(store, map[core.ActionType]core.RateLimitPolicy{
		core.ActionPostCreation:    {MaxActions: 3, Window: time.Minute, KeyPrefix: "posts"},
		core.ActionCommentCreation: {MaxActions: 5, Window: 30 * time.Second, KeyPrefix: "comments"},
	})
	limiter.Clock = clock.Now
	return limiter
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(&memoryKV{}, clock)
	start := clock.now

	for i := 0; i < 3; i++ {
		decision, err := limiter.CheckRateLimit(ctx, "user-1", core.ActionPostCreation)
		require.NoError(t, err)
		require.Equal(t, core.OutcomeAllowed, decision.Outcome)
		require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))
		if i < 2 {
			clock.Advance(time.Second)
		}
	}

	decision, err := limiter.CheckRateLimit(ctx, "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, core.OutcomeDenied, decision.Outcome)
	require.False(t, decision.Permits())
	require.Equal(t, 58*time.Second, decision.TimeUntilReset)

	clock.now = start.Add(time.Minute)
	decision, err = limiter.CheckRateLimit(ctx, "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, core.OutcomeAllowed, decision.Outcome)
}

func TestRateLimiterResetMonotonic(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(&memoryKV{}, clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))
	}

	previous := time.Minute + time.Nanosecond
	for step := 0; step < 6; step++ {
		decision, err := limiter.CheckRateLimit(ctx, "user-1", core.ActionPostCreation)
		require.NoError(t, err)
		require.Equal(t, core.OutcomeDenied, decision.Outcome)
		require.Greater(t, decision.TimeUntilReset, time.Duration(0))
		require.LessOrEqual(t, decision.TimeUntilReset, time.Minute)
		require.Less(t, decision.TimeUntilReset, previous)
		previous = decision.TimeUntilReset
		clock.Advance(9 * time.Second)
	}
}

func TestRateLimiterDenialMessage(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(&memoryKV{}, nil)
	limiter.Clock = clock.Now

	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))
	}

	decision, err := limiter.CheckRateLimit(ctx, "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, "Slow down please. You can post again in 10 minutes.", decision.Message)

	clock.Advance(9*time.Minute + 30*time.Second)
	decision, err = limiter.CheckRateLimit(ctx, "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, "Slow down please. You can post again in 1 minute.", decision.Message)
}

func TestRateLimiterFailOpenOnReadError(t *testing.T) {
	store := &memoryKV{getErr: errors.New("disk unavailable")}
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(store, clock)

	decision, err := limiter.CheckRateLimit(context.Background(), "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, core.OutcomeIndeterminate, decision.Outcome)
	require.True(t, decision.Permits())
	require.Error(t, decision.Err)

	require.NoError(t, limiter.RecordAction(context.Background(), "user-1", core.ActionPostCreation))

	status, err := limiter.Status(context.Background(), "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, 0, status.Current)
	require.Equal(t, 3, status.Max)
}

func TestRateLimiterRecordSwallowsWriteError(t *testing.T) {
	store := &memoryKV{setErr: errors.New("quota exceeded")}
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(store, clock)

	require.NoError(t, limiter.RecordAction(context.Background(), "user-1", core.ActionPostCreation))
	require.Empty(t, store.values)
}

func TestRateLimiterCorruptWindow(t *testing.T) {
	ctx := context.Background()
	store := &memoryKV{values: map[string]string{"rateLimit_user-1_posts": "{not json"}}
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(store, clock)

	decision, err := limiter.CheckRateLimit(ctx, "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, core.OutcomeIndeterminate, decision.Outcome)

	require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))
	status, err := limiter.Status(ctx, "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, 1, status.Current)
}

func TestRateLimiterRecordPrunesAndPersistsWireFormat(t *testing.T) {
	ctx := context.Background()
	store := &memoryKV{}
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(store, clock)

	require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))
	clock.Advance(2 * time.Minute)
	require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))

	nowMs := clock.now.UnixMilli()
	require.JSONEq(t,
		`{"timestamps":[`+strconv.FormatInt(nowMs, 10)+`],"lastCleanup":`+strconv.FormatInt(nowMs, 10)+`}`,
		store.values["rateLimit_user-1_posts"])
}

func TestPruneWindowBounds(t *testing.T) {
	nowMs := int64(100_000)
	window := time.Minute
	pruned := pruneWindow([]int64{40_000, 40_001, 99_999, 100_000, 100_001, 500_000}, nowMs, window)
	require.Equal(t, []int64{40_001, 99_999, 100_000}, pruned)
}

func TestRateLimiterIgnoresFutureTimestamps(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	future := clock.now.Add(time.Hour).UnixMilli()
	stamps := `[` + strconv.FormatInt(future, 10) + `,` + strconv.FormatInt(future+1, 10) + `,` + strconv.FormatInt(future+2, 10) + `]`
	store := &memoryKV{values: map[string]string{
		"rateLimit_user-1_posts": `{"timestamps":` + stamps + `,"lastCleanup":0}`,
	}}
	limiter := newTestLimiter(store, clock)

	decision, err := limiter.CheckRateLimit(ctx, "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.True(t, decision.Permits())

	require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))
	nowMs := strconv.FormatInt(clock.now.UnixMilli(), 10)
	require.JSONEq(t, `{"timestamps":[`+nowMs+`],"lastCleanup":`+nowMs+`}`, store.values["rateLimit_user-1_posts"])
}

func TestWithRateLimitExecuteThenRecord(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(&memoryKV{}, clock)

	boom := errors.New("backend rejected write")
	_, err := WithRateLimit(ctx, limiter, "user-1", core.ActionPostCreation, func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	status, err := limiter.Status(ctx, "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, 0, status.Current)
	require.Nil(t, status.TimeUntilReset)

	id, err := WithRateLimit(ctx, limiter, "user-1", core.ActionPostCreation, func(context.Context) (string, error) {
		return "post-1", nil
	})
	require.NoError(t, err)
	require.Equal(t, "post-1", id)

	status, err = limiter.Status(ctx, "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, 1, status.Current)
	require.NotNil(t, status.TimeUntilReset)
	require.Equal(t, time.Minute, *status.TimeUntilReset)
	require.Equal(t, float64(1), status.WindowMinutes)
}

func TestWithRateLimitDeniedSkipsAction(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(&memoryKV{}, clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))
	}

	called := false
	_, err := WithRateLimit(ctx, limiter, "user-1", core.ActionPostCreation, func(context.Context) (string, error) {
		called = true
		return "post", nil
	})
	require.False(t, called)
	require.ErrorIs(t, err, ErrRateLimitExceeded)

	var exceeded *RateLimitExceededError
	require.True(t, errors.As(err, &exceeded))
	require.Equal(t, time.Minute, exceeded.RetryAfter)
	require.Equal(t, "Slow down please. You can post again in 1 minute.", exceeded.Error())
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := &memoryKV{}
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(store, clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))
	}

	decision, err := limiter.CheckRateLimit(ctx, "user-2", core.ActionPostCreation)
	require.NoError(t, err)
	require.True(t, decision.Permits())

	decision, err = limiter.CheckRateLimit(ctx, "user-1", core.ActionCommentCreation)
	require.NoError(t, err)
	require.Equal(t, core.OutcomeAllowed, decision.Outcome)

	require.Contains(t, store.values, "rateLimit_user-1_posts")
	require.NotContains(t, store.values, "rateLimit_user-1_comments")
}

func TestRateLimiterClear(t *testing.T) {
	ctx := context.Background()
	store := &memoryKV{}
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(store, clock)

	require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionPostCreation))
	require.NoError(t, limiter.RecordAction(ctx, "user-1", core.ActionCommentCreation))

	require.NoError(t, limiter.Clear(ctx, "user-1", core.ActionCommentCreation))
	require.Contains(t, store.values, "rateLimit_user-1_posts")
	require.NotContains(t, store.values, "rateLimit_user-1_comments")

	require.NoError(t, limiter.Clear(ctx, "user-1"))
	require.Empty(t, store.values)

	err := limiter.Clear(ctx, "user-1", core.ActionType("likes"))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRateLimiterInvalidInput(t *testing.T) {
	limiter := newTestLimiter(&memoryKV{}, &testClock{now: time.Now().UTC()})

	_, err := limiter.CheckRateLimit(context.Background(), " ", core.ActionPostCreation)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = limiter.CheckRateLimit(context.Background(), "user-1", core.ActionType("likes"))
	require.ErrorIs(t, err, ErrInvalidInput)

	require.ErrorIs(t, limiter.RecordAction(context.Background(), "", core.ActionPostCreation), ErrInvalidInput)
}

func TestRateLimiterApplyOverrides(t *testing.T) {
	limiter := NewRateLimiter(&memoryKV{}, nil)

	limiter.ApplyOverrides(map[core.ActionType]core.RateLimitPolicy{
		core.ActionPostCreation:    {MaxActions: 2, Window: time.Second},
		core.ActionCommentCreation: {MaxActions: 0, Window: time.Second},
	})

	require.Equal(t, core.RateLimitPolicy{MaxActions: 2, Window: time.Second, KeyPrefix: "posts"},
		limiter.Policies[core.ActionPostCreation])
	require.Equal(t, 20, limiter.Policies[core.ActionCommentCreation].MaxActions)
}

func TestRateLimiterNilStorageAllows(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)

	decision, err := limiter.CheckRateLimit(context.Background(), "user-1", core.ActionPostCreation)
	require.NoError(t, err)
	require.Equal(t, core.OutcomeAllowed, decision.Outcome)
	require.NoError(t, limiter.RecordAction(context.Background(), "user-1", core.ActionPostCreation))
	require.NoError(t, limiter.Clear(context.Background(), "user-1"))
}
