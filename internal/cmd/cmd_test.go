package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockstreet/blockstreet/internal/config"
	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/kv"
	"github.com/blockstreet/blockstreet/internal/output"
	"github.com/blockstreet/blockstreet/internal/server/handlers"
)

func TestFeedQuery(t *testing.T) {
	q, title, err := feedQuery("", "")
	require.NoError(t, err)
	assert.Equal(t, core.CollectionPosts, q.Collection)
	assert.Empty(t, q.FilterField)
	assert.Equal(t, "Feed", title)

	q, title, err = feedQuery(" u2 ", "")
	require.NoError(t, err)
	assert.Equal(t, core.CollectionPosts, q.Collection)
	assert.Equal(t, "user_id", q.FilterField)
	assert.Equal(t, "u2", q.FilterValue)
	assert.Equal(t, "Posts by u2", title)

	q, _, err = feedQuery("", "p1")
	require.NoError(t, err)
	assert.Equal(t, core.CollectionComments, q.Collection)
	assert.Equal(t, "post_id", q.FilterField)

	_, _, err = feedQuery("u2", "p1")
	require.Error(t, err)
}

func TestSelectActions(t *testing.T) {
	policies := core.DefaultRateLimitPolicies()
	policies["story_creation"] = core.RateLimitPolicy{MaxActions: 1, Window: time.Hour, KeyPrefix: "stories"}

	actions, err := selectActions(policies, "")
	require.NoError(t, err)
	assert.Equal(t, []core.ActionType{core.ActionPostCreation, core.ActionCommentCreation, "story_creation"}, actions)

	actions, err = selectActions(policies, " Comment_Creation ")
	require.NoError(t, err)
	assert.Equal(t, []core.ActionType{core.ActionCommentCreation}, actions)

	_, err = selectActions(policies, "likes")
	require.Error(t, err)

	assert.Equal(t, []string{"posts", "comments"},
		policyBuckets(policies, []core.ActionType{core.ActionPostCreation, core.ActionCommentCreation, "missing"}))
}

func TestNewLimiterUsesConfiguredPolicies(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	storage := kv.NewRedisStorage(client, "cmdtest")

	cfg := &config.Config{RateLimits: config.RateLimitsConfig{
		Policies: map[string]config.PolicyConfig{"post_creation": {MaxActions: 2}},
	}}
	limiter, err := newLimiter(cfg, storage)
	require.NoError(t, err)
	assert.Equal(t, 2, limiter.Policies[core.ActionPostCreation].MaxActions)
	assert.Equal(t, 10*time.Minute, limiter.Policies[core.ActionPostCreation].Window)

	storage.TTL = longestWindow(limiter.Policies)
	assert.Equal(t, 10*time.Minute, storage.TTL)

	ctx := context.Background()
	require.NoError(t, limiter.RecordAction(ctx, "u1", core.ActionPostCreation))
	require.NoError(t, limiter.RecordAction(ctx, "u1", core.ActionPostCreation))

	decision, err := limiter.CheckRateLimit(ctx, "u1", core.ActionPostCreation)
	require.NoError(t, err)
	assert.False(t, decision.Permits())
	assert.True(t, server.Exists("cmdtest:rateLimit_u1_posts"))
	assert.Equal(t, 10*time.Minute, server.TTL("cmdtest:rateLimit_u1_posts"))

	cfg.RateLimits.Policies["post_creation"] = config.PolicyConfig{MaxActions: -1}
	_, err = newLimiter(cfg, storage)
	require.Error(t, err)
}

func TestLongestWindow(t *testing.T) {
	assert.Zero(t, longestWindow(nil))

	policies := core.DefaultRateLimitPolicies()
	assert.Equal(t, 10*time.Minute, longestWindow(policies))

	policies["story_creation"] = core.RateLimitPolicy{MaxActions: 1, Window: 24 * time.Hour, KeyPrefix: "stories"}
	assert.Equal(t, 24*time.Hour, longestWindow(policies))
}

func TestUsesRedis(t *testing.T) {
	assert.False(t, usesRedis(&config.Config{}))
	assert.False(t, usesRedis(&config.Config{Storage: config.StorageConfig{Driver: "store"}}))
	assert.True(t, usesRedis(&config.Config{Storage: config.StorageConfig{Driver: " Redis "}}))
}

func TestRunHealthChecks(t *testing.T) {
	checkers := map[string]handlers.HealthChecker{
		"store": handlers.CheckerFunc(func(context.Context) error { return nil }),
		"redis": handlers.CheckerFunc(func(context.Context) error { return errors.New("connection refused") }),
		"slow": handlers.CheckerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	}

	failed := runHealthChecks(context.Background(), checkers, 50*time.Millisecond)
	require.Len(t, failed, 2)
	assert.EqualError(t, failed["redis"], "connection refused")
	assert.ErrorIs(t, failed["slow"], context.DeadlineExceeded)
	assert.NotContains(t, failed, "store")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "rate-limit.status.u1", sanitizeFilename("rate-limit.status.u1"))
	assert.Equal(t, "rate-limit.status.user-1", sanitizeFilename("Rate-Limit.Status.User 1"))
	assert.Equal(t, "output", sanitizeFilename(" ..// "))
}

func newOutputCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addOutputFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestWriteFormattedToOutDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	cmd := newOutputCommand(t, "--output-format", "json", "--out-dir", dir)

	statuses := []core.RateLimitStatus{{Action: core.ActionPostCreation, Current: 3, Max: 10, WindowMinutes: 10}}
	err := writeFormatted(cmd, "rate-limit.status.u1", func(f output.Formatter) (string, error) {
		return f.FormatRateLimits(statuses)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "rate-limit.status.u1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"current": 3`)
	assert.True(t, bytes.HasSuffix(data, []byte("\n")))
}

func TestOutputTargetsMutuallyExclusive(t *testing.T) {
	cmd := newOutputCommand(t, "--out", "a.txt", "--out-dir", "b")
	_, _, err := openCommandSink(cmd, "x")
	require.Error(t, err)

	cmd = newOutputCommand(t, "--output-format", "yaml")
	_, _, err = openCommandSink(cmd, "x")
	require.Error(t, err)
}

func TestWriteRateLimitResetResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRateLimitResetResult(output.FormatTable, &buf, 3, 0, true))
	assert.Equal(t, "Would delete 3 rate limit window(s)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeRateLimitResetResult(output.FormatTable, &buf, 3, 2, false))
	assert.Equal(t, "Deleted 2/3 rate limit window(s)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeRateLimitResetResult(output.FormatJSON, &buf, 1, 1, false))
	assert.JSONEq(t, `{"matched":1,"deleted":1,"dry_run":false}`, buf.String())
}

func TestServeOverrides(t *testing.T) {
	savedHost, savedPort := serverHost, serverPort
	t.Cleanup(func() { serverHost, serverPort = savedHost, savedPort })

	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().StringVar(&serverHost, "host", "localhost", "")
	cmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "")

	require.NoError(t, cmd.ParseFlags(nil))
	assert.Empty(t, serveOverrides(cmd))

	require.NoError(t, cmd.ParseFlags([]string{"--port", "9000"}))
	assert.Equal(t, map[string]any{"server.port": 9000}, serveOverrides(cmd))
}

func TestDescribeDenialPassesOtherErrorsThrough(t *testing.T) {
	cmd := &cobra.Command{Use: "post"}
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)

	plain := errors.New("boom")
	assert.Same(t, plain, describeDenial(cmd, plain))
	assert.Empty(t, stderr.String())
}

func TestCheckedContent(t *testing.T) {
	text, err := checkedContent("  hello   street  ")
	require.NoError(t, err)
	assert.Equal(t, "hello street", text)

	_, err = checkedContent("   ")
	require.Error(t, err)
}

func TestUserCheckRejectsBeforeOpeningStore(t *testing.T) {
	cmd := &cobra.Command{Use: "check"}
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetContext(context.Background())

	require.NoError(t, userCheckCmd.RunE(cmd, []string{"john.doe"}))
	assert.Equal(t, "john.doe: unavailable (Username cannot contain /, ., #, $, [, or ])\n", stdout.String())

	assert.Equal(t, "street_01: available", usernameVerdict("street_01", true))
	assert.Equal(t, "street_01: taken", usernameVerdict("street_01", false))
}
