package metrics

import (
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockstreet/blockstreet/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	t.Cleanup(observability.InstallTelemetry(sys))
	return collector
}

func TestRateLimitMetrics(t *testing.T) {
	collector := setupTelemetry(t)

	RecordRateLimitDecision("post_creation", "allowed")
	RecordRateLimitDecision("post_creation", "denied")
	RecordRateLimitFailOpen("comment_creation", "check")

	assert.Greater(t, collector.CountMetricsByName(RateLimitDecisionsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitFailOpenTotal), 0)
}

func TestFeedMetrics(t *testing.T) {
	collector := setupTelemetry(t)

	RecordFeedPage("posts", true, 3)
	RecordBlockListFailOpen("posts")

	assert.Greater(t, collector.CountMetricsByName(FeedPagesTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(FeedItemsFiltered), 0)
	assert.Greater(t, collector.CountMetricsByName(BlockListFailOpenTotal), 0)
}

func TestErrorMetrics(t *testing.T) {
	collector := setupTelemetry(t)

	RecordError("RATE_LIMITED", 429)
	RecordErrorByEndpoint("/v1/posts", "RATE_LIMITED")
	RecordPanic()

	assert.Greater(t, collector.CountMetricsByName(ErrorsTotalName), 0)
	assert.Greater(t, collector.CountMetricsByName(ErrorsByEndpointName), 0)
	assert.Greater(t, collector.CountMetricsByName(PanicsTotalName), 0)
}

func TestMetricsWithoutTelemetry(t *testing.T) {
	restore := observability.InstallTelemetry(nil)
	t.Cleanup(restore)

	assert.NotPanics(t, func() {
		RecordRateLimitDecision("post_creation", "allowed")
		RecordFeedPage("comments", false, 0)
		RecordError("INTERNAL_ERROR", 500)
		SetServerStartTime(1735689600)
	})
}
