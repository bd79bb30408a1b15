package metrics

import (
	"strconv"

	"github.com/blockstreet/blockstreet/internal/observability"
)

// Application metric names
const (
	RateLimitDecisionsTotal = "ratelimit_decisions_total"
	RateLimitFailOpenTotal  = "ratelimit_fail_open_total"

	FeedPagesTotal         = "feed_pages_total"
	FeedItemsFiltered      = "feed_items_filtered"
	BlockListFailOpenTotal = "feed_blocklist_fail_open_total"

	ServerStartTime = "app_server_start_time_seconds"
)

// RecordRateLimitDecision counts limiter outcomes per action.
func RecordRateLimitDecision(action string, outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitDecisionsTotal,
			1,
			map[string]string{
				"action":  action,
				"outcome": outcome,
			},
		)
	}
}

// RecordRateLimitFailOpen counts storage failures absorbed by the limiter.
// Stage is "check" or "record".
func RecordRateLimitFailOpen(action string, stage string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitFailOpenTotal,
			1,
			map[string]string{
				"action": action,
				"stage":  stage,
			},
		)
	}
}

// RecordFeedPage counts fetched pages and the items hidden by block filtering.
func RecordFeedPage(collection string, hasMore bool, filtered int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		FeedPagesTotal,
		1,
		map[string]string{
			"collection": collection,
			"has_more":   strconv.FormatBool(hasMore),
		},
	)
	_ = observability.TelemetrySystem.Gauge(
		FeedItemsFiltered,
		float64(filtered),
		map[string]string{"collection": collection},
	)
}

// RecordBlockListFailOpen counts block-list lookups that failed and were ignored.
func RecordBlockListFailOpen(collection string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			BlockListFailOpenTotal,
			1,
			map[string]string{"collection": collection},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
