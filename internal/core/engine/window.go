package engine

import (
	"fmt"
	"math"
	"time"
)

// pruneWindow keeps timestamps in (now-window, now], dropping entries stamped
// after now by a skewed clock. Order is preserved.
func pruneWindow(timestamps []int64, nowMs int64, window time.Duration) []int64 {
	cutoff := nowMs - window.Milliseconds()
	pruned := make([]int64, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts > cutoff && ts <= nowMs {
			pruned = append(pruned, ts)
		}
	}
	return pruned
}

func oldestTimestamp(timestamps []int64) int64 {
	oldest := timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts < oldest {
			oldest = ts
		}
	}
	return oldest
}

// resetAfter returns how long until the oldest surviving timestamp leaves the
// window, clamped to (0, window].
func resetAfter(oldestMs, nowMs int64, window time.Duration) time.Duration {
	remaining := time.Duration(oldestMs+window.Milliseconds()-nowMs) * time.Millisecond
	if remaining <= 0 {
		return time.Millisecond
	}
	if remaining > window {
		return window
	}
	return remaining
}

// ceilMinutes rounds up to whole seconds first, then to whole minutes.
func ceilMinutes(d time.Duration) int {
	seconds := math.Ceil(float64(d.Milliseconds()) / 1000)
	return int(math.Ceil(seconds / 60))
}

func denialMessage(noun string, d time.Duration) string {
	minutes := ceilMinutes(d)
	suffix := "s"
	if minutes == 1 {
		suffix = ""
	}
	return fmt.Sprintf("Slow down please. You can %s again in %d minute%s.", noun, minutes, suffix)
}
