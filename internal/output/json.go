package output

import (
	"encoding/json"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
	"github.com/blockstreet/blockstreet/internal/core/store"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatPage(_ string, page engine.Page[core.Item]) (string, error) {
	return f.encode(page)
}

func (f *JSONFormatter) FormatRateLimits(statuses []core.RateLimitStatus) (string, error) {
	return f.encode(statuses)
}

// RateLimitEntryJSON is the JSON shape of a stored window.
type RateLimitEntryJSON struct {
	Key        string  `json:"key"`
	UserID     string  `json:"user_id"`
	Bucket     string  `json:"bucket"`
	Timestamps []int64 `json:"timestamps"`
	UpdatedAt  string  `json:"updated_at"`
	Corrupt    bool    `json:"corrupt,omitempty"`
}

func (f *JSONFormatter) FormatRateLimitEntries(entries []store.RateLimitEntry) (string, error) {
	out := make([]RateLimitEntryJSON, 0, len(entries))
	for _, entry := range entries {
		timestamps := entry.Window.Timestamps
		if timestamps == nil {
			timestamps = []int64{}
		}
		out = append(out, RateLimitEntryJSON{
			Key:        entry.Key,
			UserID:     entry.UserID,
			Bucket:     entry.Bucket,
			Timestamps: timestamps,
			UpdatedAt:  entry.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Corrupt:    entry.Corrupt,
		})
	}
	return f.encode(out)
}

func (f *JSONFormatter) encode(value any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
