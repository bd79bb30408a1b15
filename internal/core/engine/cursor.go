package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/blockstreet/blockstreet/internal/core"
)

// Cursor is an opaque resume point for an ordered query. The zero value
// requests the first page.
type Cursor string

// ErrInvalidCursor is returned when a cursor cannot be decoded.
var ErrInvalidCursor = fmt.Errorf("%w: malformed cursor", ErrInvalidInput)

// CursorPosition is the decoded form of a Cursor: the sort key of the last
// item of the previous page.
type CursorPosition struct {
	CreatedAtMs int64  `json:"created_at_ms"`
	ID          string `json:"id"`
}

// CreatedAt returns the position timestamp in UTC.
func (p CursorPosition) CreatedAt() time.Time {
	return time.UnixMilli(p.CreatedAtMs).UTC()
}

// CursorFor returns the cursor that resumes strictly after item.
func CursorFor(item core.Item) Cursor {
	payload, err := json.Marshal(CursorPosition{
		CreatedAtMs: item.CreatedAt.UnixMilli(),
		ID:          item.ID,
	})
	if err != nil {
		return ""
	}
	return Cursor(base64.RawURLEncoding.EncodeToString(payload))
}

// IsZero reports whether the cursor requests the first page.
func (c Cursor) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

// Decode parses the cursor. A zero cursor decodes to ok=false.
func (c Cursor) Decode() (CursorPosition, bool, error) {
	if c.IsZero() {
		return CursorPosition{}, false, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(c)))
	if err != nil {
		return CursorPosition{}, false, ErrInvalidCursor
	}
	var pos CursorPosition
	if err := json.Unmarshal(raw, &pos); err != nil || pos.ID == "" {
		return CursorPosition{}, false, ErrInvalidCursor
	}
	return pos, true, nil
}
