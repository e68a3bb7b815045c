// Package cursor decodes and encodes the pagination cursors used when
// reading evaluation results from a compute unit.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Criteria is the decoded position a cursor points at.
type Criteria struct {
	Timestamp int64  `json:"timestamp"`
	Ordinate  string `json:"ordinate,omitempty"`
	Cron      string `json:"cron,omitempty"`
	Sort      string `json:"sort,omitempty"`
}

// Parse decodes a cursor. It returns nil criteria for an empty cursor.
//
// A cursor is either a base64 encoded JSON object or a raw timestamp. When
// the value does not decode as a base64 JSON object it must parse as an
// integer timestamp, otherwise Parse fails.
func Parse(raw string) (*Criteria, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if c, ok := decodeObject(raw); ok {
		return c, nil
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cursor: %q is neither a base64 cursor nor a timestamp", raw)
	}
	return &Criteria{Timestamp: ts}, nil
}

// Encode produces the base64 JSON form of c.
func Encode(c Criteria) string {
	data, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(data)
}

func decodeObject(raw string) (*Criteria, bool) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(raw)
		if err != nil {
			return nil, false
		}
	}

	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var c Criteria
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false
	}
	return &c, true
}
