package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JSON is an opaque JSON document stored as text.
type JSON json.RawMessage

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("models: cannot scan %T into JSON", src)
	}
	return nil
}

// MarshalJSON emits the document verbatim, or null when empty.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON keeps a copy of the raw document.
func (j *JSON) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*j = nil
		return nil
	}
	*j = append((*j)[:0], data...)
	return nil
}

// MustJSON marshals v, panicking on failure. Intended for literals and tests.
func MustJSON(v any) JSON {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return JSON(data)
}

// StringList is an ordered list of ids stored as a JSON array.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into StringList", src)
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("models: decode string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// Millis is an epoch-milliseconds integer. Stored rows and API payloads may
// carry it as a numeric string; both decode to the integer form.
type Millis int64

// NowMillis returns the current time in epoch milliseconds.
func NowMillis() Millis {
	return Millis(time.Now().UnixMilli())
}

// ParseMillis normalizes an integer, float or numeric string to Millis.
func ParseMillis(v any) (Millis, error) {
	switch n := v.(type) {
	case Millis:
		return n, nil
	case int64:
		return Millis(n), nil
	case int:
		return Millis(n), nil
	case float64:
		return Millis(int64(n)), nil
	case []byte:
		return ParseMillis(string(n))
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("models: %q is not an integer timestamp", n)
		}
		return Millis(i), nil
	case time.Time:
		return Millis(n.UnixMilli()), nil
	default:
		return 0, fmt.Errorf("models: cannot use %T as an integer timestamp", v)
	}
}

// Value implements driver.Valuer.
func (m Millis) Value() (driver.Value, error) {
	return int64(m), nil
}

// Scan implements sql.Scanner.
func (m *Millis) Scan(src any) error {
	v, err := ParseMillis(src)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Millis) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseMillis(raw)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
