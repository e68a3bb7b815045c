package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestCachedMessage_Validate(t *testing.T) {
	valid := CachedMessage{
		ID:        "msg-1",
		FromTxID:  "tx-1",
		Msg:       MustJSON(map[string]string{"Target": "p"}),
		CachedAt:  time.Now(),
		ProcessID: "proc-1",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid message: %v", err)
	}

	tests := []struct {
		name  string
		mut   func(m *CachedMessage)
		field string
	}{
		{"missing id", func(m *CachedMessage) { m.ID = "" }, "id"},
		{"missing fromTxId", func(m *CachedMessage) { m.FromTxID = "" }, "fromTxId"},
		{"missing processId", func(m *CachedMessage) { m.ProcessID = "" }, "processId"},
		{"zero cachedAt", func(m *CachedMessage) { m.CachedAt = time.Time{} }, "cachedAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mut(&m)
			err := m.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestCachedSpawn_Validate(t *testing.T) {
	s := CachedSpawn{ID: "s1", FromTxID: "tx", ProcessID: "p"}
	err := s.Validate()
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError for zero cachedAt, got %v", err)
	}
	s.CachedAt = time.Now()
	if err := s.Validate(); err != nil {
		t.Errorf("valid spawn: %v", err)
	}
}

func TestMessageTrace_Validate(t *testing.T) {
	base := MessageTrace{ID: "t1", TracedAt: time.Now()}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid trace: %v", err)
	}

	tests := []struct {
		name  string
		trace MessageTrace
		field string
	}{
		{"self parent", MessageTrace{ID: "t1", Parent: strPtr("t1"), TracedAt: time.Now()}, "parent"},
		{"empty parent", MessageTrace{ID: "t1", Parent: strPtr(""), TracedAt: time.Now()}, "parent"},
		{"self child", MessageTrace{ID: "t1", Children: StringList{"t2", "t1"}, TracedAt: time.Now()}, "children"},
		{"self spawn", MessageTrace{ID: "t1", Spawns: StringList{"t1"}, TracedAt: time.Now()}, "spawns"},
		{"missing tracedAt", MessageTrace{ID: "t1"}, "tracedAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trace.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestMillis_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want Millis
	}{
		{"int64", int64(1700000000000), 1700000000000},
		{"numeric string", "1700000000000", 1700000000000},
		{"numeric bytes", []byte("42"), 42},
		{"float", float64(12), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Millis
			if err := m.Scan(tt.src); err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if m != tt.want {
				t.Errorf("Scan(%v) = %d, want %d", tt.src, m, tt.want)
			}
		})
	}

	var m Millis
	if err := m.Scan("yesterday"); err == nil {
		t.Error("expected error for non-numeric string")
	}
}

func TestMillis_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Millis `json:"a"`
		B Millis `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 10, "b": "20"}`), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.A != 10 || v.B != 20 {
		t.Errorf("got a=%d b=%d, want 10 and 20", v.A, v.B)
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	var holder struct {
		Doc JSON `json:"doc"`
	}
	if err := json.Unmarshal([]byte(`{"doc":{"Target":"p","Tags":[]}}`), &holder); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := json.Marshal(holder)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"doc":{"Target":"p","Tags":[]}}` {
		t.Errorf("Marshal = %s", out)
	}

	var empty JSON
	v, err := empty.Value()
	if err != nil || v != nil {
		t.Errorf("empty JSON Value() = %v, %v; want nil, nil", v, err)
	}
}

func TestStringList_ValueScan(t *testing.T) {
	v, err := StringList(nil).Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "[]" {
		t.Errorf("nil list Value() = %v, want []", v)
	}

	var l StringList
	if err := l.Scan(`["a","b"]`); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(l) != 2 || l[0] != "a" || l[1] != "b" {
		t.Errorf("Scan = %v", l)
	}
}
