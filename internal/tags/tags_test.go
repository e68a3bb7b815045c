package tags

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   []Tag
		want map[string]any
	}{
		{
			name: "nil list",
			in:   nil,
			want: map[string]any{},
		},
		{
			name: "single values",
			in:   []Tag{{"Action", "Transfer"}, {"Quantity", "10"}},
			want: map[string]any{"Action": "Transfer", "Quantity": "10"},
		},
		{
			name: "repeated name becomes list in order",
			in:   []Tag{{"To", "a"}, {"Action", "Send"}, {"To", "b"}, {"To", "c"}},
			want: map[string]any{"To": []string{"a", "b", "c"}, "Action": "Send"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFindAndValue(t *testing.T) {
	list := []Tag{{"Module", "mod-1"}, {"Module", "mod-2"}}

	tag, ok := Find(list, "Module")
	if !ok {
		t.Fatal("expected Module tag")
	}
	if tag.Value != "mod-1" {
		t.Errorf("Find returned %q, want first value %q", tag.Value, "mod-1")
	}
	if got := Value(list, "Missing"); got != "" {
		t.Errorf("Value(Missing) = %q, want empty", got)
	}
}

func TestWithoutReserved(t *testing.T) {
	in := []Tag{
		{DataProtocol, "old"},
		{"foo", "bar"},
		{Type, "Process"},
		{Variant, "x"},
		{FromProcess, "spoofed"},
		{FromModule, "spoofed"},
		{Assignments, "[]"},
		{"baz", "qux"},
	}
	got := WithoutReserved(in)
	want := []Tag{{"foo", "bar"}, {"baz", "qux"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WithoutReserved() = %v, want %v", got, want)
	}
	if len(in) != 8 {
		t.Error("WithoutReserved must not modify its input")
	}
}

func TestCompose_NoDuplicateProtocolTags(t *testing.T) {
	inputs := [][]Tag{
		nil,
		{{"foo", "bar"}},
		{{DataProtocol, "old"}, {DataProtocol, "older"}, {Type, "Message"}},
		{{FromProcess, "a"}, {FromModule, "b"}, {Variant, "c"}, {"keep", "me"}},
	}
	protocol := []string{DataProtocol, Type, Variant, FromProcess, FromModule}

	for i, in := range inputs {
		out := Compose(in, ComposeOpts{FromProcess: "proc", FromModule: "mod"})
		for _, name := range protocol {
			count := 0
			for _, tag := range out {
				if tag.Name == name {
					count++
				}
			}
			if count != 1 {
				t.Errorf("input %d: %s appears %d times, want 1", i, name, count)
			}
		}
	}
}

func TestCompose_ScenarioA(t *testing.T) {
	out := Compose([]Tag{{DataProtocol, "old"}, {"foo", "bar"}}, ComposeOpts{
		FromProcess: "origin-proc",
		FromModule:  "mod-1",
	})

	want := []Tag{
		{"foo", "bar"},
		{DataProtocol, "ao"},
		{Type, "Message"},
		{Variant, "ao.TN.1"},
		{FromProcess, "origin-proc"},
		{FromModule, "mod-1"},
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("Compose() = %v, want %v", out, want)
	}
}

func TestCompose_PushedFor(t *testing.T) {
	out := Compose(nil, ComposeOpts{FromProcess: "p", PushedFor: "root-tx"})
	if got := Value(out, PushedFor); got != "root-tx" {
		t.Errorf("Pushed-For = %q, want %q", got, "root-tx")
	}

	out = Compose(nil, ComposeOpts{FromProcess: "p"})
	if _, ok := Find(out, PushedFor); ok {
		t.Error("expected no Pushed-For tag without a lineage root")
	}
}

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name string
		in   []Tag
		want []string
	}{
		{"absent", []Tag{{"foo", "bar"}}, nil},
		{"empty value", []Tag{{Assignments, ""}}, nil},
		{"json array", []Tag{{Assignments, `["p1","p2"]`}}, []string{"p1", "p2"}},
		{"comma list", []Tag{{Assignments, "p1, p2 ,,p3"}}, []string{"p1", "p2", "p3"}},
		{"empty json array", []Tag{{Assignments, "[]"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAssignments(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAssignments() = %v, want %v", got, tt.want)
			}
		})
	}
}
