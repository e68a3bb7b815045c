// Package tags parses and composes the name/value tag lists carried on every
// ao transaction.
package tags

import (
	"encoding/json"
	"strings"
)

// Protocol tag names.
const (
	DataProtocol = "Data-Protocol"
	Type         = "Type"
	Variant      = "Variant"
	FromProcess  = "From-Process"
	FromModule   = "From-Module"
	Assignments  = "Assignments"
	PushedFor    = "Pushed-For"
	Module       = "Module"
)

// Protocol tag values written on every cranked message.
const (
	ProtocolAO     = "ao"
	TypeMessage    = "Message"
	VariantCurrent = "ao.TN.1"
)

// Reserved lists the tag names the crank owns. Tags with these names on an
// outbound message are dropped before the protocol tags are appended.
var Reserved = []string{DataProtocol, Type, Variant, FromProcess, FromModule, Assignments}

// Tag is a single name/value pair.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parse folds a tag list into a map of name to value. A name that appears
// more than once maps to a []string of its values in order of appearance;
// a name that appears once maps to its string value.
func Parse(list []Tag) map[string]any {
	grouped := make(map[string][]string, len(list))
	for _, t := range list {
		grouped[t.Name] = append(grouped[t.Name], t.Value)
	}

	out := make(map[string]any, len(grouped))
	for name, values := range grouped {
		if len(values) == 1 {
			out[name] = values[0]
			continue
		}
		out[name] = values
	}
	return out
}

// Find returns the first tag with the given name.
func Find(list []Tag, name string) (Tag, bool) {
	for _, t := range list {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// Value returns the value of the first tag with the given name, or "".
func Value(list []Tag, name string) string {
	t, _ := Find(list, name)
	return t.Value
}

// IsReserved reports whether name is one of the crank-owned tag names.
func IsReserved(name string) bool {
	for _, r := range Reserved {
		if r == name {
			return true
		}
	}
	return false
}

// WithoutReserved returns a copy of list with every reserved tag removed.
func WithoutReserved(list []Tag) []Tag {
	out := make([]Tag, 0, len(list))
	for _, t := range list {
		if IsReserved(t.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ComposeOpts holds the values the crank stamps onto an outbound message.
type ComposeOpts struct {
	FromProcess string
	FromModule  string
	// PushedFor is the lineage root. Empty means no Pushed-For tag.
	PushedFor string
}

// Compose builds the outgoing tag set for a cranked message: the message's own
// tags minus reserved names, followed by the protocol tags.
func Compose(msgTags []Tag, opts ComposeOpts) []Tag {
	out := WithoutReserved(msgTags)
	out = append(out,
		Tag{Name: DataProtocol, Value: ProtocolAO},
		Tag{Name: Type, Value: TypeMessage},
		Tag{Name: Variant, Value: VariantCurrent},
		Tag{Name: FromProcess, Value: opts.FromProcess},
		Tag{Name: FromModule, Value: opts.FromModule},
	)
	if opts.PushedFor != "" {
		out = append(out, Tag{Name: PushedFor, Value: opts.PushedFor})
	}
	return out
}

// ParseAssignments extracts the process ids listed in an Assignments tag.
// The value is either a JSON array of strings or a comma separated list.
func ParseAssignments(list []Tag) []string {
	t, ok := Find(list, Assignments)
	if !ok {
		return nil
	}
	raw := strings.TrimSpace(t.Value)
	if raw == "" {
		return nil
	}

	var ids []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &ids); err == nil {
			return compact(ids)
		}
	}
	return compact(strings.Split(raw, ","))
}

func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
