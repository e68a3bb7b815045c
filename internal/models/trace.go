package models

import "time"

// MessageTrace is an append-only lineage record for one cranked message.
// Traces form a forest: Parent links to an already persisted trace.
type MessageTrace struct {
	ID       string     `gorm:"primaryKey;size:64" json:"id"`
	Parent   *string    `gorm:"column:parent;size:64;index" json:"parent"`
	Children StringList `gorm:"column:children;type:text" json:"children"`
	Spawns   StringList `gorm:"column:spawns;type:text" json:"spawns"`
	From     string     `gorm:"column:from;size:64;index" json:"from"`
	To       string     `gorm:"column:to;size:64;index" json:"to"`
	Message  JSON       `gorm:"column:message;type:text" json:"message"`
	Trace    JSON       `gorm:"column:trace;type:text" json:"trace"`
	TracedAt time.Time  `gorm:"column:tracedAt;not null;index" json:"tracedAt"`
}

// Validate checks the shape of a trace and that it cannot be its own
// ancestor or descendant.
func (t *MessageTrace) Validate() error {
	const entity = "messageTrace"
	if t.ID == "" {
		return NewValidationError(entity, "id", "must be a non-empty string")
	}
	if t.TracedAt.IsZero() {
		return NewValidationError(entity, "tracedAt", "must be a timestamp")
	}
	if t.Parent != nil {
		if *t.Parent == "" {
			return NewValidationError(entity, "parent", "must be null or a non-empty string")
		}
		if *t.Parent == t.ID {
			return NewValidationError(entity, "parent", "a trace cannot be its own parent")
		}
	}
	for _, c := range t.Children {
		if c == t.ID {
			return NewValidationError(entity, "children", "a trace cannot be its own child")
		}
	}
	for _, s := range t.Spawns {
		if s == t.ID {
			return NewValidationError(entity, "spawns", "a trace cannot spawn itself")
		}
	}
	return nil
}
