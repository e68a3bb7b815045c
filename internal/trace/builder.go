package trace

import (
	"encoding/json"
	"time"

	"github.com/zulandar/aocrank/internal/models"
)

// Builder assembles a trace in memory. Children and spawns are appended as
// the cranked result is processed, then the trace is saved once.
type Builder struct {
	t     models.MessageTrace
	notes []Note
}

// Note is one diagnostic entry in a trace payload.
type Note struct {
	At      time.Time `json:"at"`
	Event   string    `json:"event"`
	Message string    `json:"message,omitempty"`
}

// NewBuilder starts a trace for the message id sent from one process to
// another.
func NewBuilder(id, from, to string) *Builder {
	return &Builder{t: models.MessageTrace{
		ID:       id,
		From:     from,
		To:       to,
		Children: models.StringList{},
		Spawns:   models.StringList{},
	}}
}

// Parent links the trace to an already persisted trace. An empty id clears
// the link.
func (b *Builder) Parent(id string) *Builder {
	if id == "" {
		b.t.Parent = nil
		return b
	}
	b.t.Parent = &id
	return b
}

// Message records the traced message payload.
func (b *Builder) Message(msg models.JSON) *Builder {
	b.t.Message = msg
	return b
}

// Child appends the id of a message produced by the traced one.
func (b *Builder) Child(id string) *Builder {
	b.t.Children = append(b.t.Children, id)
	return b
}

// Spawn appends the id of a spawn produced by the traced message.
func (b *Builder) Spawn(id string) *Builder {
	b.t.Spawns = append(b.t.Spawns, id)
	return b
}

// Note appends a diagnostic entry.
func (b *Builder) Note(event, message string) *Builder {
	b.notes = append(b.notes, Note{At: time.Now().UTC(), Event: event, Message: message})
	return b
}

// Build returns the trace stamped with tracedAt.
func (b *Builder) Build(tracedAt time.Time) models.MessageTrace {
	t := b.t
	t.Children = append(models.StringList{}, b.t.Children...)
	t.Spawns = append(models.StringList{}, b.t.Spawns...)
	t.TracedAt = tracedAt.UTC()
	notes := b.notes
	if notes == nil {
		notes = []Note{}
	}
	data, _ := json.Marshal(map[string]any{"notes": notes})
	t.Trace = models.JSON(data)
	return t
}
