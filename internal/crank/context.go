package crank

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zulandar/aocrank/internal/locator"
	"github.com/zulandar/aocrank/internal/models"
	"github.com/zulandar/aocrank/internal/signer"
	"github.com/zulandar/aocrank/internal/tags"
)

// Outbound is a message as it appears in a process outbox.
type Outbound struct {
	Target string     `json:"Target"`
	Anchor string     `json:"Anchor,omitempty"`
	Data   string     `json:"Data"`
	Tags   []tags.Tag `json:"Tags"`
}

// ParseOutbound decodes an outbox entry. A non-string Data field is kept
// as its JSON text. An entry that is not an object or names no Target is a
// *models.ValidationError.
func ParseOutbound(raw models.JSON) (Outbound, error) {
	const entity = "outboundMessage"
	var wire struct {
		Target string          `json:"Target"`
		Anchor string          `json:"Anchor"`
		Data   json.RawMessage `json:"Data"`
		Tags   []tags.Tag      `json:"Tags"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Outbound{}, models.NewValidationError(entity, "message", "must be a JSON object: "+err.Error())
	}
	if wire.Target == "" {
		return Outbound{}, models.NewValidationError(entity, "Target", "must be a non-empty string")
	}
	out := Outbound{Target: wire.Target, Anchor: wire.Anchor, Tags: wire.Tags}
	data := bytes.TrimSpace(wire.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '"':
		if err := json.Unmarshal(data, &out.Data); err != nil {
			return Outbound{}, models.NewValidationError(entity, "Data", err.Error())
		}
	default:
		out.Data = string(data)
	}
	return out, nil
}

// Message is one cached outbound message handed to the pipeline.
type Message struct {
	ID            string
	FromTxID      string
	FromProcessID string
	// InitialTxID is the lineage root. Empty or equal to ID means the
	// message is itself a root.
	InitialTxID string
	Msg         Outbound
}

// TagAssignment pairs the processes named in an Assignments tag with the
// transaction that carries them.
type TagAssignment struct {
	Processes []string `json:"Processes"`
	Message   string   `json:"Message"`
}

// StageRecord notes whether a stage ran or was skipped.
type StageRecord struct {
	Stage   string `json:"stage"`
	Outcome string `json:"outcome"`
}

// Context accumulates the results of each stage. Fields are set once; a
// stage whose output is already present is skipped, so a Context returned
// with a StageError can be cranked again to resume at the failed stage.
type Context struct {
	Message Message

	IsWallet         *bool
	FromLocation     *locator.Location
	FromSchedProcess *locator.SchedulerProcess
	SchedLocation    *locator.Location

	Tags               []tags.Tag
	PendingAssignments []string

	Tx             *signer.Tx
	TagAssignments []TagAssignment

	Validated bool

	Log []StageRecord
}

// NewContext starts a Context for msg.
func NewContext(msg Message) Context {
	return Context{Message: msg}
}

// Wallet reports whether the target was found to be a wallet.
func (c Context) Wallet() bool {
	return c.IsWallet != nil && *c.IsWallet
}

// StageError is returned when a stage fails. Context holds everything
// accumulated before the failing stage.
type StageError struct {
	Stage   string
	Context Context
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("crank: message %s: stage %s: %v", e.Context.Message.ID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err can only recur when the same input is cranked
// again: err, or every error joined into it, is a *models.ValidationError.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		if len(errs) == 0 {
			return false
		}
		for _, e := range errs {
			if !IsFatal(e) {
				return false
			}
		}
		return true
	}
	return models.IsValidationError(err)
}
