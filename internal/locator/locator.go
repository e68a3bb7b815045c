// Package locator resolves process ids to the scheduler that serves them.
package locator

import (
	"context"
	"errors"

	"github.com/zulandar/aocrank/internal/tags"
)

// ErrNotFound is returned when the router or scheduler does not know a
// process.
var ErrNotFound = errors.New("locator: process not found")

// Location is the scheduler endpoint serving a process.
type Location struct {
	URL     string `json:"url"`
	Address string `json:"address"`
}

// SchedulerProcess is a scheduler's record of a process.
type SchedulerProcess struct {
	ProcessID string     `json:"process_id"`
	Tags      []tags.Tag `json:"tags"`
}

// Module returns the module the process was spawned from, or "".
func (p SchedulerProcess) Module() string {
	return tags.Value(p.Tags, tags.Module)
}

// Locator finds schedulers and tells processes from wallets.
type Locator interface {
	Locate(ctx context.Context, processID string) (Location, error)
	FetchSchedulerProcess(ctx context.Context, processID, url string) (SchedulerProcess, error)
	IsWallet(ctx context.Context, id string) (bool, error)
}
