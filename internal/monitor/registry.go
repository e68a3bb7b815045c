// Package monitor tracks processes under periodic polling and runs the
// poller that cranks their new results.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no monitored process has the requested id.
var ErrNotFound = errors.New("monitor: process not monitored")

// Registry persists monitored processes.
type Registry struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(db *gorm.DB, logger *slog.Logger) *Registry {
	return &Registry{db: db, logger: logging.For(logger, "monitor-registry")}
}

// Update carries the fields the poller advances each cycle.
type Update struct {
	ID             string
	LastFromCursor *string
	LastRunTime    *models.Millis
}

// Save starts monitoring a process. Saving an id that is already monitored
// only replaces its authorization and process data; the polling position
// and creation time are kept.
func (r *Registry) Save(ctx context.Context, p models.MonitoredProcess) (string, error) {
	if p.CreatedAt == 0 {
		p.CreatedAt = models.NowMillis()
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"authorized", "processData"}),
	}).Create(&p).Error
	if err != nil {
		r.logger.Error("Encountered an error when saving monitored process", "id", p.ID, "error", err)
		return "", fmt.Errorf("monitor: save %s: %w", p.ID, err)
	}
	r.logger.Info("Saved monitored process", "id", p.ID, "authorized", p.Authorized)
	return p.ID, nil
}

// FindAll returns every monitored process. No monitors is an empty slice.
func (r *Registry) FindAll(ctx context.Context) ([]models.MonitoredProcess, error) {
	procs := []models.MonitoredProcess{}
	if err := r.db.WithContext(ctx).Order("createdAt").Order("id").Find(&procs).Error; err != nil {
		return nil, fmt.Errorf("monitor: find all: %w", err)
	}
	valid := procs[:0]
	for _, p := range procs {
		if err := p.Validate(); err != nil {
			r.logger.Warn("Skipping invalid monitored process", "id", p.ID, "error", err)
			continue
		}
		valid = append(valid, p)
	}
	return valid, nil
}

// Get loads one monitored process.
func (r *Registry) Get(ctx context.Context, id string) (models.MonitoredProcess, error) {
	var p models.MonitoredProcess
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("monitor: get %s: %w", id, err)
	}
	return p, nil
}

// Update overlays the cursor and last run time on the stored record and
// writes it back. It is not atomic across concurrent updaters; the last
// write wins.
func (r *Registry) Update(ctx context.Context, u Update) (string, error) {
	if u.ID == "" {
		return "", models.NewValidationError("monitoredProcess", "id", "must be a non-empty string")
	}
	existing, err := r.Get(ctx, u.ID)
	if err != nil {
		return "", err
	}

	// Scanning through models.Millis has already turned a numeric-string
	// createdAt into an integer; saving below persists the integer form.
	existing.LastFromCursor = u.LastFromCursor
	existing.LastRunTime = u.LastRunTime
	if err := existing.Validate(); err != nil {
		return "", err
	}

	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		r.logger.Error("Encountered an error when updating monitored process", "id", u.ID, "error", err)
		return "", fmt.Errorf("monitor: update %s: %w", u.ID, err)
	}
	r.logger.Debug("Updated monitored process", "id", u.ID)
	return u.ID, nil
}

// Delete stops monitoring a process.
func (r *Registry) Delete(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("monitor: delete: id is required")
	}
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.MonitoredProcess{}).Error; err != nil {
		return "", fmt.Errorf("monitor: delete %s: %w", id, err)
	}
	r.logger.Info("Deleted monitored process", "id", id)
	return id, nil
}
