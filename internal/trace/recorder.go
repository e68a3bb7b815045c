// Package trace records and queries message lineage.
//
// Traces form a forest. A trace may only name a parent that is already
// persisted, so a trace can never become its own ancestor.
package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/metrics"
	"github.com/zulandar/aocrank/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Criteria selects traces. Limit is required.
type Criteria struct {
	ID      string
	Process string // matches either end of the message
	Wallet  string // matches the sender
	Limit   int
	Offset  int
}

// Validate checks that the query is bounded.
func (c Criteria) Validate() error {
	if c.Limit <= 0 {
		return models.NewValidationError("traceQuery", "limit", "is required and must be positive")
	}
	if c.Offset < 0 {
		return models.NewValidationError("traceQuery", "offset", "must not be negative")
	}
	return nil
}

// Recorder persists MessageTrace records.
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(db *gorm.DB, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, logger: logging.For(logger, "trace")}
}

// Save persists a trace and returns its id. Saving an id that already exists
// leaves the stored trace untouched.
func (r *Recorder) Save(ctx context.Context, t models.MessageTrace) (string, error) {
	t.TracedAt = t.TracedAt.UTC()
	if err := t.Validate(); err != nil {
		return "", err
	}
	if t.Parent != nil {
		ok, err := r.Exists(ctx, *t.Parent)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", models.NewValidationError("messageTrace", "parent", fmt.Sprintf("parent %s is not persisted", *t.Parent))
		}
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&t)
	err := result.Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = nil
	}
	if err != nil {
		metrics.StoreWriteTotal.WithLabelValues("trace", "error").Inc()
		r.logger.Error("Encountered an error when saving trace", "id", t.ID, "error", err)
		return "", fmt.Errorf("trace: save %s: %w", t.ID, err)
	}
	if result.RowsAffected > 0 {
		metrics.StoreWriteTotal.WithLabelValues("trace", "created").Inc()
	} else {
		metrics.StoreWriteTotal.WithLabelValues("trace", "duplicate").Inc()
	}
	r.logger.Debug("Saved trace", "id", t.ID, "children", len(t.Children), "spawns", len(t.Spawns))
	return t.ID, nil
}

// Exists reports whether a trace with id is persisted.
func (r *Recorder) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MessageTrace{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("trace: exists %s: %w", id, err)
	}
	return count > 0, nil
}

// Find returns traces matching c, newest first.
func (r *Recorder) Find(ctx context.Context, c Criteria) ([]models.MessageTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&models.MessageTrace{})
	if c.ID != "" {
		q = q.Where("id = ?", c.ID)
	}
	if c.Process != "" {
		q = q.Where(clause.Or(
			clause.Eq{Column: clause.Column{Name: "from"}, Value: c.Process},
			clause.Eq{Column: clause.Column{Name: "to"}, Value: c.Process},
		))
	}
	if c.Wallet != "" {
		q = q.Where(clause.Eq{Column: clause.Column{Name: "from"}, Value: c.Wallet})
	}

	var rows []models.MessageTrace
	err := q.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "tracedAt"}, Desc: true}).
		Order("id").
		Limit(c.Limit).
		Offset(c.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("trace: find: %w", err)
	}

	// A malformed stored trace is reported in the log and left out of the
	// result; the query itself still succeeds.
	traces := make([]models.MessageTrace, 0, len(rows))
	for _, t := range rows {
		if err := t.Validate(); err != nil {
			r.logger.Warn("Skipping malformed trace", "id", t.ID, "error", err)
			continue
		}
		traces = append(traces, t)
	}
	return traces, nil
}
