// Package store persists cached outbound messages and spawn requests.
//
// Saves are idempotent: a record is keyed by a deterministic id, so saving it
// twice leaves one row and reports success both times. Lookups by origin
// distinguish "no documents" (ErrNotFound) from storage failures.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by origin lookups that match no records.
var ErrNotFound = errors.New("store: no documents found")

// Store is the message/spawn store backed by GORM.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New creates a Store.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logging.For(logger, "store")}
}

// insertIdempotent inserts rec unless a row with the same primary key exists.
// It reports whether a new row was written. A duplicate-key error from the
// engine is treated the same as a skipped insert.
func insertIdempotent(ctx context.Context, db *gorm.DB, rec any) (bool, error) {
	result := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// recordWrite logs and counts the outcome of an idempotent insert.
func (s *Store) recordWrite(entity, id string, created bool, err error) {
	switch {
	case err != nil:
		metrics.StoreWriteTotal.WithLabelValues(entity, "error").Inc()
		s.logger.Error("Encountered an error when caching "+entity, "id", id, "error", err)
	case created:
		metrics.StoreWriteTotal.WithLabelValues(entity, "created").Inc()
		s.logger.Debug("Cached "+entity, "id", id)
	default:
		metrics.StoreWriteTotal.WithLabelValues(entity, "duplicate").Inc()
		s.logger.Debug("Already cached "+entity, "id", id)
	}
}

// deleteByID removes the row of model with the given id. Deleting a missing
// row is not an error.
func (s *Store) deleteByID(ctx context.Context, model any, entity, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("store: delete %s: id is required", entity)
	}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(model).Error; err != nil {
		s.logger.Error("Encountered an error when deleting "+entity, "id", id, "error", err)
		return "", fmt.Errorf("store: delete %s %s: %w", entity, id, err)
	}
	s.logger.Debug("Deleted "+entity, "id", id)
	return id, nil
}
