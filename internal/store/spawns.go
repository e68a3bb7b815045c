package store

import (
	"context"
	"fmt"

	"github.com/zulandar/aocrank/internal/models"
	"gorm.io/gorm/clause"
)

// SaveSpawn caches a spawn request and returns its id. Saving a spawn whose
// id is already cached succeeds without writing.
func (s *Store) SaveSpawn(ctx context.Context, spawn models.CachedSpawn) (string, error) {
	spawn.CachedAt = spawn.CachedAt.UTC()
	if err := spawn.Validate(); err != nil {
		return "", err
	}

	created, err := insertIdempotent(ctx, s.db, &spawn)
	s.recordWrite("spawn", spawn.ID, created, err)
	if err != nil {
		return "", fmt.Errorf("store: save spawn %s: %w", spawn.ID, err)
	}
	if !created {
		s.confirmSpawn(ctx, spawn)
	}
	return spawn.ID, nil
}

// confirmSpawn compares an already cached spawn with the one being saved
// and logs an id collision.
func (s *Store) confirmSpawn(ctx context.Context, spawn models.CachedSpawn) {
	var existing models.CachedSpawn
	if err := s.db.WithContext(ctx).Where("id = ?", spawn.ID).Take(&existing).Error; err != nil {
		s.logger.Warn("Could not load existing spawn for comparison", "id", spawn.ID, "error", err)
		return
	}
	if existing.FromTxID != spawn.FromTxID || existing.ProcessID != spawn.ProcessID {
		s.logger.Warn("Cached spawn differs from the one being saved",
			"id", spawn.ID,
			"existingFromTxId", existing.FromTxID,
			"fromTxId", spawn.FromTxID,
		)
	}
}

// FindSpawnsByOrigin returns every cached spawn produced by fromTxID, or
// ErrNotFound when there are none.
func (s *Store) FindSpawnsByOrigin(ctx context.Context, fromTxID string) ([]models.CachedSpawn, error) {
	if fromTxID == "" {
		return nil, fmt.Errorf("store: find spawns: fromTxId is required")
	}
	var spawns []models.CachedSpawn
	err := s.db.WithContext(ctx).
		Where(&models.CachedSpawn{FromTxID: fromTxID}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "cachedAt"}}).
		Order("id").
		Find(&spawns).Error
	if err != nil {
		return nil, fmt.Errorf("store: find spawns from %s: %w", fromTxID, err)
	}
	if len(spawns) == 0 {
		return nil, ErrNotFound
	}
	for i := range spawns {
		if err := spawns[i].Validate(); err != nil {
			return nil, fmt.Errorf("store: find spawns from %s: %w", fromTxID, err)
		}
	}
	return spawns, nil
}

// DeleteSpawn removes a cached spawn and returns its id.
func (s *Store) DeleteSpawn(ctx context.Context, id string) (string, error) {
	return s.deleteByID(ctx, &models.CachedSpawn{}, "spawn", id)
}
