package store

import (
	"context"
	"fmt"

	"github.com/zulandar/aocrank/internal/models"
	"gorm.io/gorm/clause"
)

// SaveMsg caches an outbound message and returns its id. Saving a message
// whose id is already cached succeeds without writing.
func (s *Store) SaveMsg(ctx context.Context, msg models.CachedMessage) (string, error) {
	msg.CachedAt = msg.CachedAt.UTC()
	if err := msg.Validate(); err != nil {
		return "", err
	}

	created, err := insertIdempotent(ctx, s.db, &msg)
	s.recordWrite("msg", msg.ID, created, err)
	if err != nil {
		return "", fmt.Errorf("store: save msg %s: %w", msg.ID, err)
	}
	if !created {
		s.confirmMsg(ctx, msg)
	}
	return msg.ID, nil
}

// confirmMsg compares an already cached message with the one being saved.
// Ids are derived from the origin, so a mismatch means two different
// messages were given the same id; it is logged, not surfaced.
func (s *Store) confirmMsg(ctx context.Context, msg models.CachedMessage) {
	var existing models.CachedMessage
	if err := s.db.WithContext(ctx).Where("id = ?", msg.ID).Take(&existing).Error; err != nil {
		s.logger.Warn("Could not load existing msg for comparison", "id", msg.ID, "error", err)
		return
	}
	if existing.FromTxID != msg.FromTxID || existing.ProcessID != msg.ProcessID {
		s.logger.Warn("Cached msg differs from the one being saved",
			"id", msg.ID,
			"existingFromTxId", existing.FromTxID,
			"fromTxId", msg.FromTxID,
		)
	}
}

// FindMsgsByOrigin returns every cached message produced by fromTxID, or
// ErrNotFound when there are none.
func (s *Store) FindMsgsByOrigin(ctx context.Context, fromTxID string) ([]models.CachedMessage, error) {
	if fromTxID == "" {
		return nil, fmt.Errorf("store: find msgs: fromTxId is required")
	}
	var msgs []models.CachedMessage
	err := s.db.WithContext(ctx).
		Where(&models.CachedMessage{FromTxID: fromTxID}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "cachedAt"}}).
		Order("id").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("store: find msgs from %s: %w", fromTxID, err)
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	for i := range msgs {
		if err := msgs[i].Validate(); err != nil {
			return nil, fmt.Errorf("store: find msgs from %s: %w", fromTxID, err)
		}
	}
	return msgs, nil
}

// DeleteMsg removes a cached message and returns its id.
func (s *Store) DeleteMsg(ctx context.Context, id string) (string, error) {
	return s.deleteByID(ctx, &models.CachedMessage{}, "msg", id)
}
