package models

import "time"

// CachedMessage is an outbound message emitted by a process, cached before
// it is cranked. Re-caching the same message is a no-op keyed by ID.
type CachedMessage struct {
	ID       string    `gorm:"primaryKey;size:64" json:"id"`
	FromTxID string    `gorm:"column:fromTxId;size:64;not null;index" json:"fromTxId"`
	Msg      JSON      `gorm:"column:msg;type:text" json:"msg"`
	CachedAt time.Time `gorm:"column:cachedAt;not null" json:"cachedAt"`
	// ProcessID is the process whose outbox produced the message.
	ProcessID string `gorm:"column:processId;size:64;not null;index" json:"processId"`
	// InitialTxID is the root of the lineage chain. It equals ID when the
	// message is itself a root.
	InitialTxID *string `gorm:"column:initialTxId;size:64" json:"initialTxId"`
}

// CachedSpawn is a spawn request emitted by a process. It mirrors
// CachedMessage with a spawn payload.
type CachedSpawn struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	FromTxID    string    `gorm:"column:fromTxId;size:64;not null;index" json:"fromTxId"`
	Spawn       JSON      `gorm:"column:spawn;type:text" json:"spawn"`
	CachedAt    time.Time `gorm:"column:cachedAt;not null" json:"cachedAt"`
	ProcessID   string    `gorm:"column:processId;size:64;not null;index" json:"processId"`
	InitialTxID *string   `gorm:"column:initialTxId;size:64" json:"initialTxId"`
}

// Validate checks the persisted shape of a cached message.
func (m *CachedMessage) Validate() error {
	return validateCached("cachedMessage", m.ID, m.FromTxID, m.ProcessID, m.CachedAt)
}

// Validate checks the persisted shape of a cached spawn.
func (s *CachedSpawn) Validate() error {
	return validateCached("cachedSpawn", s.ID, s.FromTxID, s.ProcessID, s.CachedAt)
}

func validateCached(entity, id, fromTxID, processID string, cachedAt time.Time) error {
	switch {
	case id == "":
		return NewValidationError(entity, "id", "must be a non-empty string")
	case fromTxID == "":
		return NewValidationError(entity, "fromTxId", "must be a non-empty string")
	case processID == "":
		return NewValidationError(entity, "processId", "must be a non-empty string")
	case cachedAt.IsZero():
		return NewValidationError(entity, "cachedAt", "must be a timestamp")
	}
	return nil
}
