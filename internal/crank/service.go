package crank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/models"
	"github.com/zulandar/aocrank/internal/store"
	"github.com/zulandar/aocrank/internal/trace"
	"golang.org/x/sync/errgroup"
)

// idNamespace seeds the deterministic ids of cached messages and spawns.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ao:crank"))

// MessageID returns the cached message id for the index-th message of the
// result of fromTxID. The same inputs always give the same id.
func MessageID(fromTxID string, index int) string {
	return uuid.NewSHA1(idNamespace, []byte(fromTxID+":msg:"+strconv.Itoa(index))).String()
}

// SpawnID returns the cached spawn id for the index-th spawn of the result
// of fromTxID.
func SpawnID(fromTxID string, index int) string {
	return uuid.NewSHA1(idNamespace, []byte(fromTxID+":spawn:"+strconv.Itoa(index))).String()
}

// Store is the cached message and spawn persistence the service needs.
type Store interface {
	SaveMsg(ctx context.Context, msg models.CachedMessage) (string, error)
	FindMsgsByOrigin(ctx context.Context, fromTxID string) ([]models.CachedMessage, error)
	SaveSpawn(ctx context.Context, spawn models.CachedSpawn) (string, error)
	FindSpawnsByOrigin(ctx context.Context, fromTxID string) ([]models.CachedSpawn, error)
}

// Recorder is the lineage persistence the service needs.
type Recorder interface {
	Save(ctx context.Context, t models.MessageTrace) (string, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Result is the outbox of one evaluated transaction.
type Result struct {
	// FromTxID is the transaction whose evaluation produced the outbox.
	FromTxID string `json:"fromTxId"`
	// ProcessID is the process that evaluated FromTxID.
	ProcessID string `json:"processId"`
	// From is the sender of FromTxID, when known.
	From string `json:"from,omitempty"`
	// InitialTxID is the lineage root. Empty means FromTxID is the root.
	InitialTxID string `json:"initialTxId,omitempty"`
	// ParentTxID is the trace that produced FromTxID, when known.
	ParentTxID string        `json:"parentTxId,omitempty"`
	Message    models.JSON   `json:"message,omitempty"`
	Messages   []models.JSON `json:"messages"`
	Spawns     []models.JSON `json:"spawns"`
}

// Outcome reports what cranking a result produced. Contexts follow the
// order of the result's messages; a failed message keeps the context
// accumulated before its failing stage.
type Outcome struct {
	Contexts []Context
	SpawnIDs []string
	// Reused counts messages and spawns that were already cached.
	Reused int
}

// Service caches the outbox of a result, cranks each message and records
// the lineage.
type Service struct {
	pipeline    *Pipeline
	store       Store
	recorder    Recorder
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a Service. A non-positive concurrency cranks one
// message at a time.
func NewService(p *Pipeline, st Store, rec Recorder, concurrency int, logger *slog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		pipeline:    p,
		store:       st,
		recorder:    rec,
		concurrency: concurrency,
		logger:      logging.For(logger, "crank-service"),
		now:         time.Now,
	}
}

// CrankResult cranks every message of r. Records cached by an earlier
// attempt are reused rather than written again. The lineage trace is saved
// only when every message cranks; otherwise the joined stage errors are
// returned with the partial outcome so the caller can retry.
func (s *Service) CrankResult(ctx context.Context, r Result) (Outcome, error) {
	var out Outcome
	if r.FromTxID == "" {
		return out, models.NewValidationError("result", "fromTxId", "must be a non-empty string")
	}
	if r.ProcessID == "" {
		return out, models.NewValidationError("result", "processId", "must be a non-empty string")
	}
	root := r.InitialTxID
	if root == "" {
		root = r.FromTxID
	}
	now := s.now().UTC()

	msgs, reused, err := s.cacheMessages(ctx, r, root, now)
	if err != nil {
		return out, err
	}
	out.Reused += reused

	spawnIDs, reused, err := s.cacheSpawns(ctx, r, root, now)
	if err != nil {
		return out, err
	}
	out.SpawnIDs = spawnIDs
	out.Reused += reused

	contexts, errs := s.crankAll(ctx, msgs)
	out.Contexts = contexts
	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}

	if err := s.recordLineage(ctx, r, contexts, spawnIDs); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Service) cacheMessages(ctx context.Context, r Result, root string, now time.Time) ([]models.CachedMessage, int, error) {
	existing, err := s.store.FindMsgsByOrigin(ctx, r.FromTxID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, 0, fmt.Errorf("crank: load cached msgs of %s: %w", r.FromTxID, err)
	}
	byID := make(map[string]models.CachedMessage, len(existing))
	for _, m := range existing {
		byID[m.ID] = m
	}

	msgs := make([]models.CachedMessage, 0, len(r.Messages))
	reused := 0
	for i, raw := range r.Messages {
		id := MessageID(r.FromTxID, i)
		if m, ok := byID[id]; ok {
			msgs = append(msgs, m)
			reused++
			continue
		}
		m := models.CachedMessage{
			ID:          id,
			FromTxID:    r.FromTxID,
			Msg:         raw,
			CachedAt:    now,
			ProcessID:   r.ProcessID,
			InitialTxID: &root,
		}
		if _, err := s.store.SaveMsg(ctx, m); err != nil {
			return nil, 0, fmt.Errorf("crank: cache msg %d of %s: %w", i, r.FromTxID, err)
		}
		msgs = append(msgs, m)
	}
	if reused > 0 {
		s.logger.Info("Reusing cached messages", "fromTxId", r.FromTxID, "count", reused)
	}
	return msgs, reused, nil
}

func (s *Service) cacheSpawns(ctx context.Context, r Result, root string, now time.Time) ([]string, int, error) {
	existing, err := s.store.FindSpawnsByOrigin(ctx, r.FromTxID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, 0, fmt.Errorf("crank: load cached spawns of %s: %w", r.FromTxID, err)
	}
	cached := make(map[string]bool, len(existing))
	for _, sp := range existing {
		cached[sp.ID] = true
	}

	ids := make([]string, 0, len(r.Spawns))
	reused := 0
	for i, raw := range r.Spawns {
		id := SpawnID(r.FromTxID, i)
		ids = append(ids, id)
		if cached[id] {
			reused++
			continue
		}
		sp := models.CachedSpawn{
			ID:          id,
			FromTxID:    r.FromTxID,
			Spawn:       raw,
			CachedAt:    now,
			ProcessID:   r.ProcessID,
			InitialTxID: &root,
		}
		if _, err := s.store.SaveSpawn(ctx, sp); err != nil {
			return nil, 0, fmt.Errorf("crank: cache spawn %d of %s: %w", i, r.FromTxID, err)
		}
	}
	return ids, reused, nil
}

// crankAll cranks msgs with bounded concurrency. Contexts keep the order of
// msgs.
func (s *Service) crankAll(ctx context.Context, msgs []models.CachedMessage) ([]Context, []error) {
	contexts := make([]Context, len(msgs))
	errs := make([]error, len(msgs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, m := range msgs {
		i, m := i, m
		g.Go(func() error {
			msg, err := toMessage(m)
			if err != nil {
				contexts[i] = Context{Message: Message{ID: m.ID, FromTxID: m.FromTxID, FromProcessID: m.ProcessID}}
				errs[i] = err
				return nil
			}
			contexts[i], errs[i] = s.pipeline.Crank(ctx, NewContext(msg))
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return contexts, failed
}

func toMessage(m models.CachedMessage) (Message, error) {
	out, err := ParseOutbound(m.Msg)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:            m.ID,
		FromTxID:      m.FromTxID,
		FromProcessID: m.ProcessID,
		Msg:           out,
	}
	if m.InitialTxID != nil {
		msg.InitialTxID = *m.InitialTxID
	}
	return msg, nil
}

// recordLineage saves the trace of the evaluated transaction, linking it to
// its parent only when the parent trace is already persisted.
func (s *Service) recordLineage(ctx context.Context, r Result, contexts []Context, spawnIDs []string) error {
	b := trace.NewBuilder(r.FromTxID, r.From, r.ProcessID).Message(r.Message)
	if r.ParentTxID != "" && r.ParentTxID != r.FromTxID {
		ok, err := s.recorder.Exists(ctx, r.ParentTxID)
		if err != nil {
			return fmt.Errorf("crank: check parent trace %s: %w", r.ParentTxID, err)
		}
		if ok {
			b.Parent(r.ParentTxID)
		} else {
			s.logger.Warn("Parent trace not persisted; recording as a root", "id", r.FromTxID, "parent", r.ParentTxID)
		}
	}
	for _, c := range contexts {
		b.Child(c.Tx.ID)
		b.Note("cranked", c.Message.ID+" -> "+c.Tx.ID)
	}
	for _, id := range spawnIDs {
		b.Spawn(id)
	}
	if _, err := s.recorder.Save(ctx, b.Build(s.now())); err != nil {
		return fmt.Errorf("crank: record lineage of %s: %w", r.FromTxID, err)
	}
	return nil
}
