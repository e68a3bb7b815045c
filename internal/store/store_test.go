package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/aocrank/internal/db"
	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/models"
	"gorm.io/gorm"
)

func openTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	gormDB, err := db.OpenTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return New(gormDB, logging.Discard()), gormDB
}

func strPtr(s string) *string { return &s }

func testMsg(id, fromTxID string) models.CachedMessage {
	return models.CachedMessage{
		ID:          id,
		FromTxID:    fromTxID,
		Msg:         models.MustJSON(map[string]any{"Target": "target-proc", "Data": "hi"}),
		CachedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ProcessID:   "origin-proc",
		InitialTxID: strPtr("root-tx"),
	}
}

func TestSaveMsg_Idempotent(t *testing.T) {
	s, gormDB := openTestStore(t)
	ctx := context.Background()
	msg := testMsg("m1", "tx-1")

	for i := 0; i < 2; i++ {
		id, err := s.SaveMsg(ctx, msg)
		if err != nil {
			t.Fatalf("SaveMsg attempt %d: %v", i+1, err)
		}
		if id != "m1" {
			t.Errorf("SaveMsg returned %q, want m1", id)
		}
	}

	var count int64
	gormDB.Model(&models.CachedMessage{}).Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestSaveMsg_RoundTripsFields(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveMsg(ctx, testMsg("m1", "tx-1")); err != nil {
		t.Fatalf("SaveMsg: %v", err)
	}
	msgs, err := s.FindMsgsByOrigin(ctx, "tx-1")
	if err != nil {
		t.Fatalf("FindMsgsByOrigin: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d msgs, want 1", len(msgs))
	}
	got := msgs[0]
	if got.ProcessID != "origin-proc" {
		t.Errorf("ProcessID = %q", got.ProcessID)
	}
	if got.InitialTxID == nil || *got.InitialTxID != "root-tx" {
		t.Errorf("InitialTxID = %v, want root-tx", got.InitialTxID)
	}
	if !got.CachedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("CachedAt = %v", got.CachedAt)
	}
	if string(got.Msg) != `{"Data":"hi","Target":"target-proc"}` {
		t.Errorf("Msg = %s", got.Msg)
	}
}

func TestSaveMsg_NullInitialTxID(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	msg := testMsg("m1", "tx-1")
	msg.InitialTxID = nil

	if _, err := s.SaveMsg(ctx, msg); err != nil {
		t.Fatalf("SaveMsg: %v", err)
	}
	msgs, err := s.FindMsgsByOrigin(ctx, "tx-1")
	if err != nil {
		t.Fatalf("FindMsgsByOrigin: %v", err)
	}
	if msgs[0].InitialTxID != nil {
		t.Errorf("InitialTxID = %v, want nil", *msgs[0].InitialTxID)
	}
}

func TestSaveMsg_ValidationError(t *testing.T) {
	s, _ := openTestStore(t)
	msg := testMsg("m1", "")

	_, err := s.SaveMsg(context.Background(), msg)
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "fromTxId" {
		t.Errorf("Field = %q, want fromTxId", ve.Field)
	}
}

func TestFindMsgsByOrigin_NotFound(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	if _, err := s.SaveMsg(ctx, testMsg("m1", "tx-1")); err != nil {
		t.Fatalf("SaveMsg: %v", err)
	}

	msgs, err := s.FindMsgsByOrigin(ctx, "tx-other")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if msgs != nil {
		t.Errorf("msgs = %v, want nil", msgs)
	}
}

func TestFindMsgsByOrigin_RequiresOrigin(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.FindMsgsByOrigin(context.Background(), "")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a non-not-found error, got %v", err)
	}
}

func TestFindMsgsByOrigin_FiltersByOrigin(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	for _, m := range []models.CachedMessage{testMsg("a", "tx-1"), testMsg("b", "tx-1"), testMsg("c", "tx-2")} {
		if _, err := s.SaveMsg(ctx, m); err != nil {
			t.Fatalf("SaveMsg(%s): %v", m.ID, err)
		}
	}

	msgs, err := s.FindMsgsByOrigin(ctx, "tx-1")
	if err != nil {
		t.Fatalf("FindMsgsByOrigin: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d msgs, want 2", len(msgs))
	}
	if msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Errorf("ids = %s,%s; want a,b", msgs[0].ID, msgs[1].ID)
	}
}

func TestDeleteMsg(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	if _, err := s.SaveMsg(ctx, testMsg("m1", "tx-1")); err != nil {
		t.Fatalf("SaveMsg: %v", err)
	}

	id, err := s.DeleteMsg(ctx, "m1")
	if err != nil {
		t.Fatalf("DeleteMsg: %v", err)
	}
	if id != "m1" {
		t.Errorf("DeleteMsg returned %q", id)
	}
	if _, err := s.FindMsgsByOrigin(ctx, "tx-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: expected ErrNotFound, got %v", err)
	}
	if _, err := s.DeleteMsg(ctx, ""); err == nil {
		t.Error("expected error deleting empty id")
	}
}

func TestSpawns_SaveFindDelete(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	spawn := models.CachedSpawn{
		ID:        "s1",
		FromTxID:  "tx-1",
		Spawn:     models.MustJSON(map[string]any{"Tags": []any{}}),
		CachedAt:  time.Now(),
		ProcessID: "origin-proc",
	}

	for i := 0; i < 2; i++ {
		if _, err := s.SaveSpawn(ctx, spawn); err != nil {
			t.Fatalf("SaveSpawn attempt %d: %v", i+1, err)
		}
	}

	spawns, err := s.FindSpawnsByOrigin(ctx, "tx-1")
	if err != nil {
		t.Fatalf("FindSpawnsByOrigin: %v", err)
	}
	if len(spawns) != 1 || spawns[0].ID != "s1" {
		t.Fatalf("spawns = %+v", spawns)
	}

	if _, err := s.FindSpawnsByOrigin(ctx, "tx-none"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.DeleteSpawn(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSpawn: %v", err)
	}
	if _, err := s.FindSpawnsByOrigin(ctx, "tx-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: expected ErrNotFound, got %v", err)
	}
}

func TestSaveSpawn_ValidationError(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.SaveSpawn(context.Background(), models.CachedSpawn{ID: "s1", FromTxID: "tx", CachedAt: time.Now()})
	if !models.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSave_LogsIDCollision(t *testing.T) {
	gormDB, err := db.OpenTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	var logs bytes.Buffer
	s := New(gormDB, logging.NewWithWriter(logging.Config{Level: "warn"}, &logs))
	ctx := context.Background()

	spawn := models.CachedSpawn{
		ID:        "s1",
		FromTxID:  "tx-1",
		Spawn:     models.MustJSON(map[string]any{"Tags": []any{}}),
		CachedAt:  time.Now(),
		ProcessID: "origin-proc",
	}
	msg := testMsg("m1", "tx-1")

	for i := 0; i < 2; i++ {
		if _, err := s.SaveSpawn(ctx, spawn); err != nil {
			t.Fatalf("SaveSpawn: %v", err)
		}
		if _, err := s.SaveMsg(ctx, msg); err != nil {
			t.Fatalf("SaveMsg: %v", err)
		}
	}
	if logs.Len() != 0 {
		t.Fatalf("re-saving identical records should not warn, got: %s", logs.String())
	}

	spawn.FromTxID = "tx-2"
	msg.FromTxID = "tx-2"
	if _, err := s.SaveSpawn(ctx, spawn); err != nil {
		t.Fatalf("colliding SaveSpawn: %v", err)
	}
	if _, err := s.SaveMsg(ctx, msg); err != nil {
		t.Fatalf("colliding SaveMsg: %v", err)
	}
	for _, want := range []string{"Cached spawn differs", "Cached msg differs"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("expected log %q, got: %s", want, logs.String())
		}
	}

	spawns, err := s.FindSpawnsByOrigin(ctx, "tx-1")
	if err != nil || len(spawns) != 1 {
		t.Errorf("original spawn should be kept, got %v, %v", spawns, err)
	}
}
