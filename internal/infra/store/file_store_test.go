package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finetune-orchestrator/internal/domain"
	"finetune-orchestrator/internal/domain/model"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	logger := zerolog.Nop()
	s, err := NewFileStore(t.TempDir(), &logger)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestFileStore_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	progress := int64(1234)
	st := &model.LineageState{
		LineageID:       "lin-1",
		CurrentAttempt:  2,
		ModelID:         "base-model",
		TrainingFileRef: "file-abc",
		RemoteJobID:     "ftjob-1",
		Status:          model.JobStatusRunning,
		LastEventAt:     1_700_000_100,
		TrainedProgress: &progress,
		UpdatedAt:       time.Unix(1_700_000_200, 0).UTC(),
	}
	if err := s.WriteSnapshot(ctx, st); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	got, err := s.ReadSnapshot(ctx, "lin-1")
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if got.CurrentAttempt != 2 || got.RemoteJobID != "ftjob-1" || got.LastEventAt != 1_700_000_100 {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
	if got.TrainedProgress == nil || *got.TrainedProgress != 1234 {
		t.Fatalf("progress lost: %+v", got.TrainedProgress)
	}
}

func TestFileStore_SnapshotOverwrittenInPlace(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	for attempt := 1; attempt <= 3; attempt++ {
		st := &model.LineageState{LineageID: "lin-2", CurrentAttempt: attempt, Status: model.JobStatusRunning}
		if err := s.WriteSnapshot(ctx, st); err != nil {
			t.Fatalf("WriteSnapshot %d: %v", attempt, err)
		}
	}
	got, err := s.ReadSnapshot(ctx, "lin-2")
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if got.CurrentAttempt != 3 {
		t.Fatalf("expected the latest snapshot only, got attempt %d", got.CurrentAttempt)
	}

	// no leftover temp files from the atomic replace
	entries, err := os.ReadDir(filepath.Join(s.dir, "lin-2"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != snapshotFile {
			t.Fatalf("unexpected file %s in lineage dir", e.Name())
		}
	}
}

func TestFileStore_ReadMissingSnapshot(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.ReadSnapshot(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_AuditAppendOnly(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	kinds := []model.AuditKind{model.AuditAttemptCreated, model.AuditPoll, model.AuditWatchdogCancel}
	for i, k := range kinds {
		e := &model.AuditEntry{LineageID: "lin-3", Attempt: 1, Kind: k, At: time.Unix(int64(1000+i), 0)}
		if err := s.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit %s: %v", k, err)
		}
		if e.ID == "" {
			t.Fatal("expected an assigned entry id")
		}
	}

	f, err := os.Open(filepath.Join(s.dir, "lin-3", auditFile))
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var got []model.AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e model.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %d not valid JSON: %v", len(got)+1, err)
		}
		got = append(got, e)
	}
	if len(got) != len(kinds) {
		t.Fatalf("expected %d lines, got %d", len(kinds), len(got))
	}
	for i, k := range kinds {
		if got[i].Kind != k {
			t.Fatalf("entries reordered: line %d is %s, want %s", i, got[i].Kind, k)
		}
	}
}

func TestFileStore_RejectsEmptyLineage(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	if err := s.WriteSnapshot(ctx, &model.LineageState{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := s.AppendAudit(ctx, &model.AuditEntry{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
