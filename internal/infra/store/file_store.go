package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"finetune-orchestrator/internal/domain"
	"finetune-orchestrator/internal/domain/model"
	"finetune-orchestrator/internal/domain/ports/repository"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	snapshotFile = "state.json"
	auditFile    = "audit.log"
)

var _ repository.LineageStore = (*FileStore)(nil)

// FileStore keeps two artifacts per lineage under dir/<lineage_id>/: a
// single current-snapshot document replaced atomically on every write, and
// an append-only line-delimited audit log. It provides no cross-process
// mutual exclusion; running at most one orchestrator per lineage is an
// operational invariant.
type FileStore struct {
	dir string
	log *zerolog.Logger

	mu sync.Mutex // serializes the write-rename sequence and audit appends
}

func NewFileStore(dir string, logger *zerolog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("artifact dir empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	l := logger.With().Str("component", "FileStore").Logger()
	return &FileStore{dir: dir, log: &l}, nil
}

// WriteSnapshot replaces the current snapshot via write-to-temp plus rename,
// so a reader never observes a half-written document.
func (s *FileStore) WriteSnapshot(_ context.Context, st *model.LineageState) error {
	if st == nil || st.LineageID == "" {
		return domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dir, st.LineageID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create lineage dir: %w", err)
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, snapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, snapshotFile)); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) ReadSnapshot(_ context.Context, lineageID string) (*model.LineageState, error) {
	if lineageID == "" {
		return nil, domain.ErrInvalidArgument
	}
	b, err := os.ReadFile(filepath.Join(s.dir, lineageID, snapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var st model.LineageState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &st, nil
}

// AppendAudit writes one JSON object per line. Entries get a time-ordered
// ULID when the caller left the id blank.
func (s *FileStore) AppendAudit(_ context.Context, e *model.AuditEntry) error {
	if e == nil || e.LineageID == "" {
		return domain.ErrInvalidArgument
	}
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dir, e.LineageID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create lineage dir: %w", err)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, auditFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
