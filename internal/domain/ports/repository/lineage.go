package repository

import (
	"context"

	"finetune-orchestrator/internal/domain/model"
)

// LineageStore persists the single current snapshot and the append-only
// audit log for a lineage. The snapshot is authoritative only for resuming
// observation; the remote API remains the source of truth.
type LineageStore interface {
	// WriteSnapshot atomically replaces the current snapshot. A reader must
	// never observe a half-written document.
	WriteSnapshot(ctx context.Context, st *model.LineageState) error

	// ReadSnapshot returns domain.ErrNotFound when no snapshot exists.
	ReadSnapshot(ctx context.Context, lineageID string) (*model.LineageState, error)

	// AppendAudit appends one entry to the audit log. Entries are never
	// reordered or rewritten.
	AppendAudit(ctx context.Context, e *model.AuditEntry) error
}
