package adapter

import (
	"context"

	"finetune-orchestrator/internal/domain/model"
)

// TrainingJobAdapter is the port for the remote fine-tuning API. All
// operations may fail with a domain.RemoteError carrying a transient or
// permanent classification.
type TrainingJobAdapter interface {
	// CreateJob starts a new remote job and returns it with its assigned
	// remote id and an initial queued status.
	CreateJob(ctx context.Context, modelID, trainingFileRef, suffix string) (*model.JobAttempt, error)

	// RetrieveJob returns the current status and progress of a job.
	RetrieveJob(ctx context.Context, remoteJobID string) (*model.JobAttempt, error)

	// ListEvents returns the remote API's bounded recent event window,
	// most-recent-first. Each call re-fetches the current window; it is not
	// a restartable stream.
	ListEvents(ctx context.Context, remoteJobID string, limit int) ([]model.EventRecord, error)

	// CancelJob requests cancellation. Best-effort: the remote job may
	// reach a terminal state before the cancellation lands, which is a
	// known race and not an error.
	CancelJob(ctx context.Context, remoteJobID string) (model.JobStatus, error)
}
