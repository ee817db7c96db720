package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"finetune-orchestrator/internal/domain"
	"finetune-orchestrator/internal/domain/model"
	"finetune-orchestrator/internal/domain/ports/adapter"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.TrainingJobAdapter = (*FineTuneAdapter)(nil)

// FineTuneAdapter implements adapter.TrainingJobAdapter against the OpenAI
// fine-tuning API. Retries are left to the orchestrator's poll loop, so the
// SDK's own retrying is disabled.
type FineTuneAdapter struct {
	client openai.Client
}

// NewFineTuneAdapter builds the adapter. baseURL is optional and supports
// OpenAI-compatible gateways.
func NewFineTuneAdapter(apiKey, baseURL string) (*FineTuneAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &FineTuneAdapter{client: openai.NewClient(opts...)}, nil
}

func (a *FineTuneAdapter) CreateJob(ctx context.Context, modelID, trainingFileRef, suffix string) (*model.JobAttempt, error) {
	job, err := a.client.FineTuning.Jobs.New(ctx, openai.FineTuningJobNewParams{
		Model:        openai.FineTuningJobNewParamsModel(modelID),
		TrainingFile: trainingFileRef,
		Suffix:       openai.String(suffix),
	})
	if err != nil {
		return nil, classify("createJob", err)
	}
	return mapJob(job), nil
}

func (a *FineTuneAdapter) RetrieveJob(ctx context.Context, remoteJobID string) (*model.JobAttempt, error) {
	job, err := a.client.FineTuning.Jobs.Get(ctx, remoteJobID)
	if err != nil {
		return nil, classify("retrieveJob", err)
	}
	return mapJob(job), nil
}

func (a *FineTuneAdapter) ListEvents(ctx context.Context, remoteJobID string, limit int) ([]model.EventRecord, error) {
	page, err := a.client.FineTuning.Jobs.ListEvents(ctx, remoteJobID, openai.FineTuningJobListEventsParams{
		Limit: openai.Int(int64(limit)),
	})
	if err != nil {
		return nil, classify("listEvents", err)
	}
	out := make([]model.EventRecord, 0, len(page.Data))
	for _, ev := range page.Data {
		out = append(out, model.EventRecord{
			Timestamp: ev.CreatedAt,
			Level:     string(ev.Level),
			Message:   ev.Message,
		})
	}
	return out, nil
}

func (a *FineTuneAdapter) CancelJob(ctx context.Context, remoteJobID string) (model.JobStatus, error) {
	job, err := a.client.FineTuning.Jobs.Cancel(ctx, remoteJobID)
	if err != nil {
		return "", classify("cancelJob", err)
	}
	return mapStatus(string(job.Status)), nil
}

func mapJob(j *openai.FineTuningJob) *model.JobAttempt {
	out := &model.JobAttempt{
		RemoteJobID:     j.ID,
		ModelID:         j.Model,
		TrainingFileRef: j.TrainingFile,
		Status:          mapStatus(string(j.Status)),
		CreatedAt:       time.Unix(j.CreatedAt, 0).UTC(),
	}
	// The wire distinguishes "no progress reported" (null) from a reported
	// zero; keep that distinction even though the watchdog conflates them.
	if j.JSON.TrainedTokens.Valid() {
		tp := j.TrainedTokens
		out.TrainedProgress = &tp
	}
	return out
}

// mapStatus folds the provider's status vocabulary onto the five-element
// set the orchestrator reasons about. validating_files is a pre-queue phase
// and reads as queued.
func mapStatus(s string) model.JobStatus {
	switch s {
	case "validating_files", "queued":
		return model.JobStatusQueued
	case "running":
		return model.JobStatusRunning
	case "succeeded":
		return model.JobStatusSucceeded
	case "failed":
		return model.JobStatusFailed
	case "cancelled":
		return model.JobStatusCancelled
	default:
		return model.JobStatusQueued
	}
}

// classify maps SDK failures onto the orchestrator's error taxonomy.
// Rate limits, conflicts, timeouts and server errors are worth another poll
// tick; the rest of the 4xx range is not.
func classify(op string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusRequestTimeout,
			apierr.StatusCode == http.StatusConflict,
			apierr.StatusCode == http.StatusTooManyRequests,
			apierr.StatusCode >= 500:
			return domain.TransientRemote(op, err)
		default:
			return domain.PermanentRemote(op, err)
		}
	}
	// transport-level failure, context timeout etc.
	return domain.TransientRemote(op, err)
}
