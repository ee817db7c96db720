package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finetune-orchestrator/internal/domain"
	"finetune-orchestrator/internal/domain/model"
	"finetune-orchestrator/internal/domain/ports/adapter"
	"finetune-orchestrator/internal/domain/ports/repository"
	"finetune-orchestrator/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Meter is the counter surface the control loop reports to. The production
// implementation lives in the infra metrics package.
type Meter interface {
	Poll()
	RemoteError(kind string)
	Attempt(outcome string)
	WatchdogCancel()
	StoreFailure(artifact string)
}

type nopMeter struct{}

func (nopMeter) Poll()               {}
func (nopMeter) RemoteError(string)  {}
func (nopMeter) Attempt(string)      {}
func (nopMeter) WatchdogCancel()     {}
func (nopMeter) StoreFailure(string) {}

// Config carries the tuning knobs for one lineage run.
type Config struct {
	BaseModel     string
	FallbackModel string
	// SwitchAfter is the number of completed attempts after which the
	// escalation policy switches to the fallback model.
	SwitchAfter int
	// MaxRetries is the total attempt budget for the lineage, the original
	// attempt included.
	MaxRetries        int
	WatchdogThreshold time.Duration
	PollInterval      time.Duration
	// RequestTimeout bounds each remote call. It should stay shorter than
	// the poll interval so a hung call cannot skip ticks unnoticed.
	RequestTimeout time.Duration
	// EventWindow is the limit passed to the remote event listing.
	EventWindow int
	// SeenWindow bounds the tracker's dedup set.
	SeenWindow    time.Duration
	ArtifactDir   string
	MinInputBytes int64
}

type attemptOutcome int

const (
	outcomePending attemptOutcome = iota
	outcomeSucceeded
	outcomeFailed
	outcomeKilled
)

// Orchestrator drives one job lineage: create an attempt, poll it until a
// terminal status or a watchdog kill, escalate the model, repeat within the
// retry budget. Single-threaded; the loop suspends only at the poll-interval
// wait.
type Orchestrator struct {
	cfg   Config
	jobs  adapter.TrainingJobAdapter
	store repository.LineageStore
	meter Meter
	log   *zerolog.Logger
	now   func() time.Time
}

func NewOrchestrator(cfg Config, jobs adapter.TrainingJobAdapter, store repository.LineageStore, meter Meter, logger *zerolog.Logger) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.RequestTimeout <= 0 || cfg.RequestTimeout > cfg.PollInterval {
		cfg.RequestTimeout = cfg.PollInterval / 2
		if cfg.RequestTimeout > 30*time.Second {
			cfg.RequestTimeout = 30 * time.Second
		}
	}
	if cfg.EventWindow <= 0 {
		cfg.EventWindow = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if meter == nil {
		meter = nopMeter{}
	}
	l := logger.With().Str("component", "Orchestrator").Logger()
	return &Orchestrator{
		cfg:   cfg,
		jobs:  jobs,
		store: store,
		meter: meter,
		log:   &l,
		now:   time.Now,
	}
}

// Result is the final report of a lineage run, also emitted on fatal paths
// so an operator can resume manually from the persisted state.
type Result struct {
	LineageID    string
	Succeeded    bool
	AttemptsUsed int
	ModelID      string
	RemoteJobID  string
}

func (r *Result) Summary() string {
	return fmt.Sprintf("lineage %s: succeeded=%t attempts=%d model=%s job=%s",
		r.LineageID, r.Succeeded, r.AttemptsUsed, r.ModelID, r.RemoteJobID)
}

// Run executes the lineage until it succeeds or exhausts its budget. When a
// snapshot for the lineage records a live remote job, observation resumes on
// that job instead of creating a new attempt. overrideFile, when non-empty,
// short-circuits input selection for a fresh lineage.
//
// Fatal returns: domain.ErrNoAcceptableInput, domain.ErrRetryBudgetExhausted,
// or the context's error. The Result is populated in every case.
func (o *Orchestrator) Run(ctx context.Context, lineageID, overrideFile string) (*Result, error) {
	if lineageID == "" {
		return nil, fmt.Errorf("%w: empty lineage id", domain.ErrInvalidArgument)
	}
	log := o.log.With().Str("lineage_id", lineageID).Logger()
	defer logging.TraceDuration(&log, "Orchestrator.Run")()
	res := &Result{LineageID: lineageID}

	attempt := 0
	fileRef := ""
	prevModel := ""
	var mark int64
	var pending *model.JobAttempt

	st, err := o.store.ReadSnapshot(ctx, lineageID)
	switch {
	case err == nil:
		attempt = st.CurrentAttempt
		fileRef = st.TrainingFileRef
		prevModel = st.ModelID
		mark = st.LastEventAt
		res.AttemptsUsed = st.CurrentAttempt
		res.ModelID = st.ModelID
		res.RemoteJobID = st.RemoteJobID
		if st.Status == model.JobStatusSucceeded {
			res.Succeeded = true
			log.Info().Msg("lineage already succeeded, nothing to do")
			return res, nil
		}
		if st.RemoteJobID != "" && !st.Status.Terminal() {
			pending = &model.JobAttempt{
				AttemptNumber:   st.CurrentAttempt,
				ModelID:         st.ModelID,
				TrainingFileRef: st.TrainingFileRef,
				RemoteJobID:     st.RemoteJobID,
				Status:          st.Status,
				TrainedProgress: st.TrainedProgress,
			}
			log.Info().Int("attempt", attempt).Str("job_id", st.RemoteJobID).
				Msg("resuming observation of in-flight job")
		}
	case errors.Is(err, domain.ErrNotFound):
		// fresh lineage
	default:
		// local state is advisory only
		log.Warn().Err(err).Msg("snapshot read failed, starting fresh")
	}

	if fileRef == "" {
		fileRef, err = ResolveTrainingFile(overrideFile, o.cfg.ArtifactDir, o.cfg.MinInputBytes)
		if err != nil {
			return res, err
		}
		log.Info().Str("training_file", fileRef).Msg("training input selected")
	}

	tracker := NewEventTracker(mark, o.cfg.SeenWindow)

	for {
		job := pending
		pending = nil
		if job == nil {
			if attempt >= o.cfg.MaxRetries {
				o.audit(ctx, &model.AuditEntry{
					LineageID: lineageID, Attempt: attempt,
					Kind: model.AuditFinished, ModelID: res.ModelID,
					Detail: "retry budget exhausted",
				})
				log.Error().Int("attempts", attempt).Msg("retry budget exhausted without success")
				return res, domain.ErrRetryBudgetExhausted
			}
			attempt++
			modelID := SelectModel(attempt, o.cfg.BaseModel, o.cfg.FallbackModel, o.cfg.SwitchAfter)
			if prevModel != "" && modelID != prevModel {
				log.Info().Str("from", prevModel).Str("to", modelID).Msg("escalating to fallback model")
				o.audit(ctx, &model.AuditEntry{
					LineageID: lineageID, Attempt: attempt,
					Kind: model.AuditEscalated, ModelID: modelID,
					Detail: "switched from " + prevModel,
				})
			}
			prevModel = modelID
			res.AttemptsUsed = attempt
			res.ModelID = modelID
			job = o.createAttempt(ctx, &log, lineageID, attempt, modelID, fileRef, tracker.Mark())
			if job == nil {
				// createJob failure is equivalent to an immediate failed
				// terminal status and consumes one attempt
				o.meter.Attempt("create_error")
				continue
			}
		}
		res.AttemptsUsed = job.AttemptNumber
		res.ModelID = job.ModelID
		res.RemoteJobID = job.RemoteJobID
		attempt = job.AttemptNumber
		if prevModel == "" {
			prevModel = job.ModelID
		}

		mctx := logging.WithJobID(logging.WithAttempt(ctx, job.AttemptNumber), job.RemoteJobID)
		outcome, err := o.monitor(mctx, logging.With(mctx, &log), tracker, lineageID, job)
		if err != nil {
			return res, err
		}
		switch outcome {
		case outcomeSucceeded:
			o.meter.Attempt("succeeded")
			res.Succeeded = true
			o.audit(ctx, &model.AuditEntry{
				LineageID: lineageID, Attempt: job.AttemptNumber,
				Kind: model.AuditFinished, ModelID: job.ModelID,
				RemoteJobID: job.RemoteJobID, Status: model.JobStatusSucceeded,
			})
			log.Info().Int("attempts", job.AttemptNumber).Str("model", job.ModelID).Msg("lineage succeeded")
			return res, nil
		case outcomeKilled:
			o.meter.Attempt("killed")
		default:
			o.meter.Attempt(string(job.Status))
		}
	}
}

// createAttempt calls the remote API and persists the new lineage state. It
// returns nil when creation failed; the attempt is still consumed and the
// failure is recorded durably so budget accounting survives restarts.
func (o *Orchestrator) createAttempt(ctx context.Context, log *zerolog.Logger, lineageID string, attempt int, modelID, fileRef string, mark int64) *model.JobAttempt {
	defer logging.TraceDuration(log, "Orchestrator.createAttempt")()
	suffix := attemptSuffix(lineageID, attempt, o.now())
	cctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	job, err := o.jobs.CreateJob(cctx, modelID, fileRef, suffix)
	cancel()
	if err != nil {
		log.Error().Err(err).Int("attempt", attempt).Str("model", modelID).Msg("job creation failed")
		failed := &model.JobAttempt{
			AttemptNumber:   attempt,
			ModelID:         modelID,
			TrainingFileRef: fileRef,
			Suffix:          suffix,
			Status:          model.JobStatusFailed,
		}
		o.persist(ctx, lineageID, failed, mark)
		o.audit(ctx, &model.AuditEntry{
			LineageID: lineageID, Attempt: attempt,
			Kind: model.AuditAttemptCreated, ModelID: modelID,
			Status: model.JobStatusFailed, Detail: err.Error(),
		})
		return nil
	}
	job.AttemptNumber = attempt
	job.Suffix = suffix
	job.TrainingFileRef = fileRef
	if job.ModelID == "" {
		job.ModelID = modelID
	}
	log.Info().Int("attempt", attempt).Str("model", job.ModelID).Str("job_id", job.RemoteJobID).Msg("attempt created")
	o.persist(ctx, lineageID, job, mark)
	o.audit(ctx, &model.AuditEntry{
		LineageID: lineageID, Attempt: attempt,
		Kind: model.AuditAttemptCreated, ModelID: job.ModelID,
		RemoteJobID: job.RemoteJobID, Status: job.Status,
	})
	return job
}

// monitor polls one attempt until it resolves. The returned error is only
// ever the context's.
func (o *Orchestrator) monitor(ctx context.Context, log *zerolog.Logger, tracker *EventTracker, lineageID string, job *model.JobAttempt) (attemptOutcome, error) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return outcomePending, err
		}
		if outcome := o.pollOnce(ctx, log, tracker, lineageID, job); outcome != outcomePending {
			return outcome, nil
		}
		select {
		case <-ctx.Done():
			return outcomePending, ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce performs one iteration: retrieve status, list events, fold into
// the tracker, persist, evaluate the watchdog. outcomePending means keep
// polling.
func (o *Orchestrator) pollOnce(ctx context.Context, log *zerolog.Logger, tracker *EventTracker, lineageID string, job *model.JobAttempt) attemptOutcome {
	o.meter.Poll()

	rctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	cur, err := o.jobs.RetrieveJob(rctx, job.RemoteJobID)
	cancel()
	if err != nil {
		if domain.IsTransientRemote(err) || errors.Is(err, context.DeadlineExceeded) {
			o.meter.RemoteError("transient")
			log.Warn().Err(err).Msg("status poll failed, retrying next tick")
			return outcomePending
		}
		o.meter.RemoteError("permanent")
		log.Error().Err(err).Msg("status poll failed permanently, attempt counted as failed")
		job.Status = model.JobStatusFailed
		o.persist(ctx, lineageID, job, tracker.Mark())
		return outcomeFailed
	}
	job.Status = cur.Status
	job.TrainedProgress = cur.TrainedProgress
	if !cur.CreatedAt.IsZero() {
		job.CreatedAt = cur.CreatedAt
	}

	ectx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	events, err := o.jobs.ListEvents(ectx, job.RemoteJobID, o.cfg.EventWindow)
	cancel()
	if err != nil {
		if !domain.IsPermanentRemote(err) {
			o.meter.RemoteError("transient")
			log.Warn().Err(err).Msg("event listing failed, proceeding without events")
			events = nil
		} else {
			o.meter.RemoteError("permanent")
			log.Error().Err(err).Msg("event listing failed permanently, attempt counted as failed")
			job.Status = model.JobStatusFailed
			o.persist(ctx, lineageID, job, tracker.Mark())
			return outcomeFailed
		}
	}

	fresh, mark := tracker.Observe(events)
	for _, ev := range fresh {
		log.Debug().Int64("event_ts", ev.Timestamp).Str("level", ev.Level).Msg(ev.Message)
	}

	o.persist(ctx, lineageID, job, mark)
	o.audit(ctx, &model.AuditEntry{
		LineageID: lineageID, Attempt: job.AttemptNumber,
		Kind: model.AuditPoll, ModelID: job.ModelID,
		RemoteJobID: job.RemoteJobID, Status: job.Status,
	})

	if job.Status.Terminal() {
		log.Info().Str("status", string(job.Status)).Msg("remote job reached terminal status")
		if job.Status == model.JobStatusSucceeded {
			return outcomeSucceeded
		}
		return outcomeFailed
	}

	idle := IdleSince(mark, job.CreatedAt, o.now())
	if ShouldKill(job.Status, job.TrainedProgress, idle, o.cfg.WatchdogThreshold) {
		log.Warn().Dur("idle", idle).Msg("watchdog triggered, cancelling stalled job")
		cctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
		if _, cerr := o.jobs.CancelJob(cctx, job.RemoteJobID); cerr != nil {
			// best-effort: the attempt is exhausted regardless
			log.Warn().Err(cerr).Msg("cancellation call failed")
		}
		cancel()
		o.meter.WatchdogCancel()
		job.Status = model.JobStatusCancelled
		o.persist(ctx, lineageID, job, mark)
		o.audit(ctx, &model.AuditEntry{
			LineageID: lineageID, Attempt: job.AttemptNumber,
			Kind: model.AuditWatchdogCancel, ModelID: job.ModelID,
			RemoteJobID: job.RemoteJobID, Status: model.JobStatusCancelled,
			IdleSeconds: int64(idle / time.Second),
		})
		return outcomeKilled
	}
	return outcomePending
}

// persist writes the per-poll snapshot. Local durability is advisory; a
// failed write is logged and counted, never fatal.
func (o *Orchestrator) persist(ctx context.Context, lineageID string, job *model.JobAttempt, mark int64) {
	st := &model.LineageState{
		LineageID:       lineageID,
		CurrentAttempt:  job.AttemptNumber,
		ModelID:         job.ModelID,
		TrainingFileRef: job.TrainingFileRef,
		RemoteJobID:     job.RemoteJobID,
		Status:          job.Status,
		LastEventAt:     mark,
		TrainedProgress: job.TrainedProgress,
		UpdatedAt:       o.now(),
	}
	if err := o.store.WriteSnapshot(ctx, st); err != nil {
		o.meter.StoreFailure("snapshot")
		o.log.Warn().Err(err).Str("lineage_id", lineageID).Msg("snapshot write failed")
	}
}

func (o *Orchestrator) audit(ctx context.Context, e *model.AuditEntry) {
	e.At = o.now()
	if err := o.store.AppendAudit(ctx, e); err != nil {
		o.meter.StoreFailure("audit")
		o.log.Warn().Err(err).Str("lineage_id", e.LineageID).Msg("audit append failed")
	}
}

// attemptSuffix tags the remote job name uniquely per attempt so concurrent
// lineages never collide.
func attemptSuffix(lineageID string, attempt int, now time.Time) string {
	short := lineageID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-a%d-%d", short, attempt, now.Unix())
}
