package usecase

import (
	"time"

	"finetune-orchestrator/internal/domain/model"
)

// IdleSince computes how long a job has been silent: the time elapsed since
// the later of the event high-water mark and the job's creation. Measuring
// against the mark rather than poll wall-clock makes a job that only
// re-emits already-seen events indistinguishable from one emitting nothing,
// which is the intent.
func IdleSince(lastEventMark int64, createdAt time.Time, now time.Time) time.Duration {
	ref := createdAt
	if m := time.Unix(lastEventMark, 0); lastEventMark > 0 && m.After(ref) {
		ref = m
	}
	d := now.Sub(ref)
	if d < 0 {
		return 0
	}
	return d
}

// ShouldKill is the watchdog decision, evaluated every poll. A running job
// is killed only when it has never reported progress AND has been silent
// longer than the threshold: either signal alone produces false positives
// (bursty logging, long setup phases). A reported progress of zero is
// conflated with "not yet reported".
func ShouldKill(status model.JobStatus, trainedProgress *int64, idle, threshold time.Duration) bool {
	if status != model.JobStatusRunning {
		return false
	}
	if trainedProgress != nil && *trainedProgress > 0 {
		return false
	}
	return idle > threshold
}
