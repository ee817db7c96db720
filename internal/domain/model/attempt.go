package model

import "time"

// JobStatus mirrors the remote API status set.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final for a remote job.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobAttempt is one remote training-job lifetime within a lineage.
type JobAttempt struct {
	AttemptNumber   int
	ModelID         string
	TrainingFileRef string
	Suffix          string
	RemoteJobID     string
	Status          JobStatus
	CreatedAt       time.Time

	// TrainedProgress is the tokens-processed signal reported by the remote
	// API. nil means no progress has been observed yet; a reported zero is
	// kept as zero and treated the same way by the watchdog.
	TrainedProgress *int64
}
