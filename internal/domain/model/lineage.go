package model

import "time"

// LineageState is the durable snapshot written after every poll. Exactly one
// snapshot is current per lineage; it is overwritten in place, never appended.
type LineageState struct {
	LineageID       string    `json:"lineage_id"`
	CurrentAttempt  int       `json:"current_attempt"`
	ModelID         string    `json:"model_id"`
	TrainingFileRef string    `json:"training_file_ref"`
	RemoteJobID     string    `json:"remote_job_id"`
	Status          JobStatus `json:"status"`

	// LastEventAt is the high-water mark over observed event timestamps,
	// seconds since epoch. Monotonically non-decreasing across writes.
	LastEventAt     int64     `json:"last_event_at"`
	TrainedProgress *int64    `json:"trained_progress,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}
