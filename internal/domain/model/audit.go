package model

import "time"

// AuditKind names a control decision recorded in the append-only audit log.
type AuditKind string

const (
	AuditAttemptCreated AuditKind = "attempt_created"
	AuditPoll           AuditKind = "poll"
	AuditWatchdogCancel AuditKind = "watchdog_cancel"
	AuditEscalated      AuditKind = "escalated"
	AuditFinished       AuditKind = "finished"
)

// AuditEntry is a forensic record of one control decision. Entries are
// append-only and never consulted for control decisions.
type AuditEntry struct {
	ID          string    `json:"id"`
	LineageID   string    `json:"lineage_id"`
	Attempt     int       `json:"attempt"`
	Kind        AuditKind `json:"kind"`
	ModelID     string    `json:"model_id,omitempty"`
	RemoteJobID string    `json:"remote_job_id,omitempty"`
	Status      JobStatus `json:"status,omitempty"`
	IdleSeconds int64     `json:"idle_seconds,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	At          time.Time `json:"at"`
}
