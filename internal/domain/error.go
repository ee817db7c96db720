package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNoAcceptableInput    = errors.New("no acceptable training input found")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted without success")
)

// RemoteErrorKind classifies failures of the remote training-job API.
type RemoteErrorKind string

const (
	RemoteTransient RemoteErrorKind = "transient"
	RemotePermanent RemoteErrorKind = "permanent"
)

// RemoteError wraps a failed remote call together with its classification.
// Transient errors are retried on the next poll tick; permanent errors
// consume an attempt from the retry budget.
type RemoteError struct {
	Kind RemoteErrorKind
	Op   string
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// TransientRemote wraps err as a retryable remote failure.
func TransientRemote(op string, err error) error {
	return &RemoteError{Kind: RemoteTransient, Op: op, Err: err}
}

// PermanentRemote wraps err as a non-retryable remote failure.
func PermanentRemote(op string, err error) error {
	return &RemoteError{Kind: RemotePermanent, Op: op, Err: err}
}

func IsTransientRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == RemoteTransient
}

func IsPermanentRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == RemotePermanent
}
