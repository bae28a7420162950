package types

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindFatalInput       ErrorKind = "fatal_input"
	KindStageUnavailable ErrorKind = "stage_unavailable"
	KindTimeout          ErrorKind = "timeout"
	KindValidation       ErrorKind = "validation"
	KindPersistence      ErrorKind = "persistence"
)

// FatalInputError marks raw input that cannot be processed further, e.g.
// undecodable or unsupported audio.
type FatalInputError struct {
	Reason string
	Err    error
}

func (e *FatalInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unusable input: %s: %v", e.Reason, e.Err)
	}
	return "unusable input: " + e.Reason
}

func (e *FatalInputError) Unwrap() error { return e.Err }

// StageUnavailableError wraps a capability call that failed or timed out.
type StageUnavailableError struct {
	Stage string
	Err   error
}

func (e *StageUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Stage, e.Err)
}

func (e *StageUnavailableError) Unwrap() error { return e.Err }

// ValidationError is returned by a capability that rejected its input
// without failing, e.g. a transcript that is not a conversation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// PersistenceError means a call could not be durably recorded after retries.
type PersistenceError struct {
	CallID   string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist call %s failed after %d attempt(s): %v", e.CallID, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// KindOf classifies err for the stage error log.
func KindOf(err error) ErrorKind {
	var (
		fatal       *FatalInputError
		validation  *ValidationError
		persistence *PersistenceError
	)
	switch {
	case errors.As(err, &fatal):
		return KindFatalInput
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &persistence):
		return KindPersistence
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindStageUnavailable
	}
}
