// Package jobs holds the types shared across the pipeline, registry, and
// worker pool: the Job entity itself and its typed error kinds.
package jobs

import (
	"errors"
	"fmt"
)

// ErrKind is one of the stable error strings surfaced to users and
// recorded on a failed Job.
type ErrKind string

const (
	ErrInvalidConfig     ErrKind = "invalid_config"
	ErrInputUnreadable   ErrKind = "input_unreadable"
	ErrMediaExtractFailed ErrKind = "media_extract_failed"
	ErrASRUnavailable    ErrKind = "asr_unavailable"
	ErrASRFailed         ErrKind = "asr_failed"
	ErrASRTimeout        ErrKind = "asr_timeout"
	ErrDetectorUnavailable ErrKind = "detector_unavailable"
	ErrEmptyOutput       ErrKind = "empty_output"
	ErrOutputTooShort    ErrKind = "output_too_short"
	ErrMediaMuxFailed    ErrKind = "media_mux_failed"
	ErrQuotaExceeded     ErrKind = "quota_exceeded"
	ErrTimeout           ErrKind = "timeout"
	ErrCancelled         ErrKind = "cancelled"
	ErrInternal          ErrKind = "internal_error"
)

// JobError attaches a stable ErrKind to an underlying error, so a single
// type can both satisfy the error interface and carry the kind a caller
// needs to record on the Job row.
type JobError struct {
	Kind   ErrKind
	Detail string
	Err    error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *JobError) Unwrap() error { return e.Err }

// Wrap builds a *JobError, tagging err with kind and a human-readable
// detail string for the failure record.
func Wrap(kind ErrKind, detail string, err error) *JobError {
	return &JobError{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the ErrKind from err if it (or something it wraps) is a
// *JobError; otherwise it returns ErrInternal.
func KindOf(err error) ErrKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return ErrInternal
}
