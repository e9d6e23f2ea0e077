// Package apperrors defines the tagged error kinds shared across the
// platform, so every layer — MAKER, ingestion, retrieval, the orchestrator —
// reports failures the same way and the orchestrator can decide retry vs.
// abort from the kind alone.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind tags an Error with the handling policy the caller should apply.
type Kind string

const (
	// RedFlag marks a single sampler output as pathological. MAKER absorbs
	// it internally; it never escapes pkg/maker.
	RedFlag Kind = "red_flag"

	// NoConvergence means MAKER exhausted maxRounds without a winner.
	NoConvergence Kind = "no_convergence"

	// ExtractionFailed means a media type had no extractor or the extractor
	// errored; the file is skipped, no retry.
	ExtractionFailed Kind = "extraction_failed"

	// TransientIO covers HTTP 5xx, timeouts, and embedder failures; retried
	// with exponential backoff.
	TransientIO Kind = "transient_io"

	// PermanentIO covers HTTP 4xx (except 429), auth failures, not-found;
	// never retried.
	PermanentIO Kind = "permanent_io"

	// QuotaExceeded covers rate-limiter rejection or an upstream 429;
	// retry-after is honored by the caller.
	QuotaExceeded Kind = "quota_exceeded"

	// Cancelled means cancellation was observed; shutdown is clean.
	Cancelled Kind = "cancelled"

	// Invariant marks an internal contract breach. Fatal, surfaced, never
	// retried.
	Invariant Kind = "invariant"
)

// Error is the single error type used across the platform. Kind drives
// retry/abort policy; Err (when set) carries the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, apperrors.New(apperrors.TransientIO, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Invariant for errors
// that were never tagged (an internal-contract breach: every error that
// reaches the orchestrator boundary should have been tagged by then).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Invariant
}

// Retryable reports whether the error kind is one the caller should retry
// (with backoff), as opposed to surfacing immediately.
func Retryable(err error) bool {
	switch KindOf(err) {
	case TransientIO, QuotaExceeded:
		return true
	default:
		return false
	}
}

// IsCancelled reports whether err represents cooperative cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == Cancelled
}
