// api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for retry policy decisions. Every failure
// the engine observes is folded into one of these kinds before it reaches
// an ApplicationRecord.
type ErrorKind string

const (
	KindNone ErrorKind = ""

	// KindNavigationError covers unreachable pages and navigation timeouts.
	// Retryable.
	KindNavigationError ErrorKind = "navigation_error"

	// KindEmptyForm means detection found no candidate fields. Terminal: the
	// site either changed or is unsupported, so retrying will not help.
	KindEmptyForm ErrorKind = "empty_form"

	// KindChallengeBlocked means an anti-automation challenge blocks the
	// submission. The record is quarantined, not failed.
	KindChallengeBlocked ErrorKind = "challenge_blocked"

	// KindElementError means a selector went stale or an element was not
	// interactable. Usually a layout race; retryable.
	KindElementError ErrorKind = "element_error"

	// KindValidationFailure means the remote page rejected the input.
	KindValidationFailure ErrorKind = "validation_failure"

	// KindUnknownOutcome means the post-submit state was ambiguous. Treated
	// as a retryable failure, never silently as success.
	KindUnknownOutcome ErrorKind = "unknown_outcome"

	// KindSubmissionTimeout means the post-submit settle wait was exceeded.
	KindSubmissionTimeout ErrorKind = "submission_timeout"
)

// Retryable reports whether a failure of this kind may re-enter the pending
// state, subject to the record's attempt budget.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNavigationError, KindElementError, KindValidationFailure,
		KindUnknownOutcome, KindSubmissionTimeout:
		return true
	}
	return false
}

// Error is the engine's error envelope. It carries the taxonomy kind so that
// callers never have to string-match messages to decide retry policy.
type Error struct {
	Kind  ErrorKind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a kinded error.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Errorf builds a kinded error with a formatted message and no cause.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the taxonomy kind from err, or KindNone when err carries
// no kind (including nil).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
