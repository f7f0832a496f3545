// internal/lifecycle/machine.go
// Package lifecycle owns the application state machine. Records only change
// state through Transition and the failure helpers here, so every status the
// stores ever see was reached through a legal edge.
package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/Badis-tech/autoapply/api/schemas"
)

// transitions enumerates every legal edge. Absence means illegal.
var transitions = map[schemas.ApplicationStatus][]schemas.ApplicationStatus{
	schemas.StatusPending:   {schemas.StatusDetecting, schemas.StatusFailed},
	schemas.StatusDetecting: {schemas.StatusMapped, schemas.StatusFailed},
	schemas.StatusMapped:    {schemas.StatusFilling},
	schemas.StatusFilling: {
		schemas.StatusCaptchaQuarantine,
		schemas.StatusSubmitted,
		schemas.StatusPending,
		schemas.StatusFailed,
	},
	schemas.StatusSubmitted: {
		schemas.StatusSuccess,
		schemas.StatusValidationFailed,
		schemas.StatusPending,
		schemas.StatusFailed,
	},
	schemas.StatusValidationFailed: {schemas.StatusPending, schemas.StatusFailed},
	// Quarantine is terminal for the engine; only an external resolution
	// re-queues the record.
	schemas.StatusCaptchaQuarantine: {schemas.StatusPending},
}

// NewRecord creates a pending application for the candidate/schema pair.
func NewRecord(candidateID, schemaID, url string) *schemas.ApplicationRecord {
	now := time.Now().UTC()
	return &schemas.ApplicationRecord{
		ID:           uuid.NewString(),
		CandidateID:  candidateID,
		FormSchemaID: schemaID,
		URL:          url,
		Status:       schemas.StatusPending,
		MaxAttempts:  schemas.DefaultMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanTransition reports whether from→to is a legal edge.
func CanTransition(from, to schemas.ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the record to the given status. An illegal edge is a
// programming error surfaced to the caller; the record is left untouched.
func Transition(rec *schemas.ApplicationRecord, to schemas.ApplicationStatus) error {
	if !CanTransition(rec.Status, to) {
		return schemas.Errorf(schemas.KindNone,
			"illegal transition %s -> %s for application %s", rec.Status, to, rec.ID)
	}
	now := time.Now().UTC()
	if to == schemas.StatusSubmitted && rec.SubmittedAt == nil {
		rec.SubmittedAt = &now
	}
	rec.Status = to
	rec.UpdatedAt = now
	return nil
}

// Quarantine parks the record behind a manual challenge resolution. The
// submission never happened, so SubmittedAt stays unset.
func Quarantine(rec *schemas.ApplicationRecord, err error) error {
	if terr := Transition(rec, schemas.StatusCaptchaQuarantine); terr != nil {
		return terr
	}
	rec.RequiresManualAction = true
	rec.ManualActionType = schemas.ManualActionCaptcha
	rec.ErrorKind = schemas.KindChallengeBlocked
	if err != nil {
		rec.LastError = err.Error()
	}
	return nil
}

// RecordFailure folds a failure into the record: the attempt is consumed, the
// error is captured, and the record moves to pending when the failure kind is
// retryable, the attempt budget allows another run, and the current state has
// a legal edge back to pending. Everything else lands in failed.
func RecordFailure(rec *schemas.ApplicationRecord, err error) error {
	kind := schemas.KindOf(err)
	rec.AttemptCount++
	rec.ErrorKind = kind
	if err != nil {
		rec.LastError = err.Error()
	}

	to := schemas.StatusFailed
	if kind.Retryable() && rec.AttemptCount < rec.MaxAttempts && CanTransition(rec.Status, schemas.StatusPending) {
		to = schemas.StatusPending
	}
	return Transition(rec, to)
}

// RetryEligible reports whether the engine may run the record again. A
// pending record with attempts left qualifies; everything terminal or
// mid-flight does not.
func RetryEligible(rec *schemas.ApplicationRecord) bool {
	if rec.Status != schemas.StatusPending {
		return false
	}
	return rec.AttemptCount < rec.MaxAttempts
}

// Requeue returns a quarantined record to pending after the challenge was
// resolved outside the engine. The manual-action markers are cleared.
func Requeue(rec *schemas.ApplicationRecord) error {
	if rec.Status != schemas.StatusCaptchaQuarantine {
		return schemas.Errorf(schemas.KindNone,
			"application %s is %s, not quarantined", rec.ID, rec.Status)
	}
	if err := Transition(rec, schemas.StatusPending); err != nil {
		return err
	}
	rec.RequiresManualAction = false
	rec.ManualActionType = ""
	return nil
}
