// api/schemas/schemas.go
package schemas

import (
	"time"
)

// FieldType is the classification assigned to a detected form field.
type FieldType string

const (
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldText     FieldType = "text"
	FieldLongText FieldType = "long_text"
	FieldFile     FieldType = "file_upload"
	FieldCheckbox FieldType = "checkbox"
	FieldDropdown FieldType = "dropdown"
	FieldDate     FieldType = "date"
	FieldUnknown  FieldType = "unknown"
)

// ChallengeType identifies an anti-automation widget found on a page.
// The engine only detects these; it never attempts to solve or bypass them.
type ChallengeType string

const (
	ChallengeNone    ChallengeType = "none"
	ChallengeV2      ChallengeType = "challenge_v2"
	ChallengeV3      ChallengeType = "challenge_v3"
	ChallengeGeneric ChallengeType = "generic_challenge"
	ChallengeUnknown ChallengeType = "unknown"
)

// FieldDescriptor describes a single candidate form field. Identity is the
// selector; a descriptor is immutable once its schema snapshot is built.
type FieldDescriptor struct {
	Selector    string    `json:"selector"`
	Name        string    `json:"name"`
	HTMLType    string    `json:"html_type"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder,omitempty"`
	Label       string    `json:"label,omitempty"`
}

// FormSchema is a snapshot of a remote form's inferred structure at one point
// in time. Schemas are never mutated after creation; a rescan produces a new
// schema with a new ID, so stale mappings are detectable by ID mismatch.
type FormSchema struct {
	ID               string            `json:"id"`
	SourceURL        string            `json:"source_url"`
	Fields           []FieldDescriptor `json:"fields"`
	ChallengeType    ChallengeType     `json:"challenge_type"`
	SubmitSelector   string            `json:"submit_selector,omitempty"`
	IsMultiStep      bool              `json:"is_multi_step"`
	SuccessIndicator string            `json:"success_indicator,omitempty"`
	DetectedAt       time.Time         `json:"detected_at"`
	LastVerifiedAt   time.Time         `json:"last_verified_at"`
}

// Field returns the descriptor with the given name, if present.
func (s *FormSchema) Field(name string) (FieldDescriptor, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Candidate is the applicant profile supplied by the caller. It is read-only
// to the engine.
type Candidate struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	CVFilePath     string    `json:"cv_file_path"`
	Certifications []string  `json:"certifications,omitempty"`
	Languages      []string  `json:"languages,omitempty"`
	Motivation     string    `json:"motivation,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CandidateAttribute is a dotted path into a Candidate, e.g. "candidate.email".
type CandidateAttribute string

const (
	AttrName       CandidateAttribute = "candidate.name"
	AttrFirstName  CandidateAttribute = "candidate.first_name"
	AttrLastName   CandidateAttribute = "candidate.last_name"
	AttrEmail      CandidateAttribute = "candidate.email"
	AttrPhone      CandidateAttribute = "candidate.phone"
	AttrCVFile     CandidateAttribute = "candidate.cv_file"
	AttrMotivation CandidateAttribute = "candidate.motivation"
)

// Scalar reports whether the attribute may be bound to at most one field.
// The CV file is the exception: every file-upload field may receive it.
func (a CandidateAttribute) Scalar() bool {
	return a != AttrCVFile
}

// Value resolves the attribute against a candidate. The second return is
// false when the candidate carries no usable value for it.
func (a CandidateAttribute) Value(c Candidate) (string, bool) {
	var v string
	switch a {
	case AttrName:
		v = c.Name
	case AttrFirstName:
		v = c.FirstName
	case AttrLastName:
		v = c.LastName
	case AttrEmail:
		v = c.Email
	case AttrPhone:
		v = c.Phone
	case AttrCVFile:
		v = c.CVFilePath
	case AttrMotivation:
		v = c.Motivation
	}
	return v, v != ""
}

// FieldMapping binds detected field names to candidate attributes. Fields
// absent from the map are unmapped and will be skipped by the filler.
type FieldMapping map[string]CandidateAttribute

// ApplicationStatus is the lifecycle state of one application attempt.
type ApplicationStatus string

const (
	StatusPending           ApplicationStatus = "pending"
	StatusDetecting         ApplicationStatus = "detecting"
	StatusMapped            ApplicationStatus = "mapped"
	StatusFilling           ApplicationStatus = "filling"
	StatusCaptchaQuarantine ApplicationStatus = "captcha_quarantine"
	StatusSubmitted         ApplicationStatus = "submitted"
	StatusValidationFailed  ApplicationStatus = "validation_failed"
	StatusSuccess           ApplicationStatus = "success"
	StatusFailed            ApplicationStatus = "failed"
)

// Terminal reports whether the status ends the lifecycle. Quarantined records
// are terminal for the engine; an external collaborator may resolve the
// challenge and re-queue them.
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCaptchaQuarantine:
		return true
	}
	return false
}

// DefaultMaxAttempts bounds the retry lifecycle of an application.
const DefaultMaxAttempts = 3

// ManualActionCaptcha marks a record quarantined behind an anti-automation
// challenge that a human has to clear.
const ManualActionCaptcha = "captcha"

// ApplicationRecord tracks a single application attempt from creation to a
// terminal state. It is mutated only through the lifecycle state machine.
type ApplicationRecord struct {
	ID                   string            `json:"id"`
	CandidateID          string            `json:"candidate_id"`
	FormSchemaID         string            `json:"form_schema_id"`
	URL                  string            `json:"url"`
	Status               ApplicationStatus `json:"status"`
	AttemptCount         int               `json:"attempt_count"`
	MaxAttempts          int               `json:"max_attempts"`
	LastError            string            `json:"last_error,omitempty"`
	ErrorKind            ErrorKind         `json:"error_kind,omitempty"`
	SubmittedAt          *time.Time        `json:"submitted_at,omitempty"`
	ScreenshotPath       string            `json:"screenshot_path,omitempty"`
	SubmittedValues      map[string]string `json:"submitted_values,omitempty"`
	RequiresManualAction bool              `json:"requires_manual_action"`
	ManualActionType     string            `json:"manual_action_type,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
