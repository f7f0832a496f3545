// internal/store/store.go
// Package store persists schemas, candidates, and application records. The
// engine speaks to the Repository interface; implementations are an
// in-memory map store for tests and single-shot CLI runs, and a PostgreSQL
// store for anything longer lived.
package store

import (
	"context"
	"errors"

	"github.com/Badis-tech/autoapply/api/schemas"
)

// ErrNotFound is returned when a lookup misses. Callers match with errors.Is.
var ErrNotFound = errors.New("store: not found")

// SchemaStore persists detected form schemas. Schemas are immutable
// snapshots; Save only ever inserts a new ID.
type SchemaStore interface {
	SaveSchema(ctx context.Context, schema *schemas.FormSchema) error
	GetSchema(ctx context.Context, id string) (*schemas.FormSchema, error)
}

// CandidateStore persists applicant profiles so that retries can re-resolve
// the candidate from a bare record.
type CandidateStore interface {
	SaveCandidate(ctx context.Context, candidate schemas.Candidate) error
	GetCandidate(ctx context.Context, id string) (schemas.Candidate, error)
}

// ApplicationStore persists application records across lifecycle updates.
type ApplicationStore interface {
	SaveApplication(ctx context.Context, rec *schemas.ApplicationRecord) error
	GetApplication(ctx context.Context, id string) (*schemas.ApplicationRecord, error)
	ListApplicationsByStatus(ctx context.Context, status schemas.ApplicationStatus) ([]*schemas.ApplicationRecord, error)
}

// Repository is the full persistence surface the engine depends on.
type Repository interface {
	SchemaStore
	CandidateStore
	ApplicationStore
}
