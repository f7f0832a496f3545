// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be exercised against a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the durable Repository implementation. Domain objects are
// stored as jsonb payloads with the columns the queries need lifted out.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

var _ Repository = (*Postgres)(nil)

// NewPostgres verifies the connection and returns the store.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS form_schemas (
		id          TEXT PRIMARY KEY,
		source_url  TEXT NOT NULL,
		payload     JSONB NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS candidates (
		id      TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id             TEXT PRIMARY KEY,
		candidate_id   TEXT NOT NULL,
		form_schema_id TEXT NOT NULL,
		status         TEXT NOT NULL,
		attempt_count  INT NOT NULL,
		payload        JSONB NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_status ON applications (status)`,
}

// Migrate creates the schema. Idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (p *Postgres) SaveSchema(ctx context.Context, schema *schemas.FormSchema) error {
	payload, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema %s: %w", schema.ID, err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO form_schemas (id, source_url, payload, detected_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		schema.ID, schema.SourceURL, payload, schema.DetectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save schema %s: %w", schema.ID, err)
	}
	return nil
}

func (p *Postgres) GetSchema(ctx context.Context, id string) (*schemas.FormSchema, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM form_schemas WHERE id = $1`, id,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schema %s: %w", id, err)
	}
	var schema schemas.FormSchema
	if err := json.Unmarshal(payload, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", id, err)
	}
	return &schema, nil
}

func (p *Postgres) SaveCandidate(ctx context.Context, candidate schemas.Candidate) error {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("marshal candidate %s: %w", candidate.ID, err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO candidates (id, payload) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		candidate.ID, payload,
	)
	if err != nil {
		return fmt.Errorf("save candidate %s: %w", candidate.ID, err)
	}
	return nil
}

func (p *Postgres) GetCandidate(ctx context.Context, id string) (schemas.Candidate, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM candidates WHERE id = $1`, id,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.Candidate{}, ErrNotFound
	}
	if err != nil {
		return schemas.Candidate{}, fmt.Errorf("get candidate %s: %w", id, err)
	}
	var candidate schemas.Candidate
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return schemas.Candidate{}, fmt.Errorf("unmarshal candidate %s: %w", id, err)
	}
	return candidate, nil
}

func (p *Postgres) SaveApplication(ctx context.Context, rec *schemas.ApplicationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal application %s: %w", rec.ID, err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO applications (id, candidate_id, form_schema_id, status, attempt_count, payload, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attempt_count = EXCLUDED.attempt_count,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.CandidateID, rec.FormSchemaID,
		string(rec.Status), rec.AttemptCount, payload, rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save application %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Postgres) GetApplication(ctx context.Context, id string) (*schemas.ApplicationRecord, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM applications WHERE id = $1`, id,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	var rec schemas.ApplicationRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal application %s: %w", id, err)
	}
	return &rec, nil
}

func (p *Postgres) ListApplicationsByStatus(ctx context.Context, status schemas.ApplicationStatus) ([]*schemas.ApplicationRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT payload FROM applications WHERE status = $1 ORDER BY updated_at`, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list applications by status %s: %w", status, err)
	}
	defer rows.Close()

	var out []*schemas.ApplicationRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan application row: %w", err)
		}
		var rec schemas.ApplicationRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal application row: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate application rows: %w", err)
	}
	return out, nil
}
