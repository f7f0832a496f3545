// internal/engine/engine.go
// Package engine orchestrates the application pipeline: detection, mapping
// confirmation, fill/submit, and retries. Each top-level operation owns
// exactly one browser session and releases it on every exit path.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/browser"
	"github.com/Badis-tech/autoapply/internal/config"
	"github.com/Badis-tech/autoapply/internal/detect"
	"github.com/Badis-tech/autoapply/internal/filler"
	"github.com/Badis-tech/autoapply/internal/lifecycle"
	"github.com/Badis-tech/autoapply/internal/mapper"
	"github.com/Badis-tech/autoapply/internal/profiling"
	"github.com/Badis-tech/autoapply/internal/store"
)

// Engine ties the detector, mapper, filler, and stores together behind the
// operations the CLI exposes.
type Engine struct {
	cfg      *config.Config
	logger   *zap.Logger
	sessions browser.SessionFactory
	repo     store.Repository

	detector *detect.Detector
	filler   *filler.Filler
}

// New builds an engine on the given session factory and repository.
func New(cfg *config.Config, logger *zap.Logger, sessions browser.SessionFactory, repo store.Repository) *Engine {
	return &Engine{
		cfg:      cfg,
		logger:   logger.Named("engine"),
		sessions: sessions,
		repo:     repo,
		detector: detect.NewDetector(cfg, logger),
		filler:   filler.NewFiller(cfg, logger),
	}
}

func (e *Engine) collector(operation string) *profiling.Collector {
	if !e.cfg.Profiling.Enabled {
		return nil
	}
	return profiling.NewCollector(operation)
}

// Detect scans a URL and persists the inferred schema. On an empty form the
// schema is still returned for inspection alongside the error, but it is not
// persisted.
func (e *Engine) Detect(ctx context.Context, url string) (*schemas.FormSchema, *schemas.ProfilingData, error) {
	prof := e.collector("detect")

	session, err := e.sessions.NewSession(ctx)
	if err != nil {
		return nil, prof.Finish(), err
	}
	defer func() {
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil {
			e.logger.Warn("Session close failed", zap.String("session_id", session.ID()), zap.Error(cerr))
		}
	}()

	schema, err := e.detector.Detect(ctx, session, url, prof)
	if err != nil {
		return schema, prof.Finish(), err
	}

	if serr := e.repo.SaveSchema(ctx, schema); serr != nil {
		e.logger.Warn("Schema not persisted", zap.String("schema_id", schema.ID), zap.Error(serr))
	}
	return schema, prof.Finish(), nil
}

// ConfirmMapping infers a field mapping for the stored schema, applies the
// caller's overrides, and persists the candidate so retries can re-resolve it
// later from a bare record.
func (e *Engine) ConfirmMapping(ctx context.Context, schemaID string, candidate schemas.Candidate, overrides schemas.FieldMapping) (schemas.FieldMapping, error) {
	schema, err := e.repo.GetSchema(ctx, schemaID)
	if err != nil {
		return nil, err
	}

	inferred := mapper.Infer(schema, candidate, e.cfg.Mapper.MinConfidence)
	mapping, err := mapper.Merge(schema, inferred, overrides)
	if err != nil {
		return nil, err
	}

	if serr := e.repo.SaveCandidate(ctx, candidate); serr != nil {
		e.logger.Warn("Candidate not persisted", zap.String("candidate_id", candidate.ID), zap.Error(serr))
	}

	e.logger.Info("Mapping confirmed",
		zap.String("schema_id", schemaID),
		zap.Int("mapped_fields", len(mapping)),
		zap.Int("total_fields", len(schema.Fields)),
	)
	return mapping, nil
}

// Fill runs one application attempt end to end. A record is always returned:
// failures are folded into its status and error fields rather than lost, and
// the record is persisted in whatever state the attempt ends in.
func (e *Engine) Fill(ctx context.Context, candidate schemas.Candidate, schema *schemas.FormSchema, mapping schemas.FieldMapping) (*schemas.ApplicationRecord, *schemas.ProfilingData, error) {
	rec := lifecycle.NewRecord(candidate.ID, schema.ID, schema.SourceURL)

	if serr := e.repo.SaveCandidate(ctx, candidate); serr != nil {
		e.logger.Warn("Candidate not persisted", zap.String("candidate_id", candidate.ID), zap.Error(serr))
	}

	prof := e.collector("fill")
	err := e.runAttempt(ctx, rec, candidate, schema, mapping, prof)
	e.saveRecord(ctx, rec)
	return rec, prof.Finish(), err
}

// Retry re-runs an eligible pending record. Ineligible records are a no-op
// and come back unchanged. The candidate and schema are re-resolved from the
// stores and the mapping re-inferred against the current candidate.
func (e *Engine) Retry(ctx context.Context, rec *schemas.ApplicationRecord) (*schemas.ApplicationRecord, *schemas.ProfilingData, error) {
	if !lifecycle.RetryEligible(rec) {
		e.logger.Info("Record not retry eligible",
			zap.String("application_id", rec.ID),
			zap.String("status", string(rec.Status)),
			zap.Int("attempts", rec.AttemptCount),
		)
		return rec, nil, nil
	}

	candidate, err := e.repo.GetCandidate(ctx, rec.CandidateID)
	if err != nil {
		return rec, nil, err
	}
	schema, err := e.repo.GetSchema(ctx, rec.FormSchemaID)
	if err != nil {
		return rec, nil, err
	}
	mapping := mapper.Infer(schema, candidate, e.cfg.Mapper.MinConfidence)

	prof := e.collector("fill")
	err = e.runAttempt(ctx, rec, candidate, schema, mapping, prof)
	e.saveRecord(ctx, rec)
	return rec, prof.Finish(), err
}

// Requeue returns a quarantined record to pending after its challenge was
// resolved manually.
func (e *Engine) Requeue(ctx context.Context, recordID string) (*schemas.ApplicationRecord, error) {
	rec, err := e.repo.GetApplication(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Requeue(rec); err != nil {
		return rec, err
	}
	e.saveRecord(ctx, rec)
	return rec, nil
}

// runAttempt advances the record through one fill attempt. The returned error
// is the operational failure, already folded into the record.
func (e *Engine) runAttempt(ctx context.Context, rec *schemas.ApplicationRecord, candidate schemas.Candidate, schema *schemas.FormSchema, mapping schemas.FieldMapping, prof *profiling.Collector) error {
	// Detection and mapping already happened for this schema; the record
	// still walks the full state path so every stored status is reachable
	// only through legal edges.
	for _, st := range []schemas.ApplicationStatus{
		schemas.StatusDetecting, schemas.StatusMapped, schemas.StatusFilling,
	} {
		if err := lifecycle.Transition(rec, st); err != nil {
			return err
		}
	}

	session, err := e.sessions.NewSession(ctx)
	if err != nil {
		return e.fold(rec, nil, err)
	}
	defer func() {
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil {
			e.logger.Warn("Session close failed", zap.String("session_id", session.ID()), zap.Error(cerr))
		}
	}()

	res, err := e.filler.Fill(ctx, session, schema, candidate, mapping, prof)
	if err != nil {
		return e.fold(rec, res, err)
	}

	rec.SubmittedValues = res.Filled
	rec.ScreenshotPath = screenshotOf(res)
	if terr := lifecycle.Transition(rec, schemas.StatusSubmitted); terr != nil {
		return terr
	}

	switch res.Outcome {
	case filler.OutcomeSuccess:
		if terr := lifecycle.Transition(rec, schemas.StatusSuccess); terr != nil {
			return terr
		}
		rec.LastError = ""
		rec.ErrorKind = schemas.KindNone
		return nil
	case filler.OutcomeValidationFailure:
		if terr := lifecycle.Transition(rec, schemas.StatusValidationFailed); terr != nil {
			return terr
		}
		ferr := schemas.Errorf(schemas.KindValidationFailure, "page rejected the submitted values")
		if rerr := lifecycle.RecordFailure(rec, ferr); rerr != nil {
			return rerr
		}
		return ferr
	default:
		ferr := schemas.Errorf(schemas.KindUnknownOutcome, "post-submission page state is ambiguous")
		if rerr := lifecycle.RecordFailure(rec, ferr); rerr != nil {
			return rerr
		}
		return ferr
	}
}

// fold captures an operational failure on the record: challenges quarantine,
// everything else goes through the retry policy.
func (e *Engine) fold(rec *schemas.ApplicationRecord, res *filler.Result, err error) error {
	if res != nil {
		if len(res.Filled) > 0 {
			rec.SubmittedValues = res.Filled
		}
		rec.ScreenshotPath = screenshotOf(res)
	}

	if schemas.KindOf(err) == schemas.KindChallengeBlocked {
		if qerr := lifecycle.Quarantine(rec, err); qerr != nil {
			return qerr
		}
		e.logger.Warn("Application quarantined behind challenge",
			zap.String("application_id", rec.ID), zap.String("url", rec.URL))
		return err
	}

	if rerr := lifecycle.RecordFailure(rec, err); rerr != nil {
		return rerr
	}
	return err
}

func (e *Engine) saveRecord(ctx context.Context, rec *schemas.ApplicationRecord) {
	if err := e.repo.SaveApplication(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Error("Application record not persisted",
			zap.String("application_id", rec.ID), zap.Error(err))
	}
}

func screenshotOf(res *filler.Result) string {
	if res.PostScreenshotPath != "" {
		return res.PostScreenshotPath
	}
	return res.PreScreenshotPath
}
