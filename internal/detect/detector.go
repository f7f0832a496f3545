// internal/detect/detector.go
package detect

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/browser"
	"github.com/Badis-tech/autoapply/internal/config"
	"github.com/Badis-tech/autoapply/internal/profiling"
)

// Detector infers a FormSchema from an unseen page using two batched
// evaluations issued concurrently over the same snapshot.
type Detector struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDetector builds a detector.
func NewDetector(cfg *config.Config, logger *zap.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.Named("detector"),
	}
}

// Detect navigates the session to url and assembles a fresh FormSchema.
// A page without any candidate field yields the schema alongside a
// KindEmptyForm error; callers must treat that as a detection failure.
func (d *Detector) Detect(ctx context.Context, session browser.Session, url string, prof *profiling.Collector) (*schemas.FormSchema, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Detection.Timeout)
	defer cancel()

	d.logger.Info("Detecting form", zap.String("url", url))

	navPhase := prof.StartPhase("page_navigation", map[string]any{"url": url})
	err := session.Navigate(ctx, url)
	navPhase.EndErr(err)
	if err != nil {
		return nil, err
	}

	// Field extraction and challenge/control detection are read-only probes
	// over the same snapshot, so they fan out concurrently.
	var (
		fields    []schemas.FieldDescriptor
		steps     StepSignals
		challenge schemas.ChallengeType
		submit    string
	)

	detPhase := prof.StartPhase("parallel_detection", nil)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fields, steps, err = Extract(gctx, session)
		return err
	})
	g.Go(func() error {
		var err error
		challenge, submit, err = DetectChallenge(gctx, session)
		return err
	})
	err = g.Wait()
	detPhase.EndErr(err)
	if err != nil {
		return nil, err
	}
	prof.SetFieldCount(len(fields))

	now := time.Now().UTC()
	schema := &schemas.FormSchema{
		ID:             uuid.New().String(),
		SourceURL:      url,
		Fields:         fields,
		ChallengeType:  challenge,
		SubmitSelector: submit,
		IsMultiStep:    IsMultiStep(steps),
		DetectedAt:     now,
		LastVerifiedAt: now,
	}

	if len(fields) == 0 {
		d.logger.Warn("No candidate fields found", zap.String("url", url))
		return schema, schemas.Errorf(schemas.KindEmptyForm, "no candidate fields on %s", url)
	}

	d.logger.Info("Form detected",
		zap.String("schema_id", schema.ID),
		zap.Int("fields", len(fields)),
		zap.String("challenge", string(challenge)),
		zap.Bool("multi_step", schema.IsMultiStep),
	)
	return schema, nil
}
