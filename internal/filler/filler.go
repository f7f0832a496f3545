// internal/filler/filler.go
// Package filler executes the fill-and-submit half of an application: it
// types mapped candidate values into the live page, captures screenshot
// evidence around the submission, and classifies what the page did with it.
package filler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/browser"
	"github.com/Badis-tech/autoapply/internal/config"
	"github.com/Badis-tech/autoapply/internal/detect"
	"github.com/Badis-tech/autoapply/internal/mapper"
	"github.com/Badis-tech/autoapply/internal/profiling"
)

// Outcome classifies the page state observed after submission.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeValidationFailure Outcome = "validation_failure"
	OutcomeUnknown           Outcome = "unknown"
)

// Result is what one fill run produced. On a challenge gate it is partial:
// the values typed so far and any screenshot taken, with no outcome.
type Result struct {
	Outcome            Outcome
	Filled             map[string]string
	PreScreenshotPath  string
	PostScreenshotPath string
	SettleTimedOut     bool
}

// Filler drives a session through fill, submit, and outcome classification.
type Filler struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFiller builds a filler.
func NewFiller(cfg *config.Config, logger *zap.Logger) *Filler {
	return &Filler{
		cfg:    cfg,
		logger: logger.Named("filler"),
	}
}

// Fill navigates to the schema's source URL, fills every mapped field, and
// submits the form. Anti-automation challenges are a hard gate: a challenge
// known from detection or found live before submission aborts with
// KindChallengeBlocked and the form is never submitted. A completed
// submission always returns a Result; the outcome may still be a validation
// failure or unknown.
func (f *Filler) Fill(ctx context.Context, session browser.Session, schema *schemas.FormSchema, candidate schemas.Candidate, mapping schemas.FieldMapping, prof *profiling.Collector) (*Result, error) {
	res := &Result{Filled: map[string]string{}}

	if schema.ChallengeType != schemas.ChallengeNone {
		return res, schemas.Errorf(schemas.KindChallengeBlocked,
			"form carries a %s challenge; refusing to fill", schema.ChallengeType)
	}

	values, err := mapper.Resolve(schema, candidate, mapping)
	if err != nil {
		return res, err
	}

	f.logger.Info("Filling form",
		zap.String("url", schema.SourceURL),
		zap.String("schema_id", schema.ID),
		zap.Int("mapped_fields", len(values)),
	)

	navPhase := prof.StartPhase("page_navigation", map[string]any{"url": schema.SourceURL})
	err = session.Navigate(ctx, schema.SourceURL)
	navPhase.EndErr(err)
	if err != nil {
		return res, err
	}

	fillPhase := prof.StartPhase("field_filling", nil)
	err = f.fillFields(ctx, session, schema, values, res)
	fillPhase.EndErr(err)
	if err != nil {
		return res, err
	}
	prof.SetFieldCount(len(res.Filled))

	// The page may have swapped a challenge in after load (or detection may
	// be stale); re-probe before touching the submit control.
	gatePhase := prof.StartPhase("challenge_gate", nil)
	challenge, _, err := detect.DetectChallenge(ctx, session)
	gatePhase.EndErr(err)
	if err != nil {
		return res, err
	}
	if challenge != schemas.ChallengeNone {
		res.PreScreenshotPath = f.captureScreenshot(ctx, session, prof, "pre_submit")
		return res, schemas.Errorf(schemas.KindChallengeBlocked,
			"live %s challenge present before submission", challenge)
	}

	res.PreScreenshotPath = f.captureScreenshot(ctx, session, prof, "pre_submit")

	submitPhase := prof.StartPhase("form_submission", map[string]any{"selector": schema.SubmitSelector})
	err = f.submit(ctx, session, schema)
	submitPhase.EndErr(err)
	if err != nil {
		return res, err
	}

	waitPhase := prof.StartPhase("post_submit_wait", nil)
	err = session.WaitForSettle(ctx, browser.SettleAny(), f.cfg.Filler.PostSubmitTimeout)
	switch {
	case err == nil:
	case err == browser.ErrSettleTimeout:
		// The ceiling elapsing is not fatal; the page may have updated in
		// place without a mutation we can observe. Classify what is there.
		res.SettleTimedOut = true
		f.logger.Warn("Post-submit settle timed out", zap.String("url", schema.SourceURL))
		err = nil
	case errors.Is(err, context.DeadlineExceeded):
		waitPhase.EndErr(err)
		return res, schemas.NewError(schemas.KindSubmissionTimeout, "post-submit wait exceeded", err)
	default:
		waitPhase.EndErr(err)
		return res, err
	}
	waitPhase.End(!res.SettleTimedOut)

	res.PostScreenshotPath = f.captureScreenshot(ctx, session, prof, "post_submit")

	classifyPhase := prof.StartPhase("outcome_classification", nil)
	outcome, err := f.classifyOutcome(ctx, session, schema)
	classifyPhase.EndErr(err)
	if err != nil {
		return res, err
	}
	res.Outcome = outcome

	f.logger.Info("Form submitted",
		zap.String("url", schema.SourceURL),
		zap.String("outcome", string(outcome)),
		zap.Int("filled_fields", len(res.Filled)),
	)
	return res, nil
}

// fillFields types values into the page in schema order. A field that errors
// gets one in-place retry after a short delay; selectors go stale when the
// page re-renders mid-fill, and a single re-attempt absorbs that race.
func (f *Filler) fillFields(ctx context.Context, session browser.Session, schema *schemas.FormSchema, values map[string]string, res *Result) error {
	for _, field := range schema.Fields {
		value, ok := values[field.Name]
		if !ok {
			continue
		}

		err := f.fillOne(ctx, session, field, value)
		if err != nil && schemas.KindOf(err) == schemas.KindElementError {
			f.logger.Debug("Retrying field after element error",
				zap.String("selector", field.Selector), zap.Error(err))
			if werr := sleepCtx(ctx, f.cfg.Filler.FieldRetryDelay); werr != nil {
				return werr
			}
			err = f.fillOne(ctx, session, field, value)
		}
		if err != nil {
			return schemas.NewError(schemas.KindElementError,
				fmt.Sprintf("filling field %q (%s)", field.Name, field.Selector), err)
		}
		res.Filled[field.Name] = value
	}
	return nil
}

func (f *Filler) fillOne(ctx context.Context, session browser.Session, field schemas.FieldDescriptor, value string) error {
	switch field.Type {
	case schemas.FieldFile:
		return session.AttachFile(ctx, field.Selector, value)
	case schemas.FieldDropdown:
		return session.SelectOption(ctx, field.Selector, value)
	case schemas.FieldCheckbox:
		return session.SetChecked(ctx, field.Selector, parseChecked(value))
	default:
		return session.FillField(ctx, field.Selector, value)
	}
}

func parseChecked(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "0", "no", "off":
		return false
	}
	return true
}

// submit clicks the resolved submit control. When detection could not resolve
// one, pressing Enter in the last single-line field triggers the browser's
// implicit form submission instead.
func (f *Filler) submit(ctx context.Context, session browser.Session, schema *schemas.FormSchema) error {
	if schema.SubmitSelector != "" {
		return session.Click(ctx, schema.SubmitSelector)
	}

	fallback := lastSingleLineField(schema)
	if fallback == "" {
		return schemas.Errorf(schemas.KindElementError,
			"no submit control and no single-line field for implicit submission on %s", schema.SourceURL)
	}
	f.logger.Debug("No submit control resolved; pressing Enter", zap.String("selector", fallback))
	return session.Press(ctx, fallback, "\r")
}

// lastSingleLineField returns the selector of the last field where Enter
// submits rather than inserts a newline.
func lastSingleLineField(schema *schemas.FormSchema) string {
	for i := len(schema.Fields) - 1; i >= 0; i-- {
		switch schema.Fields[i].Type {
		case schemas.FieldText, schemas.FieldEmail, schemas.FieldPhone, schemas.FieldDate:
			return schema.Fields[i].Selector
		}
	}
	return ""
}

// captureScreenshot writes viewport evidence under the configured directory.
// Screenshot failures never abort a fill; the path is simply empty.
func (f *Filler) captureScreenshot(ctx context.Context, session browser.Session, prof *profiling.Collector, stage string) string {
	data, err := session.Screenshot(ctx)
	if err != nil {
		f.logger.Warn("Screenshot failed", zap.String("stage", stage), zap.Error(err))
		return ""
	}

	dir := f.cfg.Filler.ScreenshotDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.logger.Warn("Cannot create screenshot directory", zap.String("dir", dir), zap.Error(err))
		return ""
	}

	name := fmt.Sprintf("form_%s_%s.png", time.Now().UTC().Format("20060102T150405"), stage)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		f.logger.Warn("Cannot write screenshot", zap.String("path", path), zap.Error(err))
		return ""
	}
	prof.AddScreenshot()
	return path
}

// outcomeProbeScript inspects the post-submit page in one round trip: the
// schema's success indicator, common confirmation texts, and visible
// validation error markers.
const outcomeProbeScript = `
(() => {
  const successTexts = ['thank you', 'thanks', 'danke', 'received', 'eingegangen', 'erfolgreich', 'submitted successfully'];
  const body = (document.body && document.body.innerText || '').toLowerCase();
  const successText = successTexts.some((t) => body.includes(t));

  let errorMarkers = 0;
  for (const el of document.querySelectorAll('.error, .field-error, .invalid-feedback, [role="alert"], [aria-invalid="true"]')) {
    if (el.offsetParent !== null && (el.textContent || '').trim() !== '') errorMarkers++;
  }

  const indicator = %q;
  const indicatorPresent = indicator !== '' && document.querySelector(indicator) !== null;

  const formGone = document.querySelectorAll('form input, form textarea, form select').length === 0;

  return { successText, errorMarkers, indicatorPresent, formGone, url: location.href };
})()
`

type outcomeProbeResult struct {
	SuccessText      bool   `json:"successText"`
	ErrorMarkers     int    `json:"errorMarkers"`
	IndicatorPresent bool   `json:"indicatorPresent"`
	FormGone         bool   `json:"formGone"`
	URL              string `json:"url"`
}

// classifyOutcome decides what the submission did. Positive success signals
// win; visible error markers mean the page rejected the input; anything else
// is unknown and never silently treated as success.
func (f *Filler) classifyOutcome(ctx context.Context, session browser.Session, schema *schemas.FormSchema) (Outcome, error) {
	script := fmt.Sprintf(outcomeProbeScript, schema.SuccessIndicator)

	var probe outcomeProbeResult
	if err := session.EvaluateBatch(ctx, script, &probe); err != nil {
		// The page navigated away and the context died; a vanished form after
		// submission reads as success for typical confirmation redirects, but
		// without evidence we stay conservative.
		return OutcomeUnknown, schemas.NewError(schemas.KindUnknownOutcome, "outcome probe failed", err)
	}

	switch {
	case probe.IndicatorPresent || probe.SuccessText:
		return OutcomeSuccess, nil
	case probe.ErrorMarkers > 0:
		return OutcomeValidationFailure, nil
	default:
		return OutcomeUnknown, nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
