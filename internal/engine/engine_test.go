// internal/engine/engine_test.go
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/browser"
	"github.com/Badis-tech/autoapply/internal/browser/browsertest"
	"github.com/Badis-tech/autoapply/internal/config"
	"github.com/Badis-tech/autoapply/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Filler.ScreenshotDir = t.TempDir()
	cfg.Filler.FieldRetryDelay = time.Millisecond
	cfg.Filler.PostSubmitTimeout = 50 * time.Millisecond
	return &cfg
}

func fieldProbe() map[string]any {
	return map[string]any{
		"fields": []map[string]any{
			{"tag": "input", "type": "email", "name": "email", "required": true, "selector": "input[name='email']"},
			{"tag": "textarea", "type": "", "name": "motivation", "selector": "textarea[name='motivation']"},
		},
		"steps": map[string]any{},
	}
}

func noChallengeProbe() map[string]any {
	return map[string]any{
		"recaptchaV2": false, "recaptchaV3": false, "generic": false, "unknown": false,
		"submitSelector": "form > button:nth-of-type(1)",
	}
}

func newDetectSession() *browsertest.FakeSession {
	s := browsertest.NewFakeSession()
	s.FieldProbe = fieldProbe()
	s.ChallengeProbe = noChallengeProbe()
	return s
}

func newFillSession() *browsertest.FakeSession {
	s := newDetectSession()
	s.OutcomeProbe = map[string]any{"successText": true, "errorMarkers": 0}
	return s
}

func newEngine(t *testing.T, repo store.Repository, sessions ...browser.Session) *Engine {
	t.Helper()
	return New(testConfig(t), zap.NewNop(), &browsertest.Factory{Sessions: sessions}, repo)
}

func testCandidate() schemas.Candidate {
	return schemas.Candidate{
		ID:         "cand-1",
		Name:       "Ada Lovelace",
		Email:      "ada@example.org",
		Phone:      "+49 30 1234567",
		CVFilePath: "/data/cv/ada.pdf",
		Motivation: "I enjoy building analytical engines.",
	}
}

func TestDetectPersistsSchema(t *testing.T) {
	repo := store.NewMemory()
	session := newDetectSession()
	e := newEngine(t, repo, session)

	schema, data, err := e.Detect(context.Background(), "https://example.org/apply")
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Len(t, schema.Fields, 2)

	stored, err := repo.GetSchema(context.Background(), schema.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.SourceURL, stored.SourceURL)

	require.NotNil(t, data)
	assert.Equal(t, "detect", data.Operation)
	assert.Equal(t, 2, data.FieldCount)

	assert.Equal(t, 1, session.CloseCount, "the session is released after the operation")
}

func TestDetectClosesSessionOnFailure(t *testing.T) {
	session := newDetectSession()
	session.NavigateErr = schemas.Errorf(schemas.KindNavigationError, "connection refused")
	e := newEngine(t, store.NewMemory(), session)

	schema, _, err := e.Detect(context.Background(), "https://unreachable.example")
	require.Error(t, err)
	assert.Nil(t, schema)
	assert.Equal(t, 1, session.CloseCount)
}

func TestDetectEmptyFormNotPersisted(t *testing.T) {
	repo := store.NewMemory()
	session := newDetectSession()
	session.FieldProbe = map[string]any{"fields": []any{}, "steps": map[string]any{}}
	e := newEngine(t, repo, session)

	schema, _, err := e.Detect(context.Background(), "https://example.org/empty")
	require.Error(t, err)
	assert.Equal(t, schemas.KindEmptyForm, schemas.KindOf(err))
	require.NotNil(t, schema)

	_, err = repo.GetSchema(context.Background(), schema.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConfirmMapping(t *testing.T) {
	repo := store.NewMemory()
	e := newEngine(t, repo)

	schema := &schemas.FormSchema{
		ID:        "schema-1",
		SourceURL: "https://example.org/apply",
		Fields: []schemas.FieldDescriptor{
			{Selector: "#email", Name: "email", Type: schemas.FieldEmail},
			{Selector: "#about", Name: "about", Type: schemas.FieldLongText},
		},
	}
	require.NoError(t, repo.SaveSchema(context.Background(), schema))

	mapping, err := e.ConfirmMapping(context.Background(), "schema-1", testCandidate(),
		schemas.FieldMapping{"about": schemas.AttrMotivation})
	require.NoError(t, err)

	assert.Equal(t, schemas.AttrEmail, mapping["email"])
	assert.Equal(t, schemas.AttrMotivation, mapping["about"])

	// The candidate is persisted for later retries.
	cand, err := repo.GetCandidate(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", cand.Email)
}

func TestConfirmMappingUnknownSchema(t *testing.T) {
	e := newEngine(t, store.NewMemory())
	_, err := e.ConfirmMapping(context.Background(), "missing", testCandidate(), nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func fillSchema() *schemas.FormSchema {
	return &schemas.FormSchema{
		ID:        "schema-1",
		SourceURL: "https://example.org/apply",
		Fields: []schemas.FieldDescriptor{
			{Selector: "input[name='email']", Name: "email", Type: schemas.FieldEmail},
			{Selector: "textarea[name='motivation']", Name: "motivation", Type: schemas.FieldLongText},
		},
		ChallengeType:  schemas.ChallengeNone,
		SubmitSelector: "form > button:nth-of-type(1)",
	}
}

func fillMapping() schemas.FieldMapping {
	return schemas.FieldMapping{
		"email":      schemas.AttrEmail,
		"motivation": schemas.AttrMotivation,
	}
}

func TestFillSuccess(t *testing.T) {
	repo := store.NewMemory()
	session := newFillSession()
	e := newEngine(t, repo, session)

	rec, data, err := e.Fill(context.Background(), testCandidate(), fillSchema(), fillMapping())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, schemas.StatusSuccess, rec.Status)
	require.NotNil(t, rec.SubmittedAt)
	assert.Equal(t, "ada@example.org", rec.SubmittedValues["email"])
	assert.NotEmpty(t, rec.ScreenshotPath)
	assert.Equal(t, 1, session.CloseCount)

	require.NotNil(t, data)
	assert.Equal(t, "fill", data.Operation)
	assert.Equal(t, 2, data.ScreenshotCount)

	stored, err := repo.GetApplication(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusSuccess, stored.Status)
}

func TestFillChallengeQuarantine(t *testing.T) {
	repo := store.NewMemory()
	session := newFillSession()
	schema := fillSchema()
	schema.ChallengeType = schemas.ChallengeV2
	e := newEngine(t, repo, session)

	rec, _, err := e.Fill(context.Background(), testCandidate(), schema, fillMapping())
	require.Error(t, err)
	assert.Equal(t, schemas.KindChallengeBlocked, schemas.KindOf(err))
	require.NotNil(t, rec)

	assert.Equal(t, schemas.StatusCaptchaQuarantine, rec.Status)
	assert.True(t, rec.RequiresManualAction)
	assert.Equal(t, schemas.ManualActionCaptcha, rec.ManualActionType)
	assert.Nil(t, rec.SubmittedAt, "a quarantined application was never submitted")
	assert.Equal(t, 1, session.CloseCount)

	stored, err := repo.GetApplication(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCaptchaQuarantine, stored.Status)
}

func TestFillValidationFailureRequeues(t *testing.T) {
	session := newFillSession()
	session.OutcomeProbe = map[string]any{"successText": false, "errorMarkers": 1}
	e := newEngine(t, store.NewMemory(), session)

	rec, _, err := e.Fill(context.Background(), testCandidate(), fillSchema(), fillMapping())
	require.Error(t, err)
	assert.Equal(t, schemas.KindValidationFailure, schemas.KindOf(err))

	assert.Equal(t, schemas.StatusPending, rec.Status)
	assert.Equal(t, 1, rec.AttemptCount)
	require.NotNil(t, rec.SubmittedAt, "the submission did happen")
}

func TestFillUnknownOutcomeRequeues(t *testing.T) {
	session := newFillSession()
	session.OutcomeProbe = map[string]any{"successText": false, "errorMarkers": 0}
	e := newEngine(t, store.NewMemory(), session)

	rec, _, err := e.Fill(context.Background(), testCandidate(), fillSchema(), fillMapping())
	require.Error(t, err)
	assert.Equal(t, schemas.KindUnknownOutcome, schemas.KindOf(err))
	assert.Equal(t, schemas.StatusPending, rec.Status)
}

func TestFillNavigationFailureConsumesAttempt(t *testing.T) {
	session := newFillSession()
	session.NavigateErr = schemas.Errorf(schemas.KindNavigationError, "connection refused")
	e := newEngine(t, store.NewMemory(), session)

	rec, _, err := e.Fill(context.Background(), testCandidate(), fillSchema(), fillMapping())
	require.Error(t, err)
	assert.Equal(t, schemas.StatusPending, rec.Status)
	assert.Equal(t, 1, rec.AttemptCount)
	assert.Equal(t, 1, session.CloseCount)
}

func TestRetryNoOpWhenIneligible(t *testing.T) {
	e := newEngine(t, store.NewMemory())

	rec := &schemas.ApplicationRecord{ID: "app-1", Status: schemas.StatusFailed, MaxAttempts: 3}
	got, data, err := e.Retry(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Same(t, rec, got)
	assert.Equal(t, schemas.StatusFailed, got.Status)
}

func TestRetryRunsEligibleRecord(t *testing.T) {
	repo := store.NewMemory()
	ctx := context.Background()

	// First attempt fails on navigation, leaving a pending record.
	failing := newFillSession()
	failing.NavigateErr = schemas.Errorf(schemas.KindNavigationError, "connection refused")
	healthy := newFillSession()

	e := newEngine(t, repo, failing, healthy)

	schema := fillSchema()
	require.NoError(t, repo.SaveSchema(ctx, schema))

	rec, _, err := e.Fill(ctx, testCandidate(), schema, fillMapping())
	require.Error(t, err)
	require.Equal(t, schemas.StatusPending, rec.Status)

	// Retry re-resolves candidate and schema from the stores and succeeds.
	rec, _, err = e.Retry(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusSuccess, rec.Status)
	assert.Equal(t, 1, rec.AttemptCount, "the successful run consumes no attempt")
	assert.Equal(t, "ada@example.org", healthy.Filled["input[name='email']"])
}

func TestRequeueQuarantinedRecord(t *testing.T) {
	repo := store.NewMemory()
	session := newFillSession()
	schema := fillSchema()
	schema.ChallengeType = schemas.ChallengeV2
	e := newEngine(t, repo, session)

	rec, _, err := e.Fill(context.Background(), testCandidate(), schema, fillMapping())
	require.Error(t, err)
	require.Equal(t, schemas.StatusCaptchaQuarantine, rec.Status)

	requeued, err := e.Requeue(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusPending, requeued.Status)
	assert.False(t, requeued.RequiresManualAction)
}

func TestRequeueUnknownRecord(t *testing.T) {
	e := newEngine(t, store.NewMemory())
	_, err := e.Requeue(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
