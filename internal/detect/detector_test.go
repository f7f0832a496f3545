// internal/detect/detector_test.go
package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/browser/browsertest"
	"github.com/Badis-tech/autoapply/internal/config"
	"github.com/Badis-tech/autoapply/internal/profiling"
)

// sendFormProbe is the canned extraction result for a page with one email
// input, one textarea, and a "Send" button.
func sendFormProbe() map[string]any {
	return map[string]any{
		"fields": []map[string]any{
			{
				"tag": "input", "type": "email", "name": "email",
				"required": true, "selector": "input[name='email']",
			},
			{
				"tag": "textarea", "type": "", "name": "message",
				"selector": "textarea[name='message']",
			},
		},
		"steps": map[string]any{"progressMarkers": 0, "nextControls": 0, "fieldGroups": 1},
	}
}

func noChallengeProbe() map[string]any {
	return map[string]any{
		"recaptchaV2": false, "recaptchaV3": false, "generic": false, "unknown": false,
		"submitSelector": "form > button:nth-of-type(1)",
	}
}

func newTestDetector() *Detector {
	cfg := config.Default()
	return NewDetector(&cfg, zap.NewNop())
}

func TestDetectScenarioSendForm(t *testing.T) {
	session := browsertest.NewFakeSession()
	session.FieldProbe = sendFormProbe()
	session.ChallengeProbe = noChallengeProbe()

	d := newTestDetector()
	prof := profiling.NewCollector("detect")
	schema, err := d.Detect(context.Background(), session, "https://example.org/apply", prof)
	require.NoError(t, err)
	require.NotNil(t, schema)

	require.Len(t, schema.Fields, 2)
	assert.Equal(t, schemas.FieldEmail, schema.Fields[0].Type)
	assert.Equal(t, "email", schema.Fields[0].Name)
	assert.True(t, schema.Fields[0].Required)
	assert.Equal(t, schemas.FieldLongText, schema.Fields[1].Type)
	assert.Equal(t, "textarea", schema.Fields[1].HTMLType)

	assert.Equal(t, schemas.ChallengeNone, schema.ChallengeType)
	assert.Equal(t, "form > button:nth-of-type(1)", schema.SubmitSelector)
	assert.False(t, schema.IsMultiStep)
	assert.NotEmpty(t, schema.ID)
	assert.Equal(t, "https://example.org/apply", schema.SourceURL)

	data := prof.Finish()
	assert.Equal(t, 2, data.FieldCount)
	require.Len(t, data.Phases, 2)
	assert.Equal(t, "page_navigation", data.Phases[0].Name)
}

func TestDetectScenarioChallengePresent(t *testing.T) {
	probe := noChallengeProbe()
	probe["recaptchaV2"] = true

	session := browsertest.NewFakeSession()
	session.FieldProbe = sendFormProbe()
	session.ChallengeProbe = probe

	schema, err := newTestDetector().Detect(context.Background(), session, "https://example.org/apply", nil)
	require.NoError(t, err)

	// Field extraction is unchanged; only the challenge flag differs.
	assert.Len(t, schema.Fields, 2)
	assert.Equal(t, schemas.ChallengeV2, schema.ChallengeType)
}

func TestDetectChallengePriority(t *testing.T) {
	tests := []struct {
		name  string
		probe map[string]any
		want  schemas.ChallengeType
	}{
		{"v2 wins over generic", map[string]any{"recaptchaV2": true, "generic": true}, schemas.ChallengeV2},
		{"v3", map[string]any{"recaptchaV3": true}, schemas.ChallengeV3},
		{"generic", map[string]any{"generic": true, "unknown": true}, schemas.ChallengeGeneric},
		{"unknown marker only", map[string]any{"unknown": true}, schemas.ChallengeUnknown},
		{"none", map[string]any{}, schemas.ChallengeNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := browsertest.NewFakeSession()
			session.ChallengeProbe = tc.probe

			got, _, err := DetectChallenge(context.Background(), session)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetectEmptyForm(t *testing.T) {
	session := browsertest.NewFakeSession()
	session.FieldProbe = map[string]any{"fields": []any{}, "steps": map[string]any{}}
	session.ChallengeProbe = noChallengeProbe()

	schema, err := newTestDetector().Detect(context.Background(), session, "https://example.org/empty", nil)
	require.Error(t, err)
	assert.Equal(t, schemas.KindEmptyForm, schemas.KindOf(err))

	// The schema is still returned so callers can inspect what was scanned.
	require.NotNil(t, schema)
	assert.Empty(t, schema.Fields)
}

func TestDetectNavigationFailure(t *testing.T) {
	session := browsertest.NewFakeSession()
	session.NavigateErr = schemas.Errorf(schemas.KindNavigationError, "connection refused")

	schema, err := newTestDetector().Detect(context.Background(), session, "https://unreachable.example", nil)
	require.Error(t, err)
	assert.Nil(t, schema)
	assert.Equal(t, schemas.KindNavigationError, schemas.KindOf(err))
}

func TestDetectIdsDifferAcrossScans(t *testing.T) {
	session := browsertest.NewFakeSession()
	session.FieldProbe = sendFormProbe()
	session.ChallengeProbe = noChallengeProbe()

	d := newTestDetector()
	first, err := d.Detect(context.Background(), session, "https://example.org/apply", nil)
	require.NoError(t, err)
	second, err := d.Detect(context.Background(), session, "https://example.org/apply", nil)
	require.NoError(t, err)

	// Fresh snapshot, fresh identity; content is equal for an unchanged page.
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Fields, second.Fields)
	assert.Equal(t, first.SubmitSelector, second.SubmitSelector)
}

func TestExtractSkipsAnonymousElements(t *testing.T) {
	session := browsertest.NewFakeSession()
	session.FieldProbe = map[string]any{
		"fields": []map[string]any{
			{"tag": "input", "type": "text", "name": "", "id": "", "selector": "div > input:nth-of-type(1)"},
			{"tag": "input", "type": "text", "name": "", "id": "city", "selector": "#city"},
		},
		"steps": map[string]any{},
	}

	fields, _, err := Extract(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	// The id stands in for a missing name attribute.
	assert.Equal(t, "city", fields[0].Name)
}
