// internal/detect/classify_test.go
package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Badis-tech/autoapply/api/schemas"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		features Features
		want     schemas.FieldType
	}{
		{
			name:     "explicit email type wins",
			features: Features{Tag: "input", HTMLType: "email", Name: "contact"},
			want:     schemas.FieldEmail,
		},
		{
			name:     "explicit tel type",
			features: Features{Tag: "input", HTMLType: "tel", Name: "anything"},
			want:     schemas.FieldPhone,
		},
		{
			name:     "explicit file type",
			features: Features{Tag: "input", HTMLType: "file", Name: "attachment"},
			want:     schemas.FieldFile,
		},
		{
			name:     "explicit checkbox type",
			features: Features{Tag: "input", HTMLType: "checkbox", Name: "terms"},
			want:     schemas.FieldCheckbox,
		},
		{
			name:     "explicit date type",
			features: Features{Tag: "input", HTMLType: "date", Name: "start"},
			want:     schemas.FieldDate,
		},
		{
			name:     "email keyword in name",
			features: Features{Tag: "input", HTMLType: "text", Name: "user_email"},
			want:     schemas.FieldEmail,
		},
		{
			name:     "german phone keyword in label",
			features: Features{Tag: "input", HTMLType: "text", Name: "kontakt", Label: "Telefonnummer"},
			want:     schemas.FieldPhone,
		},
		{
			name:     "cv keyword in placeholder",
			features: Features{Tag: "input", HTMLType: "text", Name: "doc", Placeholder: "Lebenslauf hochladen"},
			want:     schemas.FieldFile,
		},
		{
			name:     "birth date keyword",
			features: Features{Tag: "input", HTMLType: "text", Name: "geburtsdatum"},
			want:     schemas.FieldDate,
		},
		{
			name:     "textarea falls back to long text",
			features: Features{Tag: "textarea", HTMLType: "", Name: "message"},
			want:     schemas.FieldLongText,
		},
		{
			name:     "select falls back to dropdown",
			features: Features{Tag: "select", HTMLType: "", Name: "country"},
			want:     schemas.FieldDropdown,
		},
		{
			name:     "plain input falls back to text",
			features: Features{Tag: "input", HTMLType: "text", Name: "company"},
			want:     schemas.FieldText,
		},
		{
			name:     "keyword outranks tag fallback",
			features: Features{Tag: "textarea", HTMLType: "", Name: "email_body_mail"},
			want:     schemas.FieldEmail,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.features))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	f := Features{Tag: "input", HTMLType: "text", Name: "phone_mail"}
	first := Classify(f)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(f))
	}
}

func TestIsMultiStep(t *testing.T) {
	assert.False(t, IsMultiStep(StepSignals{}))
	assert.False(t, IsMultiStep(StepSignals{FieldGroups: 1}))
	assert.True(t, IsMultiStep(StepSignals{NextControls: 1}))
	assert.True(t, IsMultiStep(StepSignals{ProgressMarkers: 2}))
	assert.True(t, IsMultiStep(StepSignals{FieldGroups: 2}))
}
