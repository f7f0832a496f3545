// internal/mapper/mapper_test.go
package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Badis-tech/autoapply/api/schemas"
)

const minConfidence = 2.0

func testCandidate() schemas.Candidate {
	return schemas.Candidate{
		ID:         "cand-1",
		Name:       "Ada Lovelace",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.org",
		Phone:      "+49 30 1234567",
		CVFilePath: "/data/cv/ada.pdf",
		Motivation: "I enjoy building analytical engines.",
	}
}

func fieldSchema(fields ...schemas.FieldDescriptor) *schemas.FormSchema {
	return &schemas.FormSchema{ID: "schema-1", SourceURL: "https://example.org/apply", Fields: fields}
}

func TestInferTypeDrivenBindings(t *testing.T) {
	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "email", Type: schemas.FieldEmail, Selector: "input[name='email']"},
		schemas.FieldDescriptor{Name: "tel", Type: schemas.FieldPhone, Selector: "input[name='tel']"},
		schemas.FieldDescriptor{Name: "cv", Type: schemas.FieldFile, Selector: "input[name='cv']"},
	)

	mapping := Infer(schema, testCandidate(), minConfidence)

	assert.Equal(t, schemas.AttrEmail, mapping["email"])
	assert.Equal(t, schemas.AttrPhone, mapping["tel"])
	assert.Equal(t, schemas.AttrCVFile, mapping["cv"])
}

func TestInferTokenOverlap(t *testing.T) {
	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "vorname", Type: schemas.FieldText, Label: "Vorname"},
		schemas.FieldDescriptor{Name: "nachname", Type: schemas.FieldText, Label: "Nachname"},
		schemas.FieldDescriptor{Name: "motivation", Type: schemas.FieldLongText, Label: "Cover letter"},
	)

	mapping := Infer(schema, testCandidate(), minConfidence)

	assert.Equal(t, schemas.AttrFirstName, mapping["vorname"])
	assert.Equal(t, schemas.AttrLastName, mapping["nachname"])
	assert.Equal(t, schemas.AttrMotivation, mapping["motivation"])
}

func TestInferScalarAttributeUsedOnce(t *testing.T) {
	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "email", Type: schemas.FieldEmail},
		schemas.FieldDescriptor{Name: "confirm_email", Type: schemas.FieldEmail},
	)

	mapping := Infer(schema, testCandidate(), minConfidence)

	// The email attribute is scalar: the second field stays unmapped.
	assert.Equal(t, schemas.AttrEmail, mapping["email"])
	_, ok := mapping["confirm_email"]
	assert.False(t, ok)
}

func TestInferFileUploadsShareCV(t *testing.T) {
	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "cv", Type: schemas.FieldFile},
		schemas.FieldDescriptor{Name: "certificates", Type: schemas.FieldFile},
	)

	mapping := Infer(schema, testCandidate(), minConfidence)

	assert.Equal(t, schemas.AttrCVFile, mapping["cv"])
	assert.Equal(t, schemas.AttrCVFile, mapping["certificates"])
}

func TestInferMissingCandidateValueLeavesUnmapped(t *testing.T) {
	// Scenario: the form asks for a motivation but the candidate has none.
	cand := testCandidate()
	cand.Motivation = ""

	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "email", Type: schemas.FieldEmail},
		schemas.FieldDescriptor{Name: "name", Type: schemas.FieldText, Label: "Full name"},
		schemas.FieldDescriptor{Name: "motivation", Type: schemas.FieldLongText, Label: "Motivation"},
	)

	mapping := Infer(schema, cand, minConfidence)

	assert.Equal(t, schemas.AttrEmail, mapping["email"])
	assert.Equal(t, schemas.AttrName, mapping["name"])
	_, ok := mapping["motivation"]
	assert.False(t, ok, "field without a candidate value must stay unmapped")
}

func TestInferBelowThresholdUnmapped(t *testing.T) {
	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "x42", Type: schemas.FieldText},
	)

	mapping := Infer(schema, testCandidate(), minConfidence)
	assert.Empty(t, mapping)
}

func TestInferCheckboxAndDropdownUnmapped(t *testing.T) {
	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "terms", Type: schemas.FieldCheckbox},
		schemas.FieldDescriptor{Name: "country", Type: schemas.FieldDropdown},
	)

	mapping := Infer(schema, testCandidate(), minConfidence)
	assert.Empty(t, mapping)
}

func TestMergeOverridesWin(t *testing.T) {
	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "about", Type: schemas.FieldLongText},
	)
	inferred := schemas.FieldMapping{"about": schemas.AttrName}
	overrides := schemas.FieldMapping{"about": schemas.AttrMotivation}

	merged, err := Merge(schema, inferred, overrides)
	require.NoError(t, err)
	assert.Equal(t, schemas.AttrMotivation, merged["about"])
}

func TestMergeUnknownFieldIsPreconditionViolation(t *testing.T) {
	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "about", Type: schemas.FieldLongText},
	)

	_, err := Merge(schema, nil, schemas.FieldMapping{"no_such_field": schemas.AttrEmail})
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	schema := fieldSchema(
		schemas.FieldDescriptor{Name: "email", Type: schemas.FieldEmail},
		schemas.FieldDescriptor{Name: "motivation", Type: schemas.FieldLongText},
	)
	cand := testCandidate()
	cand.Motivation = ""

	mapping := schemas.FieldMapping{
		"email":      schemas.AttrEmail,
		"motivation": schemas.AttrMotivation,
	}

	values, err := Resolve(schema, cand, mapping)
	require.NoError(t, err)

	assert.Equal(t, "ada@example.org", values["email"])
	_, ok := values["motivation"]
	assert.False(t, ok, "attribute without a value resolves to nothing")
}

func TestResolveUnknownFieldFails(t *testing.T) {
	schema := fieldSchema(schemas.FieldDescriptor{Name: "email", Type: schemas.FieldEmail})

	_, err := Resolve(schema, testCandidate(), schemas.FieldMapping{"ghost": schemas.AttrEmail})
	assert.Error(t, err)
}
