// internal/mapper/mapper.go
// Package mapper binds detected form fields to candidate attributes. Mapping
// is a pure function over the schema and candidate: no page access, no side
// effects, so the heuristics stay testable in isolation.
package mapper

import (
	"sort"
	"strings"

	"github.com/Badis-tech/autoapply/api/schemas"
)

// attrVocab gives each candidate attribute its semantic tokens. Token overlap
// with a field's name, label, and placeholder drives the score.
var attrVocab = map[schemas.CandidateAttribute][]string{
	schemas.AttrEmail:      {"email", "e-mail", "mail"},
	schemas.AttrPhone:      {"phone", "mobile", "tel", "telefon"},
	schemas.AttrFirstName:  {"first", "fname", "vorname", "given", "firstname"},
	schemas.AttrLastName:   {"last", "lname", "surname", "nachname", "lastname", "family"},
	schemas.AttrName:       {"name", "fullname"},
	schemas.AttrCVFile:     {"file", "cv", "resume", "lebenslauf", "upload", "attachment"},
	schemas.AttrMotivation: {"motivation", "cover", "letter", "message", "anschreiben", "about"},
}

// typePreference shortcuts scoring for field types that imply one attribute.
var typePreference = map[schemas.FieldType]schemas.CandidateAttribute{
	schemas.FieldEmail: schemas.AttrEmail,
	schemas.FieldPhone: schemas.AttrPhone,
	schemas.FieldFile:  schemas.AttrCVFile,
}

// Signal weights: an attribute token in the field name is the strongest
// signal, the label weaker, the placeholder weakest.
const (
	weightName        = 3.0
	weightLabel       = 2.0
	weightPlaceholder = 1.0
)

// Infer produces a FieldMapping for the schema. Fields whose best attribute
// score falls below minConfidence, whose best score is tied between
// attributes, or whose attribute carries no candidate value stay unmapped.
// No two fields bind the same scalar attribute; file uploads may all share
// the CV file.
func Infer(schema *schemas.FormSchema, candidate schemas.Candidate, minConfidence float64) schemas.FieldMapping {
	mapping := make(schemas.FieldMapping)
	used := make(map[schemas.CandidateAttribute]bool)

	for _, field := range schema.Fields {
		attr, ok := bindField(field, candidate, used, minConfidence)
		if !ok {
			continue
		}
		mapping[field.Name] = attr
		if attr.Scalar() {
			used[attr] = true
		}
	}
	return mapping
}

// Merge applies caller-supplied overrides on top of an inferred mapping. An
// override always wins for the fields it names; every overridden field must
// exist in the schema — a reference to an unknown field is a precondition
// violation surfaced as an error, not folded into a record.
func Merge(schema *schemas.FormSchema, inferred, overrides schemas.FieldMapping) (schemas.FieldMapping, error) {
	merged := make(schemas.FieldMapping, len(inferred)+len(overrides))
	for name, attr := range inferred {
		merged[name] = attr
	}
	for name, attr := range overrides {
		if _, ok := schema.Field(name); !ok {
			return nil, schemas.Errorf(schemas.KindNone, "mapping override references unknown field %q", name)
		}
		merged[name] = attr
	}
	return merged, nil
}

func bindField(field schemas.FieldDescriptor, candidate schemas.Candidate, used map[schemas.CandidateAttribute]bool, minConfidence float64) (schemas.CandidateAttribute, bool) {
	// Type-implied attributes short-circuit token scoring: an email input can
	// only sensibly receive the email attribute.
	if attr, ok := typePreference[field.Type]; ok {
		if used[attr] {
			return "", false
		}
		if _, has := attr.Value(candidate); !has {
			return "", false
		}
		return attr, true
	}

	if field.Type == schemas.FieldCheckbox || field.Type == schemas.FieldDropdown || field.Type == schemas.FieldDate {
		// No candidate attribute expresses these; they stay unmapped and the
		// caller may bind them explicitly via overrides.
		return "", false
	}

	var best string
	var bestScore, runnerUpScore float64

	// Deterministic iteration keeps tie handling stable.
	attrs := make([]string, 0, len(attrVocab))
	for attr := range attrVocab {
		attrs = append(attrs, string(attr))
	}
	sort.Strings(attrs)

	for _, name := range attrs {
		attr := schemas.CandidateAttribute(name)
		if used[attr] {
			continue
		}
		if _, has := attr.Value(candidate); !has {
			continue
		}
		score := scoreField(field, attrVocab[attr])
		switch {
		case score > bestScore:
			runnerUpScore = bestScore
			best = name
			bestScore = score
		case score > runnerUpScore:
			runnerUpScore = score
		}
	}

	// Ties between attributes are ambiguous; leave the field for a human.
	if best == "" || bestScore < minConfidence || bestScore == runnerUpScore {
		return "", false
	}
	return schemas.CandidateAttribute(best), true
}

func scoreField(field schemas.FieldDescriptor, tokens []string) float64 {
	name := strings.ToLower(field.Name)
	label := strings.ToLower(field.Label)
	placeholder := strings.ToLower(field.Placeholder)

	var score float64
	for _, token := range tokens {
		if strings.Contains(name, token) {
			score += weightName
		}
		if label != "" && strings.Contains(label, token) {
			score += weightLabel
		}
		if placeholder != "" && strings.Contains(placeholder, token) {
			score += weightPlaceholder
		}
	}
	return score
}

// Resolve turns a mapping into concrete per-field values for the filler.
// Every mapped field must exist in the schema and every attribute must
// resolve against the candidate; violations are precondition errors.
func Resolve(schema *schemas.FormSchema, candidate schemas.Candidate, mapping schemas.FieldMapping) (map[string]string, error) {
	values := make(map[string]string, len(mapping))
	for name, attr := range mapping {
		if _, ok := schema.Field(name); !ok {
			return nil, schemas.Errorf(schemas.KindNone, "mapping references unknown field %q", name)
		}
		value, has := attr.Value(candidate)
		if !has {
			// The candidate lost this attribute between mapping and filling;
			// skip rather than submit an empty value.
			continue
		}
		values[name] = value
	}
	return values, nil
}
