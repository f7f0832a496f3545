// internal/detect/classify.go
package detect

import (
	"strings"

	"github.com/Badis-tech/autoapply/api/schemas"
)

// Features is the fixed feature vector a field is classified from. It is
// assembled in-page by the batched probe; classification itself runs here,
// side-effect free, so it stays testable without a live page.
type Features struct {
	Tag         string // input, textarea, select
	HTMLType    string // the element's type attribute, lowercased
	Name        string
	ID          string
	Placeholder string
	Label       string
}

// typeAttr maps recognized explicit type attributes straight to a field type.
// Checked first; an explicit attribute outranks every keyword heuristic.
var typeAttr = map[string]schemas.FieldType{
	"email":    schemas.FieldEmail,
	"tel":      schemas.FieldPhone,
	"file":     schemas.FieldFile,
	"checkbox": schemas.FieldCheckbox,
	"date":     schemas.FieldDate,
}

// keywordVocab is the fixed keyword vocabulary matched against name, id,
// placeholder, and label. English and German terms, mirroring the sites the
// engine targets. Order matters: first match wins.
var keywordVocab = []struct {
	fieldType schemas.FieldType
	keywords  []string
}{
	{schemas.FieldEmail, []string{"email", "e-mail", "mail"}},
	{schemas.FieldPhone, []string{"phone", "mobile", "tel", "telefon"}},
	{schemas.FieldDate, []string{"date", "datum", "birth", "geburt"}},
	{schemas.FieldFile, []string{"file", "cv", "resume", "lebenslauf", "upload"}},
}

// Classify assigns a FieldType from weak signals, in priority order: explicit
// type attribute, keyword vocabulary, element tag, then the text fallback.
func Classify(f Features) schemas.FieldType {
	if t, ok := typeAttr[strings.ToLower(f.HTMLType)]; ok {
		return t
	}

	haystack := strings.ToLower(strings.Join([]string{f.Name, f.ID, f.Placeholder, f.Label}, " "))
	for _, entry := range keywordVocab {
		for _, kw := range entry.keywords {
			if strings.Contains(haystack, kw) {
				return entry.fieldType
			}
		}
	}

	switch strings.ToLower(f.Tag) {
	case "textarea":
		return schemas.FieldLongText
	case "select":
		return schemas.FieldDropdown
	}

	return schemas.FieldText
}
