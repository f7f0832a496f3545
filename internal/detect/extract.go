// internal/detect/extract.go
package detect

import (
	"context"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/browser"
)

// fieldProbeScript walks every candidate element in a single in-page pass and
// returns raw features plus the structural step signals from the same DOM
// snapshot. One evaluation, one round trip: the per-element query pattern
// this replaces cost one round trip per field.
const fieldProbeScript = `(() => {
    const cssPath = (el) => {
        if (el.id) { return '#' + CSS.escape(el.id); }
        const name = el.getAttribute('name');
        if (name) { return el.tagName.toLowerCase() + "[name='" + name + "']"; }
        const parts = [];
        let node = el;
        while (node && node.nodeType === Node.ELEMENT_NODE && node.tagName !== 'HTML') {
            let idx = 1, sib = node;
            while ((sib = sib.previousElementSibling) !== null) {
                if (sib.tagName === node.tagName) { idx++; }
            }
            parts.unshift(node.tagName.toLowerCase() + ':nth-of-type(' + idx + ')');
            node = node.parentElement;
        }
        return parts.join(' > ');
    };

    const labelFor = (el) => {
        if (el.id) {
            const l = document.querySelector("label[for='" + CSS.escape(el.id) + "']");
            if (l) { return l.textContent.trim(); }
        }
        let p = el.parentElement;
        while (p && p.tagName !== 'FORM' && p.tagName !== 'BODY') {
            if (p.tagName === 'LABEL') { return p.textContent.trim(); }
            p = p.parentElement;
        }
        return '';
    };

    const fields = [];
    for (const el of document.querySelectorAll('input, textarea, select')) {
        if (el.offsetParent === null || el.disabled) { continue; }
        const type = (el.getAttribute('type') || '').toLowerCase();
        if (['hidden', 'submit', 'button', 'image', 'reset'].includes(type)) { continue; }
        fields.push({
            tag: el.tagName.toLowerCase(),
            type: type,
            name: el.getAttribute('name') || '',
            id: el.id || '',
            placeholder: el.getAttribute('placeholder') || '',
            required: el.hasAttribute('required'),
            label: labelFor(el),
            selector: cssPath(el),
        });
    }

    const stepWords = ['next', 'continue', 'weiter'];
    let nextControls = 0;
    for (const btn of document.querySelectorAll("button, input[type='button'], a[role='button']")) {
        const text = ((btn.textContent || btn.value) || '').trim().toLowerCase();
        if (stepWords.some(w => text === w || text.startsWith(w + ' '))) { nextControls++; }
    }

    return {
        fields: fields,
        steps: {
            progressMarkers: document.querySelectorAll("[class*='progress'], [class*='step'], [role='progressbar']").length,
            nextControls: nextControls,
            fieldGroups: document.querySelectorAll('form fieldset').length,
        },
    };
})()`

// rawField mirrors the probe's per-element JSON.
type rawField struct {
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	Placeholder string `json:"placeholder"`
	Required    bool   `json:"required"`
	Label       string `json:"label"`
	Selector    string `json:"selector"`
}

type fieldProbeResult struct {
	Fields []rawField  `json:"fields"`
	Steps  StepSignals `json:"steps"`
}

// Extract performs the batched field extraction: one round trip, every
// visible candidate element classified. Hidden and disabled elements are
// excluded in-page.
func Extract(ctx context.Context, session browser.Session) ([]schemas.FieldDescriptor, StepSignals, error) {
	var probe fieldProbeResult
	if err := session.EvaluateBatch(ctx, fieldProbeScript, &probe); err != nil {
		return nil, StepSignals{}, err
	}

	fields := make([]schemas.FieldDescriptor, 0, len(probe.Fields))
	for _, raw := range probe.Fields {
		name := raw.Name
		if name == "" {
			name = raw.ID
		}
		if name == "" {
			// Anonymous elements cannot be mapped or reported meaningfully.
			continue
		}

		fields = append(fields, schemas.FieldDescriptor{
			Selector:    raw.Selector,
			Name:        name,
			HTMLType:    htmlType(raw),
			Type: Classify(Features{
				Tag:         raw.Tag,
				HTMLType:    raw.Type,
				Name:        raw.Name,
				ID:          raw.ID,
				Placeholder: raw.Placeholder,
				Label:       raw.Label,
			}),
			Required:    raw.Required,
			Placeholder: raw.Placeholder,
			Label:       raw.Label,
		})
	}

	return fields, probe.Steps, nil
}

// htmlType normalizes the raw element type for the descriptor: non-input tags
// report their tag name, inputs without a type attribute report "text".
func htmlType(raw rawField) string {
	if raw.Tag != "input" {
		return raw.Tag
	}
	if raw.Type == "" {
		return "text"
	}
	return raw.Type
}
