// internal/detect/challenge.go
package detect

import (
	"context"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/browser"
)

// challengeProbeScript checks every known challenge-widget marker and
// resolves the submit control, all in one evaluation. It is read-only: the
// probes run concurrently with field extraction over the same snapshot, so
// nothing here may mutate page state.
const challengeProbeScript = `(() => {
    const cssPath = (el) => {
        if (el.id) { return '#' + CSS.escape(el.id); }
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

    const markers = {
        v2: document.querySelector('[data-sitekey], .g-recaptcha') !== null,
        v3: Array.from(document.scripts).some(s =>
            s.src && s.src.includes('recaptcha') && s.src.includes('render=')),
        generic: document.querySelector('.h-captcha, .cf-turnstile') !== null,
        unknown: document.querySelector("[class*='captcha'], iframe[title*='captcha' i], iframe[title*='challenge' i]") !== null,
    };

    let submit = '';
    const direct = document.querySelector("button[type='submit']:not([disabled]), input[type='submit']:not([disabled])");
    if (direct) { submit = cssPath(direct); }

    if (!submit) {
        const words = ['submit', 'send', 'apply', 'absenden', 'senden', 'abschicken', 'bewerben'];
        for (const btn of document.querySelectorAll("button, input[type='button'], a[role='button']")) {
            if (btn.disabled) { continue; }
            const text = ((btn.textContent || btn.value) || '').trim().toLowerCase();
            if (words.some(w => text === w || text.startsWith(w + ' '))) {
                submit = cssPath(btn);
                break;
            }
        }
    }

    if (!submit) {
        const btns = Array.from(document.querySelectorAll('form button:not([disabled])'));
        if (btns.length > 0) { submit = cssPath(btns[btns.length - 1]); }
    }

    return { recaptchaV2: markers.v2, recaptchaV3: markers.v3, generic: markers.generic, unknown: markers.unknown, submitSelector: submit };
})()`

type challengeProbeResult struct {
	RecaptchaV2    bool   `json:"recaptchaV2"`
	RecaptchaV3    bool   `json:"recaptchaV3"`
	Generic        bool   `json:"generic"`
	Unknown        bool   `json:"unknown"`
	SubmitSelector string `json:"submitSelector"`
}

// DetectChallenge reports the challenge widget present on the page (first
// marker wins) and the resolved submit selector. An empty submit selector is
// not fatal; the caller decides on a fallback submission path.
func DetectChallenge(ctx context.Context, session browser.Session) (schemas.ChallengeType, string, error) {
	var probe challengeProbeResult
	if err := session.EvaluateBatch(ctx, challengeProbeScript, &probe); err != nil {
		return schemas.ChallengeNone, "", err
	}

	challenge := schemas.ChallengeNone
	switch {
	case probe.RecaptchaV2:
		challenge = schemas.ChallengeV2
	case probe.RecaptchaV3:
		challenge = schemas.ChallengeV3
	case probe.Generic:
		challenge = schemas.ChallengeGeneric
	case probe.Unknown:
		challenge = schemas.ChallengeUnknown
	}

	return challenge, probe.SubmitSelector, nil
}
