// internal/browser/cdp/session.go
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/browser"
	"github.com/Badis-tech/autoapply/internal/config"
)

// ensure PageSession implements the interface
var _ browser.Session = (*PageSession)(nil)

// settleArmScript installs a mutation observer and records the location so a
// later WaitForSettle can tell navigation and DOM mutation apart.
const settleArmScript = `(() => {
    window.__autoapply_settle = { href: location.href, mutations: 0 };
    const mo = new MutationObserver(() => { window.__autoapply_settle.mutations++; });
    mo.observe(document.documentElement, { childList: true, subtree: true, attributes: true, characterData: true });
    return true;
})()`

// settlePollScript reports what changed since the observer was armed. A
// missing marker means the document was replaced, i.e. a navigation.
const settlePollScript = `(() => {
    const s = window.__autoapply_settle;
    if (!s) { return { navigated: true, mutations: 0 }; }
    return { navigated: location.href !== s.href, mutations: s.mutations };
})()`

type settleState struct {
	Navigated bool `json:"navigated"`
	Mutations int  `json:"mutations"`
}

// PageSession drives a single browser tab over CDP. It is exclusively owned
// by one operation and must not be shared.
type PageSession struct {
	id     string
	cfg    *config.Config
	logger *zap.Logger

	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	isClosed bool
	mu       sync.Mutex
}

// NewPageSession creates a tab in the browser owned by allocCtx.
func NewPageSession(allocCtx context.Context, cfg *config.Config, logger *zap.Logger) (browser.Session, error) {
	id := uuid.New().String()
	sessionCtx, cancel := chromedp.NewContext(allocCtx)

	s := &PageSession{
		id:            id,
		cfg:           cfg,
		logger:        logger.Named("session").With(zap.String("session_id", id[:8])),
		sessionCtx:    sessionCtx,
		sessionCancel: cancel,
	}

	// Materialize the tab now so a dead browser surfaces here, not on the
	// first navigation.
	initCtx, cancelInit := context.WithTimeout(sessionCtx, 15*time.Second)
	defer cancelInit()
	if err := chromedp.Run(initCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create browser tab: %w", err)
	}

	s.logger.Debug("Page session initialized.")
	return s, nil
}

// ID returns the unique identifier for this session.
func (s *PageSession) ID() string { return s.id }

// runCtx derives a chromedp-executable context bounded by both the caller's
// deadline and the given ceiling.
func (s *PageSession) runCtx(ctx context.Context, ceiling time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.sessionCtx, ceiling)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() { stop(); cancel() }
}

// Navigate loads a URL, waits for the document body, then arms the settle
// observer for later waits.
func (s *PageSession) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))

	runCtx, cancel := s.runCtx(ctx, s.cfg.Network.NavigationTimeout)
	defer cancel()

	var armed bool
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Buffer for client-side hydration before probing the DOM.
		chromedp.Sleep(s.cfg.Network.PostLoadWait),
		chromedp.Evaluate(settleArmScript, &armed),
	)
	if err != nil {
		return schemas.NewError(schemas.KindNavigationError, fmt.Sprintf("navigate %s", url), err)
	}
	return nil
}

// EvaluateBatch runs a script in the page in a single round trip.
func (s *PageSession) EvaluateBatch(ctx context.Context, script string, out any) error {
	runCtx, cancel := s.runCtx(ctx, s.cfg.Network.EvaluationTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, out)); err != nil {
		return schemas.NewError(schemas.KindNavigationError, "batched evaluation failed", err)
	}
	return nil
}

// FillField clears the element and types the value into it.
func (s *PageSession) FillField(ctx context.Context, selector, value string) error {
	runCtx, cancel := s.runCtx(ctx, s.cfg.Network.EvaluationTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return schemas.NewError(schemas.KindElementError, fmt.Sprintf("fill %s", selector), err)
	}
	return nil
}

// SelectOption sets the value of a select element and fires a change event.
func (s *PageSession) SelectOption(ctx context.Context, selector, value string) error {
	runCtx, cancel := s.runCtx(ctx, s.cfg.Network.EvaluationTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return schemas.NewError(schemas.KindElementError, fmt.Sprintf("select %s", selector), err)
	}
	return nil
}

// SetChecked toggles a checkbox via in-page script so the change event fires
// the way form frameworks expect.
func (s *PageSession) SetChecked(ctx context.Context, selector string, checked bool) error {
	runCtx, cancel := s.runCtx(ctx, s.cfg.Network.EvaluationTimeout)
	defer cancel()

	script := fmt.Sprintf(`(() => {
        const el = document.querySelector(%q);
        if (!el) { return false; }
        if (el.checked !== %t) {
            el.click();
        }
        return el.checked === %t;
    })()`, selector, checked, checked)

	var ok bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &ok)); err != nil {
		return schemas.NewError(schemas.KindElementError, fmt.Sprintf("toggle %s", selector), err)
	}
	if !ok {
		return schemas.Errorf(schemas.KindElementError, "checkbox %s not found or not toggleable", selector)
	}
	return nil
}

// AttachFile sets the payload of a file input.
func (s *PageSession) AttachFile(ctx context.Context, selector, path string) error {
	runCtx, cancel := s.runCtx(ctx, s.cfg.Network.EvaluationTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery),
	)
	if err != nil {
		return schemas.NewError(schemas.KindElementError, fmt.Sprintf("attach file to %s", selector), err)
	}
	return nil
}

// Click clicks the element at selector.
func (s *PageSession) Click(ctx context.Context, selector string) error {
	runCtx, cancel := s.runCtx(ctx, s.cfg.Network.EvaluationTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return schemas.NewError(schemas.KindElementError, fmt.Sprintf("click %s", selector), err)
	}
	return nil
}

// Press sends a single key to the element without clearing it.
func (s *PageSession) Press(ctx context.Context, selector, key string) error {
	runCtx, cancel := s.runCtx(ctx, s.cfg.Network.EvaluationTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.SendKeys(selector, key, chromedp.ByQuery),
	)
	if err != nil {
		return schemas.NewError(schemas.KindElementError, fmt.Sprintf("press key on %s", selector), err)
	}
	return nil
}

// Screenshot captures the current viewport as PNG bytes.
func (s *PageSession) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := s.runCtx(ctx, s.cfg.Network.EvaluationTimeout)
	defer cancel()

	var buf []byte
	capture := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			Do(ctx)
		return err
	})
	if err := chromedp.Run(runCtx, capture); err != nil {
		return nil, schemas.NewError(schemas.KindElementError, "screenshot failed", err)
	}
	return buf, nil
}

// WaitForSettle polls the settle marker until cond is met or the ceiling
// elapses. A failed poll is treated as a navigation: evaluations cannot run
// while the document is being replaced.
func (s *PageSession) WaitForSettle(ctx context.Context, cond browser.SettleCondition, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	interval := s.cfg.Network.SettlePollInterval
	if interval <= 0 {
		interval = 150 * time.Millisecond
	}

	var baseline *settleState
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var state settleState
		pollCtx, cancel := s.runCtx(ctx, interval*4)
		err := chromedp.Run(pollCtx, chromedp.Evaluate(settlePollScript, &state))
		cancel()

		switch {
		case err != nil:
			if cond.Navigation {
				return nil
			}
		case state.Navigated:
			if cond.Navigation {
				return nil
			}
		case baseline == nil:
			b := state
			baseline = &b
		case cond.DOMMutation && state.Mutations > baseline.Mutations:
			return nil
		}

		if time.Now().After(deadline) {
			return browser.ErrSettleTimeout
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close terminates the tab. Idempotent.
func (s *PageSession) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	sessionCancel := s.sessionCancel
	sessionCtx := s.sessionCtx
	s.mu.Unlock()

	if sessionCancel != nil {
		sessionCancel()
	}
	if sessionCtx == nil {
		return nil
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, 10*time.Second)
	defer cancelWait()

	select {
	case <-sessionCtx.Done():
		s.logger.Debug("Page session closed gracefully.")
	case <-waitCtx.Done():
		s.logger.Warn("Deadline exceeded waiting for page session to close.", zap.Error(waitCtx.Err()))
	}
	return nil
}
