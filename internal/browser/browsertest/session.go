// internal/browser/browsertest/session.go
// Package browsertest provides an in-memory Session double for unit tests.
// It routes batched evaluations to canned results keyed on probe markers, so
// detection and fill logic can be exercised without a browser.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Badis-tech/autoapply/internal/browser"
)

// FakeSession implements browser.Session for tests.
type FakeSession struct {
	mu sync.Mutex

	SessionID string

	// Canned probe results, copied into the evaluation output via JSON.
	FieldProbe     any // result for the field extraction script
	ChallengeProbe any // result for the challenge/control script
	OutcomeProbe   any // result for the post-submit outcome script
	SettleProbe    any // result for the settle poll script

	// Error injection.
	NavigateErr error
	EvalErr     error
	SettleErr   error
	// FillErrs holds per-selector error queues; each fill consumes one entry,
	// letting tests simulate a transient layout race that heals on retry.
	FillErrs map[string][]error
	ClickErr error

	ScreenshotData []byte
	ScreenshotErr  error

	// Recorded interactions.
	Navigated   []string
	Filled      map[string]string
	Selected    map[string]string
	Checked     map[string]bool
	Attached    map[string]string
	Clicked     []string
	Pressed     []string
	Screenshots int
	CloseCount  int
}

// NewFakeSession returns a fake with empty interaction maps.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		SessionID: "fake-session",
		Filled:    map[string]string{},
		Selected:  map[string]string{},
		Checked:   map[string]bool{},
		Attached:  map[string]string{},
		FillErrs:  map[string][]error{},
	}
}

var _ browser.Session = (*FakeSession)(nil)

func (f *FakeSession) ID() string { return f.SessionID }

func (f *FakeSession) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigated = append(f.Navigated, url)
	return f.NavigateErr
}

func (f *FakeSession) EvaluateBatch(_ context.Context, script string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.EvalErr != nil {
		return f.EvalErr
	}

	var result any
	switch {
	case strings.Contains(script, "recaptchaV2"):
		result = f.ChallengeProbe
	case strings.Contains(script, "errorMarkers"):
		result = f.OutcomeProbe
	case strings.Contains(script, "__autoapply_settle"):
		result = f.SettleProbe
	default:
		result = f.FieldProbe
	}
	if result == nil {
		return fmt.Errorf("browsertest: no canned result for script")
	}
	return copyJSON(result, out)
}

func (f *FakeSession) FillField(_ context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if queue := f.FillErrs[selector]; len(queue) > 0 {
		err := queue[0]
		f.FillErrs[selector] = queue[1:]
		if err != nil {
			return err
		}
	}
	f.Filled[selector] = value
	return nil
}

func (f *FakeSession) SelectOption(_ context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Selected[selector] = value
	return nil
}

func (f *FakeSession) SetChecked(_ context.Context, selector string, checked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Checked[selector] = checked
	return nil
}

func (f *FakeSession) AttachFile(_ context.Context, selector, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Attached[selector] = path
	return nil
}

func (f *FakeSession) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ClickErr != nil {
		return f.ClickErr
	}
	f.Clicked = append(f.Clicked, selector)
	return nil
}

func (f *FakeSession) Press(_ context.Context, selector, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pressed = append(f.Pressed, selector+":"+key)
	return nil
}

func (f *FakeSession) Screenshot(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScreenshotErr != nil {
		return nil, f.ScreenshotErr
	}
	f.Screenshots++
	if f.ScreenshotData != nil {
		return f.ScreenshotData, nil
	}
	return []byte("png"), nil
}

func (f *FakeSession) WaitForSettle(_ context.Context, _ browser.SettleCondition, _ time.Duration) error {
	return f.SettleErr
}

func (f *FakeSession) Close(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCount++
	return nil
}

func copyJSON(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Factory hands out the given sessions in order. Implements
// browser.SessionFactory.
type Factory struct {
	mu       sync.Mutex
	Sessions []browser.Session
	Err      error
	next     int
}

func (f *Factory) NewSession(context.Context) (browser.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if f.next >= len(f.Sessions) {
		return nil, fmt.Errorf("browsertest: factory exhausted after %d sessions", f.next)
	}
	s := f.Sessions[f.next]
	f.next++
	return s, nil
}
