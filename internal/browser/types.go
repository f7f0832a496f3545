// internal/browser/types.go
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrSettleTimeout is returned by WaitForSettle when neither a navigation nor
// a DOM mutation was observed before the ceiling. Callers decide whether the
// ceiling itself counts as the page having settled.
var ErrSettleTimeout = errors.New("settle wait timed out")

// SettleCondition selects which signals end a WaitForSettle call. Zero value
// means wait for the full ceiling.
type SettleCondition struct {
	// Navigation settles when the document location changes or the document
	// is replaced.
	Navigation bool
	// DOMMutation settles when the page's DOM mutates after the wait begins.
	DOMMutation bool
}

// SettleAny waits for whichever of navigation or DOM mutation happens first.
func SettleAny() SettleCondition {
	return SettleCondition{Navigation: true, DOMMutation: true}
}

// Session is the contract the engine requires from a page session controller.
// One session owns exactly one remote page and serves exactly one in-flight
// operation; it is never shared.
type Session interface {
	// ID returns the unique identifier for this session.
	ID() string

	// Navigate loads a URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// EvaluateBatch runs a script in the page in a single round trip and
	// unmarshals its JSON-serializable result into out. The script must
	// compute over all elements it needs in-page; issuing one evaluation per
	// element is exactly the regression this method exists to prevent.
	EvaluateBatch(ctx context.Context, script string, out any) error

	// FillField clears the element at selector and types value into it.
	FillField(ctx context.Context, selector, value string) error

	// SelectOption picks the option with the given value on a select element.
	SelectOption(ctx context.Context, selector, value string) error

	// SetChecked toggles a checkbox or radio element.
	SetChecked(ctx context.Context, selector string, checked bool) error

	// AttachFile sets the file payload of a file input.
	AttachFile(ctx context.Context, selector, path string) error

	// Click clicks the element at selector.
	Click(ctx context.Context, selector string) error

	// Press sends a single key (e.g. "\r") to the element at selector
	// without clearing it.
	Press(ctx context.Context, selector, key string) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// WaitForSettle blocks until cond is met or the timeout ceiling elapses,
	// in which case it returns ErrSettleTimeout.
	WaitForSettle(ctx context.Context, cond SettleCondition, timeout time.Duration) error

	// Close terminates the page and releases its resources. Idempotent and
	// always callable, including after failures.
	Close(ctx context.Context) error
}

// SessionFactory creates sessions. Implemented by Manager; mocked in tests.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}
