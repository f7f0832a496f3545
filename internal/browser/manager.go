// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/internal/config"
)

// Manager owns the headless browser process. Every Session is a tab derived
// from the manager's allocator context.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// newSession builds the concrete session for a tab. Overridable in tests.
	newSession func(allocCtx context.Context, cfg *config.Config, logger *zap.Logger) (Session, error)

	// wg tracks active sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser process and verifies it is responsive.
func NewManager(ctx context.Context, logger *zap.Logger, cfg *config.Config, newSession func(context.Context, *config.Config, *zap.Logger) (Session, error)) (*Manager, error) {
	m := &Manager{
		logger:     logger.Named("browser_manager"),
		cfg:        cfg,
		newSession: newSession,
	}

	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	opts := m.buildAllocatorOptions()

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Verify the browser starts and responds before accepting work.
	testCtx, cancelTest := context.WithTimeout(allocCtx, 30*time.Second)
	testCtx, cancelTestCtx := chromedp.NewContext(testCtx)
	defer cancelTestCtx()
	defer cancelTest()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Browser.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Browser.Headless),
	)

	if m.cfg.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.Browser.UserAgent))
	}

	// Custom arguments from the config file.
	for _, arg := range m.cfg.Browser.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	return opts
}

// NewSession creates a new, fully isolated browser tab. The returned session
// is exclusively owned by the caller for the lifetime of one operation.
func (m *Manager) NewSession(ctx context.Context) (Session, error) {
	s, err := m.newSession(m.allocatorCtx, m.cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize page session: %w", err)
	}

	m.wg.Add(1)
	return &sessionWrapper{Session: s, wg: &m.wg}, nil
}

// Shutdown waits for active sessions and terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if m.allocatorCancel != nil {
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}

// sessionWrapper decrements the manager's WaitGroup exactly once on close.
type sessionWrapper struct {
	Session
	wg     *sync.WaitGroup
	closed bool
	mu     sync.Mutex
}

func (sw *sessionWrapper) Close(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.closed {
		return nil
	}

	err := sw.Session.Close(ctx)
	sw.closed = true
	sw.wg.Done()
	return err
}
