// Package browser drives the upstream booking form with headless Chrome.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/volcanotrek/slotwatch/internal/crawl"
)

// EngineConfig controls the shared headless browser process.
type EngineConfig struct {
	UserAgent      string
	MaxSessions    int
	SessionTimeout time.Duration
}

// Engine owns the one browser process hosting all worker sessions. Sessions
// are isolated tabs of that process; nothing here touches global navigation
// state, so no locking is needed above the session level.
type Engine struct {
	cfg           EngineConfig
	limiter       chan struct{}
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// NewEngine launches the browser process all sessions will run in. The
// process stays up until Close; session churn only opens and closes tabs.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.MaxSessions < 0 {
		return nil, fmt.Errorf("max sessions must be >= 0")
	}
	var limiter chan struct{}
	if cfg.MaxSessions > 0 {
		limiter = make(chan struct{}, cfg.MaxSessions)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Engine{
		cfg:           cfg,
		limiter:       limiter,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// Close tears down the browser process and every session with it.
func (e *Engine) Close() {
	e.browserCancel()
	e.allocCancel()
}

// NewSession opens a fresh tab in the shared browser. The caller owns the
// session and must Close it on every exit path.
func (e *Engine) NewSession(ctx context.Context) (crawl.Session, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)

	startCtx, cancel := context.WithTimeout(tabCtx, e.startTimeout())
	defer cancel()

	actions := []chromedp.Action{chromedp.ActionFunc(func(ctx context.Context) error {
		if e.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(e.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})}
	if err := chromedp.Run(startCtx, actions...); err != nil {
		tabCancel()
		e.release()
		return nil, fmt.Errorf("start session: %w", err)
	}

	return &Session{
		ctx:    tabCtx,
		cancel: tabCancel,
		onClose: func() {
			e.release()
		},
	}, nil
}

func (e *Engine) startTimeout() time.Duration {
	if e.cfg.SessionTimeout > 0 {
		return e.cfg.SessionTimeout
	}
	return 30 * time.Second
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	select {
	case e.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session slot wait canceled: %w", ctx.Err())
	}
}

func (e *Engine) release() {
	if e.limiter == nil {
		return
	}
	select {
	case <-e.limiter:
	default:
	}
}

// Session is one isolated browser tab holding its own navigation state.
type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	onClose func()
	closed  bool
}

// HTML returns the current document markup.
func (s *Session) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := boundTo(s.ctx, ctx)
	defer cancel()
	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capture html: %w", err)
	}
	return html, nil
}

// Close releases the tab and its engine slot. Safe to call once per session.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	if s.onClose != nil {
		s.onClose()
	}
}

// boundTo derives a context for chromedp.Run that carries the session's
// target but respects the caller's deadline.
func boundTo(session, caller context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := caller.Deadline(); ok {
		return context.WithDeadline(session, deadline)
	}
	return context.WithCancel(session)
}
