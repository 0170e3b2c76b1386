package autoria

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"autoria-scraper/config"
	"autoria-scraper/utils"
)

// ErrNoElement is returned by Page operations that need a matching element
// (such as Click) when the selector matches nothing.
var ErrNoElement = errors.New("no matching element")

// Page is the rendered-page surface the extractor works against. Read
// operations return zero values when the selector matches nothing; only
// transport and evaluation failures surface as errors.
type Page interface {
	Navigate(ctx context.Context, pageURL string) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	Click(ctx context.Context, sel string) error
	Text(ctx context.Context, sel string) (string, error)
	Texts(ctx context.Context, sel string) ([]string, error)
	Attr(ctx context.Context, sel, name string) (string, error)
	Count(ctx context.Context, sel string) (int, error)
}

// Session is one browser tab. A session belongs to exactly one worker
// between Acquire and Release; it keeps navigation state across the
// operations of a single detail-page task.
type Session struct {
	id     int
	tabCtx context.Context
	cancel context.CancelFunc
}

// run executes chromedp actions on the session's tab while honoring the
// caller's cancellation and deadline.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if d, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(s.tabCtx, d)
	} else {
		runCtx, cancel = context.WithCancel(s.tabCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, pageURL string) error {
	return s.run(ctx, chromedp.Navigate(pageURL), utils.HideWebDriver())
}

func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(wctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// Click dispatches a DOM click to the first match. Unlike the read
// operations it reports a missing element, because interactions that
// reveal content have to know whether anything was triggered.
func (s *Session) Click(ctx context.Context, sel string) error {
	var clicked bool
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, sel)

	if err := s.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return ErrNoElement
	}
	return nil
}

func (s *Session) Text(ctx context.Context, sel string) (string, error) {
	var out string
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el && el.textContent ? el.textContent : '';
	})()`, sel)
	err := s.run(ctx, chromedp.Evaluate(js, &out))
	return out, err
}

func (s *Session) Texts(ctx context.Context, sel string) ([]string, error) {
	var out []string
	js := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.textContent || '')`, sel)
	err := s.run(ctx, chromedp.Evaluate(js, &out))
	return out, err
}

func (s *Session) Attr(ctx context.Context, sel, name string) (string, error) {
	var out string
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? (el.getAttribute(%q) || '') : '';
	})()`, sel, name)
	err := s.run(ctx, chromedp.Evaluate(js, &out))
	return out, err
}

func (s *Session) Count(ctx context.Context, sel string) (int, error) {
	var out int
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, sel)
	err := s.run(ctx, chromedp.Evaluate(js, &out))
	return out, err
}

// SessionPool hands out up to Concurrency browser tabs over one shared
// Chrome process. Tabs are reused across tasks; a tab whose task failed is
// discarded and replaced lazily on the next Acquire.
type SessionPool struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	slots       *semaphore.Weighted
	log         *zap.Logger

	mu     sync.Mutex
	free   []*Session
	nextID int
}

// NewSessionPool launches the browser and opens one warm tab so that a
// broken Chrome install fails the run before any page work starts.
func NewSessionPool(cfg *config.Config, log *zap.Logger) (*SessionPool, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(
		context.Background(),
		utils.StealthOpts(cfg.Headless)...,
	)

	p := &SessionPool{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		slots:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		log:         log,
	}

	warm, err := p.newSession()
	if err != nil {
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	p.free = append(p.free, warm)

	log.Info("browser launched",
		zap.Int("sessions", cfg.Concurrency),
		zap.Bool("headless", cfg.Headless))
	return p, nil
}

func (p *SessionPool) newSession() (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(p.allocCtx)

	// Run with no actions forces the tab (and on the first call the whole
	// browser process) to start now rather than on first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.mu.Unlock()

	return &Session{id: id, tabCtx: tabCtx, cancel: cancel}, nil
}

// Acquire blocks until a worker slot is available, then returns a tab
// dedicated to the caller. Pass ownership back with Release or Discard.
func (p *SessionPool) Acquire(ctx context.Context) (*Session, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	s, err := p.newSession()
	if err != nil {
		p.slots.Release(1)
		return nil, err
	}
	return s, nil
}

// Release returns a healthy session for reuse.
func (p *SessionPool) Release(s *Session) {
	p.mu.Lock()
	p.free = append(p.free, s)
	p.mu.Unlock()
	p.slots.Release(1)
}

// Discard closes a session whose tab may be wedged. The freed slot gets a
// fresh tab on the next Acquire.
func (p *SessionPool) Discard(s *Session) {
	s.cancel()
	p.slots.Release(1)
	p.log.Debug("session discarded", zap.Int("session", s.id))
}

// Close shuts down all idle tabs and the browser process. Callers must have
// released every session first.
func (p *SessionPool) Close() {
	p.mu.Lock()
	for _, s := range p.free {
		s.cancel()
	}
	p.free = nil
	p.mu.Unlock()

	p.allocCancel()
	p.log.Info("browser closed")
}
