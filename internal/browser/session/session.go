// Package session drives a live Chrome tab over the DevTools protocol. Every
// selector it accepts is an XPath expression.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
)

const (
	defaultActionTimeout = 30 * time.Second
	defaultWidth         = 1280
	defaultHeight        = 900
)

// Session is a single browser tab. It implements schemas.Driver and is safe
// for sequential use by one run.
type Session struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger
	closeOnce   sync.Once
	closeErr    error
}

var _ schemas.Driver = (*Session)(nil)

// AllocatorOptions turns the browser section of the config into Chrome flags.
// Extra args take the form "--name=value" or "--name".
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	width, height := defaultWidth, defaultHeight
	if w := cfg.Viewport["width"]; w > 0 {
		width = w
	}
	if h := cfg.Viewport["height"]; h > 0 {
		height = h
	}
	opts = append(opts,
		chromedp.WindowSize(width, height),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	for _, arg := range cfg.Args {
		name, value, ok := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if ok {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// New launches Chrome and opens a blank tab. The browser lives until Close,
// independent of ctx; ctx bounds the launch only.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	log := logger.Named("browser")
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(detach(ctx), AllocatorOptions(cfg)...)
	tab, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	s := &Session{
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		timeout:     cfg.ActionTimeout,
		logger:      log,
	}
	if s.timeout <= 0 {
		s.timeout = defaultActionTimeout
	}

	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(tab) }()
	select {
	case err := <-launched:
		if err != nil {
			s.release()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	case <-ctx.Done():
		s.release()
		<-launched
		return nil, ctx.Err()
	}
	log.Info("Browser started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// run executes actions in the tab, bounded by ctx and the action timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := withOperation(s.tab, ctx)
	defer cancel()
	opCtx, cancelTimeout := context.WithTimeout(opCtx, s.timeout)
	defer cancelTimeout()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	s.logger.Debug("Navigated", zap.String("url", url))
	return nil
}

func (s *Session) Click(ctx context.Context, xpath string) error {
	return s.onNode(ctx, "click", xpath, func(sel string) chromedp.Action {
		return chromedp.Click(sel, chromedp.BySearch, chromedp.NodeVisible)
	})
}

func (s *Session) Type(ctx context.Context, xpath, text string) error {
	return s.onNode(ctx, "type into", xpath, func(sel string) chromedp.Action {
		return chromedp.SendKeys(sel, text, chromedp.BySearch, chromedp.NodeVisible)
	})
}

func (s *Session) Clear(ctx context.Context, xpath string) error {
	return s.onNode(ctx, "clear", xpath, func(sel string) chromedp.Action {
		return chromedp.Clear(sel, chromedp.BySearch)
	})
}

func (s *Session) ScrollIntoView(ctx context.Context, xpath string) error {
	return s.onNode(ctx, "scroll to", xpath, func(sel string) chromedp.Action {
		return chromedp.ScrollIntoView(sel, chromedp.BySearch)
	})
}

func (s *Session) onNode(ctx context.Context, verb, xpath string, action func(string) chromedp.Action) error {
	if err := s.run(ctx, action(xpath)); err != nil {
		return fmt.Errorf("could not %s %s: %w", verb, xpath, err)
	}
	return nil
}

// Count evaluates xpath in the page instead of querying through DOM.performSearch,
// which also matches plain text.
func (s *Session) Count(ctx context.Context, xpath string) (int, error) {
	var n int
	if err := s.run(ctx, chromedp.Evaluate(countScript(xpath), &n)); err != nil {
		return 0, fmt.Errorf("counting %s: %w", xpath, err)
	}
	return n, nil
}

func (s *Session) Texts(ctx context.Context, xpath string) ([]string, error) {
	var texts []string
	if err := s.run(ctx, chromedp.Evaluate(textsScript(xpath), &texts)); err != nil {
		return nil, fmt.Errorf("reading text of %s: %w", xpath, err)
	}
	return texts, nil
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	capture := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	})
	if err := s.run(ctx, capture); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (s *Session) Reload(ctx context.Context) error {
	return s.run(ctx, chromedp.Reload())
}

func (s *Session) Back(ctx context.Context) error {
	return s.run(ctx, chromedp.NavigateBack())
}

// URL reports the address of the current document.
func (s *Session) URL(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, chromedp.Location(&url))
	return url, err
}

// Close shuts the tab and the browser. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if c := chromedp.FromContext(s.tab); c != nil && c.Browser != nil {
			if err := chromedp.Cancel(s.tab); err != nil && !errors.Is(err, context.Canceled) {
				s.closeErr = err
			}
		}
		s.release()
		s.logger.Debug("Browser closed")
	})
	return s.closeErr
}

func (s *Session) release() {
	s.cancelTab()
	s.cancelAlloc()
}
