package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultSettle            = 500 * time.Millisecond
)

// Config controls how sessions are launched and how pages are rendered.
type Config struct {
	Headless             bool
	UserAgent            string
	ExecPath             string
	NavigationTimeout    time.Duration
	Settle               time.Duration
	NavigationsPerSecond float64
}

// Chrome launches one headless Chrome process per session via chromedp.
type Chrome struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewChrome validates cfg and returns a launcher.
func NewChrome(cfg Config, logger *zap.Logger) (*Chrome, error) {
	if cfg.NavigationTimeout < 0 {
		return nil, fmt.Errorf("navigation timeout must be >= 0")
	}
	if cfg.NavigationsPerSecond < 0 {
		return nil, fmt.Errorf("navigations per second must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.NavigationsPerSecond > 0 {
		limit = rate.Limit(cfg.NavigationsPerSecond)
	}
	return &Chrome{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

// chromeSession is a single browser process with one tab.
type chromeSession struct {
	tab     context.Context
	cancel  context.CancelFunc
	browser *Chrome
}

// Setup starts a dedicated browser process and opens its first tab.
func (c *Chrome) Setup(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))

	cancel := func() {
		tabCancel()
		allocCancel()
	}
	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", auction.ErrNoSession, err)
	}
	c.logger.Debug("browser session started")
	return &chromeSession{tab: tabCtx, cancel: cancel, browser: c}, nil
}

// Teardown closes the browser process behind session.
func (c *Chrome) Teardown(session Session) {
	s, ok := session.(*chromeSession)
	if !ok || s == nil {
		return
	}
	if err := chromedp.Cancel(s.tab); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("browser cancel failed", zap.Error(err))
	}
	s.cancel()
	c.logger.Debug("browser session closed")
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 900),
	)
	if c.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	return opts
}

func (c *Chrome) navTimeout() time.Duration {
	if c.cfg.NavigationTimeout > 0 {
		return c.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

func (c *Chrome) settle() time.Duration {
	if c.cfg.Settle > 0 {
		return c.cfg.Settle
	}
	return defaultSettle
}

// Render navigates the session's tab and returns the rendered HTML.
func (s *chromeSession) Render(ctx context.Context, url, ready string) (string, error) {
	if err := s.browser.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("navigation rate limit: %w", err)
	}

	runCtx, cancel := context.WithTimeout(s.tab, s.browser.navTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	actions := []chromedp.Action{
		s.browser.networkSetupAction(),
		chromedp.Navigate(url),
	}
	if ready != "" {
		actions = append(actions, chromedp.WaitReady(ready, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Sleep(s.browser.settle()),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

func (c *Chrome) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if c.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}
