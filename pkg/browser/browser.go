// Package browser launches headless Chrome for driving fixture apps.
// It wraps Rod; Chrome is downloaded by Rod if no binary is found.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pion/logging"
)

// ErrClosed is returned when a closed Client is used.
var ErrClosed = errors.New("browser: closed")

// Config configures Chrome launch options.
type Config struct {
	Headless bool          // Run in headless mode (default: true)
	Timeout  time.Duration // Default operation timeout (default: 30s)
	Bin      string        // Chrome binary; empty lets Rod find or download one

	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns sensible defaults for E2E testing.
func DefaultConfig() Config {
	return Config{
		Headless: true,
		Timeout:  30 * time.Second,
	}
}

// Client owns one Chrome process.
type Client struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	log      logging.LeveledLogger

	mu     sync.Mutex
	pages  []*rod.Page
	closed bool
}

// New launches Chrome and connects to it.
// The browser is configured with:
//   - No sandbox (for container compatibility)
//   - No GPU
//   - Autoplay without user gesture
//
// Chrome is killed by Rod's leakless guard if this process dies without
// calling Close.
func New(cfg Config) (*Client, error) {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	l := launcher.New().
		Leakless(true).
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("autoplay-policy", "no-user-gesture-required")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	c := &Client{
		launcher: l,
		timeout:  cfg.Timeout,
		log:      cfg.LoggerFactory.NewLogger("browser"),
	}

	// Only the dial is bounded; rod ties its event loops to the browser
	// context, which must outlive the timeout.
	ctx, cancel := c.withTimeout(context.Background())
	client, err := cdp.StartWithURL(ctx, url, nil)
	cancel()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	browser := rod.New().Client(client)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}
	c.browser = browser
	c.log.Debugf("connected to Chrome at %s", url)
	return c, nil
}

// withTimeout bounds ctx by the client's operation timeout.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// NewPage opens a blank page bound to ctx. Opening the page is bounded by
// the client timeout. Each test should use its own page; pages are closed
// with the client if the caller does not close them.
func (c *Client) NewPage(ctx context.Context) (*rod.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	openCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	target, err := proto.TargetCreateTarget{URL: "about:blank"}.Call(c.browser.Context(openCtx))
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page, err := c.browser.PageFromTarget(target.TargetID)
	if err != nil {
		_, _ = proto.TargetCloseTarget{TargetID: target.TargetID}.Call(c.browser)
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	c.pages = append(c.pages, page)
	return page.Context(ctx), nil
}

// Timeout returns the default operation timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Browser returns the underlying Rod browser.
func (c *Client) Browser() *rod.Browser {
	return c.browser
}

// Close cleans up browser resources.
// Always call this (via defer) to prevent orphaned Chrome processes.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.browser != nil {
		err = c.browser.Close()
	}
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher.Cleanup()
	}
	c.log.Debugf("closed Chrome (%d pages opened)", len(c.pages))
	return err
}
