// Package driver drives one browser page against a running fixture app.
//
// A Driver is created per test:
//
//	d := driver.New(app, page)
//	defer d.Close()
//
//	console, _ := d.CaptureConsole(ctx)
//	if err := d.Goto(ctx, "/fetch"); err != nil {
//	    t.Fatal(err)
//	}
//	text, err := d.Locator("#fetchID").TextContent(ctx)
//
// Navigation moves the driver through idle -> navigating -> settled; DOM
// queries are only allowed once settled.
package driver

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pion/logging"
)

// State is the navigation state of a Driver.
type State int

const (
	// StateIdle means no navigation has settled yet, or the last one failed.
	StateIdle State = iota
	// StateNavigating means Goto is in flight.
	StateNavigating
	// StateSettled means the last Goto completed; DOM queries are allowed.
	StateSettled
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNavigating:
		return "navigating"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// App is the running application a Driver navigates.
type App interface {
	BaseURL() string
}

// Option configures a Driver.
type Option func(*Driver)

// WithNavigationTimeout bounds each Goto.
// Default: 30s
func WithNavigationTimeout(d time.Duration) Option {
	return func(dr *Driver) {
		if d > 0 {
			dr.navTimeout = d
		}
	}
}

// WithQueryTimeout bounds how long DOM queries wait for an element.
// Default: 5s
func WithQueryTimeout(d time.Duration) Option {
	return func(dr *Driver) {
		if d > 0 {
			dr.queryTimeout = d
		}
	}
}

// WithLoggerFactory sets the factory used for the "driver" logger.
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(dr *Driver) {
		if f != nil {
			dr.loggerFactory = f
		}
	}
}

// Driver wraps one browser page bound to one App.
type Driver struct {
	app  App
	page *rod.Page

	navTimeout    time.Duration
	queryTimeout  time.Duration
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	// ctx lives until Close; listeners and interceptions derive from it.
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	url           string
	closed        bool
	captures      []*ConsoleCapture
	router        *rod.HijackRouter
	interceptions []*Interception
}

// New creates a Driver for page. The page should be fresh; the driver owns
// it from here on and closes it in Close.
func New(app App, page *rod.Page, opts ...Option) *Driver {
	d := &Driver{
		app:           app,
		page:          page,
		navTimeout:    30 * time.Second,
		queryTimeout:  5 * time.Second,
		loggerFactory: logging.NewDefaultLoggerFactory(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.loggerFactory.NewLogger("driver")
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Page returns the underlying Rod page.
func (d *Driver) Page() *rod.Page {
	return d.page
}

// State returns the current navigation state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// URL returns the URL of the last settled navigation.
func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// Resolve maps a path onto the app's base URL.
func (d *Driver) Resolve(path string) (string, error) {
	base, err := url.Parse(d.app.BaseURL())
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("app has no usable base URL %q", d.app.BaseURL())
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// Goto navigates to path relative to the app's base URL and returns once
// the page has loaded and the network is almost idle.
func (d *Driver) Goto(ctx context.Context, path string) error {
	target, err := d.Resolve(path)
	if err != nil {
		return &NavigationError{URL: path, Err: err}
	}

	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
		return ErrClosed
	case d.state == StateNavigating:
		d.mu.Unlock()
		return ErrBusy
	}
	d.state = StateNavigating
	d.mu.Unlock()

	start := time.Now()
	err = d.navigate(ctx, target)

	d.mu.Lock()
	if err != nil {
		d.state = StateIdle
	} else {
		d.state = StateSettled
		d.url = target
	}
	d.mu.Unlock()

	if err != nil {
		d.log.Warnf("goto %s: %v", target, err)
		return err
	}
	d.log.Debugf("goto %s settled in %s", target, time.Since(start))
	return nil
}

func (d *Driver) navigate(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, d.navTimeout)
	defer cancel()

	page := d.page.Context(ctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := page.Navigate(target); err != nil {
		return &NavigationError{URL: target, Err: err}
	}
	wait()
	if err := ctx.Err(); err != nil {
		return &NavigationError{URL: target, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return &NavigationError{URL: target, Err: err}
	}
	return nil
}

// Close releases console captures and interceptions and closes the page.
// It is safe to call more than once.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	captures := d.captures
	router := d.router
	d.captures = nil
	d.router = nil
	d.interceptions = nil
	d.mu.Unlock()

	for _, c := range captures {
		c.Close()
	}
	var err error
	if router != nil {
		err = router.Stop()
	}
	d.cancel()
	if cerr := d.page.Close(); err == nil {
		err = cerr
	}
	return err
}
