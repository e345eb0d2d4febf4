package suite

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/bugreport/pkg/appserver"
	"github.com/thesyncim/bugreport/pkg/driver"
	"github.com/thesyncim/bugreport/pkg/fixture"
	"github.com/thesyncim/bugreport/pkg/internal/clock"
)

// Pages opens browser pages. *browser.Client implements it.
type Pages interface {
	NewPage(ctx context.Context) (*rod.Page, error)
}

// TestLogger receives progress events while a suite runs.
type TestLogger interface {
	TestStarted(name string)
	TestFinished(result TestResult)
	TestSkipped(name, reason string)
}

type nullTestLogger struct{}

func (nullTestLogger) TestStarted(string)         {}
func (nullTestLogger) TestFinished(TestResult)    {}
func (nullTestLogger) TestSkipped(string, string) {}

// Env is what a suite run needs from its surroundings.
type Env struct {
	Pages         Pages
	Server        appserver.Config
	DriverOptions []driver.Option
	LoggerFactory logging.LoggerFactory
	Logger        TestLogger
	Clock         clock.Clock

	// newSession replaces the browser-backed session in tests.
	newSession func(ctx context.Context, app *appserver.Server, s *Suite) (session, error)
}

// session is one case's view of the app.
type session interface {
	Goto(ctx context.Context, path string) error
	TextContent(ctx context.Context, selector string) (string, error)
	Console() []driver.ConsoleMessage
	Close() error
}

func (env Env) withDefaults() Env {
	if env.LoggerFactory == nil {
		env.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if env.Logger == nil {
		env.Logger = nullTestLogger{}
	}
	if env.Clock == nil {
		env.Clock = clock.Monotonic{}
	}
	defaults := appserver.DefaultConfig()
	if env.Server.Addr == "" {
		env.Server.Addr = defaults.Addr
	}
	if env.Server.ReadTimeout == 0 {
		env.Server.ReadTimeout = defaults.ReadTimeout
	}
	if env.Server.WriteTimeout == 0 {
		env.Server.WriteTimeout = defaults.WriteTimeout
	}
	if env.Server.LoggerFactory == nil {
		env.Server.LoggerFactory = env.LoggerFactory
	}
	if env.newSession == nil {
		env.newSession = env.browserSession
	}
	return env
}

// Run builds the suite's fixture once, serves it from one App Instance and
// runs every case that passes filter, in order, each on a fresh page. The
// App Instance is closed exactly once when Run returns. A build or server
// failure aborts the run and is returned as an error; case failures are
// reported in Results.
func Run(ctx context.Context, s *Suite, env Env, filter Filter) (Results, error) {
	env = env.withDefaults()
	log := env.LoggerFactory.NewLogger("suite")
	results := Results{Suite: s.Name}
	if err := s.Validate(); err != nil {
		return results, err
	}

	fx, err := fixture.Build(ctx, s.Files, fixture.WithLoggerFactory(env.LoggerFactory))
	if err != nil {
		return results, err
	}

	cfg := env.Server
	cfg.CloseFixture = true
	app, err := appserver.Create(fx, cfg)
	if err != nil {
		fx.Close()
		return results, fmt.Errorf("starting app: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warnf("closing app: %v", err)
		}
	}()
	log.Infof("suite %q: serving fixture %s at %s", s.Name, fx.ID, app.BaseURL())

	for _, c := range s.Cases {
		if filter != nil && !filter(c.Name) {
			env.Logger.TestSkipped(c.Name, "filtered")
			results.add(TestResult{Name: c.Name, Status: StatusSkipped, Reason: "filtered"})
			continue
		}
		if ctx.Err() != nil {
			env.Logger.TestSkipped(c.Name, "canceled")
			results.add(TestResult{Name: c.Name, Status: StatusSkipped, Reason: "canceled"})
			continue
		}

		env.Logger.TestStarted(c.Name)
		r := runCase(ctx, env, app, s, c)
		log.Debugf("case %q: %s in %s", c.Name, r.Status, r.Duration)
		env.Logger.TestFinished(r)
		results.add(r)
	}
	return results, nil
}

func runCase(ctx context.Context, env Env, app *appserver.Server, s *Suite, c Case) TestResult {
	start := env.Clock.Now()
	result := TestResult{Name: c.Name, Reason: c.ExpectFailure}

	sess, err := env.newSession(ctx, app, s)
	if err != nil {
		// Never counted as the documented defect.
		result.Status = StatusFailed
		result.Errors = []error{fmt.Errorf("opening page: %w", err)}
		result.Duration = clock.Since(env.Clock, start)
		return result
	}

	defer func() {
		if err := sess.Close(); err != nil {
			env.LoggerFactory.NewLogger("suite").Warnf("case %q: closing page: %v", c.Name, err)
		}
	}()

	// Navigation failures are never counted as the documented defect.
	if err := sess.Goto(ctx, c.Goto); err != nil {
		result.Status = StatusFailed
		result.Errors = []error{err}
		result.Console = sess.Console()
		result.Duration = clock.Since(env.Clock, start)
		return result
	}

	rec := &recorder{}
	rec.run(func(t require.TestingT) {
		text, err := sess.TextContent(ctx, c.Expect.Selector)
		require.NoError(t, err)
		if c.Expect.Contains != "" {
			assert.Contains(t, text, c.Expect.Contains)
		}
	})

	result.Duration = clock.Since(env.Clock, start)
	result.Console = sess.Console()
	result.Errors = rec.errors

	switch {
	case c.ExpectFailure == "" && rec.failed:
		result.Status = StatusFailed
	case c.ExpectFailure == "":
		result.Status = StatusPassed
	case rec.failed:
		result.Status = StatusExpectedFailure
	default:
		result.Status = StatusUnexpectedPass
		result.Errors = append(result.Errors,
			fmt.Errorf("expected failure did not occur (%s); the defect may be fixed", c.ExpectFailure))
	}
	return result
}

// Err joins every failure into one error, or returns nil.
func (r Results) Err() error {
	var errs []error
	for _, f := range r.Failures {
		if len(f.Errors) == 0 {
			errs = append(errs, TestFailure{Name: f.Name, Err: errors.New(f.Status.String())})
		}
		for _, err := range f.Errors {
			errs = append(errs, TestFailure{Name: f.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// browserSession opens a page, applies the suite's intercepts and starts
// console capture.
func (env Env) browserSession(ctx context.Context, app *appserver.Server, s *Suite) (session, error) {
	if env.Pages == nil {
		return nil, errors.New("no browser configured")
	}
	page, err := env.Pages.NewPage(ctx)
	if err != nil {
		return nil, err
	}

	opts := append([]driver.Option{driver.WithLoggerFactory(env.LoggerFactory)}, env.DriverOptions...)
	d := driver.New(app, page, opts...)

	for _, ic := range s.Intercept {
		handler := driver.Delay(ic.Delay)
		if ic.Abort != "" {
			handler = driver.AbortWith(proto.NetworkErrorReason(ic.Abort))
		}
		if _, err := d.Intercept(ic.Regexp(), handler); err != nil {
			d.Close()
			return nil, err
		}
	}

	capture, err := d.CaptureConsole(ctx)
	if err != nil {
		d.Close()
		return nil, err
	}
	return &browserSession{d: d, console: capture}, nil
}

type browserSession struct {
	d       *driver.Driver
	console *driver.ConsoleCapture
}

func (b *browserSession) Goto(ctx context.Context, path string) error {
	return b.d.Goto(ctx, path)
}

func (b *browserSession) TextContent(ctx context.Context, selector string) (string, error) {
	return b.d.Locator(selector).TextContent(ctx)
}

func (b *browserSession) Console() []driver.ConsoleMessage {
	return b.console.Messages()
}

func (b *browserSession) Close() error {
	return b.d.Close()
}
