package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/bugreport/pkg/appserver"
	"github.com/thesyncim/bugreport/pkg/driver"
	"github.com/thesyncim/bugreport/pkg/fixture"
	"github.com/thesyncim/bugreport/pkg/internal/clock"
)

func quietLogs() logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = logging.LogLevelDisabled
	f.Writer = io.Discard
	return f
}

// fakeBrowser stands in for Chrome. Goto requests the document over HTTP
// from the real App Instance; elements are looked up in a fixed table keyed
// by path and selector.
type fakeBrowser struct {
	elements    map[string]map[string]string
	openErr     error
	unreachable map[string]bool

	mu     sync.Mutex
	apps   []*appserver.Server
	opened int
	closed int
	gotos  []string
}

func (b *fakeBrowser) open(_ context.Context, app *appserver.Server, _ *Suite) (session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.apps = append(b.apps, app)
	b.opened++
	return &fakeSession{b: b, app: app}, nil
}

type fakeSession struct {
	b    *fakeBrowser
	app  *appserver.Server
	path string
}

func (s *fakeSession) Goto(ctx context.Context, path string) error {
	if s.b.unreachable[path] {
		return &driver.NavigationError{URL: path, Err: errors.New("net::ERR_CONNECTION_REFUSED")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.app.BaseURL()+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return &driver.NavigationError{URL: path, Err: err}
	}
	resp.Body.Close()

	s.b.mu.Lock()
	s.b.gotos = append(s.b.gotos, path)
	s.b.mu.Unlock()
	s.path = path
	return nil
}

func (s *fakeSession) TextContent(_ context.Context, selector string) (string, error) {
	if text, ok := s.b.elements[s.path][selector]; ok {
		return text, nil
	}
	return "", &driver.QueryTimeoutError{Selector: selector, Timeout: 5 * time.Second}
}

func (s *fakeSession) Console() []driver.ConsoleMessage {
	if s.path != "/" {
		return nil
	}
	return []driver.ConsoleMessage{{
		Type: "error",
		Args: []any{map[string]any{"status": float64(404), "message": `No route matches URL "/static/test.json"`}},
	}}
}

func (s *fakeSession) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.closed++
	return nil
}

// buggyApp renders fetch() output only; useFetcher never shows data.
func buggyApp() *fakeBrowser {
	return &fakeBrowser{elements: map[string]map[string]string{
		"/fetch": {"#fetchID": "fetch() works!"},
	}}
}

func loadBugReport(t *testing.T) *Suite {
	t.Helper()
	s, err := Load(filepath.Join("testdata", "bug_report.yaml"))
	require.NoError(t, err)
	return s
}

func testEnv(b *fakeBrowser) Env {
	return Env{
		LoggerFactory: quietLogs(),
		Clock:         clock.NewMock(time.Time{}),
		newSession:    b.open,
	}
}

func TestRun_BugReport(t *testing.T) {
	b := buggyApp()
	env := testEnv(b)
	mock := clock.NewMock(time.Time{})
	mock.SetStep(75 * time.Millisecond)
	env.Clock = mock

	results, err := Run(context.Background(), loadBugReport(t), env, nil)
	require.NoError(t, err)

	require.Len(t, results.Tests, 2)
	assert.True(t, results.OK())
	assert.NoError(t, results.Err())

	fetchCase := results.Tests[0]
	assert.Equal(t, StatusPassed, fetchCase.Status)
	assert.Empty(t, fetchCase.Errors)
	assert.Equal(t, 75*time.Millisecond, fetchCase.Duration)

	fetcherCase := results.Tests[1]
	assert.Equal(t, StatusExpectedFailure, fetcherCase.Status)
	require.NotEmpty(t, fetcherCase.Errors)
	assert.Contains(t, fetcherCase.Errors[0].Error(), "#useFetcherID")
	assert.NotEmpty(t, fetcherCase.Reason)
	require.Len(t, fetcherCase.Console, 1)
	status, ok := fetcherCase.Console[0].Status()
	assert.True(t, ok)
	assert.Equal(t, 404, status)

	assert.Equal(t, []string{"/fetch", "/"}, b.gotos)
	assert.Equal(t, 2, b.opened)
	assert.Equal(t, 2, b.closed)
}

func TestRun_OneAppClosedOnce(t *testing.T) {
	b := buggyApp()
	_, err := Run(context.Background(), loadBugReport(t), testEnv(b), nil)
	require.NoError(t, err)

	require.Len(t, b.apps, 2)
	app := b.apps[0]
	assert.Same(t, app, b.apps[1], "every case must share one App Instance")
	assert.True(t, app.Closed())
	assert.True(t, app.Fixture().Closed())
	assert.NoDirExists(t, app.Fixture().Dir)
	assert.NoError(t, app.Close())
}

func TestRun_UnexpectedPass(t *testing.T) {
	b := buggyApp()
	b.elements["/"] = map[string]string{"#useFetcherID": `{"foo":"bar"}`}

	results, err := Run(context.Background(), loadBugReport(t), testEnv(b), nil)
	require.NoError(t, err)

	assert.False(t, results.OK())
	require.Len(t, results.Failures, 1)
	f := results.Failures[0]
	assert.Equal(t, "useFetcher loads a static file", f.Name)
	assert.Equal(t, StatusUnexpectedPass, f.Status)
	require.Len(t, f.Errors, 1)
	assert.Contains(t, f.Errors[0].Error(), "expected failure did not occur")

	err = results.Err()
	require.Error(t, err)
	var tf TestFailure
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, f.Name, tf.Name)
}

func TestRun_Failure(t *testing.T) {
	b := buggyApp()
	b.elements["/fetch"]["#fetchID"] = "fetch() broke"

	results, err := Run(context.Background(), loadBugReport(t), testEnv(b), nil)
	require.NoError(t, err)

	require.Len(t, results.Failures, 1)
	assert.Equal(t, StatusFailed, results.Failures[0].Status)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "fetch() works!")
	assert.Equal(t, 1, results.Count(StatusExpectedFailure))
}

func TestRun_OpenFailureIsNeverExpected(t *testing.T) {
	b := buggyApp()
	b.openErr = errors.New("chrome crashed")

	results, err := Run(context.Background(), loadBugReport(t), testEnv(b), nil)
	require.NoError(t, err)

	require.Len(t, results.Failures, 2)
	for _, f := range results.Failures {
		assert.Equal(t, StatusFailed, f.Status, f.Name)
		assert.ErrorContains(t, f.Errors[0], "chrome crashed")
	}
}

func TestRun_NavigationFailureIsNeverExpected(t *testing.T) {
	b := buggyApp()
	b.unreachable = map[string]bool{"/": true}

	results, err := Run(context.Background(), loadBugReport(t), testEnv(b), nil)
	require.NoError(t, err)

	require.Len(t, results.Failures, 1)
	f := results.Failures[0]
	assert.Equal(t, "useFetcher loads a static file", f.Name)
	assert.Equal(t, StatusFailed, f.Status)
	require.Len(t, f.Errors, 1)
	assert.ErrorIs(t, f.Errors[0], driver.ErrNavigation)
	assert.Zero(t, results.Count(StatusExpectedFailure))
	assert.Equal(t, 2, b.closed)
}

func TestEnv_WithDefaultsKeepsServerTimeouts(t *testing.T) {
	env := Env{Server: appserver.Config{ReadTimeout: time.Second}}.withDefaults()

	assert.Equal(t, ":0", env.Server.Addr)
	assert.Equal(t, time.Second, env.Server.ReadTimeout)
	assert.Equal(t, appserver.DefaultConfig().WriteTimeout, env.Server.WriteTimeout)
	assert.NotNil(t, env.Server.LoggerFactory)
}

func TestRun_Filter(t *testing.T) {
	b := buggyApp()
	var filters RegexFilters
	require.NoError(t, filters.MustMatch.Set("^fetch"))

	results, err := Run(context.Background(), loadBugReport(t), testEnv(b), filters.AsFilter)
	require.NoError(t, err)

	assert.Equal(t, 1, results.Count(StatusPassed))
	assert.Equal(t, 1, results.Count(StatusSkipped))
	assert.Equal(t, "filtered", results.Tests[1].Reason)
	assert.Equal(t, []string{"/fetch"}, b.gotos)
}

func TestRun_BuildErrorAbortsSuite(t *testing.T) {
	s := loadBugReport(t)
	s.Files["app/routes/broken.html"] = "---\nunknown: 1\n---\n"

	b := buggyApp()
	_, err := Run(context.Background(), s, testEnv(b), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fixture.ErrBuild)
	assert.Zero(t, b.opened)
}

func TestRun_NoBrowser(t *testing.T) {
	env := Env{LoggerFactory: quietLogs()}
	results, err := Run(context.Background(), loadBugReport(t), env, nil)
	require.NoError(t, err)

	require.Len(t, results.Failures, 2)
	assert.ErrorContains(t, results.Failures[0].Errors[0], "no browser configured")
}

func TestRun_CanceledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := buggyApp()
	env := testEnv(b)
	env.newSession = func(ctx context.Context, app *appserver.Server, s *Suite) (session, error) {
		defer cancel()
		return b.open(ctx, app, s)
	}

	results, err := Run(ctx, loadBugReport(t), env, nil)
	require.NoError(t, err)

	require.Len(t, results.Tests, 2)
	assert.Equal(t, StatusSkipped, results.Tests[1].Status)
	assert.Equal(t, "canceled", results.Tests[1].Reason)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status Status
		label  string
		failed bool
	}{
		{StatusPassed, "PASS", false},
		{StatusFailed, "FAIL", true},
		{StatusExpectedFailure, "XFAIL", false},
		{StatusUnexpectedPass, "XPASS", true},
		{StatusSkipped, "SKIP", false},
		{Status(99), "UNKNOWN", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.label), func(t *testing.T) {
			assert.Equal(t, tt.label, tt.status.String())
			assert.Equal(t, tt.failed, tt.status.Failed())
		})
	}
}
