// Package fixture materializes a virtual file set into a built, immutable
// application that an appserver can serve.
//
// A Fixture is built once per suite and queried by many tests:
//
//	fx, err := fixture.Build(ctx, fixture.FileSet{
//	    "app/routes/_index.html":  "<h1>Hello</h1>",
//	    "public/static/test.json": `{"foo":"bar"}`,
//	})
//	if err != nil {
//	    // *BuildError: abort the suite
//	}
//	defer fx.Close()
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// ManifestFile is where the build step writes the route manifest.
const ManifestFile = "build/manifest.json"

// PublicDir holds static assets, relative to the app root.
const PublicDir = "public"

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	loggerFactory logging.LoggerFactory
	tempDir       string
}

// WithLoggerFactory sets the factory used for the "fixture" logger.
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(o *buildOptions) {
		o.loggerFactory = f
	}
}

// WithTempDir sets the parent directory of the materialized app.
// Default: os.TempDir().
func WithTempDir(dir string) Option {
	return func(o *buildOptions) {
		o.tempDir = dir
	}
}

// Fixture is a built application. It is immutable after Build returns and
// safe for concurrent use.
type Fixture struct {
	ID  string
	Dir string

	routes   []*Route
	manifest Manifest
	log      logging.LeveledLogger

	mu       sync.Mutex
	closed   bool
	closeErr error
}

// Build writes files to a temporary directory and compiles the route
// modules found there. Any failure is returned as a *BuildError and the
// temporary directory is removed.
func Build(ctx context.Context, files FileSet, opts ...Option) (*Fixture, error) {
	o := buildOptions{loggerFactory: logging.NewDefaultLoggerFactory()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := files.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	dir, err := os.MkdirTemp(o.tempDir, "fixture-"+id[:8]+"-")
	if err != nil {
		return nil, &BuildError{Err: fmt.Errorf("creating temp dir: %w", err)}
	}

	fx := &Fixture{
		ID:  id,
		Dir: dir,
		log: o.loggerFactory.NewLogger("fixture"),
	}
	if err := fx.build(ctx, files); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	fx.log.Debugf("built fixture %s in %s: %d routes, %d assets",
		fx.ID, fx.Dir, len(fx.routes), len(fx.manifest.Assets))
	return fx, nil
}

func (fx *Fixture) build(ctx context.Context, files FileSet) error {
	if err := files.WriteTo(fx.Dir); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &BuildError{Err: err}
	}

	routes, err := compileRoutes(ctx, fx.Dir)
	if err != nil {
		return err
	}
	fx.routes = routes

	assets, err := listAssets(fx.Dir)
	if err != nil {
		return &BuildError{Path: PublicDir, Err: err}
	}
	fx.manifest = newManifest(routes, assets)

	data, err := json.MarshalIndent(fx.manifest, "", "  ")
	if err != nil {
		return &BuildError{Path: ManifestFile, Err: err}
	}
	dst := filepath.Join(fx.Dir, filepath.FromSlash(ManifestFile))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &BuildError{Path: ManifestFile, Err: err}
	}
	if err := os.WriteFile(dst, append(data, '\n'), 0o644); err != nil {
		return &BuildError{Path: ManifestFile, Err: err}
	}
	return nil
}

// compileRoutes reads every route module from the materialized app.
func compileRoutes(ctx context.Context, dir string) ([]*Route, error) {
	entries, err := os.ReadDir(filepath.Join(dir, filepath.FromSlash(RoutesDir)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &BuildError{Path: RoutesDir, Err: err}
	}

	var routes []*Route
	byPath := map[string]string{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, &BuildError{Err: err}
		}
		file := path.Join(RoutesDir, e.Name())
		if e.IsDir() || !IsRouteModule(file) {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(file)))
		if err != nil {
			return nil, &BuildError{Path: file, Err: err}
		}
		r, err := compileRoute(file, src)
		if err != nil {
			return nil, &BuildError{Path: file, Err: err}
		}
		if other, ok := byPath[r.Path]; ok {
			return nil, &BuildError{Path: file, Err: fmt.Errorf("path %s is already served by %s", r.Path, other)}
		}
		byPath[r.Path] = file
		routes = append(routes, r)
	}
	rankRoutes(routes)
	return routes, nil
}

func listAssets(dir string) ([]string, error) {
	base := filepath.Join(dir, PublicDir)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}
	var assets []string
	err := filepath.WalkDir(base, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		assets = append(assets, "/"+filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(assets)
	return assets, err
}

// Routes returns the compiled routes in match order.
func (fx *Fixture) Routes() []*Route {
	return append([]*Route(nil), fx.routes...)
}

// Match returns the most specific route serving urlPath.
func (fx *Fixture) Match(urlPath string) (*Route, map[string]string, bool) {
	for _, r := range fx.routes {
		if params, ok := r.match(urlPath); ok {
			return r, params, true
		}
	}
	return nil, nil, false
}

// Route returns the route with the given id ("routes/fetch").
func (fx *Fixture) Route(id string) (*Route, bool) {
	for _, r := range fx.routes {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Manifest returns the build manifest.
func (fx *Fixture) Manifest() Manifest {
	return fx.manifest
}

// PublicDir returns the directory static assets are served from.
func (fx *Fixture) PublicDir() string {
	return filepath.Join(fx.Dir, PublicDir)
}

// Closed reports whether Close has been called.
func (fx *Fixture) Closed() bool {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return fx.closed
}

// Close removes the materialized app. Calling Close more than once returns
// the result of the first call.
func (fx *Fixture) Close() error {
	fx.mu.Lock()
	defer fx.mu.Unlock()

	if fx.closed {
		return fx.closeErr
	}
	fx.closed = true
	fx.closeErr = os.RemoveAll(fx.Dir)
	fx.log.Debugf("removed fixture %s", fx.ID)
	return fx.closeErr
}
