package fixture

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bugReportFiles() FileSet {
	return FileSet{
		"app/routes/_index.html": Dedent(`
			---
			loader: pizza
			---
			<div><span>Hello World!</span></div>
		`),
		"app/routes/fetch.html": Dedent(`
			---
			loader: pizza
			---
			<div id="out"></div>
		`),
		"public/static/test.json": `{"foo":"bar"}`,
	}
}

func buildFixture(t *testing.T, files FileSet) *Fixture {
	t.Helper()
	fx, err := Build(context.Background(), files, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { fx.Close() })
	return fx
}

func TestBuild_MaterializesFiles(t *testing.T) {
	fx := buildFixture(t, bugReportFiles())

	data, err := os.ReadFile(filepath.Join(fx.PublicDir(), "static", "test.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"foo":"bar"}`, string(data))

	assert.NotEmpty(t, fx.ID)
	assert.DirExists(t, fx.Dir)
}

func TestBuild_ManifestGolden(t *testing.T) {
	fx := buildFixture(t, bugReportFiles())

	data, err := os.ReadFile(filepath.Join(fx.Dir, filepath.FromSlash(ManifestFile)))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "bug_report_manifest", data)
}

func TestBuild_Loader(t *testing.T) {
	fx := buildFixture(t, FileSet{
		"app/routes/_index.html": "---\nloader: pizza\ntitle: Home\n---\n<p>hi</p>",
		"app/routes/about.html":  "<p>about</p>",
		"app/routes/data.html":   "---\nloader:\n  items: [1, 2]\nstatus: 201\nheaders:\n  X-Test: yes\n---\n",
	})

	index, ok := fx.Route("routes/_index")
	require.True(t, ok)
	assert.True(t, index.HasLoader)
	assert.Equal(t, "pizza", index.LoaderData)
	assert.Equal(t, "Home", index.Title)
	assert.Equal(t, 200, index.Status)

	about, ok := fx.Route("routes/about")
	require.True(t, ok)
	assert.False(t, about.HasLoader)
	assert.Equal(t, "routes/about", about.Title)

	data, ok := fx.Route("routes/data")
	require.True(t, ok)
	assert.True(t, data.HasLoader)
	assert.Equal(t, map[string]any{"items": []any{1, 2}}, data.LoaderData)
	assert.Equal(t, 201, data.Status)
	assert.Equal(t, map[string]string{"X-Test": "yes"}, data.Headers)
}

func TestBuild_NullLoaderStillCounts(t *testing.T) {
	fx := buildFixture(t, FileSet{
		"app/routes/_index.html": "---\nloader: null\n---\n",
	})
	r, ok := fx.Route("routes/_index")
	require.True(t, ok)
	assert.True(t, r.HasLoader)
	assert.Nil(t, r.LoaderData)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files FileSet
		path  string
	}{
		{"template syntax", FileSet{"app/routes/bad.html": "<p>{{ .LoaderData </p>"}, "app/routes/bad.html"},
		{"unknown front matter key", FileSet{"app/routes/x.html": "---\nloadr: 1\n---\n"}, "app/routes/x.html"},
		{"unterminated front matter", FileSet{"app/routes/x.html": "---\nloader: 1\n<p></p>"}, "app/routes/x.html"},
		{"invalid status", FileSet{"app/routes/x.html": "---\nstatus: 42\n---\n"}, "app/routes/x.html"},
		{"duplicate path", FileSet{"app/routes/a.html": "", "app/routes/a._index.html": ""}, "app/routes/a.html"},
		{"pathless only", FileSet{"app/routes/_layout.html": ""}, "app/routes/_layout.html"},
		{"escaping path", FileSet{"../evil.txt": "x"}, "../evil.txt"},
		{"absolute path", FileSet{"/etc/passwd": "x"}, "/etc/passwd"},
		{"unclean path", FileSet{"public/./a.txt": "x"}, "public/./a.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			_, err := Build(context.Background(), tt.files, WithTempDir(parent))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBuild))

			var be *BuildError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, tt.path, be.Path)

			// Failed builds leave nothing behind.
			entries, err := os.ReadDir(parent)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestBuild_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, bugReportFiles(), WithTempDir(t.TempDir()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBuild)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_NonRouteFilesIgnored(t *testing.T) {
	fx := buildFixture(t, FileSet{
		"app/routes/_index.html":  "",
		"app/routes/notes.md":     "# not a route",
		"app/root.html":           "",
		"public/static/test.json": "{}",
	})
	assert.Len(t, fx.Routes(), 1)
}

func TestFixture_Match(t *testing.T) {
	fx := buildFixture(t, FileSet{
		"app/routes/_index.html":         "",
		"app/routes/fetch.html":          "",
		"app/routes/users.$id.html":      "",
		"app/routes/users.new.html":      "",
		"app/routes/files.$.html":        "",
		"app/routes/_auth.login.html":    "",
		"app/routes/reports._index.html": "",
	})

	tests := []struct {
		path   string
		id     string
		params map[string]string
	}{
		{"/", "routes/_index", map[string]string{}},
		{"/fetch", "routes/fetch", map[string]string{}},
		{"/fetch/", "routes/fetch", map[string]string{}},
		{"/users/42", "routes/users.$id", map[string]string{"id": "42"}},
		{"/users/new", "routes/users.new", map[string]string{}},
		{"/files", "routes/files.$", map[string]string{"*": ""}},
		{"/files/a/b.txt", "routes/files.$", map[string]string{"*": "a/b.txt"}},
		{"/login", "routes/_auth.login", map[string]string{}},
		{"/reports", "routes/reports._index", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, params, ok := fx.Match(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.id, r.ID)
			assert.Equal(t, tt.params, params)
		})
	}

	for _, p := range []string{"/static/test.json", "/users", "/users/1/edit", "/auth/login"} {
		_, _, ok := fx.Match(p)
		assert.False(t, ok, "path %s should not match", p)
	}
}

func TestRoute_Render(t *testing.T) {
	fx := buildFixture(t, FileSet{
		"app/routes/users.$id.html": "---\nloader: pizza\n---\n<p>{{.LoaderData}} for {{.Params.id}} on {{.Route}}</p>",
	})
	r, params, ok := fx.Match("/users/<b>")
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, params))
	assert.Equal(t, "<p>pizza for &lt;b&gt; on routes/users.$id</p>", buf.String())
}

func TestFixture_CloseOnce(t *testing.T) {
	fx, err := Build(context.Background(), bugReportFiles(), WithTempDir(t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, fx.Close())
	assert.True(t, fx.Closed())
	assert.NoDirExists(t, fx.Dir)
	assert.NoError(t, fx.Close())
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, bugReportFiles().WriteTo(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	fs, err := ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, bugReportFiles(), fs)
}

func TestDedent(t *testing.T) {
	got := Dedent(`
		{
		  "foo": "bar"
		}
	`)
	assert.Equal(t, "{\n  \"foo\": \"bar\"\n}\n", got)

	assert.Equal(t, "", Dedent("\n   \n"))
	assert.Equal(t, "a\n", Dedent("a"))
}
