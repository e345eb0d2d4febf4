package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoutesDir is the directory holding route modules, relative to the app root.
const RoutesDir = "app/routes"

// routeExts lists the extensions recognized as route modules.
var routeExts = []string{".html", ".tmpl", ".tsx", ".jsx", ".ts", ".js"}

const frontMatterDelim = "---"

type segmentKind int

const (
	segmentSplat segmentKind = iota + 1
	segmentParam
	segmentStatic
)

type segment struct {
	kind  segmentKind
	value string // literal for static, parameter name for param
}

// Route is a compiled route module.
type Route struct {
	ID    string // "routes/fetch"
	File  string // "app/routes/fetch.html"
	Path  string // "/fetch", "/users/:id", "/files/*"
	Index bool

	// HasLoader reports whether the module declared a loader. LoaderData is
	// the value the loader returns.
	HasLoader  bool
	LoaderData any

	Status  int
	Title   string
	Headers map[string]string

	segments []segment
	tmpl     *template.Template
}

// RenderData is the value route bodies are executed with.
type RenderData struct {
	LoaderData any
	Route      string
	Params     map[string]string
}

type frontMatter struct {
	Loader  yaml.Node         `yaml:"loader"`
	Status  int               `yaml:"status"`
	Title   string            `yaml:"title"`
	Headers map[string]string `yaml:"headers"`
}

// IsRouteModule reports whether a file-set path names a route module.
func IsRouteModule(p string) bool {
	dir, file := path.Split(p)
	if strings.TrimSuffix(dir, "/") != RoutesDir {
		return false
	}
	return routeExt(file) != ""
}

func routeExt(file string) string {
	for _, ext := range routeExts {
		if strings.HasSuffix(file, ext) && len(file) > len(ext) {
			return ext
		}
	}
	return ""
}

// compileRoute parses one route module. file is the file-set path.
func compileRoute(file string, src []byte) (*Route, error) {
	base := path.Base(file)
	name := strings.TrimSuffix(base, routeExt(base))

	segs, index, err := parseRouteName(name)
	if err != nil {
		return nil, err
	}

	meta, body, err := splitFrontMatter(src)
	if err != nil {
		return nil, err
	}

	r := &Route{
		ID:       "routes/" + name,
		File:     file,
		Index:    index,
		Status:   http.StatusOK,
		segments: segs,
	}
	r.Path = formatPath(segs)
	r.Title = r.ID

	if len(meta) > 0 {
		var fm frontMatter
		dec := yaml.NewDecoder(bytes.NewReader(meta))
		dec.KnownFields(true)
		if err := dec.Decode(&fm); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("front matter: %w", err)
		}
		if fm.Loader.Kind != 0 {
			var data any
			if err := fm.Loader.Decode(&data); err != nil {
				return nil, fmt.Errorf("front matter loader: %w", err)
			}
			r.HasLoader = true
			r.LoaderData = data
		}
		if fm.Status != 0 {
			if fm.Status < 100 || fm.Status > 599 {
				return nil, fmt.Errorf("front matter: invalid status %d", fm.Status)
			}
			r.Status = fm.Status
		}
		if fm.Title != "" {
			r.Title = fm.Title
		}
		r.Headers = fm.Headers
	}

	tmpl, err := template.New(file).Option("missingkey=zero").Parse(string(body))
	if err != nil {
		return nil, err
	}
	r.tmpl = tmpl
	return r, nil
}

// splitFrontMatter separates an optional leading YAML block from the body.
func splitFrontMatter(src []byte) (meta, body []byte, err error) {
	text := strings.ReplaceAll(string(src), "\r\n", "\n")
	if !strings.HasPrefix(text, frontMatterDelim+"\n") {
		return nil, []byte(text), nil
	}
	rest := text[len(frontMatterDelim)+1:]
	if rest == frontMatterDelim {
		return nil, nil, nil
	}
	if strings.HasPrefix(rest, frontMatterDelim+"\n") {
		return nil, []byte(rest[len(frontMatterDelim)+1:]), nil
	}
	end := strings.Index(rest, "\n"+frontMatterDelim+"\n")
	if end < 0 {
		if strings.HasSuffix(rest, "\n"+frontMatterDelim) {
			return []byte(strings.TrimSuffix(rest, "\n"+frontMatterDelim)), nil, nil
		}
		return nil, nil, errors.New("front matter: missing closing ---")
	}
	return []byte(rest[:end]), []byte(rest[end+len(frontMatterDelim)+2:]), nil
}

// parseRouteName maps a flat route file name to URL segments.
//
//	_index       -> /
//	fetch        -> /fetch
//	users.$id    -> /users/:id
//	files.$      -> /files/*
//	_auth.login  -> /login
func parseRouteName(name string) ([]segment, bool, error) {
	var segs []segment
	parts := strings.Split(name, ".")
	index := false
	for i, p := range parts {
		last := i == len(parts)-1
		switch {
		case p == "":
			return nil, false, fmt.Errorf("route name %q has an empty segment", name)
		case p == "_index":
			if !last {
				return nil, false, fmt.Errorf("route name %q: _index must be the last segment", name)
			}
			index = true
		case p == "$":
			if !last {
				return nil, false, fmt.Errorf("route name %q: splat must be the last segment", name)
			}
			segs = append(segs, segment{kind: segmentSplat})
		case strings.HasPrefix(p, "$"):
			segs = append(segs, segment{kind: segmentParam, value: p[1:]})
		case strings.HasPrefix(p, "_"):
			// pathless
		default:
			segs = append(segs, segment{kind: segmentStatic, value: p})
		}
	}
	if len(segs) == 0 && !index {
		return nil, false, fmt.Errorf("route name %q has no URL path", name)
	}
	return segs, index, nil
}

func formatPath(segs []segment) string {
	if len(segs) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		switch s.kind {
		case segmentStatic:
			b.WriteString(s.value)
		case segmentParam:
			b.WriteString(":" + s.value)
		case segmentSplat:
			b.WriteByte('*')
		}
	}
	return b.String()
}

// match reports whether urlPath addresses this route and returns its params.
func (r *Route) match(urlPath string) (map[string]string, bool) {
	parts := splitPath(urlPath)
	params := map[string]string{}
	for i, s := range r.segments {
		if s.kind == segmentSplat {
			params["*"] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch s.kind {
		case segmentStatic:
			if parts[i] != s.value {
				return nil, false
			}
		case segmentParam:
			params[s.value] = parts[i]
		}
	}
	if len(parts) != len(r.segments) {
		return nil, false
	}
	return params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Render executes the route body.
func (r *Route) Render(w io.Writer, params map[string]string) error {
	return r.tmpl.Execute(w, RenderData{
		LoaderData: r.LoaderData,
		Route:      r.ID,
		Params:     params,
	})
}

// rankRoutes orders routes so the most specific match comes first.
func rankRoutes(routes []*Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i].segments, routes[j].segments
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k].kind != b[k].kind {
				return a[k].kind > b[k].kind
			}
		}
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return routes[i].ID < routes[j].ID
	})
}
