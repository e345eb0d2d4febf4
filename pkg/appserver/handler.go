package appserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/thesyncim/bugreport/pkg/fixture"
)

const (
	// RuntimePath serves the client runtime script.
	RuntimePath = "/build/runtime.js"
	// ManifestPath serves the build manifest.
	ManifestPath = "/build/manifest.json"

	// DataParam marks a loader data request: GET /path?_data=<routeId>.
	DataParam = "_data"

	// ErrorHeader is set on data responses that carry an ErrorResponse.
	ErrorHeader = "X-App-Error"
	// RouteHeader names the route that produced a response.
	RouteHeader = "X-App-Route"
)

// ErrorResponse is the JSON body of a failed data request. The client
// runtime logs it to the console as-is.
type ErrorResponse struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	Message    string `json:"message"`
	Route      string `json:"route,omitempty"`
}

// documentContext is embedded in every document for the client runtime.
type documentContext struct {
	RouteID    string            `json:"routeId"`
	Path       string            `json:"path"`
	Params     map[string]string `json:"params"`
	LoaderData any               `json:"loaderData"`
	Manifest   fixture.Manifest  `json:"manifest"`
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Handler returns the HTTP handler for the fixture. It can be mounted
// without starting the server, e.g. in httptest.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		s.route(sw, r)
		s.log.Debugf("%s %s -> %d (%s)", r.Method, r.URL.RequestURI(), sw.code, time.Since(start))
	})
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == RuntimePath:
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write([]byte(RuntimeJS))
	case r.URL.Path == ManifestPath:
		writeJSON(w, http.StatusOK, s.fx.Manifest())
	case r.URL.Query().Has(DataParam):
		s.serveData(w, r)
	default:
		if s.serveStatic(w, r) {
			return
		}
		s.serveDocument(w, r)
	}
}

// serveData answers a loader request for the route matching the URL path.
func (s *Server) serveData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "", fmt.Sprintf("Invalid request method %q", r.Method))
		return
	}

	route, _, ok := s.fx.Match(r.URL.Path)
	if !ok {
		s.log.Warnf("data request for %s matched no route (from %q)", r.URL.Path, r.URL.Query().Get(DataParam))
		writeError(w, http.StatusNotFound, "", fmt.Sprintf("No route matches URL %q", r.URL.Path))
		return
	}
	if !route.HasLoader {
		writeError(w, http.StatusBadRequest, route.ID, fmt.Sprintf(
			"You made a %s request to %q but did not provide a loader for route %q, so there is no way to handle the request.",
			r.Method, r.URL.Path, route.ID))
		return
	}

	setHeaders(w, route)
	writeJSON(w, route.Status, route.LoaderData)
}

// serveStatic serves a file from public/. It reports whether it handled
// the request.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	name := path.Clean("/" + r.URL.Path)
	if name == "/" {
		return false
	}
	f, err := os.Open(filepath.Join(s.fx.PublicDir(), filepath.FromSlash(name)))
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request) {
	route, params, ok := s.fx.Match(r.URL.Path)
	if !ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		documentTemplate.Execute(w, document{
			Title: "Not Found",
			Body:  template.HTML("<h1>404 Not Found</h1>"),
		})
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body bytes.Buffer
	if err := route.Render(&body, params); err != nil {
		s.log.Errorf("render %s: %v", route.ID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	ctxJSON, err := json.Marshal(documentContext{
		RouteID:    route.ID,
		Path:       r.URL.Path,
		Params:     params,
		LoaderData: route.LoaderData,
		Manifest:   s.fx.Manifest(),
	})
	if err != nil {
		s.log.Errorf("encode context for %s: %v", route.ID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	var page bytes.Buffer
	err = documentTemplate.Execute(&page, document{
		Title:   route.Title,
		Route:   route.ID,
		Body:    template.HTML(body.String()),
		Context: template.JS(ctxJSON),
	})
	if err != nil {
		s.log.Errorf("render document %s: %v", route.ID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	setHeaders(w, route)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(route.Status)
	w.Write(page.Bytes())
}

func setHeaders(w http.ResponseWriter, route *fixture.Route) {
	for k, v := range route.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set(RouteHeader, route.ID)
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, routeID, message string) {
	w.Header().Set(ErrorHeader, "yes")
	writeJSON(w, code, ErrorResponse{
		Status:     code,
		StatusText: http.StatusText(code),
		Message:    message,
		Route:      routeID,
	})
}
