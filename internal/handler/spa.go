// Package handler contains the HTTP request handlers of the blood donation service.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, an http.HandlerFunc: a function with the right signature.
// Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, body, headers)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers should NOT contain business logic. They are the glue between HTTP and the services.
package handler

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SPARoutes are the client-side routes of the frontend. Each one is answered
// with index.html and the browser-side router takes it from there.
var SPARoutes = []string{
	"/",
	"/donor-register",
	"/patient-register",
	"/ngo-register",
	"/hospital-register",
	"/find-donors",
	"/admin-login",
	"/admin-dashboard",
}

// SPAHandler serves the built single-page frontend from a directory.
//
// ROUTING RULES:
//   - a known client route (SPARoutes)        → index.html
//   - a file that exists in the build dir     → that file (JS, CSS, images)
//   - anything else                           → 404
//
// Unknown paths are NOT rewritten to index.html. A typo in a URL gets a real
// 404 instead of a blank app.
type SPAHandler struct {
	dir    string
	files  http.Handler
	routes map[string]bool
	logger *slog.Logger
}

// NewSPAHandler creates an SPAHandler for the build output in dir
// (for example "web/dist"). The directory does not need to exist yet; a
// missing index.html is reported per request.
func NewSPAHandler(dir string, logger *slog.Logger) *SPAHandler {
	routes := make(map[string]bool, len(SPARoutes))
	for _, r := range SPARoutes {
		routes[r] = true
	}
	return &SPAHandler{
		dir:    dir,
		files:  http.FileServer(http.Dir(dir)),
		routes: routes,
		logger: logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := path.Clean("/" + r.URL.Path)

	if h.routes[p] {
		h.serveIndex(w, r)
		return
	}

	// http.Dir refuses paths that escape dir, so "/../etc/passwd" cannot leak.
	if p != "/" && !strings.HasSuffix(p, "/") {
		if info, err := os.Stat(filepath.Join(h.dir, filepath.FromSlash(p))); err == nil && !info.IsDir() {
			h.files.ServeHTTP(w, r)
			return
		}
	}

	http.NotFound(w, r)
}

func (h *SPAHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(h.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		h.logger.Error("frontend not built", slog.String("index", index), slog.String("error", err.Error()))
		http.Error(w, "frontend not built", http.StatusNotFound)
		return
	}

	// index.html changes on every deploy; hashed assets can be cached.
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}
