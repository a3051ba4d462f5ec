package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/euforicio/pagable/static"
)

var (
	errPathRequired        = errors.New("path is required")
	errInvalidPathEncoding = errors.New("invalid path encoding")
	errOutsideRoot         = errors.New("path escapes its directory")
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAppJS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(static.AppJS(s.cfg.WSRoute)); err != nil {
		s.logger.Debug("write app.js", slog.Any("err", err))
	}
}

func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Markdown == nil {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Markdown.HighlightCSS(&buf); err != nil {
		s.logger.Error("highlight css failed", slog.Any("err", err))
		http.Error(w, "failed to build stylesheet", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) routes() []RouteInfo {
	var out []RouteInfo
	if s.deps.Components != nil {
		out = append(out, s.deps.Components()...)
	}
	if s.deps.Pages != nil {
		for _, p := range s.deps.Pages.Routes() {
			out = append(out, RouteInfo{Route: p.Route, Kind: "md", Path: p.Path, Title: p.Doc.Metadata.Title})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		GeneratedAt time.Time   `json:"generatedAt"`
		Routes      []RouteInfo `json:"routes"`
	}{
		GeneratedAt: time.Now(),
		Routes:      s.routes(),
	}
	if resp.Routes == nil {
		resp.Routes = []RouteInfo{}
	}
	respondJSON(w, http.StatusOK, resp)
}

// assetHandler serves files below dir for a {path...} route.
func (s *Server) assetHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel, err := parseWildcardPath(r.PathValue("path"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		abs, err := resolveWithin(dir, rel)
		if err != nil {
			s.logger.Warn("asset path outside directory attempted", slog.String("path", rel))
			http.Error(w, "Invalid path", http.StatusForbidden)
			return
		}
		if !fileExists(abs) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, abs)
	}
}

// handleRoot serves files from the public directory and falls back to the
// page shell for every other path; the browser runtime then asks for the
// route over the WebSocket.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.cfg.PublicDir != "" && r.URL.Path != "/" {
		if abs, err := resolveWithin(s.cfg.PublicDir, r.URL.Path); err == nil && fileExists(abs) {
			http.ServeFile(w, r, abs)
			return
		}
	}
	s.serveShell(w, r)
}

func (s *Server) serveShell(w http.ResponseWriter, r *http.Request) {
	shell := static.IndexHTML()
	if s.cfg.IndexFile != "" {
		data, err := os.ReadFile(s.cfg.IndexFile)
		switch {
		case err == nil:
			shell = data
		case !errors.Is(err, os.ErrNotExist):
			s.logger.Warn("read index file failed, using built-in shell", slog.String("path", s.cfg.IndexFile), slog.Any("err", err))
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(shell)
}

func parseWildcardPath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errPathRequired
	}
	decoded, err := url.PathUnescape(trimmed)
	if err != nil {
		return "", errInvalidPathEncoding
	}
	if decoded = strings.TrimSpace(decoded); decoded == "" {
		return "", errPathRequired
	}
	return decoded, nil
}

// resolveWithin joins rel onto dir and rejects results outside dir.
func resolveWithin(dir, rel string) (string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + filepath.FromSlash(rel))
	abs := filepath.Join(root, clean)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return abs, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
