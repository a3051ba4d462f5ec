package server

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/euforicio/pagable/internal/config"
	"github.com/euforicio/pagable/internal/markdown"
	"github.com/euforicio/pagable/internal/pages"
	"github.com/euforicio/pagable/internal/session"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestServer(t *testing.T, withIndex bool) (*Server, config.Config) {
	t.Helper()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "pages", "index.md"), "---\ntitle: Home\n---\n\n# Welcome\n")
	writeFile(t, filepath.Join(root, "src", "scripts", "app.js"), "console.log('hi')")
	writeFile(t, filepath.Join(root, "src", "styles", "site.css"), "body{}")
	writeFile(t, filepath.Join(root, "public", "robots.txt"), "User-agent: *")
	if withIndex {
		writeFile(t, filepath.Join(root, "index.html"), "<html><body>custom shell</body></html>")
	}

	cfg := config.Default()
	cfg.Root = root
	cfg.Verbose = true
	if err := config.Finalize(&cfg); err != nil {
		t.Fatalf("finalize config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	md := markdown.NewService(logger, markdown.Options{})
	pageSvc, err := pages.NewService(context.Background(), cfg.PagesDir, md, logger, pages.Options{})
	if err != nil {
		t.Fatalf("pages service init failed: %v", err)
	}
	t.Cleanup(func() { _ = pageSvc.Close() })

	resolver := session.ResolverFunc(func(r string) (session.View, error) {
		if v, ok := pageSvc.View(r); ok {
			return v, nil
		}
		return nil, session.ErrRouteNotFound
	})
	sessions := session.NewHandler(resolver, session.NewHub(), logger, session.Options{CheckOrigin: CheckOrigin})
	t.Cleanup(sessions.Close)

	srv := New(cfg, logger, Deps{
		Sessions: sessions,
		Pages:    pageSvc,
		Markdown: md,
		Components: func() []RouteInfo {
			return []RouteInfo{{Route: "/counter/", Kind: "component"}}
		},
	})
	return srv, cfg
}

func get(t *testing.T, srv http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHTTPRoutes(t *testing.T) {
	t.Parallel()
	srv, cfg := newTestServer(t, false)

	t.Run("health", func(t *testing.T) {
		if rec := get(t, srv, "/healthz", nil); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("runtime embeds ws route", func(t *testing.T) {
		rec := get(t, srv, "/app.js", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"`+cfg.WSRoute+`"`) {
			t.Fatalf("expected ws route in runtime")
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
			t.Fatalf("unexpected content type %q", ct)
		}
	})

	t.Run("routes listing", func(t *testing.T) {
		rec := get(t, srv, "/__pagable/routes", nil)
		var resp struct {
			Routes []RouteInfo `json:"routes"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode routes: %v", err)
		}
		if len(resp.Routes) != 2 {
			t.Fatalf("expected two routes, got %#v", resp.Routes)
		}
		if resp.Routes[0].Route != "/" || resp.Routes[0].Kind != "md" || resp.Routes[0].Title != "Home" {
			t.Fatalf("unexpected markdown route %#v", resp.Routes[0])
		}
		if resp.Routes[1].Route != "/counter/" || resp.Routes[1].Kind != "component" {
			t.Fatalf("unexpected component route %#v", resp.Routes[1])
		}
	})

	t.Run("highlight css", func(t *testing.T) {
		rec := get(t, srv, "/__pagable/highlight.css", nil)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), ".chroma") {
			t.Fatalf("unexpected stylesheet response %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("scripts and styles", func(t *testing.T) {
		if rec := get(t, srv, "/scripts/app.js", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "console.log") {
			t.Fatalf("unexpected script response %d", rec.Code)
		}
		if rec := get(t, srv, "/styles/site.css", nil); rec.Code != http.StatusOK {
			t.Fatalf("unexpected style response %d", rec.Code)
		}
		if rec := get(t, srv, "/scripts/missing.js", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for missing script, got %d", rec.Code)
		}
		if rec := get(t, srv, "/scripts/..%2f..%2fsrc%2fpages%2findex.md", nil); rec.Code == http.StatusOK {
			t.Fatalf("expected traversal to be rejected")
		}
	})

	t.Run("public files and shell fallback", func(t *testing.T) {
		if rec := get(t, srv, "/robots.txt", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "User-agent") {
			t.Fatalf("expected public file, got %d", rec.Code)
		}
		rec := get(t, srv, "/docs/anything/", nil)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `src="/app.js"`) {
			t.Fatalf("expected embedded shell, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("gzip", func(t *testing.T) {
		rec := get(t, srv, "/app.js", http.Header{"Accept-Encoding": {"gzip"}})
		if rec.Header().Get("Content-Encoding") != "gzip" {
			t.Fatalf("expected gzip encoding")
		}
		zr, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatalf("gzip reader: %v", err)
		}
		body, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("read gzip body: %v", err)
		}
		if !strings.Contains(string(body), "WebSocket") {
			t.Fatalf("unexpected decompressed body")
		}
	})
}

func TestProjectIndexOverridesShell(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, true)

	rec := get(t, srv, "/", nil)
	if !strings.Contains(rec.Body.String(), "custom shell") {
		t.Fatalf("expected project index.html, got %s", rec.Body.String())
	}
}

func TestWebSocketThroughMiddleware(t *testing.T) {
	t.Parallel()
	srv, cfg := newTestServer(t, false)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + cfg.WSRoute
	header := http.Header{"Accept-Encoding": {"gzip"}, "Origin": {ts.URL}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"path": "/"}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	var frame struct {
		Type    float64        `json:"type"`
		Initial bool           `json:"initial"`
		CType   string         `json:"ctyp"`
		Content string         `json:"ctnt"`
		Meta    map[string]any `json:"meta"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read render: %v", err)
	}
	if frame.Type != 1 || !frame.Initial || frame.CType != "md" || !strings.Contains(frame.Content, "Welcome") {
		t.Fatalf("unexpected frame %+v", frame)
	}
	if frame.Meta["title"] != "Home" {
		t.Fatalf("expected title meta, got %#v", frame.Meta)
	}
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{name: "no origin", host: "localhost:8080", want: true},
		{name: "same host", host: "example.com:8080", origin: "http://example.com:8080", want: true},
		{name: "loopback aliases", host: "127.0.0.1:8080", origin: "http://localhost:8080", want: true},
		{name: "ipv6 loopback", host: "[::1]:8080", origin: "http://localhost:8080", want: true},
		{name: "foreign origin", host: "localhost:8080", origin: "https://evil.example", want: false},
		{name: "garbage origin", host: "localhost:8080", origin: "://", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/__WS__", nil)
			req.Host = tc.host
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := CheckOrigin(req); got != tc.want {
				t.Fatalf("CheckOrigin = %v, want %v", got, tc.want)
			}
		})
	}
}
