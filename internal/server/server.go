// Package server provides the HTTP front of a pagable application: the page
// shell, the browser runtime, project assets and the WebSocket endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/euforicio/pagable/internal/config"
	"github.com/euforicio/pagable/internal/markdown"
	"github.com/euforicio/pagable/internal/pages"
)

// RouteInfo describes one servable route in the /__pagable/routes listing.
type RouteInfo struct {
	Route string `json:"route"`
	Kind  string `json:"kind"`
	Path  string `json:"path,omitempty"`
	Title string `json:"title,omitempty"`
}

// Deps are the services the server fronts.
type Deps struct {
	// Sessions serves the WebSocket route.
	Sessions http.Handler
	Pages    *pages.Service
	Markdown *markdown.Service
	// Components lists the routes of registered component pages.
	Components func() []RouteInfo
}

// Server wraps the HTTP server and the route table.
type Server struct {
	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
	deps       Deps
	cfg        config.Config
}

// New constructs a Server and registers its routes.
func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		logger: logger.With("component", "http"),
		deps:   deps,
	}
	s.registerRoutes()
	s.handler = chain(s.mux,
		recoveryMiddleware,
		gzipMiddleware,
		loggingMiddleware(s.logger, cfg.Verbose),
	)
	return s
}

func (s *Server) registerRoutes() {
	if s.deps.Sessions != nil {
		s.mux.Handle("GET "+s.cfg.WSRoute, s.deps.Sessions)
	}

	s.mux.HandleFunc("GET /app.js", s.handleAppJS)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /__pagable/routes", s.handleRoutes)
	s.mux.HandleFunc("GET /__pagable/highlight.css", s.handleHighlightCSS)
	s.mux.HandleFunc("GET /scripts/{path...}", s.assetHandler(s.cfg.ScriptsDir))
	s.mux.HandleFunc("GET /styles/{path...}", s.assetHandler(s.cfg.StylesDir))
	s.mux.HandleFunc("GET /", s.handleRoot)
}

// ServeHTTP serves a request through the middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start listens on the configured address and serves until ctx is canceled.
// Port 0 picks a free port.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		_ = listener.Close()
		return errors.New("unexpected listener address type")
	}
	serverURL := fmt.Sprintf("http://localhost:%d", tcpAddr.Port)

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if _, err := fmt.Fprintln(os.Stdout, banner(serverURL, s.routeCount())); err != nil {
			s.logger.Warn("failed to announce server address", slog.String("url", serverURL), slog.Any("err", err))
		}
		errCh <- s.httpServer.Serve(listener)
	}()

	if s.cfg.AutoOpen {
		go s.openBrowserWhenReady(ctx, serverURL)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("graceful shutdown failed", slog.Any("err", err))
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routeCount() int {
	return len(s.routes())
}

var (
	bannerTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	bannerURL   = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("86"))
	bannerMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func banner(url string, routes int) string {
	return bannerTitle.Render("pagable") + " listening on " + bannerURL.Render(url) +
		bannerMuted.Render(fmt.Sprintf("  (%d routes)", routes))
}

func (s *Server) openBrowserWhenReady(ctx context.Context, url string) {
	timer := time.NewTimer(300 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		if err := openBrowser(ctx, url); err != nil {
			s.logger.Warn("auto-open failed", slog.String("url", url), slog.Any("err", err))
		}
	}
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}
