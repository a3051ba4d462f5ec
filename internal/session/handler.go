package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/euforicio/pagable/internal/protocol"
	"github.com/euforicio/pagable/internal/route"
)

// Options configure a Handler.
type Options struct {
	// ScriptTimeout bounds how long Eval waits for the browser.
	ScriptTimeout time.Duration
	// CheckOrigin validates the upgrade request. Nil accepts same-origin
	// requests only, as gorilla/websocket does.
	CheckOrigin func(r *http.Request) bool
	// PongWait is how long a browser may stay silent before the session is
	// dropped. Pings are sent at 9/10 of it. Defaults to 60s.
	PongWait time.Duration
}

// Handler upgrades HTTP requests to page sessions.
type Handler struct {
	resolver Resolver
	hub      *Hub
	logger   *slog.Logger
	timeout  time.Duration
	pongWait time.Duration
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewHandler builds a websocket handler serving views from resolver and
// re-rendering them when hub emits their route.
func NewHandler(resolver Resolver, hub *Hub, logger *slog.Logger, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.ScriptTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pongWait := opts.PongWait
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	return &Handler{
		resolver: resolver,
		hub:      hub,
		logger:   logger.With("component", "session"),
		timeout:  timeout,
		pongWait: pongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		sessions: make(map[*session]struct{}),
	}
}

// ServeHTTP upgrades the connection and serves the session until the browser
// disconnects or Close is called.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}

	s := newSession(conn, h.logger, otel.Tracer("github.com/euforicio/pagable/internal/session"), h.timeout, h.pongWait)
	if !h.track(s) {
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
		s.shutdown()
		return
	}
	defer h.untrack(s)

	h.serve(r.Context(), s)
}

func (h *Handler) serve(parent context.Context, s *session) {
	defer s.shutdown()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	conn := s.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	go s.keepAlive(ctx)

	_, data, err := conn.ReadMessage()
	if err != nil {
		s.logger.Debug("connection closed before hello", slog.Any("err", err))
		return
	}
	hello, err := protocol.DecodeHello(data)
	if err != nil {
		s.logger.Warn("invalid hello frame", slog.Any("err", err))
		s.closeWith(websocket.CloseInvalidFramePayloadData, "invalid hello")
		return
	}

	s.route = route.Normalize(hello.Path)
	s.logger = s.logger.With("route", s.route)
	view, err := h.resolver.Open(s.route)
	if err != nil {
		if errors.Is(err, ErrRouteNotFound) {
			s.logger.Info("no page for route")
			s.closeWith(CloseRouteNotFound, "route not found")
			return
		}
		s.logger.Error("open page failed", slog.Any("err", err))
		s.closeWith(websocket.CloseInternalServerErr, "open failed")
		return
	}
	s.view = view

	go s.readLoop()

	sub := h.hub.Subscribe(func(changed string) {
		if changed == s.route {
			s.Refresh()
		}
	})
	defer sub.Remove()
	s.logger.Debug("session started", "subscription", sub.ID())

	if err := s.render(ctx, true); err != nil {
		s.logger.Error("initial render failed", slog.Any("err", err))
		s.closeWith(websocket.CloseInternalServerErr, "render failed")
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.closeWith(websocket.CloseGoingAway, "")
			return
		case <-s.refresh:
			if err := s.render(ctx, false); err != nil {
				s.logger.Warn("re-render failed, keeping previous content", slog.Any("err", err))
			}
		}
	}
}

func (h *Handler) track(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
	h.wg.Done()
}

// Active reports the number of connected sessions.
func (h *Handler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close disconnects every session and waits for them to finish.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
		s.shutdown()
	}
	h.wg.Wait()
}
