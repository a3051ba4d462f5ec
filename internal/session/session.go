// Package session drives one browser connection: it renders the requested
// page, pushes re-renders when the page changes and evaluates scripts in the
// browser on behalf of the server.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/euforicio/pagable/internal/protocol"
)

var (
	// ErrRouteNotFound is returned by a Resolver for routes it cannot serve.
	ErrRouteNotFound = errors.New("route not found")
	// ErrClosed is returned by Eval once the connection is gone.
	ErrClosed = errors.New("session closed")
	// ErrScriptTimeout is returned when the browser does not answer in time.
	ErrScriptTimeout = errors.New("script timed out")
)

// Close codes sent to the browser.
const (
	CloseRouteNotFound = 4404
)

// Output is a rendered page ready to be sent to the browser.
type Output struct {
	Kind     protocol.ContentType
	HTML     string
	Meta     map[string]any
	Requires []string
}

// Bridge is the session as seen from a rendering page.
type Bridge interface {
	// Eval runs script in the browser and returns its JSON encoded result.
	Eval(ctx context.Context, script string) (json.RawMessage, error)
	// Refresh schedules a re-render of the session's page.
	Refresh()
}

// View renders one page for one session.
type View interface {
	Render(ctx context.Context, b Bridge) (Output, error)
}

// Resolver opens the view for a route. It returns ErrRouteNotFound for
// unknown routes.
type Resolver interface {
	Open(route string) (View, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(route string) (View, error)

// Open calls f(route).
func (f ResolverFunc) Open(route string) (View, error) { return f(route) }

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
	maxMessageSize  = 4 << 20
)

type session struct {
	conn     *websocket.Conn
	logger   *slog.Logger
	tracer   trace.Tracer
	timeout  time.Duration
	// pongWait is how long the peer may stay silent; pings go out at 9/10
	// of it.
	pongWait time.Duration
	route    string
	view     View

	writeMu  sync.Mutex
	scriptMu sync.Mutex

	waitMu  sync.Mutex
	nextID  uint64
	pending map[uint64]chan protocol.Reply

	refresh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newSession(conn *websocket.Conn, logger *slog.Logger, tracer trace.Tracer, timeout, pongWait time.Duration) *session {
	return &session{
		conn:     conn,
		logger:   logger,
		tracer:   tracer,
		timeout:  timeout,
		pongWait: pongWait,
		pending:  make(map[uint64]chan protocol.Reply),
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Refresh implements Bridge. Requests made while a render is pending are
// coalesced into that render.
func (s *session) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Eval implements Bridge. Calls are serialized per session; replies are
// matched to their script by id, so the browser may answer in any order.
func (s *session) Eval(ctx context.Context, script string) (json.RawMessage, error) {
	s.scriptMu.Lock()
	defer s.scriptMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "pagable.script", trace.WithAttributes(
		attribute.String("pagable.route", s.route),
		attribute.Int("pagable.script.bytes", len(script)),
	))
	defer span.End()

	waiter := make(chan protocol.Reply, 1)
	s.waitMu.Lock()
	select {
	case <-s.done:
		s.waitMu.Unlock()
		return nil, ErrClosed
	default:
	}
	s.nextID++
	id := s.nextID
	s.pending[id] = waiter
	s.waitMu.Unlock()
	defer s.forget(id)
	span.SetAttributes(attribute.Int64("pagable.script.id", int64(id)))

	if err := s.write(protocol.NewScript(id, script)); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("send script: %w", err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case reply := <-waiter:
		if err := reply.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return reply.Content, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		span.SetStatus(codes.Error, "timeout")
		return nil, fmt.Errorf("%w after %s", ErrScriptTimeout, s.timeout)
	case <-s.done:
		return nil, ErrClosed
	}
}

// forget stops waiting for script id. A reply arriving later is dropped.
func (s *session) forget(id uint64) {
	s.waitMu.Lock()
	delete(s.pending, id)
	s.waitMu.Unlock()
}

func (s *session) deliver(reply protocol.Reply) {
	s.waitMu.Lock()
	waiter, ok := s.pending[reply.ID]
	delete(s.pending, reply.ID)
	s.waitMu.Unlock()

	if !ok {
		s.logger.Warn("dropping script reply with no pending script", "id", reply.ID, "type", float64(reply.Type))
		return
	}
	waiter <- reply
}

func (s *session) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *session) writeControl(messageType int, data []byte) error {
	return s.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

func (s *session) closeWith(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := s.writeControl(websocket.CloseMessage, msg); err != nil {
		s.logger.Debug("write close frame", slog.Any("err", err))
	}
}

func (s *session) shutdown() {
	s.once.Do(func() {
		s.waitMu.Lock()
		close(s.done)
		s.waitMu.Unlock()
		_ = s.conn.Close()
	})
}

func (s *session) render(ctx context.Context, initial bool) error {
	ctx, span := s.tracer.Start(ctx, "pagable.render", trace.WithAttributes(
		attribute.String("pagable.route", s.route),
		attribute.Bool("pagable.initial", initial),
	))
	defer span.End()

	out, err := s.view.Render(ctx, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("render %s: %w", s.route, err)
	}
	if err := s.write(protocol.NewRender(out.Kind, out.HTML, out.Meta, out.Requires, initial)); err != nil {
		return fmt.Errorf("send render: %w", err)
	}
	return nil
}

// keepAlive pings the browser until ctx is done. It runs apart from the
// render loop so a long Eval does not starve the connection of pings.
func (s *session) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeControl(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("ping failed", slog.Any("err", err))
				s.shutdown()
				return
			}
		}
	}
}

// readLoop owns all reads after the hello frame. Any frame proves the peer
// alive, as a pong does.
func (s *session) readLoop() {
	defer s.shutdown()
	for {
		_, data, err := s.conn.ReadMessage()
		if err == nil {
			err = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Debug("connection closed", slog.Any("err", err))
			}
			return
		}
		reply, err := protocol.DecodeReply(data)
		if err != nil {
			s.logger.Warn("ignoring malformed frame", slog.Any("err", err))
			continue
		}
		s.deliver(reply)
	}
}
