package pagable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"sort"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/pflag"

	"github.com/euforicio/pagable/internal/config"
	"github.com/euforicio/pagable/internal/markdown"
	"github.com/euforicio/pagable/internal/markdown/diagram"
	"github.com/euforicio/pagable/internal/pages"
	"github.com/euforicio/pagable/internal/protocol"
	"github.com/euforicio/pagable/internal/route"
	"github.com/euforicio/pagable/internal/server"
	"github.com/euforicio/pagable/internal/session"
	"github.com/euforicio/pagable/internal/telemetry"
)

// Config holds the runtime configuration of an App.
type Config = config.Config

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config { return config.Default() }

// ParseConfig builds a configuration from the defaults, PAGABLE_*
// environment variables and command line args, in that order.
func ParseConfig(name string, args []string) (Config, error) {
	cfg := config.Default()
	config.ApplyEnvOverrides(&cfg)
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	config.RegisterFlags(flags, &cfg)
	if err := flags.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	if err := config.Finalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewLogger returns the text logger used by pagable applications: warnings
// and errors only unless verbose is set.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Page is a component page served on Route.
type Page struct {
	Route  string
	Handle HandleFunc
	// Requires lists scripts (.js) and stylesheets (.css) loaded with every
	// render of the page.
	Requires []string
	// Meta is sent with every render. "title" and "theme" are applied by
	// the browser runtime.
	Meta map[string]any
}

// App serves component pages and the markdown pages of a project.
type App struct {
	cfg    Config
	logger *slog.Logger
	hub    *session.Hub

	mu    sync.RWMutex
	pages map[string]Page

	buildMu  sync.Mutex
	built    bool
	cancel   context.CancelFunc
	docs     *pages.Service
	sessions *session.Handler
	server   *server.Server
	forward  sync.WaitGroup
}

// New creates an application. A nil logger selects NewLogger(cfg.Verbose).
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = NewLogger(cfg.Verbose)
	}
	return &App{
		cfg:    cfg,
		logger: logger.With("app", "pagable"),
		hub:    session.NewHub(),
		pages:  make(map[string]Page),
	}
}

// Register adds a component page.
func (a *App) Register(p Page) error {
	if err := validation.ValidateStruct(&p,
		validation.Field(&p.Route, validation.Required),
		validation.Field(&p.Handle, validation.By(func(v any) error {
			if h, _ := v.(HandleFunc); h == nil {
				return ErrNoHandle
			}
			return nil
		})),
	); err != nil {
		return fmt.Errorf("register page %q: %w", p.Route, err)
	}

	requires := make([]string, 0, len(p.Requires))
	for _, file := range p.Requires {
		src, err := assetPath(file)
		if err != nil {
			return fmt.Errorf("register page %q: %w", p.Route, err)
		}
		requires = append(requires, src)
	}
	p.Requires = requires
	p.Route = route.Normalize(p.Route)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, taken := a.pages[p.Route]; taken {
		return fmt.Errorf("%w: %s is registered twice", ErrDuplicateRoute, p.Route)
	}
	a.pages[p.Route] = p
	return nil
}

// MustRegister is like Register but panics on error.
func (a *App) MustRegister(p Page) {
	if err := a.Register(p); err != nil {
		panic(err)
	}
}

// Emit re-renders route in every session showing it.
func (a *App) Emit(r string) {
	a.hub.Emit(route.Normalize(r))
}

// Handler starts the page services and returns the HTTP handler of the app
// without listening. The services stop when ctx is done or Close is called.
func (a *App) Handler(ctx context.Context) (http.Handler, error) {
	if err := a.build(ctx); err != nil {
		return nil, err
	}
	return a.server, nil
}

// Run serves the app on the configured address until ctx is done.
func (a *App) Run(ctx context.Context) error {
	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    a.cfg.OTLPEndpoint,
		ServiceName: a.cfg.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("telemetry shutdown failed", slog.Any("err", err))
		}
	}()

	if err := a.build(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error("close app", slog.Any("err", err))
		}
	}()

	a.logger.Info("running app", slog.Int("components", a.componentCount()), slog.Int("pages", len(a.docs.Routes())))
	if err := a.server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close disconnects every session and stops the page watcher.
func (a *App) Close() error {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()
	if !a.built {
		return nil
	}
	a.sessions.Close()
	a.cancel()
	err := a.docs.Close()
	a.forward.Wait()
	a.built = false
	return err
}

func (a *App) build(ctx context.Context) error {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()
	if a.built {
		return nil
	}

	cfg := a.cfg
	if err := config.Finalize(&cfg); err != nil {
		return err
	}
	a.cfg = cfg

	opts := markdown.Options{HighlightStyle: cfg.HighlightStyle}
	if cfg.Diagrams {
		opts.Diagrams = diagram.New(a.logger, diagram.Options{})
	}
	md := markdown.NewService(a.logger, opts)

	ctx, cancel := context.WithCancel(ctx)
	docs, err := pages.NewService(ctx, cfg.PagesDir, md, a.logger, pages.Options{
		Debounce: cfg.Debounce,
		Reserved: a.isComponent,
		Watch:    true,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("load pages: %w", err)
	}

	sessions := session.NewHandler(session.ResolverFunc(a.open), a.hub, a.logger, session.Options{
		ScriptTimeout: cfg.ScriptTimeout,
		CheckOrigin:   server.CheckOrigin,
	})

	a.cancel = cancel
	a.docs = docs
	a.sessions = sessions
	a.server = server.New(cfg, a.logger, server.Deps{
		Sessions:   sessions,
		Pages:      docs,
		Markdown:   md,
		Components: a.componentRoutes,
	})

	events := docs.Subscribe(ctx)
	a.forward.Add(1)
	go func() {
		defer a.forward.Done()
		for evt := range events {
			a.hub.Emit(evt.Route)
		}
	}()

	a.built = true
	return nil
}

func (a *App) isComponent(r string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.pages[r]
	return ok
}

func (a *App) componentCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pages)
}

func (a *App) componentRoutes() []server.RouteInfo {
	a.mu.RLock()
	out := make([]server.RouteInfo, 0, len(a.pages))
	for r, p := range a.pages {
		info := server.RouteInfo{Route: r, Kind: string(protocol.ContentComponent)}
		if title, ok := p.Meta["title"].(string); ok {
			info.Title = title
		}
		out = append(out, info)
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// open resolves the view of a new session. Component pages get their own
// Component so state lives as long as the browser tab.
func (a *App) open(r string) (session.View, error) {
	a.mu.RLock()
	p, ok := a.pages[r]
	a.mu.RUnlock()
	if ok {
		return &componentView{page: p, comp: NewComponent(p.Handle)}, nil
	}
	if v, ok := a.docs.View(r); ok {
		return v, nil
	}
	return nil, session.ErrRouteNotFound
}

type componentView struct {
	page Page
	comp *Component
}

func (v *componentView) Render(ctx context.Context, b session.Bridge) (session.Output, error) {
	v.comp.bind(b)
	html, err := v.comp.Render(ctx)
	if err != nil {
		return session.Output{}, err
	}
	requires := append([]string(nil), v.page.Requires...)
	for _, src := range v.comp.renderRequires() {
		if !slices.Contains(requires, src) {
			requires = append(requires, src)
		}
	}
	meta := make(map[string]any, len(v.page.Meta))
	for k, val := range v.page.Meta {
		meta[k] = val
	}
	return session.Output{
		Kind:     protocol.ContentComponent,
		HTML:     html,
		Meta:     meta,
		Requires: requires,
	}, nil
}
