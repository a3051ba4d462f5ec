// Package pages maps the markdown files of a project onto routes, keeps them
// rendered, and reports changes as files are edited.
package pages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/euforicio/pagable/internal/markdown"
	"github.com/euforicio/pagable/internal/route"
)

// ErrDuplicateRoute is returned when two sources claim the same route.
var ErrDuplicateRoute = errors.New("duplicate route")

// EventType classifies page change notifications.
type EventType string

// Event types.
const (
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// Event describes a page change.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Route     string    `json:"route"`
	Path      string    `json:"path"`
}

// Page is a rendered markdown file.
type Page struct {
	Route string
	Path  string // relative to the pages directory, slash separated
	Doc   markdown.Document
}

// Options configure the service.
type Options struct {
	// Debounce delays reloading a file after its last change.
	Debounce time.Duration
	// Reserved reports routes owned by someone else (component pages).
	// Files mapping to them fail the initial scan and are ignored later.
	Reserved func(route string) bool
	// Watch enables the filesystem watcher.
	Watch bool
}

var defaultExcludedDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"venv":         {},
	"deps":         {},
	"third_party":  {},
	"__pycache__":  {},
}

// Service keeps the markdown pages of one directory rendered.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	root     string
	md       *markdown.Service
	logger   *slog.Logger
	opts     Options
	watcher  *fsnotify.Watcher
	watching sync.WaitGroup

	mu     sync.RWMutex
	routes map[string]*Page
	files  map[string]string // relative path -> route

	timerMu sync.Mutex
	timers  map[string]*time.Timer

	subsMu      sync.RWMutex
	subscribers map[uint64]*subscriber
	subCounter  atomic.Uint64
}

type subscriber struct {
	ctx context.Context
	ch  chan Event
}

// NewService scans root and, when opts.Watch is set, watches it for
// changes. A missing root yields a service without pages.
func NewService(parentCtx context.Context, root string, md *markdown.Service, logger *slog.Logger, opts Options) (*Service, error) {
	if md == nil {
		return nil, errors.New("markdown service must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve pages directory: %w", err)
	}
	if opts.Reserved == nil {
		opts.Reserved = func(string) bool { return false }
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s := &Service{
		ctx:         ctx,
		cancel:      cancel,
		root:        absRoot,
		md:          md,
		logger:      logger.With("component", "pages"),
		opts:        opts,
		routes:      make(map[string]*Page),
		files:       make(map[string]string),
		timers:      make(map[string]*time.Timer),
		subscribers: make(map[uint64]*subscriber),
	}

	info, err := os.Stat(absRoot)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("pages directory not found, serving no markdown pages", slog.String("dir", absRoot))
		return s, nil
	case err != nil:
		cancel()
		return nil, fmt.Errorf("stat pages directory: %w", err)
	case !info.IsDir():
		cancel()
		return nil, fmt.Errorf("pages path %s is not a directory", absRoot)
	}

	if err := s.scan(ctx); err != nil {
		cancel()
		return nil, err
	}

	if opts.Watch {
		if err := s.startWatcher(); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

// Close stops watching and closes every subscription.
func (s *Service) Close() error {
	s.cancel()
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.watching.Wait()

	s.timerMu.Lock()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	s.timerMu.Unlock()
	return err
}

// Root returns the absolute pages directory.
func (s *Service) Root() string { return s.root }

// Lookup returns the page served on route.
func (s *Service) Lookup(r string) (Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.routes[r]
	if !ok {
		return Page{}, false
	}
	return *p, true
}

// Routes lists the markdown routes in order.
func (s *Service) Routes() []Page {
	s.mu.RLock()
	out := make([]Page, 0, len(s.routes))
	for _, p := range s.routes {
		out = append(out, *p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// Subscribe registers for change events. The channel closes when ctx is done
// or the service is closed. Events are dropped for subscribers that lag.
func (s *Service) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)
	id := s.subCounter.Add(1)

	s.subsMu.Lock()
	s.subscribers[id] = &subscriber{ctx: ctx, ch: ch}
	s.subsMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		}
		s.removeSubscriber(id)
	}()
	return ch
}

func (s *Service) broadcast(evt Event) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subscribers {
		select {
		case <-sub.ctx.Done():
		case sub.ch <- evt:
		default:
			s.logger.Debug("subscriber lagging, dropping event", slog.String("route", evt.Route))
		}
	}
}

func (s *Service) removeSubscriber(id uint64) {
	s.subsMu.Lock()
	if sub, ok := s.subscribers[id]; ok {
		close(sub.ch)
		delete(s.subscribers, id)
	}
	s.subsMu.Unlock()
}

func (s *Service) scan(ctx context.Context) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && s.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel := s.relativePath(path)
		r, ok := route.FromFile(rel)
		if !ok {
			return nil
		}
		if s.opts.Reserved(r) {
			return fmt.Errorf("%w: %s (from %s) is registered by a component", ErrDuplicateRoute, r, rel)
		}
		if owner, taken := s.routes[r]; taken {
			return fmt.Errorf("%w: %s is provided by both %s and %s", ErrDuplicateRoute, r, owner.Path, rel)
		}
		page, err := s.load(ctx, path, rel, r)
		if err != nil {
			return err
		}
		s.routes[r] = page
		s.files[rel] = r
		return nil
	})
}

func (s *Service) load(ctx context.Context, abs, rel, r string) (*Page, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat page: %w", err)
	}
	content, err := os.ReadFile(abs) //nolint:gosec // abs is inside the pages directory
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	doc, err := s.md.Render(ctx, rel, info.ModTime(), content)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rel, err)
	}
	return &Page{Route: r, Path: rel, Doc: doc}, nil
}

func (s *Service) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := defaultExcludedDirs[strings.ToLower(name)]
	return ok
}

func (s *Service) relativePath(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
