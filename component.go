package pagable

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/euforicio/pagable/element"
	"github.com/euforicio/pagable/internal/session"
)

// HandleFunc renders a component page. It runs once per render of a
// session; state kept with UseState survives between runs.
type HandleFunc func(ctx context.Context, c *Component) (element.Node, error)

// Component is the server-side instance of a component page for one browser
// session.
type Component struct {
	handle HandleFunc

	mu            sync.Mutex
	states        map[string]any
	next          map[string]any
	bridge        session.Bridge
	firstRendered bool
	requires      []string
}

// NewComponent wraps handle in a component that is not bound to a browser.
// Scripting calls fail with ErrNoSession until the component is served.
func NewComponent(handle HandleFunc) *Component {
	return &Component{
		handle: handle,
		states: make(map[string]any),
		next:   make(map[string]any),
	}
}

type componentKey struct{}

// WithComponent returns a copy of ctx carrying c.
func WithComponent(ctx context.Context, c *Component) context.Context {
	return context.WithValue(ctx, componentKey{}, c)
}

// ComponentFrom returns the component being rendered with ctx.
func ComponentFrom(ctx context.Context) (*Component, error) {
	c, ok := ctx.Value(componentKey{}).(*Component)
	if !ok || c == nil {
		return nil, ErrNoComponent
	}
	return c, nil
}

// Render applies pending state updates and runs the handle function.
func (c *Component) Render(ctx context.Context) (string, error) {
	if c.handle == nil {
		return "", fmt.Errorf("render component: %w", ErrNoHandle)
	}
	c.ForwardStateUpdates()

	c.mu.Lock()
	c.requires = nil
	c.mu.Unlock()

	node, err := c.handle(WithComponent(ctx, c), c)
	if err != nil {
		return "", err
	}
	html := ""
	if node != nil {
		if html, err = element.Render(node); err != nil {
			return "", fmt.Errorf("render component markup: %w", err)
		}
	}

	c.mu.Lock()
	c.firstRendered = true
	c.mu.Unlock()
	return html, nil
}

// FirstRendered reports whether the component completed a render.
func (c *Component) FirstRendered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstRendered
}

// UpdateState stores value under key for the next render. Reads made during
// the current render keep seeing the old value.
func (c *Component) UpdateState(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next[key] = value
}

// ForwardStateUpdates moves pending updates into the current state.
func (c *Component) ForwardStateUpdates() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.next {
		c.states[k] = v
		delete(c.next, k)
	}
}

// State returns the current value stored under key.
func (c *Component) State(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.states[key]
	return v, ok
}

// AddScripting evaluates script in the browser and returns the JSON result.
// The script is a function body: use return to hand a value back. An
// exception thrown in the browser is returned as a *PageError.
func (c *Component) AddScripting(ctx context.Context, script string) (json.RawMessage, error) {
	c.mu.Lock()
	b := c.bridge
	c.mu.Unlock()
	if b == nil {
		return nil, ErrNoSession
	}
	return b.Eval(ctx, script)
}

// Require loads a script (.js, from src/scripts) or stylesheet (.css, from
// src/styles) in the browser along with the current render. Absolute paths
// and URLs are used as given.
func (c *Component) Require(file string) error {
	src, err := assetPath(file)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.requires, src) {
		c.requires = append(c.requires, src)
	}
	return nil
}

// Refresh asks the owning session to render the component again. It is a
// no-op for unbound components.
func (c *Component) Refresh() {
	c.mu.Lock()
	b := c.bridge
	c.mu.Unlock()
	if b != nil {
		b.Refresh()
	}
}

func (c *Component) bind(b session.Bridge) {
	c.mu.Lock()
	c.bridge = b
	c.mu.Unlock()
}

func (c *Component) renderRequires() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.requires...)
}

// assetPath maps a required file onto the URL the browser loads it from.
// Names already under scripts/ or styles/ keep their directory.
func assetPath(file string) (string, error) {
	file = strings.TrimSpace(file)
	clean := file
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	var dir string
	switch strings.ToLower(path.Ext(clean)) {
	case ".js":
		dir = "/scripts/"
	case ".css":
		dir = "/styles/"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAsset, file)
	}
	if strings.HasPrefix(file, "/") || strings.Contains(file, "://") {
		return file, nil
	}
	rel := strings.TrimPrefix(path.Clean("/"+file), "/")
	if strings.HasPrefix(rel, "scripts/") || strings.HasPrefix(rel, "styles/") {
		return "/" + rel, nil
	}
	return dir + rel, nil
}
