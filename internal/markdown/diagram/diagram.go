// Package diagram compiles d2 sources into inline SVG.
package diagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"oss.terrastruct.com/d2/d2graph"
	"oss.terrastruct.com/d2/d2layouts/d2dagrelayout"
	"oss.terrastruct.com/d2/d2layouts/d2elklayout"
	"oss.terrastruct.com/d2/d2lib"
	"oss.terrastruct.com/d2/d2renderers/d2svg"
	"oss.terrastruct.com/d2/d2themes/d2themescatalog"
	d2log "oss.terrastruct.com/d2/lib/log"
	"oss.terrastruct.com/d2/lib/textmeasure"
)

// ErrEmptyDiagram is returned when the supplied diagram body is empty.
var ErrEmptyDiagram = errors.New("empty d2 diagram")

// ErrUnsupportedLayout is returned for layout engines other than dagre and elk.
var ErrUnsupportedLayout = errors.New("unsupported d2 layout")

// Result is a compiled diagram.
type Result struct {
	SVG      string
	Duration time.Duration
}

// Options configure a Compiler.
type Options struct {
	// Timeout bounds a single compilation. Defaults to 10s.
	Timeout time.Duration
}

// Compiler turns d2 scripts into SVG. The light theme follows water.css
// defaults; the dark theme is applied through prefers-color-scheme.
type Compiler struct {
	logger  *slog.Logger
	timeout time.Duration

	// textmeasure rulers are not safe for concurrent use.
	mu    sync.Mutex
	ruler *textmeasure.Ruler
}

// New creates a compiler.
func New(logger *slog.Logger, opts Options) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Compiler{
		logger:  logger.With("component", "diagram"),
		timeout: timeout,
	}
}

// Compile renders source into SVG. Layout engines other than dagre and elk
// are rejected.
func (c *Compiler) Compile(ctx context.Context, source string) (Result, error) {
	if strings.TrimSpace(source) == "" {
		return Result{}, ErrEmptyDiagram
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ruler == nil {
		ruler, err := textmeasure.NewRuler()
		if err != nil {
			return Result{}, fmt.Errorf("init ruler: %w", err)
		}
		c.ruler = ruler
	}

	ctx = d2log.With(ctx, c.logger)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	themeID := d2themescatalog.NeutralDefault.ID
	darkThemeID := d2themescatalog.DarkFlagshipTerrastruct.ID
	pad := int64(d2svg.DEFAULT_PADDING)
	renderOpts := &d2svg.RenderOpts{
		ThemeID:     &themeID,
		DarkThemeID: &darkThemeID,
		Pad:         &pad,
	}

	start := time.Now()
	diagram, _, err := d2lib.Compile(ctx, source, &d2lib.CompileOptions{
		Ruler:          c.ruler,
		LayoutResolver: resolveLayout,
	}, renderOpts)
	if err != nil {
		return Result{}, fmt.Errorf("compile d2: %w", err)
	}
	if diagram == nil {
		return Result{}, errors.New("d2 compiler returned nil diagram")
	}

	svg, err := d2svg.Render(diagram, renderOpts)
	if err != nil {
		return Result{}, fmt.Errorf("render svg: %w", err)
	}

	return Result{
		SVG:      string(svg),
		Duration: time.Since(start),
	}, nil
}

func resolveLayout(engine string) (d2graph.LayoutGraph, error) {
	switch strings.ToLower(engine) {
	case "", "dagre":
		return func(ctx context.Context, g *d2graph.Graph) error {
			return d2dagrelayout.Layout(ctx, g, nil)
		}, nil
	case "elk":
		return func(ctx context.Context, g *d2graph.Graph) error {
			return d2elklayout.Layout(ctx, g, nil)
		}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedLayout, engine)
	}
}
