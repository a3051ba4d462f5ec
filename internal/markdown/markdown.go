// Package markdown renders markdown pages to HTML with caching, front matter,
// syntax highlighting, spoilers and optional d2 diagrams.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	goldmarkmeta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
	"go.abhg.dev/goldmark/anchor"

	"github.com/euforicio/pagable/internal/markdown/diagram"
)

// Metadata captures optional front matter rendered alongside a page.
type Metadata struct {
	Raw         map[string]any
	Title       string
	Description string
	Theme       string
	Tags        []string
}

// IsZero reports whether the metadata carries any meaningful values.
func (m Metadata) IsZero() bool {
	if m.Title != "" || m.Description != "" || m.Theme != "" || len(m.Tags) > 0 {
		return false
	}
	return len(m.Raw) == 0
}

// Document represents a rendered markdown file.
type Document struct {
	HTML     string
	Metadata Metadata
	Modified time.Time
	Raw      string
}

type cacheEntry struct {
	modTime time.Time
	doc     Document
}

// Options configure the markdown service.
type Options struct {
	// HighlightStyle names the chroma style used by HighlightCSS.
	HighlightStyle string
	// Diagrams renders ```d2 fences when set.
	Diagrams *diagram.Compiler
}

// Service renders markdown into HTML with caching.
type Service struct {
	md     goldmark.Markdown
	logger *slog.Logger
	style  string
	cache  sync.Map // map[string]cacheEntry
}

var docPathKey = parser.NewContextKey()

// NewService constructs a markdown renderer. Raw HTML in pages is kept, as
// pages are authored by the developer running the server.
func NewService(logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "markdown")
	style := opts.HighlightStyle
	if style == "" {
		style = "github"
	}

	highlight := highlighting.NewHighlighting(
		highlighting.WithStyle(style),
		highlighting.WithFormatOptions(
			html.WithLineNumbers(false),
			html.WithClasses(true),
		),
		highlighting.WithWrapperRenderer(mermaidWrapper()),
	)

	transformers := []util.PrioritizedValue{
		util.Prioritized(&routeLinkTransformer{}, 100),
		util.Prioritized(&spoilerTransformer{}, 200),
	}
	if opts.Diagrams != nil {
		transformers = append(transformers, util.Prioritized(&diagramTransformer{compiler: opts.Diagrams, logger: logger}, 300))
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			goldmarkmeta.Meta,
			highlight,
			&anchor.Extender{Position: anchor.After},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
			parser.WithASTTransformers(transformers...),
		),
		goldmark.WithRendererOptions(
			htmlrenderer.WithUnsafe(),
			htmlrenderer.WithXHTML(),
			renderer.WithNodeRenderers(util.Prioritized(&diagramBlockRenderer{}, 500)),
		),
	)

	return &Service{
		md:     md,
		logger: logger,
		style:  style,
	}
}

// Render converts markdown content to HTML, caching results by path and
// modification time. path is relative to the pages directory and is used to
// resolve relative links.
func (s *Service) Render(_ context.Context, path string, modTime time.Time, content []byte) (Document, error) {
	if entry, ok := s.cache.Load(path); ok {
		if cached, ok := entry.(cacheEntry); ok {
			if !cached.modTime.IsZero() && modTime.Equal(cached.modTime) {
				return cached.doc, nil
			}
		}
	}

	parserCtx := parser.NewContext()
	parserCtx.Set(docPathKey, path)
	buf := bytes.NewBuffer(nil)

	if err := s.md.Convert(content, buf, parser.WithContext(parserCtx)); err != nil {
		return Document{}, fmt.Errorf("render markdown: %w", err)
	}

	doc := Document{
		HTML:     buf.String(),
		Metadata: extractMetadata(parserCtx),
		Modified: modTime,
		Raw:      string(content),
	}

	s.cache.Store(path, cacheEntry{modTime: modTime, doc: doc})
	return doc, nil
}

// Invalidate removes the cached entry for the given path.
func (s *Service) Invalidate(path string) {
	s.cache.Delete(path)
}

// HighlightCSS writes the stylesheet matching the classes emitted for code blocks.
func (s *Service) HighlightCSS(w io.Writer) error {
	style := styles.Get(s.style)
	formatter := html.New(html.WithClasses(true))
	if err := formatter.WriteCSS(w, style); err != nil {
		return fmt.Errorf("write highlight css: %w", err)
	}
	return nil
}

func extractMetadata(ctx parser.Context) Metadata {
	raw := goldmarkmeta.Get(ctx)
	var meta Metadata
	if raw == nil {
		return meta
	}

	meta.Raw = make(map[string]any, len(raw))
	for k, v := range raw {
		meta.Raw[k] = jsonSafe(v)
		switch k {
		case "title":
			if str, ok := toString(v); ok {
				meta.Title = str
			}
		case "description", "summary":
			if str, ok := toString(v); ok {
				meta.Description = str
			}
		case "theme":
			if str, ok := toString(v); ok {
				meta.Theme = str
			}
		case "tags", "keywords":
			meta.Tags = toStringSlice(v)
		}
	}

	if len(meta.Raw) == 0 {
		meta.Raw = nil
	}

	return meta
}

// jsonSafe converts YAML decoded values (which may contain
// map[interface{}]interface{}) into values encoding/json accepts.
func jsonSafe(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = jsonSafe(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonSafe(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonSafe(item)
		}
		return out
	default:
		return v
	}
}

func toString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return "", false
	}
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if str, ok := toString(item); ok {
				out = append(out, str)
			}
		}
		return out
	case []string:
		return append([]string(nil), vv...)
	default:
		if str, ok := toString(v); ok {
			return []string{str}
		}
		return nil
	}
}
