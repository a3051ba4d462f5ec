package markdown_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/euforicio/pagable/internal/markdown"
	"github.com/euforicio/pagable/internal/markdown/diagram"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRenderWithMetadataAndMermaid(t *testing.T) {
	t.Parallel()
	svc := markdown.NewService(quietLogger(), markdown.Options{})

	content := []byte("---\n" +
		"title: Example Page\n" +
		"description: Sample description\n" +
		"theme: dark\n" +
		"tags:\n" +
		"  - go\n" +
		"  - pages\n" +
		"extra:\n" +
		"  nested: true\n" +
		"---\n\n" +
		"# Hello\n\n" +
		"```mermaid\n" +
		"graph TD;\n" +
		"A-->B;\n" +
		"```\n\n" +
		"```go\n" +
		"package main\n" +
		"```\n")

	modTime := time.Unix(1_000, 0)
	doc, err := svc.Render(context.Background(), "docs/example.md", modTime, content)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	if doc.Metadata.Title != "Example Page" {
		t.Fatalf("expected title, got %q", doc.Metadata.Title)
	}
	if doc.Metadata.Theme != "dark" {
		t.Fatalf("expected theme dark, got %q", doc.Metadata.Theme)
	}
	if len(doc.Metadata.Tags) != 2 || doc.Metadata.Tags[1] != "pages" {
		t.Fatalf("unexpected tags: %#v", doc.Metadata.Tags)
	}
	if _, err := json.Marshal(doc.Metadata.Raw); err != nil {
		t.Fatalf("metadata must be JSON encodable: %v", err)
	}

	html := doc.HTML
	if !strings.Contains(html, `<div class="mermaid">`) {
		t.Fatalf("expected mermaid div in HTML, got %s", html)
	}
	if !strings.Contains(html, `class="chroma"`) {
		t.Fatalf("expected chroma highlighter output, got %s", html)
	}
	if !strings.Contains(html, `<span class="kn">package</span>`) {
		t.Fatalf("expected go syntax tokens in HTML, got %s", html)
	}
	if !doc.Modified.Equal(modTime) {
		t.Fatalf("expected modified timestamp to match, got %v", doc.Modified)
	}
}

func TestRenderSpoiler(t *testing.T) {
	t.Parallel()
	svc := markdown.NewService(quietLogger(), markdown.Options{})

	doc, err := svc.Render(context.Background(), "spoiler.md", time.Time{}, []byte(">! the butler did it\n\n> plain quote\n"))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(doc.HTML, `<blockquote class="spoiler">`) {
		t.Fatalf("expected spoiler blockquote, got %s", doc.HTML)
	}
	if strings.Contains(doc.HTML, "!") {
		t.Fatalf("expected spoiler marker to be stripped, got %s", doc.HTML)
	}
	if strings.Count(doc.HTML, "<blockquote>") != 1 {
		t.Fatalf("expected the plain quote to stay unmarked, got %s", doc.HTML)
	}
}

func TestRenderRewritesMarkdownLinks(t *testing.T) {
	t.Parallel()
	svc := markdown.NewService(quietLogger(), markdown.Options{})

	content := []byte("[setup](setup.md) [home](../index.md) [api](/ref/api.md#auth) [ext](https://example.com/a.md) [anchor](#top)\n")
	doc, err := svc.Render(context.Background(), "guide/intro.md", time.Time{}, content)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	for _, want := range []string{
		`href="/guide/setup/"`,
		`href="/"`,
		`href="/ref/api/#auth"`,
		`href="https://example.com/a.md"`,
		`href="#top"`,
	} {
		if !strings.Contains(doc.HTML, want) {
			t.Fatalf("expected %s in %s", want, doc.HTML)
		}
	}
}

func TestRenderCaching(t *testing.T) {
	t.Parallel()
	svc := markdown.NewService(quietLogger(), markdown.Options{})

	ctx := context.Background()
	path := "docs/cache.md"
	modTime := time.Unix(2_000, 0)

	doc1, err := svc.Render(ctx, path, modTime, []byte("# First"))
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	doc2, err := svc.Render(ctx, path, modTime, []byte("# Second"))
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if doc2.HTML != doc1.HTML {
		t.Fatalf("expected cached HTML, got different output")
	}

	svc.Invalidate(path)
	doc3, err := svc.Render(ctx, path, modTime, []byte("# Second"))
	if err != nil {
		t.Fatalf("third render: %v", err)
	}
	if !strings.Contains(doc3.HTML, "Second") {
		t.Fatalf("expected invalidated entry to re-render, got %s", doc3.HTML)
	}
}

func TestHighlightCSS(t *testing.T) {
	t.Parallel()
	svc := markdown.NewService(quietLogger(), markdown.Options{HighlightStyle: "monokai"})

	var buf bytes.Buffer
	if err := svc.HighlightCSS(&buf); err != nil {
		t.Fatalf("HighlightCSS returned error: %v", err)
	}
	if !strings.Contains(buf.String(), ".chroma") {
		t.Fatalf("expected chroma selectors, got %s", buf.String())
	}
}

func TestRenderDiagrams(t *testing.T) {
	if testing.Short() {
		t.Skip("d2 layout is slow")
	}
	svc := markdown.NewService(quietLogger(), markdown.Options{Diagrams: diagram.New(quietLogger(), diagram.Options{})})

	doc, err := svc.Render(context.Background(), "d2.md", time.Time{}, []byte("```d2\na -> b\n```\n\n```d2\na: {\n```\n"))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(doc.HTML, `<div class="d2-block"`) || !strings.Contains(doc.HTML, "<svg") {
		t.Fatalf("expected rendered svg, got %.400s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, `class="d2-error"`) {
		t.Fatalf("expected failing diagram to render an error block")
	}
}
