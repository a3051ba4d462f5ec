package markdown

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/euforicio/pagable/internal/markdown/diagram"
)

const (
	mermaidLanguage = "mermaid"
	d2Language      = "d2"
)

// mermaidWrapper emits ```mermaid fences as divs for mermaid.js to hydrate and
// falls back to a plain pre/code pair for unhighlighted blocks.
func mermaidWrapper() highlighting.WrapperRenderer {
	return func(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
		if ctx.Highlighted() {
			return
		}

		lang, _ := ctx.Language()
		if strings.EqualFold(strings.TrimSpace(string(lang)), mermaidLanguage) {
			if entering {
				_, _ = w.WriteString(`<div class="mermaid">`)
			} else {
				_, _ = w.WriteString("</div>\n")
			}
			return
		}

		if !entering {
			_, _ = w.WriteString("</code></pre>\n")
			return
		}
		_, _ = w.WriteString("<pre><code")
		if len(bytes.TrimSpace(lang)) > 0 {
			_, _ = w.WriteString(` class="language-`)
			_, _ = w.Write(util.EscapeHTML(lang))
			_, _ = w.WriteString(`"`)
		}
		_, _ = w.WriteString(">")
	}
}

// diagramBlock replaces a ```d2 fence with its compiled SVG.
type diagramBlock struct {
	ast.BaseBlock
	Source  string
	SVG     string
	Error   string
	Runtime time.Duration
}

var kindDiagramBlock = ast.NewNodeKind("DiagramBlock")

func (b *diagramBlock) Kind() ast.NodeKind { return kindDiagramBlock }

func (b *diagramBlock) IsRaw() bool { return true }

func (b *diagramBlock) Dump(source []byte, level int) {
	info := map[string]string{"Source": fmt.Sprintf("%d bytes", len(b.Source))}
	if b.Error != "" {
		info["Error"] = fmt.Sprintf("%q", b.Error)
	}
	ast.DumpHelper(b, source, level, info, nil)
}

type diagramTransformer struct {
	compiler *diagram.Compiler
	logger   *slog.Logger
}

func (t *diagramTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	if t.compiler == nil || node == nil {
		return
	}
	t.walk(node, reader, pc)
}

func (t *diagramTransformer) walk(parent ast.Node, reader text.Reader, pc parser.Context) {
	for child := parent.FirstChild(); child != nil; {
		next := child.NextSibling()

		if fence, ok := child.(*ast.FencedCodeBlock); ok && strings.EqualFold(strings.TrimSpace(string(fence.Language(reader.Source()))), d2Language) {
			block := t.compile(fence, reader, pc)
			block.SetBlankPreviousLines(fence.HasBlankPreviousLines())
			for _, attr := range fence.Attributes() {
				block.SetAttribute(attr.Name, attr.Value)
			}
			parent.ReplaceChild(parent, fence, block)
			child = next
			continue
		}

		if child.HasChildren() {
			t.walk(child, reader, pc)
		}
		child = next
	}
}

func (t *diagramTransformer) compile(fence *ast.FencedCodeBlock, reader text.Reader, pc parser.Context) *diagramBlock {
	var buf bytes.Buffer
	lines := fence.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(reader.Source()))
	}
	source := buf.String()

	result, err := t.compiler.Compile(context.Background(), source)
	if err != nil {
		doc, _ := pc.Get(docPathKey).(string)
		t.logger.Warn("d2 diagram failed", "path", doc, slog.Any("err", err))
		return &diagramBlock{Source: source, Error: err.Error()}
	}
	return &diagramBlock{Source: source, SVG: result.SVG, Runtime: result.Duration}
}

type diagramBlockRenderer struct{}

func (r *diagramBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(kindDiagramBlock, r.render)
}

func (r *diagramBlockRenderer) render(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	block, ok := node.(*diagramBlock)
	if !ok {
		return ast.WalkContinue, nil
	}

	var b strings.Builder
	b.WriteString(`<div class="d2-block"`)
	if block.Runtime > 0 {
		fmt.Fprintf(&b, ` data-runtime-ms="%d"`, block.Runtime.Milliseconds())
	}
	if block.Source != "" {
		fmt.Fprintf(&b, ` data-source-b64="%s"`, base64.StdEncoding.EncodeToString([]byte(block.Source)))
	}
	b.WriteString(">")
	if block.Error != "" {
		b.WriteString(`<div class="d2-error">` + html.EscapeString(block.Error) + `</div>`)
	} else {
		b.WriteString(block.SVG)
	}
	b.WriteString("</div>\n")

	if _, err := w.WriteString(b.String()); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}
