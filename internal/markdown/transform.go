package markdown

import (
	"path"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/euforicio/pagable/internal/route"
)

// routeLinkTransformer rewrites relative links to markdown files into the
// routes those files are served on, e.g. "guide/setup.md" -> "/guide/setup/".
type routeLinkTransformer struct{}

func (t *routeLinkTransformer) Transform(node *ast.Document, _ text.Reader, pc parser.Context) {
	current, _ := pc.Get(docPathKey).(string)
	dir := path.Dir(strings.ReplaceAll(current, "\\", "/"))

	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if link, ok := n.(*ast.Link); ok {
			if dest, ok := rewriteLink(string(link.Destination), dir); ok {
				link.Destination = []byte(dest)
			}
		}
		return ast.WalkContinue, nil
	})
}

func rewriteLink(dest, dir string) (string, bool) {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.Contains(dest, "://") || strings.HasPrefix(dest, "mailto:") {
		return "", false
	}

	target, fragment := dest, ""
	if i := strings.Index(target, "#"); i >= 0 {
		target, fragment = target[:i], target[i:]
	}
	lower := strings.ToLower(target)
	if !strings.HasSuffix(lower, ".md") && !strings.HasSuffix(lower, ".markdown") {
		return "", false
	}

	if !strings.HasPrefix(target, "/") && dir != "" && dir != "." {
		target = path.Join(dir, target)
	}
	r, ok := route.FromFile(target)
	if !ok {
		return "", false
	}
	return r + fragment, true
}

// spoilerTransformer marks blockquotes whose text starts with "!" as spoilers
// and strips the marker, so ">! hidden" renders as
// <blockquote class="spoiler"><p>hidden</p></blockquote>.
type spoilerTransformer struct{}

func (t *spoilerTransformer) Transform(node *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		quote, ok := n.(*ast.Blockquote)
		if !ok {
			return ast.WalkContinue, nil
		}
		para, ok := quote.FirstChild().(*ast.Paragraph)
		if !ok {
			return ast.WalkContinue, nil
		}
		first, ok := para.FirstChild().(*ast.Text)
		if !ok {
			return ast.WalkContinue, nil
		}
		seg := first.Segment
		if seg.Len() == 0 || source[seg.Start] != '!' {
			return ast.WalkContinue, nil
		}
		trimmed := seg.WithStart(seg.Start + 1)
		first.Segment = trimmed.TrimLeftSpace(source)
		quote.SetAttributeString("class", []byte("spoiler"))
		return ast.WalkContinue, nil
	})
}
