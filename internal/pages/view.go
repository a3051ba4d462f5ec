package pages

import (
	"context"
	"fmt"

	"github.com/euforicio/pagable/internal/protocol"
	"github.com/euforicio/pagable/internal/session"
)

// View returns a session view for a markdown route. The view always renders
// the latest version of the page.
func (s *Service) View(r string) (session.View, bool) {
	if _, ok := s.Lookup(r); !ok {
		return nil, false
	}
	return &view{svc: s, route: r}, true
}

type view struct {
	svc   *Service
	route string
}

func (v *view) Render(_ context.Context, _ session.Bridge) (session.Output, error) {
	page, ok := v.svc.Lookup(v.route)
	if !ok {
		return session.Output{}, fmt.Errorf("markdown page %s: %w", v.route, session.ErrRouteNotFound)
	}
	meta := make(map[string]any, len(page.Doc.Metadata.Raw)+2)
	for k, val := range page.Doc.Metadata.Raw {
		meta[k] = val
	}
	if page.Doc.Metadata.Title != "" {
		meta["title"] = page.Doc.Metadata.Title
	}
	if page.Doc.Metadata.Theme != "" {
		meta["theme"] = page.Doc.Metadata.Theme
	}
	return session.Output{
		Kind: protocol.ContentMarkdown,
		HTML: page.Doc.HTML,
		Meta: meta,
	}, nil
}
