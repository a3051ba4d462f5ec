// Package element builds HTML element trees for pagable components.
//
// Trees are plain values: build them with New or the tag helpers and turn
// them into markup with Render.
//
//	element.Div(
//		element.H1("i love chocolate!"),
//		element.A("docs", element.Attrs{"href": "/docs/", "data_kind": "nav"}),
//	)
package element

import (
	"errors"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
)

// Node is anything that can write itself as HTML.
type Node interface {
	Render(w io.Writer) error
}

// Attrs holds element attributes. Keys written with underscores are
// converted to hyphens when merged into an element.
type Attrs map[string]string

// ErrInvalidName is returned when a tag or attribute name cannot be rendered.
var ErrInvalidName = errors.New("invalid element name")

var voidTags = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {}, "img": {},
	"input": {}, "link": {}, "meta": {}, "source": {}, "track": {}, "wbr": {},
}

// Element is an HTML element with attributes and children.
type Element struct {
	Tag      string
	Attrs    Attrs
	Children []Node
}

// New creates an element. Children may be Nodes, strings (escaped text),
// slices of Nodes or strings, Attrs, or nil.
func New(tag string, children ...any) *Element {
	e := &Element{Tag: tag}
	return e.Append(children...)
}

// Append adds children (same rules as New) and returns e.
func (e *Element) Append(children ...any) *Element {
	for _, child := range children {
		switch c := child.(type) {
		case nil:
		case *Element:
			if c != nil {
				e.Children = append(e.Children, c)
			}
		case Attrs:
			for k, v := range c {
				e.Set(k, v)
			}
		case map[string]string:
			for k, v := range c {
				e.Set(k, v)
			}
		case Node:
			e.Children = append(e.Children, c)
		case string:
			e.Children = append(e.Children, Text(c))
		case []Node:
			e.Children = append(e.Children, c...)
		case []*Element:
			for _, n := range c {
				if n != nil {
					e.Children = append(e.Children, n)
				}
			}
		case []string:
			for _, s := range c {
				e.Children = append(e.Children, Text(s))
			}
		case fmt.Stringer:
			e.Children = append(e.Children, Text(c.String()))
		default:
			e.Children = append(e.Children, Text(fmt.Sprint(c)))
		}
	}
	return e
}

// Set assigns an attribute. Underscores in key become hyphens.
func (e *Element) Set(key, value string) *Element {
	if e.Attrs == nil {
		e.Attrs = make(Attrs)
	}
	e.Attrs[strings.ReplaceAll(key, "_", "-")] = value
	return e
}

// Render writes the element and its children. A nil element renders
// nothing.
func (e *Element) Render(w io.Writer) error {
	if e == nil {
		return nil
	}
	if !validName(e.Tag) {
		return fmt.Errorf("%w: tag %q", ErrInvalidName, e.Tag)
	}
	tag := strings.ToLower(e.Tag)

	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(tag)
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !validName(k) {
			return fmt.Errorf("%w: attribute %q on <%s>", ErrInvalidName, k, tag)
		}
		b.WriteByte(' ')
		b.WriteString(k)
		if v := e.Attrs[k]; v != "" {
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(v))
			b.WriteByte('"')
		}
	}
	b.WriteByte('>')
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if _, void := voidTags[tag]; void {
		return nil
	}
	for _, child := range e.Children {
		if child == nil {
			continue
		}
		if err := child.Render(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</"+tag+">")
	return err
}

// Text is escaped character data.
type Text string

// Render writes the escaped text.
func (t Text) Render(w io.Writer) error {
	_, err := io.WriteString(w, html.EscapeString(string(t)))
	return err
}

// Raw is trusted markup written as is.
type Raw string

// Render writes the markup unchanged.
func (r Raw) Render(w io.Writer) error {
	_, err := io.WriteString(w, string(r))
	return err
}

// Fragment renders its nodes one after another without a wrapper.
type Fragment []Node

// Render writes every node in order.
func (f Fragment) Render(w io.Writer) error {
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Render(w); err != nil {
			return err
		}
	}
	return nil
}

// Group wraps children (same rules as New) into a Fragment.
func Group(children ...any) Fragment {
	holder := (&Element{}).Append(children...)
	return Fragment(holder.Children)
}

// Render returns the markup for n. A nil node renders as the empty string.
func Render(n Node) (string, error) {
	if n == nil {
		return "", nil
	}
	var b strings.Builder
	if err := n.Render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// validName accepts HTML tag and attribute names, including custom element
// names such as "custom-element" and attributes such as "data-link" or "@click".
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-' || r == '_' || r == '.' || r == ':'):
		case i == 0 && (r == '@' || r == ':'):
		default:
			return false
		}
	}
	return true
}
