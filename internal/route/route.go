// Package route maps page files and browser paths onto pagable route keys.
package route

import (
	"path"
	"strings"
)

const indexName = "index"

var badges = map[string]string{
	"md":       "🔥",
	"markdown": "🔥",
	"go":       "🐹",
}

// Normalize turns a browser path into a route key. Route keys always start
// and end with a slash, so "/docs" and "/docs/" address the same page.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == "/" {
		return "/"
	}
	p = path.Clean("/" + p)
	if p == "/" {
		return p
	}
	return p + "/"
}

// FromFile returns the route for a page file given relative to the pages
// directory. Only markdown files map to routes.
func FromFile(rel string) (string, bool) {
	rel = strings.TrimPrefix(path.Clean(strings.ReplaceAll(rel, "\\", "/")), "/")
	if rel == "." || rel == "" {
		return "", false
	}
	ext := path.Ext(rel)
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
	default:
		return "", false
	}

	stem := "/" + strings.TrimSuffix(rel, ext)
	if path.Base(stem) == indexName {
		dir := path.Dir(stem)
		if dir == "/" {
			return "/", true
		}
		return dir + "/", true
	}
	return stem + "/", true
}

// Badge returns the lowercase extension of name and the console badge
// registered for it. Both are empty when name has no extension.
func Badge(name string) (string, string) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return "", ""
	}
	ext := strings.ToLower(base[i+1:])
	return ext, badges[ext]
}
