// Package scaffold creates the directory layout of a new pagable project.
package scaffold

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/euforicio/pagable/static"
)

//go:embed templates/*
var templateFS embed.FS

// ErrExists is returned when a file the scaffold would write already exists.
var ErrExists = errors.New("file already exists")

// Dirs are created in every project.
var Dirs = []string{
	"src/api",
	"src/pages",
	"src/scripts",
	"src/styles",
	"public",
}

// Result reports what Create wrote.
type Result struct {
	Dir    string
	Module string
	Dirs   []string
	Files  []string
}

type file struct {
	path     string
	template string
	raw      []byte
}

var files = []file{
	{path: "src/pages/markdown.md", template: "templates/markdown.md"},
	{path: "main.go", template: "templates/main.go.tmpl"},
	{path: "go.mod", template: "templates/go.mod.tmpl"},
	{path: "index.html", raw: static.IndexHTML()},
}

var invalidModuleChars = regexp.MustCompile(`[^a-z0-9._~-]+`)

// Create lays out a project in dir. Nothing is written when any of the
// project files already exists.
func Create(dir string) (Result, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Result{}, fmt.Errorf("resolve project directory: %w", err)
	}
	res := Result{Dir: abs, Module: moduleName(abs)}

	for _, f := range files {
		target := filepath.Join(abs, filepath.FromSlash(f.path))
		if _, err := os.Stat(target); err == nil {
			return Result{}, fmt.Errorf("%w: %s", ErrExists, target)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("stat %s: %w", target, err)
		}
	}

	for _, d := range Dirs {
		if err := os.MkdirAll(filepath.Join(abs, filepath.FromSlash(d)), 0o755); err != nil {
			return Result{}, fmt.Errorf("create %s: %w", d, err)
		}
		res.Dirs = append(res.Dirs, d)
	}

	data := struct{ Name, Module string }{Name: filepath.Base(abs), Module: res.Module}
	for _, f := range files {
		content := f.raw
		if f.template != "" {
			if content, err = render(f.template, data); err != nil {
				return Result{}, err
			}
		}
		target := filepath.Join(abs, filepath.FromSlash(f.path))
		if err := writeNew(target, content); err != nil {
			return Result{}, err
		}
		res.Files = append(res.Files, f.path)
	}
	return res, nil
}

func render(name string, data any) ([]byte, error) {
	raw, err := templateFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	if !strings.HasSuffix(name, ".tmpl") {
		return raw, nil
	}
	tmpl, err := template.New(name).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func writeNew(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // path is inside the project directory
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func moduleName(dir string) string {
	name := invalidModuleChars.ReplaceAllString(strings.ToLower(filepath.Base(dir)), "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		return "app"
	}
	return name
}
