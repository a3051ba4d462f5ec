// Package config manages application configuration from environment variables and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/pflag"
)

const envPrefix = "PAGABLE_"

var wsRoutePattern = regexp.MustCompile(`^/[A-Za-z0-9_\-./]*$`)

// Config holds runtime configuration for a pagable application.
type Config struct {
	Root           string
	Host           string
	WSRoute        string
	PagesDir       string
	ScriptsDir     string
	StylesDir      string
	PublicDir      string
	IndexFile      string
	HighlightStyle string
	OTLPEndpoint   string
	ServiceName    string
	Debounce       time.Duration
	ScriptTimeout  time.Duration
	Port           int
	Diagrams       bool
	AutoOpen       bool
	Verbose        bool
}

// Default returns ready-to-use defaults prior to env/flag overrides.
// Project directories are relative to Root until Finalize resolves them.
func Default() Config {
	return Config{
		Root:           ".",
		Host:           "0.0.0.0",
		Port:           8080,
		WSRoute:        "/__WS__",
		PagesDir:       filepath.Join("src", "pages"),
		ScriptsDir:     filepath.Join("src", "scripts"),
		StylesDir:      filepath.Join("src", "styles"),
		PublicDir:      "public",
		IndexFile:      "index.html",
		HighlightStyle: "github",
		ServiceName:    "pagable",
		Debounce:       100 * time.Millisecond,
		ScriptTimeout:  30 * time.Second,
		Diagrams:       true,
	}
}

// RegisterFlags attaches configuration flags to the provided FlagSet.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Root, "root", "r", cfg.Root, "project directory containing src/ and public/")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "interface to bind the HTTP server")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to bind the HTTP server (0 = auto-assign)")
	fs.StringVar(&cfg.WSRoute, "ws-route", cfg.WSRoute, "path of the WebSocket endpoint")
	fs.StringVar(&cfg.PagesDir, "pages", cfg.PagesDir, "directory containing markdown pages")
	fs.StringVar(&cfg.ScriptsDir, "scripts", cfg.ScriptsDir, "directory served under /scripts/")
	fs.StringVar(&cfg.StylesDir, "styles", cfg.StylesDir, "directory served under /styles/")
	fs.StringVar(&cfg.PublicDir, "public", cfg.PublicDir, "directory served at the site root")
	fs.StringVar(&cfg.IndexFile, "index", cfg.IndexFile, "HTML shell served for page routes")
	fs.StringVar(&cfg.HighlightStyle, "highlight-style", cfg.HighlightStyle, "chroma style used for code blocks")
	fs.DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "delay before a changed page is reloaded")
	fs.DurationVar(&cfg.ScriptTimeout, "script-timeout", cfg.ScriptTimeout, "how long to wait for a browser script result")
	fs.BoolVar(&cfg.Diagrams, "diagrams", cfg.Diagrams, "render ```d2 fences in markdown pages")
	fs.BoolVar(&cfg.AutoOpen, "auto-open", cfg.AutoOpen, "open the browser automatically after start")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", cfg.OTLPEndpoint, "OTLP/HTTP endpoint for traces (empty = disabled)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "enable verbose logging (HTTP requests, page updates)")
}

// ApplyEnvOverrides reads supported environment variables and overrides cfg in place.
func ApplyEnvOverrides(cfg *Config) {
	applyStringEnv("ROOT", func(v string) { cfg.Root = v })
	applyStringEnv("HOST", func(v string) { cfg.Host = v })
	applyIntEnv("PORT", func(v int) { cfg.Port = v })
	applyStringEnv("WS_ROUTE", func(v string) { cfg.WSRoute = v })
	applyStringEnv("PAGES", func(v string) { cfg.PagesDir = v })
	applyStringEnv("SCRIPTS", func(v string) { cfg.ScriptsDir = v })
	applyStringEnv("STYLES", func(v string) { cfg.StylesDir = v })
	applyStringEnv("PUBLIC", func(v string) { cfg.PublicDir = v })
	applyStringEnv("INDEX", func(v string) { cfg.IndexFile = v })
	applyStringEnv("HIGHLIGHT_STYLE", func(v string) { cfg.HighlightStyle = v })
	applyDurationEnv("DEBOUNCE", func(v time.Duration) { cfg.Debounce = v })
	applyDurationEnv("SCRIPT_TIMEOUT", func(v time.Duration) { cfg.ScriptTimeout = v })
	applyBoolEnv("DIAGRAMS", func(v bool) { cfg.Diagrams = v })
	applyBoolEnv("AUTO_OPEN", func(v bool) { cfg.AutoOpen = v })
	applyBoolEnv("VERBOSE", func(v bool) { cfg.Verbose = v })
	if raw, ok := os.LookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && strings.TrimSpace(raw) != "" {
		cfg.OTLPEndpoint = strings.TrimSpace(raw)
	}
	applyStringEnv("OTLP_ENDPOINT", func(v string) { cfg.OTLPEndpoint = v })
	if raw, ok := os.LookupEnv("OTEL_SERVICE_NAME"); ok && strings.TrimSpace(raw) != "" {
		cfg.ServiceName = strings.TrimSpace(raw)
	}
}

func applyStringEnv(key string, apply func(string)) {
	if raw, ok := lookupNonEmpty(key); ok {
		apply(raw)
	}
}

func applyIntEnv(key string, apply func(int)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := strconv.Atoi(raw); err == nil {
			apply(value)
		}
	}
}

func applyBoolEnv(key string, apply func(bool)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			apply(value)
		}
	}
}

func applyDurationEnv(key string, apply func(time.Duration)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := time.ParseDuration(raw); err == nil {
			apply(value)
		}
	}
}

func lookupNonEmpty(key string) (string, bool) {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", false
	}
	return value, true
}

var reservedPaths = []string{"/", "/app.js", "/healthz"}

var reservedPrefixes = []string{"/scripts/", "/styles/", "/__pagable/"}

func reservedRoute(p string) bool {
	for _, r := range reservedPaths {
		if p == r {
			return true
		}
	}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(p+"/", prefix) {
			return true
		}
	}
	return false
}

// Finalize validates cfg and resolves project directories against Root.
func Finalize(cfg *Config) error {
	if err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.Host, validation.Required),
		validation.Field(&cfg.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&cfg.WSRoute, validation.Required, validation.Match(wsRoutePattern)),
		validation.Field(&cfg.PagesDir, validation.Required),
		validation.Field(&cfg.IndexFile, validation.Required),
		validation.Field(&cfg.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&cfg.ScriptTimeout, validation.Required, validation.Min(time.Millisecond)),
	); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if reservedRoute(cfg.WSRoute) {
		return fmt.Errorf("invalid configuration: ws route %q collides with a static route", cfg.WSRoute)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return fmt.Errorf("resolve root directory: %w", err)
	}
	cfg.Root = root

	if cfg.HighlightStyle == "" {
		cfg.HighlightStyle = "github"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pagable"
	}

	for _, dir := range []*string{&cfg.PagesDir, &cfg.ScriptsDir, &cfg.StylesDir, &cfg.PublicDir, &cfg.IndexFile} {
		if *dir == "" {
			continue
		}
		if !filepath.IsAbs(*dir) {
			*dir = filepath.Join(root, *dir)
		}
		*dir = filepath.Clean(*dir)
	}

	return nil
}
