// Package main provides the pagable command: project scaffolding and a
// server for markdown-only projects.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/euforicio/pagable"
	"github.com/euforicio/pagable/internal/buildinfo"
	"github.com/euforicio/pagable/internal/scaffold"
)

const usage = `Usage:
  pagable create [dir]     create a new project (default ./my-app)
  pagable serve [flags]    serve the markdown pages of a project
  pagable version          print version information
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "create":
		return runCreate(args[1:], stdout, stderr)
	case "serve":
		return runServe(args[1:], stderr)
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, "pagable", buildinfo.Summary())
		return 0
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

func runCreate(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("pagable create", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() > 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	dir := "my-app"
	if flags.NArg() == 1 {
		dir = flags.Arg(0)
	}

	res, err := scaffold.Create(dir)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("create failed:"), err)
		return 1
	}
	fmt.Fprintln(stdout, summary(res))
	return 0
}

func runServe(args []string, stderr io.Writer) int {
	cfg, err := pagable.ParseConfig("pagable serve", args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, errorStyle.Render("invalid configuration:"), err)
		return 2
	}

	logger := pagable.NewLogger(cfg.Verbose)
	slog.SetDefault(logger)
	logger.Log(context.Background(), slog.LevelInfo-1, "starting pagable", slog.String("version", buildinfo.Summary()))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := pagable.New(cfg, logger).Run(ctx); err != nil {
		logger.Error("server error", slog.Any("err", err))
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

func summary(res scaffold.Result) string {
	lines := []string{titleStyle.Render("created app") + " " + pathStyle.Render(res.Dir), ""}
	for _, d := range res.Dirs {
		lines = append(lines, mutedStyle.Render("  dir  ")+d+"/")
	}
	for _, f := range res.Files {
		lines = append(lines, mutedStyle.Render("  file ")+f)
	}
	lines = append(lines, "",
		mutedStyle.Render("next:"),
		"  cd "+res.Dir,
		"  go get github.com/euforicio/pagable && go mod tidy",
		"  go run .",
	)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
