// Command appframe inspects a project's module graph: it loads the
// project configuration, expands the schema over the installed apps, and
// prints the resolved initialization order. Configuration errors and
// dependency cycles exit nonzero, making it usable as a CI check.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	appframe "github.com/GoCodeAlone/appframe"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("appframe", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	baseDir := flags.String("base-dir", ".", "project directory containing appframe.toml")
	mode := flags.String("mode", "", "application mode (development, staging, production, custom)")
	verbose := flags.BoolP("verbose", "v", false, "enable debug logging")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := appframe.LoadConfig(*baseDir, *mode)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	schema := cfg.Schema()
	if err := schema.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	apps, err := cfg.InstalledApps()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	// A lenient loader over an empty resolver registers every expanded
	// identifier without needing the real modules, which is all order
	// inspection requires.
	loader := appframe.NewLoader(appframe.MapResolver{},
		appframe.WithResolutionMode(appframe.Lenient),
		appframe.WithLoaderLogger(logger),
	)
	if err := schema.Expand(apps, loader); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	order, err := loader.Order()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "mode: %s\n", cfg.Mode)
	fmt.Fprintf(stdout, "apps: %d, modules: %d\n", len(apps), len(order))
	for i, identifier := range order {
		fmt.Fprintf(stdout, "%3d. %s\n", i+1, identifier)
	}
	return 0
}
