package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/concierge/internal/cli"
	"github.com/idilsaglam/concierge/internal/config"
	"github.com/idilsaglam/concierge/internal/ui"
)

func main() {
	code := run()
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}

func run() int {
	// Root flags (apply to every subcommand)
	apiURL := flag.String("api", "", "backend base URL (default from config)")
	dataDir := flag.String("data-dir", "", "directory for the session and config.yaml")
	logFile := flag.String("log", "", "write debug logs to this file")
	theme := flag.String("theme", "", "output theme: classic, neon or mono")
	flag.Usage = func() { cli.PrintHelp(os.Stderr) }
	flag.Parse()

	cfg, err := config.Load(*dataDir)
	if err != nil {
		ui.Fail(os.Stderr, err.Error())
		return 2
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *theme != "" {
		cfg.Theme = *theme
	}
	if err := cfg.Validate(); err != nil {
		ui.Fail(os.Stderr, err.Error())
		return 2
	}

	// The TUI owns the terminal, so logs only go to a file.
	if cfg.LogFile != "" {
		f, err := tea.LogToFile(cfg.LogFile, "concierge")
		if err != nil {
			ui.Fail(os.Stderr, "log: "+err.Error())
			return 1
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}
	if !ui.SetTheme(cfg.Theme) {
		log.Printf("unknown theme %q, using classic", cfg.Theme)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Run(ctx, flag.Args(), cli.Env{
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
}
