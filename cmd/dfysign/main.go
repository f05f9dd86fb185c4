package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcin-skalski/dfysign/internal/config"
	"github.com/marcin-skalski/dfysign/internal/daemon"
	"github.com/marcin-skalski/dfysign/internal/gateway"
	"github.com/marcin-skalski/dfysign/internal/logging"
	"github.com/marcin-skalski/dfysign/internal/tui"
	"github.com/mattn/go-isatty"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	noTUI := flag.Bool("no-tui", false, "disable TUI mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Auto-detect TUI capability
	enableTUI := !*noTUI && os.Getenv("DFYSIGN_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	journal := logging.NewJournal(logging.DefaultJournalSize)
	logger, err := logging.SetupLogger(cfg.LogFile, cfg.Log.Level, enableTUI, journal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.CloseFile()

	client, err := gateway.NewClient(gateway.Options{
		BaseURL:           cfg.Backend.BaseURL,
		Timeout:           cfg.Backend.RequestTimeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	d := daemon.New(cfg, client, journal, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if enableTUI {
		// TUI mode: daemon in background, TUI in foreground
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			logger.Info("dfysign starting", "config", *configPath)
			if err := d.Run(runCtx); err != nil {
				logger.Error("daemon error", "err", err)
			}
		}()

		p := tea.NewProgram(tui.NewModel(d, cfg.TUI.RefreshInterval), tea.WithAltScreen(), tea.WithContext(ctx))
		_, err := p.Run()
		cancel()
		<-done
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Headless mode
	logger.Info("dfysign starting (headless)", "config", *configPath)
	if err := d.RunHeadless(ctx); err != nil {
		logger.Error("daemon error", "err", err)
		logging.CloseFile()
		os.Exit(1)
	}
}
