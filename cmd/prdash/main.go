package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/mattn/go-isatty"

	"prdash/internal/config"
	"prdash/internal/engine"
	"prdash/internal/github"
	"prdash/internal/logging"
	"prdash/internal/mergebot"
	"prdash/internal/session"
	"prdash/internal/theme"
	"prdash/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	defaultConfig, _ := config.DefaultPath()
	configPath := flag.String("config", defaultConfig, "path to config file")
	sessionPath := flag.String("session", "", "path to session file (default per-user)")
	themeName := flag.String("theme", "", "color theme (dark|light), overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *themeName != "" {
		cfg.Theme = *themeName
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("prdash needs a terminal")
	}

	logger, err := logging.Setup(cfg.LogFile, cfg.Log.Level, true)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer logging.CloseFile()

	sessions, err := session.NewStore(*sessionPath)
	if err != nil {
		return err
	}

	gh := github.NewClient(logger)
	exec := engine.NewExecutor(gh, sessions, cfg.MergeMethod, logger)

	opts := engine.Options{
		RefreshInterval: cfg.TUI.RefreshInterval,
		MergeMethod:     cfg.MergeMethod,
		Bot: mergebot.Config{
			MaxInFlight:  cfg.Bot.MaxInFlight,
			RetryBudget:  cfg.Bot.RetryBudget,
			PollInterval: cfg.Bot.PollInterval,
			Backoff:      cfg.Bot.Backoff,
		},
		SeedRepos: cfg.SeedRepos(),
	}
	initial := engine.State{Theme: theme.ByName(cfg.Theme)}
	store := engine.NewStore(initial, opts, exec, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go store.Run(ctx)
	store.Dispatch(engine.Bootstrap{})

	logger.Info("prdash starting", "config", *configPath)
	p := tea.NewProgram(tui.NewModel(store))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// The quit-time save runs asynchronously; write the final session
	// once more so nothing is lost on fast exits.
	if err := sessions.Save(engine.SessionSnapshot(store.CurrentState())); err != nil {
		logger.Warn("final session save failed", "error", err)
	}
	logger.Info("prdash stopped")
	return nil
}
