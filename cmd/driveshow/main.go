package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/driveshow/driveshow/internal/auth"
	"github.com/driveshow/driveshow/internal/cache"
	"github.com/driveshow/driveshow/internal/config"
	"github.com/driveshow/driveshow/internal/credstore"
	"github.com/driveshow/driveshow/internal/domain"
	"github.com/driveshow/driveshow/internal/graph"
	"github.com/driveshow/driveshow/internal/logging"
	"github.com/driveshow/driveshow/internal/retry"
	"github.com/driveshow/driveshow/internal/syncer"
	"github.com/driveshow/driveshow/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	var logout bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&logout, "logout", false, "forget the stored credential and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("driveshow %s\n", Version)
		return
	}

	if logout {
		if err := credstore.NewFileStore("").Delete(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Signed out. The next run will prompt for authorization.")
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.Setup(&cfg.Logging)
	if err != nil {
		// Fall back to a null logger if file logging fails
		logger = logging.Null()
	}
	slog.SetDefault(logger)

	logger.Info("starting driveshow", "version", Version)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("driveshow must run in a terminal")
	}

	imgCache, err := cache.Open(cfg.Sync.CacheDir, cfg.CacheBudget(), logger)
	if err != nil {
		return fmt.Errorf("failed to open image cache: %w", err)
	}
	defer imgCache.Close()

	authEvents := make(chan domain.AuthEvent, 8)
	authenticator := auth.New(auth.Options{
		AuthBaseURL: cfg.Drive.AuthURL,
		ClientID:    cfg.Drive.ClientID,
		Scope:       cfg.Drive.Scope,
		Store:       credstore.NewFileStore(""),
		Events:      authEvents,
		Logger:      logger,
	})

	drive := graph.NewClient(cfg.Drive.BaseURL, cfg.Drive.ConfigFile, authenticator, logger)

	engine := syncer.NewEngine(syncer.Options{
		Drive:       drive,
		Cache:       imgCache,
		Logger:      logger,
		Refresh:     cfg.Sync.Refresh,
		ErrorRetry:  cfg.Sync.ErrorRetry,
		Concurrency: cfg.Sync.Concurrency,
		Retry:       retry.DefaultPolicy(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(engineDone)
	}()
	// Stop the engine and wait it out before the deferred cache close, so
	// no in-flight download writes to a closed index.
	defer func() {
		cancel()
		<-engineDone
	}()

	model := tui.NewModel(engine, authEvents, cfg.UI.ShowCaptions, logger)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}
