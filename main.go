package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	clts "github.com/wooyoung7703/pro11-sub001/clients"
	"github.com/wooyoung7703/pro11-sub001/config"
	"github.com/wooyoung7703/pro11-sub001/internal/app"
	"github.com/wooyoung7703/pro11-sub001/internal/prefs"
	"github.com/wooyoung7703/pro11-sub001/internal/tui"
)

func main() {
	headless := flag.Bool("headless", false, "run monitors and stats server without the terminal UI")
	flag.Parse()

	// Load config from environment variables
	cfg := config.Load()

	logger, err := newLogger(cfg, *headless)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if result := cfg.Validate(); !result.Valid {
		logger.Fatal("invalid configuration", zap.Strings("errors", result.Errors))
	}

	logger.Info("starting quantadmin",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Bool("headless", *headless),
	)

	logger.Info("instantiating clients")
	clients := clts.NewClients(logger, cfg)
	defer clients.Close()

	runner := app.NewRunner(clients, cfg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if *headless {
		if err := runner.Run(ctx); err != nil {
			logger.Fatal("runner failed", zap.Error(err))
		}
		return
	}

	runner.Start(ctx)
	defer runner.Stop()

	store := prefs.NewStore(logger, cfg.Prefs.Path)

	program := tea.NewProgram(tui.New(runner, store), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		logger.Fatal("terminal ui failed", zap.Error(err))
	}
}

// newLogger builds the process logger. Headless mode logs to stderr; the TUI
// owns the terminal, so interactive sessions log to a file next to the
// preference store instead.
func newLogger(cfg *config.Config, headless bool) (*zap.Logger, error) {
	if headless {
		return zap.NewProduction()
	}

	logPath := os.Getenv("LOG_PATH")
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(cfg.Prefs.Path), "quantadmin.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return zap.NewNop(), nil
	}

	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{logPath}
	zcfg.ErrorOutputPaths = []string{logPath}
	return zcfg.Build()
}
