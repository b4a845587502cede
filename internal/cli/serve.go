package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/daemon"
	"github.com/runnerr0/burrow/internal/logging"
	"github.com/runnerr0/burrow/internal/storage"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := c.globals.loadConfig()
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Daemon.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Daemon.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	} else if c.globals.Verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	path, err := c.globals.dbPath(cfg)
	if err != nil {
		return fmt.Errorf("resolve db path: %w", err)
	}
	store, db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := daemon.New(cfg, store, c.version, logger)
	logger.Info("starting burrow daemon", zap.String("db", path), zap.String("addr", srv.Addr()))
	return srv.Run(ctx)
}
