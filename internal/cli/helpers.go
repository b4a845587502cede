package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/logging"
	"github.com/runnerr0/burrow/internal/storage"
)

// env is what a command runs against: the loaded config, where the
// database lives, an open store and a logger.
type env struct {
	cfg    *config.Config
	dbPath string
	store  storage.Store
	logger *zap.Logger
}

// loadConfig reads --config, or the default config file (created with
// defaults on first use).
func (g *GlobalFlags) loadConfig() (*config.Config, error) {
	if g.Config != "" {
		return config.Load(g.Config)
	}
	return config.LoadOrCreate()
}

// dbPath resolves the database location. Priority: --db flag > config.
func (g *GlobalFlags) dbPath(cfg *config.Config) (string, error) {
	if g.DB != "" {
		return config.ExpandPath(g.DB)
	}
	return cfg.DBPath()
}

// logger returns a debug logger under --verbose and a no-op one otherwise,
// so command output stays clean.
func (g *GlobalFlags) logger(cfg *config.Config) (*zap.Logger, error) {
	if !g.Verbose {
		return zap.NewNop(), nil
	}
	lc := cfg.Logging
	lc.Level = "debug"
	return logging.New(lc)
}

// withEnv opens the configured database, seeds any missing settings from
// the config and runs fn.
func withEnv(g *GlobalFlags, fn func(ctx context.Context, e *env) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	path, err := g.dbPath(cfg)
	if err != nil {
		return fmt.Errorf("resolve db path: %w", err)
	}
	logger, err := g.logger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	ctx := context.Background()
	if _, err := config.SeedSettings(ctx, store, cfg); err != nil {
		return err
	}

	return fn(ctx, &env{cfg: cfg, dbPath: path, store: store, logger: logger})
}

// excludedDomains returns the stored excluded-domain list merged with the
// sensitive list when auto exclusion is on.
func (e *env) excludedDomains(ctx context.Context) ([]string, error) {
	return config.EffectiveExcludedDomains(ctx, e.store)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openInput opens path for reading; "-" means stdin.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// writeOutput runs write against path, or stdout when path is empty.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// formatMillis renders a focus time in milliseconds as "1m05s".
func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

// formatTime renders a unix-ms timestamp as a local date and time.
func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
