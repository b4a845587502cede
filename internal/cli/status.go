package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version                 string              `json:"version"`
	DatabasePath            string              `json:"database_path"`
	DatabaseSizeBytes       int64               `json:"database_size_bytes"`
	Journeys                int64               `json:"journeys"`
	Nodes                   int64               `json:"nodes"`
	Screenshots             int64               `json:"screenshots"`
	ScreenshotBytes         int64               `json:"screenshot_bytes"`
	CurrentJourney          *currentJourneyJSON `json:"current_journey,omitempty"`
	TrackingEnabled         bool                `json:"tracking_enabled"`
	ScreenshotRetentionDays int                 `json:"screenshot_retention_days"`
	JourneyRetentionDays    int                 `json:"journey_retention_days"`
	DaemonRunning           bool                `json:"daemon_running"`
}

type currentJourneyJSON struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// statusInfo gathers what both output formats print.
type statusInfo struct {
	counts        *storage.Counts
	current       *journey.Journey
	tracking      bool
	shotDays      int
	journeyDays   int
	dbSize        int64
	daemonRunning bool
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *StatusCommand) run(ctx context.Context, e *env) error {
	info, err := gatherStatus(ctx, e)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(e, info)
	}
	c.printStatusHuman(e, info)
	return nil
}

func gatherStatus(ctx context.Context, e *env) (*statusInfo, error) {
	counts, err := e.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get counts: %w", err)
	}
	info := &statusInfo{counts: counts, tracking: true}

	var currentID int64
	if ok, err := e.store.GetSetting(ctx, config.KeyCurrentJourneyID, &currentID); err != nil {
		return nil, err
	} else if ok && currentID != 0 {
		j, err := e.store.GetJourney(ctx, currentID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		info.current = j
	}

	settings := []struct {
		key string
		dst any
	}{
		{config.KeyTrackingEnabled, &info.tracking},
		{config.KeyMaxScreenshotAge, &info.shotDays},
		{config.KeyMaxJourneyAge, &info.journeyDays},
	}
	for _, s := range settings {
		if _, err := e.store.GetSetting(ctx, s.key, s.dst); err != nil {
			return nil, err
		}
	}

	if fi, err := os.Stat(e.dbPath); err == nil {
		info.dbSize = fi.Size()
	}
	info.daemonRunning = checkDaemon(e.cfg.Daemon)
	return info, nil
}

func (c *StatusCommand) printStatusHuman(e *env, info *statusInfo) {
	fmt.Println("Burrow Status")
	fmt.Println("=============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", e.dbPath, formatBytes(info.dbSize))
	fmt.Printf("Journeys:      %s\n", formatNumber(info.counts.Journeys))
	fmt.Printf("Nodes:         %s\n", formatNumber(info.counts.Nodes))
	fmt.Printf("Screenshots:   %s (%s)\n", formatNumber(info.counts.Screenshots), formatBytes(info.counts.ScreenshotBytes))

	if info.current != nil {
		fmt.Printf("Current:       #%d %s\n", info.current.ID, info.current.Title)
	} else {
		fmt.Println("Current:       none")
	}
	if info.tracking {
		fmt.Println("Tracking:      enabled")
	} else {
		fmt.Println("Tracking:      paused")
	}

	fmt.Printf("Retention:     screenshots %s, journeys %s\n", retentionLabel(info.shotDays), retentionLabel(info.journeyDays))

	fmt.Println()
	if info.daemonRunning {
		fmt.Println("Daemon:        running")
	} else {
		fmt.Println("Daemon:        not running")
	}
}

func (c *StatusCommand) printStatusJSON(e *env, info *statusInfo) error {
	out := statusJSON{
		Version:                 c.version,
		DatabasePath:            e.dbPath,
		DatabaseSizeBytes:       info.dbSize,
		Journeys:                info.counts.Journeys,
		Nodes:                   info.counts.Nodes,
		Screenshots:             info.counts.Screenshots,
		ScreenshotBytes:         info.counts.ScreenshotBytes,
		TrackingEnabled:         info.tracking,
		ScreenshotRetentionDays: info.shotDays,
		JourneyRetentionDays:    info.journeyDays,
		DaemonRunning:           info.daemonRunning,
	}
	if info.current != nil {
		out.CurrentJourney = &currentJourneyJSON{ID: info.current.ID, Title: info.current.Title}
	}
	return printJSON(out)
}

func retentionLabel(days int) string {
	if days <= 0 {
		return "kept forever"
	}
	return formatDurationHuman(time.Duration(days) * 24 * time.Hour)
}

// checkDaemon attempts an HTTP GET to the configured daemon status endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(cfg config.DaemonConfig) bool {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/status", nil)
	if err != nil {
		return false
	}
	if cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}

	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
