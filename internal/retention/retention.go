// Package retention expires old screenshots and journeys according to the
// maxScreenshotAge and maxJourneyAge settings.
package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/logging"
	"github.com/runnerr0/burrow/internal/storage"
)

const day = 24 * time.Hour

// Store is the part of the record store retention needs.
type Store interface {
	GetSetting(ctx context.Context, key string, dst any) (bool, error)
	ClearScreenshotsBefore(ctx context.Context, cutoff int64) (int64, error)
	DeleteJourneysBefore(ctx context.Context, cutoff int64) (int64, error)
	CountExpired(ctx context.Context, screenshotCutoff, journeyCutoff int64) (*storage.Counts, error)
}

// Policy holds maximum ages. A zero age disables that kind of expiry.
type Policy struct {
	MaxScreenshotAge time.Duration
	MaxJourneyAge    time.Duration
}

// Result reports what a prune removed, or would remove on a dry run.
type Result struct {
	ScreenshotsCleared int64 `json:"screenshots_cleared"`
	JourneysDeleted    int64 `json:"journeys_deleted"`
	NodesDeleted       int64 `json:"nodes_deleted"`
	DryRun             bool  `json:"dry_run"`
}

// LoadPolicy reads the retention settings. Missing settings disable expiry.
func LoadPolicy(ctx context.Context, store Store) (Policy, error) {
	var p Policy
	var days int
	if ok, err := store.GetSetting(ctx, config.KeyMaxScreenshotAge, &days); err != nil {
		return p, fmt.Errorf("read %s: %w", config.KeyMaxScreenshotAge, err)
	} else if ok && days > 0 {
		p.MaxScreenshotAge = time.Duration(days) * day
	}

	days = 0
	if ok, err := store.GetSetting(ctx, config.KeyMaxJourneyAge, &days); err != nil {
		return p, fmt.Errorf("read %s: %w", config.KeyMaxJourneyAge, err)
	} else if ok && days > 0 {
		p.MaxJourneyAge = time.Duration(days) * day
	}
	return p, nil
}

// cutoff returns the unix-ms instant before which records expire. A
// disabled age yields 0, which matches nothing.
func cutoff(now time.Time, age time.Duration) int64 {
	if age <= 0 {
		return 0
	}
	return journey.Millis(now.Add(-age))
}

// Apply expires records older than the policy allows, measured from now.
// With dryRun set nothing is removed and the result holds what would be.
func Apply(ctx context.Context, store Store, p Policy, now time.Time, dryRun bool) (*Result, error) {
	shotCutoff := cutoff(now, p.MaxScreenshotAge)
	journeyCutoff := cutoff(now, p.MaxJourneyAge)

	if dryRun {
		c, err := store.CountExpired(ctx, shotCutoff, journeyCutoff)
		if err != nil {
			return nil, fmt.Errorf("count expired: %w", err)
		}
		return &Result{
			ScreenshotsCleared: c.Screenshots,
			JourneysDeleted:    c.Journeys,
			NodesDeleted:       c.Nodes,
			DryRun:             true,
		}, nil
	}

	res := &Result{}
	if journeyCutoff > 0 {
		c, err := store.CountExpired(ctx, 0, journeyCutoff)
		if err != nil {
			return nil, fmt.Errorf("count expired: %w", err)
		}
		n, err := store.DeleteJourneysBefore(ctx, journeyCutoff)
		if err != nil {
			return nil, fmt.Errorf("delete journeys: %w", err)
		}
		res.JourneysDeleted, res.NodesDeleted = n, c.Nodes
	}
	if shotCutoff > 0 {
		n, err := store.ClearScreenshotsBefore(ctx, shotCutoff)
		if err != nil {
			return res, fmt.Errorf("clear screenshots: %w", err)
		}
		res.ScreenshotsCleared = n
	}
	return res, nil
}

// Pruner applies the stored policy on a fixed interval.
type Pruner struct {
	store    Store
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewPruner creates a Pruner. A nil logger disables logging.
func NewPruner(store Store, interval time.Duration, logger *zap.Logger) *Pruner {
	return &Pruner{
		store:    store,
		interval: interval,
		logger:   logging.OrNop(logger).Named("retention"),
		now:      time.Now,
	}
}

// RunOnce loads the policy and applies it.
func (p *Pruner) RunOnce(ctx context.Context) (*Result, error) {
	policy, err := LoadPolicy(ctx, p.store)
	if err != nil {
		return nil, err
	}
	res, err := Apply(ctx, p.store, policy, p.now(), false)
	if err != nil {
		return nil, err
	}
	if res.JourneysDeleted > 0 || res.ScreenshotsCleared > 0 {
		p.logger.Info("pruned expired data",
			zap.Int64("journeys", res.JourneysDeleted),
			zap.Int64("nodes", res.NodesDeleted),
			zap.Int64("screenshots", res.ScreenshotsCleared),
		)
	}
	return res, nil
}

// Run prunes once immediately and then every interval until ctx is done.
// Failures are logged and do not stop the loop. A non-positive interval
// returns at once.
func (p *Pruner) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("prune failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
