package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/burrow/internal/retention"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

// policy starts from the stored retention settings and applies the
// --*-older-than overrides.
func (c *PruneCommand) policy(ctx context.Context, store retention.Store) (retention.Policy, error) {
	p, err := retention.LoadPolicy(ctx, store)
	if err != nil {
		return p, err
	}
	if c.ScreenshotsOlderThan != "" {
		if p.MaxScreenshotAge, err = parseDuration(c.ScreenshotsOlderThan); err != nil {
			return p, err
		}
	}
	if c.JourneysOlderThan != "" {
		if p.MaxJourneyAge, err = parseDuration(c.JourneysOlderThan); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (c *PruneCommand) run(ctx context.Context, e *env) error {
	p, err := c.policy(ctx, e.store)
	if err != nil {
		return err
	}
	now := time.Now()

	preview, err := retention.Apply(ctx, e.store, p, now, true)
	if err != nil {
		return err
	}

	if c.DryRun {
		return c.report(p, preview)
	}

	if preview.JourneysDeleted == 0 && preview.ScreenshotsCleared == 0 {
		return c.report(p, &retention.Result{})
	}

	if !c.Force {
		fmt.Printf("This will delete %d journeys (%d nodes) and clear %d screenshots.\n",
			preview.JourneysDeleted, preview.NodesDeleted, preview.ScreenshotsCleared)
		fmt.Print("Proceed? [y/N] ")
		if !confirm(c.stdin) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	res, err := retention.Apply(ctx, e.store, p, now, false)
	if err != nil {
		return err
	}
	return c.report(p, res)
}

func (c *PruneCommand) report(p retention.Policy, res *retention.Result) error {
	if c.globals.JSON {
		return printJSON(map[string]any{
			"journeys_deleted":       res.JourneysDeleted,
			"nodes_deleted":          res.NodesDeleted,
			"screenshots_cleared":    res.ScreenshotsCleared,
			"dry_run":                res.DryRun,
			"journeys_older_than":    ageLabel(p.MaxJourneyAge),
			"screenshots_older_than": ageLabel(p.MaxScreenshotAge),
		})
	}

	if res.JourneysDeleted == 0 && res.ScreenshotsCleared == 0 {
		fmt.Println("Nothing to prune.")
		return nil
	}

	prefix := "Pruned"
	if res.DryRun {
		prefix = "[DRY RUN] Would prune"
	}
	fmt.Printf("%s %d journeys (%d nodes) older than %s and cleared %d screenshots older than %s.\n",
		prefix, res.JourneysDeleted, res.NodesDeleted, ageLabel(p.MaxJourneyAge),
		res.ScreenshotsCleared, ageLabel(p.MaxScreenshotAge))
	return nil
}

func ageLabel(d time.Duration) string {
	if d <= 0 {
		return "never"
	}
	return formatDurationHuman(d)
}

// confirm reads one line from in (stdin when nil) and reports whether it
// starts with y.
func confirm(in io.Reader) bool {
	if in == nil {
		in = os.Stdin
	}
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return strings.HasPrefix(answer, "y")
}
