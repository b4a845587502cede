package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/runnerr0/burrow/internal/config"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}
	return withEnv(c.globals, c.run)
}

func (c *PurgeCommand) run(ctx context.Context, e *env) error {
	before, err := e.store.Counts(ctx)
	if err != nil {
		return err
	}

	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL burrow data.")
		fmt.Printf("  - %s journeys\n", formatNumber(before.Journeys))
		fmt.Printf("  - %s visited pages, with their notes and %s screenshots\n",
			formatNumber(before.Nodes), formatNumber(before.Screenshots))
		fmt.Println()
		fmt.Println("Settings are kept. This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "PURGE" to confirm: `)

		in := c.stdin
		if in == nil {
			in = os.Stdin
		}
		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		if strings.TrimSpace(scanner.Text()) != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	if err := e.store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	// A stale id would make the tracker append to a journey that is gone.
	if err := e.store.SetSetting(ctx, config.KeyCurrentJourneyID, 0); err != nil {
		return fmt.Errorf("reset current journey: %w", err)
	}
	e.logger.Info("purged all data")

	if c.globals.JSON {
		return printJSON(map[string]any{
			"purged":           true,
			"journeys_deleted": before.Journeys,
			"nodes_deleted":    before.Nodes,
		})
	}

	fmt.Printf("Purged %d journeys and %d pages. Burrow is empty.\n", before.Journeys, before.Nodes)
	return nil
}
