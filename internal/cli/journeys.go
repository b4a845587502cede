package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/runnerr0/burrow/internal/analysis"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/tracker"
)

// Execute implements the go-flags Commander interface for StartCommand.
func (c *StartCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *StartCommand) run(ctx context.Context, e *env) error {
	t := tracker.New(e.store, e.logger)
	id, err := t.StartJourney(ctx, strings.Join(c.Args.Title, " "))
	if err != nil {
		return err
	}
	j, err := e.store.GetJourney(ctx, id)
	if err != nil {
		return err
	}

	if c.globals.JSON {
		return printJSON(j)
	}
	fmt.Printf("Started journey #%d: %s\n", j.ID, j.Title)
	if checkDaemon(e.cfg.Daemon) {
		fmt.Println("Note: the running daemon picks up the new journey after a restart.")
	}
	return nil
}

type journeyRow struct {
	journey.Journey
	NodeCount int `json:"nodeCount"`
}

// Execute implements the go-flags Commander interface for ListCommand.
func (c *ListCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *ListCommand) run(ctx context.Context, e *env) error {
	journeys, err := e.store.ListJourneys(ctx)
	if err != nil {
		return err
	}
	if c.Limit > 0 && len(journeys) > c.Limit {
		journeys = journeys[:c.Limit]
	}

	rows := make([]journeyRow, 0, len(journeys))
	for _, j := range journeys {
		nodes, err := e.store.GetNodesByJourney(ctx, j.ID)
		if err != nil {
			return err
		}
		rows = append(rows, journeyRow{Journey: j, NodeCount: len(nodes)})
	}

	if c.globals.JSON {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Println("No journeys yet.")
		return nil
	}

	fmt.Printf("%-6s %-17s %6s  %s\n", "ID", "UPDATED", "NODES", "TITLE")
	for _, r := range rows {
		title := r.Title
		if r.Shared {
			title += " (shared)"
		}
		fmt.Printf("%-6d %-17s %6d  %s\n", r.ID, formatTime(r.Updated), r.NodeCount, title)
	}
	return nil
}

// Execute implements the go-flags Commander interface for TreeCommand.
func (c *TreeCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *TreeCommand) run(ctx context.Context, e *env) error {
	j, err := e.store.GetJourney(ctx, c.Args.ID)
	if err != nil {
		return err
	}
	nodes, err := e.store.GetNodesByJourney(ctx, c.Args.ID)
	if err != nil {
		return err
	}
	tree := journey.BuildTree(nodes)
	stats := journey.ComputeStats(nodes, tree)

	if c.globals.JSON {
		return printJSON(map[string]any{"journey": j, "tree": tree, "stats": stats})
	}

	fmt.Printf("#%d %s\n", j.ID, j.Title)
	fmt.Printf("%d pages, %s total, depth %d\n\n", stats.NodeCount, formatMillis(stats.TotalDuration), stats.MaxDepth)
	if tree == nil {
		fmt.Println("(empty)")
		return nil
	}

	tree.Walk(func(n *journey.Tree, depth int) bool {
		marker := ""
		if n.Metadata.AhaMoment {
			marker = " *"
		}
		fmt.Printf("%s%s [%s]%s\n", strings.Repeat("  ", depth), n.Title, formatMillis(n.Duration), marker)
		fmt.Printf("%s  %s\n", strings.Repeat("  ", depth), n.URL)
		return true
	})
	if shown := tree.Size(); shown < len(nodes) {
		fmt.Printf("\n%d node(s) not reachable from the root\n", len(nodes)-shown)
	}
	return nil
}

// Execute implements the go-flags Commander interface for InsightsCommand.
func (c *InsightsCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *InsightsCommand) run(ctx context.Context, e *env) error {
	j, err := e.store.GetJourney(ctx, c.Args.ID)
	if err != nil {
		return err
	}
	a := analysis.New(e.store, e.logger)
	report, err := a.Insights(ctx, j.ID)
	if err != nil {
		return err
	}

	threshold := c.Threshold
	if threshold != analysis.DefaultDeadEndThreshold {
		report.DeadEnds, err = a.DetectDeadEnds(ctx, j.ID, threshold)
		if err != nil {
			return err
		}
	}

	if c.globals.JSON {
		return printJSON(report)
	}

	s := report.Summary
	fmt.Printf("Insights for #%d %s\n", j.ID, j.Title)
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("Pages:         %d\n", s.TotalNodes)
	fmt.Printf("Total time:    %s\n", formatMillis(s.TotalDuration))
	fmt.Printf("Average time:  %s\n", formatMillis(int64(s.AvgDuration)))
	fmt.Printf("Max depth:     %d\n", s.MaxDepth)
	fmt.Printf("Branching:     %.2f\n", s.AvgBranchFactor)

	fmt.Printf("\nDead ends (< %gs, no follow-up): %d\n", threshold, len(report.DeadEnds))
	for _, d := range report.DeadEnds {
		fmt.Printf("  %-40s %s\n", truncate(d.Title, 40), formatMillis(int64(d.Duration*1000)))
	}

	fmt.Printf("\nTopic drift (average %.2f):\n", report.TopicDrift.AvgDrift)
	for _, d := range report.TopicDrift.MostDrifted {
		fmt.Printf("  %.2f  %s\n", d.DriftScore, truncate(d.Title, 60))
	}

	fmt.Println("\nLongest path:")
	for i, p := range report.LongestPath {
		fmt.Printf("  %d. %s\n", i+1, truncate(p.Title, 60))
	}

	fmt.Println("\nMost time spent:")
	for _, t := range report.MostTimeSpent {
		fmt.Printf("  %-40s %s\n", truncate(t.Title, 40), formatMillis(t.Duration))
	}

	if len(report.AhaMoments) > 0 {
		fmt.Println("\nAha! moments:")
		for _, m := range report.AhaMoments {
			fmt.Printf("  %s\n", m.Title)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
