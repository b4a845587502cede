package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/runnerr0/burrow/internal/tracker"
)

// Execute implements the go-flags Commander interface for NoteCommand.
func (c *NoteCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *NoteCommand) run(ctx context.Context, e *env) error {
	note := strings.Join(c.Args.Text, " ")
	if err := tracker.New(e.store, e.logger).AddNote(ctx, c.Args.ID, note); err != nil {
		return err
	}
	if note == "" {
		fmt.Printf("Cleared note on %s\n", c.Args.ID)
	} else {
		fmt.Printf("Noted %s\n", c.Args.ID)
	}
	return nil
}

// Execute implements the go-flags Commander interface for AhaCommand.
func (c *AhaCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *AhaCommand) run(ctx context.Context, e *env) error {
	if err := tracker.New(e.store, e.logger).TagAhaMoment(ctx, c.Args.ID); err != nil {
		return err
	}
	fmt.Printf("Marked %s as an Aha! moment\n", c.Args.ID)
	return nil
}
