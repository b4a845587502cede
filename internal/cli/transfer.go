package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/runnerr0/burrow/internal/transfer"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *ExportCommand) run(ctx context.Context, e *env) error {
	codec := transfer.New(e.store, e.logger)

	var (
		doc *transfer.Document
		err error
	)
	if c.Private {
		domains, derr := e.excludedDomains(ctx)
		if derr != nil {
			return derr
		}
		doc, err = codec.ExportWithPrivacyFilter(ctx, c.Args.ID, domains)
	} else {
		doc, err = codec.Export(ctx, c.Args.ID, c.Screenshots)
	}
	if err != nil {
		return err
	}

	if err := writeOutput(c.Output, func(w io.Writer) error { return transfer.Encode(w, doc) }); err != nil {
		return err
	}
	if c.Output != "" {
		fmt.Fprintf(os.Stderr, "Exported journey #%d (%d nodes) to %s\n", c.Args.ID, len(doc.Nodes), c.Output)
	}
	return nil
}

// Execute implements the go-flags Commander interface for ImportCommand.
func (c *ImportCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *ImportCommand) run(ctx context.Context, e *env) error {
	in, err := openInput(c.Args.File, c.stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	doc, err := transfer.Decode(in)
	if err != nil {
		return err
	}
	id, err := transfer.New(e.store, e.logger).Import(ctx, doc)
	if err != nil {
		return err
	}

	if c.globals.JSON {
		return printJSON(map[string]any{"id": id, "nodes": len(doc.Nodes)})
	}
	fmt.Printf("Imported journey #%d (%d nodes)\n", id, len(doc.Nodes))
	return nil
}

// Execute implements the go-flags Commander interface for BackupCommand.
func (c *BackupCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *BackupCommand) run(ctx context.Context, e *env) error {
	b, err := transfer.New(e.store, e.logger).ExportAll(ctx)
	if err != nil {
		return err
	}
	if err := writeOutput(c.Output, func(w io.Writer) error { return transfer.Encode(w, b) }); err != nil {
		return err
	}
	if c.Output != "" {
		fmt.Fprintf(os.Stderr, "Backed up %d journeys to %s\n", len(b.Journeys), c.Output)
	}
	return nil
}

// Execute implements the go-flags Commander interface for RestoreCommand.
func (c *RestoreCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *RestoreCommand) run(ctx context.Context, e *env) error {
	in, err := openInput(c.Args.File, c.stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	b, err := transfer.DecodeBackup(in)
	if err != nil {
		return err
	}
	ids, err := transfer.New(e.store, e.logger).RestoreBackup(ctx, b)
	if err != nil {
		return err
	}

	if c.globals.JSON {
		if ids == nil {
			ids = []int64{}
		}
		return printJSON(map[string]any{"ids": ids})
	}
	fmt.Printf("Restored %d journeys\n", len(ids))
	return nil
}
