package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/runnerr0/burrow/internal/journey"
)

// Execute implements the go-flags Commander interface for NodeCommand.
func (c *NodeCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *NodeCommand) run(ctx context.Context, e *env) error {
	n, err := e.store.GetNode(ctx, c.Args.ID)
	if err != nil {
		return fmt.Errorf("node not found: %s", c.Args.ID)
	}

	// JSON output (--json global flag)
	if c.globals.JSON {
		return printJSON(n)
	}

	switch c.Format {
	case "url":
		fmt.Println(n.URL)
	case "title":
		fmt.Println(n.Title)
	case "metadata":
		return printJSON(n.Metadata)
	case "json":
		return printJSON(n)
	case "md":
		outputMarkdown(n)
	case "full":
		outputFull(n)
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func outputFull(n *journey.Node) {
	fmt.Println(n.ID)
	fmt.Printf("Title:     %s\n", n.Title)
	fmt.Printf("URL:       %s\n", n.URL)
	fmt.Printf("Domain:    %s\n", hostOf(n.URL))
	fmt.Printf("Journey:   #%d\n", n.JourneyID)
	if n.ParentID != "" {
		fmt.Printf("Parent:    %s\n", n.ParentID)
	}
	fmt.Printf("Visited:   %s\n", formatTime(n.Timestamp))
	fmt.Printf("Time:      %s\n", formatMillis(n.Duration))
	if len(n.Metadata.Keywords) > 0 {
		fmt.Printf("Keywords:  %s\n", strings.Join(n.Metadata.Keywords, ", "))
	}
	if n.Metadata.AhaMoment {
		fmt.Println("Aha!:      yes")
	}
	if n.Screenshot != "" {
		fmt.Printf("Screenshot: %s\n", formatBytes(int64(len(n.Screenshot))))
	}
	fmt.Println()
	fmt.Println("--- Note ---")
	if n.Note == "" {
		fmt.Println("No note")
	} else {
		fmt.Println(n.Note)
	}
}

func outputMarkdown(n *journey.Node) {
	fmt.Println("---")
	fmt.Printf("id: %s\n", n.ID)
	fmt.Printf("title: %s\n", n.Title)
	fmt.Printf("url: %s\n", n.URL)
	fmt.Printf("journey: %d\n", n.JourneyID)
	fmt.Printf("visited: %s\n", formatTime(n.Timestamp))
	if len(n.Metadata.Keywords) > 0 {
		fmt.Printf("keywords: [%s]\n", strings.Join(n.Metadata.Keywords, ", "))
	}
	fmt.Println("---")
	fmt.Println()
	fmt.Printf("# [%s](%s)\n", n.Title, n.URL)
	if n.Metadata.Description != "" {
		fmt.Println()
		fmt.Println(n.Metadata.Description)
	}
	if n.Note != "" {
		fmt.Println()
		fmt.Printf("> %s\n", n.Note)
	}
}
