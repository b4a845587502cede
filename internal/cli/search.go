package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/runnerr0/burrow/internal/journey"
)

type searchHit struct {
	NodeID       string   `json:"node_id"`
	JourneyID    int64    `json:"journey_id"`
	JourneyTitle string   `json:"journey_title"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Timestamp    int64    `json:"timestamp"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	return withEnv(c.globals, c.run)
}

func (c *SearchCommand) run(ctx context.Context, e *env) error {
	query := strings.ToLower(strings.TrimSpace(strings.Join(c.Args.Query, " ")))

	var since int64
	if c.Since != "" {
		d, err := parseDuration(c.Since)
		if err != nil {
			return err
		}
		since = journey.Millis(time.Now().Add(-d))
	}

	journeys, err := e.store.ListJourneys(ctx)
	if err != nil {
		return err
	}

	var hits []searchHit
	for _, j := range journeys {
		if c.Journey != 0 && j.ID != c.Journey {
			continue
		}
		nodes, err := e.store.GetNodesByJourney(ctx, j.ID)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if n.Timestamp < since || !c.matchDomain(n.URL) || !matchQuery(n, query) {
				continue
			}
			hits = append(hits, searchHit{
				NodeID:       n.ID,
				JourneyID:    j.ID,
				JourneyTitle: j.Title,
				Title:        n.Title,
				URL:          n.URL,
				Timestamp:    n.Timestamp,
				Keywords:     n.Metadata.Keywords,
			})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Timestamp > hits[b].Timestamp })
	if c.Limit > 0 && len(hits) > c.Limit {
		hits = hits[:c.Limit]
	}

	if c.globals.JSON {
		if hits == nil {
			hits = []searchHit{}
		}
		return printJSON(hits)
	}
	if len(hits) == 0 {
		fmt.Println("No matching pages.")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%s  %s\n", formatTime(h.Timestamp), h.Title)
		fmt.Printf("    %s\n", h.URL)
		fmt.Printf("    node %s in #%d %s\n", h.NodeID, h.JourneyID, h.JourneyTitle)
	}
	return nil
}

func (c *SearchCommand) matchDomain(rawURL string) bool {
	if len(c.Domain) == 0 {
		return true
	}
	host := hostOf(rawURL)
	for _, d := range c.Domain {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// matchQuery reports whether every query word appears in the node's title,
// URL or keywords. An empty query matches everything.
func matchQuery(n journey.Node, query string) bool {
	if query == "" {
		return true
	}
	haystack := strings.ToLower(n.Title + " " + n.URL + " " + strings.Join(n.Metadata.Keywords, " "))
	for _, word := range strings.Fields(query) {
		if !strings.Contains(haystack, word) {
			return false
		}
	}
	return true
}
