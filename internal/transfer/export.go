package transfer

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/journey"
)

// Export snapshots a journey, its nodes and its tree. Screenshots are
// stripped unless includeScreenshots is set. Stored state is not modified.
func (c *Codec) Export(ctx context.Context, journeyID int64, includeScreenshots bool) (*Document, error) {
	j, err := c.store.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("export journey %d: %w", journeyID, err)
	}
	nodes, err := c.store.GetNodesByJourney(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("export journey %d: %w", journeyID, err)
	}

	if !includeScreenshots {
		for i := range nodes {
			nodes[i].Screenshot = ""
		}
	}

	doc := &Document{
		FormatVersion: FormatVersion,
		Journey:       j,
		Nodes:         nodes,
		Tree:          journey.BuildTree(nodes),
		ExportedAt:    journey.Millis(c.now()),
		ProducerMetadata: ProducerMetadata{
			Producer: Producer,
			Format:   ExportFormat,
		},
	}

	c.logger.Info("exported journey",
		zap.Int64("journeyID", journeyID),
		zap.Int("nodes", len(nodes)),
		zap.Bool("screenshots", includeScreenshots),
	)
	return doc, nil
}

// ExportWithPrivacyFilter exports a journey without screenshots and drops
// every node whose URL hostname contains one of excludedDomains as a
// substring. Nodes with unparseable URLs are dropped too. The tree is
// rebuilt from the surviving nodes.
func (c *Codec) ExportWithPrivacyFilter(ctx context.Context, journeyID int64, excludedDomains []string) (*Document, error) {
	doc, err := c.Export(ctx, journeyID, false)
	if err != nil {
		return nil, err
	}

	kept := make([]journey.Node, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if c.excluded(n, excludedDomains) {
			continue
		}
		kept = append(kept, n)
	}

	c.logger.Debug("applied privacy filter",
		zap.Int64("journeyID", journeyID),
		zap.Int("kept", len(kept)),
		zap.Int("dropped", len(doc.Nodes)-len(kept)),
	)

	doc.Nodes = kept
	doc.Tree = journey.BuildTree(kept)
	return doc, nil
}

func (c *Codec) excluded(n journey.Node, excludedDomains []string) bool {
	u, err := url.Parse(n.URL)
	if err == nil && u.Scheme == "" {
		err = fmt.Errorf("missing scheme")
	}
	if err != nil {
		c.logger.Debug("dropping node with unparseable url",
			zap.String("nodeID", n.ID),
			zap.Error(err),
		)
		return true
	}
	return journey.HostExcluded(u.Hostname(), excludedDomains)
}
