package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/journey"
)

// DefaultDeadEndThreshold is the visit length, in seconds, under which a
// leaf counts as a quick exit.
const DefaultDeadEndThreshold = 30.0

// DeadEnd is a leaf page that was left quickly.
type DeadEnd struct {
	NodeID   string  `json:"nodeId"`
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"` // seconds
}

// DeadEnds returns nodes with no children whose duration is strictly between
// zero and thresholdSeconds. Zero-duration nodes were never focused and are
// not reported. Results keep input order.
func DeadEnds(nodes []journey.Node, thresholdSeconds float64) []DeadEnd {
	children := childCounts(nodes)

	deadEnds := []DeadEnd{}
	for _, n := range nodes {
		secs := n.DurationSeconds()
		if children[n.ID] > 0 || secs <= 0 || secs >= thresholdSeconds {
			continue
		}
		deadEnds = append(deadEnds, DeadEnd{
			NodeID:   n.ID,
			URL:      n.URL,
			Title:    n.Title,
			Duration: secs,
		})
	}
	return deadEnds
}

// DetectDeadEnds loads a journey and reports its dead ends.
func (a *Analyzer) DetectDeadEnds(ctx context.Context, journeyID int64, thresholdSeconds float64) ([]DeadEnd, error) {
	nodes, err := a.load(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	deadEnds := DeadEnds(nodes, thresholdSeconds)
	a.logger.Debug("detected dead ends",
		zap.Int64("journeyID", journeyID),
		zap.Float64("thresholdSeconds", thresholdSeconds),
		zap.Int("count", len(deadEnds)),
	)
	return deadEnds, nil
}

// childCounts maps each parent id to how many nodes name it as parent.
func childCounts(nodes []journey.Node) map[string]int {
	counts := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if n.ParentID != "" {
			counts[n.ParentID]++
		}
	}
	return counts
}
