package analysis

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/journey"
)

// DriftEntry scores how far a node's topic has moved from the root's.
type DriftEntry struct {
	NodeID     string  `json:"nodeId"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Depth      int     `json:"depth"`
	DriftScore float64 `json:"driftScore"`
	Similarity float64 `json:"similarity"`
}

// Jaccard returns |a ∩ b| / |a ∪ b| over the distinct values of a and b.
// Two empty sets are identical (1); exactly one empty set scores 0.
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Drift scores every non-root node of tree against the root's keywords,
// most drifted first. Equal scores keep pre-order.
func Drift(tree *journey.Tree) []DriftEntry {
	entries := []DriftEntry{}
	if tree == nil {
		return entries
	}

	rootKeywords := tree.Metadata.Keywords
	tree.Walk(func(n *journey.Tree, depth int) bool {
		if depth == 0 {
			return true
		}
		sim := Jaccard(rootKeywords, n.Metadata.Keywords)
		entries = append(entries, DriftEntry{
			NodeID:     n.ID,
			URL:        n.URL,
			Title:      n.Title,
			Depth:      depth,
			DriftScore: 1 - sim,
			Similarity: sim,
		})
		return true
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DriftScore > entries[j].DriftScore
	})
	return entries
}

// TopicDrift loads a journey, builds its tree and scores drift.
func (a *Analyzer) TopicDrift(ctx context.Context, journeyID int64) ([]DriftEntry, error) {
	tree, err := a.Tree(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	entries := Drift(tree)
	a.logger.Debug("scored topic drift",
		zap.Int64("journeyID", journeyID),
		zap.Int("entries", len(entries)),
	)
	return entries, nil
}

// AverageDrift is the mean drift score, or 0 for no entries.
func AverageDrift(entries []DriftEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entries {
		sum += e.DriftScore
	}
	return sum / float64(len(entries))
}
