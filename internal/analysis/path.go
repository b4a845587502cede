package analysis

import (
	"context"

	"github.com/runnerr0/burrow/internal/journey"
)

// PathEntry is one step of a root-to-leaf path.
type PathEntry struct {
	NodeID string `json:"nodeId"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// LongestPath returns the longest root-to-leaf chain in tree. When several
// chains tie, the one through the earliest child wins. A nil tree yields an
// empty path.
func LongestPath(tree *journey.Tree) []PathEntry {
	if tree == nil {
		return []PathEntry{}
	}

	entry := PathEntry{NodeID: tree.ID, Title: tree.Title, URL: tree.URL}
	if len(tree.Children) == 0 {
		return []PathEntry{entry}
	}

	var longest []PathEntry
	for _, c := range tree.Children {
		if p := LongestPath(c); len(p) > len(longest) {
			longest = p
		}
	}
	return append([]PathEntry{entry}, longest...)
}

// LongestPathFor loads a journey and returns its longest path.
func (a *Analyzer) LongestPathFor(ctx context.Context, journeyID int64) ([]PathEntry, error) {
	tree, err := a.Tree(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	return LongestPath(tree), nil
}
