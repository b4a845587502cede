package journey

// Stats holds aggregate metrics for a journey.
type Stats struct {
	NodeCount     int     `json:"nodeCount"`
	TotalDuration int64   `json:"totalDuration"`
	MaxDepth      int     `json:"maxDepth"`
	AvgDuration   float64 `json:"avgDuration"`
}

// ComputeStats summarizes the flat node list and the tree built from it.
func ComputeStats(nodes []Node, tree *Tree) Stats {
	var total int64
	for _, n := range nodes {
		total += n.Duration
	}

	s := Stats{
		NodeCount:     len(nodes),
		TotalDuration: total,
		MaxDepth:      MaxDepth(tree),
	}
	if len(nodes) > 0 {
		s.AvgDuration = float64(total) / float64(len(nodes))
	}
	return s
}

// MaxDepth returns the number of edges on the longest root-to-leaf chain.
// A childless root and a nil tree both have depth 0.
func MaxDepth(tree *Tree) int {
	return maxDepth(tree, 0)
}

func maxDepth(t *Tree, depth int) int {
	if t == nil || len(t.Children) == 0 {
		return depth
	}
	deepest := 0
	for _, c := range t.Children {
		if d := maxDepth(c, depth+1); d > deepest {
			deepest = d
		}
	}
	return deepest
}
