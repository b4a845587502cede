package journey

// Tree is a node with its materialized children. It is rebuilt on every
// query and never persisted.
type Tree struct {
	Node
	Children []*Tree `json:"children"`
}

// BuildTree links a journey's flat node list into a rooted tree.
//
// Children keep the order in which nodes first appear in the input. A node
// whose parent is missing from the input, or who names itself as parent,
// is a root candidate; the last candidate seen becomes the root and any
// other candidate is left out of the tree. Returns nil for empty input.
func BuildTree(nodes []Node) *Tree {
	if len(nodes) == 0 {
		return nil
	}

	index := make(map[string]*Tree, len(nodes))
	order := make([]*Tree, 0, len(nodes))
	for _, n := range nodes {
		if _, seen := index[n.ID]; seen {
			continue
		}
		t := &Tree{Node: n, Children: []*Tree{}}
		index[n.ID] = t
		order = append(order, t)
	}

	var root *Tree
	for _, t := range order {
		parent, ok := index[t.ParentID]
		if t.ParentID != "" && ok && t.ParentID != t.ID {
			parent.Children = append(parent.Children, t)
			continue
		}
		root = t
	}

	return root
}

// Walk visits t and its descendants in pre-order, passing each node's depth
// below t. Returning false from fn skips that node's subtree.
func (t *Tree) Walk(fn func(node *Tree, depth int) bool) {
	if t == nil {
		return
	}
	t.walk(fn, 0)
}

func (t *Tree) walk(fn func(*Tree, int) bool, depth int) {
	if !fn(t, depth) {
		return
	}
	for _, c := range t.Children {
		c.walk(fn, depth+1)
	}
}

// Size returns the number of nodes reachable from t.
func (t *Tree) Size() int {
	n := 0
	t.Walk(func(*Tree, int) bool {
		n++
		return true
	})
	return n
}
