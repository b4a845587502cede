package transfer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/journey"
)

// Import stores doc as a new shared journey and returns its id.
//
// Every node gets a fresh id and parent links are rewritten through the
// old-to-new id map. Nodes are inserted parents first, so a document whose
// nodes are not topologically ordered still links correctly; a parent id
// that names no node in the document is kept as-is.
//
// A document missing formatVersion, journey or nodes is rejected with a
// *FormatError before anything is written. A store failure part way
// through leaves the partially imported journey in place.
func (c *Codec) Import(ctx context.Context, doc *Document) (int64, error) {
	if doc == nil {
		return 0, &FormatError{Field: "document", Reason: "is required"}
	}
	if err := c.check(doc); err != nil {
		return 0, err
	}
	return c.restore(ctx, *doc.Journey, doc.Nodes, true)
}

// restore writes one journey and its nodes under new identifiers.
func (c *Codec) restore(ctx context.Context, src journey.Journey, nodes []journey.Node, shared bool) (int64, error) {
	now := journey.Millis(c.now())

	j := src
	j.ID = 0
	j.Created = now
	j.Updated = now
	j.Shared = shared
	j.RootNodeID = ""

	journeyID, err := c.store.CreateJourney(ctx, &j)
	if err != nil {
		return 0, fmt.Errorf("create imported journey: %w", err)
	}

	idMap := make(map[string]string, len(nodes))
	for _, n := range parentsFirst(nodes) {
		oldID := n.ID
		n.ID = c.newID()
		n.JourneyID = journeyID
		if newParent, ok := idMap[n.ParentID]; ok && n.ParentID != "" {
			n.ParentID = newParent
		}

		if err := c.store.CreateNode(ctx, &n); err != nil {
			c.logger.Warn("import interrupted",
				zap.Int64("journeyID", journeyID),
				zap.Int("imported", len(idMap)),
				zap.Int("total", len(nodes)),
				zap.Error(err),
			)
			return journeyID, fmt.Errorf("import node %s: %w", oldID, err)
		}
		idMap[oldID] = n.ID
	}

	if newRoot, ok := idMap[src.RootNodeID]; ok && src.RootNodeID != "" {
		j.RootNodeID = newRoot
		if err := c.store.UpdateJourney(ctx, &j); err != nil {
			return journeyID, fmt.Errorf("set imported root: %w", err)
		}
	}

	c.logger.Info("imported journey",
		zap.Int64("journeyID", journeyID),
		zap.Int("nodes", len(nodes)),
		zap.Bool("shared", shared),
	)
	return journeyID, nil
}

// parentsFirst reorders nodes so that every node whose parent is in the set
// comes after that parent. Otherwise input order is kept. Cycles are broken
// at the node where the walk re-enters them.
func parentsFirst(nodes []journey.Node) []journey.Node {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(nodes))
	ordered := make([]journey.Node, 0, len(nodes))

	var visit func(i int)
	visit = func(i int) {
		if state[i] != unvisited {
			return
		}
		state[i] = visiting
		if p, ok := index[nodes[i].ParentID]; ok && nodes[i].ParentID != "" {
			visit(p)
		}
		state[i] = done
		ordered = append(ordered, nodes[i])
	}

	for i := range nodes {
		visit(i)
	}
	return ordered
}
