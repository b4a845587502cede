// Package analysis derives behavioral patterns from a journey's nodes:
// dead ends, topic drift, the longest path, time allocation and "Aha!"
// moments, plus a composite insights report.
//
// The pure functions (DeadEnds, Drift, LongestPath, ...) operate on data
// already in memory. Analyzer methods fetch a fresh snapshot from the
// record store for each call and never write to it.
package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/logging"
)

// NodeReader is the read side of the record store the analyzer needs.
type NodeReader interface {
	GetNodesByJourney(ctx context.Context, journeyID int64) ([]journey.Node, error)
}

// Analyzer runs pattern analyses against stored journeys.
type Analyzer struct {
	nodes  NodeReader
	logger *zap.Logger
}

// New creates an Analyzer reading from nodes. A nil logger disables logging.
func New(nodes NodeReader, logger *zap.Logger) *Analyzer {
	return &Analyzer{nodes: nodes, logger: logging.OrNop(logger).Named("analysis")}
}

func (a *Analyzer) load(ctx context.Context, journeyID int64) ([]journey.Node, error) {
	nodes, err := a.nodes.GetNodesByJourney(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("load nodes for journey %d: %w", journeyID, err)
	}
	return nodes, nil
}

// Tree fetches a journey's nodes and builds its tree. The tree is nil for a
// journey without nodes.
func (a *Analyzer) Tree(ctx context.Context, journeyID int64) (*journey.Tree, error) {
	nodes, err := a.load(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	return journey.BuildTree(nodes), nil
}

// Stats fetches a journey's nodes and computes its aggregate metrics.
func (a *Analyzer) Stats(ctx context.Context, journeyID int64) (journey.Stats, error) {
	nodes, err := a.load(ctx, journeyID)
	if err != nil {
		return journey.Stats{}, err
	}
	return journey.ComputeStats(nodes, journey.BuildTree(nodes)), nil
}

// RecommendNextNodes is an extension point for suggesting where to go next.
// It always returns an empty list.
func (a *Analyzer) RecommendNextNodes(ctx context.Context, nodeID string) ([]journey.Node, error) {
	return []journey.Node{}, nil
}
