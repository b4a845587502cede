package analysis

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/burrow/internal/journey"
)

// ReportTopN is how many entries the insights report keeps per ranking.
const ReportTopN = 5

// Summary holds the headline numbers of an insights report.
type Summary struct {
	TotalNodes      int     `json:"totalNodes"`
	TotalDuration   int64   `json:"totalDuration"`
	MaxDepth        int     `json:"maxDepth"`
	AvgDuration     float64 `json:"avgDuration"`
	AvgBranchFactor float64 `json:"avgBranchFactor"`
}

// DriftSummary holds the most drifted nodes and the mean drift score.
type DriftSummary struct {
	MostDrifted []DriftEntry `json:"mostDrifted"`
	AvgDrift    float64      `json:"avgDrift"`
}

// Report is the composite insights report for one journey.
type Report struct {
	JourneyID     int64        `json:"journeyId"`
	Summary       Summary      `json:"summary"`
	DeadEnds      []DeadEnd    `json:"deadEnds"`
	TopicDrift    DriftSummary `json:"topicDrift"`
	LongestPath   []PathEntry  `json:"longestPath"`
	MostTimeSpent []TimeEntry  `json:"mostTimeSpent"`
	AhaMoments    []AhaMoment  `json:"ahaMoments"`
}

// Insights assembles the composite report. The summary, dead-end, drift and
// longest-path analyses each read their own snapshot of the journey and
// run concurrently; the first failure cancels the rest.
func (a *Analyzer) Insights(ctx context.Context, journeyID int64) (*Report, error) {
	start := time.Now()
	report := &Report{JourneyID: journeyID}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		nodes, err := a.load(gCtx, journeyID)
		if err != nil {
			return err
		}
		stats := journey.ComputeStats(nodes, journey.BuildTree(nodes))
		report.Summary = Summary{
			TotalNodes:      stats.NodeCount,
			TotalDuration:   stats.TotalDuration,
			MaxDepth:        stats.MaxDepth,
			AvgDuration:     stats.AvgDuration,
			AvgBranchFactor: AverageBranchFactor(nodes),
		}
		report.MostTimeSpent = MostTimeSpent(nodes, ReportTopN)
		report.AhaMoments = AhaMoments(nodes)
		return nil
	})

	g.Go(func() error {
		deadEnds, err := a.DetectDeadEnds(gCtx, journeyID, DefaultDeadEndThreshold)
		if err != nil {
			return err
		}
		report.DeadEnds = deadEnds
		return nil
	})

	g.Go(func() error {
		drift, err := a.TopicDrift(gCtx, journeyID)
		if err != nil {
			return err
		}
		top := drift
		if len(top) > ReportTopN {
			top = top[:ReportTopN]
		}
		report.TopicDrift = DriftSummary{MostDrifted: top, AvgDrift: AverageDrift(drift)}
		return nil
	})

	g.Go(func() error {
		path, err := a.LongestPathFor(gCtx, journeyID)
		if err != nil {
			return err
		}
		report.LongestPath = path
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Info("generated insights",
		zap.Int64("journeyID", journeyID),
		zap.Int("nodes", report.Summary.TotalNodes),
		zap.Int("deadEnds", len(report.DeadEnds)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// TimeEntry ranks a node by focus time.
type TimeEntry struct {
	NodeID   string `json:"nodeId"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Duration int64  `json:"duration"` // milliseconds
}

// MostTimeSpent returns up to n nodes by descending duration. Equal
// durations keep input order.
func MostTimeSpent(nodes []journey.Node, n int) []TimeEntry {
	sorted := append([]journey.Node(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Duration > sorted[j].Duration
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}

	entries := make([]TimeEntry, 0, len(sorted))
	for _, node := range sorted {
		entries = append(entries, TimeEntry{
			NodeID:   node.ID,
			Title:    node.Title,
			URL:      node.URL,
			Duration: node.Duration,
		})
	}
	return entries
}

// AhaMoment is a node the user flagged as a notable discovery.
type AhaMoment struct {
	NodeID string `json:"nodeId"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Note   string `json:"note"`
}

// AhaMoments returns every flagged node in input order.
func AhaMoments(nodes []journey.Node) []AhaMoment {
	moments := []AhaMoment{}
	for _, n := range nodes {
		if !n.Metadata.AhaMoment {
			continue
		}
		moments = append(moments, AhaMoment{NodeID: n.ID, Title: n.Title, URL: n.URL, Note: n.Note})
	}
	return moments
}

// AverageBranchFactor is the mean number of children over nodes that have
// at least one child. Parent ids that match no node are ignored. It is 0
// when no node branches.
func AverageBranchFactor(nodes []journey.Node) float64 {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}

	var parents, children int
	for id, count := range childCounts(nodes) {
		if !known[id] {
			continue
		}
		parents++
		children += count
	}
	if parents == 0 {
		return 0
	}
	return float64(children) / float64(parents)
}
