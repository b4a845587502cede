package tracker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/storage"
)

// PageMetadata carries details scraped from a loaded page.
type PageMetadata struct {
	TabID    int              `json:"tabId"`
	URL      string           `json:"url,omitempty"`
	Metadata journey.Metadata `json:"metadata"`
}

// Screenshot carries a captured image of a tab as a data URL.
type Screenshot struct {
	TabID   int    `json:"tabId"`
	DataURL string `json:"dataUrl"`
}

// PageMetadata stores scraped details on the tab's node. When the page
// declared no keywords they are extracted from its main content. The
// node's aha flag is preserved. Tabs without a node are ignored.
func (t *Tracker) PageMetadata(ctx context.Context, ev PageMetadata) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.tabs[ev.TabID]
	if !ok || st.nodeID == "" {
		return nil
	}

	return t.updateNode(ctx, st.nodeID, func(n *journey.Node) {
		meta := ev.Metadata
		if len(meta.Keywords) == 0 {
			meta.Keywords = journey.ExtractKeywords(meta.MainContent, journey.DefaultKeywordLimit)
		}
		meta.AhaMoment = n.Metadata.AhaMoment
		n.Metadata = meta
	})
}

// AttachScreenshot stores dataURL on the tab's node. It does nothing when
// screenshots are disabled or the tab has no node.
func (t *Tracker) AttachScreenshot(ctx context.Context, tabID int, dataURL string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dataURL == "" || !t.boolSetting(ctx, config.KeyScreenshotsEnabled, true) {
		return nil
	}
	st, ok := t.tabs[tabID]
	if !ok || st.nodeID == "" {
		return nil
	}

	return t.updateNode(ctx, st.nodeID, func(n *journey.Node) {
		n.Screenshot = dataURL
	})
}

// AddNote sets the note of nodeID, or of the active tab's node when nodeID
// is empty.
func (t *Tracker) AddNote(ctx context.Context, nodeID, note string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if nodeID == "" {
		if nodeID = t.activeNodeID(); nodeID == "" {
			return ErrNoActiveNode
		}
	}
	return t.updateNode(ctx, nodeID, func(n *journey.Node) {
		n.Note = note
	})
}

// TagAhaMoment flags nodeID as a notable discovery, or the active tab's
// node when nodeID is empty.
func (t *Tracker) TagAhaMoment(ctx context.Context, nodeID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if nodeID == "" {
		if nodeID = t.activeNodeID(); nodeID == "" {
			return ErrNoActiveNode
		}
	}
	return t.updateNode(ctx, nodeID, func(n *journey.Node) {
		n.Metadata.AhaMoment = true
	})
}

// updateNode applies fn to a stored node and writes it back. A missing
// node yields an error wrapping storage.ErrNotFound.
func (t *Tracker) updateNode(ctx context.Context, nodeID string, fn func(*journey.Node)) error {
	n, err := t.store.GetNode(ctx, nodeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("load node %s: %w", nodeID, err)
	}
	fn(n)
	if err := t.store.UpdateNode(ctx, n); err != nil {
		return fmt.Errorf("update node %s: %w", nodeID, err)
	}
	t.logger.Debug("updated node", zap.String("nodeID", nodeID))
	return nil
}
