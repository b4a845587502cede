package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/storage"
)

// TabCreated reports a new tab and the tab that opened it.
type TabCreated struct {
	TabID       int `json:"tabId"`
	OpenerTabID int `json:"openerTabId,omitempty"`
}

// NavigationTarget reports a link in SourceTabID that opened TabID.
type NavigationTarget struct {
	TabID       int `json:"tabId"`
	SourceTabID int `json:"sourceTabId"`
}

// NavigationComplete reports that a tab finished loading a page.
type NavigationComplete struct {
	TabID       int    `json:"tabId"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	OpenerTabID int    `json:"openerTabId,omitempty"`
	Active      bool   `json:"active"`
}

// TabActivated reports that a tab gained focus.
type TabActivated struct {
	TabID int `json:"tabId"`
}

// TabRemoved reports that a tab closed.
type TabRemoved struct {
	TabID int `json:"tabId"`
}

// TabCreated records the opener of a new tab. It overrides an opener
// learned from a navigation target.
func (t *Tracker) TabCreated(ctx context.Context, ev TabCreated) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.OpenerTabID != 0 {
		t.tab(ev.TabID).openerTabID = ev.OpenerTabID
		t.logger.Debug("recorded opener", zap.Int("tabID", ev.TabID), zap.Int("openerTabID", ev.OpenerTabID))
	}
	return nil
}

// NavigationTarget records the source tab as opener unless one is known.
func (t *Tracker) NavigationTarget(ctx context.Context, ev NavigationTarget) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.tab(ev.TabID)
	if st.openerTabID == 0 && ev.SourceTabID != 0 {
		st.openerTabID = ev.SourceTabID
	}
	return nil
}

// NavigationComplete creates a node for the tab's first tracked page and
// returns its id. The node's parent is the node of the opener tab, if that
// tab produced one. When the event marks the tab as active, the tab becomes
// the active one and its timing starts. Later completions in the same tab
// only replace a placeholder title. An empty id means the page was not
// tracked.
func (t *Tracker) NavigationComplete(ctx context.Context, ev NavigationComplete) (string, error) {
	if ev.URL == "" {
		return "", nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.tab(ev.TabID)
	if st.nodeID != "" {
		return st.nodeID, t.fixTitle(ctx, st.nodeID, ev)
	}
	if st.openerTabID == 0 && ev.OpenerTabID != 0 {
		st.openerTabID = ev.OpenerTabID
	}

	track, err := t.shouldTrack(ctx, ev.URL)
	if err != nil || !track {
		return "", err
	}

	if t.currentJourney != 0 {
		_, err := t.store.GetJourney(ctx, t.currentJourney)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			t.logger.Info("current journey was deleted", zap.Int64("journeyID", t.currentJourney))
			t.currentJourney = 0
		case err != nil:
			return "", fmt.Errorf("load current journey: %w", err)
		}
	}
	if t.currentJourney == 0 {
		if !t.boolSetting(ctx, config.KeyAutoStartJourney, true) {
			return "", nil
		}
		if _, err := t.startJourney(ctx, AutoJourneyTitle); err != nil {
			return "", err
		}
	}

	var parentID string
	if opener, ok := t.tabs[st.openerTabID]; ok && st.openerTabID != 0 {
		parentID = opener.nodeID
	}

	now := t.now()
	title := ev.Title
	if title == "" {
		title = LoadingTitle
	}
	n := &journey.Node{
		ID:        newNodeID(ev.TabID, now),
		JourneyID: t.currentJourney,
		TabID:     ev.TabID,
		URL:       ev.URL,
		Title:     title,
		ParentID:  parentID,
		Timestamp: journey.Millis(now),
	}
	if err := t.store.CreateNode(ctx, n); err != nil {
		return "", fmt.Errorf("create node: %w", err)
	}
	st.nodeID = n.ID
	if t.onNode != nil {
		t.onNode(*n)
	}

	if err := t.touchJourney(ctx, n.ID); err != nil {
		return n.ID, err
	}

	// A page that loads in the focused tab starts timing at once; time
	// before the node existed belongs to nothing.
	if ev.Active {
		if t.activeTab != 0 && t.activeTab != ev.TabID {
			if err := t.flushDuration(ctx, t.activeTab); err != nil {
				return n.ID, err
			}
		}
		t.activeTab = ev.TabID
		st.activeSince = now
	}

	t.logger.Info("created node",
		zap.String("nodeID", n.ID),
		zap.Int("tabID", ev.TabID),
		zap.String("parentID", parentID),
		zap.Int64("journeyID", n.JourneyID),
	)
	return n.ID, nil
}

// touchJourney bumps the current journey's update time and sets its root
// to nodeID when it has none.
func (t *Tracker) touchJourney(ctx context.Context, nodeID string) error {
	j, err := t.store.GetJourney(ctx, t.currentJourney)
	if err != nil {
		return fmt.Errorf("load current journey: %w", err)
	}
	if j.RootNodeID == "" {
		j.RootNodeID = nodeID
	}
	j.Updated = journey.Millis(t.now())
	if err := t.store.UpdateJourney(ctx, j); err != nil {
		return fmt.Errorf("update current journey: %w", err)
	}
	return nil
}

func (t *Tracker) fixTitle(ctx context.Context, nodeID string, ev NavigationComplete) error {
	n, err := t.store.GetNode(ctx, nodeID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load node %s: %w", nodeID, err)
	}
	if n.Title != LoadingTitle {
		return nil
	}
	n.Title = ev.Title
	if n.Title == "" {
		n.Title = ev.URL
	}
	if err := t.store.UpdateNode(ctx, n); err != nil {
		return fmt.Errorf("update title of %s: %w", nodeID, err)
	}
	return nil
}

// TabActivated credits the previously active tab with its focus time and
// starts timing the new one.
func (t *Tracker) TabActivated(ctx context.Context, ev TabActivated) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	if t.activeTab != 0 && t.activeTab != ev.TabID {
		err = t.flushDuration(ctx, t.activeTab)
	}

	t.activeTab = ev.TabID
	t.tab(ev.TabID).activeSince = t.now()
	return err
}

// TabRemoved credits the tab with its focus time and drops it from the
// table.
func (t *Tracker) TabRemoved(ctx context.Context, ev TabRemoved) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.flushDuration(ctx, ev.TabID)
	delete(t.tabs, ev.TabID)
	if t.activeTab == ev.TabID {
		t.activeTab = 0
	}
	return err
}

// shouldTrack applies the URL policy: browser-internal pages, pages while
// tracking is disabled and hosts matching an excluded domain are skipped.
// Sensitive domains count as excluded while autoExcludeSensitive is on.
func (t *Tracker) shouldTrack(ctx context.Context, rawURL string) (bool, error) {
	if rawURL == "" || strings.HasPrefix(rawURL, "chrome://") || strings.HasPrefix(rawURL, "chrome-extension://") {
		return false, nil
	}
	if !t.boolSetting(ctx, config.KeyTrackingEnabled, true) {
		return false, nil
	}

	excluded, err := config.EffectiveExcludedDomains(ctx, t.store)
	if err != nil {
		return false, err
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return false, nil
	}
	return !journey.HostExcluded(u.Hostname(), excluded), nil
}

// boolSetting reads a boolean setting, falling back to def when it is
// unset or unreadable.
func (t *Tracker) boolSetting(ctx context.Context, key string, def bool) bool {
	v := def
	if _, err := t.store.GetSetting(ctx, key, &v); err != nil {
		t.logger.Warn("read setting", zap.String("key", key), zap.Error(err))
		return def
	}
	return v
}
