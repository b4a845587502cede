// Package tracker turns browser tab events into journey nodes.
//
// The Tracker keeps a table of open tabs: the node each tab produced, the
// tab that opened it and when it became active. Entries are removed when a
// tab closes. All events are serialized by a single mutex, so event order
// is the order in which callers deliver them.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/logging"
	"github.com/runnerr0/burrow/internal/storage"
)

const (
	// AutoJourneyTitle names journeys started by the first tracked page.
	AutoJourneyTitle = "Auto Journey"
	// UntitledJourney is used when no title or default name is available.
	UntitledJourney = "Untitled Journey"
	// LoadingTitle stands in for a page title that is not yet known.
	LoadingTitle = "Loading..."
)

// ErrNoActiveNode is returned when an operation targets the active tab's
// node but no tracked tab is active.
var ErrNoActiveNode = errors.New("no active node")

// Store is the part of the record store the tracker uses.
type Store interface {
	CreateJourney(ctx context.Context, j *journey.Journey) (int64, error)
	GetJourney(ctx context.Context, id int64) (*journey.Journey, error)
	UpdateJourney(ctx context.Context, j *journey.Journey) error
	CreateNode(ctx context.Context, n *journey.Node) error
	GetNode(ctx context.Context, id string) (*journey.Node, error)
	UpdateNode(ctx context.Context, n *journey.Node) error
	GetSetting(ctx context.Context, key string, dst any) (bool, error)
	SetSetting(ctx context.Context, key string, value any) error
}

// tabState is one row of the tab table. Tab ids are positive; zero means
// "none".
type tabState struct {
	nodeID      string
	openerTabID int
	activeSince time.Time
}

// Tracker records browsing activity into the current journey.
type Tracker struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	onNode func(journey.Node)

	mu             sync.Mutex
	currentJourney int64
	activeTab      int
	tabs           map[int]*tabState
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithNodeObserver registers fn to be called after each node is created.
// fn runs with the tracker lock held and must not call back into it.
func WithNodeObserver(fn func(journey.Node)) Option {
	return func(t *Tracker) { t.onNode = fn }
}

// New creates a Tracker. A nil logger disables logging.
func New(store Store, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		logger: logging.OrNop(logger).Named("tracker"),
		now:    time.Now,
		tabs:   make(map[int]*tabState),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Restore reloads the current journey id persisted by a previous run.
func (t *Tracker) Restore(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var id int64
	ok, err := t.store.GetSetting(ctx, config.KeyCurrentJourneyID, &id)
	if err != nil {
		return fmt.Errorf("restore current journey: %w", err)
	}
	if ok {
		t.currentJourney = id
		t.logger.Info("restored current journey", zap.Int64("journeyID", id))
	}
	return nil
}

// StartJourney creates a new journey and makes it current. An empty title
// falls back to the configured default name. Time spent on the active tab
// so far is credited to its node, then the tab table is reset.
func (t *Tracker) StartJourney(ctx context.Context, title string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.activeTab != 0 {
		if err := t.flushDuration(ctx, t.activeTab); err != nil {
			return 0, err
		}
	}

	if title == "" {
		title = t.defaultTitle(ctx)
	}
	id, err := t.startJourney(ctx, title)
	if err != nil {
		return 0, err
	}

	t.tabs = make(map[int]*tabState)
	t.activeTab = 0
	return id, nil
}

func (t *Tracker) startJourney(ctx context.Context, title string) (int64, error) {
	now := journey.Millis(t.now())
	j := &journey.Journey{Title: title, Created: now, Updated: now, Tags: []string{}}

	id, err := t.store.CreateJourney(ctx, j)
	if err != nil {
		return 0, fmt.Errorf("start journey: %w", err)
	}
	if err := t.store.SetSetting(ctx, config.KeyCurrentJourneyID, id); err != nil {
		return 0, fmt.Errorf("save current journey: %w", err)
	}
	t.currentJourney = id

	t.logger.Info("started journey", zap.Int64("journeyID", id), zap.String("title", title))
	return id, nil
}

// defaultTitle expands the stored default journey name. "{date}" becomes
// the current date.
func (t *Tracker) defaultTitle(ctx context.Context) string {
	var name string
	if ok, err := t.store.GetSetting(ctx, config.KeyDefaultJourneyName, &name); err != nil || !ok || name == "" {
		return UntitledJourney
	}
	return strings.ReplaceAll(name, "{date}", t.now().Format("2006-01-02"))
}

// CurrentJourney returns the current journey, or nil when none has been
// started.
func (t *Tracker) CurrentJourney(ctx context.Context) (*journey.Journey, error) {
	t.mu.Lock()
	id := t.currentJourney
	t.mu.Unlock()

	if id == 0 {
		return nil, nil
	}
	j, err := t.store.GetJourney(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("current journey: %w", err)
	}
	return j, nil
}

// CurrentNode returns the node of the active tab, or nil when the active
// tab has not produced one.
func (t *Tracker) CurrentNode(ctx context.Context) (*journey.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nodeID := t.activeNodeID()
	if nodeID == "" {
		return nil, nil
	}
	n, err := t.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("current node: %w", err)
	}
	return n, nil
}

func (t *Tracker) activeNodeID() string {
	if st, ok := t.tabs[t.activeTab]; ok && t.activeTab != 0 {
		return st.nodeID
	}
	return ""
}

// tab returns the table row for tabID, creating it if needed.
func (t *Tracker) tab(tabID int) *tabState {
	st, ok := t.tabs[tabID]
	if !ok {
		st = &tabState{}
		t.tabs[tabID] = st
	}
	return st
}

// flushDuration adds the time since tabID became active to its node and
// stops timing it. Tabs without a node or without a start time are left
// alone.
func (t *Tracker) flushDuration(ctx context.Context, tabID int) error {
	st, ok := t.tabs[tabID]
	if !ok || st.nodeID == "" || st.activeSince.IsZero() {
		return nil
	}

	elapsed := t.now().Sub(st.activeSince).Milliseconds()
	st.activeSince = time.Time{}
	if elapsed < 0 {
		elapsed = 0
	}

	n, err := t.store.GetNode(ctx, st.nodeID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load node %s: %w", st.nodeID, err)
	}
	n.Duration += elapsed
	if err := t.store.UpdateNode(ctx, n); err != nil {
		return fmt.Errorf("update duration of %s: %w", n.ID, err)
	}

	t.logger.Debug("accumulated duration",
		zap.String("nodeID", n.ID),
		zap.Int64("elapsedMs", elapsed),
		zap.Int64("durationMs", n.Duration),
	)
	return nil
}

func newNodeID(tabID int, at time.Time) string {
	return fmt.Sprintf("node_%d_%d_%s", tabID, journey.Millis(at), uuid.NewString()[:8])
}
