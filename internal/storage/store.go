package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/runnerr0/burrow/internal/journey"
)

// Store defines the record store operations for journeys, nodes and settings.
type Store interface {
	CreateJourney(ctx context.Context, j *journey.Journey) (int64, error)
	GetJourney(ctx context.Context, id int64) (*journey.Journey, error)
	UpdateJourney(ctx context.Context, j *journey.Journey) error
	ListJourneys(ctx context.Context) ([]journey.Journey, error)
	DeleteJourney(ctx context.Context, id int64) error

	CreateNode(ctx context.Context, n *journey.Node) error
	GetNode(ctx context.Context, id string) (*journey.Node, error)
	UpdateNode(ctx context.Context, n *journey.Node) error
	GetNodesByJourney(ctx context.Context, journeyID int64) ([]journey.Node, error)
	DeleteNode(ctx context.Context, id string) error

	GetSetting(ctx context.Context, key string, dst any) (bool, error)
	SetSetting(ctx context.Context, key string, value any) error

	ClearScreenshotsBefore(ctx context.Context, cutoff int64) (int64, error)
	DeleteJourneysBefore(ctx context.Context, cutoff int64) (int64, error)
	CountExpired(ctx context.Context, screenshotCutoff, journeyCutoff int64) (*Counts, error)
	PurgeAll(ctx context.Context) error
	Counts(ctx context.Context) (*Counts, error)
	Close() error
}

// Counts holds row totals used by status reporting.
type Counts struct {
	Journeys    int64
	Nodes       int64
	Screenshots int64
	// ScreenshotBytes is the summed length of stored screenshot data URLs.
	ScreenshotBytes int64
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	insertJourney  *sql.Stmt
	getJourney     *sql.Stmt
	updateJourney  *sql.Stmt
	insertNode     *sql.Stmt
	getNode        *sql.Stmt
	updateNode     *sql.Stmt
	nodesByJourney *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		s.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

const nodeColumns = `id, journey_id, tab_id, url, title, parent_id, ts, duration, note, screenshot, metadata`

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertJourney, err = s.db.Prepare(`
		INSERT INTO journeys (title, created, updated, tags, shared, root_node_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getJourney, err = s.db.Prepare(`
		SELECT id, title, created, updated, tags, shared, root_node_id
		FROM journeys WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.updateJourney, err = s.db.Prepare(`
		UPDATE journeys SET title = ?, created = ?, updated = ?, tags = ?, shared = ?, root_node_id = ?
		WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.insertNode, err = s.db.Prepare(`
		INSERT INTO nodes (` + nodeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getNode, err = s.db.Prepare(`SELECT ` + nodeColumns + ` FROM nodes WHERE id = ?`)
	if err != nil {
		return err
	}

	s.updateNode, err = s.db.Prepare(`
		UPDATE nodes SET journey_id = ?, tab_id = ?, url = ?, title = ?, parent_id = ?,
		       ts = ?, duration = ?, note = ?, screenshot = ?, metadata = ?
		WHERE id = ?
	`)
	if err != nil {
		return err
	}

	// rowid order is insertion order.
	s.nodesByJourney, err = s.db.Prepare(`
		SELECT ` + nodeColumns + ` FROM nodes WHERE journey_id = ? ORDER BY rowid
	`)
	if err != nil {
		return err
	}

	return nil
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateJourney inserts j and returns the store-assigned id, which is also
// written back to j.ID.
func (s *SQLiteStore) CreateJourney(ctx context.Context, j *journey.Journey) (int64, error) {
	tags := j.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeJSON(tags)
	if err != nil {
		return 0, wrap("encode tags", err)
	}

	res, err := s.insertJourney.ExecContext(ctx,
		j.Title, j.Created, j.Updated, tagsJSON, j.Shared, nullable(j.RootNodeID),
	)
	if err != nil {
		return 0, wrap("insert journey", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("insert journey", err)
	}
	j.ID = id
	return id, nil
}

// GetJourney retrieves a journey by id. A missing journey yields an error
// wrapping ErrNotFound.
func (s *SQLiteStore) GetJourney(ctx context.Context, id int64) (*journey.Journey, error) {
	j, err := scanJourney(s.getJourney.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("journey %d: %w", id, ErrNotFound)
		}
		return nil, wrap("get journey", err)
	}
	return j, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJourney(row rowScanner) (*journey.Journey, error) {
	var j journey.Journey
	var tagsJSON string
	var root sql.NullString

	if err := row.Scan(&j.ID, &j.Title, &j.Created, &j.Updated, &tagsJSON, &j.Shared, &root); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &j.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	j.RootNodeID = root.String
	return &j, nil
}

// UpdateJourney overwrites every mutable field of an existing journey.
func (s *SQLiteStore) UpdateJourney(ctx context.Context, j *journey.Journey) error {
	tags := j.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeJSON(tags)
	if err != nil {
		return wrap("encode tags", err)
	}

	res, err := s.updateJourney.ExecContext(ctx,
		j.Title, j.Created, j.Updated, tagsJSON, j.Shared, nullable(j.RootNodeID), j.ID,
	)
	if err != nil {
		return wrap("update journey", err)
	}
	return requireRow(res, fmt.Sprintf("journey %d", j.ID))
}

// ListJourneys returns every journey, most recently updated first.
func (s *SQLiteStore) ListJourneys(ctx context.Context) ([]journey.Journey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created, updated, tags, shared, root_node_id
		FROM journeys ORDER BY updated DESC, id DESC
	`)
	if err != nil {
		return nil, wrap("list journeys", err)
	}
	defer rows.Close()

	journeys := []journey.Journey{}
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, wrap("scan journey", err)
		}
		journeys = append(journeys, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list journeys", err)
	}
	return journeys, nil
}

// DeleteJourney removes a journey. Its nodes are cascade-deleted by the schema.
func (s *SQLiteStore) DeleteJourney(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM journeys WHERE id = ?", id)
	if err != nil {
		return wrap("delete journey", err)
	}
	return requireRow(res, fmt.Sprintf("journey %d", id))
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// CreateNode inserts a node. The caller supplies a globally unique id.
func (s *SQLiteStore) CreateNode(ctx context.Context, n *journey.Node) error {
	meta, err := encodeJSON(n.Metadata)
	if err != nil {
		return wrap("encode metadata", err)
	}

	_, err = s.insertNode.ExecContext(ctx,
		n.ID, n.JourneyID, n.TabID, n.URL, n.Title, nullable(n.ParentID),
		n.Timestamp, n.Duration, n.Note, nullable(n.Screenshot), meta,
	)
	if err != nil {
		return wrap("insert node", err)
	}
	return nil
}

// GetNode retrieves a node by id. A missing node yields an error wrapping
// ErrNotFound.
func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*journey.Node, error) {
	n, err := scanNode(s.getNode.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
		}
		return nil, wrap("get node", err)
	}
	return n, nil
}

func scanNode(row rowScanner) (*journey.Node, error) {
	var n journey.Node
	var parent, screenshot sql.NullString
	var meta string

	if err := row.Scan(
		&n.ID, &n.JourneyID, &n.TabID, &n.URL, &n.Title, &parent,
		&n.Timestamp, &n.Duration, &n.Note, &screenshot, &meta,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &n.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	n.ParentID = parent.String
	n.Screenshot = screenshot.String
	return &n, nil
}

// UpdateNode overwrites every field of an existing node except its id.
func (s *SQLiteStore) UpdateNode(ctx context.Context, n *journey.Node) error {
	meta, err := encodeJSON(n.Metadata)
	if err != nil {
		return wrap("encode metadata", err)
	}

	res, err := s.updateNode.ExecContext(ctx,
		n.JourneyID, n.TabID, n.URL, n.Title, nullable(n.ParentID),
		n.Timestamp, n.Duration, n.Note, nullable(n.Screenshot), meta, n.ID,
	)
	if err != nil {
		return wrap("update node", err)
	}
	return requireRow(res, "node "+n.ID)
}

// GetNodesByJourney returns a journey's nodes in insertion order. A journey
// with no nodes yields an empty slice.
func (s *SQLiteStore) GetNodesByJourney(ctx context.Context, journeyID int64) ([]journey.Node, error) {
	rows, err := s.nodesByJourney.QueryContext(ctx, journeyID)
	if err != nil {
		return nil, wrap("query nodes", err)
	}
	defer rows.Close()

	nodes := []journey.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, wrap("scan node", err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("query nodes", err)
	}
	return nodes, nil
}

// DeleteNode removes a single node. Children that named it as parent keep
// their stale parent id.
func (s *SQLiteStore) DeleteNode(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", id)
	if err != nil {
		return wrap("delete node", err)
	}
	return requireRow(res, "node "+id)
}

// GetSetting decodes the JSON value stored under key into dst. It reports
// false, with dst untouched, when the key has never been set.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, wrap("get setting", err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode setting %q: %w", key, err)
	}
	return true, nil
}

// SetSetting stores value as JSON under key, replacing any previous value.
func (s *SQLiteStore) SetSetting(ctx context.Context, key string, value any) error {
	raw, err := encodeJSON(value)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, raw)
	return wrap("set setting", err)
}

// ClearScreenshotsBefore drops screenshots of nodes created before cutoff
// (unix milliseconds) and returns how many were cleared.
func (s *SQLiteStore) ClearScreenshotsBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE nodes SET screenshot = NULL WHERE screenshot IS NOT NULL AND ts < ?", cutoff,
	)
	if err != nil {
		return 0, wrap("clear screenshots", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("clear screenshots", err)
}

// DeleteJourneysBefore removes journeys last updated before cutoff (unix
// milliseconds), together with their nodes.
func (s *SQLiteStore) DeleteJourneysBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM journeys WHERE updated < ?", cutoff)
	if err != nil {
		return 0, wrap("prune journeys", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("prune journeys", err)
}

// CountExpired reports what ClearScreenshotsBefore(screenshotCutoff) and
// DeleteJourneysBefore(journeyCutoff) would remove, without removing it.
// Only the Journeys, Nodes and Screenshots fields are set.
func (s *SQLiteStore) CountExpired(ctx context.Context, screenshotCutoff, journeyCutoff int64) (*Counts, error) {
	c := &Counts{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM nodes WHERE screenshot IS NOT NULL AND ts < ?", screenshotCutoff,
	).Scan(&c.Screenshots)
	if err != nil {
		return nil, wrap("count expired screenshots", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT j.id), COUNT(n.id)
		FROM journeys j LEFT JOIN nodes n ON n.journey_id = j.id
		WHERE j.updated < ?
	`, journeyCutoff).Scan(&c.Journeys, &c.Nodes)
	if err != nil {
		return nil, wrap("count expired journeys", err)
	}

	return c, nil
}

// PurgeAll deletes all journeys and nodes. Settings are kept.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM nodes",
		"DELETE FROM journeys",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return wrap(fmt.Sprintf("purge (%s)", stmt), err)
		}
	}
	return nil
}

// Counts returns row totals for status output.
func (s *SQLiteStore) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM journeys").Scan(&c.Journeys); err != nil {
		return nil, wrap("count journeys", err)
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(screenshot), COALESCE(SUM(LENGTH(screenshot)), 0) FROM nodes
	`).Scan(&c.Nodes, &c.Screenshots, &c.ScreenshotBytes)
	if err != nil {
		return nil, wrap("count nodes", err)
	}

	return c, nil
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.insertJourney, s.getJourney, s.updateJourney,
		s.insertNode, s.getNode, s.updateNode, s.nodesByJourney,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
