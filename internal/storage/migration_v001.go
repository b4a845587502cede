package storage

import "database/sql"

// migrateV001 creates the journey schema: journeys, their nodes, and the
// settings key/value table. Every statement uses IF NOT EXISTS for
// idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS journeys (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			title        TEXT NOT NULL DEFAULT '',
			created      INTEGER NOT NULL,
			updated      INTEGER NOT NULL,
			tags         TEXT NOT NULL DEFAULT '[]',
			shared       BOOLEAN NOT NULL DEFAULT 0,
			root_node_id TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS nodes (
			id         TEXT PRIMARY KEY,
			journey_id INTEGER NOT NULL REFERENCES journeys(id) ON DELETE CASCADE,
			tab_id     INTEGER NOT NULL DEFAULT 0,
			url        TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL DEFAULT '',
			parent_id  TEXT,
			ts         INTEGER NOT NULL,
			duration   INTEGER NOT NULL DEFAULT 0,
			note       TEXT NOT NULL DEFAULT '',
			screenshot TEXT,
			metadata   TEXT NOT NULL DEFAULT '{}'
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_journeys_created ON journeys(created)`,
		`CREATE INDEX IF NOT EXISTS idx_journeys_updated ON journeys(updated)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_journey    ON nodes(journey_id)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_parent     ON nodes(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_ts         ON nodes(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_url        ON nodes(url)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
