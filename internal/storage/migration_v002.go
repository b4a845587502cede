package storage

import "database/sql"

// migrateV002 adds a partial index over nodes that still carry a
// screenshot, which is what retention scans.
func migrateV002(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_nodes_screenshot_ts
		ON nodes(ts) WHERE screenshot IS NOT NULL`)
	return err
}
