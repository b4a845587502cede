package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestEnv returns an env over a migrated in-memory store with settings
// seeded from the default config. The daemon address points at a port
// nothing listens on.
func newTestEnv(t *testing.T) (*env, *storage.SQLiteStore) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())
	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	cfg.Daemon.Host = "127.0.0.1"
	cfg.Daemon.Port = 1
	_, err = config.SeedSettings(context.Background(), store, cfg)
	require.NoError(t, err)

	return &env{cfg: cfg, dbPath: ":memory:", store: store, logger: zap.NewNop()}, store
}

// seedJourney stores a journey with the given nodes and returns its id.
func seedJourney(t *testing.T, store storage.Store, title string, updated int64, nodes ...journey.Node) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateJourney(ctx, &journey.Journey{Title: title, Created: updated, Updated: updated, Tags: []string{}})
	require.NoError(t, err)
	for i := range nodes {
		nodes[i].JourneyID = id
		require.NoError(t, store.CreateNode(ctx, &nodes[i]))
	}
	if len(nodes) > 0 {
		j, err := store.GetJourney(ctx, id)
		require.NoError(t, err)
		j.RootNodeID = nodes[0].ID
		require.NoError(t, store.UpdateJourney(ctx, j))
	}
	return id
}

func page(id, parent, url, title string, durationMs int64) journey.Node {
	return journey.Node{ID: id, ParentID: parent, URL: url, Title: title, Duration: durationMs}
}

func counts(t *testing.T, store *storage.SQLiteStore) *storage.Counts {
	t.Helper()
	c, err := store.Counts(context.Background())
	require.NoError(t, err)
	return c
}
