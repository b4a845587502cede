package daemon

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/burrow/internal/config"
	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/storage"
)

func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())
	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type testServer struct {
	*httptest.Server
	store *storage.SQLiteStore
	token string
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	for _, fn := range mutate {
		fn(cfg)
	}
	store := openTestStore(t)
	_, err := config.SeedSettings(context.Background(), store, cfg)
	require.NoError(t, err)
	srv := New(cfg, store, "test", nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: store, token: cfg.Daemon.AuthToken}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, rdr)
	require.NoError(t, err)
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) event(t *testing.T, ev map[string]any) map[string]any {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/events", ev)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[map[string]any](t, resp)
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := decode[statusResponse](t, resp)
	assert.Equal(t, "test", st.Version)
	assert.True(t, st.TrackingEnabled)
	assert.Nil(t, st.CurrentJourney)
	assert.Zero(t, st.Nodes)
}

func TestEvents_BuildJourneyTree(t *testing.T) {
	ts := newTestServer(t)

	root := ts.event(t, map[string]any{"type": "navigationComplete", "tabId": 1, "url": "https://go.dev", "title": "Go"})
	require.NotEmpty(t, root["nodeId"])
	ts.event(t, map[string]any{"type": "tabActivated", "tabId": 1})
	ts.event(t, map[string]any{"type": "tabCreated", "tabId": 2, "openerTabId": 1})
	child := ts.event(t, map[string]any{"type": "navigationComplete", "tabId": 2, "url": "https://pkg.go.dev", "title": "Packages"})
	require.NotEmpty(t, child["nodeId"])

	resp := ts.do(t, http.MethodGet, "/journeys", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	journeys := decode[[]journey.Journey](t, resp)
	require.Len(t, journeys, 1)
	assert.Equal(t, "Auto Journey", journeys[0].Title)
	assert.Equal(t, root["nodeId"], journeys[0].RootNodeID)

	resp = ts.do(t, http.MethodGet, "/journeys/"+itoa(journeys[0].ID)+"/tree", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tree := decode[treeResponse](t, resp)
	require.NotNil(t, tree.Tree)
	assert.Equal(t, root["nodeId"], tree.Tree.ID)
	require.Len(t, tree.Tree.Children, 1)
	assert.Equal(t, child["nodeId"], tree.Tree.Children[0].ID)
	assert.Equal(t, 2, tree.Stats.NodeCount)
	assert.Equal(t, 1, tree.Stats.MaxDepth)

	resp = ts.do(t, http.MethodGet, "/journeys/"+itoa(journeys[0].ID)+"/insights", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[map[string]any](t, resp)
	assert.Contains(t, report, "summary")
	assert.Contains(t, report, "longestPath")
}

func TestEvents_Rejected(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"type":`},
		{"missing type", `{"tabId": 1}`},
		{"unknown type", `{"type": "tabExploded", "tabId": 1}`},
		{"wrong field type", `{"type": "tabActivated", "tabId": "one"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/events", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decode[errorBody](t, resp).Error)
		})
	}
}

func TestStartAndCurrentJourney(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/journeys", map[string]string{"title": "Research"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	started := decode[journey.Journey](t, resp)
	assert.Equal(t, "Research", started.Title)

	resp = ts.do(t, http.MethodPost, "/journeys", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body is optional")
	second := decode[journey.Journey](t, resp)
	assert.Regexp(t, `^Journey \d{4}-\d{2}-\d{2}$`, second.Title)

	resp = ts.do(t, http.MethodGet, "/journeys/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var current struct {
		Journey *journey.Journey `json:"journey"`
		Node    *journey.Node    `json:"node"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&current))
	require.NotNil(t, current.Journey)
	assert.Equal(t, second.ID, current.Journey.ID)
	assert.Nil(t, current.Node)
}

func TestJourneyRoutes_Errors(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/journeys/42", "/journeys/42/tree", "/journeys/42/insights", "/journeys/42/export"} {
		resp := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	resp := ts.do(t, http.MethodGet, "/journeys/abc/tree", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotesAndAha(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/nodes/current/note", map[string]string{"note": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no active tab yet")

	created := ts.event(t, map[string]any{"type": "navigationComplete", "tabId": 3, "url": "https://go.dev/blog"})
	ts.event(t, map[string]any{"type": "tabActivated", "tabId": 3})
	nodeID := created["nodeId"].(string)

	resp = ts.do(t, http.MethodPost, "/nodes/current/note", map[string]string{"note": "read later"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodPost, "/nodes/"+nodeID+"/aha", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	n, err := ts.store.GetNode(context.Background(), nodeID)
	require.NoError(t, err)
	assert.Equal(t, "read later", n.Note)
	assert.True(t, n.Metadata.AhaMoment)

	resp = ts.do(t, http.MethodPost, "/nodes/missing/aha", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExport_PrivateUsesExcludedDomains(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	ts.event(t, map[string]any{"type": "navigationComplete", "tabId": 1, "url": "https://go.dev"})
	ts.event(t, map[string]any{"type": "tabCreated", "tabId": 2, "openerTabId": 1})
	ts.event(t, map[string]any{"type": "navigationComplete", "tabId": 2, "url": "https://secret.example.com/x"})
	require.NoError(t, ts.store.SetSetting(ctx, config.KeyExcludedDomains, []string{"example.com"}))

	journeys, err := ts.store.ListJourneys(ctx)
	require.NoError(t, err)
	require.Len(t, journeys, 1)
	base := "/journeys/" + itoa(journeys[0].ID) + "/export"

	resp := ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "journey-")
	full := decode[map[string]any](t, resp)
	assert.Len(t, full["nodes"], 2)

	resp = ts.do(t, http.MethodGet, base+"?private=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	private := decode[map[string]any](t, resp)
	require.Len(t, private["nodes"], 1)
	assert.NotContains(t, mustJSON(t, private), "secret.example.com")
}

func TestImport(t *testing.T) {
	ts := newTestServer(t)

	doc := map[string]any{
		"formatVersion": "1.0",
		"journey":       map[string]any{"title": "Shared", "rootNodeId": "a"},
		"nodes": []map[string]any{
			{"id": "b", "parentId": "a", "url": "https://b.test", "title": "B"},
			{"id": "a", "url": "https://a.test", "title": "A"},
		},
	}
	resp := ts.do(t, http.MethodPost, "/import", doc)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[map[string]int64](t, resp)["id"]
	require.NotZero(t, id)

	j, err := ts.store.GetJourney(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, j.Shared)
	assert.NotEqual(t, "a", j.RootNodeID)
	assert.NotEmpty(t, j.RootNodeID)
}

func TestImport_MalformedDocument(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/import", `{"formatVersion": "1.0", "nodes": []}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "journey", body.Field)

	resp = ts.do(t, http.MethodPost, "/import", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	counts, err := ts.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.Journeys)
}

func TestBackupRestore(t *testing.T) {
	ts := newTestServer(t)
	ts.event(t, map[string]any{"type": "navigationComplete", "tabId": 1, "url": "https://go.dev"})

	resp := ts.do(t, http.MethodGet, "/backup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	resp = ts.do(t, http.MethodPost, "/restore", string(raw))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ids := decode[map[string][]int64](t, resp)["ids"]
	assert.Len(t, ids, 1)

	counts, err := ts.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Journeys)
	assert.Equal(t, int64(2), counts.Nodes)
}

func TestBearerAuth(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Daemon.AuthToken = "s3cret" })

	resp := ts.do(t, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	bad, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)

	metrics, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode, "metrics are not behind auth")
}

func TestBodyLimit(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Daemon.MaxRequestSize = 64 })

	big := `{"formatVersion": "1.0", "journey": {"title": "` + strings.Repeat("x", 200) + `"}, "nodes": []}`
	resp := ts.do(t, http.MethodPost, "/import", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.event(t, map[string]any{"type": "navigationComplete", "tabId": 1, "url": "https://go.dev"})
	ts.event(t, map[string]any{"type": "navigationComplete", "tabId": 1, "url": "https://go.dev"})
	ts.do(t, http.MethodPost, "/events", `{"type": "nope"}`)

	resp := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, "burrow_nodes_created_total 1")
	assert.Contains(t, text, `burrow_tab_events_total{result="ok",type="navigationComplete"} 2`)
	assert.Contains(t, text, `burrow_tab_events_total{result="error",type="unknown"} 1`)
	assert.Contains(t, text, `route="/events"`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "chrome-extension://abcdef", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	srv := New(cfg, openTestStore(t), "test", nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}
