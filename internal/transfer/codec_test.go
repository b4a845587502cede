package transfer

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/burrow/internal/journey"
	"github.com/runnerr0/burrow/internal/storage"
)

var fixedNow = time.UnixMilli(1700000000000)

// memStore is an in-memory Store that records writes and can fail the
// Nth node insert.
type memStore struct {
	journeys    map[int64]*journey.Journey
	nodes       []journey.Node
	nextID      int64
	writes      int
	failNodeAt  int // 1-based; 0 never fails
	nodeInserts int
}

func newMemStore() *memStore {
	return &memStore{journeys: map[int64]*journey.Journey{}, nextID: 1}
}

func (m *memStore) GetJourney(_ context.Context, id int64) (*journey.Journey, error) {
	j, ok := m.journeys[id]
	if !ok {
		return nil, fmt.Errorf("journey %d: %w", id, storage.ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) ListJourneys(_ context.Context) ([]journey.Journey, error) {
	out := []journey.Journey{}
	for id := int64(1); id < m.nextID; id++ {
		if j, ok := m.journeys[id]; ok {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *memStore) CreateJourney(_ context.Context, j *journey.Journey) (int64, error) {
	m.writes++
	j.ID = m.nextID
	m.nextID++
	cp := *j
	m.journeys[j.ID] = &cp
	return j.ID, nil
}

func (m *memStore) UpdateJourney(_ context.Context, j *journey.Journey) error {
	m.writes++
	cp := *j
	m.journeys[j.ID] = &cp
	return nil
}

func (m *memStore) CreateNode(_ context.Context, n *journey.Node) error {
	m.nodeInserts++
	if m.failNodeAt > 0 && m.nodeInserts == m.failNodeAt {
		return &storage.StorageError{Op: "insert node", Err: errors.New("disk full")}
	}
	m.writes++
	m.nodes = append(m.nodes, *n)
	return nil
}

func (m *memStore) GetNodesByJourney(_ context.Context, journeyID int64) ([]journey.Node, error) {
	out := []journey.Node{}
	for _, n := range m.nodes {
		if n.JourneyID == journeyID {
			out = append(out, n)
		}
	}
	return out, nil
}

// seed stores a journey with the given nodes directly, bypassing the codec.
func (m *memStore) seed(j journey.Journey, nodes ...journey.Node) int64 {
	id, _ := m.CreateJourney(context.Background(), &j)
	for _, n := range nodes {
		n.JourneyID = id
		m.nodes = append(m.nodes, n)
	}
	m.writes = 0
	return id
}

func sequentialIDs() func() string {
	i := 0
	return func() string {
		i++
		return fmt.Sprintf("new_%d", i)
	}
}

func newTestCodec(store Store) *Codec {
	return New(store, nil,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
	)
}

func page(id, parent, url string) journey.Node {
	return journey.Node{ID: id, ParentID: parent, URL: url, Title: "Title " + id}
}

// --- Export ---

func TestExport_StripsScreenshotsByDefault(t *testing.T) {
	store := newMemStore()
	root := page("root", "", "https://go.dev")
	root.Screenshot = "data:image/jpeg;base64,AAAA"
	id := store.seed(journey.Journey{Title: "Go", RootNodeID: "root"}, root, page("child", "root", "https://pkg.go.dev"))
	c := newTestCodec(store)

	doc, err := c.Export(context.Background(), id, false)
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, doc.FormatVersion)
	assert.Equal(t, "Go", doc.Journey.Title)
	assert.Equal(t, fixedNow.UnixMilli(), doc.ExportedAt)
	assert.Equal(t, ProducerMetadata{Producer: Producer, Format: ExportFormat}, doc.ProducerMetadata)
	require.Len(t, doc.Nodes, 2)
	assert.Empty(t, doc.Nodes[0].Screenshot)
	require.NotNil(t, doc.Tree)
	assert.Equal(t, "root", doc.Tree.ID)
	assert.Empty(t, doc.Tree.Screenshot)
	require.Len(t, doc.Tree.Children, 1)

	// Stored state is untouched.
	stored, _ := store.GetNodesByJourney(context.Background(), id)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", stored[0].Screenshot)
	assert.Zero(t, store.writes)
}

func TestExport_IncludesScreenshotsWhenAsked(t *testing.T) {
	store := newMemStore()
	root := page("root", "", "https://go.dev")
	root.Screenshot = "data:image/jpeg;base64,AAAA"
	id := store.seed(journey.Journey{Title: "Go"}, root)

	doc, err := newTestCodec(store).Export(context.Background(), id, true)
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", doc.Nodes[0].Screenshot)
}

func TestExport_MissingJourney(t *testing.T) {
	_, err := newTestCodec(newMemStore()).Export(context.Background(), 42, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestExportWithPrivacyFilter(t *testing.T) {
	store := newMemStore()
	id := store.seed(journey.Journey{Title: "Mixed", RootNodeID: "root"},
		page("root", "", "https://search.example.com/?q=go"),
		page("bank", "root", "https://online.mybank.com/login"),
		page("behind-bank", "bank", "https://docs.example.com/after"),
		page("lookalike", "root", "https://notabank.com/"),
		page("mail", "root", "https://mail.google.com/inbox"),
		page("garbage", "root", "not a url"),
		page("badesc", "root", "https://%zz/"),
		page("kept", "root", "https://go.dev/blog"),
		page("shouting", "root", "https://Online.MyBank.COM/login"),
		page("upper-mail", "root", "https://MAIL.GOOGLE.COM/u/0"),
		page("upper-entry", "root", "https://www.Private.example/"),
	)

	doc, err := newTestCodec(store).ExportWithPrivacyFilter(context.Background(), id,
		[]string{"bank.com", "mail.google.com", "", "PRIVATE.example"})
	require.NoError(t, err)

	var ids []string
	for _, n := range doc.Nodes {
		ids = append(ids, n.ID)
	}
	// Substring matching also drops "notabank.com".
	assert.Equal(t, []string{"root", "behind-bank", "kept"}, ids)

	// The tree only contains surviving nodes; the orphan becomes the
	// last parentless node and wins the root.
	require.NotNil(t, doc.Tree)
	seen := map[string]bool{}
	doc.Tree.Walk(func(n *journey.Tree, _ int) bool {
		seen[n.ID] = true
		return true
	})
	assert.False(t, seen["bank"])
	assert.False(t, seen["mail"])
	assert.False(t, seen["shouting"], "host case does not matter")
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	assert.NotContains(t, buf.String(), "MyBank")
}

// --- Import ---

func TestImport_RemapsIdentifiers(t *testing.T) {
	store := newMemStore()
	c := newTestCodec(store)
	doc := &Document{
		FormatVersion: FormatVersion,
		Journey: &journey.Journey{
			ID: 99, Title: "Shared hole", Created: 1, Updated: 2,
			Tags: []string{"go"}, RootNodeID: "a",
		},
		Nodes: []journey.Node{
			page("a", "", "https://a.example"),
			page("b", "a", "https://b.example"),
			page("c", "b", "https://c.example"),
		},
	}

	id, err := c.Import(context.Background(), doc)
	require.NoError(t, err)

	j, err := store.GetJourney(context.Background(), id)
	require.NoError(t, err)
	assert.NotEqual(t, int64(99), j.ID)
	assert.Equal(t, "Shared hole", j.Title)
	assert.Equal(t, []string{"go"}, j.Tags)
	assert.True(t, j.Shared)
	assert.Equal(t, fixedNow.UnixMilli(), j.Created)
	assert.Equal(t, fixedNow.UnixMilli(), j.Updated)
	assert.Equal(t, "new_1", j.RootNodeID)

	nodes, _ := store.GetNodesByJourney(context.Background(), id)
	require.Len(t, nodes, 3)
	assert.Equal(t, journey.Node{ID: "new_1", JourneyID: id, URL: "https://a.example", Title: "Title a"}, nodes[0])
	assert.Equal(t, "new_1", nodes[1].ParentID)
	assert.Equal(t, "new_2", nodes[2].ParentID)
}

func TestImport_ChildBeforeParent(t *testing.T) {
	store := newMemStore()
	doc := &Document{
		FormatVersion: FormatVersion,
		Journey:       &journey.Journey{Title: "Unordered", RootNodeID: "root"},
		Nodes: []journey.Node{
			page("leaf", "mid", "https://leaf.example"),
			page("mid", "root", "https://mid.example"),
			page("root", "", "https://root.example"),
			page("stray", "gone", "https://stray.example"),
		},
	}

	id, err := newTestCodec(store).Import(context.Background(), doc)
	require.NoError(t, err)

	nodes, _ := store.GetNodesByJourney(context.Background(), id)
	require.Len(t, nodes, 4)
	byURL := map[string]journey.Node{}
	for _, n := range nodes {
		byURL[n.URL] = n
	}
	root := byURL["https://root.example"]
	mid := byURL["https://mid.example"]
	leaf := byURL["https://leaf.example"]
	assert.Empty(t, root.ParentID)
	assert.Equal(t, root.ID, mid.ParentID)
	assert.Equal(t, mid.ID, leaf.ParentID)
	// A parent outside the document stays as the old id.
	assert.Equal(t, "gone", byURL["https://stray.example"].ParentID)

	j, _ := store.GetJourney(context.Background(), id)
	assert.Equal(t, root.ID, j.RootNodeID)
}

func TestImport_UnmappedRootLeftUnset(t *testing.T) {
	store := newMemStore()
	doc := &Document{
		FormatVersion: FormatVersion,
		Journey:       &journey.Journey{Title: "T", RootNodeID: "elsewhere"},
		Nodes:         []journey.Node{page("a", "", "https://a.example")},
	}

	id, err := newTestCodec(store).Import(context.Background(), doc)
	require.NoError(t, err)

	j, _ := store.GetJourney(context.Background(), id)
	assert.Empty(t, j.RootNodeID)
}

func TestImport_FormatErrors(t *testing.T) {
	valid := func() *Document {
		return &Document{
			FormatVersion: FormatVersion,
			Journey:       &journey.Journey{Title: "T"},
			Nodes:         []journey.Node{},
		}
	}
	tests := []struct {
		name  string
		doc   *Document
		field string
	}{
		{"nil document", nil, "document"},
		{"missing version", func() *Document { d := valid(); d.FormatVersion = ""; return d }(), "formatVersion"},
		{"missing journey", func() *Document { d := valid(); d.Journey = nil; return d }(), "journey"},
		{"missing nodes", func() *Document { d := valid(); d.Nodes = nil; return d }(), "nodes"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			_, err := newTestCodec(store).Import(context.Background(), tc.doc)

			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tc.field, fe.Field)
			assert.Zero(t, store.writes)
		})
	}
}

func TestImport_EmptyNodesIsValid(t *testing.T) {
	store := newMemStore()
	id, err := newTestCodec(store).Import(context.Background(), &Document{
		FormatVersion: FormatVersion,
		Journey:       &journey.Journey{Title: "Empty"},
		Nodes:         []journey.Node{},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestImport_StorageFailureLeavesPartialState(t *testing.T) {
	store := newMemStore()
	store.failNodeAt = 2
	doc := &Document{
		FormatVersion: FormatVersion,
		Journey:       &journey.Journey{Title: "T", RootNodeID: "a"},
		Nodes: []journey.Node{
			page("a", "", "https://a.example"),
			page("b", "a", "https://b.example"),
			page("c", "a", "https://c.example"),
		},
	}

	id, err := newTestCodec(store).Import(context.Background(), doc)

	var se *storage.StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert node", se.Op)
	assert.NotZero(t, id)

	nodes, _ := store.GetNodesByJourney(context.Background(), id)
	assert.Len(t, nodes, 1)
	j, _ := store.GetJourney(context.Background(), id)
	assert.Empty(t, j.RootNodeID)
}

func TestParentsFirst(t *testing.T) {
	ids := func(nodes []journey.Node) []string {
		out := make([]string, len(nodes))
		for i, n := range nodes {
			out[i] = n.ID
		}
		return out
	}

	ordered := []journey.Node{page("a", "", ""), page("b", "a", ""), page("c", "a", "")}
	assert.Equal(t, []string{"a", "b", "c"}, ids(parentsFirst(ordered)))

	reversed := []journey.Node{page("c", "b", ""), page("b", "a", ""), page("a", "", "")}
	assert.Equal(t, []string{"a", "b", "c"}, ids(parentsFirst(reversed)))

	cycle := []journey.Node{page("x", "y", ""), page("y", "x", "")}
	assert.Equal(t, []string{"y", "x"}, ids(parentsFirst(cycle)))

	self := []journey.Node{page("s", "s", "")}
	assert.Equal(t, []string{"s"}, ids(parentsFirst(self)))
}

// --- Wire format ---

func TestDecode_LegacyKeys(t *testing.T) {
	raw := `{
		"version": "1.0",
		"journey": {"id": 3, "title": "Old", "created": 1, "updated": 2, "tags": [], "shared": false, "rootNodeId": "n1"},
		"nodes": [
			{"id": "n1", "journeyId": 3, "tabId": 5, "url": "https://a.example", "title": "A", "parentId": null,
			 "timestamp": 10, "duration": 2000, "metadata": {"keywords": ["alpha"], "ahaMoment": true}}
		],
		"tree": null,
		"exportedAt": 1700000000000,
		"metadata": {"extension": "Collaborative Rabbit Hole", "format": "journey-export-v1"}
	}`

	doc, err := Decode(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "1.0", doc.FormatVersion)
	assert.Equal(t, "Old", doc.Journey.Title)
	assert.Equal(t, "n1", doc.Journey.RootNodeID)
	require.Len(t, doc.Nodes, 1)
	assert.Empty(t, doc.Nodes[0].ParentID)
	assert.Equal(t, 5, doc.Nodes[0].TabID)
	assert.True(t, doc.Nodes[0].Metadata.AhaMoment)
	assert.Equal(t, ProducerMetadata{Producer: "Collaborative Rabbit Hole", Format: "journey-export-v1"}, doc.ProducerMetadata)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"formatVersion": `))
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "document", fe.Field)
}

func TestDecode_MissingNodesRejectedOnImport(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"formatVersion":"1.0","journey":{"title":"T"}}`))
	require.NoError(t, err)

	store := newMemStore()
	_, err = newTestCodec(store).Import(context.Background(), doc)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "nodes", fe.Field)
	assert.Zero(t, store.writes)
}

func TestEncodeDecode_PreservesDocument(t *testing.T) {
	store := newMemStore()
	id := store.seed(journey.Journey{Title: "RT", Tags: []string{"x"}, RootNodeID: "r"},
		page("r", "", "https://r.example"), page("k", "r", "https://k.example"))
	c := newTestCodec(store)

	doc, err := c.Export(context.Background(), id, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	assert.Contains(t, buf.String(), `"formatVersion": "1.0"`)
	assert.Contains(t, buf.String(), `"producerMetadata"`)

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

// --- Backup ---

func TestBackup_RoundTrip(t *testing.T) {
	src := newMemStore()
	src.seed(journey.Journey{Title: "First", Shared: false, RootNodeID: "a"},
		page("a", "", "https://a.example"), page("b", "a", "https://b.example"))
	src.seed(journey.Journey{Title: "Second", Shared: true},
		page("c", "", "https://c.example"))

	backup, err := newTestCodec(src).ExportAll(context.Background())
	require.NoError(t, err)
	require.Len(t, backup.Journeys, 2)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, backup))
	decoded, err := DecodeBackup(&buf)
	require.NoError(t, err)

	dst := newMemStore()
	ids, err := newTestCodec(dst).RestoreBackup(context.Background(), decoded)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	first, _ := dst.GetJourney(context.Background(), ids[0])
	assert.Equal(t, "First", first.Title)
	assert.False(t, first.Shared)
	second, _ := dst.GetJourney(context.Background(), ids[1])
	assert.True(t, second.Shared)

	nodes, _ := dst.GetNodesByJourney(context.Background(), ids[0])
	require.Len(t, nodes, 2)
	assert.Equal(t, first.RootNodeID, nodes[0].ID)
	assert.Equal(t, nodes[0].ID, nodes[1].ParentID)
}

func TestRestoreBackup_ValidatesBeforeWriting(t *testing.T) {
	store := newMemStore()
	b := &Backup{
		FormatVersion: FormatVersion,
		Journeys: []BackupEntry{
			{Journey: &journey.Journey{Title: "ok"}, Nodes: []journey.Node{}},
			{Journey: nil, Nodes: []journey.Node{}},
		},
	}

	_, err := newTestCodec(store).RestoreBackup(context.Background(), b)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "journeys[1].journey", fe.Field)
	assert.Zero(t, store.writes)
}

func TestDecodeBackup_LegacyVersion(t *testing.T) {
	b, err := DecodeBackup(strings.NewReader(`{"version":"1.0","exportedAt":5,"journeys":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "1.0", b.FormatVersion)
	assert.Empty(t, b.Journeys)
}

// --- Against SQLite ---

func openSQLiteStore(t *testing.T) *storage.SQLiteStore {
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

func TestExportImport_RoundTripSQLite(t *testing.T) {
	store := openSQLiteStore(t)
	ctx := context.Background()

	orig := &journey.Journey{Title: "Rabbit hole", Created: 1, Updated: 1, RootNodeID: "root"}
	origID, err := store.CreateJourney(ctx, orig)
	require.NoError(t, err)
	for _, n := range []journey.Node{
		page("root", "", "https://root.example"),
		page("a", "root", "https://a.example"),
		page("b", "a", "https://b.example"),
		page("c", "root", "https://c.example"),
	} {
		n.JourneyID = origID
		require.NoError(t, store.CreateNode(ctx, &n))
	}

	// Default id generator, real clock.
	c := New(store, nil)
	doc, err := c.Export(ctx, origID, false)
	require.NoError(t, err)
	newID, err := c.Import(ctx, doc)
	require.NoError(t, err)
	require.NotEqual(t, origID, newID)

	origNodes, err := store.GetNodesByJourney(ctx, origID)
	require.NoError(t, err)
	newNodes, err := store.GetNodesByJourney(ctx, newID)
	require.NoError(t, err)
	require.Len(t, newNodes, len(origNodes))

	origIDs := map[string]bool{}
	for _, n := range origNodes {
		origIDs[n.ID] = true
	}
	for _, n := range newNodes {
		assert.False(t, origIDs[n.ID], "imported id %s collides", n.ID)
		assert.True(t, strings.HasPrefix(n.ID, "node_imported_"))
	}

	shape := func(tree *journey.Tree) []string {
		var out []string
		tree.Walk(func(n *journey.Tree, depth int) bool {
			out = append(out, fmt.Sprintf("%d:%s:%s", depth, n.URL, n.Title))
			return true
		})
		return out
	}
	assert.Equal(t, shape(journey.BuildTree(origNodes)), shape(journey.BuildTree(newNodes)))

	j, err := store.GetJourney(ctx, newID)
	require.NoError(t, err)
	assert.True(t, j.Shared)
	assert.Equal(t, journey.BuildTree(newNodes).ID, j.RootNodeID)
}
