package adapters

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/DevArk-AI/devark/internal/cursordb"
	"github.com/DevArk-AI/devark/pkg/models"
)

// cursorFixture owns a writable state.vscdb lookalike.
type cursorFixture struct {
	t    *testing.T
	path string
}

func newCursorFixture(t *testing.T) *cursorFixture {
	t.Helper()
	f := &cursorFixture{t: t, path: filepath.Join(t.TempDir(), "state.vscdb")}
	f.exec(`CREATE TABLE cursorDiskKV (key TEXT PRIMARY KEY, value BLOB)`)
	return f
}

func (f *cursorFixture) exec(query string, args ...any) {
	f.t.Helper()
	db, err := sql.Open("sqlite", f.path)
	require.NoError(f.t, err)
	defer db.Close()
	_, err = db.Exec(query, args...)
	require.NoError(f.t, err)
}

func (f *cursorFixture) putSession(id, folder string, turns []map[string]any) {
	f.t.Helper()
	raw, err := json.Marshal(map[string]any{
		"composerId":    id,
		"folderPath":    folder,
		"createdAt":     time.Now().Add(-time.Hour).UnixMilli(),
		"lastUpdatedAt": time.Now().UnixMilli(),
		"conversation":  turns,
	})
	require.NoError(f.t, err)
	f.exec(`INSERT OR REPLACE INTO cursorDiskKV (key, value) VALUES (?, ?)`, "composerData:"+id, raw)
}

func userTurn(id, text string) map[string]any {
	return map[string]any{"type": 1, "bubbleId": id, "text": text}
}

func newTestCursorAdapter(t *testing.T, f *cursorFixture) (*CursorAdapter, *promptCollector) {
	t.Helper()
	adapter := NewCursorAdapter(CursorConfig{
		DB:           cursordb.NewReaderAt(f.path),
		HookDir:      filepath.Join(t.TempDir(), "devark-hooks"),
		PollInterval: 30 * time.Millisecond,
	})
	collector := &promptCollector{}
	adapter.OnPrompt(collector.collect)
	require.True(t, adapter.Initialize())
	t.Cleanup(adapter.Dispose)
	return adapter, collector
}

func TestCursorHistoricalBackfillSuppressed(t *testing.T) {
	f := newCursorFixture(t)
	f.putSession("comp-1", "/home/u/webapp", []map[string]any{
		userTurn("b1", "old prompt"),
	})

	adapter, collector := newTestCursorAdapter(t, f)
	require.NoError(t, adapter.Start())

	// The pre-existing prompt was snapshotted, never emitted.
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, collector.snapshot())

	// A new bubble arrives: exactly one prompt.
	f.putSession("comp-1", "/home/u/webapp", []map[string]any{
		userTurn("b1", "old prompt"),
		userTurn("b2", "new prompt"),
	})
	assert.Eventually(t, func() bool {
		return len(collector.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	p := collector.snapshot()[0]
	assert.Equal(t, "new prompt", p.Text)
	assert.Equal(t, models.SourceCursor, p.Source)
	assert.Equal(t, "comp-1", p.Context.SourceSessionID)
	assert.Equal(t, "/home/u/webapp", p.Context.ProjectPath)

	// Repolls do not re-emit.
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, collector.snapshot(), 1)
}

func TestCursorIgnoredWorkspaceFiltered(t *testing.T) {
	f := newCursorFixture(t)
	adapter, collector := newTestCursorAdapter(t, f)
	require.NoError(t, adapter.Start())

	f.putSession("comp-ign", "/home/u/.devark/temp-standup", []map[string]any{
		userTurn("b1", "should not surface"),
	})

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, collector.snapshot())
}

func TestCursorNewSessionPromptsEmitted(t *testing.T) {
	f := newCursorFixture(t)
	adapter, collector := newTestCursorAdapter(t, f)
	require.NoError(t, adapter.Start())

	f.putSession("comp-new", "/home/u/api", []map[string]any{
		userTurn("b1", "first prompt in a fresh session"),
	})

	assert.Eventually(t, func() bool {
		return len(collector.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCursorUnavailableDB(t *testing.T) {
	adapter := NewCursorAdapter(CursorConfig{
		DB:      cursordb.NewReaderAt(filepath.Join(t.TempDir(), "missing.vscdb")),
		HookDir: t.TempDir(),
	})
	assert.False(t, adapter.Initialize())
	assert.False(t, adapter.IsAvailable())
	assert.Contains(t, adapter.Status().Info, "not found")
}
