package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevArk-AI/devark/pkg/models"
)

func writeTranscript(t *testing.T, projectsDir, project, session string, lines []string) {
	t.Helper()
	dir := filepath.Join(projectsDir, project)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, session+".jsonl"), []byte(content), 0o644))
}

func sampleLines() []string {
	return []string{
		`{"type":"user","sessionId":"sess-1","cwd":"/home/u/project","timestamp":"2026-08-30T10:00:00Z","message":{"role":"user","content":"fix the login bug"}}`,
		`{"type":"assistant","timestamp":"2026-08-30T10:00:30Z","message":{"role":"assistant","model":"claude-sonnet-4","content":[{"type":"text","text":"Looking at the login flow."}],"usage":{"input_tokens":120,"output_tokens":80}}}`,
		`{"type":"user","timestamp":"2026-08-30T10:01:00Z","message":{"role":"user","content":[{"type":"tool_result","content":"ok"}]}}`,
		`{"type":"user","timestamp":"2026-08-30T10:05:00Z","message":{"role":"user","content":"now add a regression test"}}`,
		`{"type":"summary","summary":"Fixed login null check"}`,
	}
}

func TestIsAvailable(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, NewReaderAt(dir).IsAvailable())
	assert.False(t, NewReaderAt(filepath.Join(dir, "missing")).IsAvailable())
}

func TestReadSessionIndex(t *testing.T) {
	projects := t.TempDir()
	writeTranscript(t, projects, "home-u-project", "sess-1", sampleLines())

	indices, err := NewReaderAt(projects).ReadSessionIndex(IndexOptions{})
	require.NoError(t, err)
	require.Len(t, indices, 1)

	idx := indices[0]
	assert.Equal(t, "sess-1", idx.ID)
	assert.Equal(t, models.SourceClaudeCode.ID, idx.Source)
	// Tool-result echo does not count as a user prompt.
	assert.Equal(t, 2, idx.PromptCount)
	assert.Equal(t, "/home/u/project", idx.ProjectPath)
	assert.Equal(t, "project", idx.WorkspaceName)
	assert.Equal(t, int64(300), idx.DurationSec)
	require.NotNil(t, idx.TokenUsage)
	assert.Equal(t, int64(120), idx.TokenUsage.InputTokens)
	assert.Equal(t, int64(80), idx.TokenUsage.OutputTokens)
	assert.False(t, idx.TokenUsage.Estimated)
}

func TestReadSessionIndexSince(t *testing.T) {
	projects := t.TempDir()
	writeTranscript(t, projects, "home-u-project", "sess-1", sampleLines())

	since := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	indices, err := NewReaderAt(projects).ReadSessionIndex(IndexOptions{Since: since})
	require.NoError(t, err)
	assert.Empty(t, indices)
}

func TestEstimatedTokenUsage(t *testing.T) {
	projects := t.TempDir()
	writeTranscript(t, projects, "p", "sess-2", []string{
		`{"type":"user","timestamp":"2026-08-30T10:00:00Z","message":{"role":"user","content":"write documentation for the upload engine"}}`,
		`{"type":"assistant","timestamp":"2026-08-30T10:00:10Z","message":{"role":"assistant","content":[{"type":"text","text":"Here is the documentation."}]}}`,
	})

	indices, err := NewReaderAt(projects).ReadSessionIndex(IndexOptions{})
	require.NoError(t, err)
	require.Len(t, indices, 1)
	require.NotNil(t, indices[0].TokenUsage)
	assert.True(t, indices[0].TokenUsage.Estimated)
	assert.Greater(t, indices[0].TokenUsage.TotalTokens, int64(0))
}

func TestGetSessionDetails(t *testing.T) {
	projects := t.TempDir()
	writeTranscript(t, projects, "home-u-project", "sess-1", sampleLines())

	details, err := NewReaderAt(projects).GetSessionDetails("sess-1")
	require.NoError(t, err)
	require.NotNil(t, details)

	assert.Len(t, details.Messages, 4)
	assert.Equal(t, models.RoleUser, details.Messages[0].Role)
	assert.Equal(t, "fix the login bug", details.Messages[0].Content)
	require.NotNil(t, details.ModelInfo)
	assert.Equal(t, "claude-sonnet-4", details.ModelInfo.Name)

	// First user prompt leads highlights, then transcript summaries.
	require.Len(t, details.Highlights, 2)
	assert.Equal(t, "fix the login bug", details.Highlights[0])
	assert.Equal(t, "Fixed login null check", details.Highlights[1])
}

func TestGetSessionDetailsUnknown(t *testing.T) {
	details, err := NewReaderAt(t.TempDir()).GetSessionDetails("nope")
	require.NoError(t, err)
	assert.Nil(t, details)
}

func TestPartialTrailingLineRecovered(t *testing.T) {
	projects := t.TempDir()
	dir := filepath.Join(projects, "p")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	// The final line is mid-write: truncated after a balanced object would
	// have closed. Recovery should still salvage the earlier lines and the
	// recoverable part of the tail.
	content := `{"type":"user","timestamp":"2026-08-30T10:00:00Z","message":{"role":"user","content":"hello"}}` + "\n" +
		`{"type":"assistant","timestamp":"2026-08-30T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"hi"}]}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.jsonl"), []byte(content), 0o644))

	indices, err := NewReaderAt(projects).ReadSessionIndex(IndexOptions{})
	require.NoError(t, err)
	require.Len(t, indices, 1)
	assert.Equal(t, 1, indices[0].PromptCount)
}

func TestReadSessionsLimit(t *testing.T) {
	projects := t.TempDir()
	writeTranscript(t, projects, "a", "s1", sampleLines())
	writeTranscript(t, projects, "b", "s2", sampleLines())

	sessions, err := NewReaderAt(projects).ReadSessions(ReadOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.NotEmpty(t, sessions[0].Messages)
}
