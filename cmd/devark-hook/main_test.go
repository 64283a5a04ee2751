package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastAssistantText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	lines := `{"type":"message","message":{"role":"user","content":"fix the bug"}}
{"type":"message","message":{"role":"assistant","content":"looking into it"}}
not json at all
{"type":"message","message":{"role":"assistant","content":[{"type":"text","text":"fixed"},{"type":"tool_use","name":"edit"}]}}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	assert.Equal(t, "fixed", lastAssistantText(path))
}

func TestLastAssistantTextMissingFile(t *testing.T) {
	assert.Equal(t, "", lastAssistantText(filepath.Join(t.TempDir(), "nope.jsonl")))
}

func TestFlattenContent(t *testing.T) {
	assert.Equal(t, "plain", flattenContent("plain"))
	assert.Equal(t, "a\nb", flattenContent([]any{
		map[string]any{"type": "text", "text": "a"},
		map[string]any{"type": "tool_use", "name": "bash"},
		map[string]any{"type": "text", "text": "b"},
	}))
	assert.Equal(t, "", flattenContent(42))
}

func TestHookInputFallbacks(t *testing.T) {
	in := hookInput{ConversationID: "conv-1", Text: "hello"}
	assert.Equal(t, "conv-1", in.sessionID())
	assert.Equal(t, "hello", in.promptText())

	in = hookInput{SessionID: "sess-1", Prompt: "hi", Text: "ignored"}
	assert.Equal(t, "sess-1", in.sessionID())
	assert.Equal(t, "hi", in.promptText())
}

func TestHandleRejectsUnknownTrigger(t *testing.T) {
	err := handle("PostToolUse", "claude-code", hookInput{})
	assert.Error(t, err)
}
