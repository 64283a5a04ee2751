package hookinstall

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevArk-AI/devark/internal/settings"
)

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		BinPath:            "/usr/local/bin/devark-hook",
		ClaudeSettingsPath: filepath.Join(dir, "claude", "settings.json"),
		CursorHooksPath:    filepath.Join(dir, "cursor", "hooks.json"),
	}
}

func TestInstallClaudeCreatesHookRows(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, InstallClaude(cfg))
	assert.True(t, IsClaudeInstalled(cfg))

	loaded, err := settings.Read(cfg.ClaudeSettingsPath)
	require.NoError(t, err)

	hooks := loaded["hooks"].(map[string]any)
	for _, trigger := range []string{"UserPromptSubmit", "Stop"} {
		entries := hooks[trigger].([]any)
		require.Len(t, entries, 1, trigger)
		cmds := claudeEntryCommands(entries[0])
		require.Len(t, cmds, 1)
		assert.Contains(t, cmds[0], Marker)
		assert.Contains(t, cmds[0], "--trigger "+trigger)
		assert.Contains(t, cmds[0], "--source claude-code")
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, InstallClaude(cfg))
	require.NoError(t, InstallClaude(cfg))

	loaded, err := settings.Read(cfg.ClaudeSettingsPath)
	require.NoError(t, err)
	entries := loaded["hooks"].(map[string]any)["UserPromptSubmit"].([]any)
	assert.Len(t, entries, 1)
}

func TestInstallPreservesForeignRows(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, settings.Write(cfg.ClaudeSettingsPath, settings.Map{
		"model": "opus",
		"hooks": map[string]any{
			"UserPromptSubmit": []any{
				map[string]any{
					"hooks": []any{
						map[string]any{"type": "command", "command": "other-tool --log"},
					},
				},
			},
		},
	}))

	require.NoError(t, InstallClaude(cfg))

	loaded, err := settings.Read(cfg.ClaudeSettingsPath)
	require.NoError(t, err)
	assert.Equal(t, "opus", loaded["model"])

	entries := loaded["hooks"].(map[string]any)["UserPromptSubmit"].([]any)
	require.Len(t, entries, 2)
	assert.Contains(t, claudeEntryCommands(entries[0])[0], "other-tool")
	assert.Contains(t, claudeEntryCommands(entries[1])[0], Marker)
}

func TestUninstallRemovesOnlyOurs(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, settings.Write(cfg.ClaudeSettingsPath, settings.Map{
		"hooks": map[string]any{
			"UserPromptSubmit": []any{
				map[string]any{
					"hooks": []any{
						map[string]any{"type": "command", "command": "other-tool --log"},
					},
				},
			},
		},
	}))
	require.NoError(t, InstallClaude(cfg))
	require.NoError(t, UninstallClaude(cfg))

	loaded, err := settings.Read(cfg.ClaudeSettingsPath)
	require.NoError(t, err)
	hooks := loaded["hooks"].(map[string]any)

	// The foreign row survives, our rows and the emptied Stop array do not.
	entries := hooks["UserPromptSubmit"].([]any)
	require.Len(t, entries, 1)
	assert.Contains(t, claudeEntryCommands(entries[0])[0], "other-tool")
	_, hasStop := hooks["Stop"]
	assert.False(t, hasStop)
	assert.False(t, IsClaudeInstalled(cfg))
}

func TestUninstallDropsEmptiedHooksObject(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, InstallClaude(cfg))
	require.NoError(t, UninstallClaude(cfg))

	loaded, err := settings.Read(cfg.ClaudeSettingsPath)
	require.NoError(t, err)
	_, hasHooks := loaded["hooks"]
	assert.False(t, hasHooks)
}

func TestUninstallRecognisesKnownScriptWithoutMarker(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, settings.Write(cfg.ClaudeSettingsPath, settings.Map{
		"hooks": map[string]any{
			"UserPromptSubmit": []any{
				map[string]any{
					"hooks": []any{
						map[string]any{"type": "command", "command": "~/.devark/devark_sync.sh"},
					},
				},
			},
		},
	}))

	require.NoError(t, UninstallClaude(cfg))

	loaded, err := settings.Read(cfg.ClaudeSettingsPath)
	require.NoError(t, err)
	_, hasHooks := loaded["hooks"]
	assert.False(t, hasHooks)
}

func TestCursorInstallAndUninstall(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, InstallCursor(cfg))

	loaded, err := settings.Read(cfg.CursorHooksPath)
	require.NoError(t, err)
	assert.EqualValues(t, 1, loaded["version"])

	hooks := loaded["hooks"].(map[string]any)
	entries := hooks["beforeSubmitPrompt"].([]any)
	require.Len(t, entries, 1)
	cmd := entries[0].(map[string]any)["command"].(string)
	assert.Contains(t, cmd, Marker)
	assert.Contains(t, cmd, "--source cursor")

	require.NoError(t, UninstallCursor(cfg))
	loaded, err = settings.Read(cfg.CursorHooksPath)
	require.NoError(t, err)
	_, hasHooks := loaded["hooks"]
	assert.False(t, hasHooks)
	assert.EqualValues(t, 1, loaded["version"])
}

func TestUninstallMissingFilesIsNoop(t *testing.T) {
	cfg := testConfig(t)
	assert.NoError(t, Uninstall(cfg))
}
