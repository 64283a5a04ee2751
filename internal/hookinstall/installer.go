// Package hookinstall injects devark capture hooks into the settings files
// of supported tools and removes them again. Rows written by devark are
// identified exclusively by an embedded marker substring; everything else
// in the tool's file is preserved.
package hookinstall

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/internal/settings"
)

// Marker tags every hook row devark writes.
const Marker = "devark-sync"

// knownScripts lets uninstall recognise rows written by older versions
// that predate the marker.
var knownScripts = []string{"devark-hook", "devark_sync.sh"}

// claudeTriggers are the hook events devark captures from the CLI.
var claudeTriggers = []string{"UserPromptSubmit", "Stop"}

// cursorTriggers are the hook events devark captures from the IDE.
var cursorTriggers = []string{"beforeSubmitPrompt", "afterAgentResponse"}

// Config drives an install or uninstall run.
type Config struct {
	// BinPath is the devark-hook binary invoked by the rendered command.
	BinPath string
	// ClaudeSettingsPath overrides the default global settings file.
	ClaudeSettingsPath string
	// CursorHooksPath overrides the default global hooks file.
	CursorHooksPath string
}

func (c Config) claudePath() string {
	if c.ClaudeSettingsPath != "" {
		return c.ClaudeSettingsPath
	}
	return paths.ClaudeSettingsPath()
}

func (c Config) cursorPath() string {
	if c.CursorHooksPath != "" {
		return c.CursorHooksPath
	}
	return paths.CursorGlobalHooksPath()
}

func (c Config) binPath() string {
	if c.BinPath != "" {
		return c.BinPath
	}
	return "devark-hook"
}

// renderCommand builds the shell command for one trigger. The marker flag
// doubles as the ownership tag uninstall looks for.
func renderCommand(binPath, trigger, source string) string {
	return fmt.Sprintf("%s --trigger %s --source %s --marker %s", binPath, trigger, source, Marker)
}

// ours reports whether a command string was written by devark.
func ours(command string) bool {
	if strings.Contains(command, Marker) {
		return true
	}
	for _, script := range knownScripts {
		if strings.Contains(command, script) {
			return true
		}
	}
	return false
}

// InstallClaude writes the CLI hooks into the global settings file,
// replacing any rows devark wrote before.
func InstallClaude(cfg Config) error {
	path := cfg.claudePath()
	current, err := settings.Read(path)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	hooks := asObject(current["hooks"])
	for _, trigger := range claudeTriggers {
		entries := withoutOurs(asArray(hooks[trigger]), claudeEntryCommands)
		entries = append(entries, map[string]any{
			"hooks": []any{
				map[string]any{
					"type":    "command",
					"command": renderCommand(cfg.binPath(), trigger, "claude-code"),
				},
			},
		})
		hooks[trigger] = entries
	}
	current["hooks"] = hooks

	if err := settings.Write(path, current); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	log.Debug().Str("path", path).Msg("Installed CLI hooks")
	return nil
}

// InstallCursor writes the IDE hooks into the global hooks file.
func InstallCursor(cfg Config) error {
	path := cfg.cursorPath()
	current, err := settings.Read(path)
	if err != nil {
		return fmt.Errorf("read hooks file: %w", err)
	}
	if _, ok := current["version"]; !ok {
		current["version"] = 1
	}

	hooks := asObject(current["hooks"])
	for _, trigger := range cursorTriggers {
		entries := withoutOurs(asArray(hooks[trigger]), cursorEntryCommands)
		entries = append(entries, map[string]any{
			"command": renderCommand(cfg.binPath(), trigger, "cursor"),
		})
		hooks[trigger] = entries
	}
	current["hooks"] = hooks

	if err := settings.Write(path, current); err != nil {
		return fmt.Errorf("write hooks file: %w", err)
	}
	log.Debug().Str("path", path).Msg("Installed IDE hooks")
	return nil
}

// Install writes hooks for every supported tool. Per-tool failures are
// collected so one broken file does not block the other tool.
func Install(cfg Config) error {
	var errs []string
	if err := InstallClaude(cfg); err != nil {
		errs = append(errs, err.Error())
	}
	if err := InstallCursor(cfg); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("install hooks: %s", strings.Join(errs, "; "))
	}
	return nil
}

// UninstallClaude strips devark rows from every hook list in the CLI
// settings file and drops arrays that end up empty.
func UninstallClaude(cfg Config) error {
	path := cfg.claudePath()
	current, err := settings.Read(path)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	hooks := asObject(current["hooks"])
	if len(hooks) == 0 {
		return nil
	}
	for trigger, raw := range hooks {
		kept := withoutOurs(asArray(raw), claudeEntryCommands)
		if len(kept) == 0 {
			delete(hooks, trigger)
		} else {
			hooks[trigger] = kept
		}
	}
	if len(hooks) == 0 {
		delete(current, "hooks")
	} else {
		current["hooks"] = hooks
	}

	if err := settings.Write(path, current); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// UninstallCursor strips devark rows from the IDE hooks file.
func UninstallCursor(cfg Config) error {
	path := cfg.cursorPath()
	current, err := settings.Read(path)
	if err != nil {
		return fmt.Errorf("read hooks file: %w", err)
	}

	hooks := asObject(current["hooks"])
	if len(hooks) == 0 {
		return nil
	}
	for trigger, raw := range hooks {
		kept := withoutOurs(asArray(raw), cursorEntryCommands)
		if len(kept) == 0 {
			delete(hooks, trigger)
		} else {
			hooks[trigger] = kept
		}
	}
	if len(hooks) == 0 {
		delete(current, "hooks")
	} else {
		current["hooks"] = hooks
	}

	if err := settings.Write(path, current); err != nil {
		return fmt.Errorf("write hooks file: %w", err)
	}
	return nil
}

// Uninstall removes devark hooks from every supported tool.
func Uninstall(cfg Config) error {
	var errs []string
	if err := UninstallClaude(cfg); err != nil {
		errs = append(errs, err.Error())
	}
	if err := UninstallCursor(cfg); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("uninstall hooks: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsClaudeInstalled reports whether a devark prompt hook is present.
func IsClaudeInstalled(cfg Config) bool {
	current, err := settings.Read(cfg.claudePath())
	if err != nil {
		return false
	}
	entries := asArray(asObject(current["hooks"])["UserPromptSubmit"])
	for _, entry := range entries {
		for _, cmd := range claudeEntryCommands(entry) {
			if ours(cmd) {
				return true
			}
		}
	}
	return false
}

// claudeEntryCommands extracts the command strings from one CLI matcher
// group: { matcher?, hooks: [ { type, command } ] }.
func claudeEntryCommands(entry any) []string {
	var out []string
	for _, h := range asArray(asObject(entry)["hooks"]) {
		if cmd, ok := asObject(h)["command"].(string); ok {
			out = append(out, cmd)
		}
	}
	return out
}

// cursorEntryCommands extracts the command string from one IDE hook row:
// { command }.
func cursorEntryCommands(entry any) []string {
	if cmd, ok := asObject(entry)["command"].(string); ok {
		return []string{cmd}
	}
	return nil
}

// withoutOurs drops entries whose any command carries the marker or a
// known script path.
func withoutOurs(entries []any, commands func(any) []string) []any {
	var kept []any
	for _, entry := range entries {
		mine := false
		for _, cmd := range commands(entry) {
			if ours(cmd) {
				mine = true
				break
			}
		}
		if !mine {
			kept = append(kept, entry)
		}
	}
	return kept
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asArray(v any) []any {
	if a, ok := v.([]any); ok {
		return a
	}
	return nil
}
