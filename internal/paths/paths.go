// Package paths derives the per-tool file locations devark reads and writes.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName is the scratch-directory and marker namespace.
const AppName = "devark"

// EncodeProjectPath converts an absolute project path into the directory
// name the Claude CLI uses under its projects dir: every "/" becomes "-"
// and the leading "-" is dropped. "/Users/danny/dev" -> "Users-danny-dev".
func EncodeProjectPath(projectPath string) string {
	encoded := strings.ReplaceAll(projectPath, "/", "-")
	return strings.TrimPrefix(encoded, "-")
}

// HomeDir returns the user's home directory, or "" when unresolvable.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// HookScratchDir is the shared scratch directory hook scripts write into.
func HookScratchDir() string {
	return filepath.Join(os.TempDir(), AppName+"-hooks")
}

// ClaudeDir is the Claude CLI's dot directory.
func ClaudeDir() string {
	return filepath.Join(HomeDir(), ".claude")
}

// ClaudeSettingsPath is the CLI's global settings file.
func ClaudeSettingsPath() string {
	return filepath.Join(ClaudeDir(), "settings.json")
}

// ClaudeProjectsDir holds per-project transcript directories.
func ClaudeProjectsDir() string {
	return filepath.Join(ClaudeDir(), "projects")
}

// ClaudeProjectDir returns the transcript directory for one project path.
func ClaudeProjectDir(projectPath string) string {
	return filepath.Join(ClaudeProjectsDir(), EncodeProjectPath(projectPath))
}

// ClaudeLocalSettingsPath is the project-local settings file under the CLI's
// projects tree.
func ClaudeLocalSettingsPath(projectPath string) string {
	return filepath.Join(ClaudeProjectDir(projectPath), ".claude", "settings.local.json")
}

// CursorDir is the Cursor IDE's dot directory.
func CursorDir() string {
	return filepath.Join(HomeDir(), ".cursor")
}

// CursorGlobalHooksPath is Cursor's global hooks file.
func CursorGlobalHooksPath() string {
	return filepath.Join(CursorDir(), "hooks.json")
}

// CursorProjectHooksPath is the per-project hooks file.
func CursorProjectHooksPath(projectPath string) string {
	return filepath.Join(projectPath, ".cursor", "hooks.json")
}

// DevarkDir is devark's own data directory.
func DevarkDir() string {
	return filepath.Join(HomeDir(), "."+AppName)
}

// EnsureDir creates dir (and parents) if missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// EnsureParentDir creates the parent directory of path if missing.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
