package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// NewEventID builds a collision-resistant scratch-file ID.
func NewEventID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}

// Drop writes a payload into the scratch directory as
// <dir>/<prefix><id>.json. The write goes through a temp file and rename so
// the watcher never reads a half-written file. Returns the final path.
func Drop(dir, prefix, id string, payload any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure scratch dir: %w", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	final := filepath.Join(dir, prefix+id+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize scratch file: %w", err)
	}
	return final, nil
}
