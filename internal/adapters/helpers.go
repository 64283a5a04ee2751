package adapters

import (
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/DevArk-AI/devark/pkg/models"
)

// mustMarshal re-encodes a decoded map for typed unmarshalling. The input
// came from a successful decode, so encoding cannot fail.
func mustMarshal(data map[string]any) []byte {
	raw, _ := json.Marshal(data)
	return raw
}

// resolveTimestamp parses an ISO-8601 hook timestamp, defaulting to now.
func resolveTimestamp(raw string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Now()
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func attachmentPaths(attachments []models.HookAttachment) []string {
	var files []string
	for _, att := range attachments {
		if att.FilePath != "" {
			files = append(files, att.FilePath)
		}
	}
	return files
}
