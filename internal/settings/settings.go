// Package settings reads and writes tool-owned JSON configuration files.
// The files belong to the host tools; writes go through a deep merge so
// unknown keys and arrays devark didn't write survive untouched.
package settings

import (
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/DevArk-AI/devark/internal/paths"
)

// Map is a decoded settings object.
type Map = map[string]any

// Read returns the decoded settings file. A missing or zero-byte file reads
// as the empty mapping; any other parse failure propagates.
func Read(path string) (Map, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Map{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	if len(raw) == 0 {
		return Map{}, nil
	}

	var out Map
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if out == nil {
		out = Map{}
	}
	return out, nil
}

// Write pretty-prints data with two-space indent, creating the parent
// directory first.
func Write(path string, data Map) error {
	if err := paths.EnsureParentDir(path); err != nil {
		return fmt.Errorf("ensure parent dir: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}

// Exists reports whether the settings file is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create writes data only if the file does not already exist.
func Create(path string, data Map) error {
	if Exists(path) {
		return fmt.Errorf("settings file already exists: %s", path)
	}
	return Write(path, data)
}

// Merge reads the existing file, deep-merges updates into it, and writes
// the result back.
func Merge(path string, updates Map) error {
	existing, err := Read(path)
	if err != nil {
		return err
	}
	return Write(path, DeepMerge(existing, updates))
}

// DeepMerge merges b into a: plain objects are recursed, everything else
// (arrays, nulls, primitives) is replaced by b's value. Missing keys in b
// preserve a's value. Neither input is mutated.
func DeepMerge(a, b Map) Map {
	out := make(Map, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		if bObj, bOK := asObject(bv); bOK {
			if aObj, aOK := asObject(out[k]); aOK {
				out[k] = DeepMerge(aObj, bObj)
				continue
			}
		}
		out[k] = bv
	}
	return out
}

// asObject reports whether v is a plain JSON object: object kind, not null,
// not array.
func asObject(v any) (Map, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok && obj != nil
}
