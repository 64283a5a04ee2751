// Package models contains domain models for devark.
package models

import (
	"strings"
	"time"
)

// DetectionMethod describes how a prompt source delivers prompts.
type DetectionMethod string

const (
	DetectionHook      DetectionMethod = "hook"
	DetectionPolling   DetectionMethod = "polling"
	DetectionAPI       DetectionMethod = "api"
	DetectionExtension DetectionMethod = "extension"
)

// PromptSource identifies one prompt-producing tool. Immutable per adapter.
type PromptSource struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"displayName"`
	DetectionMethod DetectionMethod `json:"detectionMethod"`
}

// Well-known sources.
var (
	SourceClaudeCode = PromptSource{ID: "claude_code", DisplayName: "Claude Code", DetectionMethod: DetectionHook}
	SourceCursor     = PromptSource{ID: "cursor", DisplayName: "Cursor", DetectionMethod: DetectionPolling}
)

// PromptContext carries optional context captured alongside a detected prompt.
type PromptContext struct {
	ProjectPath     string         `json:"projectPath,omitempty"`
	ProjectName     string         `json:"projectName,omitempty"`
	SourceSessionID string         `json:"sourceSessionId,omitempty"`
	Files           []string       `json:"files,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// DetectedPrompt is the normalised prompt event emitted by adapters.
// Never mutated downstream.
type DetectedPrompt struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
	Source    PromptSource  `json:"source"`
	Context   PromptContext `json:"context"`
}

// HookPayload is the JSON written by the external hook script into the
// scratch directory. Only Prompt is required; everything else is optional.
type HookPayload struct {
	Prompt         string           `json:"prompt"`
	ID             string           `json:"id,omitempty"`
	Timestamp      string           `json:"timestamp,omitempty"`
	SessionID      string           `json:"sessionId,omitempty"`
	ConversationID string           `json:"conversationId,omitempty"`
	CWD            string           `json:"cwd,omitempty"`
	WorkspaceRoots []string         `json:"workspaceRoots,omitempty"`
	Attachments    []HookAttachment `json:"attachments,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// HookAttachment is a file reference attached to a hook payload.
type HookAttachment struct {
	Type     string `json:"type"`
	FilePath string `json:"filePath"`
}

// ResolveSessionID returns the session identifier, preferring SessionID over
// ConversationID.
func (p *HookPayload) ResolveSessionID() string {
	if p.SessionID != "" {
		return p.SessionID
	}
	return p.ConversationID
}

// toolResultPrefixes mark user-role messages that are tool output echoes,
// not actual user prompts.
var toolResultPrefixes = []string{"[Tool result]", "[Tool:"}

// IsActualUserPrompt reports whether a user-role message body is a real
// prompt typed by the user: non-blank and not a tool-result marker.
func IsActualUserPrompt(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}
	for _, prefix := range toolResultPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return false
		}
	}
	return true
}
