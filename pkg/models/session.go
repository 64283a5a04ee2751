// Package models contains domain models for devark.
package models

import "time"

// Role is a conversation message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversation message.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TokenUsage aggregates token counts for a session.
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
	Estimated    bool  `json:"estimated,omitempty"`
}

// SessionIndex is the lightweight session shape held in memory during list
// views. The ID always carries its source prefix ("claude-…" / "cursor-…").
type SessionIndex struct {
	ID            string       `json:"id"`
	Source        string       `json:"source"`
	Timestamp     time.Time    `json:"timestamp"`
	DurationSec   int64        `json:"durationSec"`
	ProjectPath   string       `json:"projectPath,omitempty"`
	WorkspaceName string       `json:"workspaceName,omitempty"`
	PromptCount   int          `json:"promptCount"`
	TokenUsage    *TokenUsage  `json:"tokenUsage,omitempty"`
}

// ModelInfo records which model served a session.
type ModelInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// PlanningModeInfo records plan-mode activity inside a session.
type PlanningModeInfo struct {
	Used      bool `json:"used"`
	PlanCount int  `json:"planCount,omitempty"`
}

// SessionDetails is the heavy per-session shape, loaded only when a session
// is opened.
type SessionDetails struct {
	SessionIndex
	Messages     []Message         `json:"messages"`
	Highlights   []string          `json:"highlights,omitempty"`
	ModelInfo    *ModelInfo        `json:"modelInfo,omitempty"`
	PlanningMode *PlanningModeInfo `json:"planningModeInfo,omitempty"`
	FileContext  []string          `json:"fileContext,omitempty"`
}

// Session is the session-manager view: one logical working session for a
// tool + project pair. A new session opens when the first prompt arrives
// after a gap of SessionGap or more.
type Session struct {
	ID           string     `json:"id"`
	Project      string     `json:"project"`
	Platform     string     `json:"platform"`
	StartTime    time.Time  `json:"startTime"`
	LastActivity time.Time  `json:"lastActivity"`
	Prompts      []Prompt   `json:"prompts"`
	Responses    []Response `json:"responses"`
	Goal         string     `json:"goal,omitempty"`
	CustomName   string     `json:"customName,omitempty"`
	Context      []string   `json:"context,omitempty"`
}

// SessionGap is the inactivity gap after which the next prompt opens a new
// logical session for the same tool + project.
const SessionGap = 120 * time.Minute

// Prompt is one analysed user prompt inside a Session.
type Prompt struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	Timestamp      time.Time    `json:"timestamp"`
	Score          *PromptScore `json:"score,omitempty"`
	EnhancedText   string       `json:"enhancedText,omitempty"`
	EnhancedScore  *PromptScore `json:"enhancedScore,omitempty"`
	InferredGoal   string       `json:"inferredGoal,omitempty"`
}

// Response is one captured agent response inside a Session.
type Response struct {
	ID            string    `json:"id"`
	PromptID      string    `json:"promptId,omitempty"`
	Text          string    `json:"text"`
	Success       bool      `json:"success"`
	Cancelled     bool      `json:"cancelled,omitempty"`
	FilesModified []string  `json:"filesModified,omitempty"`
	ToolCalls     []ToolCall `json:"toolCalls,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ToolCall is a tool invocation recorded on a response.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}
