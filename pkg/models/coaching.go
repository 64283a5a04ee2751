// Package models contains domain models for devark.
package models

import "time"

// ResponseOutcome classifies how an agent response ended.
type ResponseOutcome string

const (
	OutcomeSuccess ResponseOutcome = "success"
	OutcomePartial ResponseOutcome = "partial"
	OutcomeBlocked ResponseOutcome = "blocked"
	OutcomeError   ResponseOutcome = "error"
)

// ResponseAnalysis is the derived analysis of one agent response.
type ResponseAnalysis struct {
	Summary          string          `json:"summary"`
	Outcome          ResponseOutcome `json:"outcome"`
	TopicsAddressed  []string        `json:"topicsAddressed"`
	EntitiesModified []string        `json:"entitiesModified"`
	GoalProgress     string          `json:"goalProgress,omitempty"`
}

// SuggestionType categorises a coaching suggestion.
type SuggestionType string

const (
	SuggestionFollowUp        SuggestionType = "follow_up"
	SuggestionTest            SuggestionType = "test"
	SuggestionErrorPrevention SuggestionType = "error_prevention"
	SuggestionDocumentation   SuggestionType = "documentation"
	SuggestionRefactor        SuggestionType = "refactor"
	SuggestionGoalAlignment   SuggestionType = "goal_alignment"
	SuggestionCelebration     SuggestionType = "celebration"
)

// CoachingSuggestion is one suggested follow-up prompt.
type CoachingSuggestion struct {
	Type   SuggestionType `json:"type"`
	Text   string         `json:"text"`
	Reason string         `json:"reason,omitempty"`
}

// CoachingData is the analysis of one agent response plus 1-3 suggestions.
type CoachingData struct {
	Analysis    ResponseAnalysis     `json:"analysis"`
	Suggestions []CoachingSuggestion `json:"suggestions"`
	Timestamp   time.Time            `json:"timestamp"`
	PromptID    string               `json:"promptId,omitempty"`
	SessionID   string               `json:"sessionId,omitempty"`
	Source      string               `json:"source,omitempty"`
}
