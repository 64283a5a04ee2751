// Package state holds the reducer store: the single allowed piece of
// shared mutable state. All writes flow through Dispatch; reads are
// snapshots.
package state

import (
	"github.com/DevArk-AI/devark/internal/adapters"
	"github.com/DevArk-AI/devark/pkg/models"
)

// Action is the sealed discriminated union consumed by the reducer.
type Action interface {
	isAction()
}

// Analysis pipeline actions.

// StartAnalysis begins the four-stage pipeline for one prompt, setting all
// four stage-pending flags.
type StartAnalysis struct {
	Prompt models.DetectedPrompt
}

// ScoreReceived delivers the stage-1 score; clears analysing only.
type ScoreReceived struct {
	PromptID string
	Score    models.PromptScore
}

// EnhancedPromptReady delivers the stage-2 improved text; clears enhancing.
type EnhancedPromptReady struct {
	PromptID string
	Text     string
}

// EnhancedScoreReady delivers the stage-3 score of the improved text.
type EnhancedScoreReady struct {
	PromptID string
	Score    models.PromptScore
}

// GoalInferenceReady delivers the stage-4 inferred goal.
type GoalInferenceReady struct {
	PromptID string
	Goal     string
}

// AnalysisComplete finishes the pipeline: clears all four flags, prepends
// to recent prompts, bumps the daily counter.
type AnalysisComplete struct {
	Prompt models.Prompt
}

// AnalysisFailed aborts the pipeline for a prompt.
type AnalysisFailed struct {
	PromptID string
	Err      string
}

// Coaching actions.

// SetCoaching stores coaching both as current and per-session.
type SetCoaching struct {
	Coaching models.CoachingData
}

// DismissCoaching clears the current coaching.
type DismissCoaching struct{}

// Session actions.

// SetSessions replaces the session list.
type SetSessions struct {
	Sessions []models.SessionIndex
}

// SetActiveSession selects a session; restores its cached coaching view.
type SetActiveSession struct {
	ID string
}

// DeleteSession removes a session; clears the active ID iff it matched.
type DeleteSession struct {
	ID string
}

// SetSessionGoal records a user-set goal on the active session.
type SetSessionGoal struct {
	SessionID string
	Goal      string
}

// Event-flow actions.

// PromptDetected records an adapter-observed prompt.
type PromptDetected struct {
	Prompt models.DetectedPrompt
}

// ResponseCaptured records an agent response event.
type ResponseCaptured struct {
	SessionID string
	Response  models.Response
}

// AdapterStatusChanged updates one adapter's reported status.
type AdapterStatusChanged struct {
	SourceID string
	Status   adapters.Status
}

// Summary actions.

// SetTab switches the webview tab.
type SetTab struct {
	Tab string
}

// StartLoadingSummary begins summary generation for a period.
type StartLoadingSummary struct {
	Period string
}

// SummaryProgress reports generation progress in percent.
type SummaryProgress struct {
	Percent int
}

// SummaryLoaded delivers the finished summary.
type SummaryLoaded struct {
	Summary any
}

// CancelLoadingSummary aborts loading, clearing progress while preserving
// the current tab.
type CancelLoadingSummary struct{}

// Auth and upload actions.

// SetAuthStatus records login state.
type SetAuthStatus struct {
	LoggedIn bool
	UserID   string
}

// UploadStarted begins an upload run.
type UploadStarted struct {
	Total int
}

// UploadProgressed reports sessions uploaded so far.
type UploadProgressed struct {
	Uploaded int
	Total    int
}

// UploadFinished delivers the merged result.
type UploadFinished struct {
	Result models.UploadResult
}

// UploadFailed records an upload error.
type UploadFailed struct {
	Err string
}

// SetError surfaces an unrecoverable failure to the webview.
type SetError struct {
	Message string
}

// ClearError dismisses the error banner.
type ClearError struct{}

// ResetDaily zeroes the analysed-today counter (midnight rollover).
type ResetDaily struct{}

func (StartAnalysis) isAction()        {}
func (ScoreReceived) isAction()        {}
func (EnhancedPromptReady) isAction()  {}
func (EnhancedScoreReady) isAction()   {}
func (GoalInferenceReady) isAction()   {}
func (AnalysisComplete) isAction()     {}
func (AnalysisFailed) isAction()       {}
func (SetCoaching) isAction()          {}
func (DismissCoaching) isAction()      {}
func (SetSessions) isAction()          {}
func (SetActiveSession) isAction()     {}
func (DeleteSession) isAction()        {}
func (SetSessionGoal) isAction()       {}
func (PromptDetected) isAction()       {}
func (ResponseCaptured) isAction()     {}
func (AdapterStatusChanged) isAction() {}
func (SetTab) isAction()               {}
func (StartLoadingSummary) isAction()  {}
func (SummaryProgress) isAction()      {}
func (SummaryLoaded) isAction()        {}
func (CancelLoadingSummary) isAction() {}
func (SetAuthStatus) isAction()        {}
func (UploadStarted) isAction()        {}
func (UploadProgressed) isAction()     {}
func (UploadFinished) isAction()       {}
func (UploadFailed) isAction()         {}
func (SetError) isAction()             {}
func (ClearError) isAction()           {}
func (ResetDaily) isAction()           {}
