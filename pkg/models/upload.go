// Package models contains domain models for devark.
package models

// SanitizedSession is the wire shape of a session sent to the backend.
type SanitizedSession struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Project     string     `json:"project,omitempty"`
	StartedAt   string     `json:"startedAt"`
	DurationSec int64      `json:"durationSec"`
	PromptCount int        `json:"promptCount"`
	Prompts     []Prompt   `json:"prompts,omitempty"`
	Responses   []Response `json:"responses,omitempty"`
	TokenUsage  *TokenUsage `json:"tokenUsage,omitempty"`
}

// UploadBatchRequest is the body of POST /cli/sessions.
type UploadBatchRequest struct {
	Sessions      []SanitizedSession `json:"sessions"`
	Checksum      string             `json:"checksum"`
	TotalSessions int                `json:"totalSessions"`
	BatchNumber   int                `json:"batchNumber"`
	TotalBatches  int                `json:"totalBatches"`
}

// PointsEarned is the per-dimension points breakdown returned by the backend.
// Streak and share fields merge with max across batches; volume and total
// fields merge with sum.
type PointsEarned struct {
	Volume int `json:"volume,omitempty"`
	Streak int `json:"streak,omitempty"`
	Share  int `json:"share,omitempty"`
	Total  int `json:"total,omitempty"`
}

// UploadResult is the per-batch (and merged) upload response.
type UploadResult struct {
	Success           bool          `json:"success"`
	SessionsProcessed int           `json:"sessionsProcessed"`
	Created           int           `json:"created"`
	Duplicates        int           `json:"duplicates"`
	AnalysisPreview   string        `json:"analysisPreview,omitempty"`
	Streak            int           `json:"streak,omitempty"`
	PointsEarned      *PointsEarned `json:"pointsEarned,omitempty"`
}
