package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DevArk-AI/devark/pkg/models"
)

// ResolveSession returns the open logical session for a tool + project
// pair, creating a new one when the last activity is older than the
// session gap. The returned session's last activity is advanced to at.
func (s *Store) ResolveSession(ctx context.Context, project, platform string, at time.Time) (*SessionRecord, error) {
	epoch := at.UnixMilli()

	var session SessionRecord
	err := s.DB.WithContext(ctx).
		Where("project = ? AND platform = ?", project, platform).
		Order("last_activity_epoch DESC").
		First(&session).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create
	case err != nil:
		return nil, fmt.Errorf("find session: %w", err)
	case epoch-session.LastActivityEpoch <= models.SessionGap.Milliseconds():
		if epoch > session.LastActivityEpoch {
			session.LastActivityEpoch = epoch
			if err := s.DB.WithContext(ctx).Model(&session).
				Update("last_activity_epoch", epoch).Error; err != nil {
				return nil, fmt.Errorf("touch session: %w", err)
			}
		}
		return &session, nil
	}

	session = SessionRecord{
		ID:                uuid.NewString(),
		Project:           project,
		Platform:          platform,
		StartedAtEpoch:    epoch,
		LastActivityEpoch: epoch,
	}
	if err := s.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// SetSessionGoal stores the session goal, inferred or user-provided.
func (s *Store) SetSessionGoal(ctx context.Context, sessionID, goal string) error {
	return s.DB.WithContext(ctx).Model(&SessionRecord{}).
		Where("id = ?", sessionID).
		Update("goal", goal).Error
}

// RecordPrompt persists an analysed prompt. Re-recording the same prompt ID
// updates the analysis columns in place.
func (s *Store) RecordPrompt(ctx context.Context, sessionID, source string, prompt models.Prompt) error {
	record := PromptRecord{
		PromptID:       prompt.ID,
		SessionID:      sessionID,
		Source:         source,
		Text:           prompt.Text,
		CreatedAtEpoch: prompt.Timestamp.UnixMilli(),
	}
	if prompt.Timestamp.IsZero() {
		record.CreatedAtEpoch = 0
	}
	if prompt.EnhancedText != "" {
		record.EnhancedText = sql.NullString{String: prompt.EnhancedText, Valid: true}
	}
	if prompt.InferredGoal != "" {
		record.InferredGoal = sql.NullString{String: prompt.InferredGoal, Valid: true}
	}
	if score := prompt.Score; score != nil {
		record.ScoreTotal = sql.NullFloat64{Float64: score.Total, Valid: true}
		record.Specificity = sql.NullFloat64{Float64: score.Specificity, Valid: true}
		record.ContextScore = sql.NullFloat64{Float64: score.Context, Valid: true}
		record.Intent = sql.NullFloat64{Float64: score.Intent, Valid: true}
		record.Actionability = sql.NullFloat64{Float64: score.Actionability, Valid: true}
		record.Constraints = sql.NullFloat64{Float64: score.Constraints, Valid: true}
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "prompt_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enhanced_text", "inferred_goal", "score_total", "specificity",
			"context_score", "intent", "actionability", "constraints",
		}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("record prompt: %w", err)
	}
	return nil
}

// RecordResponse persists one agent response with its classified outcome.
func (s *Store) RecordResponse(ctx context.Context, sessionID string, resp models.Response, outcome models.ResponseOutcome) error {
	record := ResponseRecord{
		ResponseID:     resp.ID,
		PromptID:       resp.PromptID,
		SessionID:      sessionID,
		Text:           resp.Text,
		Success:        resp.Success,
		Cancelled:      resp.Cancelled,
		Outcome:        string(outcome),
		FilesModified:  resp.FilesModified,
		CreatedAtEpoch: resp.Timestamp.UnixMilli(),
	}
	if resp.Timestamp.IsZero() {
		record.CreatedAtEpoch = 0
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "response_id"}},
		DoNothing: true,
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

// RecordCoaching persists a generated coaching.
func (s *Store) RecordCoaching(ctx context.Context, coaching models.CoachingData) error {
	payload, err := json.Marshal(coaching)
	if err != nil {
		return fmt.Errorf("marshal coaching: %w", err)
	}
	record := CoachingRecord{
		SessionID:      coaching.SessionID,
		ResponseID:     coaching.PromptID,
		Payload:        string(payload),
		CreatedAtEpoch: coaching.Timestamp.UnixMilli(),
	}
	if coaching.Timestamp.IsZero() {
		record.CreatedAtEpoch = 0
	}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("record coaching: %w", err)
	}
	return nil
}

// DismissCoaching flags every coaching row of a session as dismissed.
func (s *Store) DismissCoaching(ctx context.Context, sessionID string) error {
	return s.DB.WithContext(ctx).Model(&CoachingRecord{}).
		Where("session_id = ? AND dismissed = ?", sessionID, false).
		Update("dismissed", true).Error
}

// LatestCoaching returns the newest undismissed coaching for a session,
// or nil when none exists.
func (s *Store) LatestCoaching(ctx context.Context, sessionID string) (*models.CoachingData, error) {
	var record CoachingRecord
	err := s.DB.WithContext(ctx).
		Where("session_id = ? AND dismissed = ?", sessionID, false).
		Order("created_at_epoch DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load coaching: %w", err)
	}

	var coaching models.CoachingData
	if err := json.Unmarshal([]byte(record.Payload), &coaching); err != nil {
		return nil, fmt.Errorf("decode coaching payload: %w", err)
	}
	return &coaching, nil
}

// MarkUploaded records the source sessions covered by a finished upload.
// Already-ledgered sessions are left untouched.
func (s *Store) MarkUploaded(ctx context.Context, sessionIDs []string, checksum string, result *models.UploadResult) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	records := make([]UploadRecord, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		records = append(records, UploadRecord{
			SessionID:  id,
			Checksum:   checksum,
			Created:    result.Created,
			Duplicates: result.Duplicates,
		})
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("mark uploaded: %w", err)
	}
	return nil
}

// FilterUnuploaded returns the subset of sessionIDs with no ledger entry,
// preserving input order.
func (s *Store) FilterUnuploaded(ctx context.Context, sessionIDs []string) ([]string, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	var uploaded []string
	err := s.DB.WithContext(ctx).Model(&UploadRecord{}).
		Where("session_id IN ?", sessionIDs).
		Pluck("session_id", &uploaded).Error
	if err != nil {
		return nil, fmt.Errorf("query upload ledger: %w", err)
	}

	seen := make(map[string]struct{}, len(uploaded))
	for _, id := range uploaded {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range sessionIDs {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// PromptsBetween returns prompts created in [from, to), newest first.
func (s *Store) PromptsBetween(ctx context.Context, from, to time.Time) ([]PromptRecord, error) {
	var records []PromptRecord
	err := s.DB.WithContext(ctx).
		Where("created_at_epoch >= ? AND created_at_epoch < ?", from.UnixMilli(), to.UnixMilli()).
		Order("created_at_epoch DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}
	return records, nil
}

// ResponsesBetween returns responses created in [from, to), newest first.
func (s *Store) ResponsesBetween(ctx context.Context, from, to time.Time) ([]ResponseRecord, error) {
	var records []ResponseRecord
	err := s.DB.WithContext(ctx).
		Where("created_at_epoch >= ? AND created_at_epoch < ?", from.UnixMilli(), to.UnixMilli()).
		Order("created_at_epoch DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	return records, nil
}

// SessionsBetween returns logical sessions active in [from, to).
func (s *Store) SessionsBetween(ctx context.Context, from, to time.Time) ([]SessionRecord, error) {
	var records []SessionRecord
	err := s.DB.WithContext(ctx).
		Where("last_activity_epoch >= ? AND started_at_epoch < ?", from.UnixMilli(), to.UnixMilli()).
		Order("started_at_epoch DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	return records, nil
}
