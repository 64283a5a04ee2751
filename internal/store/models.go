package store

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/DevArk-AI/devark/pkg/models"
)

// SessionRecord is one logical working session (tool + project). A new row
// opens when the first prompt arrives after an inactivity gap.
type SessionRecord struct {
	ID                string `gorm:"primaryKey"`
	Project           string `gorm:"index:idx_sessions_project_platform,priority:1;not null"`
	Platform          string `gorm:"index:idx_sessions_project_platform,priority:2;not null"`
	Goal              sql.NullString
	CustomName        sql.NullString
	StartedAtEpoch    int64 `gorm:"index:idx_sessions_started,sort:desc;not null"`
	LastActivityEpoch int64 `gorm:"index;not null"`
}

func (SessionRecord) TableName() string { return "sessions" }

// PromptRecord is one analysed prompt.
type PromptRecord struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	PromptID       string          `gorm:"uniqueIndex;not null"`
	SessionID      string          `gorm:"index;not null"`
	Source         string          `gorm:"index;not null"`
	Text           string          `gorm:"type:text;not null"`
	EnhancedText   sql.NullString  `gorm:"type:text"`
	InferredGoal   sql.NullString
	ScoreTotal     sql.NullFloat64
	Specificity    sql.NullFloat64
	ContextScore   sql.NullFloat64 `gorm:"column:context_score"`
	Intent         sql.NullFloat64
	Actionability  sql.NullFloat64
	Constraints    sql.NullFloat64
	CreatedAtEpoch int64           `gorm:"index:idx_prompts_created,sort:desc;not null"`
}

func (PromptRecord) TableName() string { return "prompts" }

// BeforeCreate stamps the creation epoch when the caller left it unset.
func (p *PromptRecord) BeforeCreate(tx *gorm.DB) error {
	if p.CreatedAtEpoch == 0 {
		p.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// ResponseRecord is one captured agent response.
type ResponseRecord struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ResponseID     string `gorm:"uniqueIndex;not null"`
	PromptID       string `gorm:"index"`
	SessionID      string `gorm:"index;not null"`
	Text           string `gorm:"type:text"`
	Success        bool
	Cancelled      bool
	Outcome        string                 `gorm:"index"`
	FilesModified  models.JSONStringArray `gorm:"type:text"`
	CreatedAtEpoch int64                  `gorm:"index;not null"`
}

func (ResponseRecord) TableName() string { return "responses" }

func (r *ResponseRecord) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAtEpoch == 0 {
		r.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// CoachingRecord is one generated coaching with its dismissal state.
type CoachingRecord struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	SessionID      string `gorm:"index;not null"`
	ResponseID     string `gorm:"index"`
	Payload        string `gorm:"type:text;not null"`
	Dismissed      bool   `gorm:"default:false"`
	CreatedAtEpoch int64  `gorm:"index;not null"`
}

func (CoachingRecord) TableName() string { return "coaching" }

func (c *CoachingRecord) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAtEpoch == 0 {
		c.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// UploadRecord is the upload ledger: which source sessions have been sent
// to the backend and with which batch checksum.
type UploadRecord struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	SessionID       string `gorm:"uniqueIndex;not null"`
	Checksum        string `gorm:"not null"`
	Created         int
	Duplicates      int
	UploadedAtEpoch int64 `gorm:"index;not null"`
}

func (UploadRecord) TableName() string { return "uploads" }

func (u *UploadRecord) BeforeCreate(tx *gorm.DB) error {
	if u.UploadedAtEpoch == 0 {
		u.UploadedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}
