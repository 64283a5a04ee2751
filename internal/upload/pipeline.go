package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/privacy"
	"github.com/DevArk-AI/devark/internal/sessions"
	"github.com/DevArk-AI/devark/internal/state"
	"github.com/DevArk-AI/devark/pkg/models"
)

// defaultLookback bounds how far back a pipeline run scans for sessions
// that were never uploaded.
const defaultLookback = 30 * 24 * time.Hour

// SessionSource lists and loads sessions for upload.
type SessionSource interface {
	List(ctx context.Context, f sessions.Filter) ([]models.SessionIndex, error)
	Details(ctx context.Context, id string) (*models.SessionDetails, error)
}

// Ledger remembers which sessions were already uploaded.
type Ledger interface {
	FilterUnuploaded(ctx context.Context, sessionIDs []string) ([]string, error)
	MarkUploaded(ctx context.Context, sessionIDs []string, checksum string, result *models.UploadResult) error
}

// Pipeline assembles one upload run: list sessions, drop the already
// uploaded ones, sanitize, push batches through the engine and record the
// outcome in the ledger.
type Pipeline struct {
	engine   *Engine
	source   SessionSource
	ledger   Ledger
	state    *state.Store
	lookback time.Duration
}

// NewPipeline wires an upload pipeline. The state store is optional; when
// present, upload progress is dispatched for connected webviews.
func NewPipeline(engine *Engine, source SessionSource, ledger Ledger, st *state.Store) *Pipeline {
	return &Pipeline{
		engine:   engine,
		source:   source,
		ledger:   ledger,
		state:    st,
		lookback: defaultLookback,
	}
}

// Run performs one upload of all pending sessions.
func (p *Pipeline) Run(ctx context.Context) (*models.UploadResult, error) {
	index, err := p.source.List(ctx, sessions.Filter{Since: time.Now().Add(-p.lookback)})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	ids := make([]string, 0, len(index))
	for _, s := range index {
		ids = append(ids, s.ID)
	}
	pending, err := p.ledger.FilterUnuploaded(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("filter uploaded: %w", err)
	}
	if len(pending) == 0 {
		log.Debug().Msg("upload: nothing pending")
		return &models.UploadResult{Success: true}, nil
	}

	sanitized := make([]models.SanitizedSession, 0, len(pending))
	uploaded := make([]string, 0, len(pending))
	for _, id := range pending {
		details, err := p.source.Details(ctx, id)
		if err != nil {
			log.Debug().Err(err).Str("session", id).Msg("upload: skipping unloadable session")
			continue
		}
		sanitized = append(sanitized, Sanitize(details))
		uploaded = append(uploaded, id)
	}
	if len(sanitized) == 0 {
		return &models.UploadResult{Success: true}, nil
	}

	p.dispatch(state.UploadStarted{Total: len(sanitized)})
	result, err := p.engine.UploadSessions(ctx, sanitized, func(done, total int) {
		p.dispatch(state.UploadProgressed{Uploaded: done, Total: total})
	})
	if err != nil {
		p.dispatch(state.UploadFailed{Err: err.Error()})
		return nil, err
	}

	if err := p.ledger.MarkUploaded(ctx, uploaded, runChecksum(sanitized), result); err != nil {
		log.Error().Err(err).Msg("upload: ledger write failed, sessions may re-upload")
	}
	p.dispatch(state.UploadFinished{Result: *result})
	return result, nil
}

func (p *Pipeline) dispatch(action state.Action) {
	if p.state != nil {
		p.state.Dispatch(action)
	}
}

// runChecksum fingerprints the full sanitized payload for the ledger.
func runChecksum(sanitized []models.SanitizedSession) string {
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Sanitize converts loaded session details into the wire shape, stripping
// private-tagged content and tool-result echoes.
func Sanitize(details *models.SessionDetails) models.SanitizedSession {
	out := models.SanitizedSession{
		ID:          details.ID,
		Source:      details.Source,
		Project:     details.ProjectPath,
		StartedAt:   details.Timestamp.UTC().Format(time.RFC3339),
		DurationSec: details.DurationSec,
		PromptCount: details.PromptCount,
		TokenUsage:  details.TokenUsage,
	}
	for i, msg := range details.Messages {
		switch msg.Role {
		case models.RoleUser:
			if !models.IsActualUserPrompt(msg.Content) || privacy.IsEntirelyPrivate(msg.Content) {
				continue
			}
			out.Prompts = append(out.Prompts, models.Prompt{
				ID:        fmt.Sprintf("%s-m%d", details.ID, i),
				Text:      privacy.Clean(msg.Content),
				Timestamp: msg.Timestamp,
			})
		case models.RoleAssistant:
			if privacy.IsEntirelyPrivate(msg.Content) {
				continue
			}
			out.Responses = append(out.Responses, models.Response{
				ID:        fmt.Sprintf("%s-m%d", details.ID, i),
				Text:      privacy.Clean(msg.Content),
				Success:   true,
				Timestamp: msg.Timestamp,
			})
		}
	}
	return out
}
