// Package coaching turns response analyses into actionable suggestions.
// Generation is throttled and dismissals open a cooldown window so the
// sidecar never nags.
package coaching

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/analysis"
	"github.com/DevArk-AI/devark/internal/safejson"
	"github.com/DevArk-AI/devark/pkg/models"
)

const (
	// MinInterval is the floor between two generated coachings.
	MinInterval = 3 * time.Minute
	// DismissCooldown is how long a dismissal suppresses generation.
	DismissCooldown = 10 * time.Minute

	maxSuggestions = 3
)

// Suggester is the LLM surface used for suggestion generation. Nil means
// rule-based fallbacks only.
type Suggester interface {
	Suggest(ctx context.Context, req SuggestRequest) ([]models.CoachingSuggestion, error)
}

// SuggestRequest carries everything the LLM needs to coach.
type SuggestRequest struct {
	Analysis    models.ResponseAnalysis
	Prompt      string
	SessionGoal string
	Recent      []string
}

// Request asks the service to coach on one response.
type Request struct {
	ResponseID  string
	SessionID   string
	Response    models.Response
	Prompt      string
	SessionGoal string
	Recent      []string
	// Force bypasses throttle, cooldown and dedup.
	Force bool
}

// Result is the outcome of a Generate call. When Generated is false, Reason
// says why ("throttled", "cooldown", "duplicate").
type Result struct {
	Generated bool                 `json:"generated"`
	Reason    string               `json:"reason,omitempty"`
	Coaching  *models.CoachingData `json:"coaching,omitempty"`
}

type pairKey struct {
	responseID string
	sessionID  string
}

// Service generates coaching with throttle, cooldown and duplicate
// suppression. Safe for concurrent use.
type Service struct {
	suggester Suggester
	now       func() time.Time

	mu            sync.Mutex
	lastGenerated time.Time
	dismissedAt   time.Time
	seen          map[pairKey]struct{}
	bySession     map[string]*models.CoachingData
}

// NewService creates a coaching service. suggester may be nil.
func NewService(suggester Suggester) *Service {
	return &Service{
		suggester: suggester,
		now:       time.Now,
		seen:      map[pairKey]struct{}{},
		bySession: map[string]*models.CoachingData{},
	}
}

// Generate analyses the response and produces coaching, unless a guard
// declines. Force passes every guard.
func (s *Service) Generate(ctx context.Context, req Request) Result {
	key := pairKey{req.ResponseID, req.SessionID}

	s.mu.Lock()
	if !req.Force {
		if _, dup := s.seen[key]; dup {
			s.mu.Unlock()
			return Result{Reason: "duplicate"}
		}
		now := s.now()
		if !s.dismissedAt.IsZero() && now.Sub(s.dismissedAt) < DismissCooldown {
			s.mu.Unlock()
			return Result{Reason: "cooldown"}
		}
		if !s.lastGenerated.IsZero() && now.Sub(s.lastGenerated) < MinInterval {
			s.mu.Unlock()
			return Result{Reason: "throttled"}
		}
	}
	s.mu.Unlock()

	respAnalysis := analysis.Analyze(req.Response)
	suggestions := s.suggest(ctx, SuggestRequest{
		Analysis:    respAnalysis,
		Prompt:      req.Prompt,
		SessionGoal: req.SessionGoal,
		Recent:      req.Recent,
	}, req.Response)

	coaching := &models.CoachingData{
		Analysis:    respAnalysis,
		Suggestions: suggestions,
		Timestamp:   s.now(),
		PromptID:    req.Response.PromptID,
		SessionID:   req.SessionID,
		Source:      "devark",
	}

	s.mu.Lock()
	s.seen[key] = struct{}{}
	s.lastGenerated = s.now()
	if req.SessionID != "" {
		s.bySession[req.SessionID] = coaching
	}
	s.mu.Unlock()

	return Result{Generated: true, Coaching: coaching}
}

// Dismiss records a dismissal and opens the cooldown window.
func (s *Service) Dismiss() {
	s.mu.Lock()
	s.dismissedAt = s.now()
	s.mu.Unlock()
}

// ForSession returns the cached coaching for a session, or nil.
func (s *Service) ForSession(sessionID string) *models.CoachingData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bySession[sessionID]
}

func (s *Service) suggest(ctx context.Context, req SuggestRequest, resp models.Response) []models.CoachingSuggestion {
	if s.suggester != nil {
		suggestions, err := s.suggester.Suggest(ctx, req)
		if err == nil && len(suggestions) > 0 {
			if len(suggestions) > maxSuggestions {
				suggestions = suggestions[:maxSuggestions]
			}
			return suggestions
		}
		if err != nil {
			log.Debug().Err(err).Msg("LLM coaching failed, using rule-based fallback")
		}
	}
	return ruleBased(req.Analysis, resp)
}

// ruleBased emits deterministic suggestions when no model is reachable.
func ruleBased(a models.ResponseAnalysis, resp models.Response) []models.CoachingSuggestion {
	var out []models.CoachingSuggestion

	if len(resp.FilesModified) > 0 {
		out = append(out, models.CoachingSuggestion{
			Type:   models.SuggestionTest,
			Text:   fmt.Sprintf("Run the tests covering %s", strings.Join(resp.FilesModified, ", ")),
			Reason: "files were modified without a recorded test run",
		})
	}
	if a.Outcome == models.OutcomeSuccess && analysis.HasTopic(a.TopicsAddressed, "Bug Fix") {
		out = append(out, models.CoachingSuggestion{
			Type:   models.SuggestionFollowUp,
			Text:   "Ask for a regression test that reproduces the original bug",
			Reason: "a fixed bug without a regression test tends to come back",
		})
	}
	if a.Outcome == models.OutcomeSuccess && len(resp.FilesModified) > 1 {
		out = append(out, models.CoachingSuggestion{
			Type: models.SuggestionCelebration,
			Text: fmt.Sprintf("Nice work, %d files changed successfully", len(resp.FilesModified)),
		})
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// prompt text used by the Anthropic suggester below.
const suggestSystemPrompt = `You coach developers on working with AI coding assistants.
Given a response analysis, produce 1-3 suggestions as a JSON array:
[{"type":"follow_up|test|error_prevention|documentation|refactor|goal_alignment|celebration","text":"...","reason":"..."}]
Respond with only the JSON array.`

// AnthropicSuggester generates suggestions through a completion function.
// The function signature matches the scoring provider's transport so both
// can share one client.
type AnthropicSuggester struct {
	Complete func(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Suggest renders the request and decodes the model's JSON array.
func (a *AnthropicSuggester) Suggest(ctx context.Context, req SuggestRequest) ([]models.CoachingSuggestion, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Outcome: %s\nSummary: %s\n", req.Analysis.Outcome, req.Analysis.Summary)
	if len(req.Analysis.EntitiesModified) > 0 {
		fmt.Fprintf(&b, "Files touched: %s\n", strings.Join(req.Analysis.EntitiesModified, ", "))
	}
	if len(req.Analysis.TopicsAddressed) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(req.Analysis.TopicsAddressed, ", "))
	}
	if req.Prompt != "" {
		fmt.Fprintf(&b, "Triggering prompt: %s\n", req.Prompt)
	}
	if req.SessionGoal != "" {
		fmt.Fprintf(&b, "Session goal: %s\n", req.SessionGoal)
	}

	text, err := a.Complete(ctx, suggestSystemPrompt, b.String(), 1024)
	if err != nil {
		return nil, err
	}

	var suggestions []models.CoachingSuggestion
	if err := safejson.Unmarshal(text, &suggestions, safejson.Options{AttemptRecovery: true, Context: "coaching-response"}); err != nil {
		return nil, fmt.Errorf("decode coaching response: %w", err)
	}
	return suggestions, nil
}
