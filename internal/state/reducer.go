package state

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/adapters"
	"github.com/DevArk-AI/devark/pkg/models"
)

// recentPromptsCap bounds the recent-prompt list.
const recentPromptsCap = 20

// AnalysisState tracks the four progressive pipeline stages for the prompt
// under analysis. Each stage clears its own flag independently so the UI
// can render partial results.
type AnalysisState struct {
	PromptID        string              `json:"promptId,omitempty"`
	PromptText      string              `json:"promptText,omitempty"`
	Analyzing       bool                `json:"analyzing"`
	Enhancing       bool                `json:"enhancing"`
	ScoringEnhanced bool                `json:"scoringEnhanced"`
	InferringGoal   bool                `json:"inferringGoal"`
	Score           *models.PromptScore `json:"score,omitempty"`
	EnhancedText    string              `json:"enhancedText,omitempty"`
	EnhancedScore   *models.PromptScore `json:"enhancedScore,omitempty"`
	InferredGoal    string              `json:"inferredGoal,omitempty"`
	Error           string              `json:"error,omitempty"`
}

// SummaryState tracks summary loading.
type SummaryState struct {
	Loading  bool   `json:"loading"`
	Period   string `json:"period,omitempty"`
	Progress int    `json:"progress"`
	Summary  any    `json:"summary,omitempty"`
}

// UploadState tracks an upload run.
type UploadState struct {
	InProgress bool                 `json:"inProgress"`
	Uploaded   int                  `json:"uploaded"`
	Total      int                  `json:"total"`
	Result     *models.UploadResult `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// AuthState tracks login.
type AuthState struct {
	LoggedIn bool   `json:"loggedIn"`
	UserID   string `json:"userId,omitempty"`
}

// State is the full reducer state pushed to the webview.
type State struct {
	Analysis          AnalysisState                   `json:"analysis"`
	RecentPrompts     []models.Prompt                 `json:"recentPrompts"`
	AnalyzedToday     int                             `json:"analyzedToday"`
	CurrentCoaching   *models.CoachingData            `json:"currentCoaching,omitempty"`
	CoachingBySession map[string]*models.CoachingData `json:"coachingBySession"`
	Sessions          []models.SessionIndex           `json:"sessions"`
	ActiveSessionID   string                          `json:"activeSessionId,omitempty"`
	SessionGoals      map[string]string               `json:"sessionGoals"`
	AdapterStatus     map[string]adapters.Status      `json:"adapterStatus"`
	CurrentTab        string                          `json:"currentTab"`
	Summary           SummaryState                    `json:"summary"`
	Upload            UploadState                     `json:"upload"`
	Auth              AuthState                       `json:"auth"`
	LastError         string                          `json:"lastError,omitempty"`
}

// Subscriber receives a state snapshot after each dispatch.
type Subscriber func(State)

// Store owns the state and serialises all mutations through Dispatch.
type Store struct {
	mu          sync.Mutex
	state       State
	subscribers []Subscriber
}

// NewStore creates a store with empty initial state.
func NewStore() *Store {
	return &Store{
		state: State{
			CoachingBySession: map[string]*models.CoachingData{},
			SessionGoals:      map[string]string{},
			AdapterStatus:     map[string]adapters.Status{},
			CurrentTab:        "dashboard",
		},
	}
}

// State returns an unsynchronised snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state)
}

// Subscribe registers a snapshot receiver.
func (s *Store) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// Dispatch applies one action and notifies subscribers.
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	s.reduce(action)
	snapshot := cloneState(s.state)
	subs := append([]Subscriber(nil), s.subscribers...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
}

// reduce is the single discriminated-union switch. Callers hold the lock.
func (s *Store) reduce(action Action) {
	st := &s.state
	switch a := action.(type) {

	case StartAnalysis:
		st.Analysis = AnalysisState{
			PromptID:        a.Prompt.ID,
			PromptText:      a.Prompt.Text,
			Analyzing:       true,
			Enhancing:       true,
			ScoringEnhanced: true,
			InferringGoal:   true,
		}

	case ScoreReceived:
		if s.staleStage(a.PromptID) {
			return
		}
		score := a.Score
		st.Analysis.Score = &score
		st.Analysis.Analyzing = false

	case EnhancedPromptReady:
		if s.staleStage(a.PromptID) {
			return
		}
		st.Analysis.EnhancedText = a.Text
		st.Analysis.Enhancing = false

	case EnhancedScoreReady:
		if s.staleStage(a.PromptID) {
			return
		}
		score := a.Score
		st.Analysis.EnhancedScore = &score
		st.Analysis.ScoringEnhanced = false

	case GoalInferenceReady:
		if s.staleStage(a.PromptID) {
			return
		}
		st.Analysis.InferredGoal = a.Goal
		st.Analysis.InferringGoal = false

	case AnalysisComplete:
		st.Analysis.Analyzing = false
		st.Analysis.Enhancing = false
		st.Analysis.ScoringEnhanced = false
		st.Analysis.InferringGoal = false
		st.RecentPrompts = append([]models.Prompt{a.Prompt}, st.RecentPrompts...)
		if len(st.RecentPrompts) > recentPromptsCap {
			st.RecentPrompts = st.RecentPrompts[:recentPromptsCap]
		}
		st.AnalyzedToday++

	case AnalysisFailed:
		if s.staleStage(a.PromptID) {
			return
		}
		st.Analysis.Analyzing = false
		st.Analysis.Enhancing = false
		st.Analysis.ScoringEnhanced = false
		st.Analysis.InferringGoal = false
		st.Analysis.Error = a.Err

	case SetCoaching:
		coaching := a.Coaching
		st.CurrentCoaching = &coaching
		if coaching.SessionID != "" {
			st.CoachingBySession[coaching.SessionID] = &coaching
		}

	case DismissCoaching:
		st.CurrentCoaching = nil

	case SetSessions:
		st.Sessions = a.Sessions

	case SetActiveSession:
		st.ActiveSessionID = a.ID
		// Switching sessions restores the per-session coaching view.
		if cached, ok := st.CoachingBySession[a.ID]; ok {
			st.CurrentCoaching = cached
		} else {
			st.CurrentCoaching = nil
		}

	case DeleteSession:
		filtered := st.Sessions[:0]
		for _, sess := range st.Sessions {
			if sess.ID != a.ID {
				filtered = append(filtered, sess)
			}
		}
		st.Sessions = filtered
		delete(st.CoachingBySession, a.ID)
		delete(st.SessionGoals, a.ID)
		if st.ActiveSessionID == a.ID {
			st.ActiveSessionID = ""
		}

	case SetSessionGoal:
		st.SessionGoals[a.SessionID] = a.Goal

	case PromptDetected:
		log.Debug().Str("prompt", a.Prompt.ID).Str("source", a.Prompt.Source.ID).Msg("Prompt detected")

	case ResponseCaptured:
		log.Debug().Str("session", a.SessionID).Str("response", a.Response.ID).Msg("Response captured")

	case AdapterStatusChanged:
		st.AdapterStatus[a.SourceID] = a.Status

	case SetTab:
		st.CurrentTab = a.Tab

	case StartLoadingSummary:
		st.Summary = SummaryState{Loading: true, Period: a.Period}

	case SummaryProgress:
		st.Summary.Progress = a.Percent

	case SummaryLoaded:
		st.Summary.Loading = false
		st.Summary.Progress = 100
		st.Summary.Summary = a.Summary

	case CancelLoadingSummary:
		// Tab context survives the cancel.
		tab := st.CurrentTab
		st.Summary = SummaryState{}
		st.CurrentTab = tab

	case SetAuthStatus:
		st.Auth = AuthState{LoggedIn: a.LoggedIn, UserID: a.UserID}

	case UploadStarted:
		st.Upload = UploadState{InProgress: true, Total: a.Total}

	case UploadProgressed:
		st.Upload.Uploaded = a.Uploaded
		st.Upload.Total = a.Total

	case UploadFinished:
		result := a.Result
		st.Upload.InProgress = false
		st.Upload.Result = &result

	case UploadFailed:
		st.Upload.InProgress = false
		st.Upload.Error = a.Err

	case SetError:
		st.LastError = a.Message

	case ClearError:
		st.LastError = ""

	case ResetDaily:
		st.AnalyzedToday = 0
	}
}

// staleStage drops stage callbacks from a superseded pipeline: results are
// discarded when their prompt ID no longer matches the one under analysis.
func (s *Store) staleStage(promptID string) bool {
	return s.state.Analysis.PromptID != promptID
}

func cloneState(st State) State {
	out := st
	out.RecentPrompts = append([]models.Prompt(nil), st.RecentPrompts...)
	out.Sessions = append([]models.SessionIndex(nil), st.Sessions...)
	out.CoachingBySession = make(map[string]*models.CoachingData, len(st.CoachingBySession))
	for k, v := range st.CoachingBySession {
		out.CoachingBySession[k] = v
	}
	out.SessionGoals = make(map[string]string, len(st.SessionGoals))
	for k, v := range st.SessionGoals {
		out.SessionGoals[k] = v
	}
	out.AdapterStatus = make(map[string]adapters.Status, len(st.AdapterStatus))
	for k, v := range st.AdapterStatus {
		out.AdapterStatus[k] = v
	}
	return out
}
