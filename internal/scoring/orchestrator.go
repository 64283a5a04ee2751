package scoring

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/DevArk-AI/devark/internal/state"
	"github.com/DevArk-AI/devark/pkg/models"
)

// Orchestrator runs the four-stage pipeline for each detected prompt and
// dispatches every partial result to the store so the UI renders
// progressively. Stages without a data dependency run concurrently; the
// enhanced-score stage waits on the enhancement.
type Orchestrator struct {
	provider Provider
	store    *state.Store

	mu      sync.Mutex
	current string // prompt ID under analysis; stale pipelines are discarded
}

// NewOrchestrator creates the orchestrator.
func NewOrchestrator(provider Provider, store *state.Store) *Orchestrator {
	return &Orchestrator{provider: provider, store: store}
}

// Analyze starts the pipeline for one prompt. A newer Analyze supersedes a
// running one: the old pipeline keeps running but its dispatches are
// dropped both here and in the reducer, keyed by prompt ID.
func (o *Orchestrator) Analyze(ctx context.Context, prompt models.DetectedPrompt, sessionGoal string, recentPrompts []string) {
	o.mu.Lock()
	o.current = prompt.ID
	o.mu.Unlock()

	o.store.Dispatch(state.StartAnalysis{Prompt: prompt})
	go o.run(ctx, prompt, sessionGoal, recentPrompts)
}

func (o *Orchestrator) run(ctx context.Context, prompt models.DetectedPrompt, sessionGoal string, recentPrompts []string) {
	var (
		result   models.Prompt
		resultMu sync.Mutex
	)
	result.ID = prompt.ID
	result.Text = prompt.Text
	result.Timestamp = prompt.Timestamp

	g, ctx := errgroup.WithContext(ctx)

	// Stage 1: score the original prompt.
	g.Go(func() error {
		score, err := o.provider.Score(ctx, prompt.Text)
		if err != nil {
			log.Debug().Str("prompt", prompt.ID).Err(err).Msg("Score stage failed")
			return err
		}
		o.dispatch(prompt.ID, state.ScoreReceived{PromptID: prompt.ID, Score: score})
		resultMu.Lock()
		result.Score = &score
		resultMu.Unlock()
		return nil
	})

	// Stages 2+3: enhance, then score the enhancement.
	g.Go(func() error {
		enhanced, err := o.provider.Enhance(ctx, prompt.Text)
		if err != nil {
			log.Debug().Str("prompt", prompt.ID).Err(err).Msg("Enhance stage failed")
			return err
		}
		o.dispatch(prompt.ID, state.EnhancedPromptReady{PromptID: prompt.ID, Text: enhanced})
		resultMu.Lock()
		result.EnhancedText = enhanced
		resultMu.Unlock()

		score, err := o.provider.Score(ctx, enhanced)
		if err != nil {
			log.Debug().Str("prompt", prompt.ID).Err(err).Msg("Enhanced-score stage failed")
			return err
		}
		o.dispatch(prompt.ID, state.EnhancedScoreReady{PromptID: prompt.ID, Score: score})
		resultMu.Lock()
		result.EnhancedScore = &score
		resultMu.Unlock()
		return nil
	})

	// Stage 4: goal inference, only when the session has no goal yet.
	g.Go(func() error {
		if sessionGoal != "" {
			o.dispatch(prompt.ID, state.GoalInferenceReady{PromptID: prompt.ID, Goal: sessionGoal})
			return nil
		}
		goal, err := o.provider.InferGoal(ctx, prompt.Text, recentPrompts)
		if err != nil {
			log.Debug().Str("prompt", prompt.ID).Err(err).Msg("Goal stage failed")
			return err
		}
		o.dispatch(prompt.ID, state.GoalInferenceReady{PromptID: prompt.ID, Goal: goal})
		resultMu.Lock()
		result.InferredGoal = goal
		resultMu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		o.dispatch(prompt.ID, state.AnalysisFailed{PromptID: prompt.ID, Err: err.Error()})
		return
	}
	o.dispatch(prompt.ID, state.AnalysisComplete{Prompt: result})
}

// dispatch forwards an action unless the pipeline was superseded.
func (o *Orchestrator) dispatch(promptID string, action state.Action) {
	o.mu.Lock()
	stale := o.current != promptID
	o.mu.Unlock()
	if stale {
		return
	}
	o.store.Dispatch(action)
}
