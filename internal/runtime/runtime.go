// Package runtime connects the observation surfaces: adapter prompt events
// flow into the history store and the scoring pipeline, response scratch
// files flow into analysis and coaching.
package runtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/analysis"
	"github.com/DevArk-AI/devark/internal/coaching"
	"github.com/DevArk-AI/devark/internal/hookfile"
	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/internal/state"
	"github.com/DevArk-AI/devark/internal/store"
	"github.com/DevArk-AI/devark/pkg/models"
)

// recentsCap bounds the per-session prompt history kept for goal inference
// and coaching context.
const recentsCap = 10

const responsePrefix = "response-"

// History is the slice of the store the runtime writes through.
type History interface {
	ResolveSession(ctx context.Context, project, platform string, at time.Time) (*store.SessionRecord, error)
	RecordPrompt(ctx context.Context, sessionID, source string, prompt models.Prompt) error
	RecordResponse(ctx context.Context, sessionID string, resp models.Response, outcome models.ResponseOutcome) error
	RecordCoaching(ctx context.Context, coaching models.CoachingData) error
	SetSessionGoal(ctx context.Context, sessionID, goal string) error
}

// Analyzer starts the scoring pipeline for a prompt.
type Analyzer interface {
	Analyze(ctx context.Context, prompt models.DetectedPrompt, sessionGoal string, recentPrompts []string)
}

// Coach generates coaching for a captured response.
type Coach interface {
	Generate(ctx context.Context, req coaching.Request) coaching.Result
}

// Invalidator drops read caches after a write event.
type Invalidator interface {
	Invalidate()
}

// Config wires the runtime's collaborators. History and State are
// required; the rest degrade to no-ops when nil.
type Config struct {
	History      History
	State        *state.Store
	Analyzer     Analyzer
	Coach        Coach
	Index        Invalidator
	HookDir      string
	PollInterval time.Duration
}

// sessionCtx is the per-session memory the runtime keeps between events.
type sessionCtx struct {
	recents      []string
	lastPromptID string
	lastText     string
	goal         string
}

// promptRef remembers where a detected prompt was filed so its analysis
// results can be persisted when the pipeline finishes.
type promptRef struct {
	sessionID string
	source    string
}

// Runtime routes observation events.
type Runtime struct {
	cfg       Config
	responses *hookfile.Processor

	mu            sync.Mutex
	sessions      map[string]*sessionCtx
	promptIndex   map[string]promptRef
	promptOrder   []string
	lastPersisted string
}

// promptIndexCap bounds the prompt-to-session index.
const promptIndexCap = 200

// New builds a runtime. The response watcher is not started until Start.
// When a state store is configured, completed analyses flow back into the
// history store through its subscription.
func New(cfg Config) *Runtime {
	if cfg.HookDir == "" {
		cfg.HookDir = paths.HookScratchDir()
	}
	r := &Runtime{
		cfg: cfg,
		responses: hookfile.New(hookfile.Config{
			Dir:          cfg.HookDir,
			Prefixes:     []string{responsePrefix},
			PollInterval: cfg.PollInterval,
			LogContext:   "response-watch",
		}),
		sessions:    make(map[string]*sessionCtx),
		promptIndex: make(map[string]promptRef),
	}
	if cfg.State != nil {
		cfg.State.Subscribe(r.persistAnalysis)
	}
	return r
}

// persistAnalysis writes a finished prompt analysis back to the history
// store. The reducer prepends each completed prompt to RecentPrompts, so a
// changed head means new results.
func (r *Runtime) persistAnalysis(snapshot state.State) {
	if len(snapshot.RecentPrompts) == 0 {
		return
	}
	head := snapshot.RecentPrompts[0]

	r.mu.Lock()
	if head.ID == r.lastPersisted {
		r.mu.Unlock()
		return
	}
	r.lastPersisted = head.ID
	ref, ok := r.promptIndex[head.ID]
	var sess *sessionCtx
	if ok {
		sess = r.sessions[ref.sessionID]
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	ctx := context.Background()
	if err := r.cfg.History.RecordPrompt(ctx, ref.sessionID, ref.source, head); err != nil {
		log.Error().Err(err).Str("prompt", head.ID).Msg("persist analysis failed")
	}
	if head.InferredGoal == "" {
		return
	}
	if err := r.cfg.History.SetSessionGoal(ctx, ref.sessionID, head.InferredGoal); err != nil {
		log.Error().Err(err).Str("session", ref.sessionID).Msg("persist goal failed")
	}
	if sess != nil {
		r.mu.Lock()
		if sess.goal == "" {
			sess.goal = head.InferredGoal
		}
		r.mu.Unlock()
	}
}

// HandlePrompt records a detected prompt and kicks off its analysis.
// Wire it as the adapters' OnPrompt callback.
func (r *Runtime) HandlePrompt(ctx context.Context, dp models.DetectedPrompt) {
	rec, err := r.cfg.History.ResolveSession(ctx, dp.Context.ProjectPath, dp.Source.ID, dp.Timestamp)
	if err != nil {
		log.Error().Err(err).Str("source", dp.Source.ID).Msg("resolve session failed, prompt dropped")
		return
	}

	prompt := models.Prompt{ID: dp.ID, Text: dp.Text, Timestamp: dp.Timestamp}
	if err := r.cfg.History.RecordPrompt(ctx, rec.ID, dp.Source.ID, prompt); err != nil {
		log.Error().Err(err).Str("prompt", dp.ID).Msg("record prompt failed")
	}
	if r.cfg.State != nil {
		r.cfg.State.Dispatch(state.PromptDetected{Prompt: dp})
	}

	sess := r.session(rec.ID)
	r.mu.Lock()
	goal := sess.goal
	if goal == "" && rec.Goal.Valid {
		goal = rec.Goal.String
		sess.goal = goal
	}
	recents := append([]string(nil), sess.recents...)
	sess.recents = append(sess.recents, dp.Text)
	if len(sess.recents) > recentsCap {
		sess.recents = sess.recents[len(sess.recents)-recentsCap:]
	}
	sess.lastPromptID = dp.ID
	sess.lastText = dp.Text
	r.promptIndex[dp.ID] = promptRef{sessionID: rec.ID, source: dp.Source.ID}
	r.promptOrder = append(r.promptOrder, dp.ID)
	if len(r.promptOrder) > promptIndexCap {
		delete(r.promptIndex, r.promptOrder[0])
		r.promptOrder = r.promptOrder[1:]
	}
	r.mu.Unlock()

	if r.cfg.Analyzer != nil {
		r.cfg.Analyzer.Analyze(ctx, dp, goal, recents)
	}
	if r.cfg.Index != nil {
		r.cfg.Index.Invalidate()
	}
}

// Start processes any response backlog and watches for new response files
// until the context is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.responses.EnsureHookDir(); err != nil {
		return err
	}
	if names, err := r.responses.ListMatchingFiles(); err == nil {
		for _, name := range names {
			r.handleResponseFile(ctx, name)
		}
	}
	return r.responses.Watch(ctx, func(name string) {
		r.handleResponseFile(ctx, name)
	})
}

// Stop halts the response watcher.
func (r *Runtime) Stop() {
	r.responses.Stop()
}

func (r *Runtime) handleResponseFile(ctx context.Context, name string) {
	if r.responses.WasProcessed(name) {
		return
	}
	r.responses.MarkProcessed(name)

	content := r.responses.ReadFile(name)
	if content == nil {
		return
	}
	data := r.responses.ParseData(string(content), name, []string{"text"})
	r.responses.DeleteFile(name)
	if data == nil {
		return
	}
	r.handleResponse(ctx, responseFromScratch(name, data))
}

// scratchResponse is a response event decoded from a scratch file.
type scratchResponse struct {
	id      string
	source  string
	project string
	resp    models.Response
}

func responseFromScratch(name string, data map[string]any) scratchResponse {
	ev := scratchResponse{
		id:      strings.TrimSuffix(name, ".json"),
		source:  normalizeSource(str(data["source"])),
		project: str(data["cwd"]),
	}
	ev.resp = models.Response{
		ID:        ev.id,
		Text:      str(data["text"]),
		Success:   boolOr(data["success"], true),
		Timestamp: timeOr(str(data["timestamp"]), time.Now()),
	}
	return ev
}

func (r *Runtime) handleResponse(ctx context.Context, ev scratchResponse) {
	rec, err := r.cfg.History.ResolveSession(ctx, ev.project, ev.source, ev.resp.Timestamp)
	if err != nil {
		log.Error().Err(err).Str("response", ev.id).Msg("resolve session failed, response dropped")
		return
	}

	sess := r.session(rec.ID)
	r.mu.Lock()
	ev.resp.PromptID = sess.lastPromptID
	prompt := sess.lastText
	goal := sess.goal
	recents := append([]string(nil), sess.recents...)
	r.mu.Unlock()

	outcome := analysis.ClassifyOutcome(ev.resp)
	if err := r.cfg.History.RecordResponse(ctx, rec.ID, ev.resp, outcome); err != nil {
		log.Error().Err(err).Str("response", ev.resp.ID).Msg("record response failed")
	}
	if r.cfg.State != nil {
		r.cfg.State.Dispatch(state.ResponseCaptured{SessionID: rec.ID, Response: ev.resp})
	}

	if r.cfg.Coach != nil {
		result := r.cfg.Coach.Generate(ctx, coaching.Request{
			ResponseID:  ev.resp.ID,
			SessionID:   rec.ID,
			Response:    ev.resp,
			Prompt:      prompt,
			SessionGoal: goal,
			Recent:      recents,
		})
		if result.Generated {
			if err := r.cfg.History.RecordCoaching(ctx, *result.Coaching); err != nil {
				log.Error().Err(err).Msg("record coaching failed")
			}
			if r.cfg.State != nil {
				r.cfg.State.Dispatch(state.SetCoaching{Coaching: *result.Coaching})
			}
		} else {
			log.Debug().Str("reason", result.Reason).Msg("coaching suppressed")
		}
	}
	if r.cfg.Index != nil {
		r.cfg.Index.Invalidate()
	}
}

func (r *Runtime) session(id string) *sessionCtx {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		sess = &sessionCtx{}
		r.sessions[id] = sess
	}
	return sess
}

// normalizeSource maps the hook binary's source flag onto adapter source
// IDs so responses land in the same logical session as their prompts.
func normalizeSource(source string) string {
	switch source {
	case "claude-code", "":
		return models.SourceClaudeCode.ID
	case "cursor":
		return models.SourceCursor.ID
	}
	return source
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolOr(v any, def bool) bool {
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func timeOr(s string, def time.Time) time.Time {
	if s == "" {
		return def
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return def
	}
	return t
}
