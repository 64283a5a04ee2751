package adapters

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/cursordb"
	"github.com/DevArk-AI/devark/internal/hookfile"
	"github.com/DevArk-AI/devark/internal/pathfilter"
	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/pkg/models"
)

// DefaultCursorPollInterval is the chat-DB poll cadence.
const DefaultCursorPollInterval = 2 * time.Second

// cursorHookPrefix matches out-of-band hook files from IDE builds that emit
// them alongside the database.
const cursorHookPrefix = "prompt-"

// CursorConfig configures the IDE polling adapter.
type CursorConfig struct {
	DB           *cursordb.Reader
	HookDir      string
	PollInterval time.Duration
	Filter       *pathfilter.Filter
}

// CursorAdapter detects Cursor prompts by polling the IDE's chat database,
// with a parallel hook-file watch for builds that drop prompt files.
type CursorAdapter struct {
	cfg       CursorConfig
	db        *cursordb.Reader
	processor *hookfile.Processor

	mu       sync.Mutex
	status   Status
	onPrompt []PromptCallback
	onStatus []StatusCallback
	cancel   context.CancelFunc
	// seen maps sessionID -> set of user-message IDs already snapshotted;
	// populated at start to suppress historical back-fill.
	seen map[string]map[string]struct{}
}

// NewCursorAdapter creates the adapter.
func NewCursorAdapter(cfg CursorConfig) *CursorAdapter {
	if cfg.DB == nil {
		cfg.DB = cursordb.NewReader()
	}
	if cfg.HookDir == "" {
		cfg.HookDir = paths.HookScratchDir()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultCursorPollInterval
	}
	if cfg.Filter == nil {
		cfg.Filter = pathfilter.Default()
	}
	return &CursorAdapter{
		cfg: cfg,
		db:  cfg.DB,
		processor: hookfile.New(hookfile.Config{
			Dir:        cfg.HookDir,
			Prefixes:   []string{cursorHookPrefix},
			Suffix:     ".json",
			LogContext: "cursor-hook",
		}),
		seen: make(map[string]map[string]struct{}),
	}
}

// Source identifies this adapter.
func (a *CursorAdapter) Source() models.PromptSource {
	return models.SourceCursor
}

// Initialize checks the database exists.
func (a *CursorAdapter) Initialize() bool {
	available := a.db.IsAvailable()
	a.mu.Lock()
	a.status.IsReady = available
	a.status.IsAvailable = available
	if !available {
		a.status.Info = "Cursor state database not found"
	}
	a.mu.Unlock()
	a.notifyStatus()
	return available
}

// Start snapshots every active session's user-message IDs, then begins the
// poll loop and the parallel hook watch.
func (a *CursorAdapter) Start() error {
	ctx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		cancel()
		return nil
	}
	a.cancel = cancel
	a.status.IsWatching = true
	a.mu.Unlock()

	a.snapshot(ctx)

	go a.pollLoop(ctx)
	if err := a.processor.Watch(ctx, a.handleHookFile); err != nil {
		log.Debug().Err(err).Msg("Cursor hook watch unavailable")
	}

	a.notifyStatus()
	log.Info().Dur("interval", a.cfg.PollInterval).Msg("Cursor adapter polling")
	return nil
}

// Stop halts polling and watching.
func (a *CursorAdapter) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.status.IsWatching = false
	a.mu.Unlock()
	a.processor.Stop()
	a.notifyStatus()
}

// IsAvailable reports database presence.
func (a *CursorAdapter) IsAvailable() bool {
	return a.db.IsAvailable()
}

// Status returns a snapshot.
func (a *CursorAdapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Dispose stops everything and clears state.
func (a *CursorAdapter) Dispose() {
	a.Stop()
	a.mu.Lock()
	a.onPrompt = nil
	a.onStatus = nil
	a.seen = make(map[string]map[string]struct{})
	a.mu.Unlock()
}

// OnPrompt registers a prompt callback.
func (a *CursorAdapter) OnPrompt(cb PromptCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onPrompt = append(a.onPrompt, cb)
}

// OnStatusChange registers a status callback.
func (a *CursorAdapter) OnStatusChange(cb StatusCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onStatus = append(a.onStatus, cb)
}

// snapshot records the current user-message IDs of every session so the
// first poll doesn't replay history.
func (a *CursorAdapter) snapshot(ctx context.Context) {
	sessions, err := a.db.ListSessions(ctx)
	if err != nil {
		if !cursordb.IsBusy(err) {
			a.setError("snapshot: " + err.Error())
		}
		return
	}
	a.mu.Lock()
	for _, s := range sessions {
		if _, ok := a.seen[s.ID]; !ok {
			a.seen[s.ID] = make(map[string]struct{})
		}
	}
	a.mu.Unlock()

	for _, s := range sessions {
		ids, err := a.db.UserMessageIDs(ctx, s.ID)
		if err != nil {
			continue
		}
		a.mu.Lock()
		for _, id := range ids {
			a.seen[s.ID][id] = struct{}{}
		}
		a.mu.Unlock()
	}
}

func (a *CursorAdapter) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick diffs every session's user-message IDs against the seen-set and
// emits a prompt for each new ID. Busy errors skip the tick with dedup
// state intact.
func (a *CursorAdapter) tick(ctx context.Context) {
	sessions, err := a.db.ListSessions(ctx)
	if err != nil {
		if cursordb.IsBusy(err) {
			return
		}
		a.setError("poll: " + err.Error())
		return
	}

	for _, s := range sessions {
		if a.cfg.Filter.ShouldIgnorePath(s.WorkspacePath) {
			continue
		}

		ids, err := a.db.UserMessageIDs(ctx, s.ID)
		if err != nil {
			if cursordb.IsBusy(err) {
				return
			}
			a.setError("poll session " + s.ID + ": " + err.Error())
			continue
		}

		for _, id := range ids {
			if a.alreadySeen(s.ID, id) {
				continue
			}
			a.markSeen(s.ID, id)

			text, err := a.db.UserMessage(ctx, s.ID, id)
			if err != nil || text == "" {
				continue
			}
			a.emit(models.DetectedPrompt{
				ID:        NewPromptID(models.SourceCursor.ID),
				Text:      text,
				Timestamp: time.Now(),
				Source:    models.SourceCursor,
				Context: models.PromptContext{
					ProjectPath:     s.WorkspacePath,
					ProjectName:     baseName(s.WorkspacePath),
					SourceSessionID: s.ID,
				},
			})
		}
	}
}

// handleHookFile ingests one out-of-band hook file from IDE builds that
// emit them.
func (a *CursorAdapter) handleHookFile(name string) {
	if a.processor.WasProcessed(name) {
		return
	}
	a.processor.MarkProcessed(name)

	raw := a.processor.ReadFile(name)
	if raw == nil {
		return
	}
	data := a.processor.ParseData(string(raw), name, []string{"prompt"})
	a.processor.DeleteFile(name)
	if data == nil {
		return
	}

	var payload models.HookPayload
	if err := json.Unmarshal(mustMarshal(data), &payload); err != nil {
		return
	}
	projectPath := payload.CWD
	if projectPath == "" && len(payload.WorkspaceRoots) > 0 {
		projectPath = payload.WorkspaceRoots[0]
	}
	if a.cfg.Filter.ShouldIgnorePath(projectPath) {
		return
	}

	a.emit(models.DetectedPrompt{
		ID:        NewPromptID(models.SourceCursor.ID),
		Text:      payload.Prompt,
		Timestamp: resolveTimestamp(payload.Timestamp),
		Source:    models.SourceCursor,
		Context: models.PromptContext{
			ProjectPath:     projectPath,
			ProjectName:     baseName(projectPath),
			SourceSessionID: payload.ResolveSessionID(),
			Metadata:        payload.Metadata,
		},
	})
}

func (a *CursorAdapter) alreadySeen(sessionID, msgID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.seen[sessionID]
	if !ok {
		return false
	}
	_, seen := set[msgID]
	return seen
}

func (a *CursorAdapter) markSeen(sessionID, msgID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.seen[sessionID]
	if !ok {
		set = make(map[string]struct{})
		a.seen[sessionID] = set
	}
	set[msgID] = struct{}{}
}

func (a *CursorAdapter) emit(prompt models.DetectedPrompt) {
	a.mu.Lock()
	a.status.PromptsDetected++
	callbacks := append([]PromptCallback(nil), a.onPrompt...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(prompt)
	}
	a.notifyStatus()
}

func (a *CursorAdapter) setError(msg string) {
	a.mu.Lock()
	a.status.LastError = msg
	a.mu.Unlock()
	a.notifyStatus()
	log.Warn().Str("adapter", "cursor").Msg(msg)
}

func (a *CursorAdapter) notifyStatus() {
	a.mu.Lock()
	status := a.status
	callbacks := append([]StatusCallback(nil), a.onStatus...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(status)
	}
}
