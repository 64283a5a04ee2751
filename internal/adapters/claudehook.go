// Package adapters observes prompt sources and emits normalised
// DetectedPrompt events.
package adapters

import (
	"context"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/hookfile"
	"github.com/DevArk-AI/devark/internal/pathfilter"
	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/internal/settings"
	"github.com/DevArk-AI/devark/pkg/models"
)

// claudePromptPrefix matches the hook files the CLI's UserPromptSubmit hook
// drops into the scratch directory.
const claudePromptPrefix = "claude-prompt-"

// ClaudeHookConfig configures the CLI-hook adapter.
type ClaudeHookConfig struct {
	HookDir      string
	SettingsPath string
	PollInterval time.Duration
	Filter       *pathfilter.Filter
}

// ClaudeHookAdapter detects Claude CLI prompts via hook files.
type ClaudeHookAdapter struct {
	cfg       ClaudeHookConfig
	processor *hookfile.Processor

	mu        sync.Mutex
	status    Status
	onPrompt  []PromptCallback
	onStatus  []StatusCallback
	cancel    context.CancelFunc
}

// NewClaudeHookAdapter creates the adapter. Zero-valued config fields take
// platform defaults.
func NewClaudeHookAdapter(cfg ClaudeHookConfig) *ClaudeHookAdapter {
	if cfg.HookDir == "" {
		cfg.HookDir = paths.HookScratchDir()
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = paths.ClaudeSettingsPath()
	}
	if cfg.Filter == nil {
		cfg.Filter = pathfilter.Default()
	}
	return &ClaudeHookAdapter{
		cfg: cfg,
		processor: hookfile.New(hookfile.Config{
			Dir:          cfg.HookDir,
			Prefixes:     []string{claudePromptPrefix},
			Suffix:       ".json",
			PollInterval: cfg.PollInterval,
			LogContext:   "claude-hook",
		}),
	}
}

// Source identifies this adapter.
func (a *ClaudeHookAdapter) Source() models.PromptSource {
	return models.SourceClaudeCode
}

// Initialize prepares the scratch directory and verifies, best-effort, that
// the CLI settings register a UserPromptSubmit hook pointing at a known
// sync script. A missing hook is informational, never fatal.
func (a *ClaudeHookAdapter) Initialize() bool {
	if err := a.processor.EnsureHookDir(); err != nil {
		a.setError("ensure hook dir: " + err.Error())
		return false
	}

	a.mu.Lock()
	a.status.IsReady = true
	a.status.IsAvailable = true
	if !a.hookInstalled() {
		a.status.Info = "UserPromptSubmit hook not found in CLI settings"
	}
	a.mu.Unlock()
	a.notifyStatus()
	return true
}

// hookInstalled checks the CLI settings for a devark sync hook.
func (a *ClaudeHookAdapter) hookInstalled() bool {
	cfg, err := settings.Read(a.cfg.SettingsPath)
	if err != nil {
		return false
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return false
	}
	text := string(raw)
	return strings.Contains(text, "UserPromptSubmit") &&
		(strings.Contains(text, "devark-sync") || strings.Contains(text, "devark-hook"))
}

// Start begins watching the scratch directory.
func (a *ClaudeHookAdapter) Start() error {
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

	if err := a.processor.Watch(ctx, a.handleFile); err != nil {
		a.setError("watch: " + err.Error())
		return err
	}
	a.notifyStatus()
	log.Info().Str("dir", a.cfg.HookDir).Msg("Claude hook adapter watching")
	return nil
}

// Stop halts watching.
func (a *ClaudeHookAdapter) Stop() {
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

// IsAvailable reports whether the adapter can observe anything.
func (a *ClaudeHookAdapter) IsAvailable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status.IsAvailable
}

// Status returns a snapshot.
func (a *ClaudeHookAdapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Dispose stops watchers and clears callbacks.
func (a *ClaudeHookAdapter) Dispose() {
	a.Stop()
	a.mu.Lock()
	a.onPrompt = nil
	a.onStatus = nil
	a.mu.Unlock()
}

// OnPrompt registers a prompt callback.
func (a *ClaudeHookAdapter) OnPrompt(cb PromptCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onPrompt = append(a.onPrompt, cb)
}

// OnStatusChange registers a status callback.
func (a *ClaudeHookAdapter) OnStatusChange(cb StatusCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onStatus = append(a.onStatus, cb)
}

// handleFile ingests one hook file: dedup by basename, read, parse with the
// prompt field required, delete, ignore-filter, emit.
func (a *ClaudeHookAdapter) handleFile(name string) {
	if a.processor.WasProcessed(name) {
		return
	}
	a.processor.MarkProcessed(name)

	raw := a.processor.ReadFile(name)
	if raw == nil {
		return
	}

	data := a.processor.ParseData(string(raw), name, []string{"prompt"})
	// Quarantine by deletion: the file goes away whether or not it parsed.
	a.processor.DeleteFile(name)
	if data == nil {
		log.Debug().Str("file", name).Msg("Discarding unparseable hook file")
		return
	}

	var payload models.HookPayload
	if err := json.Unmarshal(mustMarshal(data), &payload); err != nil {
		log.Debug().Str("file", name).Err(err).Msg("Hook payload shape mismatch")
		return
	}

	projectPath := payload.CWD
	if projectPath == "" && len(payload.WorkspaceRoots) > 0 {
		projectPath = payload.WorkspaceRoots[0]
	}
	if a.cfg.Filter.ShouldIgnorePath(projectPath) {
		log.Debug().Str("path", projectPath).Msg("Prompt from ignored path dropped")
		return
	}

	prompt := models.DetectedPrompt{
		ID:        NewPromptID(models.SourceClaudeCode.ID),
		Text:      payload.Prompt,
		Timestamp: resolveTimestamp(payload.Timestamp),
		Source:    models.SourceClaudeCode,
		Context: models.PromptContext{
			ProjectPath:     projectPath,
			ProjectName:     baseName(projectPath),
			SourceSessionID: payload.ResolveSessionID(),
			Files:           attachmentPaths(payload.Attachments),
			Metadata:        payload.Metadata,
		},
	}

	a.mu.Lock()
	a.status.PromptsDetected++
	callbacks := append([]PromptCallback(nil), a.onPrompt...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(prompt)
	}
	a.notifyStatus()
}

func (a *ClaudeHookAdapter) setError(msg string) {
	a.mu.Lock()
	a.status.LastError = msg
	a.status.IsAvailable = false
	a.mu.Unlock()
	a.notifyStatus()
	log.Warn().Str("adapter", "claude-hook").Msg(msg)
}

func (a *ClaudeHookAdapter) notifyStatus() {
	a.mu.Lock()
	status := a.status
	callbacks := append([]StatusCallback(nil), a.onStatus...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(status)
	}
}
