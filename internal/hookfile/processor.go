// Package hookfile ingests the small JSON payloads hook scripts drop into
// the shared scratch directory. Delivery is a watch + poll hybrid since
// file-system-watcher reliability varies by platform; a dedup ring keeps a
// twice-delivered file from producing two events.
package hookfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/safejson"
)

// DefaultProcessedCap bounds the processed-ID ring.
const DefaultProcessedCap = 200

// DefaultPollInterval is the fallback poll cadence.
const DefaultPollInterval = 500 * time.Millisecond

// Config configures a Processor for one adapter.
type Config struct {
	Dir          string
	Prefixes     []string
	Suffix       string
	SkipList     []string
	ProcessedCap int
	PollInterval time.Duration
	// LogContext names the owning adapter in log lines.
	LogContext string
}

// Processor watches one scratch directory for matching hook files.
type Processor struct {
	cfg Config

	mu        sync.Mutex
	processed map[string]struct{}
	order     []string

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	running bool
}

// New creates a Processor. Zero cap and interval take the defaults.
func New(cfg Config) *Processor {
	if cfg.ProcessedCap <= 0 {
		cfg.ProcessedCap = DefaultProcessedCap
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Suffix == "" {
		cfg.Suffix = ".json"
	}
	return &Processor{
		cfg:       cfg,
		processed: make(map[string]struct{}),
	}
}

// EnsureHookDir creates the scratch directory if missing.
func (p *Processor) EnsureHookDir() error {
	return os.MkdirAll(p.cfg.Dir, 0o755)
}

// ListMatchingFiles returns basenames in the scratch directory that start
// with any configured prefix and end with the suffix, excluding skip-listed
// names.
func (p *Processor) ListMatchingFiles() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if p.matches(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (p *Processor) matches(name string) bool {
	if !strings.HasSuffix(name, p.cfg.Suffix) {
		return false
	}
	for _, skip := range p.cfg.SkipList {
		if name == skip {
			return false
		}
	}
	for _, prefix := range p.cfg.Prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return len(p.cfg.Prefixes) == 0
}

// WasProcessed reports whether id was already marked.
func (p *Processor) WasProcessed(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.processed[id]
	return ok
}

// MarkProcessed records id in the dedup ring. When the ring exceeds the cap,
// the oldest entries are discarded, keeping only the newest cap IDs. The
// ring is backed by an explicit insertion-ordered slice, not map iteration
// order.
func (p *Processor) MarkProcessed(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.processed[id]; ok {
		return
	}
	p.processed[id] = struct{}{}
	p.order = append(p.order, id)

	if len(p.order) > p.cfg.ProcessedCap {
		trim := p.order[:len(p.order)-p.cfg.ProcessedCap]
		for _, old := range trim {
			delete(p.processed, old)
		}
		p.order = append([]string(nil), p.order[len(p.order)-p.cfg.ProcessedCap:]...)
	}
}

// ProcessedCount returns the current ring size.
func (p *Processor) ProcessedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// ReadFile returns the file's content, or nil when it vanished (ENOENT is a
// normal race with deletion). Other read errors are logged and also return
// nil: callers never crash on a disappearing file.
func (p *Processor) ReadFile(name string) []byte {
	raw, err := os.ReadFile(filepath.Join(p.cfg.Dir, name))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Debug().
				Str("context", p.cfg.LogContext).
				Str("file", name).
				Err(err).
				Msg("Hook file read failed")
		}
		return nil
	}
	return raw
}

// ParseData runs the content through safe-JSON with recovery and checks the
// required fields. Returns nil on any failure.
func (p *Processor) ParseData(content, filename string, requiredFields []string) map[string]any {
	res := safejson.Parse(content, safejson.Options{
		AttemptRecovery: true,
		Context:         p.cfg.LogContext + ":" + filename,
		Validate: func(data any) bool {
			return safejson.HasRequiredFields(data, requiredFields)
		},
	})
	if !res.Success {
		return nil
	}
	obj, ok := res.Data.(map[string]any)
	if !ok {
		return nil
	}
	return obj
}

// DeleteFile removes the file, swallowing errors unconditionally (it may
// already be gone).
func (p *Processor) DeleteFile(name string) {
	_ = os.Remove(filepath.Join(p.cfg.Dir, name))
}

// Watch starts the fsnotify watcher plus the poll ticker and invokes onFile
// with each matching basename until Stop or context cancellation. Duplicate
// delivery across the two channels is expected; callers dedup through
// WasProcessed/MarkProcessed.
func (p *Processor) Watch(ctx context.Context, onFile func(name string)) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	if err := p.EnsureHookDir(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := watcher.Add(p.cfg.Dir); addErr != nil {
			log.Warn().
				Str("context", p.cfg.LogContext).
				Str("dir", p.cfg.Dir).
				Err(addErr).
				Msg("Failed to watch hook dir, polling only")
			watcher.Close()
			watcher = nil
		}
	} else {
		log.Warn().Str("context", p.cfg.LogContext).Err(err).Msg("fsnotify unavailable, polling only")
		watcher = nil
	}
	p.watcher = watcher

	go p.loop(ctx, onFile)
	return nil
}

// Stop halts watching and polling and clears the dedup ring.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.cancel != nil {
		p.cancel()
	}
	if p.watcher != nil {
		_ = p.watcher.Close()
		p.watcher = nil
	}
	p.processed = make(map[string]struct{})
	p.order = nil
}

func (p *Processor) loop(ctx context.Context, onFile func(name string)) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if p.watcher != nil {
		events = p.watcher.Events
		errs = p.watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if p.matches(name) {
				onFile(name)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Debug().Str("context", p.cfg.LogContext).Err(err).Msg("Watcher error")

		case <-ticker.C:
			names, err := p.ListMatchingFiles()
			if err != nil {
				log.Debug().Str("context", p.cfg.LogContext).Err(err).Msg("Hook dir poll failed")
				continue
			}
			for _, name := range names {
				onFile(name)
			}
		}
	}
}
