// Package transcript reads Claude Code JSONL session transcripts from the
// CLI's projects directory. It serves two tiers: a lightweight index pass
// that only accumulates counters, and a full materialisation pass used when
// a session is opened.
package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/internal/safejson"
	"github.com/DevArk-AI/devark/pkg/models"
)

// maxLineBytes bounds a single transcript line (tool results can be large).
const maxLineBytes = 10 * 1024 * 1024

// Reader reads Claude CLI transcripts.
type Reader struct {
	projectsDir string
	codec       tokenizer.Codec
}

// NewReader creates a Reader over the default projects directory.
func NewReader() *Reader {
	return NewReaderAt(paths.ClaudeProjectsDir())
}

// NewReaderAt creates a Reader over an explicit projects directory.
func NewReaderAt(projectsDir string) *Reader {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		log.Debug().Err(err).Msg("Tokenizer unavailable, token estimates disabled")
	}
	return &Reader{projectsDir: projectsDir, codec: codec}
}

// IsAvailable reports whether the CLI's projects directory exists.
func (r *Reader) IsAvailable() bool {
	info, err := os.Stat(r.projectsDir)
	return err == nil && info.IsDir()
}

// IndexOptions filters the index pass.
type IndexOptions struct {
	Since time.Time
}

// ReadOptions filters the heavy pass.
type ReadOptions struct {
	Since time.Time
	Limit int
}

// transcriptLine is the JSON structure of one JSONL line. Only the fields
// the reader consumes are declared.
type transcriptLine struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	CWD       string          `json:"cwd"`
	SessionID string          `json:"sessionId"`
	Summary   string          `json:"summary"`
	Message   *messagePayload `json:"message"`
}

type messagePayload struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Model   string          `json:"model"`
	Usage   *usagePayload   `json:"usage"`
}

type usagePayload struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ReadSessionIndex scans every transcript and returns lightweight indices,
// newest first. Sessions whose last activity predates opts.Since are
// skipped. IDs are the raw session IDs (file basenames); source prefixing
// belongs to the unified session service.
func (r *Reader) ReadSessionIndex(opts IndexOptions) ([]models.SessionIndex, error) {
	files, err := r.listTranscripts()
	if err != nil {
		return nil, err
	}

	var out []models.SessionIndex
	for _, path := range files {
		idx, err := r.indexOne(path)
		if err != nil {
			log.Debug().Str("path", path).Err(err).Msg("Skipping unreadable transcript")
			continue
		}
		if idx == nil {
			continue
		}
		if !opts.Since.IsZero() && idx.Timestamp.Add(time.Duration(idx.DurationSec)*time.Second).Before(opts.Since) {
			continue
		}
		out = append(out, *idx)
	}
	sortByTimestampDesc(out)
	return out, nil
}

// ReadSessions returns full details for every matching session, newest
// first, honouring opts.Limit.
func (r *Reader) ReadSessions(opts ReadOptions) ([]models.SessionDetails, error) {
	indices, err := r.ReadSessionIndex(IndexOptions{Since: opts.Since})
	if err != nil {
		return nil, err
	}

	var out []models.SessionDetails
	for _, idx := range indices {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		details, err := r.GetSessionDetails(idx.ID)
		if err != nil {
			log.Debug().Str("session", idx.ID).Err(err).Msg("Skipping session details")
			continue
		}
		if details != nil {
			out = append(out, *details)
		}
	}
	return out, nil
}

// GetSessionDetails materialises one session's messages, highlights, and
// model info. Returns nil when the session is unknown.
func (r *Reader) GetSessionDetails(sessionID string) (*models.SessionDetails, error) {
	path, err := r.findTranscript(sessionID)
	if err != nil || path == "" {
		return nil, err
	}

	idx, err := r.indexOne(path)
	if err != nil || idx == nil {
		return nil, err
	}

	details := &models.SessionDetails{SessionIndex: *idx}

	err = r.scanLines(path, func(line transcriptLine) {
		if line.Type == "summary" && line.Summary != "" {
			details.Highlights = append(details.Highlights, line.Summary)
			return
		}
		if line.Message == nil {
			return
		}
		role := models.Role(line.Message.Role)
		if role != models.RoleUser && role != models.RoleAssistant && role != models.RoleSystem {
			return
		}
		content := extractText(line.Message.Content)
		if content == "" {
			return
		}
		details.Messages = append(details.Messages, models.Message{
			Role:      role,
			Content:   content,
			Timestamp: parseTimestamp(line.Timestamp),
		})
		if line.Message.Model != "" && details.ModelInfo == nil {
			details.ModelInfo = &models.ModelInfo{Name: line.Message.Model}
		}
	})
	if err != nil {
		return nil, err
	}

	// The first real user prompt leads the highlights.
	for _, msg := range details.Messages {
		if msg.Role == models.RoleUser && models.IsActualUserPrompt(msg.Content) {
			details.Highlights = append([]string{firstLine(msg.Content)}, details.Highlights...)
			break
		}
	}
	return details, nil
}

// indexOne runs the light pass over a single transcript: counters only, no
// message materialisation.
func (r *Reader) indexOne(path string) (*models.SessionIndex, error) {
	var (
		first, last  time.Time
		promptCount  int
		cwd          string
		usage        models.TokenUsage
		sawUsage     bool
		estInput     int64
		estOutput    int64
	)

	err := r.scanLines(path, func(line transcriptLine) {
		if ts := parseTimestamp(line.Timestamp); !ts.IsZero() {
			if first.IsZero() || ts.Before(first) {
				first = ts
			}
			if ts.After(last) {
				last = ts
			}
		}
		if line.CWD != "" && cwd == "" {
			cwd = line.CWD
		}
		if line.Message == nil {
			return
		}
		content := extractText(line.Message.Content)
		switch line.Message.Role {
		case "user":
			if models.IsActualUserPrompt(content) {
				promptCount++
				estInput += r.countTokens(content)
			}
		case "assistant":
			estOutput += r.countTokens(content)
		}
		if u := line.Message.Usage; u != nil {
			usage.InputTokens += u.InputTokens
			usage.OutputTokens += u.OutputTokens
			sawUsage = true
		}
	})
	if err != nil {
		return nil, err
	}
	// The file basename is the session ID; the sessionId field inside the
	// lines can lag behind after a resume.
	sessionID := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	if first.IsZero() {
		return nil, nil // empty transcript
	}

	idx := &models.SessionIndex{
		ID:            sessionID,
		Source:        models.SourceClaudeCode.ID,
		Timestamp:     first,
		DurationSec:   int64(last.Sub(first).Seconds()),
		ProjectPath:   cwd,
		WorkspaceName: filepath.Base(filepath.Dir(path)),
		PromptCount:   promptCount,
	}
	if cwd != "" {
		idx.WorkspaceName = filepath.Base(cwd)
	}
	if sawUsage {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
		idx.TokenUsage = &usage
	} else if estInput+estOutput > 0 {
		// The transcript recorded no usage; estimate from the text.
		idx.TokenUsage = &models.TokenUsage{
			InputTokens:  estInput,
			OutputTokens: estOutput,
			TotalTokens:  estInput + estOutput,
			Estimated:    true,
		}
	}
	return idx, nil
}

// countTokens estimates the token count of text via the tokenizer, falling
// back to a bytes/4 heuristic when the codec failed to load.
func (r *Reader) countTokens(text string) int64 {
	if text == "" {
		return 0
	}
	if r.codec != nil {
		if ids, _, err := r.codec.Encode(text); err == nil {
			return int64(len(ids))
		}
	}
	return int64(len(text) / 4)
}

// scanLines streams a transcript line by line. Unparseable lines are
// skipped; the final line may be mid-write, so it gets a safe-JSON recovery
// attempt before being discarded.
func (r *Reader) scanLines(path string, fn func(transcriptLine)) error {
	f, err := os.Open(path)
	if err != nil {
		if isTransient(err) {
			return nil
		}
		return fmt.Errorf("open transcript %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var pending []byte
	for scanner.Scan() {
		if pending != nil {
			parseLine(string(pending), false, fn)
		}
		pending = append(pending[:0], scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan transcript %s: %w", path, err)
	}
	if pending != nil {
		parseLine(string(pending), true, fn)
	}
	return nil
}

func parseLine(raw string, isLast bool, fn func(transcriptLine)) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	var line transcriptLine
	if err := json.Unmarshal([]byte(raw), &line); err == nil {
		fn(line)
		return
	}
	if !isLast {
		return
	}
	// Tail line may be a partial write: try recovery before discarding.
	if err := safejson.Unmarshal(raw, &line, safejson.Options{AttemptRecovery: true, Context: "transcript-tail"}); err == nil {
		fn(line)
	}
}

// extractText pulls human-readable text from a message content field. User
// messages carry a plain string; assistant messages carry content blocks.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}

	var parts []string
	for _, block := range blocks {
		var obj struct {
			Type    string          `json:"type"`
			Text    string          `json:"text"`
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(block, &obj); err != nil {
			continue
		}
		switch obj.Type {
		case "text":
			if obj.Text != "" {
				parts = append(parts, obj.Text)
			}
		case "tool_result":
			parts = append(parts, "[Tool result]")
		}
	}
	return strings.Join(parts, "\n")
}

func (r *Reader) listTranscripts() ([]string, error) {
	projectDirs, err := os.ReadDir(r.projectsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	var files []string
	for _, dir := range projectDirs {
		if !dir.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(r.projectsDir, dir.Name()))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jsonl") {
				files = append(files, filepath.Join(r.projectsDir, dir.Name(), entry.Name()))
			}
		}
	}
	return files, nil
}

func (r *Reader) findTranscript(sessionID string) (string, error) {
	files, err := r.listTranscripts()
	if err != nil {
		return "", err
	}
	for _, path := range files {
		if strings.TrimSuffix(filepath.Base(path), ".jsonl") == sessionID {
			return path, nil
		}
	}
	return "", nil
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Time{}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func sortByTimestampDesc(indices []models.SessionIndex) {
	sort.Slice(indices, func(i, j int) bool {
		return indices[i].Timestamp.After(indices[j].Timestamp)
	})
}

// isTransient reports whether err is a read collision with the writing tool
// (EBUSY and friends); those reads skip this tick and retry on the next.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "resource busy") ||
		strings.Contains(msg, "EBUSY") ||
		strings.Contains(msg, "used by another process")
}
