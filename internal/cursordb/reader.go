// Package cursordb reads chat history out of Cursor's local state database.
// The database belongs to the IDE: every access is read-only, opened per
// call, and busy errors are treated as "the IDE is writing, skip this tick".
package cursordb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/pkg/models"
)

// composerKeyPrefix namespaces chat blobs inside the key-value table.
const composerKeyPrefix = "composerData:"

// Reader reads Cursor's state.vscdb.
type Reader struct {
	dbPath string
}

// NewReader creates a Reader over the platform-default state database.
func NewReader() *Reader {
	return NewReaderAt(DefaultDBPath())
}

// NewReaderAt creates a Reader over an explicit database path.
func NewReaderAt(dbPath string) *Reader {
	return &Reader{dbPath: dbPath}
}

// DefaultDBPath returns Cursor's global storage database location for the
// current platform.
func DefaultDBPath() string {
	home := paths.HomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Cursor", "User", "globalStorage", "state.vscdb")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Cursor", "User", "globalStorage", "state.vscdb")
	default:
		return filepath.Join(home, ".config", "Cursor", "User", "globalStorage", "state.vscdb")
	}
}

// IsAvailable reports whether the state database exists.
func (r *Reader) IsAvailable() bool {
	_, err := os.Stat(r.dbPath)
	return err == nil
}

// ChatSession is one Cursor composer conversation, without messages.
type ChatSession struct {
	ID            string
	Name          string
	WorkspacePath string
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	PromptCount   int
}

// composerBlob is the stored JSON shape of one conversation.
type composerBlob struct {
	ComposerID    string         `json:"composerId"`
	Name          string         `json:"name"`
	CreatedAt     int64          `json:"createdAt"`
	LastUpdatedAt int64          `json:"lastUpdatedAt"`
	FolderPath    string         `json:"folderPath"`
	Conversation  []composerTurn `json:"conversation"`
}

// composerTurn is one bubble. Type 1 is the user, type 2 the assistant.
type composerTurn struct {
	Type      int    `json:"type"`
	BubbleID  string `json:"bubbleId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// IsBusy reports whether err is the IDE holding a write lock; callers skip
// the tick and keep their dedup state.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// ListSessions returns every chat session, newest first, without messages.
func (r *Reader) ListSessions(ctx context.Context) ([]ChatSession, error) {
	var sessions []ChatSession
	err := r.eachComposer(ctx, func(blob composerBlob) {
		sessions = append(sessions, ChatSession{
			ID:            blob.ComposerID,
			Name:          blob.Name,
			WorkspacePath: blob.FolderPath,
			CreatedAt:     time.UnixMilli(blob.CreatedAt),
			LastUpdatedAt: time.UnixMilli(blob.LastUpdatedAt),
			PromptCount:   countUserPrompts(blob.Conversation),
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastUpdatedAt.After(sessions[j].LastUpdatedAt)
	})
	return sessions, nil
}

// UserMessageIDs returns the bubble IDs of every user message in a session,
// in conversation order. The polling adapter diffs these against its
// seen-set to detect new prompts.
func (r *Reader) UserMessageIDs(ctx context.Context, sessionID string) ([]string, error) {
	blob, err := r.loadComposer(ctx, sessionID)
	if err != nil || blob == nil {
		return nil, err
	}
	var ids []string
	for _, turn := range blob.Conversation {
		if turn.Type == 1 && models.IsActualUserPrompt(turn.Text) {
			ids = append(ids, turn.BubbleID)
		}
	}
	return ids, nil
}

// UserMessage returns the text of one user bubble.
func (r *Reader) UserMessage(ctx context.Context, sessionID, bubbleID string) (string, error) {
	blob, err := r.loadComposer(ctx, sessionID)
	if err != nil || blob == nil {
		return "", err
	}
	for _, turn := range blob.Conversation {
		if turn.BubbleID == bubbleID {
			return turn.Text, nil
		}
	}
	return "", nil
}

// SessionMessages materialises the full conversation of one session.
func (r *Reader) SessionMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	blob, err := r.loadComposer(ctx, sessionID)
	if err != nil || blob == nil {
		return nil, err
	}
	var msgs []models.Message
	for _, turn := range blob.Conversation {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		role := models.RoleAssistant
		if turn.Type == 1 {
			role = models.RoleUser
		}
		msgs = append(msgs, models.Message{
			Role:      role,
			Content:   turn.Text,
			Timestamp: time.UnixMilli(turn.Timestamp),
		})
	}
	return msgs, nil
}

// SessionIndex converts chat sessions into lightweight indices with raw IDs.
func (r *Reader) SessionIndex(ctx context.Context, since time.Time) ([]models.SessionIndex, error) {
	sessions, err := r.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.SessionIndex
	for _, s := range sessions {
		if !since.IsZero() && s.LastUpdatedAt.Before(since) {
			continue
		}
		out = append(out, models.SessionIndex{
			ID:            s.ID,
			Source:        models.SourceCursor.ID,
			Timestamp:     s.CreatedAt,
			DurationSec:   int64(s.LastUpdatedAt.Sub(s.CreatedAt).Seconds()),
			ProjectPath:   s.WorkspacePath,
			WorkspaceName: workspaceName(s),
			PromptCount:   s.PromptCount,
		})
	}
	return out, nil
}

// SessionDetails materialises one session for the details view.
func (r *Reader) SessionDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	blob, err := r.loadComposer(ctx, sessionID)
	if err != nil || blob == nil {
		return nil, err
	}
	msgs, err := r.SessionMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	details := &models.SessionDetails{
		SessionIndex: models.SessionIndex{
			ID:            blob.ComposerID,
			Source:        models.SourceCursor.ID,
			Timestamp:     time.UnixMilli(blob.CreatedAt),
			DurationSec:   int64(time.UnixMilli(blob.LastUpdatedAt).Sub(time.UnixMilli(blob.CreatedAt)).Seconds()),
			ProjectPath:   blob.FolderPath,
			PromptCount:   countUserPrompts(blob.Conversation),
		},
		Messages: msgs,
	}
	if blob.Name != "" {
		details.Highlights = []string{blob.Name}
	}
	return details, nil
}

// open opens the database read-only. Never hold it across ticks.
func (r *Reader) open() (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(0)", r.dbPath)
	return sql.Open("sqlite", dsn)
}

func (r *Reader) eachComposer(ctx context.Context, fn func(composerBlob)) error {
	db, err := r.open()
	if err != nil {
		return fmt.Errorf("open cursor db: %w", err)
	}
	defer db.Close()

	const query = `SELECT key, value FROM cursorDiskKV WHERE key LIKE ?`
	rows, err := db.QueryContext(ctx, query, composerKeyPrefix+"%")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		var blob composerBlob
		if err := json.Unmarshal(value, &blob); err != nil {
			log.Debug().Str("key", key).Err(err).Msg("Skipping undecodable composer blob")
			continue
		}
		if blob.ComposerID == "" {
			blob.ComposerID = strings.TrimPrefix(key, composerKeyPrefix)
		}
		fn(blob)
	}
	return rows.Err()
}

func (r *Reader) loadComposer(ctx context.Context, sessionID string) (*composerBlob, error) {
	db, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("open cursor db: %w", err)
	}
	defer db.Close()

	const query = `SELECT value FROM cursorDiskKV WHERE key = ? LIMIT 1`
	var value []byte
	err = db.QueryRowContext(ctx, query, composerKeyPrefix+sessionID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var blob composerBlob
	if err := json.Unmarshal(value, &blob); err != nil {
		return nil, fmt.Errorf("decode composer %s: %w", sessionID, err)
	}
	if blob.ComposerID == "" {
		blob.ComposerID = sessionID
	}
	return &blob, nil
}

func countUserPrompts(turns []composerTurn) int {
	n := 0
	for _, turn := range turns {
		if turn.Type == 1 && models.IsActualUserPrompt(turn.Text) {
			n++
		}
	}
	return n
}

func workspaceName(s ChatSession) string {
	if s.WorkspacePath != "" {
		return filepath.Base(s.WorkspacePath)
	}
	return s.Name
}
