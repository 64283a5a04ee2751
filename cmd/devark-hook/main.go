// Package main is the binary host tools invoke on prompt and response
// events. It drops a scratch file for the worker and exits 0 no matter
// what; a broken sidecar must never block the user's tool.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/DevArk-AI/devark/internal/paths"
	"github.com/DevArk-AI/devark/pkg/hooks"
	"github.com/DevArk-AI/devark/pkg/models"
)

// hookInput is the superset of fields the host tools put on stdin. Claude
// Code uses snake_case; Cursor uses camelCase for its conversation ID.
type hookInput struct {
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversationId"`
	CWD            string `json:"cwd"`
	TranscriptPath string `json:"transcript_path"`
	Prompt         string `json:"prompt"`
	Text           string `json:"text"`
	WorkspaceRoots []struct {
		Path string `json:"path"`
	} `json:"workspace_roots"`
}

func (in hookInput) sessionID() string {
	if in.SessionID != "" {
		return in.SessionID
	}
	return in.ConversationID
}

func (in hookInput) promptText() string {
	if in.Prompt != "" {
		return in.Prompt
	}
	return in.Text
}

func (in hookInput) workspaceRoot() string {
	if in.CWD != "" {
		return in.CWD
	}
	if len(in.WorkspaceRoots) > 0 {
		return in.WorkspaceRoots[0].Path
	}
	return ""
}

// responseEvent is the scratch payload for response triggers.
type responseEvent struct {
	SessionID string `json:"sessionId,omitempty"`
	Source    string `json:"source"`
	CWD       string `json:"cwd,omitempty"`
	Text      string `json:"text"`
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
}

func main() {
	trigger := flag.String("trigger", "", "hook trigger name")
	source := flag.String("source", "claude-code", "host tool identifier")
	flag.String("marker", "", "ownership tag written by the installer")
	flag.Parse()

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		hooks.WriteError(*trigger, err)
		return
	}

	var in hookInput
	if err := json.Unmarshal(raw, &in); err != nil {
		hooks.WriteError(*trigger, fmt.Errorf("parse hook input: %w", err))
		return
	}

	if err := handle(*trigger, *source, in); err != nil {
		hooks.WriteError(*trigger, err)
		return
	}
	hooks.WriteResponse(*trigger, true)
}

func handle(trigger, source string, in hookInput) error {
	switch trigger {
	case "UserPromptSubmit", "beforeSubmitPrompt":
		return dropPrompt(source, in)
	case "Stop", "afterAgentResponse":
		return dropResponse(source, in)
	default:
		return fmt.Errorf("unknown trigger %q", trigger)
	}
}

// dropPrompt writes the prompt scratch file the adapter watches. The file
// prefix encodes the source so each adapter only sees its own events.
func dropPrompt(source string, in hookInput) error {
	if strings.TrimSpace(in.promptText()) == "" {
		return nil
	}
	prefix := "prompt-"
	if source == "claude-code" {
		prefix = "claude-prompt-"
	}
	payload := models.HookPayload{
		Prompt:    in.promptText(),
		SessionID: in.sessionID(),
		CWD:       in.workspaceRoot(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	_, err := hooks.Drop(paths.HookScratchDir(), prefix, hooks.NewEventID(), payload)
	return err
}

// dropResponse writes the response scratch file. For Claude Code the
// response text lives in the transcript, not on stdin.
func dropResponse(source string, in hookInput) error {
	text := in.promptText()
	if text == "" && in.TranscriptPath != "" {
		text = lastAssistantText(in.TranscriptPath)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	payload := responseEvent{
		SessionID: in.sessionID(),
		Source:    source,
		CWD:       in.workspaceRoot(),
		Text:      text,
		Success:   true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	_, err := hooks.Drop(paths.HookScratchDir(), "response-", hooks.NewEventID(), payload)
	return err
}

// transcriptLine is one JSONL row of a Claude Code transcript.
type transcriptLine struct {
	Type    string `json:"type"`
	Message struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"message"`
}

// lastAssistantText scans the transcript for the final assistant message.
// Returns empty on any read trouble.
func lastAssistantText(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var last string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var line transcriptLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Message.Role != "assistant" {
			continue
		}
		if text := flattenContent(line.Message.Content); text != "" {
			last = text
		}
	}
	return last
}

// flattenContent joins the text blocks of a message body, which may be a
// bare string or a block array.
func flattenContent(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			block, ok := item.(map[string]any)
			if !ok || block["type"] != "text" {
				continue
			}
			if text, ok := block["text"].(string); ok && text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}
