package upload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevArk-AI/devark/internal/sessions"
	"github.com/DevArk-AI/devark/pkg/models"
)

type fakeSource struct {
	index   []models.SessionIndex
	details map[string]*models.SessionDetails
}

func (f *fakeSource) List(_ context.Context, _ sessions.Filter) ([]models.SessionIndex, error) {
	return f.index, nil
}

func (f *fakeSource) Details(_ context.Context, id string) (*models.SessionDetails, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

type fakeLedger struct {
	uploaded map[string]bool
	marked   []string
	checksum string
}

func (f *fakeLedger) FilterUnuploaded(_ context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if !f.uploaded[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeLedger) MarkUploaded(_ context.Context, ids []string, checksum string, _ *models.UploadResult) error {
	f.marked = append(f.marked, ids...)
	f.checksum = checksum
	return nil
}

func detailsWith(id string, messages []models.Message) *models.SessionDetails {
	return &models.SessionDetails{
		SessionIndex: models.SessionIndex{
			ID:          id,
			Source:      "claude_code",
			Timestamp:   time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
			PromptCount: 1,
		},
		Messages: messages,
	}
}

func TestPipelineUploadsOnlyPending(t *testing.T) {
	source := &fakeSource{
		index: []models.SessionIndex{{ID: "claude-a"}, {ID: "claude-b"}},
		details: map[string]*models.SessionDetails{
			"claude-a": detailsWith("claude-a", []models.Message{
				{Role: models.RoleUser, Content: "fix the login bug"},
				{Role: models.RoleAssistant, Content: "done"},
			}),
			"claude-b": detailsWith("claude-b", nil),
		},
	}
	ledger := &fakeLedger{uploaded: map[string]bool{"claude-b": true}}
	sender := &fakeSender{results: []*models.UploadResult{{Success: true, Created: 1}}}

	p := NewPipeline(NewEngine(sender), source, ledger, nil)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"claude-a"}, ledger.marked)
	assert.NotEmpty(t, ledger.checksum)
	require.Len(t, sender.payloads, 1)
}

func TestPipelineNothingPendingSkipsNetwork(t *testing.T) {
	source := &fakeSource{index: []models.SessionIndex{{ID: "claude-a"}}}
	ledger := &fakeLedger{uploaded: map[string]bool{"claude-a": true}}
	sender := &fakeSender{}

	p := NewPipeline(NewEngine(sender), source, ledger, nil)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, sender.payloads)
	assert.Empty(t, ledger.marked)
}

func TestPipelineSkipsUnloadableSessions(t *testing.T) {
	source := &fakeSource{
		index: []models.SessionIndex{{ID: "claude-gone"}, {ID: "claude-a"}},
		details: map[string]*models.SessionDetails{
			"claude-a": detailsWith("claude-a", []models.Message{
				{Role: models.RoleUser, Content: "add tests"},
			}),
		},
	}
	ledger := &fakeLedger{uploaded: map[string]bool{}}
	sender := &fakeSender{results: []*models.UploadResult{{Success: true, Created: 1}}}

	p := NewPipeline(NewEngine(sender), source, ledger, nil)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"claude-a"}, ledger.marked)
}

func TestSanitizeStripsPrivateAndToolEchoes(t *testing.T) {
	details := detailsWith("claude-a", []models.Message{
		{Role: models.RoleUser, Content: "refactor <private>secret plan</private> the parser"},
		{Role: models.RoleUser, Content: "[Tool result] exit 0"},
		{Role: models.RoleUser, Content: "<private>all secret</private>"},
		{Role: models.RoleAssistant, Content: "refactored the parser"},
	})

	s := Sanitize(details)
	require.Len(t, s.Prompts, 1)
	assert.Equal(t, "refactor the parser", s.Prompts[0].Text)
	require.Len(t, s.Responses, 1)
	assert.Equal(t, "refactored the parser", s.Responses[0].Text)
	assert.Equal(t, "2026-03-04T10:00:00Z", s.StartedAt)
}
