package summary

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/DevArk-AI/devark/internal/store"
	"github.com/DevArk-AI/devark/pkg/models"
)

func newGenerator(t *testing.T) (*Generator, *store.Store) {
	t.Helper()
	s, err := store.NewStore(store.Config{
		Path:     filepath.Join(t.TempDir(), "history.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewGenerator(s), s
}

func scoredPrompt(id string, ts time.Time, total float64) models.Prompt {
	score := &models.PromptScore{
		Specificity: total, Context: total, Intent: total,
		Actionability: total, Constraints: total,
	}
	score.ComputeTotal()
	return models.Prompt{ID: id, Text: "prompt " + id, Timestamp: ts, Score: score}
}

func TestDailySummary(t *testing.T) {
	gen, s := newGenerator(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	session, err := s.ResolveSession(ctx, "/proj/a", "claude-code", day)
	require.NoError(t, err)

	require.NoError(t, s.RecordPrompt(ctx, session.ID, "claude-code", scoredPrompt("p1", day, 6)))
	require.NoError(t, s.RecordPrompt(ctx, session.ID, "claude-code", scoredPrompt("p2", day.Add(time.Hour), 8)))
	// Unscored prompt counts toward volume only.
	require.NoError(t, s.RecordPrompt(ctx, session.ID, "claude-code", models.Prompt{
		ID: "p3", Text: "quick one", Timestamp: day.Add(2 * time.Hour),
	}))
	// A prompt from the previous day is excluded.
	require.NoError(t, s.RecordPrompt(ctx, session.ID, "claude-code", scoredPrompt("p0", day.Add(-24*time.Hour), 2)))

	require.NoError(t, s.RecordResponse(ctx, session.ID, models.Response{
		ID: "r1", Text: "done", Success: true, Timestamp: day,
	}, models.OutcomeSuccess))
	require.NoError(t, s.RecordResponse(ctx, session.ID, models.Response{
		ID: "r2", Text: "", Cancelled: true, Timestamp: day,
	}, models.OutcomeBlocked))

	summary, err := gen.Daily(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.PromptCount)
	assert.Equal(t, 2, summary.ScoredPrompts)
	assert.InDelta(t, 7.0, summary.AverageScore, 1e-9)
	assert.InDelta(t, 7.0, summary.Dimensions.Specificity, 1e-9)
	assert.Equal(t, 2, summary.ResponseCount)
	assert.Equal(t, 1, summary.Outcomes["success"])
	assert.Equal(t, 1, summary.Outcomes["blocked"])
	require.Len(t, summary.TopProjects, 1)
	assert.Equal(t, "/proj/a", summary.TopProjects[0].Project)
	assert.Equal(t, 3, summary.TopProjects[0].PromptCount)
}

func TestWeeklyWindowStartsMonday(t *testing.T) {
	// 2026-03-04 is a Wednesday.
	from, to := window(PeriodWeekly, time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), to)

	// Sunday belongs to the week that started the previous Monday.
	from, _ = window(PeriodWeekly, time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), from)
}

func TestMonthlyWindow(t *testing.T) {
	from, to := window(PeriodMonthly, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("weekly")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeekly, p)

	_, err = ParsePeriod("yearly")
	assert.Error(t, err)
}

func TestEmptyWindow(t *testing.T) {
	gen, _ := newGenerator(t)
	summary, err := gen.Monthly(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, summary.PromptCount)
	assert.Zero(t, summary.AverageScore)
	assert.Empty(t, summary.TopProjects)
}
