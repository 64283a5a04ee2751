// Package summary aggregates the local history store into daily, weekly
// and monthly productivity summaries.
package summary

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/DevArk-AI/devark/internal/store"
)

// Period selects the aggregation window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod validates a period string from the API surface.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown summary period %q", s)
}

// DimensionAverages are the mean per-dimension prompt scores.
type DimensionAverages struct {
	Specificity   float64 `json:"specificity"`
	Context       float64 `json:"context"`
	Intent        float64 `json:"intent"`
	Actionability float64 `json:"actionability"`
	Constraints   float64 `json:"constraints"`
}

// ProjectActivity counts prompts per project for the window.
type ProjectActivity struct {
	Project     string `json:"project"`
	PromptCount int    `json:"promptCount"`
}

// Summary is one aggregated window.
type Summary struct {
	Period        Period            `json:"period"`
	From          time.Time         `json:"from"`
	To            time.Time         `json:"to"`
	PromptCount   int               `json:"promptCount"`
	ScoredPrompts int               `json:"scoredPrompts"`
	AverageScore  float64           `json:"averageScore"`
	Dimensions    DimensionAverages `json:"dimensions"`
	SessionCount  int               `json:"sessionCount"`
	ResponseCount int               `json:"responseCount"`
	Outcomes      map[string]int    `json:"outcomes"`
	TopProjects   []ProjectActivity `json:"topProjects"`
}

// Generator builds summaries from the history store.
type Generator struct {
	store *store.Store
}

// NewGenerator creates a summary generator.
func NewGenerator(s *store.Store) *Generator {
	return &Generator{store: s}
}

// Generate builds the summary for the window containing ref.
func (g *Generator) Generate(ctx context.Context, period Period, ref time.Time) (*Summary, error) {
	from, to := window(period, ref)

	prompts, err := g.store.PromptsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	responses, err := g.store.ResponsesBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sessions, err := g.store.SessionsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Period:        period,
		From:          from,
		To:            to,
		PromptCount:   len(prompts),
		SessionCount:  len(sessions),
		ResponseCount: len(responses),
		Outcomes:      map[string]int{},
	}

	var totals struct{ total, spec, ctx, intent, action, constraints float64 }
	for _, p := range prompts {
		if !p.ScoreTotal.Valid {
			continue
		}
		summary.ScoredPrompts++
		totals.total += p.ScoreTotal.Float64
		totals.spec += p.Specificity.Float64
		totals.ctx += p.ContextScore.Float64
		totals.intent += p.Intent.Float64
		totals.action += p.Actionability.Float64
		totals.constraints += p.Constraints.Float64
	}
	if n := float64(summary.ScoredPrompts); n > 0 {
		summary.AverageScore = totals.total / n
		summary.Dimensions = DimensionAverages{
			Specificity:   totals.spec / n,
			Context:       totals.ctx / n,
			Intent:        totals.intent / n,
			Actionability: totals.action / n,
			Constraints:   totals.constraints / n,
		}
	}

	for _, r := range responses {
		if r.Outcome != "" {
			summary.Outcomes[r.Outcome]++
		}
	}

	summary.TopProjects = topProjects(sessions, prompts)
	return summary, nil
}

// Daily summarises the calendar day containing ref.
func (g *Generator) Daily(ctx context.Context, ref time.Time) (*Summary, error) {
	return g.Generate(ctx, PeriodDaily, ref)
}

// Weekly summarises the ISO week (Monday start) containing ref.
func (g *Generator) Weekly(ctx context.Context, ref time.Time) (*Summary, error) {
	return g.Generate(ctx, PeriodWeekly, ref)
}

// Monthly summarises the calendar month containing ref.
func (g *Generator) Monthly(ctx context.Context, ref time.Time) (*Summary, error) {
	return g.Generate(ctx, PeriodMonthly, ref)
}

// window computes the half-open [from, to) range for a period around ref.
func window(period Period, ref time.Time) (time.Time, time.Time) {
	year, month, day := ref.Date()
	loc := ref.Location()
	switch period {
	case PeriodWeekly:
		start := time.Date(year, month, day, 0, 0, 0, 0, loc)
		weekday := int(start.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start = start.AddDate(0, 0, -(weekday - 1))
		return start, start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	default:
		start := time.Date(year, month, day, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1)
	}
}

// topProjects ranks projects by prompt volume, attributing prompts to
// projects through their logical session.
func topProjects(sessions []store.SessionRecord, prompts []store.PromptRecord) []ProjectActivity {
	projectBySession := make(map[string]string, len(sessions))
	for _, s := range sessions {
		projectBySession[s.ID] = s.Project
	}

	counts := map[string]int{}
	for _, p := range prompts {
		project, ok := projectBySession[p.SessionID]
		if !ok {
			continue
		}
		counts[project]++
	}

	out := make([]ProjectActivity, 0, len(counts))
	for project, n := range counts {
		out = append(out, ProjectActivity{Project: project, PromptCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PromptCount != out[j].PromptCount {
			return out[i].PromptCount > out[j].PromptCount
		}
		return out[i].Project < out[j].Project
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}
