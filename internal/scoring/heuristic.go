package scoring

import (
	"context"
	"strings"

	"github.com/DevArk-AI/devark/pkg/models"
)

// HeuristicProvider scores prompts without an LLM. It is the offline
// fallback: deterministic, fast, and rough.
type HeuristicProvider struct{}

// NewHeuristicProvider creates the fallback provider.
func NewHeuristicProvider() *HeuristicProvider {
	return &HeuristicProvider{}
}

var (
	intentVerbs = []string{
		"fix", "add", "implement", "refactor", "write", "create", "update",
		"remove", "debug", "explain", "test", "optimize", "rename", "migrate",
	}
	constraintMarkers = []string{
		"must", "should", "only", "without", "don't", "do not", "avoid",
		"keep", "except", "ensure", "never",
	}
	contextMarkers = []string{
		"because", "currently", "the file", "in ", ".go", ".ts", ".js", ".py",
		"error", "when i", "after", "line ",
	}
)

// Score derives dimension scores from surface features of the text.
func (h *HeuristicProvider) Score(_ context.Context, prompt string) (models.PromptScore, error) {
	lower := strings.ToLower(prompt)
	words := len(strings.Fields(prompt))

	score := models.PromptScore{
		Specificity:   scale(words, 4, 40),
		Context:       3 + 2*countMatches(lower, contextMarkers),
		Intent:        2 + 3*countMatches(lower, intentVerbs),
		Actionability: scale(words, 3, 25),
		Constraints:   1 + 3*countMatches(lower, constraintMarkers),
		Feedback:      "Heuristic estimate; connect an AI provider for full analysis.",
	}
	score.Clamp()
	score.ComputeTotal()
	return score, nil
}

// Enhance appends a structural nudge; without a model there is nothing
// smarter to say.
func (h *HeuristicProvider) Enhance(_ context.Context, prompt string) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", nil
	}
	return trimmed + "\n\nInclude: the file or component involved, the expected behavior, and any constraints.", nil
}

// InferGoal takes the first prompt's leading clause as the goal.
func (h *HeuristicProvider) InferGoal(_ context.Context, prompt string, recent []string) (string, error) {
	source := prompt
	if len(recent) > 0 {
		source = recent[0]
	}
	source = strings.TrimSpace(source)
	if idx := strings.IndexAny(source, ".!?\n"); idx > 0 {
		source = source[:idx]
	}
	if len(source) > 80 {
		source = source[:80]
	}
	return source, nil
}

func countMatches(text string, markers []string) float64 {
	n := 0.0
	for _, m := range markers {
		if strings.Contains(text, m) {
			n++
		}
	}
	return n
}

// scale maps a count into [0, 10] linearly between lo and hi.
func scale(n, lo, hi int) float64 {
	if n <= lo {
		return 2
	}
	if n >= hi {
		return 10
	}
	return 2 + 8*float64(n-lo)/float64(hi-lo)
}
