// Package scoring runs the progressive prompt-analysis pipeline: score the
// prompt, enhance it, score the enhancement, and infer the session goal.
package scoring

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/DevArk-AI/devark/internal/safejson"
	"github.com/DevArk-AI/devark/pkg/models"
)

// Provider is the abstract LLM behind the pipeline stages.
type Provider interface {
	Score(ctx context.Context, prompt string) (models.PromptScore, error)
	Enhance(ctx context.Context, prompt string) (string, error)
	InferGoal(ctx context.Context, prompt string, recent []string) (string, error)
}

// AnthropicProvider scores prompts through the Anthropic API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates a provider. The default model suits the
// small, structured requests this pipeline makes.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(apiKey),
		model:  model,
	}
}

const scoreSystemPrompt = `You evaluate developer prompts sent to AI coding assistants.
Score the prompt on five dimensions, each 0-10:
- specificity: how precisely the ask is described
- context: how much relevant background is given
- intent: how clear the desired outcome is
- actionability: how directly an assistant could act on it
- constraints: how well boundaries and requirements are stated
Respond with only a JSON object:
{"specificity":N,"context":N,"intent":N,"actionability":N,"constraints":N,"feedback":"one sentence"}`

const enhanceSystemPrompt = `You improve developer prompts for AI coding assistants.
Rewrite the user's prompt to be more specific, contextual, and actionable
while preserving its intent. Respond with only the improved prompt text.`

const goalSystemPrompt = `You infer what a developer is trying to accomplish in a working
session from their recent prompts. Respond with one short sentence naming
the goal, nothing else.`

// Score asks the model for the five dimension scores.
func (p *AnthropicProvider) Score(ctx context.Context, prompt string) (models.PromptScore, error) {
	text, err := p.complete(ctx, scoreSystemPrompt, prompt, 512)
	if err != nil {
		return models.PromptScore{}, err
	}

	var score models.PromptScore
	if err := safejson.Unmarshal(text, &score, safejson.Options{AttemptRecovery: true, Context: "score-response"}); err != nil {
		return models.PromptScore{}, fmt.Errorf("decode score response: %w", err)
	}
	score.Clamp()
	score.ComputeTotal()
	return score, nil
}

// Enhance asks the model for an improved prompt.
func (p *AnthropicProvider) Enhance(ctx context.Context, prompt string) (string, error) {
	text, err := p.complete(ctx, enhanceSystemPrompt, prompt, 1024)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// InferGoal asks the model for the session goal.
func (p *AnthropicProvider) InferGoal(ctx context.Context, prompt string, recent []string) (string, error) {
	var b strings.Builder
	b.WriteString("Latest prompt:\n")
	b.WriteString(prompt)
	if len(recent) > 0 {
		b.WriteString("\n\nEarlier prompts this session:\n")
		for _, r := range recent {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	text, err := p.complete(ctx, goalSystemPrompt, b.String(), 256)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Complete exposes the raw completion transport so other services, like
// the coaching suggester, can reuse this client.
func (p *AnthropicProvider) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	return p.complete(ctx, system, user, maxTokens)
}

func (p *AnthropicProvider) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		MultiSystem: []anthropic.MessageSystemPart{
			{Type: "text", Text: system},
		},
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(user)},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}
	if text == "" {
		raw, _ := json.Marshal(resp.Content)
		return "", fmt.Errorf("empty completion: %s", raw)
	}
	return text, nil
}
