package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

const (
	anthropicDefaultModel     = "claude-sonnet-4-5-20250929"
	anthropicDefaultMaxTokens = 8192
)

// ClaudeGenerator implements TextGenerator over the Anthropic Messages API.
type ClaudeGenerator struct {
	client       anthropic.Client
	defaultModel string
}

// NewClaudeGenerator builds a generator; the SDK reads ANTHROPIC_API_KEY
// from the environment. defaultModel may be empty.
func NewClaudeGenerator(defaultModel string) *ClaudeGenerator {
	if defaultModel == "" {
		defaultModel = anthropicDefaultModel
	}
	return &ClaudeGenerator{client: anthropic.NewClient(), defaultModel: defaultModel}
}

func (g *ClaudeGenerator) Name() string { return "anthropic" }

func (g *ClaudeGenerator) Generate(ctx context.Context, prompt, step string, opts GenerateOptions) (*TextResult, error) {
	model := opts.Model
	if model == "" {
		model = g.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		if IsModelNotFoundMessage(err.Error()) {
			return nil, &ModelNotFoundError{Model: model, Err: err}
		}
		return nil, err
	}

	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}

	return &TextResult{
		Content:          strings.Join(parts, ""),
		Provider:         g.Name(),
		Model:            model,
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		Raw:              msg,
	}, nil
}

var _ TextGenerator = (*ClaudeGenerator)(nil)
