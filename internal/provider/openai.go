package provider

import (
	"context"

	openai "github.com/openai/openai-go"
)

const openaiDefaultModel = "gpt-4o"

// OpenAIGenerator implements TextGenerator over the OpenAI chat
// completions API. The SDK reads OPENAI_API_KEY from the environment.
type OpenAIGenerator struct {
	client       openai.Client
	defaultModel string
}

func NewOpenAIGenerator(defaultModel string) *OpenAIGenerator {
	if defaultModel == "" {
		defaultModel = openaiDefaultModel
	}
	return &OpenAIGenerator{client: openai.NewClient(), defaultModel: defaultModel}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt, step string, opts GenerateOptions) (*TextResult, error) {
	model := opts.Model
	if model == "" {
		model = g.defaultModel
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if IsModelNotFoundMessage(err.Error()) {
			return nil, &ModelNotFoundError{Model: model, Err: err}
		}
		return nil, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &TextResult{
		Content:          content,
		Provider:         g.Name(),
		Model:            model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		Raw:              resp,
	}, nil
}

var _ TextGenerator = (*OpenAIGenerator)(nil)
