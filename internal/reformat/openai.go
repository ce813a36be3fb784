package reformat

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openaiCompleter sends prompts through OpenAI Chat Completions
type openaiCompleter struct {
	client openai.Client
	model  string
}

func NewOpenAIReformatter(
	ctx context.Context,
	apiKey string,
	opts Options,
	reqOpts ...option.RequestOption,
) (Reformatter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)...)

	model := opts.Model
	if model == "" {
		model = "gpt-5-mini"
	}

	return &llmReformatter{
		name:    "OpenAI",
		client:  &openaiCompleter{client: client, model: model},
		options: opts,
	}, nil
}

func (c *openaiCompleter) complete(ctx context.Context, prompt string) (string, error) {
	completion, err := c.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage("You are a caption writing assistant for video editors."),
				openai.UserMessage(prompt),
			},
			Model: c.model,
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}
	return completion.Choices[0].Message.Content, nil
}
