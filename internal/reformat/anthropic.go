package reformat

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicCompleter sends prompts through the Anthropic Messages API
type anthropicCompleter struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropicReformatter(
	ctx context.Context,
	apiKey string,
	opts Options,
	reqOpts ...option.RequestOption,
) (Reformatter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)...)

	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}

	return &llmReformatter{
		name:    "Anthropic",
		client:  &anthropicCompleter{client: client, model: model},
		options: opts,
	}, nil
}

func (c *anthropicCompleter) complete(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(
		ctx,
		anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: 4096,
			System: []anthropic.TextBlockParam{
				{Text: "You are a caption writing assistant for video editors."},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("message request failed: %w", err)
	}
	if message == nil || len(message.Content) == 0 {
		return "", fmt.Errorf("empty response from Anthropic")
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
