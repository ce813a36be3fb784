package reformat

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiCompleter sends prompts through Gemini GenerateContent
type geminiCompleter struct {
	client *genai.Client
	model  string
}

func NewGeminiReformatter(
	ctx context.Context,
	apiKey string,
	opts Options,
) (Reformatter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &llmReformatter{
		name:    "Gemini",
		client:  &geminiCompleter{client: client, model: model},
		options: opts,
	}, nil
}

func (c *geminiCompleter) complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	return responseText(result), nil
}

// responseText concatenates the parts of the first candidate that has text.
func responseText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}
