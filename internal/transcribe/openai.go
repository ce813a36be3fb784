package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/cutline/internal/errs"
)

// implements Transcriber using the OpenAI audio transcription API with
// word-level timestamp granularity
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	options Options
}

// verbose_json response structure from Whisper
type whisperVerboseResponse struct {
	Text     string       `json:"text"`
	Words    []wordRecord `json:"words"`
	Language string       `json:"language"`
	Duration float64      `json:"duration"`
}

func NewOpenAITranscriber(
	ctx context.Context,
	apiKey string,
	opts Options,
	reqOpts ...option.RequestOption,
) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)...)

	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}

	return &OpenAITranscriber{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

// transcribes single audio file
func (t *OpenAITranscriber) Transcribe(
	ctx context.Context,
	audioPath string,
) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(t.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word"},
	}
	if t.options.Language != "" {
		params.Language = openai.String(t.options.Language)
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	return t.parseVerboseJSONResponse(resp.RawJSON())
}

func (t *OpenAITranscriber) parseVerboseJSONResponse(rawJSON string) (*Result, error) {
	const op = "transcribe.OpenAI"

	if strings.TrimSpace(rawJSON) == "" {
		return nil, errs.Collaborator(op, nil, "empty response")
	}

	var verbose whisperVerboseResponse
	if err := json.Unmarshal([]byte(rawJSON), &verbose); err != nil {
		return nil, errs.Collaborator(op, err, "failed to parse verbose_json response")
	}

	words, err := toWords(op, verbose.Words)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 && strings.TrimSpace(verbose.Text) != "" {
		return nil, errs.Collaborator(op, nil, "response has text but no word timestamps")
	}

	lang := verbose.Language
	if lang == "" {
		lang = t.options.Language
	}
	return &Result{
		Words:    words,
		Text:     strings.TrimSpace(verbose.Text),
		Language: lang,
		Duration: time.Duration(verbose.Duration * float64(time.Second)),
	}, nil
}
