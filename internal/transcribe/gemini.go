package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mgpai22/cutline/internal/errs"
)

// implements Transcriber using Google Gemini
type GeminiTranscriber struct {
	client  *genai.Client
	model   string
	options Options
}

func NewGeminiTranscriber(ctx context.Context, apiKey string, opts Options) (*GeminiTranscriber, error) {
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

	return &GeminiTranscriber{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

// transcribes single audio file
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}

	uploaded, err := t.client.Files.UploadFromPath(ctx, audioPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio file: %w", err)
	}
	defer func() {
		_, _ = t.client.Files.Delete(context.WithoutCancel(ctx), uploaded.Name, nil)
	}()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(t.buildTranscriptionPrompt()),
			genai.NewPartFromURI(uploaded.URI, uploaded.MIMEType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	result, err := t.client.Models.GenerateContent(ctx, t.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	return t.parseTranscriptionResponse(result)
}

// creates the prompt for word-level transcription
func (t *GeminiTranscriber) buildTranscriptionPrompt() string {
	var sb strings.Builder

	sb.WriteString("Transcribe this audio word by word. ")
	sb.WriteString("Return a JSON array with one object per spoken word containing 'word', 'start' and 'end', ")
	sb.WriteString("where 'start' and 'end' are timestamps in seconds (as numbers) from the beginning of the audio. ")
	sb.WriteString("Keep the words in the order they are spoken and do not merge or paraphrase them. ")
	sb.WriteString("For languages written without spaces, emit one object per natural word or short phrase. ")

	if t.options.Language != "" {
		sb.WriteString(fmt.Sprintf("The audio is in %s. ", t.options.Language))
	}
	if t.options.Prompt != "" {
		sb.WriteString(t.options.Prompt)
		sb.WriteString(" ")
	}

	sb.WriteString("Return ONLY the JSON array, no other text or markdown formatting.")
	return sb.String()
}

func (t *GeminiTranscriber) parseTranscriptionResponse(result *genai.GenerateContentResponse) (*Result, error) {
	const op = "transcribe.Gemini"

	if result == nil || len(result.Candidates) == 0 {
		return nil, errs.Collaborator(op, nil, "empty response from Gemini")
	}

	var sb strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		// one candidate is requested; later ones would repeat the transcript
		break
	}
	if sb.Len() == 0 {
		return nil, errs.Collaborator(op, nil, "no text in Gemini response")
	}

	recs, err := extractTranscriptSegments(sb.String())
	if err != nil {
		return nil, errs.Collaborator(op, err, "failed to parse transcription")
	}
	words, err := toWords(op, recs)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Word
	}
	var dur time.Duration
	if len(words) > 0 {
		dur = time.Duration(words[len(words)-1].End * float64(time.Second))
	}
	return &Result{
		Words:    words,
		Text:     strings.Join(texts, " "),
		Language: t.options.Language,
		Duration: dur,
	}, nil
}

// extractTranscriptSegments finds the first JSON array of timed records in a
// model reply, tolerating preambles, trailing notes and wrapper objects.
func extractTranscriptSegments(s string) ([]wordRecord, error) {
	s = cleanJSONResponse(s)

	for i := 0; i < len(s); i++ {
		if s[i] != '[' && s[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var v any
		if err := dec.Decode(&v); err != nil {
			continue
		}
		if recs, ok := findRecords(v); ok {
			return recs, nil
		}
		i += int(dec.InputOffset()) - 1
	}
	return nil, fmt.Errorf("no transcript array in response: %s", truncateString(s, 200))
}

// preferred wrapper keys, tried before any other key
var wrapperKeys = []string{"words", "segments", "transcript", "data"}

func findRecords(v any) ([]wordRecord, bool) {
	switch x := v.(type) {
	case []any:
		raw, err := json.Marshal(x)
		if err != nil {
			return nil, false
		}
		var recs []wordRecord
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, false
		}
		return recs, validateSegments(recs)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			pi, pj := keyRank(keys[i]), keyRank(keys[j])
			if pi != pj {
				return pi < pj
			}
			return keys[i] < keys[j]
		})
		for _, k := range keys {
			if recs, ok := findRecords(x[k]); ok {
				return recs, true
			}
		}
	}
	return nil, false
}

func keyRank(k string) int {
	for i, w := range wrapperKeys {
		if strings.EqualFold(k, w) {
			return i
		}
	}
	return len(wrapperKeys)
}

// validateSegments reports whether any record carries text or timing.
func validateSegments(recs []wordRecord) bool {
	for _, r := range recs {
		if r.text() != "" || r.Start != 0 || r.End != 0 {
			return true
		}
	}
	return false
}

var jsonFence = regexp.MustCompile("```(?:json)?\\s*")

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonFence.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// truncates a string to maxLen bytes
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
