package reformat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mgpai22/cutline/internal/caption"
	"github.com/mgpai22/cutline/internal/errs"
)

// Reformatter turns a raw transcript into caption lines, in spoken order.
type Reformatter interface {
	Reformat(ctx context.Context, text string) ([]string, error)
}

// reformatting service provider
type Provider string

const (
	ProviderLocal     Provider = "local"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderLocal, ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		return p, nil
	case "claude":
		return ProviderAnthropic, nil
	case "google":
		return ProviderGemini, nil
	}
	return "", fmt.Errorf("unsupported reformat provider %q: use local, openai, anthropic or gemini", s)
}

const (
	DefaultBatchSize = 20
	DefaultWorkers   = 3
)

type Options struct {
	Language  string // transcript language hint
	Model     string
	Prompt    string // extra instructions appended to the prompt
	MaxChars  int    // max characters per caption line
	BatchSize int    // sentences per API request
	Workers   int    // concurrent requests
}

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return DefaultWorkers
}

// creates Reformatter based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Reformatter, error) {
	switch provider {
	case ProviderLocal:
		return NewLocal(opts.MaxChars), nil
	case ProviderOpenAI:
		return NewOpenAIReformatter(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicReformatter(ctx, apiKey, opts)
	case ProviderGemini:
		return NewGeminiReformatter(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported reformat provider: %s", provider)
	}
}

// single sentence sent to a model
type Item struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// reformatted sentence; Text holds caption lines separated by '\n'
type Result struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// completer sends one prompt to a chat model and returns its text reply.
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// llmReformatter batches sentences through a completer.
type llmReformatter struct {
	name    string
	client  completer
	options Options
}

func (r *llmReformatter) Reformat(ctx context.Context, text string) ([]string, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	items := make([]Item, len(sentences))
	for i, s := range sentences {
		items[i] = Item{Index: i, Text: s}
	}

	results, err := runBatches(ctx, items, r.options.batchSize(), r.options.workers(), r.reformatBatch)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, res := range results {
		lines = append(lines, caption.WrapLines(unescapeBreaks(res.Text), r.options.MaxChars)...)
	}
	return lines, nil
}

func (r *llmReformatter) reformatBatch(ctx context.Context, items []Item) ([]Result, error) {
	op := "reformat." + r.name

	reply, err := r.client.complete(ctx, BuildPrompt(r.options, items))
	if err != nil {
		return nil, errs.Collaborator(op, err, "reformatting request failed")
	}
	if strings.TrimSpace(reply) == "" {
		return nil, errs.Collaborator(op, nil, "no text in %s response", r.name)
	}

	results, err := extractResults(cleanJSONResponse(reply))
	if err != nil {
		return nil, errs.Collaborator(op, err, "failed to parse JSON response (response: %s)", truncateString(reply, 200))
	}
	if err := matchResults(items, results); err != nil {
		return nil, errs.Collaborator(op, err, "response does not match request")
	}
	return results, nil
}

// matchResults requires exactly one result per requested index.
func matchResults(items []Item, results []Result) error {
	if len(results) != len(items) {
		return fmt.Errorf("expected %d results, got %d", len(items), len(results))
	}
	want := make(map[int]bool, len(items))
	for _, it := range items {
		want[it.Index] = true
	}
	for _, res := range results {
		if !want[res.Index] {
			return fmt.Errorf("unexpected or duplicate index %d", res.Index)
		}
		delete(want, res.Index)
	}
	return nil
}

// runBatches splits items into batches and runs fn on them with a bounded
// worker pool. The first failure cancels the remaining batches. Results come
// back ordered by item index.
func runBatches(
	ctx context.Context,
	items []Item,
	batchSize, concurrency int,
	fn func(context.Context, []Item) ([]Result, error),
) ([]Result, error) {
	var batches [][]Item
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}

	if len(batches) == 1 {
		results, err := fn(ctx, batches[0])
		if err != nil {
			return nil, err
		}
		sortResults(results)
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type batchResult struct {
		Index   int
		Results []Result
		Error   error
	}

	workChan := make(chan int)
	resultChan := make(chan batchResult, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < concurrency && i < len(batches); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batchIdx := range workChan {
				if ctx.Err() != nil {
					return
				}
				results, err := fn(ctx, batches[batchIdx])
				if err != nil {
					cancel()
				}
				resultChan <- batchResult{Index: batchIdx, Results: results, Error: err}
			}
		}()
	}

	go func() {
		defer close(workChan)
		for i := range batches {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var (
		all      []Result
		done     int
		firstErr error
	)
	for result := range resultChan {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("batch %d failed: %w", result.Index, result.Error)
			}
			continue
		}
		all = append(all, result.Results...)
		done++
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if done != len(batches) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("reformatted %d of %d batches", done, len(batches))
	}

	sortResults(all)
	return all, nil
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
}

// BuildPrompt creates the caption reformatting prompt for LLM providers.
func BuildPrompt(opts Options, items []Item) string {
	var sb strings.Builder

	if opts.Language != "" {
		sb.WriteString(fmt.Sprintf("Reformat the following %s transcript sentences into on-screen captions.\n\n", opts.Language))
	} else {
		sb.WriteString("Reformat the following transcript sentences into on-screen captions.\n\n")
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Remove filler words (um, uh, like, you know, えー, あの, まあ).\n")
	sb.WriteString("2. Add natural punctuation and fix obvious transcription typos.\n")
	if opts.MaxChars > 0 {
		sb.WriteString(fmt.Sprintf("3. Insert line breaks (\\n) so no line is longer than %d characters.\n", opts.MaxChars))
	} else {
		sb.WriteString("3. Insert line breaks (\\n) where a caption should change.\n")
	}
	sb.WriteString("4. Break lines at meaningful boundaries, preferably after punctuation.\n")
	sb.WriteString("5. Keep the original word order. Do not paraphrase, summarize or add words.\n")
	sb.WriteString("6. Return ONLY a JSON array of objects with 'index' and 'text' fields.\n")
	sb.WriteString("7. The 'index' values must match the input indices exactly.\n")
	sb.WriteString("8. Do not add any explanation or markdown formatting.\n\n")

	if opts.Prompt != "" {
		sb.WriteString(fmt.Sprintf("Additional instructions: %s\n\n", opts.Prompt))
	}

	sb.WriteString("Input JSON:\n")
	inputJSON, _ := json.MarshalIndent(items, "", "  ")
	sb.Write(inputJSON)
	sb.WriteString("\n\nOutput the reformatted JSON array only:")

	return sb.String()
}

var sentenceEnds = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '．': true,
}

// SplitSentences breaks a transcript after sentence-final punctuation.
// Text without punctuation stays one sentence.
func SplitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var (
		out   []string
		start int
	)
	for i, r := range text {
		if !sentenceEnds[r] {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next < len(text) {
			nr, _ := utf8.DecodeRuneInString(text[next:])
			// "3.5" and "e.g." are not sentence ends
			if r == '.' && nr != ' ' {
				continue
			}
		}
		if s := strings.TrimSpace(text[start:next]); s != "" {
			out = append(out, s)
		}
		start = next
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// models sometimes return a literal backslash-n instead of a line break
func unescapeBreaks(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
