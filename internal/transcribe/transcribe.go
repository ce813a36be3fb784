package transcribe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mgpai22/cutline/internal/audio"
	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timeline"
)

// transcription result with word-level timing
type Result struct {
	Words    []timeline.WordTimestamp
	Text     string
	Language string
	Duration time.Duration
}

// interface for audio transcription
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOpenAI, ProviderGemini:
		return p, nil
	case "whisper":
		return ProviderOpenAI, nil
	}
	return "", fmt.Errorf("unsupported transcription provider %q: use openai or gemini", s)
}

// transcription options
type Options struct {
	Language string // source language hint, ISO-639-1
	Model    string
	Prompt   string
}

// creates transcriber based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Transcriber, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAITranscriber(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// holds the result of transcribing a chunk
type chunkResult struct {
	Index  int
	Result *Result
	Error  error
}

// TranscribeChunks transcribes chunks in parallel, shifts each chunk's word
// timestamps by the chunk offset and merges them in source order.
func TranscribeChunks(
	ctx context.Context,
	t Transcriber,
	chunks []audio.ChunkInfo,
	concurrency int,
) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}
	if concurrency <= 0 {
		concurrency = 3
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workChan := make(chan audio.ChunkInfo)
	resultChan := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range workChan {
				if ctx.Err() != nil {
					return
				}
				res, err := t.Transcribe(ctx, chunk.Path)
				if err != nil {
					cancel()
				}
				resultChan <- chunkResult{Index: chunk.Index, Result: res, Error: err}
			}
		}()
	}

	go func() {
		defer close(workChan)
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case workChan <- chunk:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	byIndex := make(map[int]*Result, len(chunks))
	var firstErr error
	for r := range resultChan {
		if r.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk %d failed: %w", r.Index, r.Error)
			}
			continue
		}
		byIndex[r.Index] = r.Result
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if len(byIndex) != len(chunks) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("transcribed %d of %d chunks", len(byIndex), len(chunks))
	}

	ordered := append([]audio.ChunkInfo(nil), chunks...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	merged := &Result{}
	var texts []string
	for _, c := range ordered {
		r := byIndex[c.Index]
		merged.Words = append(merged.Words, shiftWords(r.Words, c)...)
		if s := strings.TrimSpace(r.Text); s != "" {
			texts = append(texts, s)
		}
		if merged.Language == "" {
			merged.Language = r.Language
		}
	}
	merged.Text = strings.Join(texts, " ")
	last := ordered[len(ordered)-1]
	merged.Duration = last.Offset + last.Length

	words, err := timeline.NewWords(merged.Words)
	if err != nil {
		return nil, errs.Collaborator("transcribe.TranscribeChunks", err, "merged word timestamps are inconsistent")
	}
	merged.Words = words
	return merged, nil
}

// shiftWords moves chunk-relative words onto the source timeline, keeping
// them inside the chunk they were heard in.
func shiftWords(words []timeline.WordTimestamp, c audio.ChunkInfo) []timeline.WordTimestamp {
	offset := c.Offset.Seconds()
	limit := offset + c.Length.Seconds()

	out := make([]timeline.WordTimestamp, len(words))
	for i, w := range words {
		start := min(max(w.Start+offset, offset), limit)
		end := min(max(w.End+offset, start), limit)
		out[i] = timeline.WordTimestamp{Word: w.Word, Start: start, End: end}
	}
	return out
}

// toWords validates provider records as word timestamps.
func toWords(op string, recs []wordRecord) ([]timeline.WordTimestamp, error) {
	words := make([]timeline.WordTimestamp, 0, len(recs))
	for _, r := range recs {
		text := strings.TrimSpace(r.text())
		if text == "" {
			continue
		}
		words = append(words, timeline.WordTimestamp{Word: text, Start: r.Start, End: r.End})
	}
	out, err := timeline.NewWords(words)
	if err != nil {
		return nil, errs.Collaborator(op, err, "provider returned invalid word timestamps")
	}
	return out, nil
}

// wordRecord accepts both the "word" and "text" spellings providers use.
type wordRecord struct {
	Word  string  `json:"word"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (w wordRecord) text() string {
	if w.Word != "" {
		return w.Word
	}
	return w.Text
}
