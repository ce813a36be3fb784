package cli

import (
	"fmt"
	"strings"

	"github.com/mgpai22/cutline/internal/transcribe"
)

var geminiModels = []string{
	"gemini-3-pro-preview",
	"gemini-3-flash-preview",
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
}

// only whisper-1 returns word-level timestamps
var openAITranscribeModels = []string{
	"whisper-1",
}

func isValidGeminiModel(model string) bool {
	return containsModel(geminiModels, model)
}

func isValidOpenAITranscribeModel(model string) bool {
	return containsModel(openAITranscribeModels, model)
}

func containsModel(models []string, model string) bool {
	model = strings.TrimSpace(model)
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}

func validateTranscribeModel(provider transcribe.Provider, model string) error {
	switch provider {
	case transcribe.ProviderGemini:
		if !isValidGeminiModel(model) {
			return fmt.Errorf(
				"unsupported Gemini model %q: valid models are %s (use --model-override to bypass)",
				model,
				strings.Join(geminiModels, ", "),
			)
		}
	case transcribe.ProviderOpenAI:
		if !isValidOpenAITranscribeModel(model) {
			return fmt.Errorf(
				"unsupported OpenAI transcription model %q: word timestamps need %s (use --model-override to bypass)",
				model,
				strings.Join(openAITranscribeModels, ", "),
			)
		}
	}
	return nil
}
