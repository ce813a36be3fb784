package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/cutline/internal/timeline"
)

var reformatCmd = &cobra.Command{
	Use:   "reformat [transcript_file]",
	Short: "Reformat a transcript into caption lines",
	Long: `Split a transcript into sentences and reformat them into caption lines:
filler words removed, punctuation fixed, and no line longer than --max-chars.
Word order is never changed, so the lines still align to the word timestamps.

The input is a plain text file or a word timestamps JSON file. The output has
one caption line per line and can be passed to align or export with --lines.

Examples:
  cutline reformat talk.txt
  cutline reformat talk.words.json --reformat-provider openai --max-chars 32
  cutline reformat talk.txt --reformat-provider gemini -l ja -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runReformat,
}

func init() {
	rootCmd.AddCommand(reformatCmd)

	reformatCmd.Flags().
		StringP("language", "l", "", "Transcript language hint (e.g., en, ja)")

	addCaptionFlags(reformatCmd)
}

func runReformat(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := requireFile(inputPath); err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	outputPath := outputFor(cmd, inputPath, ".lines.txt")

	text, err := readTranscript(inputPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("transcript is empty: %s", inputPath)
	}

	r, err := newReformatter(ctx, cfg)
	if err != nil {
		return err
	}

	logger.Infow("Reformatting transcript",
		"input", inputPath,
		"output", outputPath,
		"provider", cfg.Reformat.Provider,
		"max_chars", cfg.Captions.MaxChars,
	)

	lines, err := r.Reformat(ctx, text)
	if err != nil {
		return fmt.Errorf("reformatting failed: %w", err)
	}

	if err := writeOutput(outputPath, func(w io.Writer) error {
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	printWritten("Lines", outputPath)
	if outputPath != "-" {
		fmt.Printf("  Lines: %d\n", len(lines))
	}
	return nil
}

// readTranscript returns the text of a plain transcript, or the joined words
// of a word timestamps file.
func readTranscript(path string) (string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		words, err := timeline.ReadWordsFile(path)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(words))
		for i, w := range words {
			parts[i] = w.Word
		}
		return strings.Join(parts, " "), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}
