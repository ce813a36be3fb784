package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mgpai22/cutline/internal/config"
	"github.com/mgpai22/cutline/internal/pipeline"
	"github.com/mgpai22/cutline/internal/reformat"
	"github.com/mgpai22/cutline/internal/silence"
	"github.com/mgpai22/cutline/internal/transcribe"
	"github.com/mgpai22/cutline/internal/video"
)

func addSilenceFlags(cmd *cobra.Command) {
	cmd.Flags().
		Float64("min-silence", 0, "Shortest silence to cut, in seconds (default from config: 1.0)")
	cmd.Flags().
		Float64("margin", 0, "Padding kept on each side of a cut, in seconds (default from config: 0.2)")
	cmd.Flags().
		Float64("noise-db", 0, "Level below which audio counts as silent, in dBFS (default from config: -30)")
}

func addTranscribeFlags(cmd *cobra.Command) {
	cmd.Flags().
		String("provider", "", "Transcription provider (openai, gemini)")
	cmd.Flags().
		String("model", "", "Transcription model (provider-specific, uses sensible defaults)")
	cmd.Flags().
		Bool("model-override", false, "Allow any custom model, bypassing provider model validation")
	cmd.Flags().
		StringP("language", "l", "", "Language code of the speech (e.g., en, ja)")
	cmd.Flags().
		StringP("api-key", "k", "", "Transcription API key (or set OPENAI_API_KEY/GEMINI_API_KEY)")
	cmd.Flags().
		Int("chunk-seconds", 0, "Length of each transcription chunk in seconds (default from config: 600)")
	cmd.Flags().
		Int("concurrency", 3, "Number of parallel transcription workers")
}

func addCaptionFlags(cmd *cobra.Command) {
	cmd.Flags().
		String("reformat-provider", "", "Caption reformat provider (local, openai, anthropic, gemini)")
	cmd.Flags().
		String("reformat-model", "", "Caption reformat model (provider-specific)")
	cmd.Flags().
		Int("max-chars", 0, "Maximum characters per caption line (default from config: 42)")
	cmd.Flags().
		Float64("threshold", 0, "Minimum match ratio for a caption line to align (default from config: 0.8)")
}

// applyFlags copies every explicitly set flag over the loaded config and
// validates the result.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()

	floats := map[string]*float64{
		"min-silence": &c.Silence.MinSilence,
		"margin":      &c.Silence.Margin,
		"noise-db":    &c.Silence.NoiseDB,
		"threshold":   &c.Captions.Threshold,
	}
	for name, dst := range floats {
		if changed(flags, name) {
			v, err := flags.GetFloat64(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	ints := map[string]*int{
		"chunk-seconds": &c.Transcribe.ChunkSeconds,
		"max-chars":     &c.Captions.MaxChars,
	}
	for name, dst := range ints {
		if changed(flags, name) {
			v, err := flags.GetInt(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	strs := map[string]*string{
		"provider":          &c.Transcribe.Provider,
		"model":             &c.Transcribe.Model,
		"language":          &c.Transcribe.Language,
		"reformat-provider": &c.Reformat.Provider,
		"reformat-model":    &c.Reformat.Model,
	}
	for name, dst := range strs {
		if changed(flags, name) {
			v, err := flags.GetString(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	if changed(flags, "format") {
		v, err := flags.GetStringSlice("format")
		if err != nil {
			return err
		}
		c.Export.Formats = v
	}
	if changed(flags, "omit-titles") {
		c.Export.OmitTitles, _ = flags.GetBool("omit-titles")
	}
	if changed(flags, "edl-captions") {
		c.Export.EDLCaptions, _ = flags.GetBool("edl-captions")
	}

	return c.Validate()
}

func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

// newExporter wires the ffmpeg-backed collaborators. Transcriber and
// reformatter are attached separately because most runs need neither.
func newExporter(c *config.Config) *pipeline.Exporter {
	processor := video.NewProcessor()
	detect := silence.DefaultOptions()
	return &pipeline.Exporter{
		Media: processor,
		Silence: silence.NewDetector(silence.Options{
			NoiseDB:     c.Silence.NoiseDB,
			MinDuration: math.Min(c.Silence.MinSilence, detect.MinDuration),
		}),
		Audio: &pipeline.FFmpegAudio{
			Processor:   processor,
			ChunkLength: time.Duration(c.Transcribe.ChunkSeconds) * time.Second,
			Concurrency: 2,
		},
		Segments: c.SegmentPolicy(),
		Align:    c.AlignPolicy(),
		Export:   c.ExportOptions(),
		Logger:   logger,
	}
}

func newTranscriber(ctx context.Context, cmd *cobra.Command, c *config.Config) (transcribe.Transcriber, error) {
	provider, err := transcribe.ParseProvider(c.Transcribe.Provider)
	if err != nil {
		return nil, err
	}

	model := c.Transcribe.Model
	modelOverride, _ := cmd.Flags().GetBool("model-override")
	if model != "" && !modelOverride {
		if err := validateTranscribeModel(provider, model); err != nil {
			return nil, err
		}
	}

	apiKey, _ := cmd.Flags().GetString("api-key")
	if apiKey == "" {
		apiKey = c.APIKey(string(provider))
	}
	if apiKey == "" {
		return nil, fmt.Errorf(
			"API key is required: use --api-key flag or set %s environment variable",
			apiKeyEnv(string(provider)),
		)
	}

	logger.Debugw("Creating transcriber", "provider", provider, "model", model)
	t, err := transcribe.Factory(ctx, provider, apiKey, transcribe.Options{
		Language: c.Transcribe.Language,
		Model:    model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}
	return t, nil
}

func newReformatter(ctx context.Context, c *config.Config) (reformat.Reformatter, error) {
	provider, err := reformat.ParseProvider(c.Reformat.Provider)
	if err != nil {
		return nil, err
	}

	var apiKey string
	if provider != reformat.ProviderLocal {
		apiKey = c.APIKey(string(provider))
		if apiKey == "" {
			return nil, fmt.Errorf(
				"API key is required for %s reformatting: set %s environment variable",
				provider,
				apiKeyEnv(string(provider)),
			)
		}
	}

	logger.Debugw("Creating reformatter", "provider", provider, "model", c.Reformat.Model)
	r, err := reformat.Factory(ctx, provider, apiKey, reformat.Options{
		Language:  c.Transcribe.Language,
		Model:     c.Reformat.Model,
		MaxChars:  c.Captions.MaxChars,
		BatchSize: c.Reformat.BatchSize,
		Workers:   c.Reformat.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reformatter: %w", err)
	}
	return r, nil
}

func apiKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini", "google":
		return "GEMINI_API_KEY"
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY"
	}
	return "API_KEY"
}

// outputFor resolves a command's output file: the --output flag, else the
// input's stem plus suffix next to the input.
func outputFor(cmd *cobra.Command, input, suffix string) string {
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		return out
	}
	return stem(input) + suffix
}

// files this tool writes next to the media
var intermediateSuffixes = []string{
	".words.json",
	".segments.json",
	".metadata.json",
	".captions.json",
}

// stem is path without its final extension, or without one of the
// intermediate suffixes so outputs derived from them sit beside the media.
func stem(path string) string {
	for _, s := range intermediateSuffixes {
		if len(path) > len(s) && strings.HasSuffix(path, s) {
			return strings.TrimSuffix(path, s)
		}
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func requireFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", path)
	}
	return nil
}

// writeOutput writes through fn into path, or to stdout when path is "-".
func writeOutput(path string, fn func(w io.Writer) error) error {
	if path == "-" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func printWritten(what, path string) {
	if path == "-" {
		return
	}
	abs, _ := filepath.Abs(path)
	fmt.Printf("%s written: %s\n", what, abs)
}
