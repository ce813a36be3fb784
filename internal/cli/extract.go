package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mgpai22/cutline/internal/audio"
	"github.com/mgpai22/cutline/internal/video"
)

var extractCmd = &cobra.Command{
	Use:   "extract [media_file]",
	Short: "Extract the audio track of a recording",
	Long: `Write the audio of a video file, or a re-encoded copy of an audio file, in
the layout transcription and silence detection work best with.

Output formats: wav, mp3, aac, flac. The defaults (16 kHz mono wav) match
what the transcription step uploads.

Examples:
  cutline extract talk.mp4
  cutline extract talk.mp4 -o talk.mp3 -f mp3 -b 64k
  cutline extract interview.m4a --format flac --sample-rate 48000 --channels 2`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	defaults := video.DefaultExtractAudioOptions()
	extractCmd.Flags().
		StringP("format", "f", defaults.Format, "Output audio format (wav, mp3, aac, flac)")
	extractCmd.Flags().
		IntP("sample-rate", "r", defaults.SampleRate, "Sample rate in Hz (e.g., 16000, 44100, 48000)")
	extractCmd.Flags().
		IntP("channels", "c", defaults.Channels, "Number of audio channels (1=mono, 2=stereo)")
	extractCmd.Flags().
		StringP("bitrate", "b", "", "Bitrate for lossy formats (e.g., 128k, 320k)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format, _ := cmd.Flags().GetString("format")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")
	channels, _ := cmd.Flags().GetInt("channels")
	bitrate, _ := cmd.Flags().GetString("bitrate")

	if !audio.ValidFormat(format) {
		return fmt.Errorf(
			"invalid format %q: supported formats are wav, mp3, aac, flac",
			format,
		)
	}
	if err := requireFile(mediaPath); err != nil {
		return err
	}
	if !audio.IsMediaFile(mediaPath) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = stem(mediaPath) + "." + format
	}
	if same, _ := samePath(mediaPath, outputPath); same {
		return fmt.Errorf("output %s would overwrite the input", outputPath)
	}

	logger.Infow("Extracting audio",
		"input", mediaPath,
		"output", outputPath,
		"format", format,
		"sample_rate", sampleRate,
		"channels", channels,
	)

	var err error
	opts := video.ExtractAudioOptions{
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Bitrate:    bitrate,
	}
	if audio.IsVideoFile(mediaPath) {
		err = video.NewProcessor().ExtractAudio(ctx, mediaPath, outputPath, opts)
	} else {
		err = audio.Compress(ctx, mediaPath, outputPath, opts)
	}
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	printWritten("Audio", outputPath)
	return nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
