package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/cutline/internal/config"
	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/logging"
)

var (
	verbose bool
	cfgPath string
	logger  *logging.Logger
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cutline",
	Short: "Cut silence out of recordings and export editor timelines",
	Long: `Cutline finds the silent stretches in an audio or video recording, keeps
the speech, and writes the result as a timeline an editor can open.

Timelines can be exported as Final Cut Pro 7 XML (xmeml), FCPXML, CMX 3600
EDL, and as SRT or WebVTT captions aligned to a transcript.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)

		c, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
		if cfg.Path != "" {
			logger.Debugw("Loaded config", "path", cfg.Path)
		}
		return nil
	},
}

func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command and logs a failure with its error
// kind before returning it.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		reportError(err)
	}
	return err
}

func reportError(err error) {
	l := logger
	if l == nil {
		l = logging.NewLogger(verbose)
	}
	l.Errorw("Command failed", errorFields(err)...)
}

// errorFields flattens an error into zap key/value pairs.
func errorFields(err error) []any {
	fields := []any{"error", err.Error(), "exit_code", errs.ExitCode(err)}
	if kind := errs.KindOf(err); kind != nil {
		fields = append(fields, "kind", kind.Error())
	}
	var e *errs.Error
	if errors.As(err, &e) {
		if e.Op != "" {
			fields = append(fields, "op", e.Op)
		}
		if e.Index != errs.NoIndex {
			fields = append(fields, "index", e.Index)
		}
		if e.Value != nil {
			fields = append(fields, "value", e.Value)
		}
	}
	return fields
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringP("output", "o", "", "Output path (a directory for export, a file otherwise)")
	rootCmd.PersistentFlags().
		StringVar(&cfgPath, "config", "", "Config file (default $XDG_CONFIG_HOME/cutline/config.toml)")
}
