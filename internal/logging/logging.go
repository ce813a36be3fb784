package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the sugared zap logger shared by every command.
type Logger struct {
	*zap.SugaredLogger
}

type Options struct {
	Level  zapcore.Level
	Caller bool
	Color  bool
}

// NewLogger logs to stderr so stdout stays free for command output.
// Verbose lowers the level to debug and adds caller information.
func NewLogger(verbose bool) *Logger {
	opts := Options{Level: zapcore.InfoLevel, Color: isTerminal(os.Stderr)}
	if verbose {
		opts.Level = zapcore.DebugLevel
		opts.Caller = true
	}
	return New(zapcore.Lock(os.Stderr), opts)
}

// New builds a console logger on an arbitrary sink.
func New(sink zapcore.WriteSyncer, opts Options) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if opts.Color {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if !opts.Caller {
		encCfg.CallerKey = zapcore.OmitKey
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, opts.Level)

	var zopts []zap.Option
	if opts.Caller {
		zopts = append(zopts, zap.AddCaller())
	}
	return &Logger{zap.New(core, zopts...).Sugar()}
}

// Wrap adapts an existing zap logger, mostly for tests using zaptest/observer.
func Wrap(l *zap.Logger) *Logger {
	return &Logger{l.Sugar()}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.SugaredLogger.Named(name)}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
