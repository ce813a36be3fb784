package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     zapcore.Level
		wantDebug bool
	}{
		{"info", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(zapcore.AddSync(&buf), Options{Level: tt.level})

			l.Debugw("debug line", "k", 1)
			l.Infow("info line", "file", "a.mp4")
			_ = l.Sync()

			out := buf.String()
			if !strings.Contains(out, "info line") || !strings.Contains(out, `"file": "a.mp4"`) {
				t.Errorf("missing info line:\n%s", out)
			}
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug line present = %v, want %v", got, tt.wantDebug)
			}
			if strings.Contains(out, "\x1b[") {
				t.Errorf("colour codes written to a non-terminal sink")
			}
		})
	}
}

func TestWrapAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Wrap(zap.New(core)).Named("export")

	l.Infow("wrote file", "format", "edl")
	l.Debugw("hidden")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "export" || e.Message != "wrote file" || e.ContextMap()["format"] != "edl" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Infow("nothing", "k", "v")
	l.Named("x").Errorw("still nothing")
}
