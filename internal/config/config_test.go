package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mgpai22/cutline/internal/export"
)

// isolate clears every variable Load reads.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CUTLINE_CONFIG", "CUTLINE_OPENAI_API_KEY", "OPENAI_API_KEY",
		"CUTLINE_GEMINI_API_KEY", "GEMINI_API_KEY", "CUTLINE_ANTHROPIC_API_KEY",
		"ANTHROPIC_API_KEY", "CUTLINE_FORMATS", "CUTLINE_OUTPUT_DIR",
		"CUTLINE_TRANSCRIBE_PROVIDER", "CUTLINE_REFORMAT_PROVIDER",
		"CUTLINE_MIN_SILENCE", "CUTLINE_MARGIN", "CUTLINE_NOISE_DB",
		"CUTLINE_ALIGN_THRESHOLD",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("no file should have been loaded, got %q", cfg.Path)
	}

	p := cfg.SegmentPolicy()
	if p.MinSilence != 1.0 || p.Margin != 0.2 || !p.MergeTouching {
		t.Errorf("unexpected default segment policy %+v", p)
	}
	if a := cfg.AlignPolicy(); a.Threshold != 0.8 || a.AbsorbTail {
		t.Errorf("unexpected default align policy %+v", a)
	}
	formats, err := cfg.Formats()
	if err != nil || !reflect.DeepEqual(formats, []export.Format{export.FormatXML}) {
		t.Errorf("default formats = %v, %v", formats, err)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
openai_api_key = "file-key"

[silence]
margin = 0.1
merge_touching = false

[captions]
max_chars = 16

[export]
formats = ["edl", "SRT", "edl"]
edl_captions = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.Silence.Margin != 0.1 || cfg.Silence.MergeTouching || cfg.Silence.MinSilence != 1.0 {
		t.Errorf("silence = %+v", cfg.Silence)
	}
	if cfg.Captions.MaxChars != 16 || cfg.Captions.Threshold != 0.8 {
		t.Errorf("captions = %+v", cfg.Captions)
	}
	formats, err := cfg.Formats()
	if err != nil || !reflect.DeepEqual(formats, []export.Format{export.FormatEDL, export.FormatSRT}) {
		t.Errorf("formats = %v, %v", formats, err)
	}
	if !cfg.ExportOptions().EDLCaptions {
		t.Errorf("edl_captions not applied")
	}
	if cfg.APIKey("openai") != "file-key" {
		t.Errorf("api key from file not applied")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "openai_api_key = \"file-key\"\n[silence]\nmargin = 0.1\n")
	t.Setenv("CUTLINE_CONFIG", path)
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("CUTLINE_MARGIN", "0.35")
	t.Setenv("CUTLINE_FORMATS", "xml-strict, fcpxml")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey("openai") != "env-key" {
		t.Errorf("env key should win over file")
	}
	if cfg.Silence.Margin != 0.35 {
		t.Errorf("margin = %v", cfg.Silence.Margin)
	}
	if !reflect.DeepEqual(cfg.Export.Formats, []string{"xml-strict", "fcpxml"}) {
		t.Errorf("formats = %v", cfg.Export.Formats)
	}
}

func TestLoadDefaultLocation(t *testing.T) {
	isolate(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "cutline")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[transcribe]\nprovider = \"gemini\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcribe.Provider != "gemini" {
		t.Errorf("provider = %q", cfg.Transcribe.Provider)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "malformed toml", body: "[silence\n", want: "failed to parse config"},
		{name: "unknown key", body: "[silence]\nmin_silense = 2\n", want: "silence.min_silense"},
		{name: "bad threshold", body: "[captions]\nthreshold = 1.5\n", want: "captions.threshold"},
		{name: "unknown format", body: "[export]\nformats = [\"avi\"]\n", want: "unknown format"},
		{name: "positive noise floor", body: "[silence]\nnoise_db = 3\n", want: "noise_db"},
		{name: "bad env float", body: "", env: map[string]string{"CUTLINE_MIN_SILENCE": "long"}, want: "CUTLINE_MIN_SILENCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Errorf("expected error for a missing explicit config file")
	}
}
