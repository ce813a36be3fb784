package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mgpai22/cutline/internal/caption"
	"github.com/mgpai22/cutline/internal/export"
	"github.com/mgpai22/cutline/internal/segment"
)

const (
	DefaultNoiseDB        = -30.0
	DefaultMaxChars       = 42
	DefaultChunkSeconds   = 600
	DefaultReformatBatch  = 20
	DefaultReformatWorker = 3
)

type Config struct {
	Silence    SilenceConfig    `toml:"silence"`
	Captions   CaptionsConfig   `toml:"captions"`
	Export     ExportConfig     `toml:"export"`
	Transcribe TranscribeConfig `toml:"transcribe"`
	Reformat   ReformatConfig   `toml:"reformat"`

	OpenAIAPIKey    string `toml:"openai_api_key"`
	GeminiAPIKey    string `toml:"gemini_api_key"`
	AnthropicAPIKey string `toml:"anthropic_api_key"`

	// path of the file that was loaded, empty when only defaults apply
	Path string `toml:"-"`
}

type SilenceConfig struct {
	MinSilence    float64 `toml:"min_silence"`
	Margin        float64 `toml:"margin"`
	NoiseDB       float64 `toml:"noise_db"`
	MergeTouching bool    `toml:"merge_touching"`
}

type CaptionsConfig struct {
	Threshold  float64 `toml:"threshold"`
	AbsorbTail bool    `toml:"absorb_tail"`
	MaxChars   int     `toml:"max_chars"`
}

type ExportConfig struct {
	Formats     []string `toml:"formats"`
	OutputDir   string   `toml:"output_dir"`
	OmitTitles  bool     `toml:"omit_titles"`
	EDLCaptions bool     `toml:"edl_captions"`
}

type TranscribeConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	Language     string `toml:"language"`
	ChunkSeconds int    `toml:"chunk_seconds"`
}

type ReformatConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	BatchSize int    `toml:"batch_size"`
	Workers   int    `toml:"workers"`
}

func Default() *Config {
	sp := segment.DefaultPolicy()
	cp := caption.DefaultPolicy()
	return &Config{
		Silence: SilenceConfig{
			MinSilence:    sp.MinSilence,
			Margin:        sp.Margin,
			NoiseDB:       DefaultNoiseDB,
			MergeTouching: sp.MergeTouching,
		},
		Captions: CaptionsConfig{
			Threshold:  cp.Threshold,
			AbsorbTail: cp.AbsorbTail,
			MaxChars:   DefaultMaxChars,
		},
		Export: ExportConfig{
			Formats: []string{string(export.FormatXML)},
		},
		Transcribe: TranscribeConfig{
			Provider:     "openai",
			ChunkSeconds: DefaultChunkSeconds,
		},
		Reformat: ReformatConfig{
			Provider:  "local",
			BatchSize: DefaultReformatBatch,
			Workers:   DefaultReformatWorker,
		},
	}
}

// Load applies defaults, then the config file, then environment overrides.
// An explicit path must exist; the default location is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if v := os.Getenv("CUTLINE_CONFIG"); v != "" {
			path, explicit = v, true
		} else {
			path = configFilePath()
		}
	}

	if path != "" {
		path = expandTilde(path)
		if err := decodeFile(path, cfg); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			cfg.Path = path
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := firstEnv("CUTLINE_OPENAI_API_KEY", "OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := firstEnv("CUTLINE_GEMINI_API_KEY", "GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := firstEnv("CUTLINE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("CUTLINE_FORMATS"); v != "" {
		cfg.Export.Formats = splitList(v)
	}
	if v := os.Getenv("CUTLINE_OUTPUT_DIR"); v != "" {
		cfg.Export.OutputDir = v
	}
	if v := os.Getenv("CUTLINE_TRANSCRIBE_PROVIDER"); v != "" {
		cfg.Transcribe.Provider = v
	}
	if v := os.Getenv("CUTLINE_REFORMAT_PROVIDER"); v != "" {
		cfg.Reformat.Provider = v
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"CUTLINE_MIN_SILENCE", &cfg.Silence.MinSilence},
		{"CUTLINE_MARGIN", &cfg.Silence.Margin},
		{"CUTLINE_NOISE_DB", &cfg.Silence.NoiseDB},
		{"CUTLINE_ALIGN_THRESHOLD", &cfg.Captions.Threshold},
	}
	for _, f := range floats {
		v := os.Getenv(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.name, v, err)
		}
		*f.dst = n
	}
	return nil
}

// Validate checks the settings the core packages would otherwise reject later.
func (c *Config) Validate() error {
	if c.Silence.MinSilence < 0 || c.Silence.Margin < 0 {
		return fmt.Errorf("silence.min_silence and silence.margin must be non-negative")
	}
	if c.Silence.NoiseDB >= 0 {
		return fmt.Errorf("silence.noise_db must be negative, got %g", c.Silence.NoiseDB)
	}
	if c.Captions.Threshold <= 0 || c.Captions.Threshold > 1 {
		return fmt.Errorf("captions.threshold must be in (0, 1], got %g", c.Captions.Threshold)
	}
	if c.Captions.MaxChars <= 0 {
		return fmt.Errorf("captions.max_chars must be positive")
	}
	if c.Transcribe.ChunkSeconds <= 0 {
		return fmt.Errorf("transcribe.chunk_seconds must be positive")
	}
	if c.Reformat.BatchSize <= 0 || c.Reformat.Workers <= 0 {
		return fmt.Errorf("reformat.batch_size and reformat.workers must be positive")
	}
	if _, err := c.Formats(); err != nil {
		return err
	}
	return nil
}

func (c *Config) SegmentPolicy() segment.Policy {
	return segment.Policy{
		MinSilence:    c.Silence.MinSilence,
		Margin:        c.Silence.Margin,
		MergeTouching: c.Silence.MergeTouching,
	}
}

func (c *Config) AlignPolicy() caption.Policy {
	return caption.Policy{Threshold: c.Captions.Threshold, AbsorbTail: c.Captions.AbsorbTail}
}

func (c *Config) ExportOptions() export.Options {
	return export.Options{OmitTitles: c.Export.OmitTitles, EDLCaptions: c.Export.EDLCaptions}
}

// Formats parses the configured format list, dropping duplicates.
func (c *Config) Formats() ([]export.Format, error) {
	seen := make(map[export.Format]bool)
	var out []export.Format
	for _, s := range c.Export.Formats {
		f, err := export.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("export.formats is empty")
	}
	return out, nil
}

// APIKey returns the key configured for an LLM provider.
func (c *Config) APIKey(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return c.OpenAIAPIKey
	case "gemini", "google":
		return c.GeminiAPIKey
	case "anthropic", "claude":
		return c.AnthropicAPIKey
	}
	return ""
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "cutline")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "cutline")
	} else {
		return ""
	}
	return filepath.Join(configDir, "config.toml")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
