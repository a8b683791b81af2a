// Package config loads the optional YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"whisperkey/hotkey"
	"whisperkey/insert"
	"whisperkey/transcriber"
)

type Config struct {
	Model          string        `yaml:"model"`
	ModelDir       string        `yaml:"model_dir"`
	Variant        string        `yaml:"variant"`
	Server         string        `yaml:"server"`
	Language       string        `yaml:"language"`
	Threads        int           `yaml:"threads"`
	SampleRate     int           `yaml:"sample_rate"`
	Key            string        `yaml:"key"`
	Device         string        `yaml:"device"`
	Paste          string        `yaml:"paste"`
	RestoreClip    time.Duration `yaml:"restore_clipboard"`
	MinDuration    time.Duration `yaml:"min_duration"`
	Watchdog       time.Duration `yaml:"watchdog"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	Notify         bool          `yaml:"notify"`
	Beep           bool          `yaml:"beep"`
	Debug          bool          `yaml:"debug"`
	LogPath        string        `yaml:"log_path"`
	Metrics        string        `yaml:"metrics"`
	Trace          string        `yaml:"trace"`
	HistoryDB      string        `yaml:"history_db"`
}

func Default() Config {
	return Config{
		Model:          "small",
		ModelDir:       dataPath("models"),
		Variant:        transcriber.VariantWhisperCpp,
		Server:         "http://127.0.0.1:8080",
		Language:       "en",
		SampleRate:     16000,
		Key:            "ctrl+shift+space",
		Paste:          insert.MethodClipboard,
		MinDuration:    300 * time.Millisecond,
		Watchdog:       2 * time.Minute,
		ProcessTimeout: 2 * time.Minute,
		Notify:         true,
		Beep:           true,
		HistoryDB:      dataPath("history.sqlite"),
	}
}

// DefaultPath is where the config file is looked for when -config is not given.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "whisperkey", "config.yaml")
}

func dataPath(name string) string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "whisperkey", name)
}

// Load reads the file at path over Default. A missing file is an error;
// callers probing DefaultPath should check for existence first.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over Default and validates the result.
// Unknown keys are rejected.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns every problem found, joined.
func Validate(cfg Config) error {
	var errs []error

	if !slices.Contains(transcriber.Variants, cfg.Variant) {
		errs = append(errs, fmt.Errorf("variant %q is invalid; valid values: %v", cfg.Variant, transcriber.Variants))
	}
	if cfg.Variant == transcriber.VariantWhisperCpp && !transcriber.ValidModelSize(cfg.Model) {
		errs = append(errs, fmt.Errorf("model %q is invalid; valid values: %v", cfg.Model, transcriber.ModelSizes))
	}
	if cfg.Variant == transcriber.VariantServer && cfg.Server == "" {
		errs = append(errs, errors.New("server is required for variant whisper-server"))
	}
	if cfg.SampleRate < 8000 || cfg.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("sample_rate %d is out of range [8000, 48000]", cfg.SampleRate))
	}
	// whisper models only accept 16 kHz input; the cloud APIs resample.
	if (cfg.Variant == transcriber.VariantWhisperCpp || cfg.Variant == transcriber.VariantServer) && cfg.SampleRate != 16000 {
		errs = append(errs, fmt.Errorf("sample_rate %d is unsupported by variant %s; it requires 16000", cfg.SampleRate, cfg.Variant))
	}
	if cfg.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads %d must not be negative", cfg.Threads))
	}
	if _, err := hotkey.ParseKey(cfg.Key); err != nil {
		errs = append(errs, fmt.Errorf("key: %w", err))
	}
	if !slices.Contains(insert.Methods, cfg.Paste) {
		errs = append(errs, fmt.Errorf("paste %q is invalid; valid values: %v", cfg.Paste, insert.Methods))
	}
	if cfg.RestoreClip < 0 {
		errs = append(errs, fmt.Errorf("restore_clipboard %s must not be negative", cfg.RestoreClip))
	}
	if cfg.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("min_duration %s must not be negative", cfg.MinDuration))
	}
	if cfg.Watchdog <= cfg.MinDuration {
		errs = append(errs, fmt.Errorf("watchdog %s must exceed min_duration %s", cfg.Watchdog, cfg.MinDuration))
	}
	if cfg.ProcessTimeout <= 0 {
		errs = append(errs, fmt.Errorf("process_timeout %s must be positive", cfg.ProcessTimeout))
	}

	return errors.Join(errs...)
}
