package config

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/shpitdev/shz-loader/internal/decode"
	"github.com/shpitdev/shz-loader/internal/emit"
	"github.com/shpitdev/shz-loader/pkg/amf"
	"github.com/shpitdev/shz-loader/pkg/pipeline/schema"
)

// Config is the full set of run parameters. The defaults match the fixed
// file names the loader has always used in the working directory.
type Config struct {
	Mode string `yaml:"mode"`

	Input        string `yaml:"input"`
	Output       string `yaml:"output"`
	PrettyOutput string `yaml:"pretty_output"`
	StripOutput  string `yaml:"strip_output"`

	Binding    string `yaml:"binding"`
	TrackField string `yaml:"track_field"`
	RawField   string `yaml:"raw_field"`

	Compression string `yaml:"compression"`
	Encoding    string `yaml:"encoding"`

	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Mode:         string(schema.ExportModeFull),
		Input:        "shzStars.dat",
		Output:       "shzStars.js",
		PrettyOutput: "shzStars.pretty.js",
		StripOutput:  "shzStars.json",
		Binding:      emit.DefaultBinding,
		TrackField:   emit.DefaultTrackField,
		RawField:     decode.DefaultRawField,
		Compression:  string(decode.CodecZlib),
		Encoding:     amf.EncodingAuto.String(),
		Workers:      1,
		LogLevel:     "info",
	}
}

// LoadFile overlays the YAML file at path onto base. Keys absent from the
// file keep their base value; unknown keys are rejected.
func LoadFile(fsys afero.Fs, path string, base Config) (Config, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	cfg := base
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv overlays SHZ_* environment variables onto base.
func FromEnv(base Config, getenv func(string) string) (Config, error) {
	cfg := base
	strs := []struct {
		name string
		dst  *string
	}{
		{"SHZ_MODE", &cfg.Mode},
		{"SHZ_INPUT", &cfg.Input},
		{"SHZ_OUTPUT", &cfg.Output},
		{"SHZ_PRETTY_OUTPUT", &cfg.PrettyOutput},
		{"SHZ_STRIP_OUTPUT", &cfg.StripOutput},
		{"SHZ_BINDING", &cfg.Binding},
		{"SHZ_TRACK_FIELD", &cfg.TrackField},
		{"SHZ_RAW_FIELD", &cfg.RawField},
		{"SHZ_COMPRESSION", &cfg.Compression},
		{"SHZ_ENCODING", &cfg.Encoding},
		{"SHZ_LOG_LEVEL", &cfg.LogLevel},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(getenv(s.name)); v != "" {
			*s.dst = v
		}
	}

	workers, err := envInt(getenv, "SHZ_WORKERS", cfg.Workers)
	if err != nil {
		return Config{}, err
	}
	cfg.Workers = workers
	return cfg, nil
}

// Load builds the run configuration: defaults, then the YAML file named by
// SHZ_CONFIG if set, then the remaining SHZ_* variables.
func Load(fsys afero.Fs, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(getenv("SHZ_CONFIG")); path != "" {
		var err error
		if cfg, err = LoadFile(fsys, path, cfg); err != nil {
			return Config{}, err
		}
	}
	cfg, err := FromEnv(cfg, getenv)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	mode, err := schema.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.Input) == "" {
		return errors.New("input path is required")
	}
	switch mode {
	case schema.ExportModeFull:
		if c.Output == "" || c.PrettyOutput == "" {
			return errors.New("full export requires output and pretty_output")
		}
		if c.Output == c.PrettyOutput {
			return fmt.Errorf("output and pretty_output are both %q", c.Output)
		}
		if !isIdentifier(c.Binding) {
			return fmt.Errorf("binding %q is not a valid identifier", c.Binding)
		}
	case schema.ExportModeStrip:
		if c.StripOutput == "" {
			return errors.New("strip export requires strip_output")
		}
	}
	if c.Input == c.Output || c.Input == c.PrettyOutput || c.Input == c.StripOutput {
		return fmt.Errorf("input %q would be overwritten by an output", c.Input)
	}
	if _, err := decode.ParseCodec(c.Compression); err != nil {
		return err
	}
	if _, err := amf.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if _, err := level.Parse(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return nil
}

// ExportMode returns the validated export mode.
func (c Config) ExportMode() schema.ExportMode {
	return schema.NormalizeMode(c.Mode)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func envInt(getenv func(string) string, varName string, fallback int) (int, error) {
	v := strings.TrimSpace(getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
