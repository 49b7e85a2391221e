// Package config loads recut settings from an optional recut.yaml, RECUT_
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "RECUT"
	FileName  = "recut"
)

type Config struct {
	Verbose    bool             `mapstructure:"verbose"`
	Log        LogConfig        `mapstructure:"log"`
	Timeline   TimelineConfig   `mapstructure:"timeline"`
	Document   DocumentConfig   `mapstructure:"document"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	Translate  TranslateConfig  `mapstructure:"translate"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Waveform   WaveformConfig   `mapstructure:"waveform"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

type TimelineConfig struct {
	// shortest silence kept as an embedded gap
	MinGap time.Duration `mapstructure:"min_gap" validate:"gte=0"`
}

type DocumentConfig struct {
	// shortest embedded gap shown as a spacer
	SpacerThreshold time.Duration `mapstructure:"spacer_threshold" validate:"gte=0"`
}

type TranscribeConfig struct {
	Provider      string        `mapstructure:"provider" validate:"oneof=openai gemini whisper-json subtitle"`
	Model         string        `mapstructure:"model"`
	Language      string        `mapstructure:"language"`
	ChunkDuration time.Duration `mapstructure:"chunk_duration" validate:"gte=0"`
	Concurrency   int           `mapstructure:"concurrency" validate:"gte=1,lte=32"`
	OpenAIAPIKey  string        `mapstructure:"openai_api_key"`
	GeminiAPIKey  string        `mapstructure:"gemini_api_key"`
}

type TranslateConfig struct {
	Provider        string `mapstructure:"provider" validate:"oneof=openai gemini anthropic"`
	Model           string `mapstructure:"model"`
	BatchSize       int    `mapstructure:"batch_size" validate:"gte=1,lte=500"`
	Concurrency     int    `mapstructure:"concurrency" validate:"gte=1,lte=32"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
}

type EngineConfig struct {
	Path          string        `mapstructure:"path"`
	Args          []string      `mapstructure:"args"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" validate:"gte=0"`
}

type WaveformConfig struct {
	Width           int           `mapstructure:"width" validate:"gte=1,lte=10000"`
	SampleRate      int           `mapstructure:"sample_rate" validate:"gte=100"`
	SamplesPerPixel int           `mapstructure:"samples_per_pixel" validate:"gte=1"`
	RepaintInterval time.Duration `mapstructure:"repaint_interval" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("timeline.min_gap", "10ms")
	v.SetDefault("document.spacer_threshold", "1s")
	v.SetDefault("transcribe.provider", "openai")
	v.SetDefault("transcribe.model", "")
	v.SetDefault("transcribe.language", "")
	v.SetDefault("transcribe.chunk_duration", "10m")
	v.SetDefault("transcribe.concurrency", 4)
	v.SetDefault("transcribe.openai_api_key", "")
	v.SetDefault("transcribe.gemini_api_key", "")
	v.SetDefault("translate.provider", "anthropic")
	v.SetDefault("translate.model", "")
	v.SetDefault("translate.batch_size", 50)
	v.SetDefault("translate.concurrency", 3)
	v.SetDefault("translate.anthropic_api_key", "")
	v.SetDefault("engine.path", "")
	v.SetDefault("engine.args", []string{})
	v.SetDefault("engine.shutdown_grace", "2s")
	v.SetDefault("waveform.width", 120)
	v.SetDefault("waveform.sample_rate", 8000)
	v.SetDefault("waveform.samples_per_pixel", 256)
	v.SetDefault("waveform.repaint_interval", "50ms")
}

type loadOptions struct {
	file   string
	search []string
	flags  map[string]*pflag.Flag
}

type Option func(*loadOptions)

// WithFile reads the given file instead of searching for recut.yaml.
func WithFile(path string) Option {
	return func(o *loadOptions) { o.file = path }
}

// WithSearchPaths sets the directories searched for recut.yaml.
func WithSearchPaths(dirs ...string) Option {
	return func(o *loadOptions) { o.search = dirs }
}

// WithFlag lets a command-line flag override a config key when set.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(o *loadOptions) {
		if flag != nil {
			o.flags[key] = flag
		}
	}
}

// Load resolves the configuration and validates it.
func Load(opts ...Option) (*Config, error) {
	lo := loadOptions{search: []string{"."}, flags: make(map[string]*pflag.Flag)}
	for _, opt := range opts {
		opt(&lo)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if lo.file != "" {
		v.SetConfigFile(lo.file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		for _, dir := range lo.search {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if lo.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, flag := range lo.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
