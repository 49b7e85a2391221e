package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithSearchPaths(t.TempDir()))
	require.NoError(t, err)

	assert.False(t, cfg.Verbose)
	assert.Equal(t, 10*time.Millisecond, cfg.Timeline.MinGap)
	assert.Equal(t, time.Second, cfg.Document.SpacerThreshold)
	assert.Equal(t, "openai", cfg.Transcribe.Provider)
	assert.Equal(t, 4, cfg.Transcribe.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.Transcribe.ChunkDuration)
	assert.Equal(t, "anthropic", cfg.Translate.Provider)
	assert.Equal(t, 50, cfg.Translate.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Engine.ShutdownGrace)
	assert.Equal(t, 8000, cfg.Waveform.SampleRate)
	assert.Equal(t, 50*time.Millisecond, cfg.Waveform.RepaintInterval)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	data := `
document:
  spacer_threshold: 2500ms
transcribe:
  provider: gemini
  concurrency: 2
engine:
  path: /usr/local/bin/recut-engine
  args: ["--quiet"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recut.yaml"), []byte(data), 0o644))

	cfg, err := Load(WithSearchPaths(dir))
	require.NoError(t, err)

	assert.Equal(t, 2500*time.Millisecond, cfg.Document.SpacerThreshold)
	assert.Equal(t, "gemini", cfg.Transcribe.Provider)
	assert.Equal(t, 2, cfg.Transcribe.Concurrency)
	assert.Equal(t, "/usr/local/bin/recut-engine", cfg.Engine.Path)
	assert.Equal(t, []string{"--quiet"}, cfg.Engine.Args)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recut.yaml"), []byte("waveform:\n  width: 80\n"), 0o644))
	t.Setenv("RECUT_WAVEFORM_WIDTH", "200")
	t.Setenv("RECUT_TRANSCRIBE_OPENAI_API_KEY", "sk-test")

	cfg, err := Load(WithSearchPaths(dir))
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Waveform.Width)
	assert.Equal(t, "sk-test", cfg.Transcribe.OpenAIAPIKey)
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	t.Setenv("RECUT_TRANSCRIBE_LANGUAGE", "de")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("language", "l", "", "")
	require.NoError(t, fs.Parse([]string{"-l", "fr"}))

	cfg, err := Load(
		WithSearchPaths(t.TempDir()),
		WithFlag("transcribe.language", fs.Lookup("language")),
	)
	require.NoError(t, err)
	assert.Equal(t, "fr", cfg.Transcribe.Language)
}

func TestLoadUnsetFlagKeepsEnv(t *testing.T) {
	t.Setenv("RECUT_TRANSCRIBE_LANGUAGE", "de")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("language", "l", "", "")
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(
		WithSearchPaths(t.TempDir()),
		WithFlag("transcribe.language", fs.Lookup("language")),
	)
	require.NoError(t, err)
	assert.Equal(t, "de", cfg.Transcribe.Language)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown provider", map[string]string{"RECUT_TRANSCRIBE_PROVIDER": "carrier-pigeon"}},
		{"zero concurrency", map[string]string{"RECUT_TRANSCRIBE_CONCURRENCY": "0"}},
		{"unknown translation provider", map[string]string{"RECUT_TRANSLATE_PROVIDER": "babelfish"}},
		{"zero width", map[string]string{"RECUT_WAVEFORM_WIDTH": "0"}},
		{"negative spacer threshold", map[string]string{"RECUT_DOCUMENT_SPACER_THRESHOLD": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(WithSearchPaths(t.TempDir()))
			assert.Error(t, err)
		})
	}
}
