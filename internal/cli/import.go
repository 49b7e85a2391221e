package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/recut/internal/audio"
	"github.com/mgpai22/recut/internal/project"
	"github.com/mgpai22/recut/internal/speaker"
	"github.com/mgpai22/recut/internal/timeline"
	"github.com/mgpai22/recut/internal/transcribe"
	"github.com/mgpai22/recut/internal/video"
)

var importCmd = &cobra.Command{
	Use:   "import [media_file]",
	Short: "Transcribe a recording into a new project",
	Long: `Transcribe an audio or video file and write a project holding one clip per
utterance plus the silences between them.

Video files are reduced to their audio track first. The openai and gemini
providers upload compressed chunks in parallel; whisper-json and subtitle read an
existing transcript given with --transcript.

Examples:
  recut import talk.wav
  recut import interview.mp4 --provider gemini -p interview.json
  recut import podcast.mp3 --provider whisper-json --transcript podcast.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("provider", "", "Transcription provider (openai, gemini, whisper-json, subtitle)")
	importCmd.Flags().StringP("api-key", "k", "", "API key for the provider (or set it in config)")
	importCmd.Flags().String("model", "", "Provider model")
	importCmd.Flags().String("prompt", "", "Prompt to guide transcription")
	importCmd.Flags().StringP("transcript", "t", "", "Existing transcript for whisper-json and subtitle providers")
	importCmd.Flags().DurationP("chunk-duration", "d", 0, "Chunk length for remote providers (default from config)")
	importCmd.Flags().Int("concurrency", 0, "Parallel transcription workers (default from config)")
	importCmd.Flags().Bool("force", false, "Overwrite an existing project")
}

func runImport(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", mediaPath)
	}
	if !audio.IsMediaFile(mediaPath) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(projectPath); err == nil && !force {
		return fmt.Errorf("project %s already exists (use --force to replace it)", projectPath)
	}

	opts := importOptions{
		Provider:      transcribe.Provider(cfg.Transcribe.Provider),
		Model:         cfg.Transcribe.Model,
		Language:      cfg.Transcribe.Language,
		ChunkDuration: cfg.Transcribe.ChunkDuration,
		Concurrency:   cfg.Transcribe.Concurrency,
	}
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		opts.Provider = transcribe.Provider(v)
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		opts.Model = v
	}
	if v, _ := cmd.Flags().GetDuration("chunk-duration"); v > 0 {
		opts.ChunkDuration = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		opts.Concurrency = v
	}
	opts.Prompt, _ = cmd.Flags().GetString("prompt")
	opts.Transcript, _ = cmd.Flags().GetString("transcript")
	opts.APIKey, _ = cmd.Flags().GetString("api-key")
	if opts.APIKey == "" {
		opts.APIKey = providerKey(opts.Provider)
	}

	logger.Infow("Starting import",
		"input", mediaPath,
		"project", projectPath,
		"provider", opts.Provider,
	)

	tempDir, err := os.MkdirTemp("", "recut-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	audioPath := mediaPath
	if audio.IsVideoFile(mediaPath) {
		// the project keeps pointing at an extracted wav next to the video
		audioPath = trimExt(mediaPath) + ".wav"
		info, err := video.GetInfo(ctx, mediaPath)
		if err != nil {
			return err
		}
		if !info.HasAudio {
			return fmt.Errorf("%s: %w", mediaPath, video.ErrNoAudio)
		}
		logger.Infow("Extracting audio from video", "output", audioPath)
		if err := video.ExtractAudio(ctx, mediaPath, audioPath, video.DefaultExtractAudioOptions()); err != nil {
			return fmt.Errorf("audio extraction failed: %w", err)
		}
	}

	f, err := importProject(ctx, audioPath, tempDir, opts)
	if err != nil {
		return err
	}
	if err := project.Save(projectPath, f); err != nil {
		return err
	}

	speech := 0
	for _, c := range f.Clips {
		if !c.IsGap() {
			speech++
		}
	}
	logger.Infow("Import finished",
		"project", projectPath,
		"clips", len(f.Clips),
		"speech", speech,
		"duration", f.Duration,
	)
	fmt.Printf("Project written: %s (%d clips)\n", projectPath, len(f.Clips))
	return nil
}

type importOptions struct {
	Provider      transcribe.Provider
	Model         string
	Language      string
	Prompt        string
	APIKey        string
	Transcript    string
	ChunkDuration time.Duration
	Concurrency   int
}

// importProject transcribes audioPath and builds the initial clip list.
func importProject(ctx context.Context, audioPath, tempDir string, opts importOptions) (*project.File, error) {
	src, err := transcribe.Factory(ctx, opts.Provider, transcribe.Options{
		Language:   opts.Language,
		Model:      opts.Model,
		Prompt:     opts.Prompt,
		APIKey:     opts.APIKey,
		Transcript: opts.Transcript,
		Logger:     logger.Named("transcribe"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription source: %w", err)
	}

	var result *transcribe.Result
	if opts.Provider.Remote() {
		result, err = transcribeRemote(ctx, src, audioPath, tempDir, opts)
	} else {
		result, err = src.Transcribe(ctx, audioPath)
	}
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	if len(result.Segments) == 0 {
		return nil, transcribe.ErrEmptyTranscript
	}

	duration, err := audio.GetDuration(audioPath)
	if err != nil {
		if result.Duration <= 0 {
			return nil, fmt.Errorf("failed to get audio duration: %w", err)
		}
		logger.Warnw("Could not probe audio, using transcript duration",
			"error", err,
			"duration", result.Duration,
		)
		duration = result.Duration
	}

	clips := timeline.Build(result.Segments, timeline.BuildOptions{
		Duration: duration,
		MinGap:   cfg.Timeline.MinGap,
	})
	if len(clips) == 0 {
		return nil, errors.New("transcript produced no clips")
	}

	registry := speaker.NewRegistry()
	for _, c := range clips {
		if !c.IsGap() {
			registry.Register(c.Speaker)
		}
	}

	abs, err := filepath.Abs(audioPath)
	if err != nil {
		abs = audioPath
	}
	f := project.New(abs, duration, clips, registry.Snapshot())
	f.Language = result.Language
	if f.Language == "" {
		f.Language = opts.Language
	}
	return f, nil
}

// transcribeRemote compresses the recording and uploads it in chunks.
func transcribeRemote(
	ctx context.Context,
	src transcribe.Source,
	audioPath, tempDir string,
	opts importOptions,
) (*transcribe.Result, error) {
	compressed := filepath.Join(tempDir, "audio.mp3")
	logger.Infow("Compressing audio for upload")
	if err := audio.CompressAudio(ctx, audioPath, compressed, audio.DefaultCompressionOptions()); err != nil {
		return nil, fmt.Errorf("audio compression failed: %w", err)
	}

	if opts.ChunkDuration <= 0 {
		return src.Transcribe(ctx, compressed)
	}

	chunkDir := filepath.Join(tempDir, "chunks")
	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}
	chunks, err := audio.ChunkAudio(ctx, compressed, opts.ChunkDuration, chunkDir, opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("audio chunking failed: %w", err)
	}
	defer audio.CleanupChunks(chunks)

	logger.Infow("Transcribing audio chunks",
		"chunks", len(chunks),
		"concurrency", opts.Concurrency,
	)
	return transcribe.TranscribeChunks(ctx, src, chunks, opts.Concurrency, logger.Named("transcribe"))
}

func providerKey(p transcribe.Provider) string {
	switch p {
	case transcribe.ProviderOpenAI:
		if cfg.Transcribe.OpenAIAPIKey != "" {
			return cfg.Transcribe.OpenAIAPIKey
		}
		return os.Getenv("OPENAI_API_KEY")
	case transcribe.ProviderGemini:
		if cfg.Transcribe.GeminiAPIKey != "" {
			return cfg.Transcribe.GeminiAPIKey
		}
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}
