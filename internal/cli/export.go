package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/recut/internal/editor"
	"github.com/mgpai22/recut/internal/subtitle"
	"github.com/mgpai22/recut/internal/transcribe"
	"github.com/mgpai22/recut/internal/translate"
)

var exportCmd = &cobra.Command{
	Use:   "export [subtitle_file]",
	Short: "Write subtitles for the edited program",
	Long: `Write subtitles timed against the edited program. The format follows the
output extension (srt, vtt, ass) unless --format is given.

With --retime, an existing subtitle file timed against the source recording is
moved onto the edited program instead: cues over removed audio are dropped and
styling is kept.

Examples:
  recut export edited.srt
  recut export edited.ass --speaker-labels
  recut export edited.srt --retime original.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("format", "f", "", "Output subtitle format (srt, vtt, ass)")
	exportCmd.Flags().String("retime", "", "Existing subtitle file to move onto the edited program")
	exportCmd.Flags().Bool("speaker-labels", false, "Prefix cues with the speaker's name when it changes")
	exportCmd.Flags().Duration("break", 700*time.Millisecond, "Start a new cue at pauses this long (0 keeps clips whole)")
	exportCmd.Flags().Int("max-chars", 42, "Maximum characters per line")
	exportCmd.Flags().String("translate", "", "Translate cues into this language before writing")
	exportCmd.Flags().String("translate-provider", "", "Translation provider (openai, gemini, anthropic; default from config)")
	exportCmd.Flags().Duration("max-duration", 7*time.Second, "Maximum cue duration")
}

func runExport(cmd *cobra.Command, args []string) error {
	outputPath := args[0]
	f, sess, err := openSession(projectPath)
	if err != nil {
		return err
	}

	if source, _ := cmd.Flags().GetString("retime"); source != "" {
		src, err := subtitle.Open(source)
		if err != nil {
			return err
		}
		kept := subtitle.Retime(src, sess.Map())
		if err := src.Write(outputPath); err != nil {
			return err
		}
		logger.Infow("Subtitles retimed",
			"source", source,
			"output", outputPath,
			"kept", kept,
			"total", len(src.Subtitle().Entries),
		)
		fmt.Printf("Subtitles retimed: %s (%d cues kept)\n", outputPath, kept)
		return nil
	}

	formatStr, _ := cmd.Flags().GetString("format")
	format := subtitle.GetFormatFromExtension(outputPath)
	if formatStr != "" {
		switch strings.ToLower(formatStr) {
		case "srt":
			format = subtitle.FormatSRT
		case "vtt":
			format = subtitle.FormatVTT
		case "ass":
			format = subtitle.FormatASS
		default:
			return fmt.Errorf("unsupported format %q: use srt, vtt, or ass", formatStr)
		}
	}

	gen := subtitle.NewDefaultGenerator()
	gen.SpeakerLabels, _ = cmd.Flags().GetBool("speaker-labels")
	gen.MaxCharsPerLine, _ = cmd.Flags().GetInt("max-chars")
	gen.MaxDuration, _ = cmd.Flags().GetDuration("max-duration")
	breakAt, _ := cmd.Flags().GetDuration("break")

	sub, err := programSubtitle(sess, gen, breakAt)
	if err != nil {
		return err
	}
	sub.Format = string(format)

	if target, _ := cmd.Flags().GetString("translate"); target != "" {
		provider, _ := cmd.Flags().GetString("translate-provider")
		if err := translateSubtitle(cmd.Context(), sub, f.Language, target, provider); err != nil {
			return err
		}
	}

	writer, err := subtitle.NewWriter(format)
	if err != nil {
		return err
	}
	if err := writer.Write(sub, outputPath); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}

	logger.Infow("Subtitles exported",
		"output", outputPath,
		"format", format,
		"entries", len(sub.Entries),
	)
	fmt.Printf("Subtitles written: %s (%d cues)\n", outputPath, len(sub.Entries))
	return nil
}

func programSubtitle(sess *editor.Session, gen subtitle.Generator, breakAt time.Duration) (*subtitle.Subtitle, error) {
	segments := subtitle.FromProgram(sess.Map(), sess.Speakers().Snapshot(), breakAt)
	return gen.Generate(segments)
}

func translateSubtitle(ctx context.Context, sub *subtitle.Subtitle, source, target, provider string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if provider == "" {
		provider = cfg.Translate.Provider
	}
	p := translate.Provider(provider)

	var apiKey string
	switch p {
	case translate.ProviderAnthropic:
		apiKey = cfg.Translate.AnthropicAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	default:
		apiKey = providerKey(transcribe.Provider(provider))
	}

	tr, err := translate.New(ctx, p, translate.Options{
		APIKey:         apiKey,
		SourceLanguage: source,
		TargetLanguage: target,
		Model:          cfg.Translate.Model,
		BatchSize:      cfg.Translate.BatchSize,
		Concurrency:    cfg.Translate.Concurrency,
		Logger:         logger.Named("translate"),
	})
	if err != nil {
		return err
	}
	logger.Infow("Translating subtitles", "provider", p, "target", target, "entries", len(sub.Entries))
	if err := tr.Subtitle(ctx, sub); err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	return nil
}
