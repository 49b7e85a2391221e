package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/recut/internal/waveform"
)

var waveformCmd = &cobra.Command{
	Use:   "waveform",
	Short: "Draw the edited program's waveform in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runWaveform,
}

func init() {
	rootCmd.AddCommand(waveformCmd)

	waveformCmd.Flags().IntP("width", "w", 0, "Columns to draw (default from config)")
}

func runWaveform(cmd *cobra.Command, args []string) error {
	f, sess, err := openSession(projectPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	width := cfg.Waveform.Width
	if w, _ := cmd.Flags().GetInt("width"); w > 0 {
		width = w
	}

	peaks, err := loadPeaks(ctx, f.AudioPath)
	if err != nil {
		return err
	}

	fmt.Println(waveform.ASCII(waveform.Render(peaks, sess.Map(), width)))
	return nil
}

func loadPeaks(ctx context.Context, path string) (*waveform.Peaks, error) {
	provider := waveform.FFmpegPeaks{SampleRate: cfg.Waveform.SampleRate}
	logger.Debugw("Computing peaks", "source", path, "samples_per_pixel", cfg.Waveform.SamplesPerPixel)
	peaks, err := provider.Peaks(ctx, path, cfg.Waveform.SamplesPerPixel)
	if err != nil {
		return nil, fmt.Errorf("waveform failed: %w", err)
	}
	return peaks, nil
}
