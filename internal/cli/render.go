package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mgpai22/recut/internal/audio"
)

var renderCmd = &cobra.Command{
	Use:   "render [output_file]",
	Short: "Write the edited program as a new audio file",
	Long: `Cut the active clips out of the source recording and join them in edited
order. The codec follows the output extension unless --format is given.

Examples:
  recut render edited.wav
  recut render edited.mp3 --bitrate 192k`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("format", "f", "", "Output audio format (wav, mp3, aac, flac)")
	renderCmd.Flags().StringP("bitrate", "b", "", "Bitrate for lossy formats (e.g., 128k, 320k)")
}

func runRender(cmd *cobra.Command, args []string) error {
	outputPath := args[0]
	f, sess, err := openSession(projectPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format, _ := cmd.Flags().GetString("format")
	bitrate, _ := cmd.Flags().GetString("bitrate")

	m := sess.Map()
	logger.Infow("Rendering program",
		"source", f.AudioPath,
		"output", outputPath,
		"clips", m.Len(),
		"duration", m.Total(),
	)
	if err := audio.RenderProgram(ctx, f.AudioPath, outputPath, m.EDL(), audio.RenderOptions{
		Format:  format,
		Bitrate: bitrate,
	}); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Program rendered: %s\n", absOutput)
	return nil
}
