package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/recut/internal/ffmpeg"
	"github.com/mgpai22/recut/internal/timemap"
)

var ErrEmptyProgram = errors.New("program has no active clips")

type RenderOptions struct {
	// output codec; derived from the output extension when empty
	Format  string
	Bitrate string
}

// renderStream cuts each entry's original range out of the source and joins
// the pieces in edited order. Samples are copied as they are.
func renderStream(input, output string, entries []timemap.Entry, opts RenderOptions) *ffmpeg.Stream {
	src := ffmpeg.Input(input)

	parts := make([]*ffmpeg.Stream, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, src.Audio().
			Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{
				"start": e.OriginalStart.Seconds(),
				"end":   e.OriginalEnd.Seconds(),
			}).
			Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"}))
	}

	format := opts.Format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
	}
	kwargs := codecArgs(format, opts.Bitrate)

	return ffmpeg.Concat(parts, ffmpeg.KwArgs{"v": 0, "a": 1}).
		Output(output, kwargs).
		OverWriteOutput().
		Silent(true)
}

// RenderProgram writes the edited program described by entries to output.
func RenderProgram(ctx context.Context, input, output string, entries []timemap.Entry, opts RenderOptions) error {
	if len(entries) == 0 {
		return ErrEmptyProgram
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input file not found: %s", input)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := ffmpegbin.Run(ctx, renderStream(input, output, entries, opts)); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}
