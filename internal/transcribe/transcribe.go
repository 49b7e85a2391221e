// Package transcribe turns recordings, or transcripts produced elsewhere, into
// timeline segments.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/recut/internal/audio"
	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/timeline"
)

var ErrEmptyTranscript = errors.New("transcript has no segments")

// transcription result
type Result struct {
	Segments []timeline.Segment
	Language string
	Duration time.Duration
}

// Source produces segments for a recording.
type Source interface {
	Transcribe(ctx context.Context, path string) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderOpenAI      Provider = "openai"
	ProviderGemini      Provider = "gemini"
	ProviderWhisperJSON Provider = "whisper-json"
	ProviderSubtitle    Provider = "subtitle"
)

// Remote reports whether the provider uploads audio, so the caller should
// compress and chunk it first.
func (p Provider) Remote() bool {
	return p == ProviderOpenAI || p == ProviderGemini
}

// transcription options
type Options struct {
	Language string
	Model    string
	Prompt   string
	APIKey   string
	// transcript file for whisper-json and subtitle providers
	Transcript string
	Logger     *logging.Logger
}

// creates a source based on provider
func Factory(ctx context.Context, provider Provider, opts Options) (Source, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAITranscriber(opts)
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, opts)
	case ProviderWhisperJSON:
		return NewWhisperJSONSource(opts.Transcript), nil
	case ProviderSubtitle:
		return NewSubtitleSource(opts.Transcript), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// TranscribeChunks runs src over each chunk with at most concurrency calls in
// flight, shifts chunk-relative times onto the recording and concatenates the
// segments in chunk order. The first failure cancels the remaining chunks.
func TranscribeChunks(
	ctx context.Context,
	src Source,
	chunks []audio.ChunkInfo,
	concurrency int,
	logger *logging.Logger,
) (*Result, error) {
	logger = logging.OrNop(logger)
	if len(chunks) == 0 {
		return &Result{}, nil
	}
	if concurrency <= 0 {
		concurrency = 3
	}

	results := make([]*Result, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			logger.Debugw("transcribing chunk", "index", chunk.Index, "start", chunk.StartTime)
			res, err := src.Transcribe(gctx, chunk.Path)
			if err != nil {
				return fmt.Errorf("chunk %d failed: %w", chunk.Index, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{Duration: chunks[len(chunks)-1].EndTime}
	for i, res := range results {
		if out.Language == "" {
			out.Language = res.Language
		}
		out.Segments = append(out.Segments, Shift(res.Segments, chunks[i].StartTime)...)
	}
	return out, nil
}

// Shift moves segments and their word timings by offset.
func Shift(segments []timeline.Segment, offset time.Duration) []timeline.Segment {
	out := make([]timeline.Segment, len(segments))
	for i, seg := range segments {
		seg.Start += offset
		seg.End += offset
		if words, ok := seg.Content.(timeline.TimedWords); ok {
			moved := make(timeline.TimedWords, len(words))
			for j, w := range words {
				w.Start += offset
				w.End += offset
				moved[j] = w
			}
			seg.Content = moved
		}
		out[i] = seg
	}
	return out
}
