package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/timeline"
)

// transcribes with the OpenAI Audio API, requesting word timestamps
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	options Options
	logger  *logging.Logger
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// segment from OpenAI Whisper verbose_json response
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	// average log probability of the segment's tokens
	AvgLogprob float64 `json:"avg_logprob"`
}

// verbose_json response structure from Whisper
type whisperVerboseResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Words    []whisperWord    `json:"words"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

func NewOpenAITranscriber(opts Options) (*OpenAITranscriber, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}

	return &OpenAITranscriber{
		client:  openai.NewClient(option.WithAPIKey(opts.APIKey)),
		model:   model,
		options: opts,
		logger:  logging.OrNop(opts.Logger).Named("openai"),
	}, nil
}

// transcribes single audio file
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(t.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word", "segment"},
	}
	if t.options.Language != "" {
		params.Language = openai.String(t.options.Language)
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	result, err := parseVerboseJSONResponse(resp.RawJSON())
	if err != nil {
		return nil, err
	}
	if result.Language == "" {
		result.Language = t.options.Language
	}
	t.logger.Debugw("chunk transcribed", "path", audioPath, "segments", len(result.Segments))
	return result, nil
}

// parseVerboseJSONResponse distributes the response's word list over its
// segments. A segment that receives no words keeps its text untimed.
func parseVerboseJSONResponse(rawJSON string) (*Result, error) {
	if rawJSON == "" {
		return nil, fmt.Errorf("empty response")
	}

	var resp whisperVerboseResponse
	if err := json.Unmarshal([]byte(rawJSON), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	result := &Result{
		Language: resp.Language,
		Duration: timeline.FromSeconds(resp.Duration),
	}

	if len(resp.Segments) == 0 {
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return nil, ErrEmptyTranscript
		}
		seg := timeline.Segment{
			Start:   0,
			End:     result.Duration,
			Content: timeline.UntimedText(text),
		}
		if words := timedWords(resp.Words, 1); len(words) > 0 {
			seg.Start = words[0].Start
			seg.End = words[len(words)-1].End
			seg.Content = words
		}
		result.Segments = []timeline.Segment{seg}
		return result, nil
	}

	next := 0
	for _, s := range resp.Segments {
		start, end := timeline.FromSeconds(s.Start), timeline.FromSeconds(s.End)

		// words are assigned by midpoint so boundary words land in one segment only
		var own []whisperWord
		for next < len(resp.Words) {
			w := resp.Words[next]
			if timeline.FromSeconds((w.Start+w.End)/2) >= end {
				break
			}
			own = append(own, w)
			next++
		}

		text := strings.TrimSpace(s.Text)
		if text == "" && len(own) == 0 {
			continue
		}

		seg := timeline.Segment{Start: start, End: end}
		if words := timedWords(own, math.Exp(s.AvgLogprob)); len(words) > 0 {
			seg.Content = words
		} else {
			seg.Content = timeline.UntimedText(text)
		}
		result.Segments = append(result.Segments, seg)
	}

	if len(result.Segments) == 0 {
		return nil, ErrEmptyTranscript
	}
	return result, nil
}

// whisper reports no per-word score, so words carry their segment's mean token probability
func timedWords(in []whisperWord, confidence float64) timeline.TimedWords {
	var out timeline.TimedWords
	for _, w := range in {
		text := strings.TrimSpace(w.Word)
		start, end := timeline.FromSeconds(w.Start), timeline.FromSeconds(w.End)
		if text == "" || end <= start {
			continue
		}
		out = append(out, timeline.Word{Text: text, Start: start, End: end, Confidence: confidence})
	}
	return out
}
