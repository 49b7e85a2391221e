package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mgpai22/recut/internal/subtitle"
	"github.com/mgpai22/recut/internal/timeline"
)

// WhisperJSONSource reads the output of an external whisper service:
// {status, language, segments: [{start, end, text, speaker, words: [{start, end, word, score}]}]}.
// The audio path given to Transcribe is ignored.
type WhisperJSONSource struct {
	path string
}

func NewWhisperJSONSource(path string) *WhisperJSONSource {
	return &WhisperJSONSource{path: path}
}

type whisperFileWord struct {
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Word  string   `json:"word"`
	Score *float64 `json:"score"`
}

type whisperFileSegment struct {
	Start   float64           `json:"start"`
	End     float64           `json:"end"`
	Text    string            `json:"text"`
	Speaker string            `json:"speaker"`
	Words   []whisperFileWord `json:"words"`
}

type whisperFile struct {
	Status   string               `json:"status"`
	Message  string               `json:"message"`
	Language string               `json:"language"`
	Segments []whisperFileSegment `json:"segments"`
}

func (s *WhisperJSONSource) Transcribe(ctx context.Context, _ string) (*Result, error) {
	if s.path == "" {
		return nil, fmt.Errorf("whisper-json provider needs a transcript file")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return parseWhisperFile(data)
}

func parseWhisperFile(data []byte) (*Result, error) {
	var in whisperFile
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse whisper transcript: %w", err)
	}
	if in.Status == "error" {
		return nil, fmt.Errorf("whisper service failed: %s", in.Message)
	}

	result := &Result{Language: in.Language}
	if result.Language == "unknown" {
		result.Language = ""
	}

	for _, seg := range in.Segments {
		start, end := timeline.FromSeconds(seg.Start), timeline.FromSeconds(seg.End)

		var words timeline.TimedWords
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			ws, we := timeline.FromSeconds(w.Start), timeline.FromSeconds(w.End)
			// unaligned words come back with zero timings
			if text == "" || we <= ws {
				continue
			}
			confidence := 0.9
			if w.Score != nil {
				confidence = *w.Score
			}
			words = append(words, timeline.Word{Text: text, Start: ws, End: we, Confidence: confidence})
		}

		out := timeline.Segment{Speaker: seg.Speaker, Start: start, End: end}
		switch {
		case len(words) > 0:
			out.Content = words
		case strings.TrimSpace(seg.Text) != "" && end > start:
			out.Content = timeline.UntimedText(strings.TrimSpace(seg.Text))
		default:
			continue
		}
		result.Segments = append(result.Segments, out)
		if end > result.Duration {
			result.Duration = end
		}
	}

	if len(result.Segments) == 0 {
		return nil, ErrEmptyTranscript
	}
	return result, nil
}

// SubtitleSource imports an SRT, VTT or ASS file as untimed segments. Lines
// starting with "Name:" carry the speaker.
type SubtitleSource struct {
	path string
}

func NewSubtitleSource(path string) *SubtitleSource {
	return &SubtitleSource{path: path}
}

func (s *SubtitleSource) Transcribe(ctx context.Context, _ string) (*Result, error) {
	if s.path == "" {
		return nil, fmt.Errorf("subtitle provider needs a transcript file")
	}
	file, err := subtitle.Open(s.path)
	if err != nil {
		return nil, err
	}
	return fromSubtitle(file.Subtitle())
}

func fromSubtitle(sub *subtitle.Subtitle) (*Result, error) {
	result := &Result{Language: sub.Language}
	for _, e := range sub.Entries {
		text := strings.Join(strings.Fields(e.Text), " ")
		if text == "" || e.EndTime <= e.StartTime {
			continue
		}
		name, rest := splitSpeaker(text)
		result.Segments = append(result.Segments, timeline.Segment{
			Speaker: name,
			Start:   e.StartTime,
			End:     e.EndTime,
			Content: timeline.UntimedText(rest),
		})
		if e.EndTime > result.Duration {
			result.Duration = e.EndTime
		}
	}
	if len(result.Segments) == 0 {
		return nil, ErrEmptyTranscript
	}
	return result, nil
}

// "Alice: hello" names the speaker; a colon later in the line does not
func splitSpeaker(text string) (string, string) {
	name, rest, ok := strings.Cut(text, ": ")
	if !ok || name == "" || len(strings.Fields(name)) > 3 || strings.TrimSpace(rest) == "" {
		return "", text
	}
	return strings.TrimSpace(name), strings.TrimSpace(rest)
}
