package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mgpai22/recut/internal/audio"
	"github.com/mgpai22/recut/internal/timeline"
)

func TestParseWhisperFile(t *testing.T) {
	data := []byte(`{
		"status": "success",
		"language": "en",
		"segments": [
			{"id": 0, "start": 0.0, "end": 2.0, "text": " Hello world", "speaker": "SPEAKER_00",
			 "words": [{"start": 0.1, "end": 0.9, "word": " Hello", "score": 0.75}, {"start": 1.0, "end": 2.0, "word": "world"}]},
			{"id": 1, "start": 2.5, "end": 4.0, "text": "unaligned", "speaker": "SPEAKER_01",
			 "words": [{"start": 0.0, "end": 0.0, "word": "unaligned", "score": 0.9}]},
			{"id": 2, "start": 4.0, "end": 4.0, "text": "", "speaker": "SPEAKER_01", "words": []}
		]
	}`)

	result, err := parseWhisperFile(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	if result.Language != "en" || result.Duration != 4*time.Second {
		t.Errorf("unexpected language %q or duration %v", result.Language, result.Duration)
	}

	words, ok := result.Segments[0].Content.(timeline.TimedWords)
	if !ok || len(words) != 2 {
		t.Fatalf("expected 2 timed words, got %#v", result.Segments[0].Content)
	}
	if words[0].Text != "Hello" || words[0].Confidence != 0.75 {
		t.Errorf("unexpected first word %+v", words[0])
	}
	if words[1].Confidence != 0.9 {
		t.Errorf("missing score should default to 0.9, got %v", words[1].Confidence)
	}

	if text, ok := result.Segments[1].Content.(timeline.UntimedText); !ok || text != "unaligned" {
		t.Errorf("expected untimed fallback, got %#v", result.Segments[1].Content)
	}
	if result.Segments[1].Speaker != "SPEAKER_01" {
		t.Errorf("expected SPEAKER_01, got %s", result.Segments[1].Speaker)
	}
}

func TestParseWhisperFileErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"service error", `{"status": "error", "message": "model missing", "segments": []}`, nil},
		{"no segments", `{"status": "success", "segments": []}`, ErrEmptyTranscript},
		{"invalid json", `{"segments": [`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWhisperFile([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSubtitleSource(t *testing.T) {
	content := `1
00:00:01,000 --> 00:00:03,000
Alice: Hello there,
how are you?

2
00:00:04,000 --> 00:00:05,000
Fine: thanks for asking, really: yes

3
00:00:06,000 --> 00:00:06,000
empty range
`
	path := filepath.Join(t.TempDir(), "talk.srt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	src, err := Factory(context.Background(), ProviderSubtitle, Options{Transcript: path})
	if err != nil {
		t.Fatalf("Factory failed: %v", err)
	}
	result, err := src.Transcribe(context.Background(), "ignored.wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	first := result.Segments[0]
	if first.Speaker != "Alice" || first.Text() != "Hello there, how are you?" {
		t.Errorf("unexpected first segment speaker %q text %q", first.Speaker, first.Text())
	}
	if first.Start != time.Second || first.End != 3*time.Second {
		t.Errorf("unexpected bounds %v-%v", first.Start, first.End)
	}
	if result.Segments[1].Speaker != "Fine" {
		t.Errorf("expected speaker Fine, got %q", result.Segments[1].Speaker)
	}
	if result.Duration != 5*time.Second {
		t.Errorf("expected duration 5s, got %v", result.Duration)
	}
}

func TestSplitSpeaker(t *testing.T) {
	tests := []struct {
		text     string
		wantName string
		wantRest string
	}{
		{"Alice: hi", "Alice", "hi"},
		{"Dr Jane Doe: hi", "Dr Jane Doe", "hi"},
		{"this is a long sentence: with a colon", "", "this is a long sentence: with a colon"},
		{"no colon here", "", "no colon here"},
		{"Alice: ", "", "Alice: "},
		{"time 10:30 is fine", "", "time 10:30 is fine"},
	}

	for _, tt := range tests {
		name, rest := splitSpeaker(tt.text)
		if name != tt.wantName || rest != tt.wantRest {
			t.Errorf("splitSpeaker(%q) = (%q, %q), want (%q, %q)", tt.text, name, rest, tt.wantName, tt.wantRest)
		}
	}
}

func TestShift(t *testing.T) {
	in := []timeline.Segment{
		{Start: 0, End: time.Second, Content: timeline.TimedWords{{Text: "a", Start: 0, End: time.Second}}},
		{Start: time.Second, End: 2 * time.Second, Content: timeline.UntimedText("b")},
	}

	out := Shift(in, 10*time.Second)

	words := out[0].Content.(timeline.TimedWords)
	if out[0].Start != 10*time.Second || words[0].End != 11*time.Second {
		t.Errorf("unexpected shifted segment %+v", out[0])
	}
	if out[1].End != 12*time.Second {
		t.Errorf("unexpected shifted end %v", out[1].End)
	}
	// input is left untouched
	if in[0].Content.(timeline.TimedWords)[0].Start != 0 {
		t.Error("Shift modified its input")
	}
}

// answers every chunk with one word covering its first second
type chunkSource struct {
	calls atomic.Int32
	fail  string
}

func (s *chunkSource) Transcribe(ctx context.Context, path string) (*Result, error) {
	s.calls.Add(1)
	if path == s.fail {
		return nil, errors.New("boom")
	}
	return &Result{
		Language: "en",
		Segments: []timeline.Segment{{
			Start:   0,
			End:     time.Second,
			Content: timeline.TimedWords{{Text: path, Start: 0, End: time.Second}},
		}},
	}, nil
}

func TestTranscribeChunks(t *testing.T) {
	chunks := []audio.ChunkInfo{
		{Path: "c0", Index: 0, StartTime: 0, EndTime: 10 * time.Second},
		{Path: "c1", Index: 1, StartTime: 10 * time.Second, EndTime: 20 * time.Second},
		{Path: "c2", Index: 2, StartTime: 20 * time.Second, EndTime: 25 * time.Second},
	}

	src := &chunkSource{}
	result, err := TranscribeChunks(context.Background(), src, chunks, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(result.Segments))
	}
	for i, seg := range result.Segments {
		if seg.Text() != chunks[i].Path {
			t.Errorf("segment %d out of order: %q", i, seg.Text())
		}
		if seg.Start != chunks[i].StartTime {
			t.Errorf("segment %d not shifted: %v", i, seg.Start)
		}
	}
	if result.Duration != 25*time.Second || result.Language != "en" {
		t.Errorf("unexpected duration %v or language %q", result.Duration, result.Language)
	}
}

func TestTranscribeChunksFailure(t *testing.T) {
	chunks := []audio.ChunkInfo{
		{Path: "c0", Index: 0},
		{Path: "c1", Index: 1},
	}

	_, err := TranscribeChunks(context.Background(), &chunkSource{fail: "c1"}, chunks, 1, nil)
	if err == nil {
		t.Fatal("expected error but got none")
	}
}

func TestFactoryUnsupported(t *testing.T) {
	if _, err := Factory(context.Background(), Provider("carrier-pigeon"), Options{}); err == nil {
		t.Error("expected error for unsupported provider")
	}
	if _, err := Factory(context.Background(), ProviderOpenAI, Options{}); err == nil {
		t.Error("expected error for missing API key")
	}
}
