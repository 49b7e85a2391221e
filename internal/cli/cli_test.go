package cli

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mgpai22/recut/internal/config"
	"github.com/mgpai22/recut/internal/editor"
	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/project"
	"github.com/mgpai22/recut/internal/subtitle"
	"github.com/mgpai22/recut/internal/timeline"
	"github.com/mgpai22/recut/internal/transcribe"
)

const whisperTranscript = `{
  "status": "success",
  "language": "en",
  "segments": [
    {"start": 0.5, "end": 2.0, "text": "hello there", "speaker": "SPEAKER_00",
     "words": [{"start": 0.5, "end": 1.0, "word": "hello"}, {"start": 1.2, "end": 2.0, "word": "there"}]},
    {"start": 3.0, "end": 4.5, "text": "general kenobi", "speaker": "SPEAKER_01",
     "words": [{"start": 3.0, "end": 3.6, "word": "general"}, {"start": 3.8, "end": 4.5, "word": "kenobi"}]}
  ]
}`

func setupCLI(t *testing.T) string {
	t.Helper()
	loaded, err := config.Load(config.WithSearchPaths(t.TempDir()))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg = loaded
	logger = logging.Nop()

	dir := t.TempDir()
	projectPath = filepath.Join(dir, "talk.json")
	t.Cleanup(func() { projectPath = "recut.json" })
	return dir
}

func importFixture(t *testing.T, dir string) {
	t.Helper()
	transcript := filepath.Join(dir, "talk.whisper.json")
	if err := os.WriteFile(transcript, []byte(whisperTranscript), 0644); err != nil {
		t.Fatal(err)
	}

	// no audio on disk, so the duration comes from the transcript
	f, err := importProject(context.Background(), filepath.Join(dir, "talk.wav"), dir, importOptions{
		Provider:   transcribe.ProviderWhisperJSON,
		Transcript: transcript,
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := project.Save(projectPath, f); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func speechIDs(clips []*timeline.Clip) []string {
	seq := append([]*timeline.Clip(nil), clips...)
	timeline.SortByOrder(seq)
	var ids []string
	for _, c := range seq {
		if !c.IsGap() && c.IsActive() {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func TestImportProject(t *testing.T) {
	dir := setupCLI(t)
	importFixture(t, dir)

	f, err := project.Load(projectPath, logging.Nop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Language != "en" {
		t.Errorf("language = %q, want en", f.Language)
	}
	if f.Duration != 4500*time.Millisecond {
		t.Errorf("duration = %v, want 4.5s", f.Duration)
	}
	if got := len(speechIDs(f.Clips)); got != 2 {
		t.Errorf("got %d speech clips, want 2", got)
	}
}

func TestReorderThenExport(t *testing.T) {
	dir := setupCLI(t)
	importFixture(t, dir)

	f, sess, err := openSession(projectPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ids := speechIDs(sess.Clips())
	order, err := moveClip(activeIDs(sess.Map()), ids[1], 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := sess.Reorder(order); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if err := saveSession(projectPath, f, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	// the new order survives a reload
	_, sess, err = openSession(projectPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	sub, err := programSubtitle(sess, subtitle.NewDefaultGenerator(), 0)
	if err != nil {
		t.Fatalf("subtitle: %v", err)
	}
	if len(sub.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(sub.Entries))
	}
	if sub.Entries[0].Text != "general kenobi" || sub.Entries[1].Text != "hello there" {
		t.Errorf("entries = %q, %q", sub.Entries[0].Text, sub.Entries[1].Text)
	}
	if sub.Entries[0].StartTime != 0 {
		t.Errorf("first cue starts at %v, want 0", sub.Entries[0].StartTime)
	}
}

func TestDeleteDropsFromDocument(t *testing.T) {
	dir := setupCLI(t)
	importFixture(t, dir)

	_, sess, err := openSession(projectPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first := speechIDs(sess.Clips())[0]
	if err := editAndSave(func(s2 *editor.Session) error { return s2.Delete(first) }); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, sess, err = openSession(projectPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	text := sess.Document().PlainText()
	if strings.Contains(text, "hello") || !strings.Contains(text, "general kenobi") {
		t.Errorf("document text = %q", text)
	}
}

func TestSpeakerStats(t *testing.T) {
	dir := setupCLI(t)
	importFixture(t, dir)

	_, sess, err := openSession(projectPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := sess.MergeSpeakers("SPEAKER_01", "SPEAKER_00"); err != nil {
		t.Fatalf("merge: %v", err)
	}
	stats := speakerStats(sess.Clips(), sess.Speakers())
	if len(stats) != 1 {
		t.Fatalf("got %d speakers, want 1", len(stats))
	}
	if stats[0].ID != "SPEAKER_00" || stats[0].Clips != 2 {
		t.Errorf("stats = %+v", stats[0])
	}
}

func TestMoveClip(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	tests := []struct {
		id      string
		to      int
		want    []string
		wantErr bool
	}{
		{"c", 0, []string{"c", "a", "b", "d"}, false},
		{"a", 3, []string{"b", "c", "d", "a"}, false},
		{"b", 1, []string{"a", "b", "c", "d"}, false},
		{"x", 0, nil, true},
		{"a", 4, nil, true},
	}
	for _, tt := range tests {
		got, err := moveClip(ids, tt.id, tt.to)
		if tt.wantErr {
			if err == nil {
				t.Errorf("moveClip(%q, %d): expected error", tt.id, tt.to)
			}
			continue
		}
		if err != nil {
			t.Errorf("moveClip(%q, %d): %v", tt.id, tt.to, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("moveClip(%q, %d) = %v, want %v", tt.id, tt.to, got, tt.want)
		}
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c", "d"}) {
		t.Errorf("input modified: %v", ids)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"  spread   out\ntext ", 20, "spread out text"},
		{"a fairly long line of speech", 10, "a fairl..."},
	}
	for _, tt := range tests {
		if got := preview(tt.in, tt.max); got != tt.want {
			t.Errorf("preview(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00.0"},
		{1500 * time.Millisecond, "00:01.5"},
		{75*time.Second + 240*time.Millisecond, "01:15.2"},
	}
	for _, tt := range tests {
		if got := clock(tt.d); got != tt.want {
			t.Errorf("clock(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTrimExt(t *testing.T) {
	if got := trimExt("dir/talk.final.mp4"); got != "dir/talk.final" {
		t.Errorf("trimExt = %q", got)
	}
}
