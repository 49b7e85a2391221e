package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseSRTFile(t *testing.T) {
	content := `1
00:00:01,000 --> 00:00:04,000
Hello, world!

2
00:00:05,500 --> 00:00:08,200
This is a test.
With multiple lines.

3
00:00:10,000 --> 00:00:12,500
Final subtitle.
`
	tmpDir := t.TempDir()
	srtPath := filepath.Join(tmpDir, "test.srt")
	if err := os.WriteFile(srtPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	file, err := Open(srtPath)
	if err != nil {
		t.Fatalf("failed to open SRT file: %v", err)
	}

	if file.Format() != FormatSRT {
		t.Errorf("expected format SRT, got %s", file.Format())
	}

	sub := file.Subtitle()
	if len(sub.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(sub.Entries))
	}

	if sub.Entries[0].StartTime != 1*time.Second {
		t.Errorf(
			"entry 0: expected start 1s, got %v",
			sub.Entries[0].StartTime,
		)
	}
	if sub.Entries[0].EndTime != 4*time.Second {
		t.Errorf("entry 0: expected end 4s, got %v", sub.Entries[0].EndTime)
	}
	if sub.Entries[0].Text != "Hello, world!" {
		t.Errorf(
			"entry 0: expected 'Hello, world!', got %q",
			sub.Entries[0].Text,
		)
	}

	expectedText := "This is a test.\nWith multiple lines."
	if sub.Entries[1].Text != expectedText {
		t.Errorf(
			"entry 1: expected %q, got %q",
			expectedText,
			sub.Entries[1].Text,
		)
	}

	kept := file.Retime(func(e Entry) (time.Duration, time.Duration, bool) {
		if e.Index == 2 {
			return 0, 0, false
		}
		return e.StartTime + time.Second, e.EndTime + time.Second, true
	})
	if kept != 2 {
		t.Fatalf("expected 2 entries after retime, got %d", kept)
	}
	retimed := file.Subtitle().Entries
	if retimed[1].Index != 2 || retimed[1].StartTime != 11*time.Second {
		t.Errorf("expected renumbered entry at 11s, got %+v", retimed[1])
	}
}

func TestParseVTTFile(t *testing.T) {
	content := `WEBVTT

1
00:00:01.000 --> 00:00:04.000
Hello, world!

2
00:00:05.500 --> 00:00:08.200
This is a test.
With multiple lines.

00:00:10.000 --> 00:00:12.500
No cue identifier.
`
	tmpDir := t.TempDir()
	vttPath := filepath.Join(tmpDir, "test.vtt")
	if err := os.WriteFile(vttPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	file, err := Open(vttPath)
	if err != nil {
		t.Fatalf("failed to open VTT file: %v", err)
	}

	if file.Format() != FormatVTT {
		t.Errorf("expected format VTT, got %s", file.Format())
	}

	sub := file.Subtitle()
	if len(sub.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(sub.Entries))
	}

	if sub.Entries[0].StartTime != 1*time.Second {
		t.Errorf(
			"entry 0: expected start 1s, got %v",
			sub.Entries[0].StartTime,
		)
	}
	if sub.Entries[0].Text != "Hello, world!" {
		t.Errorf(
			"entry 0: expected 'Hello, world!', got %q",
			sub.Entries[0].Text,
		)
	}

	if sub.Entries[2].Text != "No cue identifier." {
		t.Errorf(
			"entry 2: expected 'No cue identifier.', got %q",
			sub.Entries[2].Text,
		)
	}
}

func TestParseASSFile(t *testing.T) {
	content := `[Script Info]
Title: Test Subtitles
ScriptType: v4.00+

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,20,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:04.00,Default,,0,0,0,,Hello, world!
Dialogue: 0,0:00:05.50,0:00:08.20,Default,,0,0,0,,{\pos(100,200)}This has positioning.
Dialogue: 0,0:00:10.00,0:00:12.50,Default,,0,0,0,,Line with\Nnewline.
`
	tmpDir := t.TempDir()
	assPath := filepath.Join(tmpDir, "test.ass")
	if err := os.WriteFile(assPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	file, err := Open(assPath)
	if err != nil {
		t.Fatalf("failed to open ASS file: %v", err)
	}

	if file.Format() != FormatASS {
		t.Errorf("expected format ASS, got %s", file.Format())
	}

	sub := file.Subtitle()
	if len(sub.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(sub.Entries))
	}

	// Check first entry
	if sub.Entries[0].StartTime != 1*time.Second {
		t.Errorf(
			"entry 0: expected start 1s, got %v",
			sub.Entries[0].StartTime,
		)
	}
	if sub.Entries[0].Text != "Hello, world!" {
		t.Errorf(
			"entry 0: expected 'Hello, world!', got %q",
			sub.Entries[0].Text,
		)
	}

	// override tags are stripped from the plain text
	if sub.Entries[1].Text != "This has positioning." {
		t.Errorf(
			"entry 1: expected 'This has positioning.', got %q",
			sub.Entries[1].Text,
		)
	}

	// check third entry (has \N which should be converted to newline)
	if sub.Entries[2].Text != "Line with\nnewline." {
		t.Errorf(
			"entry 2: expected 'Line with\\nnewline.', got %q",
			sub.Entries[2].Text,
		)
	}
}

func TestASSFilePreservesStyles(t *testing.T) {
	content := `[Script Info]
Title: Test Subtitles
ScriptType: v4.00+
PlayDepth: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,20,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1
Style: Italic,Arial,20,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,1,0,0,100,100,0,0,1,2,2,2,10,10,10,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: 0,0:00:01.00,0:00:04.00,Default,,0,0,0,,Original text
Dialogue: 0,0:00:05.00,0:00:08.00,Italic,,0,0,0,,{\pos(100,200)}Tagged text
`
	tmpDir := t.TempDir()
	assPath := filepath.Join(tmpDir, "test.ass")
	if err := os.WriteFile(assPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	file, err := Open(assPath)
	if err != nil {
		t.Fatalf("failed to open ASS file: %v", err)
	}

	kept := file.Retime(func(e Entry) (time.Duration, time.Duration, bool) {
		if e.StartTime == time.Second {
			return 0, 0, false
		}
		return e.StartTime - 3*time.Second, e.EndTime - 3*time.Second, true
	})
	if kept != 1 {
		t.Fatalf("expected 1 dialogue after retime, got %d", kept)
	}

	outPath := filepath.Join(tmpDir, "output.ass")
	if err := file.Write(outPath); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	outContent, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	outStr := string(outContent)

	// check that styles are preserved
	if !strings.Contains(outStr, "Style: Default,Arial,20") {
		t.Error("Default style not preserved")
	}
	if !strings.Contains(outStr, "Style: Italic,Arial,20") {
		t.Error("Italic style not preserved")
	}

	if strings.Contains(outStr, "Original text") {
		t.Error("dropped dialogue still written")
	}

	// only the times change; style and override tags stay
	if !strings.Contains(outStr, "Dialogue: 0,0:00:02.00,0:00:05.00,Italic,,0,0,0,,{\\pos(100,200)}Tagged text") {
		t.Errorf("retimed dialogue not correct, got: %s", outStr)
	}
}

func TestPlainASSText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello world", "Hello world"},
		{"{\\pos(100,200)}Hello world", "Hello world"},
		{"{\\an8}{\\fs24}Hello\\Nworld", "Hello\nworld"},
		{"Hello {\\i1}world{\\i0}", "Hello world"},
		{"non\\hbreaking", "non breaking"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := plainASSText(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenUnsupportedFormat(t *testing.T) {
	tmpDir := t.TempDir()
	txtPath := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(txtPath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := Open(txtPath)
	if err == nil {
		t.Error("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected 'unsupported' in error, got: %v", err)
	}
}
