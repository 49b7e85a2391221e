package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// hours are optional in VTT; SRT uses a comma before the milliseconds
var cueTimingRegex = regexp.MustCompile(
	`(?:(\d{1,2}):)?(\d{2}):(\d{2})[.,](\d{3})\s*-->\s*(?:(\d{1,2}):)?(\d{2}):(\d{2})[.,](\d{3})`,
)

// cue based formats: SRT and VTT
type cueFile struct {
	format  Format
	entries []Entry
}

type SRTFile struct{ cueFile }

type VTTFile struct{ cueFile }

func parseSRTFile(path string) (*SRTFile, error) {
	entries, err := readCueFile(path, FormatSRT)
	if err != nil {
		return nil, err
	}
	return &SRTFile{cueFile{format: FormatSRT, entries: entries}}, nil
}

func parseVTTFile(path string) (*VTTFile, error) {
	entries, err := readCueFile(path, FormatVTT)
	if err != nil {
		return nil, err
	}
	return &VTTFile{cueFile{format: FormatVTT, entries: entries}}, nil
}

func readCueFile(path string, format Format) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", strings.ToUpper(string(format)), err)
	}
	defer func() {
		_ = file.Close()
	}()
	return parseCues(file, format == FormatVTT)
}

// parseCues reads blocks of an optional identifier, a timing line and text
// lines up to the next blank line. VTT header, NOTE, STYLE and REGION blocks
// are skipped.
func parseCues(r io.Reader, vtt bool) ([]Entry, error) {
	scanner := bufio.NewScanner(r)

	var entries []Entry
	var current *Entry
	var text []string
	skipping := false
	lineNum := 0

	flush := func() {
		if current != nil && len(text) > 0 {
			current.Text = strings.Join(text, "\n")
			current.Index = len(entries) + 1
			entries = append(entries, *current)
		}
		current = nil
		text = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flush()
			skipping = false
			continue
		}
		if skipping {
			continue
		}

		if vtt && current == nil && isVTTBlock(trimmed) {
			skipping = true
			continue
		}

		if m := cueTimingRegex.FindStringSubmatch(line); m != nil && len(text) == 0 {
			start, err := cueTimestamp(m[1:5])
			if err != nil {
				return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
			}
			end, err := cueTimestamp(m[5:9])
			if err != nil {
				return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
			}
			current = &Entry{StartTime: start, EndTime: end}
			continue
		}

		// identifiers before the timing line are not kept
		if current != nil {
			text = append(text, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading subtitle file: %w", err)
	}
	return entries, nil
}

func isVTTBlock(line string) bool {
	for _, prefix := range []string{"WEBVTT", "NOTE", "STYLE", "REGION"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// parts are hours (may be empty), minutes, seconds, milliseconds
func cueTimestamp(parts []string) (time.Duration, error) {
	var total time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second, time.Millisecond}
	for i, p := range parts {
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}

func (f *cueFile) Format() Format {
	return f.format
}

func (f *cueFile) Subtitle() *Subtitle {
	return &Subtitle{
		Entries: f.entries,
		Format:  string(f.format),
	}
}

func (f *cueFile) Retime(fn RetimeFunc) int {
	f.entries = retimeEntries(f.entries, fn)
	return len(f.entries)
}

func (f *cueFile) Write(path string) error {
	writer, err := NewWriter(f.format)
	if err != nil {
		return err
	}
	return writer.Write(f.Subtitle(), path)
}
