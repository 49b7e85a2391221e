package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// parsed Dialogue line, one value per Format column
type ASSDialogue struct {
	Fields []string
}

// parsed ASS/SSA subtitle file that keeps styles and every non-dialogue line
type ASSFile struct {
	preEventsLines        []string
	formatLine            string
	formatColumns         []string
	textColumn            int
	startColumn           int
	endColumn             int
	dialogues             []ASSDialogue
	nonDialogueEventLines []string
}

var overrideRegex = regexp.MustCompile(`\{[^}]*\}`)

func parseASSFile(path string) (*ASSFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ASS file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	f := &ASSFile{textColumn: -1, startColumn: -1, endColumn: -1}

	scanner := bufio.NewScanner(file)
	inEvents := false
	lineNum := 0

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section := strings.ToLower(strings.Trim(trimmed, "[]"))
			inEvents = section == "events"
			f.preEventsLines = append(f.preEventsLines, line)
			continue
		}

		if !inEvents {
			f.preEventsLines = append(f.preEventsLines, line)
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "Format:"):
			if err := f.parseFormatLine(line); err != nil {
				return nil, err
			}
		case strings.HasPrefix(trimmed, "Dialogue:"):
			d, err := f.parseDialogueLine(trimmed)
			if err != nil {
				return nil, fmt.Errorf("failed to parse Dialogue at line %d: %w", lineNum, err)
			}
			f.dialogues = append(f.dialogues, d)
		default:
			f.nonDialogueEventLines = append(f.nonDialogueEventLines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASS file: %w", err)
	}
	if f.formatLine == "" {
		return nil, fmt.Errorf("ASS file missing Format line in [Events] section")
	}
	return f, nil
}

func (f *ASSFile) parseFormatLine(line string) error {
	f.formatLine = line
	columns := strings.Split(strings.TrimPrefix(strings.TrimSpace(line), "Format:"), ",")
	for i, col := range columns {
		columns[i] = strings.TrimSpace(col)
		switch strings.ToLower(columns[i]) {
		case "text":
			f.textColumn = i
		case "start":
			f.startColumn = i
		case "end":
			f.endColumn = i
		}
	}
	f.formatColumns = columns
	if f.textColumn == -1 {
		return fmt.Errorf("ASS file missing Text column in Format line")
	}
	return nil
}

func (f *ASSFile) parseDialogueLine(line string) (ASSDialogue, error) {
	if len(f.formatColumns) == 0 {
		return ASSDialogue{}, fmt.Errorf("format columns not parsed yet")
	}
	content := strings.TrimSpace(strings.TrimPrefix(line, "Dialogue:"))

	// the last column is free text and may itself contain commas
	fields := strings.SplitN(content, ",", len(f.formatColumns))
	if len(fields) < len(f.formatColumns) {
		return ASSDialogue{}, fmt.Errorf("expected %d fields, got %d", len(f.formatColumns), len(fields))
	}
	return ASSDialogue{Fields: fields}, nil
}

// dialogue text without override blocks, with ASS line breaks as newlines
func plainASSText(text string) string {
	text = overrideRegex.ReplaceAllString(text, "")
	text = strings.NewReplacer(`\N`, "\n", `\n`, "\n", `\h`, " ").Replace(text)
	return strings.TrimSpace(text)
}

func (f *ASSFile) Format() Format {
	return FormatASS
}

func (f *ASSFile) Subtitle() *Subtitle {
	entries := make([]Entry, len(f.dialogues))
	for i, d := range f.dialogues {
		entries[i] = Entry{
			Index:     i + 1,
			StartTime: f.field(d, f.startColumn),
			EndTime:   f.field(d, f.endColumn),
			Text:      plainASSText(d.Fields[f.textColumn]),
		}
	}
	return &Subtitle{
		Entries: entries,
		Format:  string(FormatASS),
	}
}

func (f *ASSFile) field(d ASSDialogue, column int) time.Duration {
	if column < 0 || column >= len(d.Fields) {
		return 0
	}
	return parseASSTimestamp(d.Fields[column])
}

// Retime rewrites only the Start and End columns; style, layer and override
// tags are left as they were.
func (f *ASSFile) Retime(fn RetimeFunc) int {
	sub := f.Subtitle()
	kept := f.dialogues[:0]
	for i, d := range f.dialogues {
		start, end, ok := fn(sub.Entries[i])
		if !ok || end <= start {
			continue
		}
		if f.startColumn >= 0 {
			d.Fields[f.startColumn] = formatASSTime(start)
		}
		if f.endColumn >= 0 {
			d.Fields[f.endColumn] = formatASSTime(end)
		}
		kept = append(kept, d)
	}
	f.dialogues = kept
	return len(kept)
}

// H:MM:SS.cc
func parseASSTimestamp(ts string) time.Duration {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) != 3 {
		return 0
	}
	secs, centis, ok := strings.Cut(parts[2], ".")
	if !ok {
		return 0
	}

	var values [4]int
	for i, p := range []string{parts[0], parts[1], secs, centis} {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		values[i] = n
	}

	return time.Duration(values[0])*time.Hour +
		time.Duration(values[1])*time.Minute +
		time.Duration(values[2])*time.Second +
		time.Duration(values[3])*10*time.Millisecond
}

func (f *ASSFile) Write(path string) error {
	var sb strings.Builder
	for _, line := range f.preEventsLines {
		sb.WriteString(line + "\n")
	}
	sb.WriteString(f.formatLine + "\n")
	for _, d := range f.dialogues {
		sb.WriteString("Dialogue: " + strings.Join(d.Fields, ",") + "\n")
	}
	for _, line := range f.nonDialogueEventLines {
		sb.WriteString(line + "\n")
	}
	return writeFile(path, sb.String())
}
