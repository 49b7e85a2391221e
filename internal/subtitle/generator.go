package subtitle

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultGenerator implements the Generator interface
type DefaultGenerator struct {
	MaxCharsPerLine int
	MaxLinesPerSub  int
	MinDuration     time.Duration
	MaxDuration     time.Duration
	// prefix an entry with the speaker's name whenever the speaker changes
	SpeakerLabels bool
}

func NewDefaultGenerator() *DefaultGenerator {
	return &DefaultGenerator{
		MaxCharsPerLine: 42,
		MaxLinesPerSub:  2,
		MinDuration:     time.Second,
		MaxDuration:     7 * time.Second,
	}
}

// converts transcription segments to subtitle
func (g *DefaultGenerator) Generate(segments []Segment) (*Subtitle, error) {
	if len(segments) == 0 {
		return &Subtitle{
			Entries: []Entry{},
			Format:  string(FormatSRT),
		}, nil
	}

	var entries []Entry
	index := 1
	lastSpeaker := ""

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if g.SpeakerLabels && seg.Speaker != "" && seg.Speaker != lastSpeaker {
			text = seg.Speaker + ": " + text
			seg.Text = text
			if len(seg.Words) > 0 {
				seg.Words = append([]Word(nil), seg.Words...)
				seg.Words[0].Text = seg.Speaker + ": " + seg.Words[0].Text
			}
		}
		lastSpeaker = seg.Speaker

		if g.needsSplit(text, seg.EndTime-seg.StartTime) {
			splitEntries := g.splitSegment(seg, index)
			entries = append(entries, splitEntries...)
			index += len(splitEntries)
		} else {
			entries = append(entries, Entry{
				Index:     index,
				StartTime: seg.StartTime,
				EndTime:   seg.EndTime,
				Text:      g.formatText(text),
			})
			index++
		}
	}

	g.stretchShort(entries)

	return &Subtitle{
		Entries: entries,
		Format:  string(FormatSRT),
	}, nil
}

// extends entries shorter than MinDuration without running into the next one
func (g *DefaultGenerator) stretchShort(entries []Entry) {
	for i := range entries {
		e := &entries[i]
		if e.EndTime-e.StartTime >= g.MinDuration {
			continue
		}
		end := e.StartTime + g.MinDuration
		if i+1 < len(entries) && entries[i+1].StartTime < end {
			end = entries[i+1].StartTime
		}
		if end > e.EndTime {
			e.EndTime = end
		}
	}
}

func (g *DefaultGenerator) needsSplit(
	text string,
	duration time.Duration,
) bool {
	// if text is too long, split
	if utf8.RuneCountInString(text) > g.MaxCharsPerLine*g.MaxLinesPerSub {
		return true
	}

	// if duration is too long, split
	if duration > g.MaxDuration {
		return true
	}

	return false
}

// splitSegment packs the segment's words into cues that stay within the
// character and duration limits. Cues take their times from the words; a
// segment without word timings spreads its time over the text.
func (g *DefaultGenerator) splitSegment(seg Segment, startIndex int) []Entry {
	words := seg.Words
	if len(words) == 0 {
		words = spreadWords(seg)
	}
	maxChars := g.MaxCharsPerLine * g.MaxLinesPerSub

	var entries []Entry
	var cue []Word
	chars := 0
	flush := func() {
		if len(cue) == 0 {
			return
		}
		texts := make([]string, len(cue))
		for i, w := range cue {
			texts[i] = w.Text
		}
		entries = append(entries, Entry{
			Index:     startIndex + len(entries),
			StartTime: cue[0].Start,
			EndTime:   cue[len(cue)-1].End,
			Text:      g.formatText(strings.Join(texts, " ")),
		})
		cue = nil
		chars = 0
	}

	for _, w := range words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" {
			continue
		}
		n := utf8.RuneCountInString(w.Text)
		if len(cue) > 0 && (chars+1+n > maxChars || w.End-cue[0].Start > g.MaxDuration) {
			flush()
		}
		if len(cue) > 0 {
			chars++
		}
		chars += n
		cue = append(cue, w)
	}
	flush()

	return entries
}

// spreadWords times the words of an untimed segment in proportion to their
// length.
func spreadWords(seg Segment) []Word {
	fields := strings.Fields(seg.Text)
	total := 0
	for _, f := range fields {
		total += utf8.RuneCountInString(f)
	}
	if total == 0 {
		return nil
	}

	span := seg.EndTime - seg.StartTime
	out := make([]Word, len(fields))
	start, seen := seg.StartTime, 0
	for i, f := range fields {
		seen += utf8.RuneCountInString(f)
		end := seg.StartTime + span*time.Duration(seen)/time.Duration(total)
		out[i] = Word{Text: f, Start: start, End: end}
		start = end
	}
	return out
}

// formatText formats text for display with line wrapping
func (g *DefaultGenerator) formatText(text string) string {
	text = strings.TrimSpace(text)
	runeCount := utf8.RuneCountInString(text)

	// if text fits on one line, return as is
	if runeCount <= g.MaxCharsPerLine {
		return text
	}

	// try to split into two lines at a natural break point
	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}

	// find the best split point (closest to middle)
	middle := runeCount / 2
	bestSplit := 0
	bestDiff := runeCount

	currentLen := 0
	for i, word := range words[:len(words)-1] {
		currentLen += utf8.RuneCountInString(word)
		if i > 0 {
			currentLen++ // space
		}

		diff := abs(currentLen - middle)
		if diff < bestDiff {
			bestDiff = diff
			bestSplit = i + 1
		}
	}

	if bestSplit > 0 && bestSplit < len(words) {
		line1 := strings.Join(words[:bestSplit], " ")
		line2 := strings.Join(words[bestSplit:], " ")
		return line1 + "\n" + line2
	}

	return text
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
