package timeline

import (
	"sort"
	"strings"
	"time"
)

// DefaultSpeaker labels segments that carry no speaker.
const DefaultSpeaker = "SPEAKER_00"

// Content is the timing shape of a segment: TimedWords or UntimedText.
type Content interface {
	isContent()
}

// words with their own timing
type TimedWords []Word

// segment text with no word-level timing, treated as one atomic span
type UntimedText string

func (TimedWords) isContent()  {}
func (UntimedText) isContent() {}

// Segment is a raw transcription unit before it is partitioned into clips.
type Segment struct {
	Speaker string
	Start   time.Duration
	End     time.Duration
	Content Content
}

// text of the segment regardless of its timing shape
func (s Segment) Text() string {
	switch c := s.Content.(type) {
	case TimedWords:
		parts := make([]string, 0, len(c))
		for _, w := range c {
			parts = append(parts, strings.TrimSpace(w.Text))
		}
		return strings.Join(parts, " ")
	case UntimedText:
		return strings.TrimSpace(string(c))
	default:
		return ""
	}
}

// options for deriving the initial clip list
type BuildOptions struct {
	// total recording length; a trailing gap clip is added when it exceeds the last segment
	Duration time.Duration
	// silences shorter than this are absorbed instead of becoming gaps
	MinGap time.Duration

	NewID func() string
	Now   func() time.Time
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.MinGap <= 0 {
		o.MinGap = 10 * time.Millisecond
	}
	if o.NewID == nil {
		o.NewID = NewID
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type normalizedSegment struct {
	speaker string
	start   time.Duration
	end     time.Duration
	words   []Word
	untimed bool
}

// Build derives the initial clip list from transcription segments: one speech
// clip per contiguous same-speaker run, gap clips for silence between runs.
func Build(segments []Segment, opts BuildOptions) []*Clip {
	opts = opts.withDefaults()
	segs := normalizeSegments(segments)

	now := opts.Now()
	var clips []*Clip

	newClip := func(typ ClipType, speaker string, start, end time.Duration) *Clip {
		c := &Clip{
			ID:            opts.NewID(),
			Speaker:       speaker,
			Type:          typ,
			Status:        StatusActive,
			OriginalStart: start,
			OriginalEnd:   end,
			Order:         len(clips),
			CreatedAt:     now,
			ModifiedAt:    now,
		}
		clips = append(clips, c)
		return c
	}

	var run *Clip
	var cursor time.Duration

	for _, seg := range segs {
		if run == nil || run.Speaker != seg.speaker {
			silence := seg.start - cursor
			if silence >= opts.MinGap {
				newClip(TypeGap, "", cursor, seg.start)
			} else if silence > 0 {
				// too short for its own clip; the neighbouring run absorbs it
				if run != nil {
					run.OriginalEnd = seg.start
				} else {
					seg.start = cursor
				}
			}
			run = newClip(TypeSpeech, seg.speaker, seg.start, seg.end)
			run.Untimed = seg.untimed
		} else {
			run.Untimed = run.Untimed && seg.untimed
		}
		run.Words = append(run.Words, seg.words...)
		run.OriginalEnd = seg.end
		cursor = seg.end
	}

	if opts.Duration > cursor {
		if run == nil || opts.Duration-cursor >= opts.MinGap {
			newClip(TypeGap, "", cursor, opts.Duration)
		} else {
			run.OriginalEnd = opts.Duration
		}
	}

	for _, c := range clips {
		if c.Type == TypeSpeech {
			c.Gaps = embeddedGaps(c, opts.MinGap)
		}
	}

	return clips
}

// sorts segments, converts them to word lists and clamps overlaps
func normalizeSegments(segments []Segment) []normalizedSegment {
	var out []normalizedSegment
	for _, s := range segments {
		n := normalizedSegment{speaker: strings.TrimSpace(s.Speaker), start: s.Start, end: s.End}
		if n.speaker == "" {
			n.speaker = DefaultSpeaker
		}

		switch c := s.Content.(type) {
		case TimedWords:
			for _, w := range c {
				text := strings.TrimSpace(w.Text)
				if text == "" || w.End <= w.Start {
					continue
				}
				w.Text = text
				n.words = append(n.words, w)
			}
			sort.SliceStable(n.words, func(i, j int) bool {
				return n.words[i].Start < n.words[j].Start
			})
			if len(n.words) > 0 {
				if first := n.words[0].Start; first < n.start || n.end <= n.start {
					n.start = first
				}
				if last := n.words[len(n.words)-1].End; last > n.end {
					n.end = last
				}
			}
		case UntimedText:
			text := strings.TrimSpace(string(c))
			if text != "" && n.end > n.start {
				n.untimed = true
				n.words = []Word{{Text: text, Start: n.start, End: n.end}}
			}
		}

		if len(n.words) == 0 || n.end <= n.start {
			continue
		}
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].start < out[j].start
	})

	clamped := out[:0]
	var prevEnd time.Duration
	for _, n := range out {
		if n.start < prevEnd {
			n.start = prevEnd
			kept := n.words[:0:0]
			for _, w := range n.words {
				if w.Start >= prevEnd {
					kept = append(kept, w)
				}
			}
			n.words = kept
		}
		if len(n.words) == 0 || n.end <= n.start {
			continue
		}
		// words must not overlap each other either
		fixed := make([]Word, 0, len(n.words))
		for _, w := range n.words {
			if len(fixed) > 0 && w.Start < fixed[len(fixed)-1].End {
				continue
			}
			fixed = append(fixed, w)
		}
		n.words = fixed
		clamped = append(clamped, n)
		prevEnd = n.end
	}
	return clamped
}

// silences inside a speech clip, including before its first and after its last word
func embeddedGaps(c *Clip, minGap time.Duration) []Spacer {
	var gaps []Spacer
	cursor := c.OriginalStart
	for _, w := range c.Words {
		if w.Start-cursor >= minGap {
			gaps = append(gaps, Spacer{Start: cursor, End: w.Start})
		}
		cursor = w.End
	}
	if c.OriginalEnd-cursor >= minGap {
		gaps = append(gaps, Spacer{Start: cursor, End: c.OriginalEnd})
	}
	return gaps
}
