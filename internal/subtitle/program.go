package subtitle

import (
	"strings"
	"time"

	"github.com/mgpai22/recut/internal/speaker"
	"github.com/mgpai22/recut/internal/timeline"
	"github.com/mgpai22/recut/internal/timemap"
)

// FromProgram lists the speech of the edited program as segments in edited
// time. A clip is cut into several segments at embedded silences of at least
// breakAt; zero keeps each clip whole.
func FromProgram(m *timemap.Map, speakers speaker.Snapshot, breakAt time.Duration) []Segment {
	var out []Segment
	for _, span := range m.Spans() {
		clip := span.Clip
		if clip.IsGap() || len(clip.Words) == 0 {
			continue
		}
		edited := func(t time.Duration) time.Duration {
			return span.EditedStart + (t - clip.OriginalStart)
		}
		name := speakers.DisplayName(clip.Speaker)

		var words []Word
		flush := func() {
			if len(words) > 0 {
				texts := make([]string, len(words))
				for i, w := range words {
					texts[i] = w.Text
				}
				out = append(out, Segment{
					StartTime: words[0].Start,
					EndTime:   words[len(words)-1].End,
					Text:      strings.Join(texts, " "),
					Speaker:   name,
					Words:     words,
				})
			}
			words = nil
		}

		for _, tok := range clip.Tokens() {
			if tok.Kind == timeline.TokenSpacer {
				if breakAt > 0 && tok.Spacer.Duration() >= breakAt {
					flush()
				}
				continue
			}
			words = append(words, Word{
				Text:  tok.Word.Text,
				Start: edited(tok.Word.Start),
				End:   edited(tok.Word.End),
			})
		}
		flush()
	}
	return out
}

// Retime moves entries timed against the source recording onto the edited
// program. Each entry follows the active clip it overlaps most and is clipped
// to that clip; entries over removed audio are dropped.
func Retime(f File, m *timemap.Map) int {
	spans := m.Spans()
	return f.Retime(func(e Entry) (time.Duration, time.Duration, bool) {
		var best timemap.Span
		var bestOverlap time.Duration
		for _, s := range spans {
			overlap := min(e.EndTime, s.OriginalEnd()) - max(e.StartTime, s.OriginalStart())
			if overlap > bestOverlap {
				best, bestOverlap = s, overlap
			}
		}
		if bestOverlap <= 0 {
			return 0, 0, false
		}
		start := best.EditedStart + max(e.StartTime, best.OriginalStart()) - best.OriginalStart()
		return start, start + bestOverlap, true
	})
}
