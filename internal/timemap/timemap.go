// Package timemap converts between original time (position in the source
// recording) and edited time (position in the reordered program).
//
// A Map is computed from scratch for a given active clip sequence and is
// immutable afterwards, so it can be shared across goroutines.
package timemap

import (
	"sort"
	"time"

	"github.com/mgpai22/recut/internal/timeline"
)

// Span is one active clip placed on the edited timeline.
type Span struct {
	Clip        *timeline.Clip
	EditedStart time.Duration
	EditedEnd   time.Duration
}

func (s Span) ClipID() string {
	return s.Clip.ID
}

func (s Span) OriginalStart() time.Duration {
	return s.Clip.OriginalStart
}

func (s Span) OriginalEnd() time.Duration {
	return s.Clip.OriginalEnd
}

// Map holds the edited-time placement of every active clip.
type Map struct {
	spans      []Span
	byID       map[string]int
	byOriginal []int
	total      time.Duration
}

// New places the active clips, taken in the given sequence, end to end.
// Deleted clips are skipped.
func New(active []*timeline.Clip) *Map {
	m := &Map{byID: make(map[string]int, len(active))}

	var cursor time.Duration
	for _, c := range active {
		if !c.IsActive() {
			continue
		}
		m.byID[c.ID] = len(m.spans)
		m.spans = append(m.spans, Span{
			Clip:        c,
			EditedStart: cursor,
			EditedEnd:   cursor + c.Duration(),
		})
		cursor += c.Duration()
	}
	m.total = cursor

	m.byOriginal = make([]int, len(m.spans))
	for i := range m.byOriginal {
		m.byOriginal[i] = i
	}
	sort.SliceStable(m.byOriginal, func(i, j int) bool {
		return m.spans[m.byOriginal[i]].OriginalStart() < m.spans[m.byOriginal[j]].OriginalStart()
	})

	return m
}

// Empty is a map with no clips.
func Empty() *Map {
	return New(nil)
}

func (m *Map) Spans() []Span {
	return append([]Span(nil), m.spans...)
}

func (m *Map) Len() int {
	return len(m.spans)
}

// total edited duration
func (m *Map) Total() time.Duration {
	return m.total
}

func (m *Map) Span(clipID string) (Span, bool) {
	i, ok := m.byID[clipID]
	if !ok {
		return Span{}, false
	}
	return m.spans[i], true
}

// OriginalToEdited maps a time inside the given clip's original range onto
// the edited timeline.
func (m *Map) OriginalToEdited(clipID string, original time.Duration) (time.Duration, bool) {
	s, ok := m.Span(clipID)
	if !ok {
		return 0, false
	}
	return s.EditedStart + (original - s.OriginalStart()), true
}

// EditedToOriginal maps an edited time back to the source recording. It
// reports false when no active clip covers the time.
func (m *Map) EditedToOriginal(edited time.Duration) (time.Duration, bool) {
	s, ok := m.Locate(edited)
	if !ok {
		return 0, false
	}
	return s.OriginalStart() + (edited - s.EditedStart), true
}

// Locate finds the span whose half-open edited range contains the time. A
// time on a boundary belongs to the following span.
func (m *Map) Locate(edited time.Duration) (Span, bool) {
	i := sort.Search(len(m.spans), func(i int) bool {
		return m.spans[i].EditedEnd > edited
	})
	if i == len(m.spans) || edited < m.spans[i].EditedStart {
		return Span{}, false
	}
	return m.spans[i], true
}

// LocateOriginal finds the active span whose original range contains the time.
func (m *Map) LocateOriginal(original time.Duration) (Span, bool) {
	i := sort.Search(len(m.byOriginal), func(i int) bool {
		return m.spans[m.byOriginal[i]].OriginalEnd() > original
	})
	if i == len(m.byOriginal) {
		return Span{}, false
	}
	s := m.spans[m.byOriginal[i]]
	if original < s.OriginalStart() {
		return Span{}, false
	}
	return s, true
}

// Next returns the first span starting at or after the edited time.
func (m *Map) Next(edited time.Duration) (Span, bool) {
	i := sort.Search(len(m.spans), func(i int) bool {
		return m.spans[i].EditedStart >= edited
	})
	if i == len(m.spans) {
		return Span{}, false
	}
	return m.spans[i], true
}

// After returns the span following the given clip in edited order.
func (m *Map) After(clipID string) (Span, bool) {
	i, ok := m.byID[clipID]
	if !ok || i+1 >= len(m.spans) {
		return Span{}, false
	}
	return m.spans[i+1], true
}

// Entry is one row of an edit decision list.
type Entry struct {
	ClipID        string
	Speaker       string
	Type          timeline.ClipType
	EditedStart   time.Duration
	EditedEnd     time.Duration
	OriginalStart time.Duration
	OriginalEnd   time.Duration
}

// EDL lists the spans in edited order for playback and render consumers.
func (m *Map) EDL() []Entry {
	out := make([]Entry, 0, len(m.spans))
	for _, s := range m.spans {
		out = append(out, Entry{
			ClipID:        s.ClipID(),
			Speaker:       s.Clip.Speaker,
			Type:          s.Clip.Type,
			EditedStart:   s.EditedStart,
			EditedEnd:     s.EditedEnd,
			OriginalStart: s.OriginalStart(),
			OriginalEnd:   s.OriginalEnd(),
		})
	}
	return out
}
