package timeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrClipNotFound   = errors.New("clip not found")
	ErrNotActive      = errors.New("clip is not active")
	ErrInvalidSplit   = errors.New("split must fall between two words")
	ErrNotAdjacent    = errors.New("clips are not adjacent in original time")
	ErrInvalidReorder = errors.New("reorder must list every active clip exactly once")
	ErrOverlap        = errors.New("clip overlaps an active clip")
)

// Timeline is the ordered clip list. It keeps deleted clips in their slots so
// they remain available for restore. A Timeline is not safe for concurrent use.
type Timeline struct {
	clips    []*Clip
	now      func() time.Time
	newID    func() string
	revision uint64
}

type Option func(*Timeline)

func WithClock(now func() time.Time) Option {
	return func(t *Timeline) { t.now = now }
}

func WithIDFunc(newID func() string) Option {
	return func(t *Timeline) { t.newID = newID }
}

// New wraps clips, sorted by their order field, and re-sequences the order densely.
func New(clips []*Clip, opts ...Option) *Timeline {
	t := &Timeline{now: time.Now, newID: NewID}
	for _, opt := range opts {
		opt(t)
	}
	seq := append([]*Clip(nil), clips...)
	SortByOrder(seq)
	t.setSequence(seq)
	return t
}

// all clips, deleted included, in order
func (t *Timeline) Clips() []*Clip {
	return append([]*Clip(nil), t.clips...)
}

// active clips in order
func (t *Timeline) ActiveClips() []*Clip {
	out := make([]*Clip, 0, len(t.clips))
	for _, c := range t.clips {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	return out
}

func (t *Timeline) Clip(id string) (*Clip, bool) {
	i := t.index(id)
	if i < 0 {
		return nil, false
	}
	return t.clips[i], true
}

// Revision increases on every mutation.
func (t *Timeline) Revision() uint64 {
	return t.revision
}

// Replace swaps in a reconciled clip list.
func (t *Timeline) Replace(clips []*Clip) {
	seq := append([]*Clip(nil), clips...)
	SortByOrder(seq)
	t.setSequence(seq)
}

// Reorder puts the active clips into the given sequence. Deleted clips travel
// with the active clip they followed, and a gap at the start of the recording
// stays in front of the earliest speech clip wherever ids places it.
func (t *Timeline) Reorder(ids []string) error {
	active := t.ActiveClips()
	if len(ids) != len(active) {
		return fmt.Errorf("%w: got %d ids for %d active clips", ErrInvalidReorder, len(ids), len(active))
	}

	var leading []*Clip
	trailing := make(map[string][]*Clip)
	var last string
	for _, c := range t.clips {
		if c.IsActive() {
			last = c.ID
			continue
		}
		if last == "" {
			leading = append(leading, c)
		} else {
			trailing[last] = append(trailing[last], c)
		}
	}

	byID := make(map[string]*Clip, len(active))
	for _, c := range active {
		byID[c.ID] = c
	}

	seq := append([]*Clip(nil), leading...)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok || seen[id] {
			return fmt.Errorf("%w: %q", ErrInvalidReorder, id)
		}
		seen[id] = true
		seq = append(seq, c)
		seq = append(seq, trailing[id]...)
	}

	t.setSequence(seq)
	return nil
}

// Delete soft-deletes a clip. The other clips keep their order, apart from a
// recording-start gap following the earliest remaining speech clip.
func (t *Timeline) Delete(id string) error {
	i := t.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrClipNotFound, id)
	}
	c := t.clips[i]
	if !c.IsActive() {
		return fmt.Errorf("%w: %q", ErrNotActive, id)
	}

	seq := append([]*Clip(nil), t.clips...)
	seq[i] = t.withStatus(c, StatusDeleted)
	t.setSequence(seq)
	return nil
}

// Restore re-activates a deleted clip unless that would overlap an active clip.
func (t *Timeline) Restore(id string) error {
	i := t.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrClipNotFound, id)
	}
	c := t.clips[i]
	if c.IsActive() {
		return nil
	}

	for _, other := range t.clips {
		if other.IsActive() && overlaps(c, other) {
			return fmt.Errorf("%w: %q overlaps %q", ErrOverlap, id, other.ID)
		}
	}

	seq := append([]*Clip(nil), t.clips...)
	seq[i] = t.withStatus(c, StatusActive)
	t.setSequence(seq)
	return nil
}

// Split cuts a speech clip before word k. Both halves get new ids and take the
// parent's place in the sequence; the parent is soft-deleted.
func (t *Timeline) Split(id string, k int) (*Clip, *Clip, error) {
	i := t.index(id)
	if i < 0 {
		return nil, nil, fmt.Errorf("%w: %q", ErrClipNotFound, id)
	}
	parent := t.clips[i]
	if !parent.IsActive() {
		return nil, nil, fmt.Errorf("%w: %q", ErrNotActive, id)
	}
	if parent.IsGap() || k < 1 || k >= len(parent.Words) {
		return nil, nil, fmt.Errorf("%w: index %d of %d words", ErrInvalidSplit, k, len(parent.Words))
	}

	boundary := parent.Words[k].Start
	now := t.now()

	first := &Clip{
		ID:            t.newID(),
		Speaker:       parent.Speaker,
		Type:          TypeSpeech,
		Status:        StatusActive,
		OriginalStart: parent.OriginalStart,
		OriginalEnd:   boundary,
		Words:         append([]Word(nil), parent.Words[:k]...),
		Untimed:       parent.Untimed,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	second := &Clip{
		ID:            t.newID(),
		Speaker:       parent.Speaker,
		Type:          TypeSpeech,
		Status:        StatusActive,
		OriginalStart: boundary,
		OriginalEnd:   parent.OriginalEnd,
		Words:         append([]Word(nil), parent.Words[k:]...),
		Untimed:       parent.Untimed,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	for _, g := range parent.Gaps {
		switch {
		case g.End <= boundary:
			first.Gaps = append(first.Gaps, g)
		case g.Start >= boundary:
			second.Gaps = append(second.Gaps, g)
		default:
			first.Gaps = append(first.Gaps, Spacer{Start: g.Start, End: boundary, Label: g.Label})
			second.Gaps = append(second.Gaps, Spacer{Start: boundary, End: g.End, Label: g.Label})
		}
	}

	seq := make([]*Clip, 0, len(t.clips)+2)
	seq = append(seq, t.clips[:i]...)
	seq = append(seq, t.withStatus(parent, StatusDeleted), first, second)
	seq = append(seq, t.clips[i+1:]...)
	t.setSequence(seq)

	a, _ := t.Clip(first.ID)
	b, _ := t.Clip(second.ID)
	return a, b, nil
}

// Merge joins two active speech clips that touch in original time. The result
// keeps the id and slot of whichever clip comes first in the sequence and the
// speaker of the primary; the other clip is soft-deleted.
func (t *Timeline) Merge(primaryID, secondaryID string) (*Clip, error) {
	pi, si := t.index(primaryID), t.index(secondaryID)
	if pi < 0 {
		return nil, fmt.Errorf("%w: %q", ErrClipNotFound, primaryID)
	}
	if si < 0 {
		return nil, fmt.Errorf("%w: %q", ErrClipNotFound, secondaryID)
	}
	if pi == si {
		return nil, fmt.Errorf("%w: cannot merge %q with itself", ErrNotAdjacent, primaryID)
	}
	primary, secondary := t.clips[pi], t.clips[si]
	for _, c := range []*Clip{primary, secondary} {
		if !c.IsActive() {
			return nil, fmt.Errorf("%w: %q", ErrNotActive, c.ID)
		}
		if c.IsGap() {
			return nil, fmt.Errorf("%w: %q is a gap clip", ErrNotAdjacent, c.ID)
		}
	}

	lo, hi := primary, secondary
	if hi.OriginalStart < lo.OriginalStart {
		lo, hi = hi, lo
	}
	if lo.OriginalEnd != hi.OriginalStart {
		return nil, fmt.Errorf("%w: %q ends at %v, %q starts at %v",
			ErrNotAdjacent, lo.ID, lo.OriginalEnd, hi.ID, hi.OriginalStart)
	}

	keep, drop := pi, si
	if si < pi {
		keep, drop = si, pi
	}

	merged := &Clip{
		ID:            t.clips[keep].ID,
		Speaker:       primary.Speaker,
		Type:          TypeSpeech,
		Status:        StatusActive,
		OriginalStart: lo.OriginalStart,
		OriginalEnd:   hi.OriginalEnd,
		Words:         append(append([]Word(nil), lo.Words...), hi.Words...),
		Gaps:          append(append([]Spacer(nil), lo.Gaps...), hi.Gaps...),
		Untimed:       lo.Untimed && hi.Untimed,
		CreatedAt:     t.clips[keep].CreatedAt,
		ModifiedAt:    t.now(),
	}
	if len(merged.Gaps) == 0 {
		merged.Gaps = nil
	}

	seq := append([]*Clip(nil), t.clips...)
	seq[keep] = merged
	seq[drop] = t.withStatus(t.clips[drop], StatusDeleted)
	t.setSequence(seq)

	c, _ := t.Clip(merged.ID)
	return c, nil
}

func (t *Timeline) index(id string) int {
	for i, c := range t.clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (t *Timeline) withStatus(c *Clip, status Status) *Clip {
	cp := c.clone()
	cp.Status = status
	cp.ModifiedAt = t.now()
	return cp
}

// installs seq and rewrites order as 0..n-1
func (t *Timeline) setSequence(seq []*Clip) {
	seq = AnchorRecordingStart(seq)
	for i, c := range seq {
		seq[i] = c.WithOrder(i)
	}
	t.clips = seq
	t.revision++
}

func overlaps(a, b *Clip) bool {
	return a.OriginalStart < b.OriginalEnd && b.OriginalStart < a.OriginalEnd
}
