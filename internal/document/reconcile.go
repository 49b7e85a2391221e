package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/speaker"
	"github.com/mgpai22/recut/internal/timeline"
)

type ReconcileOptions struct {
	Logger   *logging.Logger
	Now      func() time.Time
	NewID    func() string
	Speakers speaker.Snapshot
}

// Result is the clip list derived from a document.
type Result struct {
	// every clip, deleted ones included, sorted by order
	Clips      []*timeline.Clip
	HasChanged bool
}

// Reconcile derives the clip list from an edited document. The order clips
// appear in the document becomes their persisted order. Clips whose content
// is unchanged are reused as is; containers missing from the document mark
// their clip deleted.
func Reconcile(doc *Document, previous []*timeline.Clip, opts ReconcileOptions) Result {
	r := &reconciler{
		logger:   logging.OrNop(opts.Logger),
		now:      opts.Now,
		newID:    opts.NewID,
		speakers: opts.Speakers,
		previous: make(map[string]*timeline.Clip, len(previous)),
		seen:     make(map[string]bool),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = timeline.NewID
	}
	r.order = previous
	for _, c := range previous {
		r.previous[c.ID] = c
		if c.Speaker != "" {
			r.knownSpeakers = append(r.knownSpeakers, c.Speaker)
		}
	}

	if doc != nil {
		for i, n := range doc.Content {
			switch n.Type {
			case NodeClip:
				r.container(n)
			case NodeSpacer:
				r.spacer(n, nil)
			case NodeText:
				if strings.TrimSpace(n.Text) != "" {
					r.logger.Warnw("dropping text outside a clip", "index", i, "text", n.Text)
				}
			default:
				r.logger.Warnw("dropping node outside a clip", "index", i, "type", n.Type)
			}
		}
	}

	clips := r.sequence(previous)
	return Result{Clips: clips, HasChanged: r.changed}
}

type reconciler struct {
	logger        *logging.Logger
	now           func() time.Time
	newID         func() string
	speakers      speaker.Snapshot
	knownSpeakers []string

	previous map[string]*timeline.Clip
	order    []*timeline.Clip
	seen     map[string]bool
	walk     []*timeline.Clip
	// clips created during this pass, checked for overlap at the end
	// and counted as changes only if they survive
	created map[*timeline.Clip]bool
	changed bool
}

func (r *reconciler) container(n Node) {
	id := n.Attrs.ClipID
	if id == "" {
		r.logger.Warnw("dropping clip container without id", "words", len(n.Content))
		return
	}
	if r.seen[id] {
		r.logger.Warnw("dropping duplicate clip container", "clip_id", id)
		return
	}
	r.seen[id] = true

	prev := r.previous[id]
	if prev != nil && prev.IsGap() {
		r.logger.Warnw("clip container reuses a gap id, assigning a new one", "clip_id", id)
		prev = nil
		id = r.newID()
	}

	first, last := -1, -1
	for i, child := range n.Content {
		if child.Type == NodeWord {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	var leading, trailing []Node
	var body []Node
	for i, child := range n.Content {
		switch {
		case child.Type == NodeSpacer && (first < 0 || i < first):
			leading = append(leading, child)
		case child.Type == NodeSpacer && i > last:
			trailing = append(trailing, child)
		default:
			body = append(body, child)
		}
	}

	for _, s := range leading {
		r.spacer(s, prev)
	}
	if c := r.speech(id, n.Attrs, body, prev); c != nil {
		r.walk = append(r.walk, c)
	}
	for _, s := range trailing {
		r.spacer(s, prev)
	}
}

// speech rebuilds one speech clip from its container body. It returns nil
// when there is nothing to keep.
func (r *reconciler) speech(id string, attrs Attrs, body []Node, prev *timeline.Clip) *timeline.Clip {
	words := r.words(body, prev)

	sp := r.speakerFor(attrs, prev)

	if prev == nil {
		if len(words) == 0 {
			return nil
		}
		now := r.now()
		c := &timeline.Clip{
			ID:            id,
			Speaker:       sp,
			Type:          timeline.TypeSpeech,
			Status:        timeline.StatusActive,
			OriginalStart: words[0].Start,
			OriginalEnd:   words[len(words)-1].End,
			Words:         words,
			CreatedAt:     now,
			ModifiedAt:    now,
		}
		r.markCreated(c)
		return c
	}

	if len(words) == 0 {
		if prev.IsActive() {
			r.changed = true
			return r.withStatus(prev, timeline.StatusDeleted)
		}
		return prev
	}

	if sameContent(prev, sp, words) {
		if !prev.IsActive() {
			r.changed = true
			return r.withStatus(prev, timeline.StatusActive)
		}
		return prev
	}

	cp := *prev
	cp.Speaker = sp
	cp.Status = timeline.StatusActive
	cp.Words = words
	if len(prev.Words) == 0 || words[0].Start != prev.Words[0].Start {
		cp.OriginalStart = words[0].Start
	}
	if len(prev.Words) == 0 || words[len(words)-1].End != prev.Words[len(prev.Words)-1].End {
		cp.OriginalEnd = words[len(words)-1].End
	}
	cp.Gaps = keepGaps(prev.Gaps, cp.OriginalStart, cp.OriginalEnd, words)
	cp.ModifiedAt = r.now()
	r.changed = true
	return &cp
}

// words collects the word nodes of a container body. Free text and words
// that fall outside the clip's recorded range are folded into the
// preceding word.
func (r *reconciler) words(body []Node, prev *timeline.Clip) []timeline.Word {
	var words []timeline.Word
	var pending []string

	appendText := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if len(words) == 0 {
			pending = append(pending, text)
			return
		}
		words[len(words)-1].Text += " " + text
	}

	for _, n := range body {
		switch n.Type {
		case NodeWord:
			text := strings.TrimSpace(n.Text)
			if text == "" {
				continue
			}
			start, end := n.Attrs.Start, n.Attrs.End
			valid := end > start
			if valid && len(words) > 0 && start < words[len(words)-1].End {
				valid = false
			}
			if valid && prev != nil && (start < prev.OriginalStart || end > prev.OriginalEnd) {
				valid = false
			}
			if !valid {
				r.logger.Debugw("folding untimed word into neighbour", "text", text)
				appendText(text)
				continue
			}
			if len(pending) > 0 {
				text = strings.Join(pending, " ") + " " + text
				pending = nil
			}
			words = append(words, timeline.Word{
				Text:       text,
				Start:      start,
				End:        end,
				Confidence: n.Attrs.Confidence,
			})
		case NodeText:
			appendText(n.Text)
		case NodeSpacer:
			// inline spacers are derived from the clip's embedded gaps
		default:
			r.logger.Warnw("dropping unknown node inside clip", "type", n.Type)
		}
	}
	if len(pending) > 0 {
		r.logger.Warnw("dropping text with no word to attach to", "text", strings.Join(pending, " "))
	}
	return words
}

// spacer handles a spacer at a container boundary or at the top level.
// owner is the clip whose container holds it, if any.
func (r *reconciler) spacer(n Node, owner *timeline.Clip) {
	start, end := n.Attrs.Start, n.Attrs.End
	if end <= start {
		r.logger.Warnw("dropping spacer with empty range", "clip_id", n.Attrs.ClipID)
		return
	}

	id := n.Attrs.ClipID
	if id == "" {
		// an embedded gap at the head or tail of its own clip
		if owner != nil && start >= owner.OriginalStart && end <= owner.OriginalEnd {
			return
		}
		id = r.gapFor(start, end)
	}
	if r.seen[id] {
		r.logger.Warnw("dropping duplicate spacer", "clip_id", id)
		return
	}
	r.seen[id] = true

	prev := r.previous[id]
	if prev != nil && !prev.IsGap() {
		r.logger.Warnw("spacer reuses a speech clip id, assigning a new one", "clip_id", id)
		prev = nil
		id = r.newID()
	}

	if prev != nil && prev.OriginalStart == start && prev.OriginalEnd == end {
		if !prev.IsActive() {
			r.changed = true
			prev = r.withStatus(prev, timeline.StatusActive)
		}
		r.walk = append(r.walk, prev)
		return
	}

	now := r.now()
	c := &timeline.Clip{
		ID:            id,
		Type:          timeline.TypeGap,
		Status:        timeline.StatusActive,
		OriginalStart: start,
		OriginalEnd:   end,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	if prev != nil {
		c.Speaker = prev.Speaker
		c.CreatedAt = prev.CreatedAt
	}
	r.markCreated(c)
	r.walk = append(r.walk, c)
}

// gapFor finds an unclaimed previous gap covering exactly [start, end),
// preferring an active one, and falls back to a deterministic id.
func (r *reconciler) gapFor(start, end time.Duration) string {
	var match *timeline.Clip
	for _, c := range r.order {
		if !c.IsGap() || r.seen[c.ID] || c.OriginalStart != start || c.OriginalEnd != end {
			continue
		}
		if match == nil || (c.IsActive() && !match.IsActive()) {
			match = c
		}
	}
	if match != nil {
		return match.ID
	}
	return gapID(start, end)
}

func (r *reconciler) speakerFor(attrs Attrs, prev *timeline.Clip) string {
	if attrs.Speaker != "" {
		return attrs.Speaker
	}
	if label := strings.TrimSpace(attrs.SpeakerLabel); label != "" {
		for _, id := range r.knownSpeakers {
			if strings.EqualFold(r.speakers.DisplayName(id), label) {
				return id
			}
		}
	}
	if prev != nil {
		return prev.Speaker
	}
	return timeline.DefaultSpeaker
}

func (r *reconciler) withStatus(c *timeline.Clip, status timeline.Status) *timeline.Clip {
	cp := *c
	cp.Status = status
	cp.ModifiedAt = r.now()
	return &cp
}

func (r *reconciler) markCreated(c *timeline.Clip) {
	if r.created == nil {
		r.created = make(map[*timeline.Clip]bool)
	}
	r.created[c] = true
}

// sequence lays out the walked clips followed, in place, by the previous
// clips the document no longer shows, then assigns dense orders.
func (r *reconciler) sequence(previous []*timeline.Clip) []*timeline.Clip {
	walk := r.dropOverlapping(r.walk)

	present := make(map[string]bool, len(walk))
	for _, c := range walk {
		present[c.ID] = true
	}

	prevSeq := append([]*timeline.Clip(nil), previous...)
	timeline.SortByOrder(prevSeq)

	var front []*timeline.Clip
	after := make(map[string][]*timeline.Clip)
	anchor := ""
	for _, c := range prevSeq {
		if present[c.ID] {
			anchor = c.ID
			continue
		}
		if c.IsActive() {
			r.changed = true
			c = r.withStatus(c, timeline.StatusDeleted)
		}
		if anchor == "" {
			front = append(front, c)
		} else {
			after[anchor] = append(after[anchor], c)
		}
	}

	out := make([]*timeline.Clip, 0, len(walk)+len(prevSeq))
	out = append(out, front...)
	for _, c := range walk {
		out = append(out, c)
		out = append(out, after[c.ID]...)
	}
	out = timeline.AnchorRecordingStart(out)

	for i, c := range out {
		moved := c.WithOrder(i)
		if moved != c {
			r.changed = true
		}
		out[i] = moved
	}
	return out
}

// dropOverlapping removes newly created clips that would overlap an active
// clip already on the timeline.
func (r *reconciler) dropOverlapping(walk []*timeline.Clip) []*timeline.Clip {
	if len(r.created) == 0 {
		return walk
	}
	out := make([]*timeline.Clip, 0, len(walk))
	for _, c := range walk {
		if r.created[c] && r.overlapsKept(c, walk) {
			r.logger.Warnw("dropping clip that overlaps existing audio",
				"clip_id", c.ID,
				"start", timeline.Seconds(c.OriginalStart),
				"end", timeline.Seconds(c.OriginalEnd))
			continue
		}
		if r.created[c] {
			r.changed = true
		}
		out = append(out, c)
	}
	return out
}

func (r *reconciler) overlapsKept(c *timeline.Clip, walk []*timeline.Clip) bool {
	for _, o := range walk {
		if o == c || !o.IsActive() {
			continue
		}
		if c.OriginalStart < o.OriginalEnd && o.OriginalStart < c.OriginalEnd {
			return true
		}
	}
	return false
}

func sameContent(prev *timeline.Clip, sp string, words []timeline.Word) bool {
	if prev.Speaker != sp || len(prev.Words) != len(words) {
		return false
	}
	for i := range words {
		if strings.TrimSpace(prev.Words[i].Text) != words[i].Text {
			return false
		}
	}
	return words[0].Start == prev.Words[0].Start &&
		words[len(words)-1].End == prev.Words[len(prev.Words)-1].End
}

// keepGaps returns the embedded gaps still inside [start, end) that do not
// collide with a surviving word.
func keepGaps(gaps []timeline.Spacer, start, end time.Duration, words []timeline.Word) []timeline.Spacer {
	var out []timeline.Spacer
	for _, g := range gaps {
		if g.Start < start || g.End > end {
			continue
		}
		free := true
		for _, w := range words {
			if g.Start < w.End && w.Start < g.End {
				free = false
				break
			}
		}
		if free {
			out = append(out, g)
		}
	}
	return out
}

// deterministic id for a spacer that arrives without one
func gapID(start, end time.Duration) string {
	return fmt.Sprintf("gap-%d-%d", start.Milliseconds(), end.Milliseconds())
}
