package timeline

import (
	"time"

	"github.com/mgpai22/recut/internal/logging"
)

// Repair fixes invariant violations in persisted clip lists. Active clips are
// walked in original-time order; a clip that overlaps its predecessor is
// trimmed to start where the predecessor ends, dropping the words it loses.
// Clips left empty, clips with an empty range and duplicate ids are
// soft-deleted. Losing data is preferred over refusing to load.
func Repair(clips []*Clip, logger *logging.Logger) []*Clip {
	logger = logging.OrNop(logger)

	seq := append([]*Clip(nil), clips...)
	SortByOrder(seq)

	seen := make(map[string]bool, len(seq))
	out := seq[:0]
	for _, c := range seq {
		if c.ID == "" || seen[c.ID] {
			logger.Warnw("dropping clip with missing or duplicate id", "clip_id", c.ID)
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	seq = out

	index := make(map[*Clip]int, len(seq))
	for i, c := range seq {
		index[c] = i
	}

	var active []*Clip
	for _, c := range seq {
		if c.IsActive() {
			active = append(active, c)
		}
	}
	SortByOriginal(active)

	var prev *Clip
	for _, c := range active {
		fixed := containWords(c, logger)
		if prev != nil && fixed.OriginalStart < prev.OriginalEnd {
			logger.Warnw("clip overlaps previous clip, trimming",
				"clip_id", c.ID,
				"previous_id", prev.ID,
				"overlap", prev.OriginalEnd-fixed.OriginalStart,
			)
			fixed = trimStart(fixed, prev.OriginalEnd)
		}

		if fixed.OriginalEnd <= fixed.OriginalStart || (!fixed.IsGap() && len(fixed.Words) == 0) {
			logger.Warnw("clip has no usable range, marking deleted", "clip_id", c.ID)
			fixed = fixed.clone()
			fixed.Status = StatusDeleted
		} else {
			prev = fixed
		}
		seq[index[c]] = fixed
	}

	seq = AnchorRecordingStart(seq)
	for i, c := range seq {
		seq[i] = c.WithOrder(i)
	}
	return seq
}

// drops words and gaps that fall outside the clip's own range
func containWords(c *Clip, logger *logging.Logger) *Clip {
	var words []Word
	for _, w := range c.Words {
		if w.Start < c.OriginalStart || w.End > c.OriginalEnd || w.End <= w.Start {
			logger.Warnw("word outside clip range, dropping",
				"clip_id", c.ID, "word", w.Text, "start", w.Start, "end", w.End)
			continue
		}
		if len(words) > 0 && w.Start < words[len(words)-1].End {
			logger.Warnw("overlapping word, dropping", "clip_id", c.ID, "word", w.Text)
			continue
		}
		words = append(words, w)
	}
	var gaps []Spacer
	for _, g := range c.Gaps {
		if g.Start < c.OriginalStart || g.End > c.OriginalEnd || g.End <= g.Start {
			continue
		}
		gaps = append(gaps, g)
	}
	if len(words) == len(c.Words) && len(gaps) == len(c.Gaps) {
		return c
	}
	cp := c.clone()
	cp.Words = words
	cp.Gaps = gaps
	return cp
}

func trimStart(c *Clip, start time.Duration) *Clip {
	cp := c.clone()
	cp.OriginalStart = start
	cp.Words = nil
	for _, w := range c.Words {
		if w.Start >= start {
			cp.Words = append(cp.Words, w)
		}
	}
	cp.Gaps = nil
	for _, g := range c.Gaps {
		switch {
		case g.Start >= start:
			cp.Gaps = append(cp.Gaps, g)
		case g.End > start:
			cp.Gaps = append(cp.Gaps, Spacer{Start: start, End: g.End, Label: g.Label})
		}
	}
	return cp
}
