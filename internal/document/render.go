package document

import (
	"time"

	"github.com/mgpai22/recut/internal/speaker"
	"github.com/mgpai22/recut/internal/timeline"
	"github.com/mgpai22/recut/internal/timemap"
)

// DefaultSpacerThreshold is the shortest embedded silence shown as a spacer.
const DefaultSpacerThreshold = time.Second

type Options struct {
	// embedded gaps shorter than this produce no visible element
	SpacerThreshold time.Duration
}

func (o Options) withDefaults() Options {
	if o.SpacerThreshold <= 0 {
		o.SpacerThreshold = DefaultSpacerThreshold
	}
	return o
}

type attachment struct {
	leading  []*timeline.Clip
	trailing []*timeline.Clip
}

// Render builds the document for the active clips in order. Speech clips
// become containers; standalone gap clips ride along as spacers at container
// boundaries.
func Render(clips []*timeline.Clip, speakers speaker.Snapshot, opts Options) *Document {
	opts = opts.withDefaults()
	active := timeline.Active(clips)
	m := timemap.New(active)

	var earliest *timeline.Clip
	for _, c := range active {
		if c.IsGap() {
			continue
		}
		if earliest == nil || c.OriginalStart < earliest.OriginalStart {
			earliest = c
		}
	}

	attached := make(map[string]*attachment)
	at := func(id string) *attachment {
		a, ok := attached[id]
		if !ok {
			a = &attachment{}
			attached[id] = a
		}
		return a
	}

	// gaps with no speech clip to attach to
	var standalone []*timeline.Clip

	for i, c := range active {
		if !c.IsGap() {
			continue
		}
		if c.OriginalStart == 0 && earliest != nil {
			at(earliest.ID).leading = append(at(earliest.ID).leading, c)
			continue
		}
		if next := nextSpeech(active, i); next != nil {
			at(next.ID).leading = append(at(next.ID).leading, c)
			continue
		}
		if prev := prevSpeech(active, i); prev != nil {
			at(prev.ID).trailing = append(at(prev.ID).trailing, c)
			continue
		}
		standalone = append(standalone, c)
	}

	doc := &Document{}
	for _, c := range active {
		if c.IsGap() {
			continue
		}
		doc.Content = append(doc.Content, renderClip(c, attached[c.ID], m, speakers, opts))
	}
	for _, g := range standalone {
		doc.Content = append(doc.Content, spacerNode(g, PlacementStandalone, m))
	}
	return doc
}

func nextSpeech(active []*timeline.Clip, i int) *timeline.Clip {
	for j := i + 1; j < len(active); j++ {
		if !active[j].IsGap() {
			return active[j]
		}
	}
	return nil
}

func prevSpeech(active []*timeline.Clip, i int) *timeline.Clip {
	for j := i - 1; j >= 0; j-- {
		if !active[j].IsGap() {
			return active[j]
		}
	}
	return nil
}

func renderClip(
	c *timeline.Clip,
	a *attachment,
	m *timemap.Map,
	speakers speaker.Snapshot,
	opts Options,
) Node {
	span, _ := m.Span(c.ID)
	container := Node{
		Type: NodeClip,
		Attrs: Attrs{
			ClipID:       c.ID,
			Speaker:      c.Speaker,
			SpeakerLabel: speakers.DisplayName(c.Speaker),
			Status:       c.Status,
			Start:        c.OriginalStart,
			End:          c.OriginalEnd,
			EditedStart:  span.EditedStart,
			EditedEnd:    span.EditedEnd,
		},
	}
	if a == nil {
		a = &attachment{}
	}

	for _, g := range a.leading {
		container.Content = append(container.Content, spacerNode(g, PlacementLeading, m))
	}

	inline := false
	for _, tok := range c.Tokens() {
		var n Node
		switch tok.Kind {
		case timeline.TokenWord:
			n = Node{
				Type: NodeWord,
				Text: tok.Word.Text,
				Attrs: Attrs{
					Start:       tok.Word.Start,
					End:         tok.Word.End,
					EditedStart: edited(m, c.ID, tok.Word.Start),
					EditedEnd:   edited(m, c.ID, tok.Word.End),
					Confidence:  tok.Word.Confidence,
				},
			}
		case timeline.TokenSpacer:
			if tok.Spacer.Duration() < opts.SpacerThreshold {
				continue
			}
			n = Node{
				Type: NodeSpacer,
				Attrs: Attrs{
					Start:       tok.Spacer.Start,
					End:         tok.Spacer.End,
					EditedStart: edited(m, c.ID, tok.Spacer.Start),
					EditedEnd:   edited(m, c.ID, tok.Spacer.End),
					Label:       tok.Spacer.Label,
					Placement:   PlacementInline,
				},
			}
		}
		if inline {
			container.Content = append(container.Content, Node{Type: NodeText, Text: " "})
		}
		container.Content = append(container.Content, n)
		inline = true
	}

	for _, g := range a.trailing {
		container.Content = append(container.Content, spacerNode(g, PlacementTrailing, m))
	}
	return container
}

func spacerNode(g *timeline.Clip, placement Placement, m *timemap.Map) Node {
	span, _ := m.Span(g.ID)
	return Node{
		Type: NodeSpacer,
		Attrs: Attrs{
			ClipID:      g.ID,
			Status:      g.Status,
			Start:       g.OriginalStart,
			End:         g.OriginalEnd,
			EditedStart: span.EditedStart,
			EditedEnd:   span.EditedEnd,
			Placement:   placement,
		},
	}
}

func edited(m *timemap.Map, clipID string, original time.Duration) time.Duration {
	t, _ := m.OriginalToEdited(clipID, original)
	return t
}
