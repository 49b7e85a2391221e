package document

import (
	"fmt"
	"strings"
)

// PlainText renders a readable transcript, one paragraph per clip prefixed
// with its speaker label. Long pauses inside a clip show as [Ns].
func (d *Document) PlainText() string {
	var b strings.Builder
	for _, n := range d.Content {
		if n.Type != NodeClip {
			continue
		}
		var parts []string
		for _, child := range n.Content {
			switch child.Type {
			case NodeWord:
				if t := strings.TrimSpace(child.Text); t != "" {
					parts = append(parts, t)
				}
			case NodeSpacer:
				if child.Attrs.Placement != PlacementInline {
					continue
				}
				label := child.Attrs.Label
				if label == "" {
					label = fmt.Sprintf("%.1fs", (child.Attrs.End - child.Attrs.Start).Seconds())
				}
				parts = append(parts, "["+label+"]")
			}
		}
		if len(parts) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if label := n.Attrs.SpeakerLabel; label != "" {
			b.WriteString(label)
			b.WriteString(": ")
		}
		b.WriteString(strings.Join(parts, " "))
	}
	return b.String()
}
