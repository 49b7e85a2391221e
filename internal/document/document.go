// Package document converts between the clip timeline and an editable
// rich-text document, in the node tree shape editor frameworks exchange:
// a doc node holding clip containers, which hold word, spacer and text nodes.
package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mgpai22/recut/internal/timeline"
)

type NodeType string

const (
	NodeDoc    NodeType = "doc"
	NodeClip   NodeType = "clip"
	NodeWord   NodeType = "word"
	NodeSpacer NodeType = "spacer"
	NodeText   NodeType = "text"
)

// where a spacer sits relative to its container's words
type Placement string

const (
	PlacementLeading  Placement = "leading"
	PlacementInline   Placement = "inline"
	PlacementTrailing Placement = "trailing"
	// spacer with no speech clip to attach to
	PlacementStandalone Placement = "standalone"
)

// Attrs carries the node metadata. Times are original-recording times unless
// prefixed with Edited.
type Attrs struct {
	ClipID       string
	Speaker      string
	SpeakerLabel string
	Status       timeline.Status

	Start       time.Duration
	End         time.Duration
	EditedStart time.Duration
	EditedEnd   time.Duration

	Confidence float64
	Label      string
	Placement  Placement
}

// Node is one element of the document tree.
type Node struct {
	Type    NodeType
	Attrs   Attrs
	Text    string
	Content []Node
}

// Document is the root of the tree.
type Document struct {
	Content []Node
}

// containers in document order
func (d *Document) Clips() []Node {
	var out []Node
	for _, n := range d.Content {
		if n.Type == NodeClip {
			out = append(out, n)
		}
	}
	return out
}

type attrsJSON struct {
	ClipID       string          `json:"clipId,omitempty"`
	Speaker      string          `json:"speaker,omitempty"`
	SpeakerLabel string          `json:"speakerLabel,omitempty"`
	Status       timeline.Status `json:"status,omitempty"`
	Start        float64         `json:"start"`
	End          float64         `json:"end"`
	EditedStart  float64         `json:"editedStart"`
	EditedEnd    float64         `json:"editedEnd"`
	Confidence   float64         `json:"confidence,omitempty"`
	Label        string          `json:"label,omitempty"`
	Placement    Placement       `json:"placement,omitempty"`
}

type nodeJSON struct {
	Type    NodeType   `json:"type"`
	Attrs   *attrsJSON `json:"attrs,omitempty"`
	Text    string     `json:"text,omitempty"`
	Content []Node     `json:"content,omitempty"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{Type: n.Type, Text: n.Text, Content: n.Content}
	if n.Type != NodeText {
		out.Attrs = &attrsJSON{
			ClipID:       n.Attrs.ClipID,
			Speaker:      n.Attrs.Speaker,
			SpeakerLabel: n.Attrs.SpeakerLabel,
			Status:       n.Attrs.Status,
			Start:        timeline.Seconds(n.Attrs.Start),
			End:          timeline.Seconds(n.Attrs.End),
			EditedStart:  timeline.Seconds(n.Attrs.EditedStart),
			EditedEnd:    timeline.Seconds(n.Attrs.EditedEnd),
			Confidence:   n.Attrs.Confidence,
			Label:        n.Attrs.Label,
			Placement:    n.Attrs.Placement,
		}
	}
	return json.Marshal(out)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = Node{Type: in.Type, Text: in.Text, Content: in.Content}
	if in.Attrs != nil {
		n.Attrs = Attrs{
			ClipID:       in.Attrs.ClipID,
			Speaker:      in.Attrs.Speaker,
			SpeakerLabel: in.Attrs.SpeakerLabel,
			Status:       in.Attrs.Status,
			Start:        timeline.FromSeconds(in.Attrs.Start),
			End:          timeline.FromSeconds(in.Attrs.End),
			EditedStart:  timeline.FromSeconds(in.Attrs.EditedStart),
			EditedEnd:    timeline.FromSeconds(in.Attrs.EditedEnd),
			Confidence:   in.Attrs.Confidence,
			Label:        in.Attrs.Label,
			Placement:    in.Attrs.Placement,
		}
	}
	return nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	content := d.Content
	if content == nil {
		content = []Node{}
	}
	return json.Marshal(struct {
		Type    NodeType `json:"type"`
		Content []Node   `json:"content"`
	}{Type: NodeDoc, Content: content})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var in struct {
		Type    NodeType `json:"type"`
		Content []Node   `json:"content"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Type != "" && in.Type != NodeDoc {
		return fmt.Errorf("expected root node %q, got %q", NodeDoc, in.Type)
	}
	d.Content = in.Content
	return nil
}

// Decode parses a document from JSON.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}

// Encode writes the document as indented JSON.
func Encode(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
