package timeline

import (
	"encoding/json"
	"fmt"
	"time"
)

type wordJSON struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

type spacerJSON struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Label    string  `json:"label,omitempty"`
}

// persisted clip shape, times in seconds
type clipJSON struct {
	ID            string       `json:"id"`
	Speaker       string       `json:"speaker"`
	Type          ClipType     `json:"type"`
	Status        Status       `json:"status"`
	OriginalStart float64      `json:"originalStart"`
	OriginalEnd   float64      `json:"originalEnd"`
	Duration      float64      `json:"duration"`
	Order         int          `json:"order"`
	Words         []wordJSON   `json:"words"`
	Gaps          []spacerJSON `json:"gaps,omitempty"`
	Untimed       bool         `json:"untimed,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	ModifiedAt    time.Time    `json:"modifiedAt"`
}

func (c *Clip) MarshalJSON() ([]byte, error) {
	out := clipJSON{
		ID:            c.ID,
		Speaker:       c.Speaker,
		Type:          c.Type,
		Status:        c.Status,
		OriginalStart: Seconds(c.OriginalStart),
		OriginalEnd:   Seconds(c.OriginalEnd),
		Duration:      Seconds(c.Duration()),
		Order:         c.Order,
		Words:         make([]wordJSON, 0, len(c.Words)),
		Untimed:       c.Untimed,
		CreatedAt:     c.CreatedAt,
		ModifiedAt:    c.ModifiedAt,
	}
	for _, w := range c.Words {
		out.Words = append(out.Words, wordJSON{
			Text:       w.Text,
			Start:      Seconds(w.Start),
			End:        Seconds(w.End),
			Confidence: w.Confidence,
		})
	}
	for _, g := range c.Gaps {
		out.Gaps = append(out.Gaps, spacerJSON{
			Start:    Seconds(g.Start),
			End:      Seconds(g.End),
			Duration: Seconds(g.Duration()),
			Label:    g.Label,
		})
	}
	return json.Marshal(out)
}

func (c *Clip) UnmarshalJSON(data []byte) error {
	var in clipJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode clip: %w", err)
	}

	*c = Clip{
		ID:            in.ID,
		Speaker:       in.Speaker,
		Type:          in.Type,
		Status:        in.Status,
		OriginalStart: FromSeconds(in.OriginalStart),
		OriginalEnd:   FromSeconds(in.OriginalEnd),
		Order:         in.Order,
		Untimed:       in.Untimed,
		CreatedAt:     in.CreatedAt,
		ModifiedAt:    in.ModifiedAt,
	}
	if c.Type == "" {
		c.Type = TypeSpeech
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	for _, w := range in.Words {
		c.Words = append(c.Words, Word{
			Text:       w.Text,
			Start:      FromSeconds(w.Start),
			End:        FromSeconds(w.End),
			Confidence: w.Confidence,
		})
	}
	for _, g := range in.Gaps {
		c.Gaps = append(c.Gaps, Spacer{
			Start: FromSeconds(g.Start),
			End:   FromSeconds(g.End),
			Label: g.Label,
		})
	}
	return nil
}
