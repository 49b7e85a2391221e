package timeline

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// kind of audio a clip covers
type ClipType string

const (
	TypeSpeech ClipType = "speech"
	TypeGap    ClipType = "gap"
)

// soft-delete state of a clip
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Word is the atomic unit of speech. It never spans a clip boundary.
type Word struct {
	Text       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Spacer is a stretch of silence or non-speech, either a standalone gap clip
// or embedded between the words of a speech clip.
type Spacer struct {
	Start time.Duration
	End   time.Duration
	Label string
}

func (s Spacer) Duration() time.Duration {
	return s.End - s.Start
}

// Clip references a contiguous range of the original recording and is the
// unit of reordering and deletion. Clip values are treated as immutable once
// shared; mutations produce copies.
type Clip struct {
	ID      string
	Speaker string
	Type    ClipType
	Status  Status

	// bounds in source-recording time, never changed by reordering
	OriginalStart time.Duration
	OriginalEnd   time.Duration

	// position in the edited sequence, dense over all clips
	Order int

	Words []Word
	Gaps  []Spacer

	// built from segment text without word-level timing
	Untimed bool

	CreatedAt  time.Time
	ModifiedAt time.Time
}

func (c *Clip) Duration() time.Duration {
	return c.OriginalEnd - c.OriginalStart
}

func (c *Clip) IsActive() bool {
	return c.Status == StatusActive
}

func (c *Clip) IsGap() bool {
	return c.Type == TypeGap
}

// word texts joined by single spaces
func (c *Clip) Text() string {
	parts := make([]string, 0, len(c.Words))
	for _, w := range c.Words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// TokenKind tells whether a token is a word or an embedded gap.
type TokenKind string

const (
	TokenWord   TokenKind = "word"
	TokenSpacer TokenKind = "spacer"
)

// Token is one entry of a clip's canonical word/gap ordering.
type Token struct {
	Kind   TokenKind
	Word   Word
	Spacer Spacer
}

func (t Token) Start() time.Duration {
	if t.Kind == TokenSpacer {
		return t.Spacer.Start
	}
	return t.Word.Start
}

// Tokens merges words and embedded gaps into one sequence ordered by start.
// Ties put the gap first.
func (c *Clip) Tokens() []Token {
	tokens := make([]Token, 0, len(c.Words)+len(c.Gaps))
	for _, g := range c.Gaps {
		tokens = append(tokens, Token{Kind: TokenSpacer, Spacer: g})
	}
	for _, w := range c.Words {
		tokens = append(tokens, Token{Kind: TokenWord, Word: w})
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Start() < tokens[j].Start()
	})
	return tokens
}

// shallow copy; word and gap slices are shared and must not be mutated
func (c *Clip) clone() *Clip {
	cp := *c
	return &cp
}

// WithOrder returns c itself when the order already matches, otherwise a
// copy carrying the new order.
func (c *Clip) WithOrder(order int) *Clip {
	if c.Order == order {
		return c
	}
	cp := c.clone()
	cp.Order = order
	return cp
}

// generates a fresh clip id
func NewID() string {
	return uuid.NewString()
}

// float seconds, as used at JSON boundaries
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// converts float seconds to a duration rounded to the microsecond
func FromSeconds(s float64) time.Duration {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return time.Duration(math.Round(s*1e6)) * time.Microsecond
}

// SortByOrder sorts clips in place by their Order field, stable on ties.
func SortByOrder(clips []*Clip) {
	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].Order < clips[j].Order
	})
}

// SortByOriginal sorts clips in place by original start time.
func SortByOriginal(clips []*Clip) {
	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].OriginalStart < clips[j].OriginalStart
	})
}

// Active filters to active clips and returns them sorted by order.
func Active(clips []*Clip) []*Clip {
	out := make([]*Clip, 0, len(clips))
	for _, c := range clips {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	SortByOrder(out)
	return out
}

// AnchorRecordingStart moves active gap clips that begin at the start of the
// recording so they sit directly before the earliest active speech clip by
// original time. seq must be in order; it is returned as is when nothing
// needs to move.
func AnchorRecordingStart(seq []*Clip) []*Clip {
	var earliest *Clip
	for _, c := range seq {
		if c.IsActive() && !c.IsGap() && (earliest == nil || c.OriginalStart < earliest.OriginalStart) {
			earliest = c
		}
	}
	if earliest == nil {
		return seq
	}

	var heads []*Clip
	rest := make([]*Clip, 0, len(seq))
	for _, c := range seq {
		if c.IsActive() && c.IsGap() && c.OriginalStart == 0 {
			heads = append(heads, c)
			continue
		}
		rest = append(rest, c)
	}
	if len(heads) == 0 {
		return seq
	}

	out := make([]*Clip, 0, len(seq))
	for _, c := range rest {
		if c == earliest {
			out = append(out, heads...)
		}
		out = append(out, c)
	}
	return out
}
