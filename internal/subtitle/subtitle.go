// Package subtitle reads and writes SRT, VTT and ASS files and converts the
// edited program into subtitle entries.
package subtitle

import (
	"time"
)

// represents single subtitle entry
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// represents complete subtitle track
type Subtitle struct {
	Entries  []Entry
	Language string
	Format   string
}

// represents supported subtitle formats
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// interface for subtitle generation
type Generator interface {
	Generate(segments []Segment) (*Subtitle, error)
}

// span of speech to be captioned
type Segment struct {
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
	// display name of the speaker, empty when unknown
	Speaker string
	// word timings in the same time base, when known
	Words []Word
}

// single timed word of a segment
type Word struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// interface for writing subtitles to files
type Writer interface {
	Write(subtitle *Subtitle, path string) error
}
