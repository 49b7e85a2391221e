package waveform

import (
	"strings"
	"time"

	"github.com/mgpai22/recut/internal/timemap"
)

// Column is one pixel column of the edited waveform.
type Column struct {
	Edited   time.Duration
	Original time.Duration
	ClipID   string
	Peak     Peak
	// false past the end of the program
	Mapped bool
}

// Render lays the peaks out in edited order across width columns. Each
// column samples the original audio under it, never crossing into a
// neighbouring clip's audio.
func Render(peaks *Peaks, m *timemap.Map, width int) []Column {
	if width <= 0 {
		return nil
	}
	cols := make([]Column, width)
	total := m.Total()
	if total <= 0 {
		return cols
	}
	step := total / time.Duration(width)
	if step <= 0 {
		step = 1
	}

	for x := range cols {
		edited := total * time.Duration(x) / time.Duration(width)
		cols[x].Edited = edited

		span, ok := m.Locate(edited)
		if !ok {
			continue
		}
		original := span.OriginalStart() + (edited - span.EditedStart)
		end := original + step
		if end > span.OriginalEnd() {
			end = span.OriginalEnd()
		}
		cols[x].Original = original
		cols[x].ClipID = span.ClipID()
		cols[x].Mapped = true
		if peaks != nil {
			cols[x].Peak = peaks.Range(original, end)
		}
	}
	return cols
}

var bars = []rune(" ▁▂▃▄▅▆▇█")

// ASCII draws columns as a single line of block characters, scaled to the
// loudest column.
func ASCII(cols []Column) string {
	var loudest int32
	for _, c := range cols {
		if a := amplitude(c.Peak); a > loudest {
			loudest = a
		}
	}

	var b strings.Builder
	for _, c := range cols {
		if !c.Mapped || loudest == 0 {
			b.WriteRune(bars[0])
			continue
		}
		level := int(amplitude(c.Peak) * int32(len(bars)-1) / loudest)
		b.WriteRune(bars[level])
	}
	return b.String()
}

func amplitude(p Peak) int32 {
	lo, hi := -int32(p.Min), int32(p.Max)
	if lo > hi {
		return lo
	}
	return hi
}
