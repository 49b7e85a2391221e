package subtitle

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetimeFunc maps an entry onto new times, or reports false to drop it.
type RetimeFunc func(e Entry) (start, end time.Duration, ok bool)

// parsed subtitle file that preserves format specific metadata
type File interface {
	Format() Format
	Subtitle() *Subtitle
	// Retime moves every entry through fn and returns how many were kept.
	Retime(fn RetimeFunc) int
	Write(path string) error
}

func Open(path string) (File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".srt":
		return parseSRTFile(path)
	case ".vtt":
		return parseVTTFile(path)
	case ".ass", ".ssa":
		return parseASSFile(path)
	default:
		return nil, fmt.Errorf("unsupported subtitle format: %s", ext)
	}
}

// shared by the formats that keep nothing but the entries; cues come out
// sorted by their new start and renumbered
func retimeEntries(entries []Entry, fn RetimeFunc) []Entry {
	kept := entries[:0]
	for _, e := range entries {
		start, end, ok := fn(e)
		if !ok || end <= start {
			continue
		}
		e.StartTime, e.EndTime = start, end
		kept = append(kept, e)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].StartTime < kept[j].StartTime
	})
	for i := range kept {
		kept[i].Index = i + 1
	}
	return kept
}
