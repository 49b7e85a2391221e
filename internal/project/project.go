// Package project persists an editing session: the source recording, the clip
// list in sequence order and the speaker registry.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/speaker"
	"github.com/mgpai22/recut/internal/timeline"
)

// Version is the project format written by Save.
const Version = 1

var ErrVersion = errors.New("unsupported project version")

type Speakers struct {
	Names  map[string]string `json:"names"`
	Merges map[string]string `json:"merges"`
}

type File struct {
	Version   int
	AudioPath string
	Language  string
	Duration  time.Duration
	Clips     []*timeline.Clip
	Speakers  Speakers
}

type fileJSON struct {
	Version   int              `json:"version"`
	AudioPath string           `json:"audioPath"`
	Language  string           `json:"language,omitempty"`
	Duration  float64          `json:"duration"`
	Clips     []*timeline.Clip `json:"clips"`
	Speakers  Speakers         `json:"speakers"`
}

// New captures the current state of a session for saving.
func New(audioPath string, duration time.Duration, clips []*timeline.Clip, speakers speaker.Snapshot) *File {
	seq := append([]*timeline.Clip(nil), clips...)
	timeline.SortByOrder(seq)
	return &File{
		Version:   Version,
		AudioPath: audioPath,
		Duration:  duration,
		Clips:     seq,
		Speakers:  Speakers{Names: speakers.Names(), Merges: speakers.Merges()},
	}
}

// Registry rebuilds the speaker registry and registers every clip speaker.
func (f *File) Registry() *speaker.Registry {
	r := speaker.Restore(f.Speakers.Names, f.Speakers.Merges)
	for _, c := range f.Clips {
		if c.Type == timeline.TypeSpeech {
			r.Register(c.Speaker)
		}
	}
	return r
}

func (f *File) MarshalJSON() ([]byte, error) {
	out := fileJSON{
		Version:   f.Version,
		AudioPath: f.AudioPath,
		Language:  f.Language,
		Duration:  timeline.Seconds(f.Duration),
		Clips:     f.Clips,
		Speakers:  f.Speakers,
	}
	if out.Clips == nil {
		out.Clips = []*timeline.Clip{}
	}
	if out.Speakers.Names == nil {
		out.Speakers.Names = map[string]string{}
	}
	if out.Speakers.Merges == nil {
		out.Speakers.Merges = map[string]string{}
	}
	return json.Marshal(out)
}

func (f *File) UnmarshalJSON(data []byte) error {
	var in fileJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*f = File{
		Version:   in.Version,
		AudioPath: in.AudioPath,
		Language:  in.Language,
		Duration:  timeline.FromSeconds(in.Duration),
		Clips:     in.Clips,
		Speakers:  in.Speakers,
	}
	return nil
}

// Load reads a project file and repairs any invariant violations in its clips.
// A relative audio path is resolved against the project file's directory.
func Load(path string, logger *logging.Logger) (*File, error) {
	logger = logging.OrNop(logger)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", path, err)
	}
	if f.Version < 1 || f.Version > Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, f.Version)
	}

	// array position is the sequence; stored order fields are advisory
	kept := make([]*timeline.Clip, 0, len(f.Clips))
	for _, c := range f.Clips {
		if c != nil {
			kept = append(kept, c.WithOrder(len(kept)))
		}
	}
	f.Clips = timeline.Repair(kept, logger)

	if f.AudioPath != "" && !filepath.IsAbs(f.AudioPath) {
		f.AudioPath = filepath.Join(filepath.Dir(path), f.AudioPath)
	}

	logger.Debugw("project loaded", "path", path, "clips", len(f.Clips))
	return &f, nil
}

// Save writes the project atomically by renaming a temporary file into place.
func Save(path string, f *File) error {
	if f.Version == 0 {
		f.Version = Version
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".recut-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}
