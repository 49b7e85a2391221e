package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgpai22/recut/internal/speaker"
	"github.com/mgpai22/recut/internal/timeline"
)

func sec(s float64) time.Duration {
	return timeline.FromSeconds(s)
}

func built(t *testing.T) []*timeline.Clip {
	t.Helper()
	n := 0
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return timeline.Build([]timeline.Segment{
		{Speaker: "SPEAKER_00", Start: sec(0), End: sec(2), Content: timeline.TimedWords{
			{Text: "hello", Start: sec(0), End: sec(1), Confidence: 0.9},
			{Text: "world", Start: sec(1), End: sec(2), Confidence: 0.8},
		}},
		{Speaker: "SPEAKER_01", Start: sec(4), End: sec(6), Content: timeline.UntimedText("second speaker")},
	}, timeline.BuildOptions{
		Duration: sec(8),
		NewID: func() string {
			n++
			return fmt.Sprintf("c%d", n)
		},
		Now: func() time.Time { return created },
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clips := built(t)
	reg := speaker.NewRegistry()
	reg.Register("SPEAKER_00", "SPEAKER_01")
	require.NoError(t, reg.SetName("SPEAKER_00", "Alice"))
	require.NoError(t, reg.Merge("SPEAKER_01", "SPEAKER_00"))

	path := filepath.Join(t.TempDir(), "talk.recut.json")
	f := New("/audio/talk.wav", sec(8), clips, reg.Snapshot())
	f.Language = "en"
	require.NoError(t, Save(path, f))

	got, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, Version, got.Version)
	assert.Equal(t, "/audio/talk.wav", got.AudioPath)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, sec(8), got.Duration)
	require.Len(t, got.Clips, len(clips))
	for i := range clips {
		assert.Equal(t, clips[i].ID, got.Clips[i].ID)
		assert.Equal(t, clips[i].OriginalStart, got.Clips[i].OriginalStart)
		assert.Equal(t, clips[i].OriginalEnd, got.Clips[i].OriginalEnd)
		assert.Equal(t, clips[i].Words, got.Clips[i].Words)
		assert.Equal(t, clips[i].Untimed, got.Clips[i].Untimed)
	}

	r := got.Registry()
	assert.Equal(t, "Alice", r.DisplayName("SPEAKER_01"))
	assert.Equal(t, "SPEAKER_00", r.Resolve("SPEAKER_01"))
}

func TestSaveWritesSequenceOrder(t *testing.T) {
	clips := built(t)
	last := clips[len(clips)-1]
	reordered := []*timeline.Clip{last.WithOrder(0)}
	for i, c := range clips[:len(clips)-1] {
		reordered = append(reordered, c.WithOrder(i+1))
	}
	// passed in reverse to make sure Save sorts by order
	for i, j := 0, len(reordered)-1; i < j; i, j = i+1, j-1 {
		reordered[i], reordered[j] = reordered[j], reordered[i]
	}

	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, Save(path, New("a.wav", sec(8), reordered, speaker.NewRegistry().Snapshot())))

	got, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, last.ID, got.Clips[0].ID)
	for i, c := range got.Clips {
		assert.Equal(t, i, c.Order)
	}
}

func TestLoadArrayPositionWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.json")
	data := `{
  "version": 1,
  "audioPath": "talk.wav",
  "duration": 4,
  "clips": [
    {"id": "b", "speaker": "", "type": "gap", "status": "active", "originalStart": 2, "originalEnd": 4, "order": 0, "words": []},
    {"id": "a", "speaker": "SPEAKER_00", "type": "speech", "status": "active", "originalStart": 0, "originalEnd": 2, "order": 0,
     "words": [{"text": "hi", "start": 0, "end": 2, "confidence": 1}]}
  ],
  "speakers": {"names": {}, "merges": {}}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	got, err := Load(path, nil)
	require.NoError(t, err)
	require.Len(t, got.Clips, 2)
	assert.Equal(t, "b", got.Clips[0].ID)
	assert.Equal(t, 0, got.Clips[0].Order)
	assert.Equal(t, "a", got.Clips[1].ID)
	assert.Equal(t, 1, got.Clips[1].Order)
	assert.Equal(t, filepath.Join(dir, "talk.wav"), got.AudioPath)
}

func TestLoadRepairsOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	data := `{
  "version": 1,
  "audioPath": "/a.wav",
  "duration": 5,
  "clips": [
    {"id": "a", "speaker": "S", "type": "speech", "status": "active", "originalStart": 0, "originalEnd": 3, "order": 0,
     "words": [{"text": "one", "start": 0, "end": 3, "confidence": 1}]},
    {"id": "b", "speaker": "S", "type": "speech", "status": "active", "originalStart": 2, "originalEnd": 5, "order": 1,
     "words": [{"text": "two", "start": 2, "end": 2.5, "confidence": 1}, {"text": "three", "start": 3, "end": 5, "confidence": 1}]}
  ],
  "speakers": {"names": {}, "merges": {}}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	got, err := Load(path, nil)
	require.NoError(t, err)
	require.Len(t, got.Clips, 2)
	assert.Equal(t, sec(3), got.Clips[1].OriginalStart)
	require.Len(t, got.Clips[1].Words, 1)
	assert.Equal(t, "three", got.Clips[1].Words[0].Text)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 9, "clips": []}`), 0o644))

	_, err := Load(path, nil)
	assert.ErrorIs(t, err, ErrVersion)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.json"), nil)
	assert.Error(t, err)
}

func TestMarshalEmptyCollections(t *testing.T) {
	data, err := json.Marshal(&File{Version: Version})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["clips"])
	assert.Equal(t, map[string]any{"names": map[string]any{}, "merges": map[string]any{}}, raw["speakers"])
}
