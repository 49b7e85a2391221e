package speaker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"SPEAKER_00", "Speaker 1"},
		{"SPEAKER_09", "Speaker 10"},
		{"host", "host"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoName(tt.id))
		})
	}
}

func TestSetNameValidation(t *testing.T) {
	r := NewRegistry()
	r.Register("SPEAKER_00", "SPEAKER_01")

	require.NoError(t, r.SetName("SPEAKER_00", "  Alice  "))
	assert.Equal(t, "Alice", r.DisplayName("SPEAKER_00"))

	err := r.SetName("SPEAKER_01", "alice")
	assert.ErrorIs(t, err, ErrDuplicateName)

	err = r.SetName("SPEAKER_01", strings.Repeat("x", MaxNameLength+1))
	assert.ErrorIs(t, err, ErrInvalidName)

	require.NoError(t, r.SetName("SPEAKER_01", strings.Repeat("é", MaxNameLength)))

	require.NoError(t, r.SetName("SPEAKER_00", "   "))
	assert.Equal(t, "Speaker 1", r.DisplayName("SPEAKER_00"))

	assert.ErrorIs(t, r.SetName("SPEAKER_07", "Bob"), ErrUnknownSpeaker)
}

func TestMergeResolvesChains(t *testing.T) {
	r := NewRegistry()
	r.Register("A", "B", "C")
	require.NoError(t, r.SetName("C", "Carol"))

	require.NoError(t, r.Merge("A", "B"))
	require.NoError(t, r.Merge("B", "C"))

	assert.Equal(t, "C", r.Resolve("A"))
	assert.Equal(t, "Carol", r.DisplayName("A"))
	assert.Equal(t, []string{"C"}, r.Active())

	assert.ErrorIs(t, r.Merge("C", "A"), ErrMergeCycle)
}

func TestDuplicateCheckIgnoresMergedSpeakers(t *testing.T) {
	r := NewRegistry()
	r.Register("A", "B")
	require.NoError(t, r.SetName("A", "Host"))
	require.NoError(t, r.Merge("A", "B"))

	require.NoError(t, r.SetName("B", "host"))
	assert.Equal(t, "host", r.DisplayName("A"))
}

func TestSnapshotIsIsolated(t *testing.T) {
	r := NewRegistry()
	r.Register("SPEAKER_00")
	require.NoError(t, r.SetName("SPEAKER_00", "Alice"))

	snap := r.Snapshot()
	require.NoError(t, r.SetName("SPEAKER_00", "Alicia"))

	assert.Equal(t, "Alice", snap.DisplayName("SPEAKER_00"))
	assert.Equal(t, "Alicia", r.DisplayName("SPEAKER_00"))
	assert.Less(t, snap.Version(), r.Version())
}

func TestRestore(t *testing.T) {
	r := Restore(map[string]string{"B": "Bea"}, map[string]string{"A": "B"})

	assert.Equal(t, "Bea", r.DisplayName("A"))
	assert.Equal(t, []string{"B"}, r.Active())
}
