package editor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgpai22/recut/internal/document"
	"github.com/mgpai22/recut/internal/timeline"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sec(s float64) time.Duration {
	return timeline.FromSeconds(s)
}

func word(text string, start, end float64) timeline.Word {
	return timeline.Word{Text: text, Start: sec(start), End: sec(end)}
}

func clips() []*timeline.Clip {
	return []*timeline.Clip{
		{ID: "A", Speaker: "SPEAKER_00", Type: timeline.TypeSpeech, Status: timeline.StatusActive,
			OriginalStart: sec(0), OriginalEnd: sec(5), Order: 0,
			Words: []timeline.Word{word("hello", 0, 1), word("there", 1.5, 2.5), word("friend", 3, 5)}},
		{ID: "B", Type: timeline.TypeGap, Status: timeline.StatusActive,
			OriginalStart: sec(5), OriginalEnd: sec(7), Order: 1},
		{ID: "C", Speaker: "SPEAKER_01", Type: timeline.TypeSpeech, Status: timeline.StatusActive,
			OriginalStart: sec(7), OriginalEnd: sec(12), Order: 2,
			Words: []timeline.Word{word("goodbye", 7, 9), word("now", 10, 12)}},
	}
}

func newSession() *Session {
	n := 0
	return New(clips(), nil,
		WithClock(func() time.Time { return fixedNow }),
		WithIDFunc(func() string {
			n++
			return fmt.Sprintf("id%d", n)
		}),
	)
}

// the cached render is shared, edits go to a copy
func editable(s *Session) *document.Document {
	doc := s.Document()
	return &document.Document{Content: append([]document.Node(nil), doc.Content...)}
}

func runSession(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestNewPublishesInitialMap(t *testing.T) {
	s := newSession()
	assert.Equal(t, sec(12), s.Map().Total())
	assert.Equal(t, []string{"SPEAKER_00", "SPEAKER_01"}, s.Speakers().Active())
}

func TestMutationRepublishesMap(t *testing.T) {
	s := newSession()
	updates, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Delete("B"))

	select {
	case m := <-updates:
		assert.Equal(t, sec(10), m.Total())
		assert.Same(t, m, s.Map())
	case <-time.After(time.Second):
		t.Fatal("no map published")
	}
}

func TestSlowSubscriberSeesLatestMap(t *testing.T) {
	s := newSession()
	updates, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Delete("B"))
	require.NoError(t, s.Delete("A"))

	m := <-updates
	assert.Equal(t, sec(5), m.Total())
	select {
	case <-updates:
		t.Fatal("stale map still queued")
	default:
	}
}

func TestCancelClosesSubscription(t *testing.T) {
	s := newSession()
	updates, cancel := s.Subscribe()
	cancel()
	cancel()

	_, ok := <-updates
	assert.False(t, ok)
	require.NoError(t, s.Delete("B"))
}

func TestSubmitAppliesDocumentEdits(t *testing.T) {
	s := newSession()
	runSession(t, s)

	doc := editable(s)
	doc.Content[0], doc.Content[1] = doc.Content[1], doc.Content[0]

	res, err := s.Submit(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, res.HasChanged)

	span, ok := s.Map().Span("A")
	require.True(t, ok)
	assert.Equal(t, sec(7), span.EditedStart)

	// the second submission is reconciled against the first one's result
	res, err = s.Submit(context.Background(), s.Document())
	require.NoError(t, err)
	assert.False(t, res.HasChanged)
}

func TestSubmitAfterRunStops(t *testing.T) {
	s := newSession()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Run(ctx), context.Canceled)

	_, err := s.Submit(context.Background(), s.Document())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDocumentCache(t *testing.T) {
	s := newSession()
	first := s.Document()
	assert.Same(t, first, s.Document())

	require.NoError(t, s.RenameSpeaker("SPEAKER_01", "Bob"))
	renamed := s.Document()
	assert.NotSame(t, first, renamed)
	assert.Equal(t, "Bob", renamed.Clips()[1].Attrs.SpeakerLabel)

	require.NoError(t, s.Delete("A"))
	assert.Len(t, s.Document().Clips(), 1)
}

func TestSplitAndMergeThroughSession(t *testing.T) {
	s := newSession()
	left, right, err := s.Split("A", 1)
	require.NoError(t, err)
	assert.Equal(t, "id1", left.ID)
	assert.Equal(t, "id2", right.ID)
	assert.Equal(t, 4, s.Map().Len())

	merged, err := s.Merge(left.ID, right.ID)
	require.NoError(t, err)
	assert.Equal(t, left.ID, merged.ID)
	assert.Equal(t, sec(12), s.Map().Total())
}

func TestApplyWithoutLoop(t *testing.T) {
	s := newSession()
	doc := editable(s)
	doc.Content = doc.Content[:1]

	res := s.Apply(doc)
	assert.True(t, res.HasChanged)
	assert.Equal(t, sec(5), s.Map().Total())
}
