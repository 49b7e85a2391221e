package transport

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgpai22/recut/internal/playback"
	"github.com/mgpai22/recut/internal/timeline"
	"github.com/mgpai22/recut/internal/timemap"
)

type buffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *buffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func TestCommandsAreJSONLines(t *testing.T) {
	out := &buffer{}
	p := New(strings.NewReader(""), out, nil)
	ctx := context.Background()

	require.NoError(t, p.Load(ctx, "load-1", "/tmp/talk.wav"))
	require.NoError(t, p.Play(ctx))
	require.NoError(t, p.Seek(ctx, 1500*time.Millisecond))
	require.NoError(t, p.SetRate(ctx, 1.25))
	require.NoError(t, p.SetVolume(ctx, 0.5))
	require.NoError(t, p.QueryState(ctx))

	lines := out.lines()
	require.Len(t, lines, 6)
	assert.JSONEq(t, `{"type":"load","id":"load-1","path":"/tmp/talk.wav"}`, lines[0])
	assert.JSONEq(t, `{"type":"play"}`, lines[1])
	assert.JSONEq(t, `{"type":"seek","timeSec":1.5}`, lines[2])
	assert.JSONEq(t, `{"type":"setRate","rate":1.25}`, lines[3])
	assert.JSONEq(t, `{"type":"setVolume","value":0.5}`, lines[4])
	assert.JSONEq(t, `{"type":"queryState"}`, lines[5])
}

func TestSeekToZeroKeepsTime(t *testing.T) {
	out := &buffer{}
	p := New(strings.NewReader(""), out, nil)
	require.NoError(t, p.Seek(context.Background(), 0))
	assert.JSONEq(t, `{"type":"seek","timeSec":0}`, out.lines()[0])
}

func TestUpdateEDL(t *testing.T) {
	out := &buffer{}
	p := New(strings.NewReader(""), out, nil)

	m := timemap.New([]*timeline.Clip{
		{ID: "C", Speaker: "SPEAKER_01", Type: timeline.TypeSpeech, Status: timeline.StatusActive,
			OriginalStart: 7 * time.Second, OriginalEnd: 12 * time.Second},
		{ID: "A", Speaker: "SPEAKER_00", Type: timeline.TypeSpeech, Status: timeline.StatusActive,
			OriginalStart: 0, OriginalEnd: 5 * time.Second},
	})
	require.NoError(t, p.UpdateEDL(context.Background(), 3, m.EDL()))

	assert.JSONEq(t, `{"type":"updateEdl","revision":3,"clips":[
		{"id":"C","startSec":0,"endSec":5,"originalStartSec":7,"originalEndSec":12,"speaker":"SPEAKER_01","type":"speech"},
		{"id":"A","startSec":5,"endSec":10,"originalStartSec":0,"originalEndSec":5,"speaker":"SPEAKER_00","type":"speech"}
	]}`, out.lines()[0])
}

func TestEventsAreDecoded(t *testing.T) {
	r, w := io.Pipe()
	p := New(r, &buffer{}, nil)

	go func() {
		lines := []string{
			`{"type":"loaded","id":"load-1","durationSec":12.5,"sampleRate":48000,"channels":2}`,
			`{"type":"state","id":"load-1","playing":true}`,
			`not json`,
			`{"type":"position","id":"load-1","editedSec":3.000000,"originalSec":8.000000}`,
			`{"type":"volume","value":1}`,
			``,
			`{"type":"ended","id":"load-1"}`,
			`{"type":"error","message":"No audio loaded"}`,
		}
		for _, l := range lines {
			_, _ = io.WriteString(w, l+"\n")
		}
		_ = w.Close()
	}()

	var events []playback.Event
	for ev := range p.Events() {
		events = append(events, ev)
	}

	require.Len(t, events, 5)
	assert.Equal(t, playback.Event{Kind: playback.EventLoaded, ID: "load-1", Duration: 12500 * time.Millisecond}, events[0])
	assert.Equal(t, playback.Event{Kind: playback.EventState, ID: "load-1", Playing: true}, events[1])
	assert.Equal(t, playback.Event{Kind: playback.EventPosition, ID: "load-1", Original: 8 * time.Second}, events[2])
	assert.Equal(t, playback.EventEnded, events[3].Kind)
	assert.Equal(t, playback.Event{Kind: playback.EventError, Message: "No audio loaded"}, events[4])
}

func TestSendAfterClose(t *testing.T) {
	out := &buffer{}
	p := New(strings.NewReader(""), out, nil)
	require.NoError(t, p.Close(time.Second))
	assert.True(t, out.closed)

	assert.ErrorIs(t, p.Play(context.Background()), ErrClosed)
	require.NoError(t, p.Close(time.Second))
}

// positions repeats a position line forever.
type positions struct{}

func (positions) Read(b []byte) (int, error) {
	line := `{"type":"position","originalSec":1}` + "\n"
	n := 0
	for n+len(line) <= len(b) {
		n += copy(b[n:], line)
	}
	if n == 0 {
		n = copy(b, line)
	}
	return n, nil
}

func TestCloseReleasesBlockedReader(t *testing.T) {
	p := New(positions{}, &buffer{}, nil)

	// let the reader fill the event buffer and block
	require.Eventually(t, func() bool { return len(p.events) == cap(p.events) },
		time.Second, 5*time.Millisecond)

	require.NoError(t, p.Close(time.Second))
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader still running after close")
	}
}

func TestCloseKillsChattyEngine(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	p, err := Start(context.Background(), nil, sh, "-c",
		`while :; do echo '{"type":"position","originalSec":1}'; done`)
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- p.Close(100 * time.Millisecond) }()

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("close blocked on an engine nobody was reading from")
	}
}

func TestProcessSatisfiesPlayback(t *testing.T) {
	var _ playback.Transport = (*Process)(nil)
	var _ playback.EDLUpdater = (*Process)(nil)
}
