// Package transport drives an external audio engine over line-delimited JSON
// on its stdin and stdout.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/playback"
	"github.com/mgpai22/recut/internal/timeline"
	"github.com/mgpai22/recut/internal/timemap"
)

// maximum accepted event line
const maxLineSize = 1 << 20

var ErrClosed = errors.New("transport closed")

type command struct {
	Type     string    `json:"type"`
	ID       string    `json:"id,omitempty"`
	Path     string    `json:"path,omitempty"`
	TimeSec  *float64  `json:"timeSec,omitempty"`
	Rate     *float64  `json:"rate,omitempty"`
	Value    *float64  `json:"value,omitempty"`
	Revision *uint64   `json:"revision,omitempty"`
	Clips    []edlClip `json:"clips,omitempty"`
}

type edlClip struct {
	ID               string  `json:"id"`
	StartSec         float64 `json:"startSec"`
	EndSec           float64 `json:"endSec"`
	OriginalStartSec float64 `json:"originalStartSec"`
	OriginalEndSec   float64 `json:"originalEndSec"`
	Speaker          string  `json:"speaker,omitempty"`
	Type             string  `json:"type"`
}

type event struct {
	Type        string  `json:"type"`
	ID          string  `json:"id"`
	DurationSec float64 `json:"durationSec"`
	SampleRate  int     `json:"sampleRate"`
	Channels    int     `json:"channels"`
	Playing     bool    `json:"playing"`
	EditedSec   float64 `json:"editedSec"`
	OriginalSec float64 `json:"originalSec"`
	Message     string  `json:"message"`
}

// Process speaks the engine protocol. It satisfies playback.Transport and
// playback.EDLUpdater.
type Process struct {
	logger *logging.Logger
	events chan playback.Event

	wmu    sync.Mutex
	w      io.WriteCloser
	closed bool

	cmd  *exec.Cmd
	stop chan struct{}
	done chan struct{}
}

// Start launches the engine binary and attaches to its pipes.
func Start(ctx context.Context, logger *logging.Logger, path string, args ...string) (*Process, error) {
	logger = logging.OrNop(logger)
	cmd := exec.CommandContext(ctx, path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", err)
	}
	// engine diagnostics go to the debug log
	stderr, err := zap.NewStdLogAt(logger.Named("engine").Desugar(), zap.DebugLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to attach engine stderr: %w", err)
	}
	cmd.Stderr = stderr.Writer()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine %s: %w", path, err)
	}
	logger.Infow("audio engine started", "path", path, "pid", cmd.Process.Pid)

	p := New(stdout, stdin, logger)
	p.cmd = cmd
	return p, nil
}

// New speaks the protocol over an existing pair of streams.
func New(r io.Reader, w io.WriteCloser, logger *logging.Logger) *Process {
	p := &Process{
		logger: logging.OrNop(logger),
		events: make(chan playback.Event, 64),
		w:      w,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.read(r)
	return p
}

func (p *Process) Events() <-chan playback.Event {
	return p.events
}

func (p *Process) Load(ctx context.Context, id, path string) error {
	return p.send(ctx, command{Type: "load", ID: id, Path: path})
}

func (p *Process) Play(ctx context.Context) error {
	return p.send(ctx, command{Type: "play"})
}

func (p *Process) Pause(ctx context.Context) error {
	return p.send(ctx, command{Type: "pause"})
}

func (p *Process) Stop(ctx context.Context) error {
	return p.send(ctx, command{Type: "stop"})
}

func (p *Process) Seek(ctx context.Context, original time.Duration) error {
	t := timeline.Seconds(original)
	return p.send(ctx, command{Type: "seek", TimeSec: &t})
}

func (p *Process) QueryState(ctx context.Context) error {
	return p.send(ctx, command{Type: "queryState"})
}

func (p *Process) SetRate(ctx context.Context, rate float64) error {
	return p.send(ctx, command{Type: "setRate", Rate: &rate})
}

func (p *Process) SetVolume(ctx context.Context, volume float64) error {
	return p.send(ctx, command{Type: "setVolume", Value: &volume})
}

// UpdateEDL sends the edited sequence so the engine can play it gaplessly.
func (p *Process) UpdateEDL(ctx context.Context, revision uint64, entries []timemap.Entry) error {
	clips := make([]edlClip, 0, len(entries))
	for _, e := range entries {
		clips = append(clips, edlClip{
			ID:               e.ClipID,
			StartSec:         timeline.Seconds(e.EditedStart),
			EndSec:           timeline.Seconds(e.EditedEnd),
			OriginalStartSec: timeline.Seconds(e.OriginalStart),
			OriginalEndSec:   timeline.Seconds(e.OriginalEnd),
			Speaker:          e.Speaker,
			Type:             string(e.Type),
		})
	}
	return p.send(ctx, command{Type: "updateEdl", Revision: &revision, Clips: clips})
}

// UpdateEDLFromFile points the engine at an EDL written to disk, for
// sequences too large for a single line.
func (p *Process) UpdateEDLFromFile(ctx context.Context, path string) error {
	return p.send(ctx, command{Type: "updateEdlFromFile", Path: path})
}

func (p *Process) send(ctx context.Context, cmd command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode %s command: %w", cmd.Type, err)
	}
	line = append(line, '\n')

	p.wmu.Lock()
	defer p.wmu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if _, err := p.w.Write(line); err != nil {
		return fmt.Errorf("failed to send %s command: %w", cmd.Type, err)
	}
	p.logger.Debugw("engine command", "type", cmd.Type)
	return nil
}

func (p *Process) read(r io.Reader) {
	defer close(p.done)
	defer close(p.events)

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, ok := p.decode(line)
		if !ok {
			continue
		}
		select {
		case p.events <- ev:
		case <-p.stop:
			// nobody is listening any more
			return
		}
	}
	if err := s.Err(); err != nil {
		p.logger.Warnw("engine output stopped", "error", err)
	}
}

func (p *Process) decode(line []byte) (playback.Event, bool) {
	var in event
	if err := json.Unmarshal(line, &in); err != nil {
		p.logger.Warnw("skipping unparseable engine line", "line", string(line), "error", err)
		return playback.Event{}, false
	}

	ev := playback.Event{ID: in.ID}
	switch in.Type {
	case "loaded":
		ev.Kind = playback.EventLoaded
		ev.Duration = timeline.FromSeconds(in.DurationSec)
	case "state":
		ev.Kind = playback.EventState
		ev.Playing = in.Playing
	case "position":
		ev.Kind = playback.EventPosition
		ev.Original = timeline.FromSeconds(in.OriginalSec)
	case "ended":
		ev.Kind = playback.EventEnded
	case "error":
		ev.Kind = playback.EventError
		ev.Message = in.Message
	default:
		p.logger.Warnw("skipping unknown engine event", "type", in.Type)
		return playback.Event{}, false
	}
	return ev, true
}

// Close shuts the command stream and, for a launched engine, waits for it to
// exit, killing it after the grace period.
func (p *Process) Close(grace time.Duration) error {
	p.wmu.Lock()
	if p.closed {
		p.wmu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stop)
	err := p.w.Close()
	p.wmu.Unlock()

	if p.cmd == nil {
		return err
	}

	exited := make(chan error, 1)
	go func() {
		// stdout must be drained before Wait closes it
		<-p.done
		exited <- p.cmd.Wait()
	}()
	select {
	case werr := <-exited:
		if werr != nil {
			p.logger.Debugw("audio engine exited", "error", werr)
		}
	case <-time.After(grace):
		p.logger.Warnw("audio engine did not exit, killing", "pid", p.cmd.Process.Pid)
		if kerr := p.cmd.Process.Kill(); kerr != nil {
			return fmt.Errorf("failed to kill audio engine: %w", kerr)
		}
		<-exited
	}
	return err
}
