package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/timemap"
)

// Listener receives a coordinator's view of playback. Calls come from the
// coordinator's Run goroutine and from command callers; they must not block.
type Listener interface {
	StateChanged(state State)
	PositionChanged(edited, original time.Duration)
	Failed(err error)
}

type nopListener struct{}

func (nopListener) StateChanged(State) {}

func (nopListener) PositionChanged(time.Duration, time.Duration) {}

func (nopListener) Failed(error) {}

// Coordinator maps one view's edited timeline onto the shared transport.
type Coordinator struct {
	hub      *Hub
	maps     MapSource
	listener Listener
	logger   *logging.Logger
	inbox    *inbox

	mu       sync.Mutex
	state    State
	loadTok  uint64
	loadID   string
	waiter   chan error
	seekTok  uint64
	clipID   string
	// set after a seek until a position inside the target clip arrives
	awaiting bool
	edited   time.Duration
	original time.Duration
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the last known edited and original time.
func (c *Coordinator) Position() (edited, original time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edited, c.original
}

func (c *Coordinator) Focused() bool {
	return c.hub.isFocused(c)
}

// Load opens a source and waits for the transport to report it loaded. A
// later Load supersedes this one.
func (c *Coordinator) Load(ctx context.Context, path string) error {
	if !c.Focused() {
		return ErrPassive
	}

	c.mu.Lock()
	c.loadTok++
	tok := c.loadTok
	id := fmt.Sprintf("load-%d", tok)
	if c.waiter != nil {
		c.waiter <- ErrSuperseded
	}
	w := make(chan error, 1)
	c.waiter = w
	c.loadID = id
	c.clipID = ""
	c.awaiting = false
	changed := c.setState(StateLoading)
	c.mu.Unlock()
	if changed {
		c.listener.StateChanged(StateLoading)
	}

	c.logger.Debugw("loading source", "path", path, "load_id", id)
	if err := c.hub.transport.Load(ctx, id, path); err != nil {
		c.mu.Lock()
		current := c.loadTok == tok
		if current {
			c.waiter = nil
			changed = c.setState(StateIdle)
		}
		c.mu.Unlock()
		if current && changed {
			c.listener.StateChanged(StateIdle)
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	select {
	case err := <-w:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) Play(ctx context.Context) error {
	if err := c.commandable(); err != nil {
		return err
	}
	c.mu.Lock()
	fromStart := c.clipID == "" || c.state == StateEnded
	c.mu.Unlock()
	if fromStart {
		if err := c.Seek(ctx, 0); err != nil && !errors.Is(err, ErrSuperseded) {
			return err
		}
	}
	return c.hub.transport.Play(ctx)
}

func (c *Coordinator) Pause(ctx context.Context) error {
	if err := c.commandable(); err != nil {
		return err
	}
	return c.hub.transport.Pause(ctx)
}

func (c *Coordinator) QueryState(ctx context.Context) error {
	if !c.Focused() {
		return ErrPassive
	}
	return c.hub.transport.QueryState(ctx)
}

// Seek moves playback to an edited time. A time with no clip snaps forward
// to the start of the next clip.
func (c *Coordinator) Seek(ctx context.Context, edited time.Duration) error {
	if err := c.commandable(); err != nil {
		return err
	}

	c.mu.Lock()
	c.seekTok++
	tok := c.seekTok
	c.mu.Unlock()

	span, edited, err := resolve(c.maps.Map(), edited, true)
	if err != nil {
		return err
	}
	original := span.OriginalStart() + (edited - span.EditedStart)

	if err := c.hub.transport.Seek(ctx, original); err != nil {
		return fmt.Errorf("failed to seek to %v: %w", original, err)
	}

	c.mu.Lock()
	if c.seekTok != tok {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.clipID = span.ClipID()
	c.awaiting = true
	c.edited, c.original = edited, original
	c.mu.Unlock()

	c.listener.PositionChanged(edited, original)
	return nil
}

// resolve finds the span holding an edited time, snapping once to the next
// span when the time falls outside every clip.
func resolve(m *timemap.Map, edited time.Duration, snap bool) (timemap.Span, time.Duration, error) {
	if span, ok := m.Locate(edited); ok {
		return span, edited, nil
	}
	if !snap {
		return timemap.Span{}, 0, fmt.Errorf("%w: %v", ErrOutOfRange, edited)
	}
	next, ok := m.Next(edited)
	if !ok {
		return timemap.Span{}, 0, fmt.Errorf("%w: %v", ErrOutOfRange, edited)
	}
	return resolve(m, next.EditedStart, false)
}

func (c *Coordinator) commandable() error {
	if !c.Focused() {
		return ErrPassive
	}
	if !c.State().loaded() {
		return ErrNotLoaded
	}
	return nil
}

// Run handles events delivered by the hub until the coordinator is
// detached, the transport closes or ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.inbox.signal:
		}
		events, closed := c.inbox.drain()
		for _, ev := range events {
			c.handle(ctx, ev)
		}
		if closed {
			return nil
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventPosition:
		c.position(ctx, ev.Original)
	case EventEnded:
		c.ended(ctx)
	case EventError:
		c.failed(ev.Message)
	case EventLoaded:
		c.mu.Lock()
		if ev.ID != c.loadID || c.state != StateLoading {
			c.mu.Unlock()
			c.logger.Debugw("ignoring stale load", "load_id", ev.ID)
			return
		}
		c.setState(StateReady)
		w := c.waiter
		c.waiter = nil
		c.mu.Unlock()
		if w != nil {
			w <- nil
		}
		c.logger.Debugw("source loaded", "load_id", ev.ID, "duration", ev.Duration)
		c.listener.StateChanged(StateReady)
	case EventState:
		c.mu.Lock()
		next := transition(c.state, ev, c.loadID)
		changed := c.setState(next)
		c.mu.Unlock()
		if changed {
			c.listener.StateChanged(next)
		}
	default:
		c.logger.Warnw("unknown transport event", "kind", ev.Kind)
	}
}

func (c *Coordinator) position(ctx context.Context, original time.Duration) {
	m := c.maps.Map()
	focused := c.Focused()

	c.mu.Lock()
	clipID, awaiting := c.clipID, c.awaiting
	c.mu.Unlock()

	span, ok := m.Span(clipID)
	if !focused || !ok {
		// passive views and lost clips follow the reported position directly
		span, ok = m.LocateOriginal(original)
		if !ok {
			return
		}
		c.mu.Lock()
		c.clipID = span.ClipID()
		c.awaiting = false
		c.mu.Unlock()
		clipID, awaiting = span.ClipID(), false
	}

	inside := original >= span.OriginalStart() && original < span.OriginalEnd()
	if awaiting {
		if !inside {
			// left over from before the last seek
			return
		}
		c.mu.Lock()
		if c.clipID == clipID {
			c.awaiting = false
		}
		c.mu.Unlock()
	}

	switch {
	case inside:
		c.report(span.EditedStart+(original-span.OriginalStart()), original)
	case original >= span.OriginalEnd():
		c.advance(ctx, m, span, original, false)
	}
}

// advance moves on from a finished span to the next one in edited order. A
// next span that continues in the recording needs no seek.
func (c *Coordinator) advance(ctx context.Context, m *timemap.Map, from timemap.Span, original time.Duration, resume bool) {
	next, ok := m.After(from.ClipID())
	if !ok {
		c.finish(ctx, !resume)
		return
	}

	if !resume && next.OriginalStart() == from.OriginalEnd() {
		c.mu.Lock()
		c.clipID = next.ClipID()
		c.mu.Unlock()
		if original < next.OriginalEnd() {
			c.report(next.EditedStart+(original-next.OriginalStart()), original)
			return
		}
		c.advance(ctx, m, next, original, false)
		return
	}

	c.mu.Lock()
	c.seekTok++
	c.clipID = next.ClipID()
	c.awaiting = true
	c.mu.Unlock()

	c.logger.Debugw("advancing to next clip",
		"from", from.ClipID(),
		"to", next.ClipID(),
		"original_start", next.OriginalStart())
	if err := c.hub.transport.Seek(ctx, next.OriginalStart()); err != nil {
		c.logger.Warnw("failed to seek to next clip", "clip_id", next.ClipID(), "error", err)
		return
	}
	c.report(next.EditedStart, next.OriginalStart())
	if resume {
		if err := c.hub.transport.Play(ctx); err != nil {
			c.logger.Warnw("failed to resume after seek", "error", err)
		}
	}
}

// finish stops at the end of the edited program.
func (c *Coordinator) finish(ctx context.Context, pause bool) {
	if pause {
		if err := c.hub.transport.Pause(ctx); err != nil {
			c.logger.Warnw("failed to pause at end of program", "error", err)
		}
	}
	c.mu.Lock()
	changed := c.setState(StateEnded)
	c.mu.Unlock()
	if changed {
		c.listener.StateChanged(StateEnded)
	}
}

// ended handles the transport running off the end of the file. A reordered
// program may still have clips to play.
func (c *Coordinator) ended(ctx context.Context) {
	if !c.Focused() {
		c.mu.Lock()
		changed := c.setState(StateEnded)
		c.mu.Unlock()
		if changed {
			c.listener.StateChanged(StateEnded)
		}
		return
	}

	m := c.maps.Map()
	c.mu.Lock()
	clipID := c.clipID
	c.mu.Unlock()

	span, ok := m.Span(clipID)
	if !ok {
		c.finish(ctx, false)
		return
	}
	c.advance(ctx, m, span, span.OriginalEnd(), true)
}

func (c *Coordinator) failed(message string) {
	err := fmt.Errorf("%w: %s", ErrTransport, message)

	c.mu.Lock()
	changed := c.setState(StateIdle)
	w := c.waiter
	c.waiter = nil
	c.loadID = ""
	c.clipID = ""
	c.awaiting = false
	c.mu.Unlock()

	if w != nil {
		w <- err
	}
	c.logger.Warnw("transport failed", "error", message)
	if changed {
		c.listener.StateChanged(StateIdle)
	}
	c.listener.Failed(err)
}

func (c *Coordinator) report(edited, original time.Duration) {
	c.mu.Lock()
	c.edited, c.original = edited, original
	c.mu.Unlock()
	c.listener.PositionChanged(edited, original)
}

// setState must be called with c.mu held.
func (c *Coordinator) setState(s State) bool {
	if c.state == s {
		return false
	}
	c.state = s
	return true
}
