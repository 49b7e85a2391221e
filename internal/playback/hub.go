package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/timemap"
)

var (
	// returned to coordinators that do not hold focus
	ErrPassive = errors.New("coordinator is not focused")
	// a newer load or seek replaced this one
	ErrSuperseded = errors.New("request superseded")
	ErrNotLoaded  = errors.New("no source loaded")
	ErrOutOfRange = errors.New("no clip at or after the requested time")
	ErrTransport  = errors.New("transport error")
)

// Hub shares one transport between several coordinators, one per view. All
// of them observe the event stream; only the focused one sends commands.
type Hub struct {
	transport Transport
	logger    *logging.Logger

	mu           sync.Mutex
	coordinators []*Coordinator
	focused      *Coordinator
}

func NewHub(transport Transport, logger *logging.Logger) *Hub {
	return &Hub{transport: transport, logger: logging.OrNop(logger)}
}

// NewCoordinator attaches a view. The first coordinator gets focus.
func (h *Hub) NewCoordinator(maps MapSource, listener Listener) *Coordinator {
	if listener == nil {
		listener = nopListener{}
	}
	c := &Coordinator{
		hub:      h,
		maps:     maps,
		listener: listener,
		logger:   h.logger,
		inbox:    newInbox(),
		state:    StateIdle,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.coordinators = append(h.coordinators, c)
	if h.focused == nil {
		h.focused = c
	}
	return c
}

// Detach stops delivering events to c. Its Run returns once drained.
func (h *Hub) Detach(c *Coordinator) {
	h.mu.Lock()
	for i, other := range h.coordinators {
		if other == c {
			h.coordinators = append(h.coordinators[:i], h.coordinators[i+1:]...)
			break
		}
	}
	if h.focused == c {
		h.focused = nil
	}
	h.mu.Unlock()
	c.inbox.close()
}

func (h *Hub) Focus(c *Coordinator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.focused = c
}

func (h *Hub) Focused() *Coordinator {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

func (h *Hub) isFocused(c *Coordinator) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused == c
}

// Run pumps transport events to every coordinator until the event channel
// closes or ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	events := h.transport.Events()
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				h.logger.Debugw("transport event stream closed")
				return nil
			}
			h.mu.Lock()
			targets := append([]*Coordinator(nil), h.coordinators...)
			h.mu.Unlock()
			for _, c := range targets {
				c.inbox.push(ev)
			}
		}
	}
}

// UpdateEDL hands the edited sequence to transports that can use it.
func (h *Hub) UpdateEDL(ctx context.Context, revision uint64, m *timemap.Map) error {
	u, ok := h.transport.(EDLUpdater)
	if !ok {
		return nil
	}
	return u.UpdateEDL(ctx, revision, m.EDL())
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.coordinators {
		c.inbox.close()
	}
}

// inbox queues events for one coordinator. Consecutive position events
// collapse into the latest one; everything else is kept in order.
type inbox struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{signal: make(chan struct{}, 1)}
}

func (q *inbox) push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if n := len(q.events); ev.Kind == EventPosition && n > 0 && q.events[n-1].Kind == EventPosition {
		q.events[n-1] = ev
	} else {
		q.events = append(q.events, ev)
	}
	q.mu.Unlock()
	q.notify()
}

func (q *inbox) drain() ([]Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out, q.closed
}

func (q *inbox) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

func (q *inbox) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
