// Package playback follows a transport session's events on the edited
// timeline and turns edited-time seeks into transport commands.
package playback

import (
	"context"
	"time"

	"github.com/mgpai22/recut/internal/timemap"
)

type EventKind string

const (
	EventLoaded   EventKind = "loaded"
	EventState    EventKind = "state"
	EventPosition EventKind = "position"
	EventEnded    EventKind = "ended"
	EventError    EventKind = "error"
)

// Event is one notification from the transport. Positions are in original
// time.
type Event struct {
	Kind     EventKind
	ID       string
	Duration time.Duration
	Playing  bool
	Original time.Duration
	Message  string
}

// Transport is the audio engine driving a single source file.
type Transport interface {
	Load(ctx context.Context, id, path string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, original time.Duration) error
	QueryState(ctx context.Context) error
	// closed when the transport shuts down
	Events() <-chan Event
}

// EDLUpdater is implemented by transports that can play the edited sequence
// natively.
type EDLUpdater interface {
	UpdateEDL(ctx context.Context, revision uint64, entries []timemap.Entry) error
}

// MapSource hands out the most recently published time map.
type MapSource interface {
	Map() *timemap.Map
}
