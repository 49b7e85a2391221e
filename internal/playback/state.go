package playback

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// transition applies a transport event to the state. ended is handled by the
// coordinator since it may continue with the next clip.
func transition(s State, ev Event, loadID string) State {
	switch ev.Kind {
	case EventError:
		return StateIdle
	case EventLoaded:
		if s == StateLoading && ev.ID == loadID {
			return StateReady
		}
	case EventState:
		switch s {
		case StateReady, StatePaused, StateEnded:
			if ev.Playing {
				return StatePlaying
			}
		case StatePlaying:
			if !ev.Playing {
				return StatePaused
			}
		}
	}
	return s
}

// loaded reports whether the transport has a source to command.
func (s State) loaded() bool {
	switch s {
	case StateReady, StatePlaying, StatePaused, StateEnded:
		return true
	}
	return false
}
