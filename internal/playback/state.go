package playback

// State is the externally visible playback state.
type State int

const (
	StateStopped State = iota
	StateLoading       // track selected, waiting for it to become playable
	StatePlaying
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	default:
		return "Unknown"
	}
}
