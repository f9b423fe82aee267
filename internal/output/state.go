package output

// State of the output driver.
type State int32

const (
	StateIdle State = iota
	StatePrebuffering
	StatePlaying
	StateReconfiguring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrebuffering:
		return "prebuffering"
	case StatePlaying:
		return "playing"
	case StateReconfiguring:
		return "reconfiguring"
	default:
		return "unknown"
	}
}
