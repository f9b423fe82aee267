// Package event implements the application event scheduler: a closed set of
// events, an explicitly declared dequeue priority, and idempotent posting.
package event

// Event is one application event.
//
// Primary events are dispatched by the main loop. Wait events are
// preconditions that are only examined while handling DoMetadata; they are
// never returned by Dequeue.
type Event uint8

const (
	None Event = iota

	// Primary tier
	LoggedIn
	DoMetadata
	DoNextTrack
	DoPlay
	DoPrefetch
	DoStop
	DoLogout
	DoExit

	// Wait-condition tier
	WaitInbox
	WaitStarred
	WaitPlay

	eventCount
)

// priority is the dequeue order of the primary tier, highest first.
var priority = [...]Event{
	DoExit,
	DoLogout,
	DoStop,
	DoPrefetch,
	DoPlay,
	DoNextTrack,
	DoMetadata,
	LoggedIn,
}

// Valid reports whether e is a defined event other than None.
func (e Event) Valid() bool {
	return e > None && e < eventCount
}

// IsWait reports whether e belongs to the wait-condition tier.
func (e Event) IsWait() bool {
	return e >= WaitInbox && e < eventCount
}

// String returns the event name.
func (e Event) String() string {
	switch e {
	case None:
		return "None"
	case LoggedIn:
		return "LoggedIn"
	case DoMetadata:
		return "DoMetadata"
	case DoNextTrack:
		return "DoNextTrack"
	case DoPlay:
		return "DoPlay"
	case DoPrefetch:
		return "DoPrefetch"
	case DoStop:
		return "DoStop"
	case DoLogout:
		return "DoLogout"
	case DoExit:
		return "DoExit"
	case WaitInbox:
		return "WaitInbox"
	case WaitStarred:
		return "WaitStarred"
	case WaitPlay:
		return "WaitPlay"
	default:
		return "Unknown"
	}
}
