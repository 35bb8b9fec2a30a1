package scheduler

////////////////////////////////////////////////////////////////////////////////
// TYPES

// State of the coordinator
type State int

// StateHook is called on every state change, from the coordinator
// goroutine. It must not block.
type StateHook func(prev, next State)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// No session is open
	Idle State = iota

	// A session is open and the lock is being tried
	AcquiringLock

	// The lock is held and due work is dispatched
	Active

	// The lock is being released on shutdown
	Releasing

	// The session failed and is closed, waiting before starting again
	Faulted
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AcquiringLock:
		return "acquiring"
	case Active:
		return "active"
	case Releasing:
		return "releasing"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}
