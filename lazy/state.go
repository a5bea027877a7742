package lazy

// State is the lifecycle tag of a cell. Transitions only move forward,
// except that a failed construction returns Initializing to Uninitialized.
type State uint32

const (
	// Uninitialized means no value has been published yet.
	Uninitialized State = iota
	// Initializing means a factory is running under the guard.
	Initializing
	// Initialized means the value is published and immutable.
	Initialized
	// Poisoned means a factory panicked. The cell will never hold a value.
	Poisoned
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case Poisoned:
		return "poisoned"
	default:
		return "unknown"
	}
}
