package workflow

// State is one stage of an approval request's lifecycle
type State string

const (
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateConsuming State = "CONSUMING"
	StateDone      State = "DONE"
	StateDenied    State = "DENIED"
	StateTimedOut  State = "TIMED_OUT"
	StateCancelled State = "CANCELLED"
	StateError     State = "ERROR"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateApproved:  true,
	StateConsuming: true,
	StateDone:      true,
	StateDenied:    true,
	StateTimedOut:  true,
	StateCancelled: true,
	StateError:     true,
}

// Terminal states accept no further transitions. APPROVED and CONSUMING are
// intermediate: an approved request always proceeds through consumption.
var terminalStates = map[State]bool{
	StateDone:      true,
	StateDenied:    true,
	StateTimedOut:  true,
	StateCancelled: true,
	StateError:     true,
}

// IsTerminal returns true if the state accepts no further transitions
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
