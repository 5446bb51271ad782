package orchestrator

// State identifies one phase of the task workflow.
type State string

const (
	StatePlanning  State = "planning"
	StateCoding    State = "coding"
	StateReviewing State = "reviewing"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
)

// ValidTransitions defines allowed state transitions for each state.
//
//nolint:gochecknoglobals // Canonical transition table, read-only after init
var ValidTransitions = map[State][]State{
	StatePlanning:  {StateCoding, StateFailed},
	StateCoding:    {StateReviewing, StateFailed},
	StateReviewing: {StateComplete, StateCoding, StateFailed}, // Approve→COMPLETE, Reject→CODING
	StateComplete:  {},
	StateFailed:    {},
}

// IsValidTransition checks if a state transition is allowed. Any state may
// fail, so transitions to Failed are always valid.
func IsValidTransition(from, to State) bool {
	if to == StateFailed {
		return true
	}

	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the workflow stops in this state.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

func (s State) String() string {
	return string(s)
}
