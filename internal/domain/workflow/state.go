package workflow

import "github.com/garyjia/docflow/internal/domain/entity"

// State is a request status as seen by the state machine
type State string

const (
	StatePending         State = entity.StatusPending
	StateApproved        State = entity.StatusApproved
	StateRejected        State = entity.StatusRejected
	StateInProgress      State = entity.StatusInProgress
	StateNeedsCorrection State = entity.StatusNeedsCorrection
	StateCompleted       State = entity.StatusCompleted
)

var terminalStates = map[State]bool{
	StateRejected:  true,
	StateCompleted: true,
}

// IsTerminal returns true if no further transitions are expected from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known request status
func (s State) IsValid() bool {
	return entity.IsValidStatus(string(s))
}
