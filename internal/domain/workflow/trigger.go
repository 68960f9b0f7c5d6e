package workflow

import "fmt"

// Trigger is an approver or requester action that moves a request between states
type Trigger string

const (
	TriggerApprove           Trigger = "APPROVE"
	TriggerReject            Trigger = "REJECT"
	TriggerStartProgress     Trigger = "START_PROGRESS"
	TriggerComplete          Trigger = "COMPLETE"
	TriggerRequestCorrection Trigger = "REQUEST_CORRECTION"
	TriggerResubmit          Trigger = "RESUBMIT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor returns the trigger whose firing lands a request in target
func TriggerFor(target State) (Trigger, error) {
	switch target {
	case StateApproved:
		return TriggerApprove, nil
	case StateRejected:
		return TriggerReject, nil
	case StateInProgress:
		return TriggerStartProgress, nil
	case StateCompleted:
		return TriggerComplete, nil
	case StateNeedsCorrection:
		return TriggerRequestCorrection, nil
	case StatePending:
		return TriggerResubmit, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidState, target)
	}
}
