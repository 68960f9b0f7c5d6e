package workflow

import (
	domainwf "github.com/garyjia/docflow/internal/domain/workflow"
)

// BuildRequestStateMachine creates a state machine for the request lifecycle.
// The needs-correction loop is only configured when allowCorrection is set.
func BuildRequestStateMachine(initialState domainwf.State, allowCorrection bool) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	pending := builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerStartProgress, domainwf.StateInProgress)

	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerStartProgress, domainwf.StateInProgress).
		Permit(domainwf.TriggerComplete, domainwf.StateCompleted)

	builder.Configure(domainwf.StateInProgress).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerComplete, domainwf.StateCompleted)

	if allowCorrection {
		pending.Permit(domainwf.TriggerRequestCorrection, domainwf.StateNeedsCorrection)

		builder.Configure(domainwf.StateNeedsCorrection).
			Permit(domainwf.TriggerResubmit, domainwf.StatePending).
			Permit(domainwf.TriggerReject, domainwf.StateRejected)
	}

	// rejected and completed are terminal

	return builder.Build(initialState)
}
