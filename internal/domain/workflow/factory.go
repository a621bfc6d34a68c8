package workflow

// overrideBuilder is the shared transition table for override approval
// requests. PENDING fans out to every externally driven outcome; an approved
// request always proceeds through consumption to DONE. Cancellation is only
// reachable from PENDING.
var overrideBuilder = func() *Builder {
	b := NewBuilder()

	b.Permit(StatePending, TriggerApprove, StateApproved)
	b.Permit(StatePending, TriggerDeny, StateDenied)
	b.Permit(StatePending, TriggerTimeout, StateTimedOut)
	b.Permit(StatePending, TriggerCancel, StateCancelled)
	b.Permit(StatePending, TriggerChannelFail, StateError)

	b.Permit(StateApproved, TriggerBeginConsume, StateConsuming)
	b.Permit(StateConsuming, TriggerComplete, StateDone)

	return b
}()

// NewOverrideMachine builds a request state machine positioned at the given
// state. It panics on an unknown state; callers load states from storage and
// must validate them first.
func NewOverrideMachine(current State) StateMachine {
	return overrideBuilder.Build(current)
}
