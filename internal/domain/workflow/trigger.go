package workflow

// Trigger is an external or internal event that drives a state transition
type Trigger string

const (
	TriggerApprove      Trigger = "APPROVE"
	TriggerDeny         Trigger = "DENY"
	TriggerTimeout      Trigger = "TIMEOUT"
	TriggerCancel       Trigger = "CANCEL"
	TriggerBeginConsume Trigger = "BEGIN_CONSUME"
	TriggerComplete     Trigger = "COMPLETE"
	TriggerChannelFail  Trigger = "CHANNEL_FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
