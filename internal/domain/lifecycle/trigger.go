package lifecycle

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerLoad            Trigger = "LOAD"
	TriggerEvaluate        Trigger = "EVALUATE"
	TriggerFound           Trigger = "FOUND"
	TriggerNotFound        Trigger = "NOT_FOUND"
	TriggerSubmitSucceeded Trigger = "SUBMIT_SUCCEEDED"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
