package lifecycle

// State is the reconciliation state of one work item within a session
type State string

const (
	StateUnopened  State = "UNOPENED"
	StateLoaded    State = "LOADED"
	StateDrafting  State = "DRAFTING"
	StateLocating  State = "LOCATING"
	StateEditing   State = "EDITING"
	StateSubmitted State = "SUBMITTED"
)

var validStates = map[State]bool{
	StateUnopened:  true,
	StateLoaded:    true,
	StateDrafting:  true,
	StateLocating:  true,
	StateEditing:   true,
	StateSubmitted: true,
}

var terminalStates = map[State]bool{
	StateSubmitted: true,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsEditable returns true while the user may mutate the ledger and registry
func (s State) IsEditable() bool {
	return s == StateDrafting || s == StateEditing
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known session state
func (s State) IsValid() bool {
	return validStates[s]
}
