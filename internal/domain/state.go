package domain

// AppState is the phase of an editing session.
type AppState string

const (
	StateIdle        AppState = "IDLE"
	StateReadyToEdit AppState = "READY_TO_EDIT"
	StateProcessing  AppState = "PROCESSING"
	StateComplete    AppState = "COMPLETE"
	StateError       AppState = "ERROR"
)

// CanSubmit reports whether a submit may start from this state. The remaining
// submit preconditions (image present, prompt non-blank) live on the session.
func (s AppState) CanSubmit() bool {
	switch s {
	case StateReadyToEdit, StateComplete, StateError:
		return true
	default:
		return false
	}
}

func (s AppState) String() string { return string(s) }
