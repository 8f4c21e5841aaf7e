package workflows

// Draw modes of a polygon editing session
const (
	ModeIdle    = "IDLE"
	ModeDrawing = "DRAWING"
	ModeEditing = "EDITING"
)

// StateMachine enforces mode transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine over the given transition table
func NewStateMachine(transitions map[string][]string) *StateMachine {
	return &StateMachine{allowedTransitions: transitions}
}

// NewDrawModeMachine creates the state machine used by the polygon draw controller.
// Drawing and editing always return to idle, whether confirmed or cancelled.
func NewDrawModeMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		ModeIdle:    {ModeDrawing, ModeEditing},
		ModeDrawing: {ModeIdle},
		ModeEditing: {ModeIdle},
	})
}

// CanTransition checks if a transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next states for a given state
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
