package character

// State is the character's single active behaviour.
type State int

const (
	StateIdle State = iota
	StateSpeaking
	StateMoving
	StateGesturing
	StateThinking
)

var stateNames = [...]string{"idle", "speaking", "moving", "gesturing", "thinking"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ParseState maps a state name back to its value.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return StateIdle, false
}
