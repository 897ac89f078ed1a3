package runner

// State is the task loop's position in its per-step cycle.
type State int

const (
	StateCreated State = iota
	StateQuerying
	StateParsing
	StateDispatching
	StateContinuing
	StateTerminal
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateQuerying:
		return "querying"
	case StateParsing:
		return "parsing"
	case StateDispatching:
		return "dispatching"
	case StateContinuing:
		return "continuing"
	case StateTerminal:
		return "terminal"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
