package runner

// EventKind classifies the step events a loop publishes.
type EventKind string

const (
	// EventAssistant carries the model's raw reply for a step.
	EventAssistant EventKind = "assistant"
	// EventToolResult carries a tool's rendered output.
	EventToolResult EventKind = "tool_result"
	// EventCorrective carries a recovery message fed back to the model.
	EventCorrective EventKind = "corrective"
	// EventTerminated fires once when terminal records are collected.
	EventTerminated EventKind = "terminated"
)

// Event is one observable moment in a task loop. Events exist for front
// ends and tracing; the loop never depends on a listener being present.
type Event struct {
	Step int
	Kind EventKind
	Tool string
	Text string
}

// Listener receives loop events. Calls are sequential, from the loop's
// own goroutine.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }
