package prompt

import "fmt"

// Task carries the question being worked on and renders the recurring
// prompts that restate it. Immutable for the lifetime of a task loop.
type Task struct {
	Question string
}

// Turn prompts the model for its next OODA iteration.
func (t Task) Turn() string {
	return fmt.Sprintf(
		"# Your turn\nOriginal question: %s\nDo you have the answer? Use the Conclude tool to terminate the task.\nObservations, Orientation, Decision, The ONLY Action?",
		t.Question,
	)
}

// ActionSuccess combines a tool's rendered result with the restated task.
func (t Task) ActionSuccess(tool, result string) string {
	return fmt.Sprintf("# Action %s result:\n```yaml\n%s```\n%s", tool, result, t.Turn())
}

// ActionFailed tells the model which tool failed and why, restating the
// task so the next iteration can self-correct.
func (t Task) ActionFailed(tool string, err error) string {
	return fmt.Sprintf("# Action %s failed with:\n%v\nWhat was incorrect in the previous response?\n%s", tool, err, t.Turn())
}

// InvalidAction tells the model its reply held no usable action block.
func (t Task) InvalidAction(err error) string {
	return fmt.Sprintf("# Your response could not be parsed:\n%v\nWhat was incorrect in the previous response?\n%s", err, t.Turn())
}
