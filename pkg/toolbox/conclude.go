package toolbox

import (
	"context"
	"fmt"
	"sync"

	"ooda/pkg/tools"
)

// Conclude is the terminal tool: invoking it latches a termination
// record that ends the task when the loop polls for it. The latch is
// per-instance; concurrent tasks must each get their own Conclude.
type Conclude struct {
	mu     sync.Mutex
	record *tools.Termination
}

var _ tools.TerminalTool = (*Conclude)(nil)

// NewConclude creates a Conclude tool with an empty latch.
func NewConclude() *Conclude {
	return &Conclude{}
}

func (c *Conclude) Describe() tools.Descriptor {
	return tools.Descriptor{
		Name:      "Conclude",
		Purpose:   "A tool to terminate a task with a conclusion when you have the final answer.",
		UsageHint: "Use this when you have the answer to the original question.",
		InputFormat: []tools.Field{
			{Key: "original_question", Description: "The original question that started the task, as plain text."},
			{Key: "conclusion", Description: "The final answer for this task, as plain text."},
		},
	}
}

type concludeInput struct {
	OriginalQuestion string `yaml:"original_question"`
	Conclusion       string `yaml:"conclusion"`
}

func (c *Conclude) Invoke(_ context.Context, input any) (any, error) {
	in, err := tools.DecodeInput[concludeInput]("Conclude", input)
	if err != nil {
		return nil, err
	}
	if in.Conclusion == "" {
		return nil, &tools.InvalidInputError{Tool: "Conclude", Reason: fmt.Errorf("a conclusion is required")}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = &tools.Termination{
		OriginalQuestion: in.OriginalQuestion,
		Conclusion:       in.Conclusion,
	}
	return map[string]any{}, nil
}

// TakeTermination returns the latched record, clearing the slot.
func (c *Conclude) TakeTermination() (tools.Termination, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record == nil {
		return tools.Termination{}, false
	}
	rec := *c.record
	c.record = nil
	return rec, true
}
