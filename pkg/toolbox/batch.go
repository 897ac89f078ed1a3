package toolbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ooda/pkg/tools"
)

// Batch runs a sequence of tool invocations in order and returns their
// results as one payload. Nested invocations resolve against the
// restricted dispatcher only, so a batch can never contain another batch.
type Batch struct{}

var _ tools.AdvancedTool = (*Batch)(nil)

func (Batch) Describe() tools.Descriptor {
	return tools.Descriptor{
		Name:      "Batch",
		Purpose:   "A tool to run several other tools in sequence within a single action.",
		UsageHint: "Use this when you need the results of multiple tools at once. Batches cannot be nested.",
		InputFormat: []tools.Field{
			{Key: "steps", Description: "A list of {command, input} entries executed in order."},
		},
		OutputFormat: []tools.Field{
			{Key: "results", Description: "One entry per step with the tool name and its result or error."},
		},
	}
}

type batchInput struct {
	Steps []batchStep `yaml:"steps"`
}

type batchStep struct {
	Command string `yaml:"command"`
	Input   any    `yaml:"input"`
}

// Invoke without a dispatcher is invalid; Batch only makes sense at the
// top level of an action.
func (Batch) Invoke(_ context.Context, _ any) (any, error) {
	return nil, &tools.InvocationError{Tool: "Batch", Reason: errors.New("batch requires a dispatcher")}
}

func (Batch) InvokeWithTools(ctx context.Context, nested tools.Dispatcher, input any) (any, error) {
	in, err := tools.DecodeInput[batchInput]("Batch", input)
	if err != nil {
		return nil, err
	}
	if len(in.Steps) == 0 {
		return nil, &tools.InvalidInputError{Tool: "Batch", Reason: errors.New("argument 'steps' must not be empty")}
	}

	results := make([]map[string]any, 0, len(in.Steps))
	for i, step := range in.Steps {
		if step.Command == "" {
			return nil, &tools.InvalidInputError{Tool: "Batch", Reason: fmt.Errorf("step %d: missing 'command'", i+1)}
		}
		slog.Debug("batch step", "step", i+1, "command", step.Command)
		out, err := nested.Dispatch(ctx, step.Command, step.Input)
		if err != nil {
			results = append(results, map[string]any{"command": step.Command, "error": err.Error()})
			continue
		}
		results = append(results, map[string]any{"command": step.Command, "result": out})
	}
	return map[string]any{"results": results}, nil
}
