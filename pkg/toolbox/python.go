package toolbox

import (
	"context"

	"ooda/pkg/sandbox"
	"ooda/pkg/tools"
)

// SandboxedPython runs Python code in the task's sandbox and returns the
// captured stdout and stderr.
type SandboxedPython struct {
	manager sandbox.Manager
	taskID  string
}

var _ tools.Tool = (*SandboxedPython)(nil)

// NewSandboxedPython binds the tool to one task's sandbox.
func NewSandboxedPython(manager sandbox.Manager, taskID string) *SandboxedPython {
	return &SandboxedPython{manager: manager, taskID: taskID}
}

func (t *SandboxedPython) Describe() tools.Descriptor {
	return tools.Descriptor{
		Name:      "SandboxedPython",
		Purpose:   "A tool to run Python code in a sandboxed environment. Use print() to produce output.",
		UsageHint: "Use this to process data, compute, or transform previous Action results.",
		InputFormat: []tools.Field{
			{Key: "code", Description: "The Python code to run. Only the stdout and stderr of the run are returned."},
		},
		OutputFormat: []tools.Field{
			{Key: "stdout", Description: "The captured standard output of the run."},
			{Key: "stderr", Description: "The captured standard error of the run."},
		},
	}
}

type pythonInput struct {
	Code string `yaml:"code"`
}

func (t *SandboxedPython) Invoke(ctx context.Context, input any) (any, error) {
	in, err := tools.DecodeInput[pythonInput]("SandboxedPython", input)
	if err != nil {
		return nil, err
	}
	if in.Code == "" {
		return nil, &tools.InvalidInputError{Tool: "SandboxedPython", Reason: errEmptyCode}
	}

	res, err := t.manager.RunCode(ctx, t.taskID, in.Code)
	if err != nil {
		return nil, &tools.InvocationError{Tool: "SandboxedPython", Reason: err}
	}
	return res, nil
}
