// Package sandbox abstracts isolated code execution for the
// SandboxedPython tool. One sandbox exists per task, created lazily on
// the first execution.
package sandbox

import "context"

// Result is the output of one sandboxed execution.
type Result struct {
	// Stdout is the captured standard output.
	Stdout string `json:"stdout" yaml:"stdout"`
	// Stderr is the captured standard error.
	Stderr string `json:"stderr" yaml:"stderr"`
}

// Manager runs code in per-task sandboxes.
type Manager interface {
	// RunCode executes Python code in the task's sandbox, lazily
	// initializing it when needed.
	RunCode(ctx context.Context, taskID, code string) (*Result, error)

	// Stop terminates the sandbox for the given task.
	Stop(ctx context.Context, taskID string) error

	// Close releases any resources held by the manager.
	Close() error
}
