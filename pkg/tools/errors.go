package tools

import (
	"errors"
	"fmt"
)

// ErrDuplicateTool is returned by registration when the registry is
// configured to reject duplicate names.
var ErrDuplicateTool = errors.New("duplicate tool name")

// ToolNotFoundError reports a dispatch against an unregistered name, or
// an advanced name resolved through the restricted dispatcher.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// InvocationError reports a tool that was found but failed while running.
type InvocationError struct {
	Tool   string
	Reason error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s invocation failed: %v", e.Tool, e.Reason)
}

func (e *InvocationError) Unwrap() error { return e.Reason }

// InvalidInputError reports input that does not match the tool's declared
// input format.
type InvalidInputError struct {
	Tool   string
	Reason error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for tool %s: %v", e.Tool, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return e.Reason }
