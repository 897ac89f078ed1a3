// Package toolbox assembles the standard set of tools available to a task.
package toolbox

import (
	"ooda/pkg/sandbox"
	"ooda/pkg/tools"
)

// Config selects which optional tools a task's registry carries.
type Config struct {
	// Sandbox enables the SandboxedPython tool when non-nil.
	Sandbox sandbox.Manager

	// FileAccess enables the ListFiles and ReadFile tools.
	FileAccess bool

	// Duplicates controls how name collisions are handled during setup.
	Duplicates tools.DuplicatePolicy
}

// New builds a fresh registry for one task. Every task gets its own
// registry so terminal-tool latches are never shared across tasks.
func New(taskID string, cfg Config) (*tools.Registry, error) {
	reg := tools.NewRegistry(tools.WithDuplicatePolicy(cfg.Duplicates))

	if err := reg.AddTerminalTool(NewConclude()); err != nil {
		return nil, err
	}
	if err := reg.AddAdvancedTool(Batch{}); err != nil {
		return nil, err
	}
	if cfg.Sandbox != nil {
		if err := reg.AddTool(NewSandboxedPython(cfg.Sandbox, taskID)); err != nil {
			return nil, err
		}
	}
	if cfg.FileAccess {
		if err := reg.AddTool(ListFiles{}); err != nil {
			return nil, err
		}
		if err := reg.AddTool(ReadFile{}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
