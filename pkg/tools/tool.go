// Package tools holds the capability interfaces, the tiered registry,
// and the dispatch policy that routes parsed actions to implementations.
//
// Tools come in three tiers. Simple tools run once and return a value.
// Advanced tools additionally receive a restricted dispatcher and may
// invoke Simple or Terminal tools during their own execution; the
// restricted dispatcher cannot resolve Advanced names, which bounds
// nesting to depth 1 by construction. Terminal tools can end a task by
// latching a termination record.
package tools

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Tool is the basic capability: describe yourself, run once. Input and
// output values are YAML-structured: maps, lists and scalars as decoded
// by yaml.v3.
type Tool interface {
	Describe() Descriptor
	Invoke(ctx context.Context, input any) (any, error)
}

// Dispatcher is the restricted dispatch surface handed to advanced tools:
// it resolves Terminal and Simple names only.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, input any) (any, error)
}

// AdvancedTool may call other tools while it runs. Its plain Invoke is
// used when no nested dispatch is available.
type AdvancedTool interface {
	Tool
	InvokeWithTools(ctx context.Context, nested Dispatcher, input any) (any, error)
}

// TerminalTool can end a task. A termination record is latched in a
// single slot, at most one pending per tool, and cleared on read.
type TerminalTool interface {
	Tool
	TakeTermination() (Termination, bool)
}

// Termination is the final outcome a terminal tool produces.
type Termination struct {
	OriginalQuestion string `yaml:"original_question" json:"original_question"`
	Conclusion       string `yaml:"conclusion" json:"conclusion"`
}

// DecodeInput converts a YAML-structured input value into the typed input
// a tool declares, reporting mismatches as InvalidInputError.
func DecodeInput[T any](tool string, input any) (T, error) {
	var out T
	raw, err := yaml.Marshal(input)
	if err != nil {
		return out, &InvalidInputError{Tool: tool, Reason: err}
	}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return out, &InvalidInputError{Tool: tool, Reason: err}
	}
	return out, nil
}
