package tools

import (
	"context"
	"fmt"
	"sort"
)

// DuplicatePolicy decides what registration does when a name is already
// taken within a tier.
type DuplicatePolicy int

const (
	// Overwrite replaces the existing entry silently.
	Overwrite DuplicatePolicy = iota
	// Reject fails the registration with ErrDuplicateTool.
	Reject
)

// Registry holds tool implementations partitioned into the three
// capability tiers. Registration happens during task setup; afterwards
// the registry is read-only and safe to share for descriptor access.
type Registry struct {
	policy   DuplicatePolicy
	simple   map[string]Tool
	advanced map[string]AdvancedTool
	terminal map[string]TerminalTool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDuplicatePolicy selects how duplicate names are handled.
func WithDuplicatePolicy(p DuplicatePolicy) RegistryOption {
	return func(r *Registry) { r.policy = p }
}

// NewRegistry creates an empty registry. The default duplicate policy is
// Overwrite.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		simple:   make(map[string]Tool),
		advanced: make(map[string]AdvancedTool),
		terminal: make(map[string]TerminalTool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func register[T Tool](r *Registry, tier map[string]T, t T) error {
	name := t.Describe().Name
	if _, exists := tier[name]; exists && r.policy == Reject {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	tier[name] = t
	return nil
}

// AddTool registers a simple tool.
func (r *Registry) AddTool(t Tool) error {
	return register(r, r.simple, t)
}

// AddAdvancedTool registers an advanced tool.
func (r *Registry) AddAdvancedTool(t AdvancedTool) error {
	return register(r, r.advanced, t)
}

// AddTerminalTool registers a terminal tool.
func (r *Registry) AddTerminalTool(t TerminalTool) error {
	return register(r, r.terminal, t)
}

// Describe merges the descriptors of all three tiers into one mapping.
func (r *Registry) Describe() map[string]Descriptor {
	out := make(map[string]Descriptor, len(r.simple)+len(r.advanced)+len(r.terminal))
	for name, t := range r.simple {
		out[name] = t.Describe()
	}
	for name, t := range r.advanced {
		out[name] = t.Describe()
	}
	for name, t := range r.terminal {
		out[name] = t.Describe()
	}
	return out
}

// Descriptors returns all descriptors sorted by name, for deterministic
// prompt rendering.
func (r *Registry) Descriptors() []Descriptor {
	merged := r.Describe()
	out := make([]Descriptor, 0, len(merged))
	for _, d := range merged {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch resolves a top-level invocation: Advanced first, then
// Terminal, then Simple. Advanced tools receive the restricted dispatcher
// so they can only reach Terminal and Simple tools themselves.
func (r *Registry) Dispatch(ctx context.Context, name string, input any) (any, error) {
	if t, ok := r.advanced[name]; ok {
		return t.InvokeWithTools(ctx, restricted{r}, input)
	}
	if t, ok := r.terminal[name]; ok {
		return t.Invoke(ctx, input)
	}
	if t, ok := r.simple[name]; ok {
		return t.Invoke(ctx, input)
	}
	return nil, &ToolNotFoundError{Name: name}
}

// DispatchRestricted resolves an invocation made from inside an advanced
// tool's execution: Terminal first, then Simple. Advanced names are not
// found here.
func (r *Registry) DispatchRestricted(ctx context.Context, name string, input any) (any, error) {
	if t, ok := r.terminal[name]; ok {
		return t.Invoke(ctx, input)
	}
	if t, ok := r.simple[name]; ok {
		return t.Invoke(ctx, input)
	}
	return nil, &ToolNotFoundError{Name: name}
}

// restricted adapts the registry to the Dispatcher surface handed to
// advanced tools.
type restricted struct {
	r *Registry
}

func (d restricted) Dispatch(ctx context.Context, name string, input any) (any, error) {
	return d.r.DispatchRestricted(ctx, name, input)
}

// PollTerminations visits every terminal tool and collects the latched
// termination records found this round, clearing the latches.
func (r *Registry) PollTerminations() []Termination {
	var out []Termination
	for _, t := range r.terminal {
		if rec, ok := t.TakeTermination(); ok {
			out = append(out, rec)
		}
	}
	return out
}
