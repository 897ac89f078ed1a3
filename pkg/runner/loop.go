// Package runner drives one task through the observe-orient-decide-act
// cycle: query the model, parse its single action, dispatch the tool,
// and feed the result (or a corrective) back into the context window
// until a terminal tool concludes the task or the step budget runs out.
//
// Parse and dispatch failures are recoverable: they become corrective
// context for the next step. Context overflow and model transport
// failures are fatal and surface immediately.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"ooda/pkg/action"
	"ooda/pkg/chat"
	"ooda/pkg/models"
	"ooda/pkg/prompt"
	"ooda/pkg/tools"
)

// Config bounds one task loop.
type Config struct {
	// Model is the model identifier passed to the provider and the token
	// accounting collaborator.
	Model string
	// MaxSteps caps the number of model queries before the task is
	// declared incomplete.
	MaxSteps int
	// Temperature is forwarded to the provider.
	Temperature float32
	// ReserveTokens is the completion headroom kept free in the context
	// window, and the provider's output cap.
	ReserveTokens int
	// MaxResponseBytes bounds a rendered tool result; larger results are
	// replaced with a corrective instructing the model to process the
	// data with a tool instead.
	MaxResponseBytes int
}

const (
	defaultMaxSteps         = 10
	defaultReserveTokens    = 256
	defaultMaxResponseBytes = 2048
)

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = defaultMaxSteps
	}
	if c.ReserveTokens <= 0 {
		c.ReserveTokens = defaultReserveTokens
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	return c
}

// Outcome is a task's non-fatal result. A concluded task carries one or
// more termination records; an exhausted step budget carries none, which
// the caller must treat as "incomplete" rather than an error.
type Outcome struct {
	Terminations []tools.Termination
	Steps        int
}

// Concluded reports whether a terminal tool ended the task.
func (o *Outcome) Concluded() bool { return len(o.Terminations) > 0 }

// Loop is the per-task state machine. A loop owns its context window and
// registry-bound tool instances exclusively; it is not safe for
// concurrent use, and not reusable after Run returns.
type Loop struct {
	cfg      Config
	provider models.Provider
	registry *tools.Registry
	window   *chat.Window
	task     prompt.Task
	state    State
	listener Listener
}

// Option configures a Loop.
type Option func(*Loop)

// WithListener attaches a step-event listener.
func WithListener(l Listener) Option {
	return func(lp *Loop) { lp.listener = l }
}

// New creates a loop for one task: it seeds the context window with the
// pinned preamble (persona, warm-up with tool descriptors, worked
// example) and places the task turn prompt in the rolling tail.
func New(question string, provider models.Provider, registry *tools.Registry, counter chat.TokenCounter, cfg Config, opts ...Option) (*Loop, error) {
	cfg = cfg.withDefaults()

	window := chat.NewWindow(cfg.Model, cfg.ReserveTokens, counter)
	preamble, err := prompt.Preamble(registry.Descriptors())
	if err != nil {
		return nil, err
	}
	window.AppendPinned(preamble...)

	task := prompt.Task{Question: question}
	if _, err := window.AppendRolling(chat.Message{Role: chat.RoleUser, Content: task.Turn()}); err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		window:   window,
		task:     task,
		state:    StateCreated,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// State reports the loop's current state.
func (l *Loop) State() State { return l.state }

// Window exposes the loop's context window for rendering and inspection.
func (l *Loop) Window() *chat.Window { return l.window }

// Run executes the loop until a terminal tool concludes the task, the
// step budget is exhausted, or a fatal failure occurs. Fatal failures
// (context overflow, model transport errors) return a non-nil error and
// are never retried here; the caller may retry the whole task.
func (l *Loop) Run(ctx context.Context) (*Outcome, error) {
	for step := 1; step <= l.cfg.MaxSteps; step++ {
		records, err := l.step(ctx, step)
		if err != nil {
			l.state = StateFatal
			slog.Error("task failed", "step", step, "error", err)
			return nil, err
		}
		if len(records) > 0 {
			l.state = StateTerminal
			slog.Info("task concluded", "step", step, "records", len(records))
			return &Outcome{Terminations: records, Steps: step}, nil
		}
		l.state = StateContinuing
	}
	slog.Info("task incomplete", "maxSteps", l.cfg.MaxSteps)
	return &Outcome{Steps: l.cfg.MaxSteps}, nil
}

// step runs one query/parse/dispatch cycle. It returns termination
// records when the task concluded, or (nil, nil) when the loop should
// continue. Only fatal failures produce an error.
func (l *Loop) step(ctx context.Context, step int) ([]tools.Termination, error) {
	l.state = StateQuerying
	completion, err := l.provider.Complete(ctx, l.cfg.Model, l.window.Messages(), models.Options{
		Temperature:     l.cfg.Temperature,
		MaxOutputTokens: l.cfg.ReserveTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("model completion: %w", err)
	}
	if usage := completion.Usage; usage != nil {
		slog.Debug("model usage", "step", step, "prompt", usage.PromptTokens, "completion", usage.CompletionTokens)
	}

	// The size check applies to tool results only, never to the model's
	// own message.
	if _, err := l.window.AppendRolling(chat.Message{Role: chat.RoleAssistant, Content: completion.Text}); err != nil {
		return nil, err
	}
	l.emit(Event{Step: step, Kind: EventAssistant, Text: completion.Text})

	l.state = StateParsing
	invocation, err := action.Parse(completion.Text)
	if err != nil {
		slog.Debug("no usable action", "step", step, "error", err)
		return nil, l.corrective(step, "", l.task.InvalidAction(err))
	}

	l.state = StateDispatching
	output, err := l.registry.Dispatch(ctx, invocation.Command, invocation.Input)
	if err != nil {
		slog.Debug("dispatch failed", "step", step, "tool", invocation.Command, "error", err)
		return nil, l.corrective(step, invocation.Command, l.task.ActionFailed(invocation.Command, err))
	}

	if records := l.registry.PollTerminations(); len(records) > 0 {
		l.emit(Event{Step: step, Kind: EventTerminated, Tool: invocation.Command})
		return records, nil
	}

	rendered, err := renderResult(output)
	if err != nil {
		failure := &tools.InvocationError{Tool: invocation.Command, Reason: err}
		return nil, l.corrective(step, invocation.Command, l.task.ActionFailed(invocation.Command, failure))
	}
	if len(rendered) > l.cfg.MaxResponseBytes {
		tooLong := &tools.InvocationError{
			Tool: invocation.Command,
			Reason: fmt.Errorf("the response is too long (%dB, max %dB): ask for a shorter response or use the SandboxedPython tool to process the data",
				len(rendered), l.cfg.MaxResponseBytes),
		}
		return nil, l.corrective(step, invocation.Command, l.task.ActionFailed(invocation.Command, tooLong))
	}

	success := l.task.ActionSuccess(invocation.Command, rendered)
	if _, err := l.window.AppendRolling(chat.Message{Role: chat.RoleUser, Content: success}); err != nil {
		return nil, err
	}
	l.emit(Event{Step: step, Kind: EventToolResult, Tool: invocation.Command, Text: rendered})
	return nil, nil
}

// corrective feeds a recovery message back to the model. It only fails
// on context overflow, which is fatal.
func (l *Loop) corrective(step int, tool, msg string) error {
	if _, err := l.window.AppendRolling(chat.Message{Role: chat.RoleUser, Content: msg}); err != nil {
		return err
	}
	l.emit(Event{Step: step, Kind: EventCorrective, Tool: tool, Text: msg})
	return nil
}

func (l *Loop) emit(e Event) {
	if l.listener != nil {
		l.listener.OnEvent(e)
	}
}

// renderResult serializes a tool's output the way it is quoted to the
// model, as YAML.
func renderResult(output any) (string, error) {
	raw, err := yaml.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("serialize tool output: %w", err)
	}
	return string(raw), nil
}
