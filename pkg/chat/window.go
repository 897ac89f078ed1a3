// Package chat maintains the bounded conversation window presented to the
// model: a pinned preamble that is never evicted, and a rolling tail that
// is truncated from the head to stay within the model's token budget.
package chat

import (
	"errors"
	"iter"
	"log/slog"
)

// TokenCounter is the token accounting collaborator. Implementations
// count prompt tokens for a given model and report its context size.
type TokenCounter interface {
	CountTokens(model string, msgs []Message) int
	MaxContextSize(model string) int
}

// ErrContextOverflow is returned when the pinned preamble alone exceeds
// the budget left after reserving completion headroom. The conversation
// cannot proceed at that point.
var ErrContextOverflow = errors.New("chat: pinned preamble exceeds the token budget")

// EvictionPolicy controls how messages leave the head of the rolling tail.
type EvictionPolicy int

const (
	// EvictSingle drops one message at a time from the head.
	EvictSingle EvictionPolicy = iota
	// EvictPairwise drops two messages at a time so the user/assistant
	// alternation of the surviving tail is preserved.
	EvictPairwise
)

// Window owns the ordered message sequence sent to the model. It is not
// safe for concurrent use; each task owns exactly one window.
type Window struct {
	model    string
	max      int
	reserved int
	counter  TokenCounter
	policy   EvictionPolicy

	pinned       []Message
	pinnedTokens int
	rolling      []Message
}

// Option configures a Window.
type Option func(*Window)

// WithEviction selects the rolling-tail eviction policy.
func WithEviction(p EvictionPolicy) Option {
	return func(w *Window) { w.policy = p }
}

// NewWindow creates a window for the given model, looking up the model's
// context size through the counter and keeping reservedCompletionTokens
// of headroom for the model's reply.
func NewWindow(model string, reservedCompletionTokens int, counter TokenCounter, opts ...Option) *Window {
	w := &Window{
		model:    model,
		max:      counter.MaxContextSize(model),
		reserved: reservedCompletionTokens,
		counter:  counter,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// budget is the number of tokens usable for the prompt itself.
func (w *Window) budget() int { return w.max - w.reserved }

// AppendPinned appends messages to the pinned preamble and recomputes the
// preamble token count. Pinned messages are never evicted.
func (w *Window) AppendPinned(msgs ...Message) {
	w.pinned = append(w.pinned, msgs...)
	w.pinnedTokens = w.counter.CountTokens(w.model, w.pinned)
}

// AppendRolling appends one message to the rolling tail and evicts from
// the head until the window fits the budget again. A single rolling
// message is kept even when it alone exceeds the remainder. Returns the
// resulting length of the rolling tail.
//
// If the pinned preamble alone exceeds the budget, the rolling tail is
// cleared and ErrContextOverflow is returned.
func (w *Window) AppendRolling(m Message) (int, error) {
	w.rolling = append(w.rolling, m)
	return w.purge()
}

func (w *Window) purge() (int, error) {
	if w.pinnedTokens > w.budget() {
		w.rolling = nil
		return 0, ErrContextOverflow
	}
	for len(w.rolling) > 1 {
		used := w.pinnedTokens + w.counter.CountTokens(w.model, w.rolling)
		if used <= w.budget() {
			break
		}
		drop := 1
		if w.policy == EvictPairwise && len(w.rolling) > 2 {
			drop = 2
		}
		slog.Debug("evicting from rolling tail", "model", w.model, "used", used, "budget", w.budget(), "dropped", drop)
		w.rolling = w.rolling[drop:]
	}
	return len(w.rolling), nil
}

// Iterate returns a lazy, restartable sequence over the pinned preamble
// followed by the rolling tail, in insertion order.
func (w *Window) Iterate() iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for _, m := range w.pinned {
			if !yield(m) {
				return
			}
		}
		for _, m := range w.rolling {
			if !yield(m) {
				return
			}
		}
	}
}

// Messages returns a snapshot of the full window, pinned then rolling.
func (w *Window) Messages() []Message {
	out := make([]Message, 0, len(w.pinned)+len(w.rolling))
	for m := range w.Iterate() {
		out = append(out, m)
	}
	return out
}

// Render maps the window through the given formatter, one string per
// message, for display or logging.
func (w *Window) Render(f Formatter) []string {
	out := make([]string, 0, len(w.pinned)+len(w.rolling))
	for m := range w.Iterate() {
		out = append(out, f.Format(m))
	}
	return out
}

// PinnedTokens reports the token count of the pinned preamble.
func (w *Window) PinnedTokens() int { return w.pinnedTokens }

// RollingLen reports the current length of the rolling tail.
func (w *Window) RollingLen() int { return len(w.rolling) }
