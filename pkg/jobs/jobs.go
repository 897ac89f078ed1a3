// Package jobs runs task loops asynchronously and streams their
// progress to front ends.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ooda/pkg/chat"
	"ooda/pkg/models"
	"ooda/pkg/runner"
	"ooda/pkg/tools"
	"ooda/pkg/trace"
)

// Job identifies one submitted question.
type Job struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

// UpdateKind classifies the updates a job emits.
type UpdateKind string

const (
	UpdateAssistant  UpdateKind = "assistant"
	UpdateToolResult UpdateKind = "tool_result"
	UpdateCorrective UpdateKind = "corrective"
	UpdateTerminated UpdateKind = "terminated"
	UpdateIncomplete UpdateKind = "incomplete"
	UpdateFailed     UpdateKind = "failed"
)

// Update is one progress report from a running job. Terminated,
// incomplete and failed updates are always the last one sent.
type Update struct {
	JobID string     `json:"job_id"`
	Step  int        `json:"step,omitempty"`
	Kind  UpdateKind `json:"kind"`
	Tool  string     `json:"tool,omitempty"`
	Text  string     `json:"text,omitempty"`
}

// RegistryFactory builds a fresh tool registry for one job. Registries
// hold per-task state (terminal latches, sandbox bindings) and must
// never be shared between jobs.
type RegistryFactory func(jobID string) (*tools.Registry, error)

// Service owns the shared pieces every job needs.
type Service struct {
	provider models.Provider
	counter  chat.TokenCounter
	factory  RegistryFactory
	cfg      runner.Config
	traceDir string
	cleanup  func(jobID string)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCleanup registers a hook that runs after a job finishes, for
// releasing per-job resources such as sandbox containers.
func WithCleanup(fn func(jobID string)) ServiceOption {
	return func(s *Service) { s.cleanup = fn }
}

// NewService wires a job service. traceDir may be empty to disable
// transcript persistence.
func NewService(provider models.Provider, counter chat.TokenCounter, factory RegistryFactory, cfg runner.Config, traceDir string, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		counter:  counter,
		factory:  factory,
		cfg:      cfg,
		traceDir: traceDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// updateBuffer bounds how far a slow consumer can lag before updates
// are dropped.
const updateBuffer = 64

// Submit starts a job and returns its update stream. The channel is
// closed after the final update. ctx covers setup only: a running job
// outlives its submitting request and is bounded by the loop's step
// limit, not by the caller's lifetime. Progress updates that cannot be
// delivered without blocking are dropped with a warning; the terminal
// update is always delivered before the channel closes.
func (s *Service) Submit(_ context.Context, question string) (*Job, <-chan Update, error) {
	job := &Job{ID: uuid.New().String(), Question: question}

	registry, err := s.factory(job.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("building registry: %w", err)
	}

	// Progress sends keep one slot free so the terminal update can
	// never block or be dropped, even against a full buffer.
	updates := make(chan Update, updateBuffer)
	send := func(u Update) {
		u.JobID = job.ID
		if len(updates) >= cap(updates)-1 {
			slog.Warn("dropping job update", "job_id", job.ID, "kind", u.Kind)
			return
		}
		updates <- u
	}

	var recorder *trace.Recorder
	listeners := []runner.Listener{runner.ListenerFunc(func(ev runner.Event) {
		send(Update{Step: ev.Step, Kind: UpdateKind(ev.Kind), Tool: ev.Tool, Text: ev.Text})
	})}
	if s.traceDir != "" {
		recorder, err = trace.NewRecorder(s.traceDir, job.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("opening trace: %w", err)
		}
		listeners = append(listeners, recorder.Listener())
	}

	loop, err := runner.New(question, s.provider, registry, s.counter, s.cfg,
		runner.WithListener(fanout(listeners)))
	if err != nil {
		if recorder != nil {
			recorder.Close()
		}
		return nil, nil, fmt.Errorf("creating loop: %w", err)
	}

	go func() {
		defer close(updates)
		if s.cleanup != nil {
			defer s.cleanup(job.ID)
		}
		if recorder != nil {
			defer recorder.Close()
		}

		// send reserves the last buffer slot, so the terminal update
		// always lands without blocking.
		deliver := func(u Update) {
			u.JobID = job.ID
			updates <- u
		}

		outcome, err := loop.Run(context.Background())
		switch {
		case err != nil:
			slog.Error("job failed", "job_id", job.ID, "error", err)
			deliver(Update{Kind: UpdateFailed, Text: err.Error()})
		case outcome.Concluded():
			deliver(Update{
				Step: outcome.Steps,
				Kind: UpdateTerminated,
				Text: conclusions(outcome.Terminations),
			})
		default:
			deliver(Update{
				Step: outcome.Steps,
				Kind: UpdateIncomplete,
				Text: "the task did not conclude within the step limit",
			})
		}
	}()

	return job, updates, nil
}

type fanout []runner.Listener

func (f fanout) OnEvent(e runner.Event) {
	for _, l := range f {
		l.OnEvent(e)
	}
}

// conclusions joins every termination record's conclusion; a step
// normally produces one, but the loop may collect several terminal
// signals in a single round.
func conclusions(records []tools.Termination) string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Conclusion)
	}
	return strings.Join(out, "\n")
}
