package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ooda/pkg/chat"
	"ooda/pkg/models"
	"ooda/pkg/runner"
	"ooda/pkg/tools"
	"ooda/pkg/trace"
)

type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	calls   int
	err     error
}

func (p *scriptedProvider) List(context.Context) ([]string, error) { return nil, nil }

func (p *scriptedProvider) Complete(ctx context.Context, _ string, _ []chat.Message, _ models.Options) (*models.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	reply := p.replies[p.calls%len(p.replies)]
	p.calls++
	return &models.Completion{Text: reply}, nil
}

type flatCounter struct{}

func (flatCounter) CountTokens(_ string, msgs []chat.Message) int { return len(msgs) }
func (flatCounter) MaxContextSize(string) int                     { return 10000 }

type doneTool struct {
	mu     sync.Mutex
	name   string
	record *tools.Termination
}

func (d *doneTool) Describe() tools.Descriptor {
	if d.name == "" {
		return tools.Descriptor{Name: "Done"}
	}
	return tools.Descriptor{Name: d.name}
}

func (d *doneTool) Invoke(_ context.Context, input any) (any, error) {
	in, err := tools.DecodeInput[tools.Termination]("Done", input)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.record = &in
	d.mu.Unlock()
	return map[string]any{}, nil
}

func (d *doneTool) TakeTermination() (tools.Termination, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record == nil {
		return tools.Termination{}, false
	}
	rec := *d.record
	d.record = nil
	return rec, true
}

func concludeReply(answer string) string {
	return fmt.Sprintf("## The ONLY Action:\n```yaml\ncommand: Done\ninput:\n  original_question: q\n  conclusion: %q\n```\n", answer)
}

func newFactory(t *testing.T) (RegistryFactory, *[]string) {
	t.Helper()
	ids := &[]string{}
	factory := func(jobID string) (*tools.Registry, error) {
		*ids = append(*ids, jobID)
		reg := tools.NewRegistry()
		if err := reg.AddTerminalTool(&doneTool{}); err != nil {
			return nil, err
		}
		return reg, nil
	}
	return factory, ids
}

func drain(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	var all []Update
	for u := range updates {
		all = append(all, u)
	}
	return all
}

func TestSubmitStreamsUntilTerminated(t *testing.T) {
	provider := &scriptedProvider{replies: []string{concludeReply("42")}}
	factory, _ := newFactory(t)
	svc := NewService(provider, flatCounter{}, factory, runner.Config{Model: "test", MaxSteps: 3}, "")

	job, updates, err := svc.Submit(context.Background(), "What is 6*7?")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "What is 6*7?", job.Question)

	all := drain(t, updates)
	require.NotEmpty(t, all)
	last := all[len(all)-1]
	assert.Equal(t, UpdateTerminated, last.Kind)
	assert.Equal(t, "42", last.Text)
	assert.Equal(t, job.ID, last.JobID)
}

func TestSubmitReportsProviderFailure(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream unavailable")}
	factory, _ := newFactory(t)
	svc := NewService(provider, flatCounter{}, factory, runner.Config{Model: "test", MaxSteps: 3}, "")

	_, updates, err := svc.Submit(context.Background(), "q")
	require.NoError(t, err)

	all := drain(t, updates)
	require.NotEmpty(t, all)
	assert.Equal(t, UpdateFailed, all[len(all)-1].Kind)
	assert.Contains(t, all[len(all)-1].Text, "upstream unavailable")
}

func TestSubmitReportsIncompleteAfterStepLimit(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"I am still thinking, no action yet."}}
	factory, _ := newFactory(t)
	svc := NewService(provider, flatCounter{}, factory, runner.Config{Model: "test", MaxSteps: 2}, "")

	_, updates, err := svc.Submit(context.Background(), "q")
	require.NoError(t, err)

	all := drain(t, updates)
	require.NotEmpty(t, all)
	assert.Equal(t, UpdateIncomplete, all[len(all)-1].Kind)
}

func TestJobOutlivesSubmitContext(t *testing.T) {
	// The provider refuses canceled contexts, so this only concludes if
	// the job runs detached from the caller's lifetime — and the
	// terminal update must still arrive before the channel closes.
	provider := &scriptedProvider{replies: []string{concludeReply("42")}}
	factory, _ := newFactory(t)
	svc := NewService(provider, flatCounter{}, factory, runner.Config{Model: "test", MaxSteps: 3}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, updates, err := svc.Submit(ctx, "q")
	require.NoError(t, err)

	all := drain(t, updates)
	require.NotEmpty(t, all)
	last := all[len(all)-1]
	assert.Equal(t, UpdateTerminated, last.Kind)
	assert.Equal(t, "42", last.Text)
}

func TestTerminatedUpdateCarriesEveryConclusion(t *testing.T) {
	provider := &scriptedProvider{replies: []string{concludeReply("first answer")}}

	// A second terminal tool with a pre-latched record: the poll after
	// the dispatched tool fires collects both.
	factory := func(string) (*tools.Registry, error) {
		reg := tools.NewRegistry()
		if err := reg.AddTerminalTool(&doneTool{}); err != nil {
			return nil, err
		}
		latched := &doneTool{name: "Also", record: &tools.Termination{Conclusion: "second answer"}}
		if err := reg.AddTerminalTool(latched); err != nil {
			return nil, err
		}
		return reg, nil
	}
	svc := NewService(provider, flatCounter{}, factory, runner.Config{Model: "test", MaxSteps: 3}, "")

	_, updates, err := svc.Submit(context.Background(), "q")
	require.NoError(t, err)

	all := drain(t, updates)
	require.NotEmpty(t, all)
	last := all[len(all)-1]
	assert.Equal(t, UpdateTerminated, last.Kind)
	assert.Contains(t, last.Text, "first answer")
	assert.Contains(t, last.Text, "second answer")
}

func TestEachJobGetsItsOwnRegistry(t *testing.T) {
	provider := &scriptedProvider{replies: []string{concludeReply("done")}}
	factory, ids := newFactory(t)
	svc := NewService(provider, flatCounter{}, factory, runner.Config{Model: "test", MaxSteps: 3}, "")

	job1, u1, err := svc.Submit(context.Background(), "first")
	require.NoError(t, err)
	job2, u2, err := svc.Submit(context.Background(), "second")
	require.NoError(t, err)

	drain(t, u1)
	drain(t, u2)

	assert.NotEqual(t, job1.ID, job2.ID)
	assert.ElementsMatch(t, []string{job1.ID, job2.ID}, *ids)
}

func TestCleanupRunsAfterJobFinishes(t *testing.T) {
	provider := &scriptedProvider{replies: []string{concludeReply("done")}}
	factory, _ := newFactory(t)

	var mu sync.Mutex
	var cleaned []string
	svc := NewService(provider, flatCounter{}, factory, runner.Config{Model: "test", MaxSteps: 3}, "",
		WithCleanup(func(jobID string) {
			mu.Lock()
			cleaned = append(cleaned, jobID)
			mu.Unlock()
		}))

	job, updates, err := svc.Submit(context.Background(), "q")
	require.NoError(t, err)
	drain(t, updates)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{job.ID}, cleaned)
}

func TestSubmitWritesTrace(t *testing.T) {
	dir := t.TempDir()
	provider := &scriptedProvider{replies: []string{concludeReply("42")}}
	factory, _ := newFactory(t)
	svc := NewService(provider, flatCounter{}, factory, runner.Config{Model: "test", MaxSteps: 3}, dir)

	job, updates, err := svc.Submit(context.Background(), "q")
	require.NoError(t, err)
	drain(t, updates)

	entries, err := trace.Read(dir, job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	assert.Equal(t, job.ID, entries[0].TaskID)
}
