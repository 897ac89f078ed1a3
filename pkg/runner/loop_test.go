package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ooda/pkg/chat"
	"ooda/pkg/models"
	"ooda/pkg/tools"
)

// scriptedProvider replays canned replies and records every request.
type scriptedProvider struct {
	replies  []string
	err      error
	calls    int
	requests [][]chat.Message
}

func (p *scriptedProvider) List(context.Context) ([]string, error) {
	return []string{"stub-model"}, nil
}

func (p *scriptedProvider) Complete(_ context.Context, _ string, msgs []chat.Message, _ models.Options) (*models.Completion, error) {
	if p.err != nil {
		return nil, p.err
	}
	snapshot := make([]chat.Message, len(msgs))
	copy(snapshot, msgs)
	p.requests = append(p.requests, snapshot)

	reply := p.replies[len(p.replies)-1]
	if p.calls < len(p.replies) {
		reply = p.replies[p.calls]
	}
	p.calls++
	return &models.Completion{Text: reply}, nil
}

// flatCounter charges one token per message so window budgets stay out of
// the way in loop tests.
type flatCounter struct{}

func (flatCounter) CountTokens(_ string, msgs []chat.Message) int { return len(msgs) }
func (flatCounter) MaxContextSize(string) int                     { return 10000 }

type echoTool struct{}

func (echoTool) Describe() tools.Descriptor {
	return tools.Descriptor{Name: "Echo", Purpose: "Returns its input unchanged."}
}

func (echoTool) Invoke(_ context.Context, input any) (any, error) {
	return input, nil
}

type bigTool struct{}

func (bigTool) Describe() tools.Descriptor {
	return tools.Descriptor{Name: "Big", Purpose: "Returns a very large payload."}
}

func (bigTool) Invoke(context.Context, any) (any, error) {
	return map[string]any{"data": strings.Repeat("x", 5000)}, nil
}

type concludeTool struct {
	mu     sync.Mutex
	record *tools.Termination
}

func (t *concludeTool) Describe() tools.Descriptor {
	return tools.Descriptor{Name: "Conclude", Purpose: "Terminates the task."}
}

func (t *concludeTool) Invoke(_ context.Context, input any) (any, error) {
	in, err := tools.DecodeInput[struct {
		OriginalQuestion string `yaml:"original_question"`
		Conclusion       string `yaml:"conclusion"`
	}]("Conclude", input)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.record = &tools.Termination{OriginalQuestion: in.OriginalQuestion, Conclusion: in.Conclusion}
	t.mu.Unlock()
	return map[string]any{}, nil
}

func (t *concludeTool) TakeTermination() (tools.Termination, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.record == nil {
		return tools.Termination{}, false
	}
	rec := *t.record
	t.record = nil
	return rec, true
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	require.NoError(t, r.AddTool(echoTool{}))
	require.NoError(t, r.AddTool(bigTool{}))
	require.NoError(t, r.AddTerminalTool(&concludeTool{}))
	return r
}

func actionBlock(command, inputYAML string) string {
	return "## The ONLY Action:\n```yaml\ncommand: " + command + "\ninput:\n" + inputYAML + "```\n"
}

func TestLoopConcludesOnStepOne(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		actionBlock("Conclude", "  conclusion: \"42\"\n"),
	}}

	loop, err := New("What is the answer?", provider, testRegistry(t), flatCounter{}, Config{Model: "stub-model"})
	require.NoError(t, err)

	outcome, err := loop.Run(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.Concluded())
	assert.Equal(t, 1, outcome.Steps)
	require.Len(t, outcome.Terminations, 1)
	assert.Equal(t, "42", outcome.Terminations[0].Conclusion)
	assert.Equal(t, StateTerminal, loop.State())
}

func TestLoopRecoversFromMissingAction(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"I am thinking out loud without any action block.",
		actionBlock("Conclude", "  conclusion: done\n"),
	}}

	var events []Event
	loop, err := New("question", provider, testRegistry(t), flatCounter{}, Config{Model: "stub-model"},
		WithListener(ListenerFunc(func(e Event) { events = append(events, e) })))
	require.NoError(t, err)

	outcome, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Concluded())
	assert.Equal(t, 2, outcome.Steps, "parse failure must consume a step, not abort")

	// A corrective was fed back and the second request saw it.
	var corrective *Event
	for i := range events {
		if events[i].Kind == EventCorrective {
			corrective = &events[i]
			break
		}
	}
	require.NotNil(t, corrective)
	assert.Equal(t, 1, corrective.Step)
	assert.Contains(t, corrective.Text, "could not be parsed")

	require.Len(t, provider.requests, 2)
	secondPrompt := provider.requests[1]
	assert.Contains(t, secondPrompt[len(secondPrompt)-1].Content, "could not be parsed")
}

func TestLoopRecoversFromUnknownTool(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		actionBlock("NoSuchTool", "  x: 1\n"),
		actionBlock("Conclude", "  conclusion: done\n"),
	}}

	loop, err := New("question", provider, testRegistry(t), flatCounter{}, Config{Model: "stub-model"})
	require.NoError(t, err)

	outcome, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Concluded())
	assert.Equal(t, 2, outcome.Steps)

	secondPrompt := provider.requests[1]
	lastMsg := secondPrompt[len(secondPrompt)-1].Content
	assert.Contains(t, lastMsg, "NoSuchTool")
	assert.Contains(t, lastMsg, "tool not found")
}

func TestLoopReplacesOversizedToolResult(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		actionBlock("Big", "  anything: here\n"),
		actionBlock("Conclude", "  conclusion: done\n"),
	}}

	loop, err := New("question", provider, testRegistry(t), flatCounter{},
		Config{Model: "stub-model", MaxResponseBytes: 2048})
	require.NoError(t, err)

	outcome, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Concluded())

	secondPrompt := provider.requests[1]
	lastMsg := secondPrompt[len(secondPrompt)-1].Content
	assert.Contains(t, lastMsg, "too long")
	assert.NotContains(t, lastMsg, strings.Repeat("x", 5000), "raw oversized output must never reach the context")
}

func TestLoopIncompleteAfterMaxSteps(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		actionBlock("Echo", "  text: again\n"),
	}}

	loop, err := New("question", provider, testRegistry(t), flatCounter{},
		Config{Model: "stub-model", MaxSteps: 3})
	require.NoError(t, err)

	outcome, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, outcome.Concluded())
	assert.Equal(t, 3, outcome.Steps)
	assert.Equal(t, 3, provider.calls)
}

func TestLoopTransportErrorIsFatal(t *testing.T) {
	transportErr := errors.New("connection reset")
	provider := &scriptedProvider{err: transportErr}

	loop, err := New("question", provider, testRegistry(t), flatCounter{}, Config{Model: "stub-model"})
	require.NoError(t, err)

	_, err = loop.Run(context.Background())
	require.ErrorIs(t, err, transportErr)
	assert.Equal(t, StateFatal, loop.State())
}

func TestLoopSeedsPreambleAndTask(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		actionBlock("Conclude", "  conclusion: done\n"),
	}}

	loop, err := New("Count the moons of Mars.", provider, testRegistry(t), flatCounter{}, Config{Model: "stub-model"})
	require.NoError(t, err)

	_, err = loop.Run(context.Background())
	require.NoError(t, err)

	prompt := provider.requests[0]
	require.GreaterOrEqual(t, len(prompt), 8)
	assert.Equal(t, chat.RoleSystem, prompt[0].Role)
	assert.Contains(t, prompt[1].Content, "name: Conclude")
	assert.Contains(t, prompt[1].Content, "name: Echo")
	assert.Contains(t, prompt[len(prompt)-1].Content, "Count the moons of Mars.")
}
