package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ooda/pkg/runner"
)

func TestRecorderRoundTrip(t *testing.T) {
	dir := t.TempDir()

	rec, err := NewRecorder(dir, "task-1")
	require.NoError(t, err)

	require.NoError(t, rec.Append(Entry{Step: 1, Kind: "assistant", Text: "thinking"}))
	require.NoError(t, rec.Append(Entry{Step: 1, Kind: "tool_result", Tool: "Echo", Text: "hi"}))
	require.NoError(t, rec.Close())

	entries, err := Read(dir, "task-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "task-1", entries[0].TaskID)
	assert.Equal(t, "assistant", entries[0].Kind)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.Equal(t, "Echo", entries[1].Tool)
}

func TestListenerRecordsLoopEvents(t *testing.T) {
	dir := t.TempDir()

	rec, err := NewRecorder(dir, "task-2")
	require.NoError(t, err)

	l := rec.Listener()
	l.OnEvent(runner.Event{Step: 1, Kind: runner.EventAssistant, Text: "reply"})
	l.OnEvent(runner.Event{Step: 1, Kind: runner.EventTerminated, Tool: "Conclude", Text: "done"})
	require.NoError(t, rec.Close())

	entries, err := Read(dir, "task-2")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, string(runner.EventAssistant), entries[0].Kind)
	assert.Equal(t, string(runner.EventTerminated), entries[1].Kind)
	assert.Equal(t, "Conclude", entries[1].Tool)
}

func TestReadMissingFileFails(t *testing.T) {
	_, err := Read(t.TempDir(), "nope")
	assert.Error(t, err)
}
