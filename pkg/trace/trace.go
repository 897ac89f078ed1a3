// Package trace persists task transcripts as append-only JSONL files,
// one file per task, for offline inspection and debugging.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ooda/pkg/runner"
)

// Entry is one line of a task trace file.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	TaskID    string    `json:"task_id"`
	Step      int       `json:"step,omitempty"`
	Kind      string    `json:"kind"`
	Tool      string    `json:"tool,omitempty"`
	Text      string    `json:"text,omitempty"`
}

// Recorder appends entries for one task to a JSONL file. It is safe for
// concurrent use, though the loop emits events sequentially.
type Recorder struct {
	mu     sync.Mutex
	taskID string
	file   *os.File
	w      *bufio.Writer
}

// NewRecorder creates the trace directory if needed and opens a fresh
// file named after the task.
func NewRecorder(dir, taskID string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating trace dir: %w", err)
	}
	path := filepath.Join(dir, taskID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	return &Recorder{taskID: taskID, file: f, w: bufio.NewWriter(f)}, nil
}

// Append writes one entry, stamping the task ID and time.
func (r *Recorder) Append(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.TaskID = r.taskID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling trace entry: %w", err)
	}
	if _, err := r.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing trace entry: %w", err)
	}
	return r.w.Flush()
}

// Listener adapts the recorder to the loop's event stream. Write
// failures are swallowed; tracing never interrupts a running task.
func (r *Recorder) Listener() runner.Listener {
	return runner.ListenerFunc(func(ev runner.Event) {
		_ = r.Append(Entry{
			Step: ev.Step,
			Kind: string(ev.Kind),
			Tool: ev.Tool,
			Text: ev.Text,
		})
	})
}

// Close flushes and closes the underlying file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Flush(); err != nil {
		return err
	}
	return r.file.Close()
}

// Read loads every entry of a task's trace file in order.
func Read(dir, taskID string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, taskID+".jsonl"))
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("parsing trace entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace file: %w", err)
	}
	return entries, nil
}
