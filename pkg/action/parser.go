// Package action extracts the single authoritative tool invocation from
// free-form model output. The model is expected to embed its action as a
// fenced YAML block with exactly the keys `command` and `input`; when
// several well-formed blocks appear, the bottom-most wins.
package action

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Invocation is one parsed action: the tool to run and its structured
// input. It is produced here and consumed once by the dispatcher.
type Invocation struct {
	Command string
	Input   any
}

// ExtractionError reports that no usable action block was found in the
// model's reply.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return "no action found: " + e.Reason
}

// ForbiddenFieldError reports an action block carrying a key the model
// must never produce — an `output` field would be the model fabricating
// a tool result for itself.
type ForbiddenFieldError struct {
	Field string
}

func (e *ForbiddenFieldError) Error() string {
	return fmt.Sprintf("action must not carry a %q field, only `command` and `input` are allowed", e.Field)
}

// fenceRE matches fenced code blocks tagged `yaml`, `yml` or untagged.
// Blocks tagged with another language never hold an action.
var fenceRE = regexp.MustCompile("(?s)```(?:ya?ml)?[ \t]*\\n(.*?)```")

// Parse scans text for fenced YAML blocks and returns the last candidate
// in document order that carries both a string `command` and an `input`
// key. A candidate with an `output` key fails with ForbiddenFieldError
// even if another valid block exists. Zero blocks, or blocks that never
// yield a candidate, fail with ExtractionError.
func Parse(text string) (*Invocation, error) {
	blocks := fenceRE.FindAllStringSubmatch(text, -1)
	if len(blocks) == 0 {
		return nil, &ExtractionError{Reason: "no fenced yaml block in the response"}
	}

	var last *Invocation
	var decodeErr error
	for _, block := range blocks {
		var doc map[string]any
		if err := yaml.Unmarshal([]byte(block[1]), &doc); err != nil {
			decodeErr = err
			continue
		}
		cmd, ok := doc["command"].(string)
		if !ok || cmd == "" {
			// Not an action block; tool-result echoes land here.
			continue
		}
		if _, forbidden := doc["output"]; forbidden {
			return nil, &ForbiddenFieldError{Field: "output"}
		}
		input, ok := doc["input"]
		if !ok {
			// A command without input is not a well-formed action.
			continue
		}
		last = &Invocation{Command: cmd, Input: input}
	}

	if last == nil {
		if decodeErr != nil {
			return nil, &ExtractionError{Reason: fmt.Sprintf("malformed yaml block: %v", decodeErr)}
		}
		return nil, &ExtractionError{Reason: "no block with `command` and `input` fields"}
	}
	return last, nil
}
