// Package prompt builds the pinned preamble that teaches the model the
// loop protocol, and the recurring per-task prompts. The preamble is the
// model's only way to learn the exact action-block syntax and the
// one-action-per-turn rule, so it carries a fixed worked example.
package prompt

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"ooda/pkg/chat"
	"ooda/pkg/tools"
)

const systemPrompt = "You are an automated agent named Otto interacting with the WORLD. Listen to the WORLD!"

const prefix = `You are Otto, a large language model assisting the WORLD. Use available tools to answer the question as best as you can.
You will proceed iteratively using an OODA loop.

Action result will be provided to you. The loop will repeat until you have the answer to the original question. No task is complete until the Conclude tool is used to provide the answer.
You cannot use templating in your response. Be concise.
`

const toolPrefix = `
# The following are the ONLY Tools you can use for your Actions:
`

const format = `
# Format of your response

Please use the following format for your response - no need to be verbose. Comments are in bold and should be removed from your response.
====================
## Observations:
**What do you know to be true? What do you not know? What are your sources? Note down important information for later.**
- ...
## Orientation:
**Plan the intermediate objectives to answer the original question. Maintain a list of current objectives updated as you go.**
- ...
## Decision:
**Decide what to do first to answer the question. Why? How will you know if it succeeds? How will you know if it fails?**
- ...
## The ONLY Action:
**Take a single Action consisting of exactly one tool invocation (` + "`command` and `input`" + `). The available Tools are listed below. Use the Conclude tool when you have the final answer to the original question. Never give more than one ` + "`command`" + ` and one ` + "`input`" + ` field. Never give more than one YAML block.**
` + "```yaml" + `
command: <ToolName>
input:
  <... using the input_format for the Tool ...>
` + "```" + `
====================
`

const exampleQuestion = "Sort in ascending order: [2, 3, 1, 4, 5]"

const exampleAction = `## Observations:
- The given list to sort is [2, 3, 1, 4, 5].
- I need to sort this list in ascending order.
## Orientation:
- SandboxedPython can be used to sort the list.
- I need to use the Conclude tool to terminate the task when I have the sorted list.
- I need to provide the conclusion in plain text to the Conclude tool.
## Decision:
- We can use the sorted() function of Python to sort the list.
## The ONLY Action:
` + "```yaml" + `
command: SandboxedPython
input:
  code: |
    lst = [2, 3, 1, 4, 5]
    sorted_list = sorted(lst)
    print(f"The sorted list is {sorted_list}")
` + "```"

const exampleResult = `# Action SandboxedPython result:
` + "```yaml" + `
stdout: |
  The sorted list is [1, 2, 3, 4, 5]
stderr: ''
` + "```"

const exampleConclusion = `## Observations:
- We needed to sort the list in ascending order.
- We have the result of the Action.
- We have the sorted list: [1, 2, 3, 4, 5].
## Orientation:
- I know the answer to the original question.
## Decision:
- Use the Conclude tool to terminate the task with the sorted list.
## The ONLY Action:
` + "```yaml" + `
command: Conclude
input:
  original_question: |
    Sort in ascending order: [2, 3, 1, 4, 5]
  conclusion: |
    The ascending sorted list is [1, 2, 3, 4, 5].
` + "```"

// renderDescriptors serializes tool descriptors as a YAML list. Callers
// pass them pre-sorted by name for determinism.
func renderDescriptors(descriptors []tools.Descriptor) (string, error) {
	raw, err := yaml.Marshal(descriptors)
	if err != nil {
		return "", fmt.Errorf("serialize tool descriptors: %w", err)
	}
	return toolPrefix + string(raw), nil
}

// Preamble builds the pinned messages seeding every task: the persona,
// the warm-up prompt with response format and tool descriptors, an
// assistant acknowledgment, and one fixed worked example.
func Preamble(descriptors []tools.Descriptor) ([]chat.Message, error) {
	toolDesc, err := renderDescriptors(descriptors)
	if err != nil {
		return nil, err
	}
	warmUp := prefix + format + toolDesc
	example := Task{Question: exampleQuestion}

	return []chat.Message{
		{Role: chat.RoleSystem, Content: systemPrompt},
		{Role: chat.RoleUser, Content: strings.TrimSpace(warmUp)},
		{Role: chat.RoleAssistant, Content: "Understood."},
		{Role: chat.RoleUser, Content: example.Turn()},
		{Role: chat.RoleAssistant, Content: exampleAction},
		{Role: chat.RoleUser, Content: exampleResult + "\n" + example.Turn()},
		{Role: chat.RoleAssistant, Content: exampleConclusion},
	}, nil
}
