package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleAction(t *testing.T) {
	text := "## Decision:\n- run some code\n## The ONLY Action:\n```yaml\ncommand: SandboxedPython\ninput:\n  code: |\n    print(\"hello\")\n```\n"

	inv, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "SandboxedPython", inv.Command)

	input, ok := inv.Input.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "print(\"hello\")\n", input["code"])
}

func TestParseLastBlockWins(t *testing.T) {
	text := "```yaml\ncommand: First\ninput:\n  n: 1\n```\nsome prose\n```yaml\ncommand: Second\ninput:\n  n: 2\n```\n"

	inv, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "Second", inv.Command)
}

func TestParseUntaggedBlock(t *testing.T) {
	text := "```\ncommand: Conclude\ninput:\n  conclusion: done\n```\n"

	inv, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "Conclude", inv.Command)
}

func TestParseIgnoresOtherLanguages(t *testing.T) {
	text := "```python\ncommand = \"not an action\"\n```\n"

	_, err := Parse(text)
	var extraction *ExtractionError
	require.ErrorAs(t, err, &extraction)
}

func TestParseNoBlocks(t *testing.T) {
	_, err := Parse("I think the answer is 42, let me reason about it some more.")
	var extraction *ExtractionError
	require.ErrorAs(t, err, &extraction)
}

func TestParseOutputFieldForbidden(t *testing.T) {
	// Even with a perfectly valid block present, a candidate that
	// fabricates its own output is a hard error.
	text := "```yaml\ncommand: Echo\ninput:\n  text: hi\n```\n```yaml\ncommand: Echo\ninput:\n  text: hi\noutput:\n  text: hi\n```\n"

	_, err := Parse(text)
	var forbidden *ForbiddenFieldError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, "output", forbidden.Field)
}

func TestParseSkipsResultEchoes(t *testing.T) {
	// A tool-result echo (no command key) must not shadow the action.
	text := "# Action SandboxedPython result:\n```yaml\nstdout: |\n  The sorted list is [1, 2, 3]\nstderr: ''\n```\n## The ONLY Action:\n```yaml\ncommand: Conclude\ninput:\n  conclusion: sorted\n```\n"

	inv, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "Conclude", inv.Command)
}

func TestParseRequiresInputKey(t *testing.T) {
	// A command with no input key is not a well-formed action and must
	// not shadow an earlier complete one.
	text := "```yaml\ncommand: Echo\ninput:\n  text: hi\n```\n```yaml\ncommand: Conclude\n```\n"

	inv, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "Echo", inv.Command)
}

func TestParseCommandWithoutInputAlone(t *testing.T) {
	_, err := Parse("```yaml\ncommand: Conclude\n```\n")
	var extraction *ExtractionError
	require.ErrorAs(t, err, &extraction)
}

func TestParseMalformedOnly(t *testing.T) {
	text := "```yaml\ncommand: [unclosed\ninput: {\n```\n"

	_, err := Parse(text)
	var extraction *ExtractionError
	require.ErrorAs(t, err, &extraction)
	assert.Contains(t, err.Error(), "malformed")
}

func TestParseMalformedBlockBesideValidOne(t *testing.T) {
	text := "```yaml\n\t\tnot: valid\n```\n```yaml\ncommand: Echo\ninput: {}\n```\n"

	inv, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "Echo", inv.Command)
}
