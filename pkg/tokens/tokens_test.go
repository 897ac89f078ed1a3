package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ooda/pkg/chat"
)

func TestEstimateFast(t *testing.T) {
	assert.Equal(t, 0, EstimateFast(""))
	assert.Equal(t, 0, EstimateFast("   \n\t"))
	assert.Equal(t, 1, EstimateFast("hi"))
	// 5 words beat runes/4 for short words.
	assert.Equal(t, 5, EstimateFast("a b c d e"))
	// Long runs of text settle around runes/4.
	long := EstimateFast("abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz")
	assert.Equal(t, 13, long)
}

func TestMaxContextSizeLongestPrefixWins(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, 2097152, c.MaxContextSize("gemini-1.5-pro-002"))
	assert.Equal(t, 1048576, c.MaxContextSize("gemini-1.5-flash-8b"))
	assert.Equal(t, 32768, c.MaxContextSize("gpt-4-32k-0613"))
	assert.Equal(t, 8192, c.MaxContextSize("gpt-4-0613"))
	assert.Equal(t, defaultContextSize, c.MaxContextSize("some-unknown-model"))
}

func TestCountTokensIncludesOverhead(t *testing.T) {
	c := NewCounter()
	msgs := []chat.Message{
		{Role: chat.RoleSystem, Content: "You are an agent."},
		{Role: chat.RoleUser, Content: "Hello there."},
	}
	n := c.CountTokens("gpt-4", msgs)
	// Whatever the encoding backend, two messages cost at least their
	// structural overhead plus something for the text.
	assert.Greater(t, n, 2*perMessageOverhead)

	// Counting is stable for the same input.
	assert.Equal(t, n, c.CountTokens("gpt-4", msgs))

	// More text never counts fewer tokens.
	msgs[1].Content += " And a longer continuation of the sentence."
	assert.GreaterOrEqual(t, c.CountTokens("gpt-4", msgs), n)
}
