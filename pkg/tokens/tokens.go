// Package tokens implements the token accounting collaborator on top of
// tiktoken-go. The cl100k_base encoding is initialized lazily; when it is
// unavailable (e.g. no cached BPE data), counting falls back to a
// rune/word heuristic so the window still degrades gracefully.
package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"ooda/pkg/chat"
)

// perMessageOverhead approximates the tokens spent on role markers and
// message separators in a chat-formatted prompt.
const perMessageOverhead = 4

// defaultContextSize is assumed for models missing from the table.
const defaultContextSize = 8192

// contextSizes maps model name prefixes to their context window, longest
// prefix wins.
var contextSizes = map[string]int{
	"gemini-2.5":       1048576,
	"gemini-2.0":       1048576,
	"gemini-1.5-pro":   2097152,
	"gemini-1.5-flash": 1048576,
	"gpt-4o":           128000,
	"gpt-4-32k":        32768,
	"gpt-4":            8192,
	"gpt-3.5-turbo":    16385,
}

// Counter counts tokens with the cl100k_base encoding.
type Counter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewCounter returns a Counter. Encoding setup is deferred to first use.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) enc() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.encoding = enc
		}
	})
	return c.encoding
}

// CountTokens counts the prompt tokens of the given messages, including
// the structural overhead of each message.
func (c *Counter) CountTokens(_ string, msgs []chat.Message) int {
	n := 0
	for _, m := range msgs {
		n += perMessageOverhead + c.countText(m.Content)
	}
	return n
}

func (c *Counter) countText(text string) int {
	if enc := c.enc(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateFast(text)
}

// MaxContextSize reports the context window of the given model, matching
// by the longest known prefix.
func (c *Counter) MaxContextSize(model string) int {
	best, size := 0, defaultContextSize
	for prefix, n := range contextSizes {
		if strings.HasPrefix(model, prefix) && len(prefix) > best {
			best, size = len(prefix), n
		}
	}
	return size
}

// EstimateFast returns a heuristic token estimate: max(runes/4, words).
func EstimateFast(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

var _ chat.TokenCounter = (*Counter)(nil)
