// Package models abstracts the model completion collaborator: a service
// that turns an ordered conversation into a single assistant message.
package models

import (
	"context"

	"ooda/pkg/chat"
)

// Options are the sampling parameters for one completion call.
type Options struct {
	// Temperature of 0 means provider default.
	Temperature float32
	// MaxOutputTokens caps the reply; it matches the completion headroom
	// reserved in the context window.
	MaxOutputTokens int
}

// Usage reports the provider's token accounting when available.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a single assistant reply.
type Completion struct {
	Text  string
	Usage *Usage
}

// Provider represents a service that provides LLMs (e.g. Gemini, OpenAI).
// Complete must honor ctx cancellation and deadlines; transport failures
// are returned as-is and treated as fatal by the caller.
type Provider interface {
	// List returns the names of available models.
	List(ctx context.Context) ([]string, error)

	// Complete sends the conversation and returns one assistant message.
	Complete(ctx context.Context, modelName string, messages []chat.Message, opts Options) (*Completion, error)
}
