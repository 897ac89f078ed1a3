// Package gemini implements models.Provider on the Google Gemini API.
//
// The agent speaks a plain-text protocol (actions embedded as fenced
// YAML blocks), so no function declarations are configured: the model
// sees the conversation as text and replies with text.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"ooda/pkg/chat"
	"ooda/pkg/models"
)

// LevelTrace is a custom log level for detailed HTTP traffic.
const LevelTrace = slog.Level(-8)

// Provider implements models.Provider using the Google Gemini API.
type Provider struct {
	client *genai.Client
}

var _ models.Provider = (*Provider)(nil)

// New creates a Gemini provider authenticated with the given API key.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	httpClient := &http.Client{
		Transport: &loggingTransport{
			base:   http.DefaultTransport,
			apiKey: apiKey,
		},
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return p.client.Close()
}

// List returns available models.
func (p *Provider) List(ctx context.Context) ([]string, error) {
	it := p.client.ListModels(ctx)
	var names []string
	for {
		model, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, strings.TrimPrefix(model.Name, "models/"))
	}
	return names, nil
}

// Complete sends the conversation and aggregates the streamed reply into
// one assistant message.
func (p *Provider) Complete(ctx context.Context, modelName string, messages []chat.Message, opts models.Options) (*models.Completion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("empty conversation")
	}
	slog.Debug("gemini completion", "model", modelName, "messages", len(messages))

	gm := p.client.GenerativeModel(modelName)
	if opts.Temperature > 0 {
		gm.SetTemperature(opts.Temperature)
	}
	if opts.MaxOutputTokens > 0 {
		gm.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
	}

	// Gemini has no system role in the turn sequence; system messages
	// become the system instruction, in order.
	var system []genai.Part
	var history []*genai.Content
	for _, m := range messages {
		if m.Role == chat.RoleSystem {
			system = append(system, genai.Text(m.Content))
			continue
		}
		role := "user"
		if m.Role == chat.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	if len(system) > 0 {
		gm.SystemInstruction = &genai.Content{Parts: system}
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("conversation has no user turns")
	}

	cs := gm.StartChat()
	cs.History = history[:len(history)-1]
	last := history[len(history)-1]

	it := cs.SendMessageStream(ctx, last.Parts...)

	var text strings.Builder
	var usage *models.Usage
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gemini stream: %w", err)
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if txt, ok := part.(genai.Text); ok {
					text.WriteString(string(txt))
				}
			}
		}
		if resp.UsageMetadata != nil {
			usage = &models.Usage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			}
		}
	}

	return &models.Completion{Text: text.String(), Usage: usage}, nil
}

// loggingTransport injects the API key when a custom client bypasses the
// library's automatic injection, and dumps traffic at trace level.
type loggingTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.apiKey != "" && req.Header.Get("x-goog-api-key") == "" && req.URL.Query().Get("key") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("x-goog-api-key", t.apiKey)
	}

	if !slog.Default().Enabled(req.Context(), LevelTrace) {
		return t.base.RoundTrip(req)
	}

	reqDump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		slog.Debug("failed to dump gemini request", "error", err)
	} else {
		slog.Debug("gemini request", "url", req.URL.String(), "dump", string(reqDump))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// For streaming responses, dumping the body would consume it.
	isStream := strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") ||
		strings.Contains(req.URL.Query().Get("alt"), "sse")

	respDump, err := httputil.DumpResponse(resp, !isStream)
	if err != nil {
		slog.Debug("failed to dump gemini response", "error", err)
	} else {
		slog.Debug("gemini response", "isStream", isStream, "dump", string(respDump))
	}

	return resp, nil
}
