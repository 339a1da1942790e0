// Package llmgateway is the single chat-completion abstraction every
// other component speaks through. It wraps a
// github.com/tmc/langchaingo llms.Model (an OpenAI-compatible chat
// endpoint), adds linear-backoff retries on empty content, and
// accumulates token usage into a process-wide atomic counter so
// concurrent pipeline calls never race on it.
package llmgateway

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Role mirrors the two message roles the pipeline ever sends.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat turn sent to Complete.
type Message struct {
	Role    Role
	Content string
}

// Usage is the token accounting for a single Complete call.
type Usage struct {
	Input  int
	Output int
}

// Completion is the result of one Complete call.
type Completion struct {
	Content string
	Usage   Usage
}

// Gateway is the process-wide LLM client. It is safe for concurrent use
// by multiple pipeline calls.
type Gateway struct {
	model      llms.Model
	maxRetries int

	totalInput  atomic.Int64
	totalOutput atomic.Int64
}

// New wraps an already-constructed langchaingo model, built once at
// startup and injected everywhere it's needed.
func New(model llms.Model) *Gateway {
	return &Gateway{model: model, maxRetries: 3}
}

// NewOpenAICompatible builds a Gateway over an OpenAI-compatible chat
// endpoint.
func NewOpenAICompatible(apiKey, baseURL, defaultModel string) (*Gateway, error) {
	opts := []openai.Option{openai.WithToken(apiKey)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if defaultModel != "" {
		opts = append(opts, openai.WithModel(defaultModel))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return New(model), nil
}

// CompletionUsage returns the process-wide accumulated token counts.
func (g *Gateway) CompletionUsage() Usage {
	return Usage{Input: int(g.totalInput.Load()), Output: int(g.totalOutput.Load())}
}

// Complete issues a chat completion, retrying up to three times on
// empty content with linear back-off. jsonMode requests a
// JSON-object response format where the underlying provider supports
// it; callers still run the response through ExtractJSON since the
// provider is treated as best-effort.
func (g *Gateway) Complete(ctx context.Context, messages []Message, model string, temperature float64, maxTokens int, jsonMode bool) (Completion, error) {
	parts := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		parts = append(parts, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}
	if jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
		}

		resp, err := g.model.GenerateContent(ctx, parts, opts...)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
			lastErr = ErrEmpty
			continue
		}

		choice := resp.Choices[0]
		usage := g.accountUsage(messages, choice)
		return Completion{Content: choice.Content, Usage: usage}, nil
	}

	if lastErr == nil {
		lastErr = ErrEmpty
	}
	return Completion{}, lastErr
}

func (g *Gateway) accountUsage(messages []Message, choice *llms.ContentChoice) Usage {
	var usage Usage
	if choice.GenerationInfo != nil {
		if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
			usage.Input = v
		}
		if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
			usage.Output = v
		}
	}
	if usage.Input == 0 && usage.Output == 0 {
		var promptText strings.Builder
		for _, m := range messages {
			promptText.WriteString(m.Content)
		}
		usage.Input = countTokens(promptText.String())
		usage.Output = countTokens(choice.Content)
	}
	g.totalInput.Add(int64(usage.Input))
	g.totalOutput.Add(int64(usage.Output))
	return usage
}

var tokenEncoder *tiktoken.Tiktoken

func countTokens(s string) int {
	if tokenEncoder == nil {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return len(strings.Fields(s))
		}
		tokenEncoder = enc
	}
	return len(tokenEncoder.Encode(s, nil, nil))
}
