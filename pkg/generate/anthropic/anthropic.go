// Package anthropic implements the generate.Generator contract against
// the Anthropic Messages API.
package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/avast/retry-go/v4"

	"github.com/skilletlabs/skillet/pkg/apperr"
	"github.com/skilletlabs/skillet/pkg/assembly"
	"github.com/skilletlabs/skillet/pkg/generate"
)

const (
	defaultModel     = anthropic.Model("claude-sonnet-4-5-20250929")
	defaultMaxTokens = 4096
	maxAttempts      = 3
)

// Generator calls the Anthropic Messages API.
type Generator struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel overrides the model.
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = anthropic.Model(model)
		}
	}
}

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int64) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// New creates a Generator. apiKey may be empty, in which case the SDK
// falls back to ANTHROPIC_API_KEY.
func New(apiKey string, opts ...Option) *Generator {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}

	g := &Generator{
		client:    anthropic.NewClient(clientOpts...),
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements generate.Generator.
func (g *Generator) Generate(ctx context.Context, prompt *assembly.PromptContext) (string, error) {
	params := g.params(prompt)

	var msg *anthropic.Message
	err := retry.Do(
		func() error {
			var apiErr error
			msg, apiErr = g.client.Messages.New(ctx, params)
			return apiErr
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", apperr.Generation("generate.anthropic", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// GenerateStream implements generate.Generator. The returned channel is
// closed when the provider signals the end of the message; a failure is
// delivered as the final chunk's Err.
func (g *Generator) GenerateStream(ctx context.Context, prompt *assembly.PromptContext) (<-chan generate.Chunk, error) {
	stream := g.client.Messages.NewStreaming(ctx, g.params(prompt))

	chunks := make(chan generate.Chunk)
	go func() {
		defer close(chunks)
		defer func() { _ = stream.Close() }()

		for stream.Next() {
			event := stream.Current()
			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if evt.ContentBlock.Text != "" {
					chunks <- generate.Chunk{Text: evt.ContentBlock.Text}
				}
			case anthropic.ContentBlockDeltaEvent:
				if evt.Delta.Text != "" {
					chunks <- generate.Chunk{Text: evt.Delta.Text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			chunks <- generate.Chunk{Err: apperr.Generation("generate.anthropic_stream", err)}
		}
	}()

	return chunks, nil
}

func (g *Generator) params(prompt *assembly.PromptContext) anthropic.MessageNewParams {
	system, conversation := generate.SplitPrompt(prompt)

	messages := make([]anthropic.MessageParam, 0, len(conversation)*2)
	for _, block := range conversation {
		switch block.Label {
		case assembly.LabelHistory:
			input, output := splitTurn(block.Content)
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(input)))
			if output != "" {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(output)))
			}
		case assembly.LabelInput:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(block.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

// splitTurn undoes the assembler's turn rendering.
func splitTurn(content string) (input, output string) {
	content = strings.TrimPrefix(content, "User: ")
	if idx := strings.Index(content, "\nAssistant: "); idx >= 0 {
		return content[:idx], content[idx+len("\nAssistant: "):]
	}
	return content, ""
}
