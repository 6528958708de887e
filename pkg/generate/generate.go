// Package generate defines the boundary contract to the external text
// generation capability. The core assembles a PromptContext and hands it
// over; everything past that line (providers, retries, timeouts) lives
// behind the Generator interface, and failures come back as opaque
// generation errors that the core propagates without interpreting.
package generate

import (
	"context"
	"strings"

	"github.com/skilletlabs/skillet/pkg/assembly"
)

// Chunk is one piece of a streamed generation. The stream ends when the
// channel closes; Err, if set on the final chunk, reports why.
type Chunk struct {
	Text string
	Err  error
}

// Generator produces text from an assembled prompt context.
type Generator interface {
	Generate(ctx context.Context, prompt *assembly.PromptContext) (string, error)
	GenerateStream(ctx context.Context, prompt *assembly.PromptContext) (<-chan Chunk, error)
}

// SplitPrompt separates a prompt context into the system text
// (instructions and knowledge) and the conversational blocks (history
// and input), the shape most chat-style providers want.
func SplitPrompt(prompt *assembly.PromptContext) (system string, conversation []assembly.Block) {
	var sb strings.Builder
	for _, block := range prompt.Blocks {
		switch block.Label {
		case assembly.LabelInstructions, assembly.LabelKnowledge:
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			if block.Title != "" {
				sb.WriteString("## " + block.Title + "\n\n")
			}
			sb.WriteString(block.Content)
		default:
			conversation = append(conversation, block)
		}
	}
	return sb.String(), conversation
}
