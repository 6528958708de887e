// Package assembly composes resolved skill instructions, knowledge
// excerpts, and session history into one bounded prompt context. The
// core Assemble function is pure: all content arrives already resolved,
// and the output is an ordered sequence of labeled blocks so that final
// formatting stays a concern of the generation capability.
//
// Budget policy: only history is elastic. Skill instructions, knowledge
// excerpts, and the new input are never truncated; history is trimmed
// whole turns from the oldest end until the context fits or only the
// most recent turn remains, and that turn is never dropped. A request
// whose instructions plus new input alone exceed the budget is a
// validation error, never a silent degradation.
package assembly

import (
	"fmt"

	"github.com/skilletlabs/skillet/pkg/apperr"
	"github.com/skilletlabs/skillet/pkg/sessions"
)

// BlockLabel tags a prompt-context block with its role.
type BlockLabel string

const (
	LabelInstructions BlockLabel = "instructions"
	LabelKnowledge    BlockLabel = "knowledge"
	LabelHistory      BlockLabel = "history"
	LabelInput        BlockLabel = "input"
)

// Block is one labeled span of prompt text.
type Block struct {
	Label   BlockLabel `json:"label"`
	Title   string     `json:"title,omitempty"`
	Content string     `json:"content"`
}

// PromptContext is the assembler's output. Block order is fixed:
// instructions, knowledge in caller order, history oldest first, then
// the new input last.
type PromptContext struct {
	Blocks []Block `json:"blocks"`
}

// Size is the total content size in bytes.
func (pc *PromptContext) Size() int {
	total := 0
	for _, b := range pc.Blocks {
		total += len(b.Content)
	}
	return total
}

// Excerpt is one knowledge contribution: a reference for the block title
// and the caller-chosen text, full document or slice. The assembler
// never summarizes or reorders excerpts.
type Excerpt struct {
	Ref  string `json:"ref"`
	Text string `json:"text"`
}

// Request is the input to Assemble. Budget is in bytes of block content;
// zero means unbounded.
type Request struct {
	SkillName    string
	Instructions string
	Knowledge    []Excerpt
	History      []sessions.Turn
	NewInput     string
	Budget       int
}

// Assemble builds a PromptContext from already-resolved content.
func Assemble(req Request) (*PromptContext, error) {
	fixed := len(req.Instructions) + len(req.NewInput)
	if req.Budget > 0 && fixed > req.Budget {
		return nil, apperr.Validation("assembly.assemble", req.SkillName,
			"skill instructions plus input (%d bytes) exceed budget (%d bytes)", fixed, req.Budget)
	}

	pc := &PromptContext{}

	if req.Instructions != "" {
		pc.Blocks = append(pc.Blocks, Block{
			Label:   LabelInstructions,
			Title:   req.SkillName,
			Content: req.Instructions,
		})
	}
	for _, ex := range req.Knowledge {
		pc.Blocks = append(pc.Blocks, Block{
			Label:   LabelKnowledge,
			Title:   ex.Ref,
			Content: ex.Text,
		})
	}

	history := trimHistory(req.History, req.Budget, pc.Size()+len(req.NewInput))
	for i, turn := range history {
		pc.Blocks = append(pc.Blocks, Block{
			Label:   LabelHistory,
			Title:   fmt.Sprintf("turn %d", i+1),
			Content: renderTurn(turn),
		})
	}

	pc.Blocks = append(pc.Blocks, Block{Label: LabelInput, Content: req.NewInput})
	return pc, nil
}

// trimHistory drops turns from the oldest end, one at a time, until the
// total fits the budget or a single turn remains.
func trimHistory(history []sessions.Turn, budget, used int) []sessions.Turn {
	if budget <= 0 {
		return history
	}

	total := used
	for _, turn := range history {
		total += len(renderTurn(turn))
	}
	start := 0
	for total > budget && len(history)-start > 1 {
		total -= len(renderTurn(history[start]))
		start++
	}
	return history[start:]
}

func renderTurn(turn sessions.Turn) string {
	return "User: " + turn.Input + "\nAssistant: " + turn.Output
}
