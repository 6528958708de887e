package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skilletlabs/skillet/pkg/assembly"
)

func TestSplitPrompt(t *testing.T) {
	pc := &assembly.PromptContext{Blocks: []assembly.Block{
		{Label: assembly.LabelInstructions, Title: "meeting-minutes-capture", Content: "Capture the minutes."},
		{Label: assembly.LabelKnowledge, Title: "risk/market/var-policy", Content: "policy body"},
		{Label: assembly.LabelHistory, Content: "User: hi\nAssistant: hello"},
		{Label: assembly.LabelInput, Content: "write it up"},
	}}

	system, conversation := SplitPrompt(pc)
	assert.Contains(t, system, "## meeting-minutes-capture")
	assert.Contains(t, system, "Capture the minutes.")
	assert.Contains(t, system, "## risk/market/var-policy")
	assert.Contains(t, system, "policy body")

	assert.Len(t, conversation, 2)
	assert.Equal(t, assembly.LabelHistory, conversation[0].Label)
	assert.Equal(t, assembly.LabelInput, conversation[1].Label)
}

func TestSplitPromptEmptySystem(t *testing.T) {
	pc := &assembly.PromptContext{Blocks: []assembly.Block{
		{Label: assembly.LabelInput, Content: "just a question"},
	}}
	system, conversation := SplitPrompt(pc)
	assert.Empty(t, system)
	assert.Len(t, conversation, 1)
}
