package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilletlabs/skillet/pkg/apperr"
)

func TestParseWithFrontMatter(t *testing.T) {
	doc := `---
name: meeting-minutes-capture
domain: change-agent
category: meeting-management
tags:
  - meetings
  - governance
---

# Meeting Minutes Capture

Record decisions and action items.
`
	m, body, err := Parse(doc)
	require.NoError(t, err)
	assert.True(t, m.Present)
	assert.Equal(t, "meeting-minutes-capture", m.Fields["name"])
	assert.Equal(t, "change-agent", m.Fields["domain"])
	assert.Equal(t, []any{"meetings", "governance"}, m.Fields["tags"])
	assert.Equal(t, "# Meeting Minutes Capture\n\nRecord decisions and action items.\n", body)
}

func TestParsePlainDocumentUnchanged(t *testing.T) {
	doc := "# Just a heading\n\nNo metadata here.\n"
	m, body, err := Parse(doc)
	require.NoError(t, err)
	assert.False(t, m.Present)
	assert.Empty(t, m.Fields)
	assert.Equal(t, doc, body)
}

func TestParseNoClosingDelimiterMeansNoFrontMatter(t *testing.T) {
	doc := "---\ntitle: dangling\n\n# Body that never closes\n"
	m, body, err := Parse(doc)
	require.NoError(t, err)
	assert.False(t, m.Present)
	assert.Equal(t, doc, body)
}

func TestParseDelimiterMustBeFirstLine(t *testing.T) {
	doc := "\n---\ntitle: late\n---\nbody\n"
	m, _, err := Parse(doc)
	require.NoError(t, err)
	assert.False(t, m.Present)
}

func TestParseInvalidYAMLFailsWithRawBlock(t *testing.T) {
	doc := "---\ntitle: [unclosed\n---\nbody\n"
	_, _, err := Parse(doc)
	require.Error(t, err)
	assert.True(t, apperr.IsMetadata(err))

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Detail, "title: [unclosed")
}

func TestParseEmptyBlock(t *testing.T) {
	doc := "---\n---\nbody text\n"
	m, body, err := Parse(doc)
	require.NoError(t, err)
	assert.True(t, m.Present)
	assert.Empty(t, m.Fields)
	assert.Equal(t, "body text\n", body)
}

func TestParseStripsLeadingBlankLines(t *testing.T) {
	doc := "---\nname: x\n---\n\n\n\nbody\n"
	_, body, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "body\n", body)
}

func TestNestedMappingsGetStringKeys(t *testing.T) {
	doc := `---
related_artefacts:
  methodologies:
    - var-methodology
  policies:
    - market-risk-policy
---
body
`
	m, _, err := Parse(doc)
	require.NoError(t, err)

	related, ok := m.Fields["related_artefacts"].(map[string]any)
	require.True(t, ok, "nested mapping should have string keys, got %T", m.Fields["related_artefacts"])
	assert.Equal(t, []any{"var-methodology"}, related["methodologies"])
}

func TestRenderParseRoundTrip(t *testing.T) {
	fields := map[string]any{
		"name":        "scenario-analysis",
		"description": "Run scenario analysis",
		"tags":        []any{"risk", "stress"},
	}
	body := "# Scenario Analysis\n\nSteps follow.\n"

	doc, err := Render(fields, body)
	require.NoError(t, err)

	m, gotBody, err := Parse(doc)
	require.NoError(t, err)
	assert.True(t, m.Present)
	assert.Equal(t, fields["name"], m.Fields["name"])
	assert.Equal(t, fields["description"], m.Fields["description"])
	assert.Equal(t, fields["tags"], m.Fields["tags"])
	assert.Equal(t, body, gotBody)
}

func TestDateNormalization(t *testing.T) {
	doc := "---\napproval_date: 2024-03-15\nversion: \"2.1.0\"\n---\nbody\n"
	m, _, err := Parse(doc)
	require.NoError(t, err)

	// Whatever the YAML decoder produced, downstream sees a string.
	assert.Equal(t, "2024-03-15", m.Fields["approval_date"])
	assert.Equal(t, "2.1.0", m.Fields["version"])
}
