package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilletlabs/skillet/pkg/apperr"
	"github.com/skilletlabs/skillet/pkg/content"
)

func writeDoc(t *testing.T, root, rel, doc string) {
	t.Helper()
	path := filepath.Join(root, "knowledge", filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

const varPolicy = `---
title: Value at Risk Policy
artefact_type: policy
risk_domain: market-risk
owner: Risk Methodology Group
approval_date: 2024-03-15
version: 2.1.0
difficulty: Intermediate
reading_time: 12m
tags:
  - var
  - limits
related_artefacts:
  methodologies:
    - var-methodology
related_skills:
  - var-report
---

# Value at Risk Policy

Daily VaR is computed at the 99% confidence level. Desks trading FX Options
must report both delta and vega exposures.
`

func TestGetDocument(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "risk/market/var-policy.md", varPolicy)

	r := NewResolver(root)
	doc, err := r.GetDocument(context.Background(), content.Path{Domain: "risk", Category: "market", Name: "var-policy"})
	require.NoError(t, err)

	assert.Equal(t, "Value at Risk Policy", doc.Title)
	assert.Equal(t, TypePolicy, doc.ArtefactType)
	assert.Equal(t, "market-risk", doc.RiskDomain)
	assert.Equal(t, "Risk Methodology Group", doc.Owner)
	assert.Equal(t, "2024-03-15", doc.ApprovalDate)
	assert.Equal(t, "2.1.0", doc.Version)
	assert.Equal(t, DifficultyIntermediate, doc.Difficulty)
	assert.Equal(t, []string{"var", "limits"}, doc.Tags)
	assert.Equal(t, []string{"var-methodology"}, doc.RelatedArtefacts["methodologies"])
	assert.Equal(t, []string{"var-report"}, doc.RelatedSkills)
	assert.True(t, doc.HasFrontMatter)
	assert.Contains(t, doc.Body, "# Value at Risk Policy")
	assert.NotContains(t, doc.Body, "artefact_type")
}

func TestGetDocumentRelatedReferencesStayUnresolved(t *testing.T) {
	root := t.TempDir()
	// var-methodology deliberately does not exist anywhere in the store.
	writeDoc(t, root, "risk/market/var-policy.md", varPolicy)

	r := NewResolver(root)
	doc, err := r.GetDocument(context.Background(), content.Path{Domain: "risk", Category: "market", Name: "var-policy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"var-methodology"}, doc.RelatedArtefacts["methodologies"])
}

func TestGetDocumentNotFound(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.GetDocument(context.Background(), content.Path{Domain: "risk", Category: "market", Name: "nope"})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestGetDocumentRequiresCategory(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.GetDocument(context.Background(), content.Path{Domain: "risk", Name: "var-policy"})
	assert.True(t, apperr.IsValidation(err))
}

func TestGetDocumentWithoutFrontMatter(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "risk/market/notes.md", "# Desk Notes\n\nNothing structured here.\n")

	r := NewResolver(root)
	doc, err := r.GetDocument(context.Background(), content.Path{Domain: "risk", Category: "market", Name: "notes"})
	require.NoError(t, err)
	assert.False(t, doc.HasFrontMatter)
	assert.Equal(t, "notes", doc.Title)
	assert.Contains(t, doc.Body, "Desk Notes")
}

func TestGetDocumentMalformedFrontMatter(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "risk/market/broken.md", "---\ntitle: [unclosed\n---\nbody\n")

	r := NewResolver(root)
	_, err := r.GetDocument(context.Background(), content.Path{Domain: "risk", Category: "market", Name: "broken"})
	require.Error(t, err)
	assert.True(t, apperr.IsMetadata(err))
}

func TestGetTaxonomy(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "risk/market/var-policy.md", varPolicy)
	writeDoc(t, root, "risk/market/stress-framework.md", "---\ntitle: Stress Framework\n---\nx\n")
	writeDoc(t, root, "risk/credit/pd-model.md", "---\ntitle: PD Model\n---\nx\n")
	writeDoc(t, root, "change-agent/governance/steering-charter.md", "x\n")

	r := NewResolver(root)
	taxonomy, err := r.GetTaxonomy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Taxonomy{
		"change-agent": {"governance": {"steering-charter"}},
		"risk": {
			"credit": {"pd-model"},
			"market": {"stress-framework", "var-policy"},
		},
	}, taxonomy)
}

func TestListDocumentsFiltered(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "risk/market/var-policy.md", varPolicy)
	writeDoc(t, root, "risk/credit/pd-model.md", "---\ntitle: PD Model\n---\nx\n")
	writeDoc(t, root, "change-agent/governance/steering-charter.md", "x\n")

	r := NewResolver(root)
	ctx := context.Background()

	all, err := r.ListDocuments(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "change-agent/governance/steering-charter", all[0].Path.String())

	riskOnly, err := r.ListDocuments(ctx, "risk", "")
	require.NoError(t, err)
	assert.Len(t, riskOnly, 2)

	market, err := r.ListDocuments(ctx, "risk", "market")
	require.NoError(t, err)
	require.Len(t, market, 1)
	assert.Equal(t, "Value at Risk Policy", market[0].Title)

	_, err = r.ListDocuments(ctx, "Risk!", "")
	assert.True(t, apperr.IsValidation(err))
}

func TestSearchBodyMatch(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "risk/market/var-policy.md", varPolicy)
	writeDoc(t, root, "risk/credit/pd-model.md", "---\ntitle: PD Model\n---\nDefault probabilities only.\n")

	r := NewResolver(root)
	results, err := r.Search(context.Background(), "FX Options")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Value at Risk Policy", results[0].Title)
	assert.NotEmpty(t, results[0].Excerpt)
	assert.Contains(t, results[0].Excerpt, "FX Options")
}

// İ lowercases to a two-rune form one byte longer, so an index taken
// against a lowered copy of the body would drift past the real match.
func TestSearchExcerptAlignsOnNonASCIIBody(t *testing.T) {
	root := t.TempDir()
	body := strings.Repeat("İstanbul desk limits. ", 12) +
		"Desks trading FX Options must report vega exposures."
	writeDoc(t, root, "risk/market/fx-desk.md", "---\ntitle: FX Desk Notes\n---\n"+body)

	r := NewResolver(root)
	results, err := r.Search(context.Background(), "FX Options")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Excerpt, "FX Options")
	assert.True(t, utf8.ValidString(results[0].Excerpt))
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "risk/market/var-policy.md", varPolicy)

	r := NewResolver(root)
	results, err := r.Search(context.Background(), "fx options")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchMatchesTitleAndTags(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "risk/market/var-policy.md", varPolicy)

	r := NewResolver(root)

	byTitle, err := r.Search(context.Background(), "value at risk")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)

	byTag, err := r.Search(context.Background(), "limits")
	require.NoError(t, err)
	assert.Len(t, byTag, 1)
}

func TestSearchBounded(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d"} {
		writeDoc(t, root, "risk/market/doc-"+name+".md", "---\ntitle: Doc "+name+"\n---\ncommon phrase here\n")
	}

	r := NewResolver(root, WithMaxResults(2))
	results, err := r.Search(context.Background(), "common phrase")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchEmptyQuery(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Search(context.Background(), "   ")
	assert.True(t, apperr.IsValidation(err))
}
