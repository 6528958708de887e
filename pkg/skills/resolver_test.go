package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilletlabs/skillet/pkg/apperr"
	"github.com/skilletlabs/skillet/pkg/content"
)

func writeSkill(t *testing.T, root string, rel string, doc string) string {
	t.Helper()
	dir := filepath.Join(root, "skills", filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(doc), 0o644))
	return dir
}

const minutesSkill = `---
name: meeting-minutes-capture
description: Capture structured minutes from a meeting transcript
domain: change-agent
category: meeting-management
parameters:
  - transcript
  - attendees
output_format: markdown
estimated_duration: 10m
tags:
  - meetings
---

# Meeting Minutes Capture

Identify decisions, owners, and due dates.
`

func TestGetSkillNested(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "change-agent/meeting-management/meeting-minutes-capture", minutesSkill)

	r := NewResolver(root)
	skill, err := r.GetSkill(context.Background(), content.Path{
		Domain: "change-agent", Category: "meeting-management", Name: "meeting-minutes-capture",
	})
	require.NoError(t, err)

	assert.Equal(t, "meeting-minutes-capture", skill.Name)
	assert.Equal(t, "change-agent", skill.Domain)
	assert.Equal(t, "meeting-management", skill.Category)
	assert.Equal(t, []string{"transcript", "attendees"}, skill.Parameters)
	assert.Equal(t, "markdown", skill.OutputFormat)
	assert.False(t, skill.FlatLayout)
	assert.True(t, skill.HasFrontMatter)
	assert.Contains(t, skill.Body, "# Meeting Minutes Capture")
	assert.NotContains(t, skill.Body, "---")
	assert.Equal(t, []string{}, skill.InstructionFiles)
	assert.Equal(t, []string{}, skill.ResourceFiles)
}

func TestGetSkillFlatLayout(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "risk/var-report", "---\nname: var-report\ndescription: Build a VaR report\n---\nBody.\n")

	r := NewResolver(root)
	skill, err := r.GetSkill(context.Background(), content.Path{Domain: "risk", Name: "var-report"})
	require.NoError(t, err)
	assert.True(t, skill.FlatLayout)
	assert.Equal(t, "risk", skill.Domain)
}

func TestGetSkillTwoSegmentPathFindsNestedSkill(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "change-agent/meeting-management/meeting-minutes-capture", minutesSkill)

	r := NewResolver(root)
	skill, err := r.GetSkill(context.Background(), content.Path{Domain: "change-agent", Name: "meeting-minutes-capture"})
	require.NoError(t, err)
	assert.Equal(t, "meeting-management", skill.Path.Category)
	assert.False(t, skill.FlatLayout)
}

func TestGetSkillNotFound(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.GetSkill(context.Background(), content.Path{Domain: "risk", Name: "nope"})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestGetSkillWithoutFrontMatterUsesDirectoryDefaults(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "risk/market/stress-test", "# Stress Test\n\nPlain document.\n")

	r := NewResolver(root)
	skill, err := r.GetSkill(context.Background(), content.Path{Domain: "risk", Category: "market", Name: "stress-test"})
	require.NoError(t, err)
	assert.False(t, skill.HasFrontMatter)
	assert.Equal(t, "stress-test", skill.Name)
	assert.Equal(t, "risk", skill.Domain)
	assert.Equal(t, "market", skill.Category)
	assert.Contains(t, skill.Body, "Plain document.")
}

func TestGetSkillEnumeratesChildFiles(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "risk/market/stress-test", minutesSkill)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "instructions"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "instructions", "setup.md"), []byte("setup"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "instructions", "run.md"), []byte("run"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "resources"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resources", "template.md"), []byte("tmpl"), 0o644))

	r := NewResolver(root)
	skill, err := r.GetSkill(context.Background(), content.Path{Domain: "risk", Category: "market", Name: "stress-test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"run.md", "setup.md"}, skill.InstructionFiles)
	assert.Equal(t, []string{"template.md"}, skill.ResourceFiles)
}

func TestListSkillsDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "risk/market/var-report", "---\nname: var-report\n---\nx\n")
	writeSkill(t, root, "risk/credit/exposure-summary", "---\nname: exposure-summary\n---\nx\n")
	writeSkill(t, root, "change-agent/meeting-management/meeting-minutes-capture", minutesSkill)
	writeSkill(t, root, "risk/quick-note", "quick note, no frontmatter\n")

	r := NewResolver(root)
	ctx := context.Background()

	first, err := r.ListSkills(ctx, "")
	require.NoError(t, err)
	require.Len(t, first, 4)

	var got []string
	for _, m := range first {
		got = append(got, m.Path.String())
	}
	assert.Equal(t, []string{
		"change-agent/meeting-management/meeting-minutes-capture",
		"risk/quick-note",
		"risk/credit/exposure-summary",
		"risk/market/var-report",
	}, got)

	// Repeated calls with unchanged content return the same order.
	second, err := r.ListSkills(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListSkillsDomainFilter(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "risk/market/var-report", "---\nname: var-report\n---\nx\n")
	writeSkill(t, root, "change-agent/meeting-management/meeting-minutes-capture", minutesSkill)

	r := NewResolver(root)
	metas, err := r.ListSkills(context.Background(), "risk")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "var-report", metas[0].Name)

	_, err = r.ListSkills(context.Background(), "Not-Valid!")
	assert.True(t, apperr.IsValidation(err))
}

func TestListSkillsEmptyStore(t *testing.T) {
	r := NewResolver(t.TempDir())
	metas, err := r.ListSkills(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestListSkillsReportsMalformedFrontMatter(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "risk/market/broken", "---\ntitle: [unclosed\n---\nbody\n")

	r := NewResolver(root)
	_, err := r.ListSkills(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperr.IsMetadata(err))
	assert.Contains(t, err.Error(), "risk/market/broken")
}

func TestLoadInstruction(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "risk/market/stress-test", minutesSkill)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "instructions"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "instructions", "setup.md"), []byte("do the setup"), 0o644))

	r := NewResolver(root)
	p := content.Path{Domain: "risk", Category: "market", Name: "stress-test"}

	text, err := r.LoadInstruction(context.Background(), p, "setup.md")
	require.NoError(t, err)
	assert.Equal(t, "do the setup", text)

	_, err = r.LoadInstruction(context.Background(), p, "missing.md")
	assert.True(t, apperr.IsNotFound(err))

	_, err = r.LoadResource(context.Background(), p, "anything.md")
	assert.True(t, apperr.IsNotFound(err))
}

func TestLoadInstructionDirectoryEntryIsNotFound(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "risk/market/stress-test", minutesSkill)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "instructions", "archive"), 0o755))

	r := NewResolver(root)
	p := content.Path{Domain: "risk", Category: "market", Name: "stress-test"}

	// Enumeration only lists regular files, so a directory under
	// instructions/ must resolve the same way as a missing name.
	skill, err := r.GetSkill(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, skill.InstructionFiles)

	_, err = r.LoadInstruction(context.Background(), p, "archive")
	assert.True(t, apperr.IsNotFound(err))
}

func TestLoadInstructionRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "risk/market/stress-test", minutesSkill)

	// A file outside the skill directory that must stay unreachable.
	secret := filepath.Join(root, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o644))

	r := NewResolver(root)
	p := content.Path{Domain: "risk", Category: "market", Name: "stress-test"}

	for _, name := range []string{"../../etc/passwd", "../SKILL.md", "a/b.md", `..\secret.txt`, ".."} {
		_, err := r.LoadInstruction(context.Background(), p, name)
		require.Error(t, err, "name %q", name)
		assert.True(t, apperr.IsValidation(err), "name %q", name)
	}
}

func TestResolverCacheServesFreshContentAfterEdit(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "risk/market/var-report", "---\nname: var-report\ndescription: one\n---\nv1\n")

	r := NewResolver(root, WithCache())
	p := content.Path{Domain: "risk", Category: "market", Name: "var-report"}
	ctx := context.Background()

	skill, err := r.GetSkill(ctx, p)
	require.NoError(t, err)
	assert.Contains(t, skill.Body, "v1")

	// Rewrite with a different mtime and size.
	path := filepath.Join(dir, "SKILL.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nname: var-report\ndescription: two!\n---\nv2 body\n"), 0o644))
	old := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	skill, err = r.GetSkill(ctx, p)
	require.NoError(t, err)
	assert.Contains(t, skill.Body, "v2 body")
	assert.Equal(t, "two!", skill.Description)
}
