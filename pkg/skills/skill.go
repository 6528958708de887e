// Package skills resolves skill artefacts from the content store with
// progressive disclosure: cheap metadata listing, full instruction
// bodies on demand, and named child files only when explicitly loaded.
// Skills are directories containing a SKILL.md file with YAML
// frontmatter describing the skill's purpose and instructions.
package skills

import (
	"github.com/skilletlabs/skillet/pkg/content"
)

// Metadata is the tier-1 view of a skill: frontmatter fields plus
// layout facts derived from the directory, no body.
type Metadata struct {
	Name              string         `mapstructure:"name" json:"name"`
	Description       string         `mapstructure:"description" json:"description"`
	Domain            string         `mapstructure:"domain" json:"domain"`
	Category          string         `mapstructure:"category" json:"category,omitempty"`
	Parameters        []string       `mapstructure:"parameters" json:"parameters,omitempty"`
	OutputFormat      string         `mapstructure:"output_format" json:"output_format,omitempty"`
	EstimatedDuration string         `mapstructure:"estimated_duration" json:"estimated_duration,omitempty"`
	Tags              []string       `mapstructure:"tags" json:"tags,omitempty"`
	Extra             map[string]any `mapstructure:",remain" json:"extra,omitempty"`

	// Path is the address the skill was resolved from.
	Path content.Path `mapstructure:"-" json:"path"`
	// FlatLayout is true for domain/skill-name/ directories, false for
	// domain/category/skill-name/.
	FlatLayout bool `mapstructure:"-" json:"is_flat_structure"`
	// HasFrontMatter is false when SKILL.md is a plain document and the
	// metadata above was derived from the directory name.
	HasFrontMatter bool `mapstructure:"-" json:"has_front_matter"`
}

// Skill is the tier-2 view: metadata, the full instruction body, and the
// names (not contents) of child files under instructions/ and resources/.
type Skill struct {
	Metadata
	Body             string   `json:"body"`
	InstructionFiles []string `json:"instruction_files"`
	ResourceFiles    []string `json:"resource_files"`
}
