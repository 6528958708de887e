// Package knowledge resolves reference documents from the content
// store's domain/category taxonomy. Documents carry structured
// frontmatter (artefact type, owner, version, cross-references) and are
// addressed by (domain, category, name). Cross-references are weak:
// surfaced as opaque strings, never resolved or validated at read time.
package knowledge

import (
	"github.com/skilletlabs/skillet/pkg/content"
)

// ArtefactType classifies a knowledge document.
type ArtefactType string

const (
	TypePolicy      ArtefactType = "policy"
	TypeFramework   ArtefactType = "framework"
	TypeMethodology ArtefactType = "methodology"
	TypeModel       ArtefactType = "model"
	TypeData        ArtefactType = "data"
	TypeProcedure   ArtefactType = "procedure"
	TypeMetric      ArtefactType = "metric"
	TypeOther       ArtefactType = "other"
)

// Difficulty is the stated reading difficulty of a document.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// Metadata is the tier-1 view of a knowledge document. Unknown
// frontmatter keys are preserved in Extra rather than dropped, and enum
// fields keep whatever value the document stated so that schema drift in
// the content store never loses data.
type Metadata struct {
	Title            string              `mapstructure:"title" json:"title"`
	ArtefactType     ArtefactType        `mapstructure:"artefact_type" json:"artefact_type,omitempty"`
	RiskDomain       string              `mapstructure:"risk_domain" json:"risk_domain,omitempty"`
	Owner            string              `mapstructure:"owner" json:"owner,omitempty"`
	ApprovalDate     string              `mapstructure:"approval_date" json:"approval_date,omitempty"`
	Version          string              `mapstructure:"version" json:"version,omitempty"`
	Difficulty       Difficulty          `mapstructure:"difficulty" json:"difficulty,omitempty"`
	ReadingTime      string              `mapstructure:"reading_time" json:"reading_time,omitempty"`
	Tags             []string            `mapstructure:"tags" json:"tags,omitempty"`
	RelatedArtefacts map[string][]string `mapstructure:"related_artefacts" json:"related_artefacts,omitempty"`
	RelatedSkills    []string            `mapstructure:"related_skills" json:"related_skills,omitempty"`
	Extra            map[string]any      `mapstructure:",remain" json:"extra,omitempty"`

	Path           content.Path `mapstructure:"-" json:"path"`
	HasFrontMatter bool         `mapstructure:"-" json:"has_front_matter"`
}

// Document is the tier-2 view: metadata plus the body with frontmatter
// stripped.
type Document struct {
	Metadata
	Body string `json:"body"`
}

// SearchResult pairs a matching document's metadata with a short body
// excerpt for previews.
type SearchResult struct {
	Metadata
	Excerpt string `json:"excerpt"`
}

// Taxonomy is the domain -> category -> document-name tree.
type Taxonomy map[string]map[string][]string
