// Package content defines the addressing scheme for skill and knowledge
// artefacts: a (domain, category, name) triple mapped onto the content
// store's directory layout.
package content

import (
	"regexp"
	"strings"

	"github.com/skilletlabs/skillet/pkg/apperr"
)

// segmentRe is the contract for every path segment. Case-sensitive,
// lowercase only.
var segmentRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// Path identifies one artefact within a kind (skill or knowledge).
// Category may be empty for flat skill layouts.
type Path struct {
	Domain   string `json:"domain"`
	Category string `json:"category,omitempty"`
	Name     string `json:"name"`
}

// ParsePath parses "domain/name" or "domain/category/name".
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, "/")
	var p Path
	switch len(parts) {
	case 2:
		p = Path{Domain: parts[0], Name: parts[1]}
	case 3:
		p = Path{Domain: parts[0], Category: parts[1], Name: parts[2]}
	default:
		return Path{}, apperr.Validation("content.parse_path", s, "path must be domain/name or domain/category/name")
	}
	if err := p.Validate(); err != nil {
		return Path{}, err
	}
	return p, nil
}

// Validate checks every non-empty segment against the segment contract.
func (p Path) Validate() error {
	for _, seg := range []string{p.Domain, p.Category, p.Name} {
		if seg == "" {
			continue
		}
		if !segmentRe.MatchString(seg) {
			return apperr.Validation("content.validate_path", p.String(), "segment %q must match [a-z0-9-]+", seg)
		}
	}
	if p.Domain == "" || p.Name == "" {
		return apperr.Validation("content.validate_path", p.String(), "domain and name are required")
	}
	return nil
}

func (p Path) String() string {
	if p.Category == "" {
		return p.Domain + "/" + p.Name
	}
	return p.Domain + "/" + p.Category + "/" + p.Name
}

// ValidSegment reports whether s is a legal single path segment.
func ValidSegment(s string) bool {
	return segmentRe.MatchString(s)
}

// CheckChildName rejects child filenames that could escape an artefact's
// directory. Only bare filenames are accepted: no separators, no parent
// markers, no absolute paths.
func CheckChildName(op, name string) error {
	if name == "" {
		return apperr.Validation(op, name, "filename must not be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return apperr.Validation(op, name, "filename must not contain path separators")
	}
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return apperr.Validation(op, name, "filename must not contain parent-directory markers")
	}
	return nil
}
