package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/skilletlabs/skillet/pkg/apperr"
	"github.com/skilletlabs/skillet/pkg/content"
	"github.com/skilletlabs/skillet/pkg/frontmatter"
	"github.com/skilletlabs/skillet/pkg/logger"
)

const (
	skillFileName   = "SKILL.md"
	instructionsDir = "instructions"
	resourcesDir    = "resources"
)

// Resolver resolves skills from a content store root. It is stateless
// per call and safe for concurrent use; the optional cache keys on file
// modification time.
type Resolver struct {
	dir   string
	cache *frontmatter.Cache
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache enables mtime-keyed caching of parsed SKILL.md documents.
func WithCache() Option {
	return func(r *Resolver) {
		r.cache = frontmatter.NewCache()
	}
}

// NewResolver creates a skill resolver rooted at the content store's
// skills/ directory.
func NewResolver(storeRoot string, opts ...Option) *Resolver {
	r := &Resolver{dir: filepath.Join(storeRoot, "skills")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListSkills enumerates every skill in the store, optionally filtered to
// one domain. Tier 1: only frontmatter is parsed, child directories are
// not touched. Order is lexicographic by (domain, category, name).
func (r *Resolver) ListSkills(ctx context.Context, domain string) ([]Metadata, error) {
	if domain != "" && !content.ValidSegment(domain) {
		return nil, apperr.Validation("skills.list", domain, "domain must match [a-z0-9-]+")
	}

	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		return []Metadata{}, nil
	}

	fsys := os.DirFS(r.dir)
	var metas []Metadata

	// Flat layout: domain/skill-name/SKILL.md. Nested layout adds a
	// category level. A category directory never holds its own SKILL.md,
	// so the two globs cannot both match one skill.
	for _, pattern := range []string{"*/*/" + skillFileName, "*/*/*/" + skillFileName} {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, errors.Wrap(err, "failed to glob skill documents")
		}
		for _, match := range matches {
			p, flat, ok := pathFromMatch(match)
			if !ok {
				logger.G(ctx).WithField("path", match).Debug("skipping skill with invalid path segment")
				continue
			}
			if domain != "" && p.Domain != domain {
				continue
			}
			meta, _, err := r.loadDocument(filepath.Join(r.dir, filepath.FromSlash(match)), p, flat)
			if err != nil {
				return nil, apperr.Wrap(err, "skills.list", p.String())
			}
			metas = append(metas, meta)
		}
	}

	sort.Slice(metas, func(i, j int) bool {
		a, b := metas[i].Path, metas[j].Path
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Name < b.Name
	})

	if metas == nil {
		metas = []Metadata{}
	}
	return metas, nil
}

// GetSkill resolves one skill. Tier 2: the full document is parsed and
// child filenames are enumerated, but child files are not read.
func (r *Resolver) GetSkill(ctx context.Context, p content.Path) (*Skill, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	dir, resolved, err := r.skillDir(p)
	if err != nil {
		return nil, err
	}

	meta, body, err := r.loadDocument(filepath.Join(dir, skillFileName), resolved, resolved.Category == "")
	if err != nil {
		return nil, apperr.Wrap(err, "skills.get", resolved.String())
	}

	instructions, err := listChildFiles(filepath.Join(dir, instructionsDir))
	if err != nil {
		return nil, apperr.Wrap(err, "skills.get", resolved.String())
	}
	resources, err := listChildFiles(filepath.Join(dir, resourcesDir))
	if err != nil {
		return nil, apperr.Wrap(err, "skills.get", resolved.String())
	}

	return &Skill{
		Metadata:         meta,
		Body:             body,
		InstructionFiles: instructions,
		ResourceFiles:    resources,
	}, nil
}

// LoadInstruction reads one named file under the skill's instructions/
// directory. Tier 3.
func (r *Resolver) LoadInstruction(ctx context.Context, p content.Path, filename string) (string, error) {
	return r.loadChild(ctx, p, instructionsDir, filename)
}

// LoadResource reads one named file under the skill's resources/
// directory. Tier 3.
func (r *Resolver) LoadResource(ctx context.Context, p content.Path, filename string) (string, error) {
	return r.loadChild(ctx, p, resourcesDir, filename)
}

func (r *Resolver) loadChild(ctx context.Context, p content.Path, subdir, filename string) (string, error) {
	op := "skills.load_" + strings.TrimSuffix(subdir, "s")
	if err := content.CheckChildName(op, filename); err != nil {
		return "", err
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	dir, resolved, err := r.skillDir(p)
	if err != nil {
		return "", err
	}

	childPath := filepath.Join(dir, subdir, filename)
	ref := resolved.String() + "/" + subdir + "/" + filename

	// Only regular files are enumerated at tier 2, so a directory
	// entry under the same name is as absent as no entry at all.
	info, err := os.Stat(childPath)
	if os.IsNotExist(err) {
		return "", apperr.NotFound(op, ref, "no such file")
	}
	if err != nil {
		return "", apperr.Wrap(err, op, resolved.String())
	}
	if !info.Mode().IsRegular() {
		return "", apperr.NotFound(op, ref, "no such file")
	}

	raw, err := os.ReadFile(childPath)
	if err != nil {
		return "", apperr.Wrap(err, op, resolved.String())
	}
	return string(raw), nil
}

// skillDir locates the directory for a path, detecting per-directory
// whether the flat or nested layout is in use. A two-segment path that
// has no flat directory falls through to a category scan so that
// callers addressing a nested skill by (domain, name) still resolve it.
func (r *Resolver) skillDir(p content.Path) (string, content.Path, error) {
	if p.Category != "" {
		dir := filepath.Join(r.dir, p.Domain, p.Category, p.Name)
		if hasSkillFile(dir) {
			return dir, p, nil
		}
		return "", p, apperr.NotFound("skills.resolve", p.String(), "no such skill")
	}

	dir := filepath.Join(r.dir, p.Domain, p.Name)
	if hasSkillFile(dir) {
		return dir, p, nil
	}

	domainDir := filepath.Join(r.dir, p.Domain)
	entries, err := os.ReadDir(domainDir)
	if err != nil {
		return "", p, apperr.NotFound("skills.resolve", p.String(), "no such skill")
	}
	for _, entry := range entries {
		if !entry.IsDir() || !content.ValidSegment(entry.Name()) {
			continue
		}
		nested := filepath.Join(domainDir, entry.Name(), p.Name)
		if hasSkillFile(nested) {
			resolved := content.Path{Domain: p.Domain, Category: entry.Name(), Name: p.Name}
			return nested, resolved, nil
		}
	}
	return "", p, apperr.NotFound("skills.resolve", p.String(), "no such skill")
}

func (r *Resolver) loadDocument(path string, p content.Path, flat bool) (Metadata, string, error) {
	var (
		m    frontmatter.Meta
		body string
		err  error
	)
	if r.cache != nil {
		m, body, err = r.cache.ReadFile(path)
	} else {
		m, body, err = frontmatter.ReadFile(path)
	}
	if err != nil {
		return Metadata{}, "", err
	}

	meta, err := decodeMetadata(m, p, flat)
	if err != nil {
		return Metadata{}, "", err
	}
	return meta, body, nil
}

func decodeMetadata(m frontmatter.Meta, p content.Path, flat bool) (Metadata, error) {
	meta := Metadata{
		Path:           p,
		FlatLayout:     flat,
		HasFrontMatter: m.Present,
	}

	if m.Present {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &meta,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return Metadata{}, errors.Wrap(err, "failed to build metadata decoder")
		}
		if err := dec.Decode(m.Fields); err != nil {
			return Metadata{}, apperr.Metadata("skills.decode_metadata", p.String(), "", err)
		}
	}

	// Filename-derived defaults when frontmatter is absent or partial.
	if meta.Name == "" {
		meta.Name = p.Name
	}
	if meta.Domain == "" {
		meta.Domain = p.Domain
	}
	if meta.Category == "" {
		meta.Category = p.Category
	}
	return meta, nil
}

func pathFromMatch(match string) (content.Path, bool, bool) {
	segs := strings.Split(match, "/")
	var p content.Path
	flat := false
	switch len(segs) {
	case 3: // domain/name/SKILL.md
		p = content.Path{Domain: segs[0], Name: segs[1]}
		flat = true
	case 4: // domain/category/name/SKILL.md
		p = content.Path{Domain: segs[0], Category: segs[1], Name: segs[2]}
	default:
		return content.Path{}, false, false
	}
	if p.Validate() != nil {
		return content.Path{}, false, false
	}
	return p, flat, true
}

func hasSkillFile(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, skillFileName))
	return err == nil && info.Mode().IsRegular()
}

// listChildFiles returns the sorted names of regular files in dir. A
// missing directory is zero files, not an error.
func listChildFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
