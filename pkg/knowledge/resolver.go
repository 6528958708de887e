package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/skilletlabs/skillet/pkg/apperr"
	"github.com/skilletlabs/skillet/pkg/content"
	"github.com/skilletlabs/skillet/pkg/frontmatter"
	"github.com/skilletlabs/skillet/pkg/logger"
)

const mdExt = ".md"

// DefaultMaxResults bounds Search result counts.
const DefaultMaxResults = 20

// Resolver resolves knowledge documents from a content store root.
// Stateless per call and safe for concurrent use.
type Resolver struct {
	dir        string
	maxResults int
	cache      *frontmatter.Cache
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxResults overrides the search result bound.
func WithMaxResults(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxResults = n
		}
	}
}

// WithCache enables mtime-keyed caching of parsed documents.
func WithCache() Option {
	return func(r *Resolver) {
		r.cache = frontmatter.NewCache()
	}
}

// NewResolver creates a knowledge resolver rooted at the content store's
// knowledge/ directory.
func NewResolver(storeRoot string, opts ...Option) *Resolver {
	r := &Resolver{
		dir:        filepath.Join(storeRoot, "knowledge"),
		maxResults: DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetTaxonomy enumerates the domain/category/document tree without
// reading any file content.
func (r *Resolver) GetTaxonomy(ctx context.Context) (Taxonomy, error) {
	taxonomy := Taxonomy{}

	paths, err := r.documentPaths(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		domain, ok := taxonomy[p.Domain]
		if !ok {
			domain = map[string][]string{}
			taxonomy[p.Domain] = domain
		}
		domain[p.Category] = append(domain[p.Category], p.Name)
	}
	return taxonomy, nil
}

// ListDocuments enumerates document metadata, optionally filtered by
// domain and category. Tier 1: frontmatter only. Order is lexicographic
// by (domain, category, name).
func (r *Resolver) ListDocuments(ctx context.Context, domain, category string) ([]Metadata, error) {
	if domain != "" && !content.ValidSegment(domain) {
		return nil, apperr.Validation("knowledge.list", domain, "domain must match [a-z0-9-]+")
	}
	if category != "" && !content.ValidSegment(category) {
		return nil, apperr.Validation("knowledge.list", category, "category must match [a-z0-9-]+")
	}

	paths, err := r.documentPaths(ctx)
	if err != nil {
		return nil, err
	}

	metas := make([]Metadata, 0, len(paths))
	for _, p := range paths {
		if domain != "" && p.Domain != domain {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		meta, _, err := r.loadDocument(p)
		if err != nil {
			return nil, apperr.Wrap(err, "knowledge.list", p.String())
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// GetDocument reads and parses one document.
func (r *Resolver) GetDocument(ctx context.Context, p content.Path) (*Document, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Category == "" {
		return nil, apperr.Validation("knowledge.get", p.String(), "knowledge paths require domain/category/name")
	}

	meta, body, err := r.loadDocument(p)
	if os.IsNotExist(errors.Cause(err)) {
		return nil, apperr.NotFound("knowledge.get", p.String(), "no such document")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "knowledge.get", p.String())
	}

	return &Document{Metadata: meta, Body: body}, nil
}

// Search scans title, tags, and body for a case-insensitive substring
// match. This is intentionally a linear scan, not a ranked index: the
// content store is small and read latency stays proportional to corpus
// size, never to the cross-reference graph.
func (r *Resolver) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("knowledge.search", query, "query must not be empty")
	}
	needle := strings.ToLower(query)

	paths, err := r.documentPaths(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0)
	for _, p := range paths {
		if len(results) >= r.maxResults {
			break
		}

		meta, body, err := r.loadDocument(p)
		if err != nil {
			return nil, apperr.Wrap(err, "knowledge.search", p.String())
		}

		start, end := findFold(body, query)
		matched := start >= 0 || strings.Contains(strings.ToLower(meta.Title), needle)
		if !matched {
			for _, tag := range meta.Tags {
				if strings.Contains(strings.ToLower(tag), needle) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}

		results = append(results, SearchResult{
			Metadata: meta,
			Excerpt:  excerpt(body, start, end-start),
		})
	}
	return results, nil
}

// documentPaths globs the taxonomy for document files, skipping entries
// with invalid path segments. Returned paths are sorted.
func (r *Resolver) documentPaths(ctx context.Context) ([]content.Path, error) {
	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(r.dir), "*/*/*"+mdExt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to glob knowledge documents")
	}

	paths := make([]content.Path, 0, len(matches))
	for _, match := range matches {
		segs := strings.Split(strings.TrimSuffix(match, mdExt), "/")
		if len(segs) != 3 {
			continue
		}
		p := content.Path{Domain: segs[0], Category: segs[1], Name: segs[2]}
		if p.Validate() != nil {
			logger.G(ctx).WithField("path", match).Debug("skipping document with invalid path segment")
			continue
		}
		paths = append(paths, p)
	}

	sort.Slice(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Name < b.Name
	})
	return paths, nil
}

func (r *Resolver) loadDocument(p content.Path) (Metadata, string, error) {
	path := filepath.Join(r.dir, p.Domain, p.Category, p.Name+mdExt)

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

	meta, err := decodeMetadata(m, p)
	if err != nil {
		return Metadata{}, "", err
	}
	return meta, body, nil
}

func decodeMetadata(m frontmatter.Meta, p content.Path) (Metadata, error) {
	meta := Metadata{Path: p, HasFrontMatter: m.Present}

	if m.Present {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &meta,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return Metadata{}, errors.Wrap(err, "failed to build metadata decoder")
		}
		if err := dec.Decode(m.Fields); err != nil {
			return Metadata{}, apperr.Metadata("knowledge.decode_metadata", p.String(), "", err)
		}
	}

	if meta.Title == "" {
		meta.Title = p.Name
	}
	return meta, nil
}

// excerpt returns a window of body text centered on the match at idx, or
// the head of the body when the match was in title or tags (idx < 0).
// findFold returns the byte span [start, end) in s of the first
// case-insensitive match of substr, or (-1, -1). Offsets index s
// itself, so callers can slice s directly; lowercasing s first would
// shift offsets wherever case mapping changes byte length.
func findFold(s, substr string) (int, int) {
	for i := range s {
		if n := matchLenFold(s[i:], substr); n >= 0 {
			return i, i + n
		}
	}
	return -1, -1
}

// matchLenFold returns how many bytes at the start of s match substr
// rune-by-rune under simple case folding, or -1 on a mismatch.
func matchLenFold(s, substr string) int {
	n := 0
	for _, pr := range substr {
		r, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 || unicode.ToLower(r) != unicode.ToLower(pr) {
			return -1
		}
		n += size
	}
	return n
}

func excerpt(body string, idx, matchLen int) string {
	const window = 80

	if body == "" {
		return ""
	}
	if idx < 0 {
		idx, matchLen = 0, 0
	}

	start := idx - window
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(body[start]) {
		start--
	}
	end := idx + matchLen + window
	if end > len(body) {
		end = len(body)
	}
	for end < len(body) && !utf8.RuneStart(body[end]) {
		end++
	}

	out := strings.TrimSpace(body[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(body) {
		out += "…"
	}
	return out
}
