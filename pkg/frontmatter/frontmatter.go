// Package frontmatter extracts YAML front matter from Markdown documents
// in the content store. It is the single point where date values are
// canonicalized to strings, so no downstream layer ever serializes a
// native date type.
package frontmatter

import (
	"bytes"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	yaml "gopkg.in/yaml.v2"

	"github.com/skilletlabs/skillet/pkg/apperr"
)

const delimiter = "---"

// DateLayout is the canonical form for dates found in front matter.
const DateLayout = "2006-01-02"

// Meta is the parsed front matter of a document. Present distinguishes
// "no front matter at all" from an empty metadata block.
type Meta struct {
	Fields  map[string]any
	Present bool
}

// Parse splits a Markdown document into front matter and body.
//
// Front matter is recognized only when the very first line is a
// flush-left "---" and a matching closing delimiter follows; anything
// else is treated as a plain document and returned unchanged. A
// recognized block that fails to parse as a YAML mapping is a Metadata
// error carrying the raw block, never a partial result.
func Parse(raw string) (Meta, string, error) {
	block, body, found := split(raw)
	if !found {
		return Meta{}, raw, nil
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert([]byte(raw), &buf, parser.WithContext(pctx)); err != nil {
		return Meta{}, "", apperr.Metadata("frontmatter.parse", "", block, err)
	}

	fields, err := meta.TryGet(pctx)
	if err != nil {
		return Meta{}, "", apperr.Metadata("frontmatter.parse", "", block, err)
	}

	return Meta{Fields: normalize(fields), Present: true}, strings.TrimLeft(body, "\n"), nil
}

// split finds the front-matter block. It returns the raw block content
// (without delimiters), the remaining body, and whether a complete
// delimiter pair was found. No closing delimiter means no front matter;
// the parser does not guess.
func split(raw string) (block, body string, found bool) {
	lines := strings.SplitAfter(raw, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != delimiter {
		return "", "", false
	}

	var b strings.Builder
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == delimiter {
			return b.String(), strings.Join(lines[i+1:], ""), true
		}
		b.WriteString(lines[i])
	}
	return "", "", false
}

// Render produces a document with a front-matter block, the inverse of
// Parse for valid mappings. Used by fixtures and tooling.
func Render(fields map[string]any, body string) (string, error) {
	out, err := yaml.Marshal(fields)
	if err != nil {
		return "", apperr.Wrap(err, "frontmatter.render", "")
	}
	return delimiter + "\n" + string(out) + delimiter + "\n\n" + body, nil
}

// normalize converts YAML decoding artifacts into plain JSON-friendly
// values: map keys become strings and date values become DateLayout
// strings.
func normalize(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(DateLayout)
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[keyString(k)] = normalizeValue(item)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = normalizeValue(item)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = normalizeValue(item)
		}
		return s
	default:
		return v
	}
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	b, err := yaml.Marshal(k)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(b), "\n")
}
