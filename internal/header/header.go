// Package header implements the frontmatter codec for mnemo notes: parsing
// the "---"-fenced YAML metadata block out of Markdown text, validating it,
// and serializing it back with a stable field order.
package header

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/uid"
)

// Category is one of the four PARA buckets a note can live in.
type Category string

const (
	Projects Category = "Projects"
	Areas    Category = "Areas"
	Resources Category = "Resources"
	Archives Category = "Archives"
)

var validCategories = map[Category]bool{
	Projects: true, Areas: true, Resources: true, Archives: true,
}

// ValidCategory reports whether c is one of the four PARA categories.
func ValidCategory(c Category) bool { return validCategories[c] }

// Header is the parsed metadata block of a note. Extra holds scalar fields
// unknown to this schema; they are preserved verbatim in lenient mode and
// rejected in strict mode.
type Header struct {
	ID       string        `yaml:"id"`
	Title    string        `yaml:"title"`
	Category Category      `yaml:"category"`
	Tags     []string      `yaml:"tags,omitempty"`
	Project  string        `yaml:"project,omitempty"`
	Created  time.Time     `yaml:"created"`
	Updated  time.Time     `yaml:"updated"`
	Links    []string      `yaml:"links,omitempty"`
	Extra    map[string]any `yaml:"-"`
}

// wireHeader mirrors Header's on-disk shape for stable-order marshaling.
// Fields appear in the exact §4.1 order: id, title, category, tags,
// project, created, updated, links.
type wireHeader struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags,omitempty"`
	Project  string   `yaml:"project,omitempty"`
	Created  string   `yaml:"created"`
	Updated  string   `yaml:"updated"`
	Links    []string `yaml:"links,omitempty"`
}

const timeFormat = time.RFC3339

// ParseOptions controls Parse's tolerance for malformed input.
type ParseOptions struct {
	// Strict rejects missing/malformed headers and unknown scalar fields
	// instead of synthesizing defaults / preserving them as Extra.
	Strict bool
	// Now is used to stamp a synthesized default header; defaults to
	// time.Now when zero.
	Now time.Time
}

// Parse splits raw into (header, body). When raw has no "---" fence, or the
// fence is malformed, a best-effort default header is synthesized unless
// opts.Strict is set, in which case a ParseError is returned.
func Parse(raw []byte, opts ParseOptions) (*Header, string, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	trimmed := bytes.TrimLeft(raw, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		if opts.Strict {
			return nil, "", apperr.New(apperr.ParseError, "missing frontmatter header")
		}
		return defaultHeader(now), string(raw), nil
	}

	rest := trimmed[len("---"):]
	idx := bytes.Index(rest, []byte("\n---"))
	if idx < 0 {
		if opts.Strict {
			return nil, "", apperr.New(apperr.ParseError, "unterminated frontmatter fence")
		}
		return defaultHeader(now), string(raw), nil
	}

	yamlBlock := rest[:idx]
	afterFence := rest[idx+len("\n---"):]
	body := strings.TrimLeft(string(afterFence), "\n\r")

	var raw2 map[string]any
	if err := yaml.Unmarshal(yamlBlock, &raw2); err != nil {
		if opts.Strict {
			return nil, "", apperr.Wrap(apperr.ParseError, "invalid frontmatter yaml", err)
		}
		return defaultHeader(now), string(raw), nil
	}

	h, err := fromMap(raw2, now, opts.Strict)
	if err != nil {
		if opts.Strict {
			return nil, "", err
		}
		return defaultHeader(now), string(raw), nil
	}
	return h, body, nil
}

func defaultHeader(now time.Time) *Header {
	return &Header{
		ID:       uid.New(),
		Title:    "Untitled",
		Category: Resources,
		Tags:     []string{},
		Created:  now,
		Updated:  now,
		Links:    []string{},
	}
}

var knownScalarKeys = map[string]bool{
	"id": true, "title": true, "category": true, "tags": true,
	"project": true, "created": true, "updated": true, "links": true,
}

func fromMap(m map[string]any, now time.Time, strict bool) (*Header, error) {
	h := &Header{
		Tags:  []string{},
		Links: []string{},
		Extra: map[string]any{},
	}

	if v, ok := m["id"]; ok {
		h.ID, _ = v.(string)
	}
	if v, ok := m["title"]; ok {
		h.Title, _ = v.(string)
	}
	if v, ok := m["category"]; ok {
		if s, ok := v.(string); ok {
			h.Category = Category(s)
		}
	}
	if v, ok := m["project"]; ok {
		h.Project, _ = v.(string)
	}
	h.Tags = toStringSlice(m["tags"])
	h.Links = toStringSlice(m["links"])

	created, hasCreated := parseTimeField(m["created"])
	updated, hasUpdated := parseTimeField(m["updated"])
	if !hasCreated {
		created = now
	}
	if !hasUpdated {
		updated = created
	}
	h.Created, h.Updated = created, updated

	for k, v := range m {
		if knownScalarKeys[k] {
			continue
		}
		if strict {
			return nil, apperr.Newf(apperr.ParseError, "unknown frontmatter field %q", k)
		}
		h.Extra[k] = v
	}

	if h.ID == "" {
		if strict {
			return nil, apperr.New(apperr.ParseError, "missing id")
		}
		h.ID = uid.New()
	}
	if h.Title == "" {
		h.Title = "Untitled"
	}
	if h.Category == "" || (strict && !ValidCategory(h.Category)) {
		if strict && h.Category != "" {
			return nil, apperr.Newf(apperr.ParseError, "unknown category %q", h.Category)
		}
		h.Category = Resources
	}
	return h, nil
}

func toStringSlice(v any) []string {
	if v == nil {
		return []string{}
	}
	raw, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func parseTimeField(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Validate applies the §4.1 rules: a valid UID, non-empty title, and a
// recognized category. Strict callers additionally reject Extra fields.
func (h *Header) Validate(strict bool) error {
	if !uid.Valid(h.ID) {
		return apperr.Newf(apperr.ParseError, "malformed uid %q", h.ID)
	}
	if strict && len(h.Extra) > 0 {
		keys := make([]string, 0, len(h.Extra))
		for k := range h.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return apperr.Newf(apperr.ParseError, "unknown fields in strict mode: %v", keys)
	}
	return validation.ValidateStruct(h,
		validation.Field(&h.Title, validation.Required),
		validation.Field(&h.Category, validation.Required, validation.By(func(v any) error {
			c, _ := v.(Category)
			if !ValidCategory(c) {
				return fmt.Errorf("must be one of Projects, Areas, Resources, Archives")
			}
			return nil
		})),
	)
}

// Serialize renders h and body back into frontmatter-fenced Markdown text
// with the canonical §4.1 key order. Serialize(Parse(text)) round-trips for
// any text this function itself produced.
func Serialize(h *Header, body string) []byte {
	w := wireHeader{
		ID:       h.ID,
		Title:    h.Title,
		Category: string(h.Category),
		Tags:     nilIfEmpty(h.Tags),
		Project:  h.Project,
		Created:  h.Created.UTC().Format(timeFormat),
		Updated:  h.Updated.UTC().Format(timeFormat),
		Links:    nilIfEmpty(h.Links),
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	_ = enc.Encode(w)
	_ = enc.Close()

	if len(h.Extra) > 0 {
		keys := make([]string, 0, len(h.Extra))
		for k := range h.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line, err := yaml.Marshal(map[string]any{k: h.Extra[k]})
			if err != nil {
				continue
			}
			buf.Write(line)
		}
	}

	buf.WriteString("---\n\n")
	buf.WriteString(body)
	return buf.Bytes()
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
