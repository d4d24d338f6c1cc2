package vault

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/atomicio"
	"github.com/starford/mnemo/internal/header"
	"github.com/starford/mnemo/internal/uid"
)

// Vault is the note repository rooted at a PARA directory tree.
type Vault struct {
	root   string
	strict bool
}

// Options configures a Vault.
type Options struct {
	// Strict rejects malformed note headers outright on Load instead of
	// synthesizing lenient defaults. Mirrors internal.Config.Strict()
	// (spec.md §6's mode ∈ {dev, prod}).
	Strict bool
}

// New opens a Vault rooted at root, which must already exist.
func New(root string, opts Options) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperr.Wrap(apperr.WriteError, "resolve vault root", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperr.Wrap(apperr.WriteError, "stat vault root", err)
	}
	if !info.IsDir() {
		return nil, apperr.Newf(apperr.WriteError, "vault root is not a directory: %s", abs)
	}
	return &Vault{root: abs, strict: opts.Strict}, nil
}

// Root returns the vault's absolute root path.
func (v *Vault) Root() string { return v.root }

func (v *Vault) safePath(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(path) {
		abs = filepath.Join(v.root, path)
	}
	abs = filepath.Clean(abs)
	if !strings.HasPrefix(abs, v.root+string(os.PathSeparator)) && abs != v.root {
		return "", apperr.Newf(apperr.InvalidRequest, "path escapes vault root: %s", path)
	}
	return abs, nil
}

// CreateOptions configures Create.
type CreateOptions struct {
	Category header.Category
	Tags     []string
	Project  string
}

// SaveOptions configures Save.
type SaveOptions struct {
	Atomic bool
	Backup bool
}

// DeleteOptions configures Delete.
type DeleteOptions struct {
	Backup bool
}

// Load reads and parses the note at path (absolute, or relative to the
// vault root). Fails apperr.NotFound if absent.
func (v *Vault) Load(ctx context.Context, path string) (*Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := v.safePath(path)
	if err != nil {
		return nil, err
	}
	raw, err := atomicio.SafeRead(abs)
	if err != nil {
		return nil, err
	}
	h, body, err := header.Parse(raw, header.ParseOptions{Strict: v.strict})
	if err != nil {
		return nil, err
	}
	return &Note{Path: abs, Header: h, Body: body}, nil
}

// Save writes note back to disk. Updated is bumped to now when the
// serialized content differs from what is currently on disk.
func (v *Vault) Save(ctx context.Context, note *Note, opts SaveOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := v.safePath(note.Path)
	if err != nil {
		return err
	}

	if existing, readErr := atomicio.SafeRead(abs); readErr == nil {
		if string(existing) != string(header.Serialize(note.Header, note.Body)) {
			note.Header.Updated = time.Now().UTC()
		}
	} else {
		note.Header.Updated = time.Now().UTC()
	}

	if opts.Backup {
		if _, err := atomicio.CreateBackup(abs); err != nil {
			return err
		}
	}

	content := header.Serialize(note.Header, note.Body)
	if opts.Atomic {
		return atomicio.AtomicWrite(abs, content, atomicio.WriteOptions{CreateDirs: true})
	}
	if err := atomicio.EnsureDir(filepath.Dir(abs)); err != nil {
		return err
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return apperr.Wrap(apperr.WriteError, "write note", err)
	}
	return nil
}

// Create writes a brand new note at path. Fails apperr.AlreadyExists if
// path is already occupied.
func (v *Vault) Create(ctx context.Context, path, title, body string, opts CreateOptions) (*Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := v.safePath(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err == nil {
		return nil, apperr.Newf(apperr.AlreadyExists, "note already exists: %s", path)
	}

	category := opts.Category
	if category == "" {
		category = header.Resources
	}
	now := time.Now().UTC()
	h := &header.Header{
		ID:       uid.New(),
		Title:    title,
		Category: category,
		Tags:     append([]string{}, opts.Tags...),
		Project:  opts.Project,
		Created:  now,
		Updated:  now,
		Links:    []string{},
	}
	note := &Note{Path: abs, Header: h, Body: body}
	content := header.Serialize(h, body)
	if err := atomicio.AtomicWrite(abs, content, atomicio.WriteOptions{CreateDirs: true}); err != nil {
		return nil, err
	}
	return note, nil
}

// Delete removes the note at path. Fails apperr.NotFound if absent.
func (v *Vault) Delete(ctx context.Context, path string, opts DeleteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := v.safePath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return apperr.Newf(apperr.NotFound, "note not found: %s", path)
		}
		return apperr.Wrap(apperr.WriteError, "stat before delete", err)
	}
	if opts.Backup {
		if _, err := atomicio.CreateBackup(abs); err != nil {
			return err
		}
		return nil
	}
	if err := os.Remove(abs); err != nil {
		return apperr.Wrap(apperr.WriteError, "delete note", err)
	}
	return nil
}

// All loads every note under the vault, skipping files that fail to parse.
func (v *Vault) All(ctx context.Context) ([]*Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths, err := atomicio.ListMarkdown(v.root, atomicio.ListOptions{Recursive: true})
	if err != nil {
		return nil, err
	}
	notes := make([]*Note, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := v.Load(ctx, p)
		if err != nil {
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// FindByUID scans the vault for a note whose header id matches uid.
func (v *Vault) FindByUID(ctx context.Context, uid string) (*Note, error) {
	notes, err := v.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		if n.Header.ID == uid {
			return n, nil
		}
	}
	return nil, nil
}

var (
	wikilinkRe    = regexp.MustCompile(`\[\[(.*?)\]\]`)
	markdownLinkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)
)

// AnalyzeLinks extracts the outbound link targets from note's body,
// resolving each candidate to a UID (exact UID match, else exact title
// match, else broken), and finds notes whose bodies reference note's UID
// or title.
func (v *Vault) AnalyzeLinks(ctx context.Context, note *Note) (*LinkAnalysis, error) {
	notes, err := v.All(ctx)
	if err != nil {
		return nil, err
	}

	byUID := make(map[string]*Note, len(notes))
	byTitle := make(map[string]*Note, len(notes))
	for _, n := range notes {
		byUID[n.Header.ID] = n
		byTitle[n.Header.Title] = n
	}

	candidates := extractCandidates(note.Body)

	outSeen := make(map[string]bool, len(candidates))
	var outbound, broken []string
	for _, c := range candidates {
		if c == note.Header.ID || c == note.Header.Title {
			continue
		}
		var target string
		switch {
		case byUID[c] != nil:
			target = byUID[c].Header.ID
		case byTitle[c] != nil:
			target = byTitle[c].Header.ID
		default:
			if !outSeen["broken:"+c] {
				outSeen["broken:"+c] = true
				broken = append(broken, c)
			}
			continue
		}
		if target == note.Header.ID || outSeen[target] {
			continue
		}
		outSeen[target] = true
		outbound = append(outbound, target)
	}

	var inbound []string
	for _, n := range notes {
		if n.Header.ID == note.Header.ID {
			continue
		}
		for _, c := range extractCandidates(n.Body) {
			if c == note.Header.ID || c == note.Header.Title {
				inbound = append(inbound, n.Header.ID)
				break
			}
		}
	}

	return &LinkAnalysis{Outbound: outbound, Broken: broken, Inbound: inbound}, nil
}

func extractCandidates(body string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(raw string) {
		s := strings.TrimSpace(raw)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		add(target)
	}
	for _, m := range markdownLinkRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}
