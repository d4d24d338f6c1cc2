// Package para implements the PARA organizer (C5): category routing,
// target-path computation, filename sanitization, and archival sweeps.
package para

import (
	"context"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	goslug "github.com/gosimple/slug"

	"github.com/starford/mnemo/internal/header"
	"github.com/starford/mnemo/internal/vault"
)

// Reason identifies why a note was moved.
type Reason string

const (
	Manual         Reason = "manual"
	AutoArchive    Reason = "auto-archive"
	CategoryChange Reason = "category-change"
	ProjectChange  Reason = "project-change"
)

// Moved is emitted whenever a note's category or path changes.
type Moved struct {
	Note   *vault.Note
	From   string
	To     string
	Reason Reason
}

// MovedCallback receives Moved events.
type MovedCallback func(Moved)

// DirNames maps categories to their on-disk directory names.
var DirNames = map[header.Category]string{
	header.Projects:  "1-Projects",
	header.Areas:     "2-Areas",
	header.Resources: "3-Resources",
	header.Archives:  "4-Archives",
}

// Options configures an Organizer.
type Options struct {
	ArchiveThresholdDays int
	AutoMove             bool
}

// Organizer applies PARA routing rules to notes in a vault.
type Organizer struct {
	v    *vault.Vault
	opts Options
}

func New(v *vault.Vault, opts Options) *Organizer {
	if opts.ArchiveThresholdDays <= 0 {
		opts.ArchiveThresholdDays = 90
	}
	return &Organizer{v: v, opts: opts}
}

// TargetCategory determines the category a note should live in.
func (o *Organizer) TargetCategory(n *vault.Note, now time.Time) header.Category {
	if n.Header.Project != "" {
		return header.Projects
	}
	if now.Sub(n.Header.Updated) > time.Duration(o.opts.ArchiveThresholdDays)*24*time.Hour {
		return header.Archives
	}
	if header.ValidCategory(n.Header.Category) {
		return n.Header.Category
	}
	return header.Resources
}

// TargetPath computes root/<category_dir>/[<project>/]<sanitized_title>.md.
func (o *Organizer) TargetPath(category header.Category, project, title string) string {
	dir := DirNames[category]
	parts := []string{o.v.Root(), dir}
	if category == header.Projects && project != "" {
		parts = append(parts, ProjectSlug(project))
	}
	parts = append(parts, Sanitize(title)+".md")
	return filepath.Join(parts...)
}

// Reconcile determines the target category/path for n and, when different
// from its current state, rewrites its header and (if AutoMove) moves the
// file, returning the Moved event or nil if nothing changed.
func (o *Organizer) Reconcile(ctx context.Context, n *vault.Note, reason Reason, now time.Time) (*Moved, error) {
	targetCategory := o.TargetCategory(n, now)
	targetPath := o.TargetPath(targetCategory, n.Header.Project, n.Header.Title)

	categoryChanged := targetCategory != n.Header.Category
	pathChanged := targetPath != n.Path

	if !categoryChanged && !(o.opts.AutoMove && pathChanged) {
		return nil, nil
	}

	from := n.Path
	n.Header.Category = targetCategory

	if o.opts.AutoMove && pathChanged {
		oldPath := n.Path
		n.Path = targetPath
		if err := o.v.Save(ctx, n, vault.SaveOptions{Atomic: true}); err != nil {
			n.Path = oldPath
			return nil, err
		}
		if err := o.v.Delete(ctx, oldPath, vault.DeleteOptions{}); err != nil {
			return nil, err
		}
	} else {
		if err := o.v.Save(ctx, n, vault.SaveOptions{Atomic: true}); err != nil {
			return nil, err
		}
	}

	return &Moved{Note: n, From: from, To: n.Path, Reason: reason}, nil
}

// ArchiveOld sweeps the vault for notes past the archive threshold with no
// project and moves them to Archives.
func (o *Organizer) ArchiveOld(ctx context.Context, now time.Time, cb MovedCallback) error {
	notes, err := o.v.All(ctx)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if n.Header.Project != "" || n.Header.Category == header.Archives {
			continue
		}
		if now.Sub(n.Header.Updated) <= time.Duration(o.opts.ArchiveThresholdDays)*24*time.Hour {
			continue
		}
		moved, err := o.Reconcile(ctx, n, AutoArchive, now)
		if err != nil {
			continue
		}
		if moved != nil && cb != nil {
			cb(*moved)
		}
	}
	return nil
}

// ArchiveProject moves every note belonging to name out of Projects into
// Archives, clearing the project field.
func (o *Organizer) ArchiveProject(ctx context.Context, name string, now time.Time, cb MovedCallback) error {
	notes, err := o.v.All(ctx)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if n.Header.Project != name {
			continue
		}
		from := n.Path
		n.Header.Project = ""
		n.Header.Category = header.Archives
		target := o.TargetPath(header.Archives, "", n.Header.Title)
		if o.opts.AutoMove {
			oldPath := n.Path
			n.Path = target
			if err := o.v.Save(ctx, n, vault.SaveOptions{Atomic: true}); err != nil {
				n.Path = oldPath
				continue
			}
			_ = o.v.Delete(ctx, oldPath, vault.DeleteOptions{})
		} else if err := o.v.Save(ctx, n, vault.SaveOptions{Atomic: true}); err != nil {
			continue
		}
		if cb != nil {
			cb(Moved{Note: n, From: from, To: n.Path, Reason: ProjectChange})
		}
	}
	return nil
}

var invalidChars = map[rune]bool{
	'<': true, '>': true, ':': true, '"': true, '/': true,
	'\\': true, '|': true, '?': true, '*': true,
}

// Sanitize replaces characters unsafe in filenames and whitespace runs with
// "-", trims leading/trailing "-", and truncates to 50 characters.
func Sanitize(title string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range title {
		switch {
		case invalidChars[r]:
			if !prevDash && b.Len() > 0 {
				b.WriteRune('-')
				prevDash = true
			}
		case unicode.IsSpace(r):
			if !prevDash && b.Len() > 0 {
				b.WriteRune('-')
				prevDash = true
			}
		default:
			b.WriteRune(r)
			prevDash = false
		}
	}

	s := strings.Trim(b.String(), "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	if s == "" {
		s = "untitled"
	}
	return s
}

// ProjectSlug derives a filesystem-safe directory name for a project,
// following the same transliterate-then-slugify strategy as raven's
// ComponentSlug: gosimple/slug handles Unicode normalization, with a
// plain-ASCII fallback when slugification collapses to nothing.
func ProjectSlug(name string) string {
	slugged := goslug.Make(name)
	if slugged == "" {
		slugged = strings.ToLower(Sanitize(name))
	}
	return slugged
}
