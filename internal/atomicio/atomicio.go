// Package atomicio provides crash-safe file primitives used by the vault
// and PARA layers: atomic writes, existence-checked reads, idempotent
// directory creation, and Markdown enumeration.
package atomicio

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/mnemo/internal/apperr"
)

// WriteOptions controls AtomicWrite's parent-directory handling.
type WriteOptions struct {
	CreateDirs bool
}

// AtomicWrite writes content to path via a temp file in the same directory,
// fsyncs it, then renames it over path. On any failure the temp file is
// removed and path is left untouched.
func AtomicWrite(path string, content []byte, opts WriteOptions) error {
	dir := filepath.Dir(path)
	if opts.CreateDirs {
		if err := EnsureDir(dir); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, ".mnemo-tmp-*")
	if err != nil {
		return apperr.Wrap(apperr.WriteError, "create temp file", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return apperr.Wrap(apperr.WriteError, "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Wrap(apperr.WriteError, "fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Wrap(apperr.WriteError, "close temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperr.Wrap(apperr.WriteError, "rename into place", err)
	}
	success = true
	return nil
}

// SafeRead reads path, failing with apperr.NotFound when it is absent.
func SafeRead(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Newf(apperr.NotFound, "file not found: %s", path)
		}
		return nil, apperr.Wrap(apperr.WriteError, "read file", err)
	}
	return data, nil
}

// EnsureDir idempotently creates path and any missing parents.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return apperr.Wrap(apperr.WriteError, "ensure dir", err)
	}
	return nil
}

// ListOptions controls ListMarkdown's traversal.
type ListOptions struct {
	Recursive bool
	// Pattern, if non-empty, is matched against the base filename via
	// filepath.Match.
	Pattern string
}

var skippedDirs = map[string]bool{
	".git": true, "node_modules": true,
}

// ListMarkdown enumerates .md files under root, ignoring dotfiles,
// node_modules, .git, and *.tmp files. Symlinks are not followed, which
// avoids symlink cycles.
func ListMarkdown(root string, opts ListOptions) ([]string, error) {
	var out []string
	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skippedDirs[name]) {
				return filepath.SkipDir
			}
			if !opts.Recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			return nil
		}
		if !strings.HasSuffix(name, ".md") {
			return nil
		}
		if opts.Pattern != "" {
			ok, err := filepath.Match(opts.Pattern, name)
			if err != nil || !ok {
				return nil
			}
		}
		out = append(out, path)
		return nil
	}

	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, apperr.Wrap(apperr.WriteError, "list markdown files", err)
	}
	sort.Strings(out)
	return out, nil
}

// CreateBackup renames path to path.bak.<unix-nano-timestamp> before a
// destructive operation. It is a no-op returning "" if path does not exist.
func CreateBackup(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", apperr.Wrap(apperr.WriteError, "stat before backup", err)
	}
	backupPath := fmt.Sprintf("%s.bak.%d", path, time.Now().UnixNano())
	if err := os.Rename(path, backupPath); err != nil {
		return "", apperr.Wrap(apperr.WriteError, "create backup", err)
	}
	return backupPath, nil
}
