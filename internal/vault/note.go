// Package vault implements the note repository (C3): loading, saving,
// creating, and deleting notes on disk, resolving notes by UID or title,
// and analyzing the links a note's body declares.
package vault

import (
	"github.com/starford/mnemo/internal/header"
)

// Note is a loaded Markdown file: its absolute path, parsed header, and
// body text.
type Note struct {
	Path   string
	Header *header.Header
	Body   string
}

// UID returns the note's identity.
func (n *Note) UID() string { return n.Header.ID }

// LinkAnalysis is the result of AnalyzeLinks.
type LinkAnalysis struct {
	Outbound []string
	Broken   []string
	Inbound  []string
}
