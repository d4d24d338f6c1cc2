// Package testutil provides shared test helpers for setting up a vault and
// a database, used across internal/toolkit, internal/session,
// internal/mcpserver, and internal/httpapi test suites.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/vault"
)

// TestDB creates a temporary SQLite database that is automatically cleaned
// up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory.
func TestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(t.TempDir(), vault.Options{})
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	return v
}
