package index

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/starford/mnemo/internal/apperr"
)

// NoteRow mirrors the notes table (§3 "Indexed note record").
type NoteRow struct {
	UID         string
	Title       string
	Category    string
	FilePath    string
	Project     string
	Tags        []string
	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IndexedAt   time.Time
}

// UpsertNoteTx inserts or replaces a note row within an existing
// transaction. It does not touch the FTS or links tables; callers compose
// this with FTSUpsertTx and the graph's link replacement to get the atomic
// multi-table write §5 requires.
func UpsertNoteTx(tx *sql.Tx, n NoteRow) error {
	tagsJSON, err := json.Marshal(n.Tags)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "marshal tags", err)
	}
	_, err = tx.Exec(`
		INSERT INTO notes (uid, title, category, file_path, project, tags_json, content_hash, created_at, updated_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			title        = excluded.title,
			category     = excluded.category,
			file_path    = excluded.file_path,
			project      = excluded.project,
			tags_json    = excluded.tags_json,
			content_hash = excluded.content_hash,
			updated_at   = excluded.updated_at,
			indexed_at   = excluded.indexed_at
	`, n.UID, n.Title, n.Category, n.FilePath, nullable(n.Project), string(tagsJSON), n.ContentHash, n.CreatedAt, n.UpdatedAt, n.IndexedAt)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "upsert note", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DeleteNoteTx removes a note row within an existing transaction.
func DeleteNoteTx(tx *sql.Tx, uid string) error {
	if _, err := tx.Exec(`DELETE FROM notes WHERE uid = ?`, uid); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "delete note", err)
	}
	return nil
}

// GetContentHash returns the stored content_hash for uid, or "" if absent.
func (db *DB) GetContentHash(uid string) (string, error) {
	var hash string
	err := db.conn.QueryRow(`SELECT content_hash FROM notes WHERE uid = ?`, uid).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.DatabaseError, "get content hash", err)
	}
	return hash, nil
}

// GetNote returns the stored row for uid.
func (db *DB) GetNote(uid string) (*NoteRow, error) {
	row := db.conn.QueryRow(`
		SELECT uid, title, category, file_path, COALESCE(project, ''), tags_json, content_hash, created_at, updated_at, indexed_at
		FROM notes WHERE uid = ?
	`, uid)
	var n NoteRow
	var tagsJSON string
	if err := row.Scan(&n.UID, &n.Title, &n.Category, &n.FilePath, &n.Project, &tagsJSON, &n.ContentHash, &n.CreatedAt, &n.UpdatedAt, &n.IndexedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Newf(apperr.NotFound, "note not indexed: %s", uid)
		}
		return nil, apperr.Wrap(apperr.DatabaseError, "get note", err)
	}
	decodeTags(tagsJSON, &n.Tags)
	return &n, nil
}

func decodeTags(tagsJSON string, out *[]string) {
	_ = json.Unmarshal([]byte(tagsJSON), out)
}

// UIDForPath returns the UID indexed at filePath, or "" if none.
func (db *DB) UIDForPath(filePath string) (string, error) {
	var uid string
	err := db.conn.QueryRow(`SELECT uid FROM notes WHERE file_path = ?`, filePath).Scan(&uid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.DatabaseError, "uid for path", err)
	}
	return uid, nil
}

// AllUIDs returns every indexed note UID.
func (db *DB) AllUIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT uid FROM notes`)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "all uids", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseError, "scan uid", err)
		}
		out[uid] = struct{}{}
	}
	return out, rows.Err()
}

// AllContentHashes returns uid -> content_hash for every indexed note.
func (db *DB) AllContentHashes() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT uid, content_hash FROM notes`)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "all content hashes", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var uid, hash string
		if err := rows.Scan(&uid, &hash); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseError, "scan content hash", err)
		}
		out[uid] = hash
	}
	return out, rows.Err()
}
