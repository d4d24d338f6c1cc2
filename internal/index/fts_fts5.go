//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"

	"github.com/starford/mnemo/internal/apperr"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			uid UNINDEXED,
			title,
			content,
			tags,
			category UNINDEXED,
			project UNINDEXED,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// FTSUpsertTx replaces the FTS row for uid. Re-inserting a UID replaces the
// prior row, making update idempotent.
func FTSUpsertTx(tx *sql.Tx, uid, title, cleanedContent, tags, category, project string) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE uid = ?`, uid); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "delete fts row", err)
	}
	_, err := tx.Exec(`
		INSERT INTO notes_fts (uid, title, content, tags, category, project)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uid, title, cleanedContent, tags, category, project)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "insert fts row", err)
	}
	return nil
}

// FTSDeleteTx removes uid's FTS row.
func FTSDeleteTx(tx *sql.Tx, uid string) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE uid = ?`, uid); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "delete fts row", err)
	}
	return nil
}

func optimizeFTS(ctx context.Context, conn *sql.DB) {
	_, _ = conn.ExecContext(ctx, `INSERT INTO notes_fts(notes_fts) VALUES('merge')`)
}

// FTSCandidate is a raw FTS match before score normalization. RawScore
// mirrors sqlite's bm25(): lower values are better matches.
type FTSCandidate struct {
	UID      string
	Title    string
	Snippet  string
	Category string
	Project  string
	Tags     string
	RawScore float64
}

// FTSSearch runs the engine-native query and returns candidates ordered by
// relevance, best match first.
func FTSSearch(ctx context.Context, conn *sql.DB, query string, limit, offset, snippetLength int, highlightTag string) ([]FTSCandidate, error) {
	if len(tokenize(query)) == 0 {
		return nil, nil
	}
	openTag := "<" + highlightTag + ">"
	closeTag := "</" + highlightTag + ">"
	rows, err := conn.QueryContext(ctx, `
		SELECT uid, title, snippet(notes_fts, 2, ?, ?, '...', ?), category, project, tags, bm25(notes_fts)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY bm25(notes_fts)
		LIMIT ? OFFSET ?
	`, openTag, closeTag, snippetLength/10+8, query, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "fts search", err)
	}
	defer rows.Close()

	var out []FTSCandidate
	for rows.Next() {
		var c FTSCandidate
		if err := rows.Scan(&c.UID, &c.Title, &c.Snippet, &c.Category, &c.Project, &c.Tags, &c.RawScore); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseError, "scan fts row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
