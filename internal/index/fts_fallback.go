//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/starford/mnemo/internal/apperr"
)

// When FTS5 isn't compiled in, cleaned note text is kept in a plain table;
// FTSSearch reads every row and checks each query term as a case-insensitive
// substring of the content, ranking by fraction of query terms hit.
const fallbackSchemaSQL = `
CREATE TABLE IF NOT EXISTS fts_fallback (
	uid      TEXT PRIMARY KEY,
	title    TEXT NOT NULL DEFAULT '',
	content  TEXT NOT NULL DEFAULT '',
	tags     TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	project  TEXT NOT NULL DEFAULT ''
);
`

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(fallbackSchemaSQL)
	return err
}

// FTSUpsertTx replaces the fallback FTS row for uid.
func FTSUpsertTx(tx *sql.Tx, uid, title, cleanedContent, tags, category, project string) error {
	_, err := tx.Exec(`
		INSERT INTO fts_fallback (uid, title, content, tags, category, project)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			title = excluded.title, content = excluded.content, tags = excluded.tags,
			category = excluded.category, project = excluded.project
	`, uid, title, cleanedContent, tags, category, project)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "upsert fallback fts row", err)
	}
	return nil
}

// FTSDeleteTx removes uid's fallback FTS row.
func FTSDeleteTx(tx *sql.Tx, uid string) error {
	if _, err := tx.Exec(`DELETE FROM fts_fallback WHERE uid = ?`, uid); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "delete fallback fts row", err)
	}
	return nil
}

func optimizeFTS(ctx context.Context, conn *sql.DB) {
	// Scan-based fallback has no engine-side merge step.
}

// FTSCandidate is a raw fallback match before score normalization.
// RawScore mirrors the fts5 variant's convention: lower is better.
type FTSCandidate struct {
	UID      string
	Title    string
	Snippet  string
	Category string
	Project  string
	Tags     string
	RawScore float64
}

// FTSSearch tokenizes the query and scores each row by the fraction of
// query terms it contains, approximating relevance without FTS5.
func FTSSearch(ctx context.Context, conn *sql.DB, query string, limit, offset, snippetLength int, highlightTag string) ([]FTSCandidate, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := conn.QueryContext(ctx, `SELECT uid, title, content, category, project, tags FROM fts_fallback`)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "fallback search", err)
	}
	defer rows.Close()

	type scored struct {
		c     FTSCandidate
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var uid, title, content, category, project, tags string
		if err := rows.Scan(&uid, &title, &content, &category, &project, &tags); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseError, "scan fallback row", err)
		}
		lower := strings.ToLower(content)
		hits := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(terms))
		candidates = append(candidates, scored{
			c: FTSCandidate{
				UID:      uid,
				Title:    title,
				Snippet:  buildSnippet(content, terms, snippetLength, highlightTag),
				Category: category,
				Project:  project,
				Tags:     tags,
				RawScore: -score,
			},
			score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "iterate fallback rows", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if offset >= len(candidates) {
		return nil, nil
	}
	end := offset + limit
	if end > len(candidates) || limit <= 0 {
		end = len(candidates)
	}
	out := make([]FTSCandidate, 0, end-offset)
	for _, s := range candidates[offset:end] {
		out = append(out, s.c)
	}
	return out, nil
}

// buildSnippet finds the first occurrence of any term in content, trims a
// window of length around it, and wraps matched terms in the highlight tag.
func buildSnippet(content string, terms []string, length int, highlightTag string) string {
	lower := strings.ToLower(content)
	pos := -1
	for _, t := range terms {
		if idx := strings.Index(lower, t); idx >= 0 && (pos < 0 || idx < pos) {
			pos = idx
		}
	}
	if pos < 0 {
		pos = 0
	}
	start := pos - length/2
	if start < 0 {
		start = 0
	}
	end := start + length
	if end > len(content) {
		end = len(content)
	}
	window := strings.TrimSpace(content[start:end])

	open, close := "<"+highlightTag+">", "</"+highlightTag+">"
	lowerWindow := strings.ToLower(window)
	var b strings.Builder
	i := 0
	for i < len(window) {
		matched := false
		for _, t := range terms {
			if strings.HasPrefix(lowerWindow[i:], t) {
				b.WriteString(open)
				b.WriteString(window[i : i+len(t)])
				b.WriteString(close)
				i += len(t)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(window[i])
			i++
		}
	}
	prefix := ""
	if start > 0 {
		prefix = "..."
	}
	suffix := ""
	if end < len(content) {
		suffix = "..."
	}
	return prefix + b.String() + suffix
}
