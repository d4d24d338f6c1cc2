package index

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/starford/mnemo/internal/apperr"
)

// LinkRow mirrors a row of the links table.
type LinkRow struct {
	SourceUID  string
	TargetUID  string
	Kind       string
	Strength   int
	CreatedAt  time.Time
	LastSeenAt time.Time
}

const maxLinkStrength = 10

// UpdateLinksTx replaces every outbound link from note uid with the given
// target UIDs in one transaction: delete all rows where source_uid = uid,
// then insert one row per distinct target, its strength the number of body
// occurrences of the target token (capped at 10).
func UpdateLinksTx(tx *sql.Tx, sourceUID string, targetCounts map[string]int, now time.Time) error {
	if _, err := tx.Exec(`DELETE FROM links WHERE source_uid = ?`, sourceUID); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "clear outbound links", err)
	}
	for target, count := range targetCounts {
		if target == sourceUID {
			continue
		}
		strength := count
		if strength > maxLinkStrength {
			strength = maxLinkStrength
		}
		if strength < 1 {
			strength = 1
		}
		_, err := tx.Exec(`
			INSERT INTO links (source_uid, target_uid, kind, strength, created_at, last_seen_at)
			VALUES (?, ?, 'internal', ?, ?, ?)
			ON CONFLICT(source_uid, target_uid, kind) DO UPDATE SET
				strength = excluded.strength, last_seen_at = excluded.last_seen_at
		`, sourceUID, target, strength, now, now)
		if err != nil {
			return apperr.Wrap(apperr.DatabaseError, "insert link", err)
		}
	}
	return nil
}

// RemoveLinksTx deletes every link row touching uid, in either direction.
func RemoveLinksTx(tx *sql.Tx, uid string) error {
	if _, err := tx.Exec(`DELETE FROM links WHERE source_uid = ? OR target_uid = ?`, uid, uid); err != nil {
		return apperr.Wrap(apperr.DatabaseError, "remove links", err)
	}
	return nil
}

// Backlinks returns notes linking to target, ordered by strength then
// recency, joined to notes to exclude sources that no longer exist.
func (db *DB) Backlinks(ctx context.Context, target string, limit int) ([]LinkRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT l.source_uid, l.target_uid, l.kind, l.strength, l.created_at, l.last_seen_at
		FROM links l
		JOIN notes n ON n.uid = l.source_uid
		WHERE l.target_uid = ?
		ORDER BY l.strength DESC, l.last_seen_at DESC
		LIMIT ?
	`, target, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "backlinks", err)
	}
	defer rows.Close()
	return scanLinkRows(rows)
}

// Outbound returns notes source links to, ordered symmetrically to Backlinks.
func (db *DB) Outbound(ctx context.Context, source string, limit int) ([]LinkRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT l.source_uid, l.target_uid, l.kind, l.strength, l.created_at, l.last_seen_at
		FROM links l
		JOIN notes n ON n.uid = l.target_uid
		WHERE l.source_uid = ?
		ORDER BY l.strength DESC, l.last_seen_at DESC
		LIMIT ?
	`, source, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "outbound", err)
	}
	defer rows.Close()
	return scanLinkRows(rows)
}

func scanLinkRows(rows *sql.Rows) ([]LinkRow, error) {
	var out []LinkRow
	for rows.Next() {
		var r LinkRow
		if err := rows.Scan(&r.SourceUID, &r.TargetUID, &r.Kind, &r.Strength, &r.CreatedAt, &r.LastSeenAt); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseError, "scan link row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Direction selects which edges Connected traverses.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

// ConnectedNode is a scored result of a bounded BFS traversal.
type ConnectedNode struct {
	UID   string
	Score float64
	Depth int
}

// Connected performs a bounded breadth-first traversal from start. Each
// enqueued node is scored score = parent_score * 0.7^depth, starting at
// 1.0 for start itself. Ties are broken by BFS insertion order (stable).
func (db *DB) Connected(ctx context.Context, start string, depth, limit int, direction Direction) ([]ConnectedNode, error) {
	if depth <= 0 {
		return []ConnectedNode{{UID: start, Score: 1.0, Depth: 0}}, nil
	}
	if limit <= 0 {
		limit = 100
	}
	if direction == "" {
		direction = Both
	}

	type queued struct {
		uid   string
		score float64
		depth int
	}

	visited := map[string]bool{start: true}
	queue := []queued{{uid: start, score: 1.0, depth: 0}}
	results := []ConnectedNode{{UID: start, Score: 1.0, Depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}

		neighbors, err := db.neighborUIDs(ctx, cur.uid, direction)
		if err != nil {
			return nil, err
		}
		nextDepth := cur.depth + 1
		nextScore := cur.score * pow07(nextDepth)
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			results = append(results, ConnectedNode{UID: n, Score: nextScore, Depth: nextDepth})
			queue = append(queue, queued{uid: n, score: nextScore, depth: nextDepth})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func pow07(depth int) float64 {
	score := 1.0
	for i := 0; i < depth; i++ {
		score *= 0.7
	}
	return score
}

func (db *DB) neighborUIDs(ctx context.Context, uid string, direction Direction) ([]string, error) {
	var query string
	switch direction {
	case Outgoing:
		query = `SELECT DISTINCT target_uid FROM links WHERE source_uid = ?`
	case Incoming:
		query = `SELECT DISTINCT source_uid FROM links WHERE target_uid = ?`
	default:
		query = `SELECT DISTINCT target_uid FROM links WHERE source_uid = ? UNION SELECT DISTINCT source_uid FROM links WHERE target_uid = ?`
	}
	var rows *sql.Rows
	var err error
	if direction == Both {
		rows, err = db.conn.QueryContext(ctx, query, uid, uid)
	} else {
		rows, err = db.conn.QueryContext(ctx, query, uid)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "neighbor uids", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseError, "scan neighbor uid", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Orphans returns notes with no inbound links, most recently updated first.
func (db *DB) Orphans(limit int) ([]NoteRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT uid, title, category, file_path, COALESCE(project, ''), tags_json, content_hash, created_at, updated_at, indexed_at
		FROM notes n
		WHERE NOT EXISTS (SELECT 1 FROM links l WHERE l.target_uid = n.uid)
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, "orphans", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var n NoteRow
		var tagsJSON string
		if err := rows.Scan(&n.UID, &n.Title, &n.Category, &n.FilePath, &n.Project, &tagsJSON, &n.ContentHash, &n.CreatedAt, &n.UpdatedAt, &n.IndexedAt); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseError, "scan orphan", err)
		}
		decodeTags(tagsJSON, &n.Tags)
		out = append(out, n)
	}
	return out, rows.Err()
}

// GraphStats reports link totals and the most-linked-to targets.
type GraphStats struct {
	TotalLinks     int
	TopTargets     []LinkTargetCount
}

// LinkTargetCount is a target UID and its inbound link count.
type LinkTargetCount struct {
	UID   string
	Count int
}

func (db *DB) GraphStats(topN int) (GraphStats, error) {
	if topN <= 0 {
		topN = 10
	}
	var s GraphStats
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM links`).Scan(&s.TotalLinks); err != nil {
		return s, apperr.Wrap(apperr.DatabaseError, "count links", err)
	}
	rows, err := db.conn.Query(`
		SELECT target_uid, COUNT(*) AS c FROM links GROUP BY target_uid ORDER BY c DESC LIMIT ?
	`, topN)
	if err != nil {
		return s, apperr.Wrap(apperr.DatabaseError, "top targets", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t LinkTargetCount
		if err := rows.Scan(&t.UID, &t.Count); err != nil {
			return s, apperr.Wrap(apperr.DatabaseError, "scan top target", err)
		}
		s.TopTargets = append(s.TopTargets, t)
	}
	return s, rows.Err()
}
