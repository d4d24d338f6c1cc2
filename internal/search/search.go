// Package search implements the hybrid search engine (C10): it composes
// the database manager, full-text index, and link graph (internal/index)
// with the vault to keep notes, FTS rows, and link-graph edges in sync,
// and to answer ranked queries blending text relevance with link strength.
package search

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/starford/mnemo/internal/checksum"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/vault"
)

// Engine composes C7-C9 over a vault, presenting the C10 surface.
type Engine struct {
	db *index.DB
	v  *vault.Vault
}

func New(db *index.DB, v *vault.Vault) *Engine {
	return &Engine{db: db, v: v}
}

// IndexNote upserts n's row, FTS entry, and outbound link edges in one
// transaction. Link strength is derived from the note's header-declared
// links weighted by their occurrence count in the body (capped at 10).
func (e *Engine) IndexNote(ctx context.Context, n *vault.Note) error {
	now := time.Now().UTC()
	row := index.NoteRow{
		UID:         n.Header.ID,
		Title:       n.Header.Title,
		Category:    string(n.Header.Category),
		FilePath:    n.Path,
		Project:     n.Header.Project,
		Tags:        n.Header.Tags,
		ContentHash: checksum.Sum([]byte(n.Body)),
		CreatedAt:   n.Header.Created,
		UpdatedAt:   n.Header.Updated,
		IndexedAt:   now,
	}
	cleaned := index.StripMarkdown(n.Body)
	targetCounts := linkOccurrences(n)

	return e.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := index.UpsertNoteTx(tx, row); err != nil {
			return err
		}
		if err := index.FTSUpsertTx(tx, row.UID, row.Title, cleaned, strings.Join(row.Tags, " "), row.Category, row.Project); err != nil {
			return err
		}
		return index.UpdateLinksTx(tx, n.Header.ID, targetCounts, now)
	})
}

// linkOccurrences counts, for each header-declared link, how many times its
// target UID appears (case-insensitively) in the body, at least 1 and
// capped at 10.
func linkOccurrences(n *vault.Note) map[string]int {
	lowerBody := strings.ToLower(n.Body)
	counts := make(map[string]int, len(n.Header.Links))
	for _, uid := range n.Header.Links {
		count := strings.Count(lowerBody, strings.ToLower(uid))
		if count == 0 {
			count = 1 // header declares the link even if the body wording moved
		}
		if count > 10 {
			count = 10
		}
		counts[uid] = count
	}
	return counts
}

// RemoveNote deletes uid's row, FTS entry, and graph edges in one
// transaction.
func (e *Engine) RemoveNote(ctx context.Context, uid string) error {
	return e.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := index.DeleteNoteTx(tx, uid); err != nil {
			return err
		}
		if err := index.FTSDeleteTx(tx, uid); err != nil {
			return err
		}
		return index.RemoveLinksTx(tx, uid)
	})
}

// BatchResult reports the outcome of BatchIndex.
type BatchResult struct {
	Successful int
	Failed     int
	TotalMS    int64
	Failures   []BatchFailure
}

// BatchFailure records why a single note in a batch failed.
type BatchFailure struct {
	UID   string
	Error string
}

const batchChunkSize = 100

// BatchIndex partitions notes into chunks of ~100. Each note is indexed
// independently; a per-note failure is recorded without aborting the batch.
func (e *Engine) BatchIndex(ctx context.Context, notes []*vault.Note) BatchResult {
	start := time.Now()
	var result BatchResult

	for i := 0; i < len(notes); i += batchChunkSize {
		end := i + batchChunkSize
		if end > len(notes) {
			end = len(notes)
		}
		for _, n := range notes[i:end] {
			if err := e.IndexNote(ctx, n); err != nil {
				result.Failed++
				result.Failures = append(result.Failures, BatchFailure{UID: n.Header.ID, Error: err.Error()})
				continue
			}
			result.Successful++
		}
	}
	result.TotalMS = time.Since(start).Milliseconds()
	return result
}

// Options configures Search.
type Options struct {
	Category      string
	Tags          []string
	Project       string
	Limit         int
	Offset        int
	SnippetLength int
	HighlightTag  string
}

// Result is one ranked search hit.
type Result struct {
	UID          string
	Title        string
	Snippet      string
	FTSScore     float64
	LinkScore    float64
	Combined     float64
	OutboundUIDs []string
}

// Metrics reports timing and volume for a Search call.
type Metrics struct {
	QueryMS         int64
	ProcessingMS    int64
	TotalMS         int64
	TotalResults    int
	ReturnedResults int
	CacheHit        bool
}

// Search runs the FTS query, applies metadata filters, blends in link
// strength, and returns ranked results (§4.10). An empty query, or one
// that tokenizes to nothing, returns zero rows without error.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, Metrics, int, error) {
	total := time.Now()
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = 150
	}
	if opts.HighlightTag == "" {
		opts.HighlightTag = "mark"
	}

	queryStart := time.Now()
	// Fetch a wide unpaginated window so post-filtering and re-ranking see
	// the full candidate pool before offset/limit are applied.
	raw, err := index.FTSSearch(ctx, e.db.Conn(), query, 500, 0, opts.SnippetLength, opts.HighlightTag)
	queryMS := time.Since(queryStart).Milliseconds()
	if err != nil {
		return nil, Metrics{}, 0, err
	}
	candidates := applyFilters(raw, opts)
	normalized := normalizeScores(candidates)

	processingStart := time.Now()
	results := make([]Result, 0, len(normalized))
	for _, c := range normalized {
		backlinks, err := e.db.Backlinks(ctx, c.UID, 10)
		if err != nil {
			return nil, Metrics{}, 0, err
		}
		outbound, err := e.db.Outbound(ctx, c.UID, 10)
		if err != nil {
			return nil, Metrics{}, 0, err
		}

		linkRaw := 0
		for _, b := range backlinks {
			linkRaw += 2 * b.Strength
		}
		for _, o := range outbound {
			linkRaw += o.Strength
		}
		linkScore := float64(linkRaw) / 20.0
		if linkScore > 1.0 {
			linkScore = 1.0
		}

		outUIDs := make([]string, 0, len(outbound))
		for _, o := range outbound {
			outUIDs = append(outUIDs, o.TargetUID)
		}

		results = append(results, Result{
			UID:          c.UID,
			Title:        c.Title,
			Snippet:      c.Snippet,
			FTSScore:     c.score,
			LinkScore:    linkScore,
			Combined:     0.7*c.score + 0.3*linkScore,
			OutboundUIDs: outUIDs,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		return len(results[i].OutboundUIDs) > len(results[j].OutboundUIDs)
	})

	processingMS := time.Since(processingStart).Milliseconds()
	totalResults := len(results)
	if opts.Offset < len(results) {
		end := opts.Offset + opts.Limit
		if end > len(results) {
			end = len(results)
		}
		results = results[opts.Offset:end]
	} else {
		results = nil
	}

	return results, Metrics{
		QueryMS:         queryMS,
		ProcessingMS:    processingMS,
		TotalMS:         time.Since(total).Milliseconds(),
		TotalResults:    totalResults,
		ReturnedResults: len(results),
	}, totalResults, nil
}

// applyFilters keeps only candidates whose category/project/tags satisfy
// the requested conjunctive post-predicates.
func applyFilters(candidates []index.FTSCandidate, opts Options) []index.FTSCandidate {
	if opts.Category == "" && opts.Project == "" && len(opts.Tags) == 0 {
		return candidates
	}
	out := candidates[:0]
	for _, c := range candidates {
		if opts.Category != "" && c.Category != opts.Category {
			continue
		}
		if opts.Project != "" && c.Project != opts.Project {
			continue
		}
		if len(opts.Tags) > 0 && !hasAllTags(c.Tags, opts.Tags) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasAllTags(tagsField string, want []string) bool {
	present := strings.Fields(tagsField)
	set := make(map[string]bool, len(present))
	for _, t := range present {
		set[t] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

type scoredCandidate struct {
	index.FTSCandidate
	score float64
}

// normalizeScores maps raw engine scores (lower is better) onto fts_score
// in [0,1], where the best match in the result set scores 1.0.
func normalizeScores(candidates []index.FTSCandidate) []scoredCandidate {
	if len(candidates) == 0 {
		return nil
	}
	minRaw, maxRaw := candidates[0].RawScore, candidates[0].RawScore
	for _, c := range candidates {
		if c.RawScore < minRaw {
			minRaw = c.RawScore
		}
		if c.RawScore > maxRaw {
			maxRaw = c.RawScore
		}
	}
	spread := maxRaw - minRaw

	out := make([]scoredCandidate, len(candidates))
	for i, c := range candidates {
		var score float64
		if spread == 0 {
			score = 1.0
		} else {
			score = (maxRaw - c.RawScore) / spread
		}
		out[i] = scoredCandidate{FTSCandidate: c, score: score}
	}
	return out
}

// Backlinks, Outbound, Connected, Orphans, Stats, Optimize, and
// CheckIntegrity pass through to C7-C9.

func (e *Engine) Backlinks(ctx context.Context, target string, limit int) ([]index.LinkRow, error) {
	return e.db.Backlinks(ctx, target, limit)
}
func (e *Engine) Outbound(ctx context.Context, source string, limit int) ([]index.LinkRow, error) {
	return e.db.Outbound(ctx, source, limit)
}
func (e *Engine) Connected(ctx context.Context, start string, depth, limit int, dir index.Direction) ([]index.ConnectedNode, error) {
	return e.db.Connected(ctx, start, depth, limit, dir)
}
func (e *Engine) Orphans(limit int) ([]index.NoteRow, error)    { return e.db.Orphans(limit) }
func (e *Engine) Stats() (index.Stats, error)                   { return e.db.Stats() }
func (e *Engine) GraphStats(topN int) (index.GraphStats, error) { return e.db.GraphStats(topN) }
func (e *Engine) Optimize(ctx context.Context) error            { return e.db.Optimize(ctx) }
func (e *Engine) CheckIntegrity(ctx context.Context) (bool, error) {
	return e.db.CheckIntegrity(ctx)
}
