// Package session implements the association hook (C13): a bounded,
// per-session memory of recently touched note UIDs, and an associate
// operation that reweights hybrid search results by how well they connect
// to that recent history.
package session

import (
	"context"
	"sync"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/search"
)

// maxRecent bounds how many UIDs a session remembers. Oldest entries fall
// off as new ones are recorded (§4.13 "bounded-size ordered set").
const maxRecent = 20

// entry is one remembered session.
type entry struct {
	recent []string // most recent last
}

// Store holds all live sessions behind a single mutex — session lookups
// are simple map operations, not a publish/subscribe stream, so a plain
// mutex (rather than a broker goroutine) is enough.
type Store struct {
	search *search.Engine

	mu       sync.Mutex
	sessions map[string]*entry
}

func New(engine *search.Engine) *Store {
	return &Store{search: engine, sessions: make(map[string]*entry)}
}

// Get returns the recent UIDs for sid, most-recent last. A missing session
// returns nil, not an error.
func (s *Store) Get(sid string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok {
		return nil
	}
	out := make([]string, len(e.recent))
	copy(out, e.recent)
	return out
}

// Reset clears sid's history (creating the session if absent).
func (s *Store) Reset(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = &entry{}
}

// Record appends uid to sid's recent set, creating the session if absent,
// dropping the oldest entry once maxRecent is exceeded. Re-recording an
// already-present uid moves it to the front is skipped for simplicity: it
// is a no-op, since it is already within the recency window.
func (s *Store) Record(sid, uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok {
		e = &entry{}
		s.sessions[sid] = e
	}
	for _, existing := range e.recent {
		if existing == uid {
			return
		}
	}
	e.recent = append(e.recent, uid)
	if len(e.recent) > maxRecent {
		e.recent = e.recent[len(e.recent)-maxRecent:]
	}
}

func (s *Store) exists(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sid]
	return ok
}

// AssociateOptions configures Associate.
type AssociateOptions struct {
	Limit    int
	Strength float64
}

// Associated is one reweighted search hit.
type Associated struct {
	search.Result
	Affinity float64
	Blended  float64
}

// Reflect returns sid's recent UIDs. Fails apperr.InvalidRequest if sid
// has never been seen.
func (s *Store) Reflect(sid string) ([]string, error) {
	if !s.exists(sid) {
		return nil, apperr.Newf(apperr.InvalidRequest, "unknown session: %s", sid)
	}
	return s.Get(sid), nil
}

// Associate runs a hybrid search for query, then reweights each candidate
// by session affinity: the fraction of sid's recent UIDs that fall inside
// the candidate's depth-1 neighborhood, blended with the hybrid score using
// strength as the blend weight (§4.13). A session with no history yet is
// implicitly created rather than failing.
func (s *Store) Associate(ctx context.Context, sid, query string, opts AssociateOptions) ([]Associated, error) {
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	if opts.Strength <= 0 {
		opts.Strength = 0.7
	}

	s.mu.Lock()
	if _, ok := s.sessions[sid]; !ok {
		s.sessions[sid] = &entry{}
	}
	recent := append([]string(nil), s.sessions[sid].recent...)
	s.mu.Unlock()

	results, _, _, err := s.search.Search(ctx, query, search.Options{Limit: opts.Limit * 4})
	if err != nil {
		return nil, err
	}

	out := make([]Associated, 0, len(results))
	for _, r := range results {
		affinity := 0.0
		if len(recent) > 0 {
			neighbors, err := s.search.Connected(ctx, r.UID, 1, 100, index.Both)
			if err != nil {
				return nil, err
			}
			neighborSet := make(map[string]bool, len(neighbors))
			for _, n := range neighbors {
				neighborSet[n.UID] = true
			}
			hits := 0
			for _, uid := range recent {
				if neighborSet[uid] {
					hits++
				}
			}
			affinity = float64(hits) / float64(len(recent))
		}
		blended := opts.Strength*affinity + (1-opts.Strength)*r.Combined
		out = append(out, Associated{Result: r, Affinity: affinity, Blended: blended})
	}

	sortByBlended(out)
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	for _, a := range out {
		s.Record(sid, a.UID)
	}
	return out, nil
}

func sortByBlended(out []Associated) {
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Blended > out[j-1].Blended; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
}
