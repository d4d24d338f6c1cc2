package toolkit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/backlink"
	"github.com/starford/mnemo/internal/header"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/para"
	"github.com/starford/mnemo/internal/search"
	"github.com/starford/mnemo/internal/session"
	"github.com/starford/mnemo/internal/vault"
)

// Deps bundles the components the default tool set calls into.
type Deps struct {
	Vault     *vault.Vault
	Organizer *para.Organizer
	Engine    *search.Engine
	Sync      *backlink.Synchronizer
	Sessions  *session.Store
}

// DefaultTools builds the minimum registered tool set §4.11 requires:
// search_memory, create_note, update_note, delete_note, explore_links,
// associative_search, session_context, reflect_session.
func DefaultTools(d Deps) []Tool {
	return []Tool{
		searchMemoryTool(d),
		createNoteTool(d),
		updateNoteTool(d),
		deleteNoteTool(d),
		exploreLinksTool(d),
		associativeSearchTool(d),
		sessionContextTool(d),
		reflectSessionTool(d),
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, apperr.Wrap(apperr.InvalidRequest, "decode tool input", err)
	}
	return v, nil
}

// --- search_memory ---

type searchMemoryInput struct {
	Query     string   `json:"query"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	Project   string   `json:"project"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
	SessionID string   `json:"session_id"`
}

func searchMemoryTool(d Deps) Tool {
	return Tool{
		Name:        "search_memory",
		Description: "Hybrid full-text and link-graph search over stored notes.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"query"},
			"properties": map[string]any{
				"query":      map[string]any{"type": "string"},
				"category":   map[string]any{"type": "string"},
				"tags":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"project":    map[string]any{"type": "string"},
				"limit":      map[string]any{"type": "integer"},
				"offset":     map[string]any{"type": "integer"},
				"session_id": map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decode[searchMemoryInput](raw)
			if err != nil {
				return nil, err
			}
			results, metrics, total, err := d.Engine.Search(ctx, in.Query, search.Options{
				Category: in.Category, Tags: in.Tags, Project: in.Project,
				Limit: in.Limit, Offset: in.Offset,
			})
			if err != nil {
				return nil, err
			}
			if in.SessionID != "" {
				for _, r := range results {
					d.Sessions.Record(in.SessionID, r.UID)
				}
			}
			return map[string]any{"results": results, "metrics": metrics, "total": total}, nil
		},
	}
}

// --- create_note ---

type createNoteInput struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	Project   string   `json:"project"`
	SessionID string   `json:"session_id"`
}

func createNoteTool(d Deps) Tool {
	return Tool{
		Name:        "create_note",
		Description: "Create a new note in the vault and index it.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"title", "content", "category"},
			"properties": map[string]any{
				"title":      map[string]any{"type": "string"},
				"content":    map[string]any{"type": "string"},
				"category":   map[string]any{"type": "string", "enum": []string{"Projects", "Areas", "Resources", "Archives"}},
				"tags":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"project":    map[string]any{"type": "string"},
				"session_id": map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decode[createNoteInput](raw)
			if err != nil {
				return nil, err
			}
			category := header.Category(in.Category)
			path := d.Organizer.TargetPath(category, in.Project, in.Title)

			n, err := d.Vault.Create(ctx, path, in.Title, in.Content, vault.CreateOptions{
				Category: category, Tags: in.Tags, Project: in.Project,
			})
			if err != nil {
				return nil, err
			}
			if err := d.Sync.Sync(ctx, n.Header.ID); err != nil {
				return nil, err
			}
			n, err = d.Vault.Load(ctx, n.Path)
			if err != nil {
				return nil, err
			}
			if err := d.Engine.IndexNote(ctx, n); err != nil {
				return nil, err
			}
			if in.SessionID != "" {
				d.Sessions.Record(in.SessionID, n.Header.ID)
			}
			return map[string]any{"uid": n.Header.ID, "path": n.Path, "title": n.Header.Title}, nil
		},
	}
}

// --- update_note ---

type updateNoteInput struct {
	UID       string    `json:"uid"`
	Title     *string   `json:"title"`
	Content   *string   `json:"content"`
	Tags      *[]string `json:"tags"`
	Project   *string   `json:"project"`
	SessionID string    `json:"session_id"`
}

func updateNoteTool(d Deps) Tool {
	return Tool{
		Name:        "update_note",
		Description: "Update an existing note's title, content, tags, or project, and re-index it.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"uid"},
			"properties": map[string]any{
				"uid":        map[string]any{"type": "string"},
				"title":      map[string]any{"type": "string"},
				"content":    map[string]any{"type": "string"},
				"tags":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"project":    map[string]any{"type": "string"},
				"session_id": map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decode[updateNoteInput](raw)
			if err != nil {
				return nil, err
			}
			n, err := d.Vault.FindByUID(ctx, in.UID)
			if err != nil {
				return nil, err
			}
			if n == nil {
				return nil, apperr.Newf(apperr.NotFound, "note not found: %s", in.UID)
			}
			if in.Title != nil {
				n.Header.Title = *in.Title
			}
			if in.Content != nil {
				n.Body = *in.Content
			}
			if in.Tags != nil {
				n.Header.Tags = *in.Tags
			}
			if in.Project != nil {
				n.Header.Project = *in.Project
			}
			if err := d.Vault.Save(ctx, n, vault.SaveOptions{Atomic: true}); err != nil {
				return nil, err
			}
			if err := d.Sync.Sync(ctx, n.Header.ID); err != nil {
				return nil, err
			}
			n, err = d.Vault.Load(ctx, n.Path)
			if err != nil {
				return nil, err
			}
			if err := d.Engine.IndexNote(ctx, n); err != nil {
				return nil, err
			}
			if in.SessionID != "" {
				d.Sessions.Record(in.SessionID, n.Header.ID)
			}
			return map[string]any{"uid": n.Header.ID, "path": n.Path, "updated_at": n.Header.Updated.Format(time.RFC3339)}, nil
		},
	}
}

// --- delete_note ---

type deleteNoteInput struct {
	UID string `json:"uid"`
}

func deleteNoteTool(d Deps) Tool {
	return Tool{
		Name:        "delete_note",
		Description: "Delete a note from the vault and remove it from the index and link graph. Deleting an unknown uid is a no-op success.",
		InputSchema: map[string]any{
			"type":       "object",
			"required":   []string{"uid"},
			"properties": map[string]any{"uid": map[string]any{"type": "string"}},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decode[deleteNoteInput](raw)
			if err != nil {
				return nil, err
			}
			n, err := d.Vault.FindByUID(ctx, in.UID)
			if err != nil {
				return nil, err
			}
			if n == nil {
				return map[string]any{"uid": in.UID, "deleted": false}, nil
			}
			if err := d.Vault.Delete(ctx, n.Path, vault.DeleteOptions{}); err != nil {
				return nil, err
			}
			if err := d.Engine.RemoveNote(ctx, in.UID); err != nil {
				return nil, err
			}
			if err := d.Sync.Cleanup(ctx, in.UID, nil); err != nil {
				return nil, err
			}
			return map[string]any{"uid": in.UID, "deleted": true}, nil
		},
	}
}

// --- explore_links ---

type exploreLinksInput struct {
	UID       string `json:"uid"`
	Depth     int    `json:"depth"`
	Limit     int    `json:"limit"`
	Direction string `json:"direction"`
	SessionID string `json:"session_id"`
}

func exploreLinksTool(d Deps) Tool {
	return Tool{
		Name:        "explore_links",
		Description: "Explore a note's backlinks, outbound links, and bounded-depth connected neighborhood.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"uid"},
			"properties": map[string]any{
				"uid":        map[string]any{"type": "string"},
				"depth":      map[string]any{"type": "integer"},
				"limit":      map[string]any{"type": "integer"},
				"direction":  map[string]any{"type": "string", "enum": []string{"outgoing", "incoming", "both"}},
				"session_id": map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decode[exploreLinksInput](raw)
			if err != nil {
				return nil, err
			}
			depth := in.Depth
			if depth <= 0 {
				depth = 2
			}
			limit := in.Limit
			if limit <= 0 {
				limit = 100
			}
			direction := index.Direction(in.Direction)
			if direction == "" {
				direction = index.Both
			}

			backlinks, err := d.Engine.Backlinks(ctx, in.UID, 50)
			if err != nil {
				return nil, err
			}
			outbound, err := d.Engine.Outbound(ctx, in.UID, 50)
			if err != nil {
				return nil, err
			}
			connected, err := d.Engine.Connected(ctx, in.UID, depth, limit, direction)
			if err != nil {
				return nil, err
			}
			if in.SessionID != "" {
				d.Sessions.Record(in.SessionID, in.UID)
			}
			return map[string]any{"backlinks": backlinks, "outbound": outbound, "connected": connected}, nil
		},
	}
}

// --- associative_search ---

type associativeSearchInput struct {
	SessionID string  `json:"session_id"`
	Query     string  `json:"query"`
	Limit     int     `json:"limit"`
	Strength  float64 `json:"strength"`
}

func associativeSearchTool(d Deps) Tool {
	return Tool{
		Name:        "associative_search",
		Description: "Search reweighted by the session's recent note history; implicitly creates the session if unseen.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"session_id", "query"},
			"properties": map[string]any{
				"session_id": map[string]any{"type": "string"},
				"query":      map[string]any{"type": "string"},
				"limit":      map[string]any{"type": "integer"},
				"strength":   map[string]any{"type": "number"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decode[associativeSearchInput](raw)
			if err != nil {
				return nil, err
			}
			results, err := d.Sessions.Associate(ctx, in.SessionID, in.Query, session.AssociateOptions{
				Limit: in.Limit, Strength: in.Strength,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"results": results}, nil
		},
	}
}

// --- session_context ---

type sessionContextInput struct {
	SessionID string `json:"session_id"`
	Reset     bool   `json:"reset"`
}

func sessionContextTool(d Deps) Tool {
	return Tool{
		Name:        "session_context",
		Description: "Return a session's recent-UID history, or clear it when reset is true.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"session_id"},
			"properties": map[string]any{
				"session_id": map[string]any{"type": "string"},
				"reset":      map[string]any{"type": "boolean"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decode[sessionContextInput](raw)
			if err != nil {
				return nil, err
			}
			if in.Reset {
				d.Sessions.Reset(in.SessionID)
			}
			return map[string]any{"session_id": in.SessionID, "recent": d.Sessions.Get(in.SessionID)}, nil
		},
	}
}

// --- reflect_session ---

type reflectSessionInput struct {
	SessionID string `json:"session_id"`
}

func reflectSessionTool(d Deps) Tool {
	return Tool{
		Name:        "reflect_session",
		Description: "Return a known session's recent-UID history. Fails on an unknown session.",
		InputSchema: map[string]any{
			"type":       "object",
			"required":   []string{"session_id"},
			"properties": map[string]any{"session_id": map[string]any{"type": "string"}},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decode[reflectSessionInput](raw)
			if err != nil {
				return nil, err
			}
			recent, err := d.Sessions.Reflect(in.SessionID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"session_id": in.SessionID, "recent": recent}, nil
		},
	}
}
