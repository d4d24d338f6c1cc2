// Package httpapi implements the local-only debug/introspection surface
// (A4): health, index statistics, and an SSE stream of domain events. It
// carries no note-CRUD operations — the tool protocol (C12) is the only
// wire surface for note mutation.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/mnemo/internal/search"
	"github.com/starford/mnemo/internal/sse"
)

// EventType names the domain events this surface broadcasts.
const (
	EventNoteMoved    = "note.moved"
	EventBacklinkSync = "backlink.sync"
)

// Handler serves the introspection endpoints.
type Handler struct {
	engine *search.Engine
	broker *sse.Broker
}

// NewHandler builds a Handler over engine's stats and broker's event stream.
func NewHandler(engine *search.Engine, broker *sse.Broker) *Handler {
	return &Handler{engine: engine, broker: broker}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpapi: json encode failed", slog.String("error", err.Error()))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats proxies the database manager's stats() (§4.7) and the link graph's
// graph_stats() (§4.9).
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.engine.Stats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	graphStats, err := h.engine.GraphStats(10)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": stats, "graph": graphStats})
}

// Events streams NoteMoved and BacklinkSync events over SSE.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.broker.ServeHTTP(w, r)
}

// PublishNoteMoved broadcasts a note-relocation event, e.g. after the PARA
// organizer moves a file between category directories.
func (h *Handler) PublishNoteMoved(uid, from, to string) {
	h.broker.Publish(sse.Event{Type: EventNoteMoved, Data: map[string]string{
		"uid": uid, "from": from, "to": to,
	}})
}

// PublishBacklinkSync broadcasts a backlink-synchronizer completion event.
func (h *Handler) PublishBacklinkSync(uid string, linksAdded, linksRemoved int) {
	h.broker.Publish(sse.Event{Type: EventBacklinkSync, Data: map[string]any{
		"uid": uid, "links_added": linksAdded, "links_removed": linksRemoved,
	}})
}
