package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/mnemo/internal/search"
	"github.com/starford/mnemo/internal/sse"
)

// NewRouter builds the introspection-only chi router: /healthz, /stats,
// and an SSE /events stream. It binds no note-mutation routes; the tool
// registry (C11) served over C12 is the only write surface.
func NewRouter(engine *search.Engine, broker *sse.Broker) chi.Router {
	h := NewHandler(engine, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/stats", h.Stats)
	r.Get("/events", h.Events)

	return r
}
