package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/reelrelay/internal/api/handler"
	mw "github.com/iconidentify/reelrelay/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured. The API
// routes require apiKey when it is non-empty.
func NewRouter(
	relayHandler *handler.RelayHandler,
	fetchHandler *handler.FetchHandler,
	healthHandler *handler.HealthHandler,
	downloadsHandler *handler.DownloadsHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Get("/downloads/{filename}", downloadsHandler.Serve)

	r.Route("/api/v1", func(r chi.Router) {
		if apiKey != "" {
			r.Use(mw.APIKeyAuth(apiKey))
		}

		r.Post("/fetch", fetchHandler.Fetch)
		r.Post("/check", fetchHandler.Check)
		r.Post("/relay", relayHandler.Relay)
		r.Get("/stats", healthHandler.Stats)
	})

	return r
}
