package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dennisdiepolder/taskstream/internal/auth"
	"github.com/dennisdiepolder/taskstream/internal/cache"
	"github.com/dennisdiepolder/taskstream/internal/repository"
	"github.com/dennisdiepolder/taskstream/internal/storage"
	"github.com/rs/zerolog"
)

// AdminHandler handles resets of in-memory and archived state.
type AdminHandler struct {
	events *cache.EventCache
	repo   *repository.Repository
	store  storage.Store
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(events *cache.EventCache, repo *repository.Repository, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		events: events,
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

// RequireAdmin middleware — only admin role allowed
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ResetMemory clears in-memory state (event cache + derived records)
func (h *AdminHandler) ResetMemory(w http.ResponseWriter, r *http.Request) {
	eventsCleared := h.events.Clear()
	segmentsCleared, agentsCleared := h.repo.Reset()

	h.logger.Info().
		Int("events", eventsCleared).
		Int("segments", segmentsCleared).
		Int("agents", agentsCleared).
		Msg("memory reset")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":         "memory reset",
		"eventsCleared":   eventsCleared,
		"segmentsCleared": segmentsCleared,
		"agentsCleared":   agentsCleared,
	})
}

// WipeArchive truncates all archive tables
func (h *AdminHandler) WipeArchive(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate archive tables")
		http.Error(w, fmt.Sprintf(`{"error":"failed to truncate: %s"}`, err), http.StatusInternalServerError)
		return
	}

	h.logger.Info().Msg("archive tables truncated")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "archive tables truncated",
	})
}
