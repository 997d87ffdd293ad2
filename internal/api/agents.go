package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/repository"
	"github.com/dennisdiepolder/taskstream/internal/storage"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgentsHandler serves the agent roster and per-agent history.
type AgentsHandler struct {
	repo   *repository.Repository
	store  storage.Store
	logger zerolog.Logger
}

// NewAgentsHandler creates a new AgentsHandler
func NewAgentsHandler(repo *repository.Repository, store storage.Store, logger zerolog.Logger) *AgentsHandler {
	return &AgentsHandler{
		repo:   repo,
		store:  store,
		logger: logger.With().Str("component", "agents").Logger(),
	}
}

// HandleList handles GET /api/agents with an optional state filter
// (Active or Deleted).
func (h *AgentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")

	agents := h.repo.Agents()
	if state != "" {
		filtered := make([]types.AgentRecord, 0, len(agents))
		for _, a := range agents {
			if string(a.State) == state {
				filtered = append(filtered, a)
			}
		}
		agents = filtered
	}
	if agents == nil {
		agents = []types.AgentRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"count":  len(agents),
		"agents": agents,
	})
}

// HandleGet handles GET /api/agents/{agentUUID}. Falls back to the archive
// when the worker was last seen before this instance started.
func (h *AgentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	agentUUID := chi.URLParam(r, "agentUUID")

	if agent, ok := h.repo.Agent(agentUUID); ok {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(agent)
		return
	}

	archived, err := h.store.GetAgent(agentUUID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_uuid", agentUUID).Msg("archive lookup failed")
		http.Error(w, `{"error":"archive lookup failed"}`, http.StatusInternalServerError)
		return
	}
	if archived == nil {
		http.Error(w, `{"error":"agent not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(archived)
}

// HandleSegments handles GET /api/agents/{agentUUID}/segments. Reads the
// archived segments for one day, defaulting to today.
func (h *AgentsHandler) HandleSegments(w http.ResponseWriter, r *http.Request) {
	agentUUID := chi.URLParam(r, "agentUUID")

	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		dateKey = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", dateKey); err != nil {
		http.Error(w, `{"error":"invalid date, expected YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	segments, err := h.store.GetAgentSegments(agentUUID, dateKey)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_uuid", agentUUID).Str("date", dateKey).Msg("failed to read agent segments")
		http.Error(w, `{"error":"failed to read agent segments"}`, http.StatusInternalServerError)
		return
	}
	if segments == nil {
		segments = []types.Segment{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"agent_uuid": agentUUID,
		"date":       dateKey,
		"count":      len(segments),
		"segments":   segments,
	})
}
