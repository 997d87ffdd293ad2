// Package api serves the derived reporting records over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/repository"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/rs/zerolog"
)

// ConversationsHandler serves conversation segment queries.
type ConversationsHandler struct {
	repo   *repository.Repository
	logger zerolog.Logger
}

// NewConversationsHandler creates a new ConversationsHandler
func NewConversationsHandler(repo *repository.Repository, logger zerolog.Logger) *ConversationsHandler {
	return &ConversationsHandler{
		repo:   repo,
		logger: logger.With().Str("component", "conversations").Logger(),
	}
}

// HandleList handles GET /api/conversations. Supported query filters:
// kind, conversation_id, agent, queue, channel and date (YYYY-MM-DD).
// Results are ordered by segment date.
func (h *ConversationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind := q.Get("kind")
	conversationID := q.Get("conversation_id")
	agentUUID := q.Get("agent")
	queue := q.Get("queue")
	channel := q.Get("channel")

	var date time.Time
	if d := q.Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			http.Error(w, `{"error":"invalid date, expected YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		date = parsed
	}

	segments := h.repo.Conversations(func(s types.Segment) bool {
		if kind != "" && string(s.Kind) != kind {
			return false
		}
		if conversationID != "" && s.ConversationID != conversationID {
			return false
		}
		if agentUUID != "" && s.AgentUUID != agentUUID {
			return false
		}
		if queue != "" && s.Queue != queue {
			return false
		}
		if channel != "" && s.Channel != channel {
			return false
		}
		if !date.IsZero() {
			y, m, d := s.Date.Date()
			fy, fm, fd := date.Date()
			if y != fy || m != fm || d != fd {
				return false
			}
		}
		return true
	})
	if segments == nil {
		segments = []types.Segment{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"count":    len(segments),
		"segments": segments,
	})
}
