// Package repository owns the insert-vs-update discipline for derived
// segments and agent records.
package repository

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/segment"
	"github.com/dennisdiepolder/taskstream/internal/storage"
	"github.com/dennisdiepolder/taskstream/internal/store"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrMissingKind rejects a segment write without a segment kind.
var ErrMissingKind = errors.New("repository: segment kind not set")

// ErrMissingAgentID rejects an agent upsert without a worker sid.
var ErrMissingAgentID = errors.New("repository: agent uuid not set")

// Publisher receives each derived segment write for live distribution.
type Publisher interface {
	Broadcast(message []byte)
}

// Repository persists segments and agent records through the injected
// collections. The mutex makes every find-then-update sequence atomic so
// concurrent batches never race an in-progress row.
type Repository struct {
	segments store.Collection[types.Segment]
	agents   store.Collection[types.AgentRecord]
	archive  storage.Store
	feed     Publisher
	logger   zerolog.Logger
	mu       sync.Mutex
}

// New creates a Repository over the given collections.
func New(segments store.Collection[types.Segment], agents store.Collection[types.AgentRecord], logger zerolog.Logger) *Repository {
	return &Repository{
		segments: segments,
		agents:   agents,
		archive:  storage.NewNoopStore(),
		logger:   logger.With().Str("component", "repository").Logger(),
	}
}

// SetArchive sets the write-through archive for terminal records.
func (r *Repository) SetArchive(s storage.Store) {
	if s != nil {
		r.archive = s
	}
}

// SetFeed sets the live-feed publisher for segment writes.
func (r *Repository) SetFeed(p Publisher) {
	r.feed = p
}

// InsertSegment builds the default segment for the event, lets apply set
// the kind and kind-specific facts, and appends a new row.
func (r *Repository) InsertSegment(ev *types.RawEvent, apply func(*types.Segment)) (types.Segment, error) {
	seg := segment.Build(ev)
	apply(&seg)
	if seg.Kind == "" {
		return types.Segment{}, ErrMissingKind
	}
	seg.SegmentUUID = uuid.New().String()

	r.segments.Insert(seg.SegmentUUID, seg)
	r.logger.Debug().
		Str("segment_uuid", seg.SegmentUUID).
		Str("segment_kind", string(seg.Kind)).
		Str("conversation_id", seg.ConversationID).
		Msg("segment inserted")

	r.afterWrite(seg)
	return seg, nil
}

// UpdateConversationInProgress folds fields into the unique in-progress
// conversation row for a reservation. A missing row is informational, not
// an error: the session may have started before this instance's retention
// window.
func (r *Repository) UpdateConversationInProgress(reservationSid string, apply func(*types.Segment)) (types.Segment, bool) {
	return r.updateInProgress(types.SegmentConversationInProgress, func(s types.Segment) bool {
		return s.ReservationSid == reservationSid
	}, apply)
}

// UpdateAgentStatusInProgress folds fields into the unique in-progress
// agent-status row for a worker.
func (r *Repository) UpdateAgentStatusInProgress(agentUUID string, apply func(*types.Segment)) (types.Segment, bool) {
	return r.updateInProgress(types.SegmentAgentStatusInProgress, func(s types.Segment) bool {
		return s.AgentUUID == agentUUID
	}, apply)
}

func (r *Repository) updateInProgress(kind types.SegmentKind, match func(types.Segment) bool, apply func(*types.Segment)) (types.Segment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, seg, found := r.segments.FindFirst(func(s types.Segment) bool {
		return s.Kind == kind && match(s)
	})
	if !found {
		r.logger.Info().
			Str("kind", string(kind)).
			Msg("in-progress entry not found for update, session may have started before this instance")
		return types.Segment{}, false
	}

	apply(&seg)
	if err := r.segments.Update(id, seg); err != nil {
		r.logger.Error().Err(err).Str("segment_uuid", id).Msg("failed to update in-progress segment")
		return types.Segment{}, false
	}

	r.logger.Debug().
		Str("segment_uuid", id).
		Str("segment_kind", string(seg.Kind)).
		Msg("in-progress segment updated")

	r.afterWrite(seg)
	return seg, true
}

// UpsertAgent writes the current-state agent row for the event's worker.
// An update against a not-yet-seen worker inserts a fresh record instead
// of failing. Identity attributes replace the stored ones wholesale; the
// original date_joined is kept and date_left is stamped only on deletion.
func (r *Repository) UpsertAgent(ev *types.RawEvent, state types.AgentState) (types.AgentRecord, error) {
	entry := segment.BuildAgent(ev)
	if entry.AgentUUID == "" {
		return types.AgentRecord{}, ErrMissingAgentID
	}

	ts := ev.Timestamp.Truncate(time.Second)
	entry.State = state
	if state == types.AgentDeleted {
		entry.DateLeft = &ts
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, found := r.agents.Get(entry.AgentUUID)
	if found {
		entry.DateJoined = existing.DateJoined
		if err := r.agents.Update(entry.AgentUUID, entry); err != nil {
			// Raced a concurrent delete of the identity; fall through to insert.
			r.agents.Insert(entry.AgentUUID, entry)
		}
	} else {
		entry.DateJoined = ts
		r.agents.Insert(entry.AgentUUID, entry)
	}

	r.logger.Debug().
		Str("agent_uuid", entry.AgentUUID).
		Str("state", string(state)).
		Bool("inserted", !found).
		Msg("agent upserted")

	if err := r.archive.SaveAgent(entry); err != nil {
		r.logger.Error().Err(err).Str("agent_uuid", entry.AgentUUID).Msg("failed to archive agent record")
	}
	return entry, nil
}

// Conversations returns all segments matching filter, ordered by date.
func (r *Repository) Conversations(filter func(types.Segment) bool) []types.Segment {
	if filter == nil {
		filter = func(types.Segment) bool { return true }
	}
	return r.segments.FindSorted(filter, func(a, b types.Segment) bool {
		return a.Date.Before(b.Date)
	})
}

// Agents returns all agent records.
func (r *Repository) Agents() []types.AgentRecord {
	return r.agents.All()
}

// Agent returns the record for one worker identity.
func (r *Repository) Agent(agentUUID string) (types.AgentRecord, bool) {
	return r.agents.Get(agentUUID)
}

// Reset drops every derived record, returning the counts removed.
func (r *Repository) Reset() (segments, agents int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.segments.Truncate(), r.agents.Truncate()
}

// afterWrite archives terminal segments and publishes the write to the
// live feed. Neither failure affects batch processing.
func (r *Repository) afterWrite(seg types.Segment) {
	if !seg.InProgress() {
		if err := r.archive.SaveSegment(seg); err != nil {
			r.logger.Error().Err(err).Str("segment_uuid", seg.SegmentUUID).Msg("failed to archive segment")
		}
	}
	if r.feed != nil {
		data, err := json.Marshal(seg)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to marshal segment for feed")
			return
		}
		r.feed.Broadcast(data)
	}
}
