// Package dispatch maps each lifecycle event onto the segment and agent
// writes it implies.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/dennisdiepolder/taskstream/internal/cache"
	"github.com/dennisdiepolder/taskstream/internal/correlate"
	"github.com/dennisdiepolder/taskstream/internal/metrics"
	"github.com/dennisdiepolder/taskstream/internal/repository"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/rs/zerolog"
)

// Dispatcher classifies envelopes and derives reporting records from them.
type Dispatcher struct {
	events *cache.EventCache
	corr   *correlate.Correlator
	repo   *repository.Repository
	logger zerolog.Logger
}

// New creates a Dispatcher.
func New(events *cache.EventCache, corr *correlate.Correlator, repo *repository.Repository, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		events: events,
		corr:   corr,
		repo:   repo,
		logger: logger.With().Str("component", "dispatch").Logger(),
	}
}

// ProcessBatch processes envelopes strictly in array order. The batch
// always succeeds as a whole; a failing item is logged with its index and
// the remaining items still process.
func (d *Dispatcher) ProcessBatch(envelopes []types.Envelope) {
	m := metrics.Get()
	m.RecordBatchReceived()

	for i, env := range envelopes {
		m.RecordEventReceived()
		if err := d.process(env, i); err != nil {
			m.RecordEventError()
			d.logger.Error().
				Err(err).
				Int("index", i).
				Str("event_id", env.ID).
				Str("event_type", env.Type).
				Msg("failed to process event")
			continue
		}
		m.RecordEventProcessed()
	}
}

func (d *Dispatcher) process(env types.Envelope, index int) error {
	m := metrics.Get()

	if !env.Valid() {
		return fmt.Errorf("malformed envelope at index %d: missing id or type", index)
	}

	log := d.logger.With().Str("event_id", env.ID).Str("type", env.Type).Logger()
	if env.Data.TestID != "" {
		log = log.With().Str("test_id", env.Data.TestID).Logger()
	}
	log.Debug().Int("index", index).Msg("event received")

	if !strings.HasPrefix(env.Type, types.TaskRouterNamespace) {
		log.Debug().Msg("event outside taskrouter namespace, skipping")
		m.RecordEventSkipped()
		return nil
	}

	ev, parseErr := types.ParseEvent(env)
	if parseErr != nil {
		log.Warn().Err(parseErr).Msg("attribute bag failed to decode, continuing with empty attributes")
	}

	// Every taskrouter event is cached, segment-producing or not, so later
	// correlation lookups can find it.
	if _, ok := d.events.Add(ev); !ok {
		log.Debug().Msg("duplicate event id, already processed")
		m.RecordEventSkipped()
		return nil
	}

	switch ev.EventType {
	case types.EventReservationAccepted:
		return d.reservationAccepted(ev)

	case types.EventReservationRejected, types.EventReservationTimeout,
		types.EventReservationCanceled, types.EventReservationRescinded:
		return d.reservationFailed(ev)

	case types.EventReservationCompleted:
		return d.reservationCompleted(ev)

	case types.EventTaskCanceled, types.EventTaskTransferFailed:
		return d.taskAbandoned(ev)

	case types.EventWorkerCreated:
		return d.workerCreated(ev)

	case types.EventWorkerDeleted:
		return d.upsertAgent(ev, types.AgentDeleted)

	case types.EventWorkerAttributesUpdated:
		return d.upsertAgent(ev, types.AgentActive)

	case types.EventWorkerActivityUpdated:
		return d.workerActivityUpdated(ev)

	default:
		// Includes the correlation anchors (queue entered, transfer
		// initiated, reservation created, wrapup): cached above, no segment.
		log.Debug().Str("eventtype", ev.EventType).Msg("event cached but generates no segments")
		m.RecordUnhandledEvent()
		return nil
	}
}

// reservationAccepted opens a conversation: one QUEUE segment for the
// finished queue phase and one in-progress conversation row awaiting the
// terminal reservation event.
func (d *Dispatcher) reservationAccepted(ev *types.RawEvent) error {
	m := metrics.Get()

	queueExit, qerr := d.corr.TimeInQueue(ev.TaskSid, ev.Timestamp)
	if qerr != nil {
		m.RecordCorrelationMiss()
	}
	ringTime, rerr := d.corr.RingTime(ev.ReservationSid, ev.Timestamp)
	if rerr != nil {
		m.RecordCorrelationMiss()
	}

	queueSeg, err := d.repo.InsertSegment(ev, func(s *types.Segment) {
		s.Kind = types.SegmentQueue
		if qerr == nil {
			s.QueueTime = types.Int64Ptr(queueExit.Seconds)
			s.Date = queueExit.EnteredAt
			s.Time = queueExit.EnteredAt
		}
	})
	if err != nil {
		return err
	}
	m.RecordSegmentInserted(queueSeg.Kind)

	inProgSeg, err := d.repo.InsertSegment(ev, func(s *types.Segment) {
		s.Kind = types.SegmentConversationInProgress
		if qerr == nil {
			s.QueueTime = types.Int64Ptr(queueExit.Seconds)
		}
		if rerr == nil {
			s.RingTime = types.Int64Ptr(ringTime)
		}
	})
	if err != nil {
		return err
	}
	m.RecordSegmentInserted(inProgSeg.Kind)
	return nil
}

// reservationFailed records a terminal segment for a reservation that
// never connected. Timeout and canceled both count as missed; rescinded
// reservations were revoked by the router.
func (d *Dispatcher) reservationFailed(ev *types.RawEvent) error {
	m := metrics.Get()

	var kind types.SegmentKind
	switch ev.EventType {
	case types.EventReservationRejected:
		kind = types.SegmentRejected
	case types.EventReservationTimeout, types.EventReservationCanceled:
		kind = types.SegmentMissed
	case types.EventReservationRescinded:
		kind = types.SegmentRevoked
	}

	ringTime, rerr := d.corr.RingTime(ev.ReservationSid, ev.Timestamp)
	if rerr != nil {
		m.RecordCorrelationMiss()
	}

	seg, err := d.repo.InsertSegment(ev, func(s *types.Segment) {
		s.Kind = kind
		if rerr == nil {
			s.RingTime = types.Int64Ptr(ringTime)
		}
	})
	if err != nil {
		return err
	}
	m.RecordSegmentInserted(seg.Kind)
	return nil
}

// reservationCompleted folds talk and wrap-up time into the in-progress
// conversation row, turning it terminal.
func (d *Dispatcher) reservationCompleted(ev *types.RawEvent) error {
	m := metrics.Get()

	talkTime, terr := d.corr.TalkTime(ev.ReservationSid, ev.Timestamp)
	if terr != nil {
		m.RecordCorrelationMiss()
	}
	wrapupTime := d.corr.WrapupTime(ev.ReservationSid, ev.Timestamp)
	segmentLink := ev.TaskAttributes.Conversations.SegmentLink

	seg, updated := d.repo.UpdateConversationInProgress(ev.ReservationSid, func(s *types.Segment) {
		s.Kind = types.SegmentConversation
		if terr == nil {
			s.TalkTime = types.Int64Ptr(talkTime)
		}
		s.WrapupTime = types.Int64Ptr(wrapupTime)
		if segmentLink != "" {
			s.SegmentLink = segmentLink
		}
	})
	if updated {
		m.RecordSegmentUpdated(seg.Kind)
	}
	return nil
}

// taskAbandoned records a queue phase and a conversation abandoned in
// queue, for tasks canceled or failed during transfer.
func (d *Dispatcher) taskAbandoned(ev *types.RawEvent) error {
	m := metrics.Get()

	queueExit, qerr := d.corr.TimeInQueue(ev.TaskSid, ev.Timestamp)
	if qerr != nil {
		m.RecordCorrelationMiss()
	}

	abandoned := func(s *types.Segment) {
		if qerr == nil {
			s.QueueTime = types.Int64Ptr(queueExit.Seconds)
			s.AbandonTime = types.Int64Ptr(queueExit.Seconds)
		}
		s.AbandonedPhase = "Queue"
		s.Abandoned = "Yes"
	}

	queueSeg, err := d.repo.InsertSegment(ev, func(s *types.Segment) {
		s.Kind = types.SegmentQueue
		abandoned(s)
		if qerr == nil {
			s.Date = queueExit.EnteredAt
			s.Time = queueExit.EnteredAt
		}
	})
	if err != nil {
		return err
	}
	m.RecordSegmentInserted(queueSeg.Kind)

	convoSeg, err := d.repo.InsertSegment(ev, func(s *types.Segment) {
		s.Kind = types.SegmentConversation
		abandoned(s)
	})
	if err != nil {
		return err
	}
	m.RecordSegmentInserted(convoSeg.Kind)
	return nil
}

// workerCreated inserts the agent's current-state row and opens the first
// agent-status timeline segment with the worker's current activity.
func (d *Dispatcher) workerCreated(ev *types.RawEvent) error {
	m := metrics.Get()

	if err := d.upsertAgent(ev, types.AgentActive); err != nil {
		return err
	}

	seg, err := d.repo.InsertSegment(ev, func(s *types.Segment) {
		s.Kind = types.SegmentAgentStatusInProgress
		s.Activity = ev.ActivityName
		s.ActivityTime = nil
	})
	if err != nil {
		return err
	}
	m.RecordSegmentInserted(seg.Kind)
	return nil
}

// workerActivityUpdated closes the open agent-status segment with the
// prior activity's duration and opens a new one for the new activity.
func (d *Dispatcher) workerActivityUpdated(ev *types.RawEvent) error {
	m := metrics.Get()

	// Ensure the agent row exists even if the worker.created event predates
	// this instance.
	if err := d.upsertAgent(ev, types.AgentActive); err != nil {
		return err
	}

	seg, updated := d.repo.UpdateAgentStatusInProgress(ev.WorkerSid, func(s *types.Segment) {
		s.Kind = types.SegmentAgentStatus
		if secs, ok := ev.PriorActivitySecs.Int64(); ok {
			s.ActivityTime = types.Int64Ptr(secs)
		}
	})
	if updated {
		m.RecordSegmentUpdated(seg.Kind)
	}

	inProg, err := d.repo.InsertSegment(ev, func(s *types.Segment) {
		s.Kind = types.SegmentAgentStatusInProgress
		s.Activity = ev.ActivityName
		s.ActivityTime = nil
	})
	if err != nil {
		return err
	}
	m.RecordSegmentInserted(inProg.Kind)
	return nil
}

func (d *Dispatcher) upsertAgent(ev *types.RawEvent, state types.AgentState) error {
	if _, err := d.repo.UpsertAgent(ev, state); err != nil {
		return err
	}
	metrics.Get().RecordAgentUpserted()
	return nil
}
