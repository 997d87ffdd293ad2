package dispatch

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/cache"
	"github.com/dennisdiepolder/taskstream/internal/correlate"
	"github.com/dennisdiepolder/taskstream/internal/repository"
	"github.com/dennisdiepolder/taskstream/internal/store"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/rs/zerolog"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	events     *cache.EventCache
	repo       *repository.Repository
	dispatcher *Dispatcher
}

func newFixture() *fixture {
	events := cache.NewEventCache()
	corr := correlate.New(events, zerolog.Nop())
	repo := repository.New(store.NewMemory[types.Segment](), store.NewMemory[types.AgentRecord](), zerolog.Nop())
	return &fixture{
		events:     events,
		repo:       repo,
		dispatcher: New(events, corr, repo, zerolog.Nop()),
	}
}

func envelope(id, eventType string, at time.Time, mutate func(*types.Payload)) types.Envelope {
	p := types.Payload{
		EventType: eventType,
		Timestamp: types.Timestamp{Time: at},
	}
	if mutate != nil {
		mutate(&p)
	}
	return types.Envelope{
		ID:   id,
		Type: types.TaskRouterNamespace + "." + eventType,
		Data: types.EnvelopeData{Payload: p},
	}
}

func taskPayload(taskSid, reservationSid, workerSid string) func(*types.Payload) {
	return func(p *types.Payload) {
		p.TaskSid = taskSid
		p.ReservationSid = reservationSid
		p.WorkerSid = workerSid
	}
}

func segmentsOfKind(repo *repository.Repository, kind types.SegmentKind) []types.Segment {
	return repo.Conversations(func(s types.Segment) bool { return s.Kind == kind })
}

func TestAcceptedLifecycle(t *testing.T) {
	f := newFixture()

	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV1", types.EventTaskQueueEntered, base, taskPayload("WT1", "", "")),
		envelope("EV2", types.EventReservationCreated, base.Add(5*time.Second), taskPayload("WT1", "WR1", "WK1")),
		envelope("EV3", types.EventReservationAccepted, base.Add(35*time.Second), taskPayload("WT1", "WR1", "WK1")),
	})

	queues := segmentsOfKind(f.repo, types.SegmentQueue)
	if len(queues) != 1 {
		t.Fatalf("expected 1 QUEUE segment, got %d", len(queues))
	}
	q := queues[0]
	if q.QueueTime == nil || *q.QueueTime != 35 {
		t.Errorf("queue_time: got %v, want 35", q.QueueTime)
	}
	if !q.Date.Equal(base) {
		t.Errorf("queue segment date must be the entry instant, got %v", q.Date)
	}

	inProgress := segmentsOfKind(f.repo, types.SegmentConversationInProgress)
	if len(inProgress) != 1 {
		t.Fatalf("expected 1 in-progress conversation, got %d", len(inProgress))
	}
	ip := inProgress[0]
	if ip.QueueTime == nil || *ip.QueueTime != 35 {
		t.Errorf("in-progress queue_time: got %v, want 35", ip.QueueTime)
	}
	if ip.RingTime == nil || *ip.RingTime != 30 {
		t.Errorf("ring_time: got %v, want 30", ip.RingTime)
	}
	if !ip.Date.Equal(base.Add(35 * time.Second)) {
		t.Errorf("in-progress date must be the accept instant, got %v", ip.Date)
	}

	// Completion with a wrap-up phase folds the row into a terminal one.
	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV4", types.EventReservationWrapup, base.Add(155*time.Second), taskPayload("WT1", "WR1", "WK1")),
		envelope("EV5", types.EventReservationCompleted, base.Add(175*time.Second), taskPayload("WT1", "WR1", "WK1")),
	})

	if n := len(segmentsOfKind(f.repo, types.SegmentConversationInProgress)); n != 0 {
		t.Errorf("in-progress row must be gone, found %d", n)
	}
	conversations := segmentsOfKind(f.repo, types.SegmentConversation)
	if len(conversations) != 1 {
		t.Fatalf("expected exactly one terminal CONVERSATION row, got %d", len(conversations))
	}
	c := conversations[0]
	if c.TalkTime == nil || *c.TalkTime != 120 {
		t.Errorf("talk_time must end at wrapup: got %v, want 120", c.TalkTime)
	}
	if c.WrapupTime == nil || *c.WrapupTime != 20 {
		t.Errorf("wrapup_time: got %v, want 20", c.WrapupTime)
	}
	if c.QueueTime == nil || *c.QueueTime != 35 {
		t.Errorf("queue_time must survive the fold: got %v", c.QueueTime)
	}
	if c.SegmentUUID != ip.SegmentUUID {
		t.Error("completion must update the in-progress row, not insert a new one")
	}
}

func TestCompletedWithoutWrapup(t *testing.T) {
	f := newFixture()

	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV1", types.EventTaskQueueEntered, base, taskPayload("WT1", "", "")),
		envelope("EV2", types.EventReservationCreated, base.Add(5*time.Second), taskPayload("WT1", "WR1", "WK1")),
		envelope("EV3", types.EventReservationAccepted, base.Add(35*time.Second), taskPayload("WT1", "WR1", "WK1")),
		envelope("EV4", types.EventReservationCompleted, base.Add(95*time.Second), taskPayload("WT1", "WR1", "WK1")),
	})

	conversations := segmentsOfKind(f.repo, types.SegmentConversation)
	if len(conversations) != 1 {
		t.Fatalf("expected 1 CONVERSATION, got %d", len(conversations))
	}
	c := conversations[0]
	if c.TalkTime == nil || *c.TalkTime != 60 {
		t.Errorf("talk_time: got %v, want 60", c.TalkTime)
	}
	if c.WrapupTime == nil || *c.WrapupTime != 0 {
		t.Errorf("wrapup_time without wrapup phase must be zero, got %v", c.WrapupTime)
	}
}

func TestFailedReservationKinds(t *testing.T) {
	tests := []struct {
		eventType string
		kind      types.SegmentKind
	}{
		{types.EventReservationRejected, types.SegmentRejected},
		{types.EventReservationTimeout, types.SegmentMissed},
		{types.EventReservationCanceled, types.SegmentMissed},
		{types.EventReservationRescinded, types.SegmentRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			f := newFixture()
			f.dispatcher.ProcessBatch([]types.Envelope{
				envelope("EV1", types.EventReservationCreated, base, taskPayload("WT1", "WR1", "WK1")),
				envelope("EV2", tt.eventType, base.Add(15*time.Second), taskPayload("WT1", "WR1", "WK1")),
			})

			got := segmentsOfKind(f.repo, tt.kind)
			if len(got) != 1 {
				t.Fatalf("expected 1 %s segment, got %d", tt.kind, len(got))
			}
			if got[0].RingTime == nil || *got[0].RingTime != 15 {
				t.Errorf("ring_time: got %v, want 15", got[0].RingTime)
			}
			if got[0].InProgress() {
				t.Error("failed reservations are terminal")
			}
		})
	}
}

func TestTaskAbandoned(t *testing.T) {
	f := newFixture()

	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV1", types.EventTaskQueueEntered, base, taskPayload("WT1", "", "")),
		envelope("EV2", types.EventTaskCanceled, base.Add(42*time.Second), taskPayload("WT1", "", "")),
	})

	queues := segmentsOfKind(f.repo, types.SegmentQueue)
	conversations := segmentsOfKind(f.repo, types.SegmentConversation)
	if len(queues) != 1 || len(conversations) != 1 {
		t.Fatalf("expected QUEUE + CONVERSATION, got %d/%d", len(queues), len(conversations))
	}

	for _, seg := range []types.Segment{queues[0], conversations[0]} {
		if seg.Abandoned != "Yes" {
			t.Errorf("%s abandoned: got %q, want Yes", seg.Kind, seg.Abandoned)
		}
		if seg.AbandonedPhase != "Queue" {
			t.Errorf("%s abandoned_phase: got %q", seg.Kind, seg.AbandonedPhase)
		}
		if seg.QueueTime == nil || *seg.QueueTime != 42 {
			t.Errorf("%s queue_time: got %v, want 42", seg.Kind, seg.QueueTime)
		}
		if seg.AbandonTime == nil || *seg.AbandonTime != 42 {
			t.Errorf("%s abandon_time: got %v, want 42", seg.Kind, seg.AbandonTime)
		}
	}
	if !queues[0].Date.Equal(base) {
		t.Errorf("queue segment date must be the entry instant, got %v", queues[0].Date)
	}
}

func TestAbandonedWithoutEntryEventKeepsFactsAbsent(t *testing.T) {
	f := newFixture()

	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV1", types.EventTaskCanceled, base, taskPayload("WT1", "", "")),
	})

	conversations := segmentsOfKind(f.repo, types.SegmentConversation)
	if len(conversations) != 1 {
		t.Fatalf("segments must still be written on a correlation miss, got %d", len(conversations))
	}
	if conversations[0].QueueTime != nil {
		t.Error("queue_time must stay absent, never a computed zero")
	}
	if conversations[0].Abandoned != "Yes" {
		t.Errorf("abandoned flag still applies, got %q", conversations[0].Abandoned)
	}
}

func TestWorkerLifecycle(t *testing.T) {
	f := newFixture()

	created := envelope("EV1", types.EventWorkerCreated, base, func(p *types.Payload) {
		p.WorkerSid = "WK1"
		p.WorkerActivityName = "Available"
		p.WorkerAttributes = `{"email":"agent@example.com"}`
	})
	f.dispatcher.ProcessBatch([]types.Envelope{created})

	agents := f.repo.Agents()
	if len(agents) != 1 || agents[0].State != types.AgentActive {
		t.Fatalf("expected one active agent, got %+v", agents)
	}
	open := segmentsOfKind(f.repo, types.SegmentAgentStatusInProgress)
	if len(open) != 1 {
		t.Fatalf("expected open agent-status segment, got %d", len(open))
	}
	if open[0].Activity != "Available" {
		t.Errorf("activity: got %q", open[0].Activity)
	}
	if open[0].ActivityTime != nil {
		t.Error("a fresh status segment has no duration yet")
	}

	// Activity change closes the open segment and opens the next.
	prior := types.FlexInt(600)
	update := envelope("EV2", types.EventWorkerActivityUpdated, base.Add(10*time.Minute), func(p *types.Payload) {
		p.WorkerSid = "WK1"
		p.WorkerActivityName = "Break"
		p.WorkerTimeInPreviousActivity = &prior
	})
	f.dispatcher.ProcessBatch([]types.Envelope{update})

	closed := segmentsOfKind(f.repo, types.SegmentAgentStatus)
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed agent-status segment, got %d", len(closed))
	}
	if closed[0].Activity != "Available" {
		t.Errorf("closed segment keeps the prior activity, got %q", closed[0].Activity)
	}
	if closed[0].ActivityTime == nil || *closed[0].ActivityTime != 600 {
		t.Errorf("activity_time: got %v, want 600", closed[0].ActivityTime)
	}

	open = segmentsOfKind(f.repo, types.SegmentAgentStatusInProgress)
	if len(open) != 1 {
		t.Fatalf("expected new open segment, got %d", len(open))
	}
	if open[0].Activity != "Break" {
		t.Errorf("new open activity: got %q", open[0].Activity)
	}
	if open[0].ActivityTime != nil {
		t.Error("new open segment must not inherit the prior duration")
	}

	// Deletion stamps the agent record.
	deleted := envelope("EV3", types.EventWorkerDeleted, base.Add(8*time.Hour), func(p *types.Payload) {
		p.WorkerSid = "WK1"
	})
	f.dispatcher.ProcessBatch([]types.Envelope{deleted})

	agents = f.repo.Agents()
	if agents[0].State != types.AgentDeleted {
		t.Errorf("state after delete: %q", agents[0].State)
	}
	if agents[0].DateLeft == nil {
		t.Error("date_left must be stamped on deletion")
	}
}

func TestActivityUpdateForUnknownWorkerSelfHeals(t *testing.T) {
	f := newFixture()

	update := envelope("EV1", types.EventWorkerActivityUpdated, base, func(p *types.Payload) {
		p.WorkerSid = "WK-unseen"
		p.WorkerActivityName = "Available"
	})
	f.dispatcher.ProcessBatch([]types.Envelope{update})

	if _, ok := f.repo.Agent("WK-unseen"); !ok {
		t.Error("activity update must create the missing agent record")
	}
	// No open segment existed to close, but a new one opens.
	if n := len(segmentsOfKind(f.repo, types.SegmentAgentStatusInProgress)); n != 1 {
		t.Errorf("expected 1 open status segment, got %d", n)
	}
	if n := len(segmentsOfKind(f.repo, types.SegmentAgentStatus)); n != 0 {
		t.Errorf("no closed segment should exist, got %d", n)
	}
}

func TestDuplicateEventIDProducesNoSecondSegments(t *testing.T) {
	f := newFixture()

	accepted := envelope("EV-dup", types.EventReservationAccepted, base.Add(35*time.Second), taskPayload("WT1", "WR1", "WK1"))
	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV1", types.EventTaskQueueEntered, base, taskPayload("WT1", "", "")),
		envelope("EV2", types.EventReservationCreated, base.Add(5*time.Second), taskPayload("WT1", "WR1", "WK1")),
		accepted,
	})
	before := len(f.repo.Conversations(nil))

	// Webhook redelivery of the same batch item.
	f.dispatcher.ProcessBatch([]types.Envelope{accepted})

	if after := len(f.repo.Conversations(nil)); after != before {
		t.Errorf("redelivery must be idempotent: %d rows before, %d after", before, after)
	}
}

func TestEventsOutsideNamespaceAreSkipped(t *testing.T) {
	f := newFixture()

	f.dispatcher.ProcessBatch([]types.Envelope{
		{
			ID:   "EV1",
			Type: "com.twilio.voice.insights.call-summary",
			Data: types.EnvelopeData{Payload: types.Payload{EventType: "call-summary"}},
		},
	})

	if f.events.Size() != 0 {
		t.Error("foreign events must not be cached")
	}
	if len(f.repo.Conversations(nil)) != 0 {
		t.Error("foreign events must not produce segments")
	}
}

func TestMalformedItemDoesNotStopTheBatch(t *testing.T) {
	f := newFixture()

	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV1", types.EventTaskQueueEntered, base, taskPayload("WT1", "", "")),
		{}, // missing id and type
		envelope("EV2", types.EventReservationCreated, base.Add(5*time.Second), taskPayload("WT1", "WR1", "WK1")),
		envelope("EV3", types.EventReservationAccepted, base.Add(35*time.Second), taskPayload("WT1", "WR1", "WK1")),
	})

	if f.events.Size() != 3 {
		t.Errorf("valid items must still be cached, got %d", f.events.Size())
	}
	if n := len(segmentsOfKind(f.repo, types.SegmentQueue)); n != 1 {
		t.Errorf("later items must still derive segments, got %d QUEUE rows", n)
	}
}

func TestMalformedAttributeBagStillDerivesSegment(t *testing.T) {
	f := newFixture()

	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV1", types.EventTaskQueueEntered, base, taskPayload("WT1", "", "")),
		envelope("EV2", types.EventReservationCreated, base.Add(5*time.Second), taskPayload("WT1", "WR1", "WK1")),
		envelope("EV3", types.EventReservationAccepted, base.Add(35*time.Second), func(p *types.Payload) {
			p.TaskSid = "WT1"
			p.ReservationSid = "WR1"
			p.WorkerSid = "WK1"
			p.TaskAttributes = `{broken`
		}),
	})

	if n := len(segmentsOfKind(f.repo, types.SegmentQueue)); n != 1 {
		t.Errorf("segment must be derived with empty attributes, got %d", n)
	}
}

func TestNonSegmentEventsAreCachedOnly(t *testing.T) {
	f := newFixture()

	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV1", types.EventTaskQueueEntered, base, taskPayload("WT1", "", "")),
		envelope("EV2", types.EventReservationWrapup, base.Add(60*time.Second), taskPayload("WT1", "WR1", "WK1")),
	})

	if f.events.Size() != 2 {
		t.Errorf("anchors must be cached, got %d", f.events.Size())
	}
	if len(f.repo.Conversations(nil)) != 0 {
		t.Error("anchor events alone must not produce segments")
	}
}

func TestTransferReentersQueue(t *testing.T) {
	f := newFixture()

	f.dispatcher.ProcessBatch([]types.Envelope{
		envelope("EV1", types.EventTaskQueueEntered, base, taskPayload("WT1", "", "")),
		envelope("EV2", types.EventReservationCreated, base.Add(5*time.Second), taskPayload("WT1", "WR1", "WK1")),
		envelope("EV3", types.EventReservationAccepted, base.Add(20*time.Second), taskPayload("WT1", "WR1", "WK1")),
		// Transfer puts the task back into a queue, second agent accepts.
		envelope("EV4", types.EventTaskTransferInitiated, base.Add(120*time.Second), taskPayload("WT1", "", "")),
		envelope("EV5", types.EventReservationCreated, base.Add(125*time.Second), taskPayload("WT1", "WR2", "WK2")),
		envelope("EV6", types.EventReservationAccepted, base.Add(150*time.Second), taskPayload("WT1", "WR2", "WK2")),
	})

	queues := segmentsOfKind(f.repo, types.SegmentQueue)
	if len(queues) != 2 {
		t.Fatalf("expected 2 QUEUE segments, got %d", len(queues))
	}
	// Second queue phase measures from the transfer, not the original entry.
	second := queues[1]
	if second.QueueTime == nil || *second.QueueTime != 30 {
		t.Errorf("second queue_time: got %v, want 30", second.QueueTime)
	}
}
