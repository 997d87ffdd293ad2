package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/store"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/rs/zerolog"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// fakeArchive records what was written through to the archive.
type fakeArchive struct {
	segments []types.Segment
	agents   []types.AgentRecord
}

func (f *fakeArchive) SaveSegment(seg types.Segment) error                   { f.segments = append(f.segments, seg); return nil }
func (f *fakeArchive) SaveAgent(agent types.AgentRecord) error               { f.agents = append(f.agents, agent); return nil }
func (f *fakeArchive) GetSegments(string) ([]types.Segment, error)           { return nil, nil }
func (f *fakeArchive) GetAgentSegments(_, _ string) ([]types.Segment, error) { return nil, nil }
func (f *fakeArchive) GetAgent(string) (*types.AgentRecord, error)           { return nil, nil }
func (f *fakeArchive) TruncateAll() error                                    { return nil }

type fakeFeed struct {
	messages [][]byte
}

func (f *fakeFeed) Broadcast(message []byte) { f.messages = append(f.messages, message) }

func newRepo() *Repository {
	return New(store.NewMemory[types.Segment](), store.NewMemory[types.AgentRecord](), zerolog.Nop())
}

func taskEvent(reservationSid string) *types.RawEvent {
	return &types.RawEvent{
		EventID:        "EV-" + reservationSid,
		TaskSid:        "WT1",
		ReservationSid: reservationSid,
		WorkerSid:      "WK1",
		Timestamp:      base,
	}
}

func workerEvent(workerSid string) *types.RawEvent {
	return &types.RawEvent{
		EventID:   "EV-" + workerSid,
		WorkerSid: workerSid,
		Timestamp: base,
		WorkerAttributes: types.WorkerAttributes{
			Email: workerSid + "@example.com",
		},
	}
}

func TestInsertSegmentAssignsUUID(t *testing.T) {
	repo := newRepo()

	seg, err := repo.InsertSegment(taskEvent("WR1"), func(s *types.Segment) {
		s.Kind = types.SegmentQueue
		s.QueueTime = types.Int64Ptr(35)
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if seg.SegmentUUID == "" {
		t.Error("segment uuid must be assigned")
	}
	if seg.Kind != types.SegmentQueue {
		t.Errorf("kind: got %q", seg.Kind)
	}

	stored := repo.Conversations(nil)
	if len(stored) != 1 || stored[0].SegmentUUID != seg.SegmentUUID {
		t.Errorf("segment not stored: %+v", stored)
	}
}

func TestInsertSegmentRequiresKind(t *testing.T) {
	repo := newRepo()
	_, err := repo.InsertSegment(taskEvent("WR1"), func(s *types.Segment) {})
	if !errors.Is(err, ErrMissingKind) {
		t.Errorf("expected ErrMissingKind, got %v", err)
	}
	if len(repo.Conversations(nil)) != 0 {
		t.Error("nothing must be stored on rejection")
	}
}

func TestUpdateConversationInProgress(t *testing.T) {
	repo := newRepo()

	inserted, err := repo.InsertSegment(taskEvent("WR1"), func(s *types.Segment) {
		s.Kind = types.SegmentConversationInProgress
		s.QueueTime = types.Int64Ptr(35)
		s.RingTime = types.Int64Ptr(30)
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated, ok := repo.UpdateConversationInProgress("WR1", func(s *types.Segment) {
		s.Kind = types.SegmentConversation
		s.TalkTime = types.Int64Ptr(120)
		s.WrapupTime = types.Int64Ptr(20)
	})
	if !ok {
		t.Fatal("update must find the in-progress row")
	}
	if updated.SegmentUUID != inserted.SegmentUUID {
		t.Error("update must keep the same row identity")
	}
	if updated.Kind != types.SegmentConversation {
		t.Errorf("kind after update: %q", updated.Kind)
	}
	if updated.QueueTime == nil || *updated.QueueTime != 35 {
		t.Error("existing facts must survive the update")
	}
	if updated.TalkTime == nil || *updated.TalkTime != 120 {
		t.Error("folded facts missing")
	}

	// The row is terminal now; no further in-progress row exists.
	if _, ok := repo.UpdateConversationInProgress("WR1", func(s *types.Segment) {}); ok {
		t.Error("terminal row must not be matched again")
	}
}

func TestUpdateMissIsDropped(t *testing.T) {
	repo := newRepo()
	if _, ok := repo.UpdateConversationInProgress("WR-unknown", func(s *types.Segment) {
		s.Kind = types.SegmentConversation
	}); ok {
		t.Error("unknown reservation must report no update")
	}
	if len(repo.Conversations(nil)) != 0 {
		t.Error("a missed update must not create a row")
	}
}

func TestUpdateAgentStatusInProgress(t *testing.T) {
	repo := newRepo()

	if _, err := repo.InsertSegment(workerEvent("WK1"), func(s *types.Segment) {
		s.Kind = types.SegmentAgentStatusInProgress
		s.Activity = "Available"
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated, ok := repo.UpdateAgentStatusInProgress("WK1", func(s *types.Segment) {
		s.Kind = types.SegmentAgentStatus
		s.ActivityTime = types.Int64Ptr(600)
	})
	if !ok {
		t.Fatal("update must find the in-progress row")
	}
	if updated.Kind != types.SegmentAgentStatus || updated.Activity != "Available" {
		t.Errorf("updated row wrong: %+v", updated)
	}
}

func TestUpsertAgentInsertAndUpdate(t *testing.T) {
	repo := newRepo()

	first, err := repo.UpsertAgent(workerEvent("WK1"), types.AgentActive)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.State != types.AgentActive {
		t.Errorf("state: got %q", first.State)
	}
	if !first.DateJoined.Equal(base) {
		t.Errorf("date joined: got %v", first.DateJoined)
	}

	// A later update replaces attributes but keeps date_joined.
	ev := workerEvent("WK1")
	ev.Timestamp = base.Add(time.Hour)
	ev.WorkerAttributes.Email = "renamed@example.com"
	second, err := repo.UpsertAgent(ev, types.AgentActive)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.Email != "renamed@example.com" {
		t.Errorf("attributes must be replaced, got %q", second.Email)
	}
	if !second.DateJoined.Equal(base) {
		t.Errorf("date joined must be preserved, got %v", second.DateJoined)
	}

	if agents := repo.Agents(); len(agents) != 1 {
		t.Errorf("expected one agent record, got %d", len(agents))
	}
}

func TestUpsertAgentSelfHealing(t *testing.T) {
	repo := newRepo()

	// Update for a worker never seen before inserts a fresh record.
	rec, err := repo.UpsertAgent(workerEvent("WK-new"), types.AgentActive)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rec.AgentUUID != "WK-new" {
		t.Errorf("agent uuid: %q", rec.AgentUUID)
	}
	if _, ok := repo.Agent("WK-new"); !ok {
		t.Error("record must be retrievable")
	}
}

func TestUpsertAgentDeletedStampsDateLeft(t *testing.T) {
	repo := newRepo()
	repo.UpsertAgent(workerEvent("WK1"), types.AgentActive)

	ev := workerEvent("WK1")
	ev.Timestamp = base.Add(2 * time.Hour)
	rec, err := repo.UpsertAgent(ev, types.AgentDeleted)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rec.State != types.AgentDeleted {
		t.Errorf("state: got %q", rec.State)
	}
	if rec.DateLeft == nil || !rec.DateLeft.Equal(base.Add(2*time.Hour)) {
		t.Errorf("date left: got %v", rec.DateLeft)
	}
}

func TestUpsertAgentRequiresWorkerSid(t *testing.T) {
	repo := newRepo()
	ev := workerEvent("")
	if _, err := repo.UpsertAgent(ev, types.AgentActive); !errors.Is(err, ErrMissingAgentID) {
		t.Errorf("expected ErrMissingAgentID, got %v", err)
	}
}

func TestArchiveReceivesTerminalWritesOnly(t *testing.T) {
	repo := newRepo()
	archive := &fakeArchive{}
	repo.SetArchive(archive)

	repo.InsertSegment(taskEvent("WR1"), func(s *types.Segment) {
		s.Kind = types.SegmentConversationInProgress
	})
	if len(archive.segments) != 0 {
		t.Error("in-progress rows must not be archived")
	}

	repo.UpdateConversationInProgress("WR1", func(s *types.Segment) {
		s.Kind = types.SegmentConversation
	})
	if len(archive.segments) != 1 {
		t.Fatalf("terminal row must be archived, got %d", len(archive.segments))
	}
	if archive.segments[0].Kind != types.SegmentConversation {
		t.Errorf("archived kind: %q", archive.segments[0].Kind)
	}

	repo.UpsertAgent(workerEvent("WK1"), types.AgentActive)
	if len(archive.agents) != 1 {
		t.Errorf("agent upsert must be archived, got %d", len(archive.agents))
	}
}

func TestFeedReceivesEveryWrite(t *testing.T) {
	repo := newRepo()
	feed := &fakeFeed{}
	repo.SetFeed(feed)

	repo.InsertSegment(taskEvent("WR1"), func(s *types.Segment) {
		s.Kind = types.SegmentConversationInProgress
	})
	repo.UpdateConversationInProgress("WR1", func(s *types.Segment) {
		s.Kind = types.SegmentConversation
	})

	if len(feed.messages) != 2 {
		t.Errorf("expected 2 feed messages, got %d", len(feed.messages))
	}
}

func TestConversationsSortedByDate(t *testing.T) {
	repo := newRepo()

	late := taskEvent("WR2")
	late.Timestamp = base.Add(time.Hour)
	repo.InsertSegment(late, func(s *types.Segment) { s.Kind = types.SegmentQueue })

	early := taskEvent("WR1")
	repo.InsertSegment(early, func(s *types.Segment) { s.Kind = types.SegmentQueue })

	got := repo.Conversations(nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
	if !got[0].Date.Before(got[1].Date) {
		t.Errorf("segments must be ordered by date: %v then %v", got[0].Date, got[1].Date)
	}
}

func TestReset(t *testing.T) {
	repo := newRepo()
	repo.InsertSegment(taskEvent("WR1"), func(s *types.Segment) { s.Kind = types.SegmentQueue })
	repo.UpsertAgent(workerEvent("WK1"), types.AgentActive)

	segments, agents := repo.Reset()
	if segments != 1 || agents != 1 {
		t.Errorf("got (%d, %d), want (1, 1)", segments, agents)
	}
	if len(repo.Conversations(nil)) != 0 || len(repo.Agents()) != 0 {
		t.Error("repository must be empty after reset")
	}
}
