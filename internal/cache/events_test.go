package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/types"
)

func newEvent(id, eventType, taskSid, reservationSid, workerSid string) *types.RawEvent {
	return &types.RawEvent{
		EventID:        id,
		EventType:      eventType,
		TaskSid:        taskSid,
		ReservationSid: reservationSid,
		WorkerSid:      workerSid,
		Timestamp:      time.Now(),
	}
}

func TestAddAndLookup(t *testing.T) {
	c := NewEventCache()

	ev1 := newEvent("EV1", types.EventTaskQueueEntered, "WT1", "", "")
	ev2 := newEvent("EV2", types.EventReservationCreated, "WT1", "WR1", "WK1")
	ev3 := newEvent("EV3", types.EventWorkerActivityUpdated, "", "", "WK1")

	for _, ev := range []*types.RawEvent{ev1, ev2, ev3} {
		if _, ok := c.Add(ev); !ok {
			t.Fatalf("first add of %s should succeed", ev.EventID)
		}
	}

	if c.Size() != 3 {
		t.Errorf("expected 3 events, got %d", c.Size())
	}

	byTask := c.ByTask("WT1")
	if len(byTask) != 2 {
		t.Fatalf("expected 2 events for task, got %d", len(byTask))
	}
	if byTask[0].EventID != "EV1" || byTask[1].EventID != "EV2" {
		t.Errorf("task index must preserve arrival order: %s, %s", byTask[0].EventID, byTask[1].EventID)
	}

	if got := c.ByReservation("WR1"); len(got) != 1 || got[0].EventID != "EV2" {
		t.Errorf("reservation index wrong: %v", got)
	}
	if got := c.ByWorker("WK1"); len(got) != 2 {
		t.Errorf("expected 2 worker events, got %d", len(got))
	}
	if got := c.ByTask("WT-unknown"); len(got) != 0 {
		t.Errorf("unknown task should return empty, got %d", len(got))
	}
}

func TestAddRefusesDuplicateEventID(t *testing.T) {
	c := NewEventCache()

	first := newEvent("EV1", types.EventReservationAccepted, "WT1", "WR1", "WK1")
	if _, ok := c.Add(first); !ok {
		t.Fatal("first add should succeed")
	}

	redelivered := newEvent("EV1", types.EventReservationAccepted, "WT1", "WR1", "WK1")
	stored, ok := c.Add(redelivered)
	if ok {
		t.Error("redelivered event id must be refused")
	}
	if stored != first {
		t.Error("duplicate add must return the originally stored event")
	}
	if c.Size() != 1 {
		t.Errorf("cache must hold one event, got %d", c.Size())
	}
}

func TestClear(t *testing.T) {
	c := NewEventCache()
	for i := 0; i < 5; i++ {
		c.Add(newEvent(fmt.Sprintf("EV%d", i), types.EventTaskQueueEntered, "WT1", "", ""))
	}

	if n := c.Clear(); n != 5 {
		t.Errorf("expected 5 cleared, got %d", n)
	}
	if c.Size() != 0 {
		t.Errorf("cache should be empty, got %d", c.Size())
	}
	if got := c.ByTask("WT1"); len(got) != 0 {
		t.Errorf("indexes should be dropped, got %d", len(got))
	}

	// Ids are reusable after a clear
	if _, ok := c.Add(newEvent("EV0", types.EventTaskQueueEntered, "WT1", "", "")); !ok {
		t.Error("add after clear should succeed")
	}
}
