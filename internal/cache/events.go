package cache

import (
	"sync"

	"github.com/dennisdiepolder/taskstream/internal/types"
)

// EventCache is the append-only store of every accepted TaskRouter event.
// Events are indexed by task sid and reservation sid so correlation lookups
// stay cheap as history grows. Stored events are never updated or deleted.
type EventCache struct {
	events        []*types.RawEvent
	byID          map[string]*types.RawEvent
	byTask        map[string][]*types.RawEvent
	byReservation map[string][]*types.RawEvent
	byWorker      map[string][]*types.RawEvent
	mu            sync.RWMutex
}

// NewEventCache creates a new event cache.
func NewEventCache() *EventCache {
	return &EventCache{
		events:        make([]*types.RawEvent, 0, 2000),
		byID:          make(map[string]*types.RawEvent),
		byTask:        make(map[string][]*types.RawEvent),
		byReservation: make(map[string][]*types.RawEvent),
		byWorker:      make(map[string][]*types.RawEvent),
	}
}

// Add appends an event to the cache. A redelivered event id is refused:
// the previously stored event is returned with ok=false so the caller can
// skip deriving duplicate segments.
func (c *EventCache) Add(event *types.RawEvent) (stored *types.RawEvent, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, seen := c.byID[event.EventID]; seen {
		return existing, false
	}

	c.events = append(c.events, event)
	c.byID[event.EventID] = event
	if event.TaskSid != "" {
		c.byTask[event.TaskSid] = append(c.byTask[event.TaskSid], event)
	}
	if event.ReservationSid != "" {
		c.byReservation[event.ReservationSid] = append(c.byReservation[event.ReservationSid], event)
	}
	if event.WorkerSid != "" {
		c.byWorker[event.WorkerSid] = append(c.byWorker[event.WorkerSid], event)
	}
	return event, true
}

// ByTask returns all cached events for a task sid in arrival order.
func (c *EventCache) ByTask(taskSid string) []*types.RawEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*types.RawEvent(nil), c.byTask[taskSid]...)
}

// ByReservation returns all cached events for a reservation sid in arrival order.
func (c *EventCache) ByReservation(reservationSid string) []*types.RawEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*types.RawEvent(nil), c.byReservation[reservationSid]...)
}

// ByWorker returns all cached events for a worker sid in arrival order.
func (c *EventCache) ByWorker(workerSid string) []*types.RawEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*types.RawEvent(nil), c.byWorker[workerSid]...)
}

// Size returns the current number of cached events.
func (c *EventCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Clear drops all cached events and indexes, returning how many events
// were held.
func (c *EventCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.events)
	c.events = c.events[:0]
	c.byID = make(map[string]*types.RawEvent)
	c.byTask = make(map[string][]*types.RawEvent)
	c.byReservation = make(map[string][]*types.RawEvent)
	c.byWorker = make(map[string][]*types.RawEvent)
	return n
}
