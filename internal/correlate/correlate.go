// Package correlate locates the causally relevant prior event for a given
// exit event and turns correlated timestamp pairs into duration facts.
package correlate

import (
	"errors"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/cache"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/rs/zerolog"
)

// ErrNoMatch is returned when the expected prior event is not in the cache.
// Callers must treat it as "this duration cannot be computed", never as a
// batch-fatal condition.
var ErrNoMatch = errors.New("no matching prior event")

// Correlator runs temporal lookups against the event cache.
type Correlator struct {
	events *cache.EventCache
	logger zerolog.Logger
}

// New creates a Correlator.
func New(events *cache.EventCache, logger zerolog.Logger) *Correlator {
	return &Correlator{
		events: events,
		logger: logger.With().Str("component", "correlate").Logger(),
	}
}

// QueueEntryBefore returns the queue-entry or transfer-initiated event with
// the latest timestamp strictly before the exit timestamp for this task.
// A task can re-enter a queue on transfer; only one queue membership is
// open at a time, so the nearest preceding entry is authoritative.
func (c *Correlator) QueueEntryBefore(taskSid string, exit time.Time) *types.RawEvent {
	var best *types.RawEvent
	for _, ev := range c.events.ByTask(taskSid) {
		if ev.EventType != types.EventTaskQueueEntered && ev.EventType != types.EventTaskTransferInitiated {
			continue
		}
		if !ev.Timestamp.Before(exit) {
			continue
		}
		if best == nil || ev.Timestamp.After(best.Timestamp) {
			best = ev
		}
	}
	return best
}

// CreatedFor returns the latest reservation.created event for a reservation.
// Multiple creates should not occur; the most recent wins if they do.
func (c *Correlator) CreatedFor(reservationSid string) *types.RawEvent {
	return c.latestOfType(reservationSid, types.EventReservationCreated)
}

// WrapupFor returns the latest reservation.wrapup event for a reservation.
// Absence is a valid outcome: not every reservation has a wrap-up phase.
func (c *Correlator) WrapupFor(reservationSid string) *types.RawEvent {
	return c.latestOfType(reservationSid, types.EventReservationWrapup)
}

// AcceptedFor returns the reservation.accepted event for a reservation.
func (c *Correlator) AcceptedFor(reservationSid string) *types.RawEvent {
	for _, ev := range c.events.ByReservation(reservationSid) {
		if ev.EventType == types.EventReservationAccepted {
			return ev
		}
	}
	return nil
}

func (c *Correlator) latestOfType(reservationSid, eventType string) *types.RawEvent {
	var best *types.RawEvent
	for _, ev := range c.events.ByReservation(reservationSid) {
		if ev.EventType != eventType {
			continue
		}
		if best == nil || ev.Timestamp.After(best.Timestamp) {
			best = ev
		}
	}
	return best
}
