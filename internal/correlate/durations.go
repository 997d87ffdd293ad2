package correlate

import (
	"fmt"
	"time"
)

// SecondsBetween computes end minus start in whole seconds. Milliseconds
// are zeroed on both instants before subtracting; the downstream reporting
// model works at second granularity and ignores them.
func SecondsBetween(start, end time.Time) int64 {
	s := start.Truncate(time.Second)
	e := end.Truncate(time.Second)
	return int64(e.Sub(s) / time.Second)
}

// QueueExit is the result of correlating a queue-exit event back to its
// entry event.
type QueueExit struct {
	Seconds   int64
	EnteredAt time.Time
}

// TimeInQueue computes how long the task spent in its most recent queue
// membership before exiting at exit.
func (c *Correlator) TimeInQueue(taskSid string, exit time.Time) (QueueExit, error) {
	entry := c.QueueEntryBefore(taskSid, exit)
	if entry == nil {
		c.logger.Warn().Str("task_sid", taskSid).Time("exit", exit).Msg("no queue entry event found for exit")
		return QueueExit{}, fmt.Errorf("queue entry for task %s: %w", taskSid, ErrNoMatch)
	}
	return QueueExit{
		Seconds:   SecondsBetween(entry.Timestamp, exit),
		EnteredAt: entry.Timestamp.Truncate(time.Second),
	}, nil
}

// RingTime computes the interval from reservation creation to end.
func (c *Correlator) RingTime(reservationSid string, end time.Time) (int64, error) {
	created := c.CreatedFor(reservationSid)
	if created == nil {
		c.logger.Warn().Str("reservation_sid", reservationSid).Msg("no created event found for reservation")
		return 0, fmt.Errorf("created event for reservation %s: %w", reservationSid, ErrNoMatch)
	}
	return SecondsBetween(created.Timestamp, end), nil
}

// TalkTime computes acceptance-to-wrapup when a wrap-up event exists, and
// acceptance-to-completion otherwise.
func (c *Correlator) TalkTime(reservationSid string, completed time.Time) (int64, error) {
	accepted := c.AcceptedFor(reservationSid)
	if accepted == nil {
		c.logger.Warn().Str("reservation_sid", reservationSid).Msg("no accepted event found for reservation")
		return 0, fmt.Errorf("accepted event for reservation %s: %w", reservationSid, ErrNoMatch)
	}
	if wrapup := c.WrapupFor(reservationSid); wrapup != nil {
		return SecondsBetween(accepted.Timestamp, wrapup.Timestamp), nil
	}
	return SecondsBetween(accepted.Timestamp, completed), nil
}

// WrapupTime computes wrapup-to-completion, or exactly zero when no wrap-up
// phase occurred.
func (c *Correlator) WrapupTime(reservationSid string, completed time.Time) int64 {
	wrapup := c.WrapupFor(reservationSid)
	if wrapup == nil {
		return 0
	}
	return SecondsBetween(wrapup.Timestamp, completed)
}
