package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Envelope is a single CloudEvents item from an Event Streams webhook batch.
type Envelope struct {
	ID   string       `json:"id"`
	Type string       `json:"type"`
	Data EnvelopeData `json:"data"`
}

// EnvelopeData carries the event payload plus publisher metadata.
type EnvelopeData struct {
	Payload           Payload        `json:"payload"`
	PublisherMetadata map[string]any `json:"publisher_metadata,omitempty"`
	TestID            string         `json:"test_id,omitempty"`
}

// Valid reports whether the envelope has the fields every event must carry.
func (e *Envelope) Valid() bool {
	return e.ID != "" && e.Type != ""
}

// Payload is the wire shape of a TaskRouter event payload. The attribute
// bags arrive as JSON-encoded strings and are decoded separately.
type Payload struct {
	EventType                    string    `json:"eventtype"`
	Timestamp                    Timestamp `json:"timestamp"`
	TaskSid                      string    `json:"task_sid"`
	ReservationSid               string    `json:"reservation_sid"`
	WorkerSid                    string    `json:"worker_sid"`
	TaskAttributes               string    `json:"task_attributes"`
	WorkerAttributes             string    `json:"worker_attributes"`
	TaskCompletedReason          string    `json:"task_completed_reason"`
	TaskCanceledReason           string    `json:"task_canceled_reason"`
	TaskChannelUniqueName        string    `json:"task_channel_unique_name"`
	WorkflowName                 string    `json:"workflow_name"`
	TaskQueueName                string    `json:"task_queue_name"`
	TaskQueueSid                 string    `json:"task_queue_sid"`
	WorkerActivityName           string    `json:"worker_activity_name"`
	WorkerTimeInPreviousActivity *FlexInt  `json:"worker_time_in_previous_activity"`
}

// Timestamp accepts either an RFC3339 string (with optional fractional
// seconds) or an epoch-milliseconds number.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	if s[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", raw, err)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", s, err)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// FlexInt is an integer that tolerates being sent as a JSON number,
// a numeric string, or null.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	if s[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		s = strings.TrimSpace(raw)
	}
	// Some senders format whole seconds as floats ("12.0").
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value %s: %w", s, err)
	}
	*f = FlexInt(int64(v))
	return nil
}

// Int64 returns the value of a possibly-nil FlexInt pointer.
func (f *FlexInt) Int64() (int64, bool) {
	if f == nil {
		return 0, false
	}
	return int64(*f), true
}

// StringList accepts either a single JSON string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if s[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = StringList{single}
	return nil
}

// Join flattens the list into a single display string.
func (l StringList) Join(sep string) string {
	return strings.Join(l, sep)
}
