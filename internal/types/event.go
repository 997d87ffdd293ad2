package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskRouterNamespace prefixes every event type this service derives
// segments from. Events outside it are skipped.
const TaskRouterNamespace = "com.twilio.taskrouter"

// TaskRouter lifecycle event types.
const (
	EventTaskQueueEntered        = "task-queue.entered"
	EventTaskTransferInitiated   = "task.transfer-initiated"
	EventReservationCreated      = "reservation.created"
	EventReservationAccepted     = "reservation.accepted"
	EventReservationRejected     = "reservation.rejected"
	EventReservationTimeout      = "reservation.timeout"
	EventReservationCanceled     = "reservation.canceled"
	EventReservationRescinded    = "reservation.rescinded"
	EventReservationWrapup       = "reservation.wrapup"
	EventReservationCompleted    = "reservation.completed"
	EventTaskCanceled            = "task.canceled"
	EventTaskTransferFailed      = "task.transfer-failed"
	EventWorkerCreated           = "worker.created"
	EventWorkerDeleted           = "worker.deleted"
	EventWorkerActivityUpdated   = "worker.activity.update"
	EventWorkerAttributesUpdated = "worker.attributes.update"
)

// TaskAttributes is the decoded task_attributes bag. Reporting overrides
// live under the conventional "conversations" key.
type TaskAttributes struct {
	Direction     string     `json:"direction,omitempty"`
	From          string     `json:"from,omitempty"`
	To            string     `json:"to,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Conversations CustomData `json:"conversations,omitempty"`
}

// WorkerAttributes is the decoded worker_attributes bag.
type WorkerAttributes struct {
	Email                     string     `json:"email,omitempty"`
	AgentID                   string     `json:"agent_id,omitempty"`
	Location                  string     `json:"location,omitempty"`
	Phone                     string     `json:"phone,omitempty"`
	Manager                   string     `json:"manager,omitempty"`
	Role                      string     `json:"role,omitempty"`
	Roles                     StringList `json:"roles,omitempty"`
	AgentAttribute1           string     `json:"agent_attribute_1,omitempty"`
	AgentAttribute2           string     `json:"agent_attribute_2,omitempty"`
	AgentAttribute3           string     `json:"agent_attribute_3,omitempty"`
	TeamID                    string     `json:"team_id,omitempty"`
	TeamName                  string     `json:"team_name,omitempty"`
	TeamNameInHierarchy       StringList `json:"team_name_in_hierarchy,omitempty"`
	DepartmentID              string     `json:"department_id,omitempty"`
	DepartmentName            string     `json:"department_name,omitempty"`
	DepartmentNameInHierarchy StringList `json:"department_name_in_hierarchy,omitempty"`
}

// CustomData holds the reporting fields a tenant can set explicitly under
// task_attributes.conversations. Every field is optional; nil/empty means
// "fall through to the computed default".
type CustomData struct {
	// Facts (integer seconds unless noted).
	AbandonTime                  *FlexInt `json:"abandon_time,omitempty"`
	QueueTime                    *FlexInt `json:"queue_time,omitempty"`
	RingTime                     *FlexInt `json:"ring_time,omitempty"`
	TalkTime                     *FlexInt `json:"talk_time,omitempty"`
	WrapupTime                   *FlexInt `json:"wrapup_time,omitempty"`
	TimeInSeconds                *FlexInt `json:"time_in_seconds,omitempty"`
	AgentTalkTime                *FlexInt `json:"agent_talk_time,omitempty"`
	LongestSilenceBeforeAgent    *FlexInt `json:"longest_silence_before_agent,omitempty"`
	LongestTalkByAgent           *FlexInt `json:"longest_talk_by_agent,omitempty"`
	SilenceTime                  *FlexInt `json:"silence_time,omitempty"`
	CrossTalkTime                *FlexInt `json:"cross_talk_time,omitempty"`
	CustomerTalkTime             *FlexInt `json:"customer_talk_time,omitempty"`
	LongestSilenceBeforeCustomer *FlexInt `json:"longest_silence_before_customer,omitempty"`
	LongestTalkByCustomer        *FlexInt `json:"longest_talk_by_customer,omitempty"`
	HoldTime                     *FlexInt `json:"hold_time,omitempty"`
	AverageResponseTime          *FlexInt `json:"average_response_time,omitempty"`
	FirstResponseTime            *FlexInt `json:"first_response_time,omitempty"`
	FocusTime                    *FlexInt `json:"focus_time,omitempty"`
	IVRTime                      *FlexInt `json:"ivr_time,omitempty"`
	Priority                     *FlexInt `json:"priority,omitempty"`

	// Attributes.
	ConversationID                    string     `json:"conversation_id,omitempty"`
	Abandoned                         string     `json:"abandoned,omitempty"`
	AbandonedPhase                    string     `json:"abandoned_phase,omitempty"`
	Activity                          string     `json:"activity,omitempty"`
	Campaign                          string     `json:"campaign,omitempty"`
	Case                              string     `json:"case,omitempty"`
	Channel                           string     `json:"channel,omitempty"`
	Content                           string     `json:"content,omitempty"`
	ConversationAttribute1            string     `json:"conversation_attribute_1,omitempty"`
	ConversationAttribute2            string     `json:"conversation_attribute_2,omitempty"`
	ConversationAttribute3            string     `json:"conversation_attribute_3,omitempty"`
	ConversationAttribute4            string     `json:"conversation_attribute_4,omitempty"`
	ConversationAttribute5            string     `json:"conversation_attribute_5,omitempty"`
	ConversationAttribute6            string     `json:"conversation_attribute_6,omitempty"`
	ConversationAttribute7            string     `json:"conversation_attribute_7,omitempty"`
	ConversationAttribute8            string     `json:"conversation_attribute_8,omitempty"`
	ConversationAttribute9            string     `json:"conversation_attribute_9,omitempty"`
	ConversationAttribute10           string     `json:"conversation_attribute_10,omitempty"`
	ConversationLabel1                string     `json:"conversation_label_1,omitempty"`
	ConversationLabel2                string     `json:"conversation_label_2,omitempty"`
	ConversationLabel3                string     `json:"conversation_label_3,omitempty"`
	ConversationLabel4                string     `json:"conversation_label_4,omitempty"`
	ConversationLabel5                string     `json:"conversation_label_5,omitempty"`
	ConversationLabel6                string     `json:"conversation_label_6,omitempty"`
	ConversationLabel7                string     `json:"conversation_label_7,omitempty"`
	ConversationLabel8                string     `json:"conversation_label_8,omitempty"`
	ConversationLabel9                string     `json:"conversation_label_9,omitempty"`
	ConversationLabel10               string     `json:"conversation_label_10,omitempty"`
	Destination                       string     `json:"destination,omitempty"`
	Direction                         string     `json:"direction,omitempty"`
	ExternalContact                   string     `json:"external_contact,omitempty"`
	FollowedBy                        string     `json:"followed_by,omitempty"`
	DepartmentID                      string     `json:"department_id,omitempty"`
	DepartmentName                    string     `json:"department_name,omitempty"`
	HandlingDepartmentNameInHierarchy StringList `json:"handling_department_name_in_hierarchy,omitempty"`
	Team                              string     `json:"team,omitempty"`
	TeamID                            string     `json:"team_id,omitempty"`
	TeamName                          string     `json:"team_name,omitempty"`
	TeamNameInHierarchy               StringList `json:"team_name_in_hierarchy,omitempty"`
	HangUpBy                          string     `json:"hang_up_by,omitempty"`
	InBusinessHours                   string     `json:"in_business_hours,omitempty"`
	InitiatedBy                       string     `json:"initiated_by,omitempty"`
	Initiative                        string     `json:"initiative,omitempty"`
	IVRPath                           string     `json:"ivr_path,omitempty"`
	Language                          string     `json:"language,omitempty"`
	Order                             string     `json:"order,omitempty"`
	Outcome                           string     `json:"outcome,omitempty"`
	PrecededBy                        string     `json:"preceded_by,omitempty"`
	Productive                        string     `json:"productive,omitempty"`
	Queue                             string     `json:"queue,omitempty"`
	SegmentLink                       string     `json:"segment_link,omitempty"`
	ServiceLevel                      string     `json:"service_level,omitempty"`
	Source                            string     `json:"source,omitempty"`
	Virtual                           string     `json:"virtual,omitempty"`
	Workflow                          string     `json:"workflow,omitempty"`
}

// RawEvent is an accepted lifecycle event after the one-time decode at the
// ingestion boundary. Immutable once cached.
type RawEvent struct {
	EventID           string           `json:"event_id"`
	EventType         string           `json:"event_type"`
	TaskSid           string           `json:"task_sid,omitempty"`
	ReservationSid    string           `json:"reservation_sid,omitempty"`
	WorkerSid         string           `json:"worker_sid,omitempty"`
	Timestamp         time.Time        `json:"timestamp"`
	TaskAttributes    TaskAttributes   `json:"task_attributes"`
	WorkerAttributes  WorkerAttributes `json:"worker_attributes"`
	CompletedReason   string           `json:"task_completed_reason,omitempty"`
	CanceledReason    string           `json:"task_canceled_reason,omitempty"`
	ChannelUniqueName string           `json:"task_channel_unique_name,omitempty"`
	WorkflowName      string           `json:"workflow_name,omitempty"`
	QueueName         string           `json:"task_queue_name,omitempty"`
	QueueSid          string           `json:"task_queue_sid,omitempty"`
	ActivityName      string           `json:"worker_activity_name,omitempty"`
	PriorActivitySecs *FlexInt         `json:"worker_time_in_previous_activity,omitempty"`
	PublisherMetadata map[string]any   `json:"publisher_metadata,omitempty"`
}

// ParseEvent projects an envelope into a RawEvent, decoding the attribute
// bags exactly once. A malformed bag degrades to its zero value; the
// returned error is informational and never blocks caching.
func ParseEvent(env Envelope) (*RawEvent, error) {
	p := env.Data.Payload
	ev := &RawEvent{
		EventID:           env.ID,
		EventType:         p.EventType,
		TaskSid:           p.TaskSid,
		ReservationSid:    p.ReservationSid,
		WorkerSid:         p.WorkerSid,
		Timestamp:         p.Timestamp.Time,
		CompletedReason:   p.TaskCompletedReason,
		CanceledReason:    p.TaskCanceledReason,
		ChannelUniqueName: p.TaskChannelUniqueName,
		WorkflowName:      p.WorkflowName,
		QueueName:         p.TaskQueueName,
		QueueSid:          p.TaskQueueSid,
		ActivityName:      p.WorkerActivityName,
		PriorActivitySecs: p.WorkerTimeInPreviousActivity,
		PublisherMetadata: env.Data.PublisherMetadata,
	}

	var parseErr error
	if p.TaskAttributes != "" {
		if err := json.Unmarshal([]byte(p.TaskAttributes), &ev.TaskAttributes); err != nil {
			ev.TaskAttributes = TaskAttributes{}
			parseErr = fmt.Errorf("task_attributes: %w", err)
		}
	}
	if p.WorkerAttributes != "" {
		if err := json.Unmarshal([]byte(p.WorkerAttributes), &ev.WorkerAttributes); err != nil {
			ev.WorkerAttributes = WorkerAttributes{}
			if parseErr != nil {
				parseErr = fmt.Errorf("%v; worker_attributes: %w", parseErr, err)
			} else {
				parseErr = fmt.Errorf("worker_attributes: %w", err)
			}
		}
	}
	return ev, parseErr
}
