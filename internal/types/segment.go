package types

import "time"

// SegmentKind classifies a derived reporting row.
type SegmentKind string

const (
	SegmentQueue                  SegmentKind = "QUEUE"
	SegmentConversation           SegmentKind = "CONVERSATION"
	SegmentConversationInProgress SegmentKind = "CONVERSATION IN PROGRESS"
	// SegmentCorrupted is declared in the reporting model but no event
	// branch produces it yet.
	SegmentCorrupted             SegmentKind = "CORRUPTED CONVERSATION"
	SegmentRejected              SegmentKind = "REJECTED CONVERSATION"
	SegmentMissed                SegmentKind = "MISSED CONVERSATION"
	SegmentRevoked               SegmentKind = "REVOKED CONVERSATION"
	SegmentAgentStatus           SegmentKind = "AGENT STATUS"
	SegmentAgentStatusInProgress SegmentKind = "AGENT STATUS IN PROGRESS"
)

// HierarchySeparator joins list-valued hierarchy attributes into a single
// display string.
const HierarchySeparator = " ▸ "

// Segment is one derived reporting row: a phase of a contact's or a
// worker's lifecycle. Fact fields are integer seconds; nil means the fact
// could not be computed.
type Segment struct {
	SegmentUUID       string      `json:"uuid" dynamodbav:"SegmentUUID"`
	ConversationID    string      `json:"conversation_id" dynamodbav:"ConversationID"`
	SegmentExternalID string      `json:"segment_external_id" dynamodbav:"SegmentExternalID"`
	Kind              SegmentKind `json:"segment_kind" dynamodbav:"SegmentKind"`

	// Correlation keys. ReservationSid links an in-progress row to the
	// terminal event that folds into it; AgentUUID links to the agent table.
	ReservationSid string `json:"reservation_sid" dynamodbav:"ReservationSid"`
	AgentUUID      string `json:"agent_uuid" dynamodbav:"AgentUUID"`

	// Facts.
	ActivityTime                 *int64 `json:"activity_time,omitempty" dynamodbav:"ActivityTime,omitempty"`
	AbandonTime                  *int64 `json:"abandon_time,omitempty" dynamodbav:"AbandonTime,omitempty"`
	QueueTime                    *int64 `json:"queue_time,omitempty" dynamodbav:"QueueTime,omitempty"`
	RingTime                     *int64 `json:"ring_time,omitempty" dynamodbav:"RingTime,omitempty"`
	TalkTime                     *int64 `json:"talk_time,omitempty" dynamodbav:"TalkTime,omitempty"`
	WrapupTime                   *int64 `json:"wrapup_time,omitempty" dynamodbav:"WrapupTime,omitempty"`
	TimeInSeconds                *int64 `json:"time_in_seconds,omitempty" dynamodbav:"TimeInSeconds,omitempty"`
	AgentTalkTime                *int64 `json:"agent_talk_time,omitempty" dynamodbav:"AgentTalkTime,omitempty"`
	LongestSilenceBeforeAgent    *int64 `json:"longest_silence_before_agent,omitempty" dynamodbav:"LongestSilenceBeforeAgent,omitempty"`
	LongestTalkByAgent           *int64 `json:"longest_talk_by_agent,omitempty" dynamodbav:"LongestTalkByAgent,omitempty"`
	SilenceTime                  *int64 `json:"silence_time,omitempty" dynamodbav:"SilenceTime,omitempty"`
	CrossTalkTime                *int64 `json:"cross_talk_time,omitempty" dynamodbav:"CrossTalkTime,omitempty"`
	CustomerTalkTime             *int64 `json:"customer_talk_time,omitempty" dynamodbav:"CustomerTalkTime,omitempty"`
	LongestSilenceBeforeCustomer *int64 `json:"longest_silence_before_customer,omitempty" dynamodbav:"LongestSilenceBeforeCustomer,omitempty"`
	LongestTalkByCustomer        *int64 `json:"longest_talk_by_customer,omitempty" dynamodbav:"LongestTalkByCustomer,omitempty"`
	HoldTime                     *int64 `json:"hold_time,omitempty" dynamodbav:"HoldTime,omitempty"`
	AverageResponseTime          *int64 `json:"average_response_time,omitempty" dynamodbav:"AverageResponseTime,omitempty"`
	FirstResponseTime            *int64 `json:"first_response_time,omitempty" dynamodbav:"FirstResponseTime,omitempty"`
	FocusTime                    *int64 `json:"focus_time,omitempty" dynamodbav:"FocusTime,omitempty"`
	IVRTime                      *int64 `json:"ivr_time,omitempty" dynamodbav:"IVRTime,omitempty"`
	Priority                     *int64 `json:"priority,omitempty" dynamodbav:"Priority,omitempty"`

	// Attributes. Date and Time carry the event instant with milliseconds
	// zeroed; the presentation layer formats them.
	Date                              time.Time `json:"date" dynamodbav:"Date"`
	Time                              time.Time `json:"time" dynamodbav:"Time"`
	Abandoned                         string    `json:"abandoned,omitempty" dynamodbav:"Abandoned,omitempty"`
	AbandonedPhase                    string    `json:"abandoned_phase,omitempty" dynamodbav:"AbandonedPhase,omitempty"`
	Activity                          string    `json:"activity,omitempty" dynamodbav:"Activity,omitempty"`
	Campaign                          string    `json:"campaign,omitempty" dynamodbav:"Campaign,omitempty"`
	Case                              string    `json:"case,omitempty" dynamodbav:"Case,omitempty"`
	Channel                           string    `json:"channel,omitempty" dynamodbav:"Channel,omitempty"`
	Content                           string    `json:"content,omitempty" dynamodbav:"Content,omitempty"`
	ConversationAttribute1            string    `json:"conversation_attribute_1,omitempty" dynamodbav:"ConversationAttribute1,omitempty"`
	ConversationAttribute2            string    `json:"conversation_attribute_2,omitempty" dynamodbav:"ConversationAttribute2,omitempty"`
	ConversationAttribute3            string    `json:"conversation_attribute_3,omitempty" dynamodbav:"ConversationAttribute3,omitempty"`
	ConversationAttribute4            string    `json:"conversation_attribute_4,omitempty" dynamodbav:"ConversationAttribute4,omitempty"`
	ConversationAttribute5            string    `json:"conversation_attribute_5,omitempty" dynamodbav:"ConversationAttribute5,omitempty"`
	ConversationAttribute6            string    `json:"conversation_attribute_6,omitempty" dynamodbav:"ConversationAttribute6,omitempty"`
	ConversationAttribute7            string    `json:"conversation_attribute_7,omitempty" dynamodbav:"ConversationAttribute7,omitempty"`
	ConversationAttribute8            string    `json:"conversation_attribute_8,omitempty" dynamodbav:"ConversationAttribute8,omitempty"`
	ConversationAttribute9            string    `json:"conversation_attribute_9,omitempty" dynamodbav:"ConversationAttribute9,omitempty"`
	ConversationAttribute10           string    `json:"conversation_attribute_10,omitempty" dynamodbav:"ConversationAttribute10,omitempty"`
	ConversationLabel1                string    `json:"conversation_label_1,omitempty" dynamodbav:"ConversationLabel1,omitempty"`
	ConversationLabel2                string    `json:"conversation_label_2,omitempty" dynamodbav:"ConversationLabel2,omitempty"`
	ConversationLabel3                string    `json:"conversation_label_3,omitempty" dynamodbav:"ConversationLabel3,omitempty"`
	ConversationLabel4                string    `json:"conversation_label_4,omitempty" dynamodbav:"ConversationLabel4,omitempty"`
	ConversationLabel5                string    `json:"conversation_label_5,omitempty" dynamodbav:"ConversationLabel5,omitempty"`
	ConversationLabel6                string    `json:"conversation_label_6,omitempty" dynamodbav:"ConversationLabel6,omitempty"`
	ConversationLabel7                string    `json:"conversation_label_7,omitempty" dynamodbav:"ConversationLabel7,omitempty"`
	ConversationLabel8                string    `json:"conversation_label_8,omitempty" dynamodbav:"ConversationLabel8,omitempty"`
	ConversationLabel9                string    `json:"conversation_label_9,omitempty" dynamodbav:"ConversationLabel9,omitempty"`
	ConversationLabel10               string    `json:"conversation_label_10,omitempty" dynamodbav:"ConversationLabel10,omitempty"`
	Destination                       string    `json:"destination,omitempty" dynamodbav:"Destination,omitempty"`
	Direction                         string    `json:"direction,omitempty" dynamodbav:"Direction,omitempty"`
	ExternalContact                   string    `json:"external_contact,omitempty" dynamodbav:"ExternalContact,omitempty"`
	FollowedBy                        string    `json:"followed_by,omitempty" dynamodbav:"FollowedBy,omitempty"`
	HandlingDepartmentID              string    `json:"handling_department_id,omitempty" dynamodbav:"HandlingDepartmentID,omitempty"`
	HandlingDepartmentName            string    `json:"handling_department_name,omitempty" dynamodbav:"HandlingDepartmentName,omitempty"`
	HandlingDepartmentNameInHierarchy string    `json:"handling_department_name_in_hierarchy,omitempty" dynamodbav:"HandlingDepartmentNameInHierarchy,omitempty"`
	HandlingTeamID                    string    `json:"handling_team_id,omitempty" dynamodbav:"HandlingTeamID,omitempty"`
	HandlingTeamName                  string    `json:"handling_team_name,omitempty" dynamodbav:"HandlingTeamName,omitempty"`
	HandlingTeamNameInHierarchy       string    `json:"handling_team_name_in_hierarchy,omitempty" dynamodbav:"HandlingTeamNameInHierarchy,omitempty"`
	HangUpBy                          string    `json:"hang_up_by,omitempty" dynamodbav:"HangUpBy,omitempty"`
	InBusinessHours                   string    `json:"in_business_hours,omitempty" dynamodbav:"InBusinessHours,omitempty"`
	InitiatedBy                       string    `json:"initiated_by,omitempty" dynamodbav:"InitiatedBy,omitempty"`
	Initiative                        string    `json:"initiative,omitempty" dynamodbav:"Initiative,omitempty"`
	IVRPath                           string    `json:"ivr_path,omitempty" dynamodbav:"IVRPath,omitempty"`
	Language                          string    `json:"language,omitempty" dynamodbav:"Language,omitempty"`
	Order                             string    `json:"order,omitempty" dynamodbav:"Order,omitempty"`
	Outcome                           string    `json:"outcome,omitempty" dynamodbav:"Outcome,omitempty"`
	PrecededBy                        string    `json:"preceded_by,omitempty" dynamodbav:"PrecededBy,omitempty"`
	Productive                        string    `json:"productive,omitempty" dynamodbav:"Productive,omitempty"`
	Queue                             string    `json:"queue,omitempty" dynamodbav:"Queue,omitempty"`
	SegmentLink                       string    `json:"segment_link,omitempty" dynamodbav:"SegmentLink,omitempty"`
	ServiceLevel                      string    `json:"service_level,omitempty" dynamodbav:"ServiceLevel,omitempty"`
	Source                            string    `json:"source,omitempty" dynamodbav:"Source,omitempty"`
	Virtual                           string    `json:"virtual,omitempty" dynamodbav:"Virtual,omitempty"`
	Workflow                          string    `json:"workflow,omitempty" dynamodbav:"Workflow,omitempty"`
}

// InProgress reports whether this segment is a valid upsert target for a
// later terminal event.
func (s *Segment) InProgress() bool {
	return s.Kind == SegmentConversationInProgress || s.Kind == SegmentAgentStatusInProgress
}

// Int64Ptr is a convenience for building fact fields.
func Int64Ptr(v int64) *int64 { return &v }
