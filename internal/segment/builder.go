// Package segment builds normalized reporting records from raw events.
// Field values resolve in precedence order: explicit custom data under the
// task's "conversations" attributes, then worker attributes, then computed
// defaults.
package segment

import (
	"time"

	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/google/uuid"
)

// Build maps a raw event onto the default segment record common to all
// segment kinds. The caller overlays kind-specific facts afterwards.
func Build(ev *types.RawEvent) types.Segment {
	cd := mergeCustomData(ev)
	ts := ev.Timestamp.Truncate(time.Second)

	return types.Segment{
		ConversationID:    firstNonEmpty(cd.ConversationID, ev.TaskSid, ev.WorkerSid, uuid.New().String()),
		SegmentExternalID: firstNonEmpty(ev.TaskSid, ev.WorkerSid, uuid.New().String()),
		ReservationSid:    ev.ReservationSid,
		AgentUUID:         ev.WorkerSid,

		ActivityTime:                 factValue(ev.PriorActivitySecs),
		AbandonTime:                  factValue(cd.AbandonTime),
		QueueTime:                    factValue(cd.QueueTime),
		RingTime:                     factValue(cd.RingTime),
		TalkTime:                     factValue(cd.TalkTime),
		WrapupTime:                   factValue(cd.WrapupTime),
		TimeInSeconds:                factValue(cd.TimeInSeconds),
		AgentTalkTime:                factValue(cd.AgentTalkTime),
		LongestSilenceBeforeAgent:    factValue(cd.LongestSilenceBeforeAgent),
		LongestTalkByAgent:           factValue(cd.LongestTalkByAgent),
		SilenceTime:                  factValue(cd.SilenceTime),
		CrossTalkTime:                factValue(cd.CrossTalkTime),
		CustomerTalkTime:             factValue(cd.CustomerTalkTime),
		LongestSilenceBeforeCustomer: factValue(cd.LongestSilenceBeforeCustomer),
		LongestTalkByCustomer:        factValue(cd.LongestTalkByCustomer),
		HoldTime:                     factValue(cd.HoldTime),
		AverageResponseTime:          factValue(cd.AverageResponseTime),
		FirstResponseTime:            factValue(cd.FirstResponseTime),
		FocusTime:                    factValue(cd.FocusTime),
		IVRTime:                      factValue(cd.IVRTime),
		Priority:                     factValue(cd.Priority),

		Date:                    ts,
		Time:                    ts,
		Abandoned:               firstNonEmpty(cd.Abandoned, "N"),
		AbandonedPhase:          cd.AbandonedPhase,
		Activity:                firstNonEmpty(cd.Activity, ev.ActivityName),
		Campaign:                cd.Campaign,
		Case:                    cd.Case,
		Channel:                 channelFor(cd, ev),
		Content:                 cd.Content,
		ConversationAttribute1:  cd.ConversationAttribute1,
		ConversationAttribute2:  cd.ConversationAttribute2,
		ConversationAttribute3:  cd.ConversationAttribute3,
		ConversationAttribute4:  cd.ConversationAttribute4,
		ConversationAttribute5:  cd.ConversationAttribute5,
		ConversationAttribute6:  cd.ConversationAttribute6,
		ConversationAttribute7:  cd.ConversationAttribute7,
		ConversationAttribute8:  cd.ConversationAttribute8,
		ConversationAttribute9:  cd.ConversationAttribute9,
		ConversationAttribute10: cd.ConversationAttribute10,
		ConversationLabel1:      cd.ConversationLabel1,
		ConversationLabel2:      cd.ConversationLabel2,
		ConversationLabel3:      cd.ConversationLabel3,
		ConversationLabel4:      cd.ConversationLabel4,
		ConversationLabel5:      cd.ConversationLabel5,
		ConversationLabel6:      cd.ConversationLabel6,
		ConversationLabel7:      cd.ConversationLabel7,
		ConversationLabel8:      cd.ConversationLabel8,
		ConversationLabel9:      cd.ConversationLabel9,
		ConversationLabel10:     cd.ConversationLabel10,
		Destination:             cd.Destination,
		Direction:               directionFor(cd, ev),
		ExternalContact:         externalContactFor(cd, ev),
		FollowedBy:              cd.FollowedBy,

		HandlingDepartmentID:              cd.DepartmentID,
		HandlingDepartmentName:            cd.DepartmentName,
		HandlingDepartmentNameInHierarchy: cd.HandlingDepartmentNameInHierarchy.Join(types.HierarchySeparator),
		HandlingTeamID:                    firstNonEmpty(cd.TeamID, cd.Team, ev.QueueSid),
		HandlingTeamName:                  firstNonEmpty(cd.TeamName, cd.Team, ev.QueueName),
		HandlingTeamNameInHierarchy:       cd.TeamNameInHierarchy.Join(types.HierarchySeparator),

		HangUpBy:        cd.HangUpBy,
		InBusinessHours: cd.InBusinessHours,
		InitiatedBy:     cd.InitiatedBy,
		Initiative:      cd.Initiative,
		IVRPath:         cd.IVRPath,
		Language:        cd.Language,
		Order:           cd.Order,
		Outcome:         firstNonEmpty(cd.Outcome, ev.TaskAttributes.Reason, ev.CompletedReason, ev.CanceledReason),
		PrecededBy:      cd.PrecededBy,
		Productive:      cd.Productive,
		Queue:           firstNonEmpty(cd.Queue, ev.QueueName),
		SegmentLink:     cd.SegmentLink,
		ServiceLevel:    cd.ServiceLevel,
		Source:          cd.Source,
		Virtual:         cd.Virtual,
		Workflow:        firstNonEmpty(cd.Workflow, ev.WorkflowName),
	}
}

// BuildAgent maps a raw worker event onto the agent identity attributes.
// State, date_joined and date_left are owned by the repository.
func BuildAgent(ev *types.RawEvent) types.AgentRecord {
	w := ev.WorkerAttributes

	role := w.Role
	if len(w.Roles) > 0 {
		role = w.Roles.Join(", ")
	}

	return types.AgentRecord{
		AgentUUID:                 ev.WorkerSid,
		Attribute1:                w.AgentAttribute1,
		Attribute2:                w.AgentAttribute2,
		Attribute3:                w.AgentAttribute3,
		Email:                     w.Email,
		AgentID:                   w.AgentID,
		Location:                  w.Location,
		Phone:                     w.Phone,
		Role:                      role,
		Manager:                   w.Manager,
		TeamID:                    w.TeamID,
		TeamName:                  w.TeamName,
		TeamNameInHierarchy:       w.TeamNameInHierarchy.Join(types.HierarchySeparator),
		DepartmentID:              w.DepartmentID,
		DepartmentName:            w.DepartmentName,
		DepartmentNameInHierarchy: w.DepartmentNameInHierarchy.Join(types.HierarchySeparator),
	}
}

// mergeCustomData overlays worker attributes onto the task's conversations
// custom data for the org fields both can carry. Worker attributes win.
func mergeCustomData(ev *types.RawEvent) types.CustomData {
	cd := ev.TaskAttributes.Conversations
	w := ev.WorkerAttributes

	if w.TeamID != "" {
		cd.TeamID = w.TeamID
	}
	if w.TeamName != "" {
		cd.TeamName = w.TeamName
	}
	if len(w.TeamNameInHierarchy) > 0 {
		cd.TeamNameInHierarchy = w.TeamNameInHierarchy
	}
	if w.DepartmentID != "" {
		cd.DepartmentID = w.DepartmentID
	}
	if w.DepartmentName != "" {
		cd.DepartmentName = w.DepartmentName
	}
	return cd
}

func channelFor(cd types.CustomData, ev *types.RawEvent) string {
	if cd.Channel != "" {
		return cd.Channel
	}
	switch ev.ChannelUniqueName {
	case "voice":
		return "Call"
	case "chat":
		return "Chat"
	default:
		return ev.ChannelUniqueName
	}
}

func directionFor(cd types.CustomData, ev *types.RawEvent) string {
	if cd.Direction != "" {
		return cd.Direction
	}
	switch ev.TaskAttributes.Direction {
	case "outbound":
		return "Outbound"
	case "internal":
		return "Internal"
	default:
		return "Inbound"
	}
}

func externalContactFor(cd types.CustomData, ev *types.RawEvent) string {
	if cd.ExternalContact != "" {
		return cd.ExternalContact
	}
	if ev.TaskAttributes.Direction == "outbound" {
		return ev.TaskAttributes.From
	}
	return ev.TaskAttributes.To
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func factValue(f *types.FlexInt) *int64 {
	if v, ok := f.Int64(); ok {
		return &v
	}
	return nil
}
