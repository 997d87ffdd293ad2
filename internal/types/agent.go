package types

import "time"

// AgentState is the lifecycle state of an agent record.
type AgentState string

const (
	AgentActive  AgentState = "Active"
	AgentDeleted AgentState = "Deleted"
)

// AgentRecord is the current-state row for one worker identity. At most
// one record exists per AgentUUID; deletion marks the record rather than
// removing it.
type AgentRecord struct {
	AgentUUID string `json:"agent_uuid" dynamodbav:"AgentUUID"`

	// Identity and org attributes sourced from worker_attributes.
	Attribute1                string     `json:"attribute_1,omitempty" dynamodbav:"Attribute1,omitempty"`
	Attribute2                string     `json:"attribute_2,omitempty" dynamodbav:"Attribute2,omitempty"`
	Attribute3                string     `json:"attribute_3,omitempty" dynamodbav:"Attribute3,omitempty"`
	Email                     string     `json:"email,omitempty" dynamodbav:"Email,omitempty"`
	AgentID                   string     `json:"agent_id,omitempty" dynamodbav:"AgentID,omitempty"`
	Location                  string     `json:"location,omitempty" dynamodbav:"Location,omitempty"`
	Phone                     string     `json:"phone,omitempty" dynamodbav:"Phone,omitempty"`
	Role                      string     `json:"role,omitempty" dynamodbav:"Role,omitempty"`
	Manager                   string     `json:"manager,omitempty" dynamodbav:"Manager,omitempty"`
	TeamID                    string     `json:"team_id,omitempty" dynamodbav:"TeamID,omitempty"`
	TeamName                  string     `json:"team_name,omitempty" dynamodbav:"TeamName,omitempty"`
	TeamNameInHierarchy       string     `json:"team_name_in_hierarchy,omitempty" dynamodbav:"TeamNameInHierarchy,omitempty"`
	DepartmentID              string     `json:"department_id,omitempty" dynamodbav:"DepartmentID,omitempty"`
	DepartmentName            string     `json:"department_name,omitempty" dynamodbav:"DepartmentName,omitempty"`
	DepartmentNameInHierarchy string     `json:"department_name_in_hierarchy,omitempty" dynamodbav:"DepartmentNameInHierarchy,omitempty"`
	State                     AgentState `json:"state" dynamodbav:"State"`
	DateJoined                time.Time  `json:"date_joined" dynamodbav:"DateJoined"`
	DateLeft                  *time.Time `json:"date_left,omitempty" dynamodbav:"DateLeft,omitempty"`
}
