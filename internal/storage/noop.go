package storage

import "github.com/dennisdiepolder/taskstream/internal/types"

// Store is the archive for terminal segments and agent records.
type Store interface {
	SaveSegment(seg types.Segment) error
	SaveAgent(agent types.AgentRecord) error
	GetSegments(dateKey string) ([]types.Segment, error)
	GetAgentSegments(agentUUID, dateKey string) ([]types.Segment, error)
	GetAgent(agentUUID string) (*types.AgentRecord, error)
	TruncateAll() error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveSegment(_ types.Segment) error                          { return nil }
func (s *NoopStore) SaveAgent(_ types.AgentRecord) error                        { return nil }
func (s *NoopStore) GetSegments(_ string) ([]types.Segment, error)              { return nil, nil }
func (s *NoopStore) GetAgentSegments(_, _ string) ([]types.Segment, error)      { return nil, nil }
func (s *NoopStore) GetAgent(_ string) (*types.AgentRecord, error)              { return nil, nil }
func (s *NoopStore) TruncateAll() error                                         { return nil }
