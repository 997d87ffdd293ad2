// Package alerts flags derived records that look stuck.
package alerts

import (
	"context"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/repository"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/rs/zerolog"
)

// StaleSweeper periodically reports in-progress segments whose session
// never received a terminal event. Rows are flagged in the log only; the
// data stays untouched so a late terminal event can still close them.
type StaleSweeper struct {
	repo       *repository.Repository
	staleAfter time.Duration
	interval   time.Duration
	logger     zerolog.Logger
}

// NewStaleSweeper creates a sweeper over the repository.
func NewStaleSweeper(repo *repository.Repository, staleAfter, interval time.Duration, logger zerolog.Logger) *StaleSweeper {
	return &StaleSweeper{
		repo:       repo,
		staleAfter: staleAfter,
		interval:   interval,
		logger:     logger.With().Str("component", "stale-sweeper").Logger(),
	}
}

// Run sweeps until the context is canceled.
func (s *StaleSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *StaleSweeper) sweep(now time.Time) {
	cutoff := now.Add(-s.staleAfter)
	stale := s.repo.Conversations(func(seg types.Segment) bool {
		return seg.InProgress() && seg.Date.Before(cutoff)
	})
	if len(stale) == 0 {
		return
	}

	for _, seg := range stale {
		s.logger.Warn().
			Str("segment_uuid", seg.SegmentUUID).
			Str("segment_kind", string(seg.Kind)).
			Str("conversation_id", seg.ConversationID).
			Time("started", seg.Date).
			Msg("in-progress segment past stale threshold")
	}
	s.logger.Warn().Int("count", len(stale)).Msg("stale sweep complete")
}
