// Package ingestion exposes the event webhook.
package ingestion

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/cache"
	"github.com/dennisdiepolder/taskstream/internal/dispatch"
	"github.com/dennisdiepolder/taskstream/internal/metrics"
	"github.com/dennisdiepolder/taskstream/internal/types"
	"github.com/rs/zerolog"
)

// Receiver handles incoming event batches from the router webhook.
type Receiver struct {
	cache           *cache.EventCache
	dispatcher      *dispatch.Dispatcher
	logger          zerolog.Logger
	batchesReceived int64
	lastReceived    time.Time
	mu              sync.RWMutex
}

// NewReceiver creates a new event receiver
func NewReceiver(events *cache.EventCache, dispatcher *dispatch.Dispatcher, logger zerolog.Logger) *Receiver {
	return &Receiver{
		cache:      events,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleBatch receives a JSON array of event envelopes and processes them
// in order. The webhook sender retries on non-2xx, so a body that fails to
// decode is logged and acknowledged rather than bounced back forever.
func (r *Receiver) HandleBatch(w http.ResponseWriter, req *http.Request) {
	m := metrics.Get()

	var envelopes []types.Envelope
	if err := json.NewDecoder(req.Body).Decode(&envelopes); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode event batch")
		m.RecordEventError()
		w.WriteHeader(http.StatusOK)
		return
	}

	r.dispatcher.ProcessBatch(envelopes)

	atomic.AddInt64(&r.batchesReceived, 1)
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	count := atomic.LoadInt64(&r.batchesReceived)
	if count%1000 == 0 {
		r.logger.Info().
			Int64("total_batches", count).
			Int("cache_size", r.cache.Size()).
			Msg("batches received")
	}

	w.WriteHeader(http.StatusOK)
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"batches_received": atomic.LoadInt64(&r.batchesReceived),
		"last_received":    lastReceived,
		"cache_size":       r.cache.Size(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
