package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/taskstream/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Ingestion metrics
	BatchesReceivedTotal  int64
	EventsReceivedTotal   int64
	EventsProcessedTotal  int64
	EventsSkippedTotal    int64 // outside namespace or duplicate event id
	EventProcessingErrors int64

	// Derivation metrics
	SegmentsInsertedTotal  int64
	SegmentsUpdatedTotal   int64
	CorrelationMissesTotal int64
	AgentsUpsertedTotal    int64
	UnhandledEventsTotal   int64

	// Derived record distribution
	segmentsByKind map[types.SegmentKind]int64

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			segmentsByKind:       make(map[types.SegmentKind]int64),
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordBatchReceived increments the batches received counter
func (m *Metrics) RecordBatchReceived() {
	m.mu.Lock()
	m.BatchesReceivedTotal++
	m.mu.Unlock()
}

// RecordEventReceived increments the events received counter
func (m *Metrics) RecordEventReceived() {
	m.mu.Lock()
	m.EventsReceivedTotal++
	m.mu.Unlock()
}

// RecordEventProcessed increments the events processed counter
func (m *Metrics) RecordEventProcessed() {
	m.mu.Lock()
	m.EventsProcessedTotal++
	m.mu.Unlock()
}

// RecordEventSkipped counts events skipped before dispatch
func (m *Metrics) RecordEventSkipped() {
	m.mu.Lock()
	m.EventsSkippedTotal++
	m.mu.Unlock()
}

// RecordEventError increments the event processing error counter
func (m *Metrics) RecordEventError() {
	m.mu.Lock()
	m.EventProcessingErrors++
	m.mu.Unlock()
}

// RecordSegmentInserted counts a new derived segment row
func (m *Metrics) RecordSegmentInserted(kind types.SegmentKind) {
	m.mu.Lock()
	m.SegmentsInsertedTotal++
	m.segmentsByKind[kind]++
	m.mu.Unlock()
}

// RecordSegmentUpdated counts an in-progress row folded into a terminal one
func (m *Metrics) RecordSegmentUpdated(kind types.SegmentKind) {
	m.mu.Lock()
	m.SegmentsUpdatedTotal++
	m.segmentsByKind[kind]++
	m.mu.Unlock()
}

// RecordCorrelationMiss counts a lookup that found no prior event
func (m *Metrics) RecordCorrelationMiss() {
	m.mu.Lock()
	m.CorrelationMissesTotal++
	m.mu.Unlock()
}

// RecordAgentUpserted counts an agent record write
func (m *Metrics) RecordAgentUpserted() {
	m.mu.Lock()
	m.AgentsUpsertedTotal++
	m.mu.Unlock()
}

// RecordUnhandledEvent counts an in-namespace event with no segment mapping
func (m *Metrics) RecordUnhandledEvent() {
	m.mu.Lock()
	m.UnhandledEventsTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// Middleware records per-endpoint request counts and durations.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(r.URL.Path, rec.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("taskstream_uptime_seconds", time.Since(m.startTime).Seconds())

		// Ingestion metrics
		write("taskstream_batches_received_total", m.BatchesReceivedTotal)
		write("taskstream_events_received_total", m.EventsReceivedTotal)
		write("taskstream_events_processed_total", m.EventsProcessedTotal)
		write("taskstream_events_skipped_total", m.EventsSkippedTotal)
		write("taskstream_event_processing_errors_total", m.EventProcessingErrors)

		// Calculate events per second
		uptimeSeconds := time.Since(m.startTime).Seconds()
		if uptimeSeconds > 0 {
			write("taskstream_events_per_second", float64(m.EventsReceivedTotal)/uptimeSeconds)
		}

		// Derivation metrics
		write("taskstream_segments_inserted_total", m.SegmentsInsertedTotal)
		write("taskstream_segments_updated_total", m.SegmentsUpdatedTotal)
		write("taskstream_correlation_misses_total", m.CorrelationMissesTotal)
		write("taskstream_agents_upserted_total", m.AgentsUpsertedTotal)
		write("taskstream_unhandled_events_total", m.UnhandledEventsTotal)

		// Segments by kind
		for kind, count := range m.segmentsByKind {
			write("taskstream_segments_by_kind", count, "kind", string(kind))
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("taskstream_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
