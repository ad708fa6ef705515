package observability

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Metrics holds the service's Prometheus-style instruments. All methods are safe on a nil receiver,
// so callers can use Current() without checking whether metrics are enabled.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	queries        *CounterVec
	queryLatency   *HistogramVec
	candidates     *HistogramVec
	textFetches    *CounterVec
	genAttempts    *CounterVec
	genLatency     *HistogramVec
	truncatedBlock *CounterVec
}

var (
	mu       sync.RWMutex
	instance *Metrics
)

// Current returns the installed metrics, or nil when metrics are disabled.
func Current() *Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// Init installs a fresh metrics registry when enabled and returns it. Disabled returns nil and
// uninstalls any previous registry.
func Init(enabled bool) *Metrics {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		instance = nil
		return nil
	}
	instance = NewMetrics()
	return instance
}

func NewMetrics() *Metrics {
	latency := []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}
	return &Metrics{
		apiRequests: NewCounterVec("dq_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"dq_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			latency,
		),
		apiInflight: NewGauge("dq_api_inflight_requests", "In-flight API requests."),

		queries:      NewCounterVec("dq_queries_total", "Queries by outcome code.", []string{"code"}),
		queryLatency: NewHistogramVec("dq_query_duration_seconds", "End-to-end query latency by outcome code.", []string{"code"}, latency),
		candidates: NewHistogramVec(
			"dq_query_candidates",
			"Number of scored candidates handed to generation.",
			nil,
			[]float64{0, 1, 2, 3, 4, 5},
		),
		textFetches: NewCounterVec("dq_text_fetches_total", "Document text fetches by result.", []string{"result"}),
		genAttempts: NewCounterVec(
			"dq_generation_attempts_total",
			"Generation attempts by model/auth/outcome.",
			[]string{"model", "auth", "outcome"},
		),
		genLatency: NewHistogramVec(
			"dq_generation_attempt_duration_seconds",
			"Generation attempt latency by model/auth.",
			[]string{"model", "auth"},
			latency,
		),
		truncatedBlock: NewCounterVec("dq_context_blocks_total", "Context blocks by truncation.", []string{"truncated"}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, metric := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.queries, m.queryLatency, m.candidates, m.textFetches,
		m.genAttempts, m.genLatency, m.truncatedBlock,
	} {
		if err := metric.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

// ObserveQuery records one finished query. code is "ok" or the caller-facing error code.
func (m *Metrics) ObserveQuery(code string, candidates int, dur time.Duration) {
	if m == nil {
		return
	}
	code = strings.TrimSpace(code)
	if code == "" {
		code = "ok"
	}
	m.queries.Inc(code)
	m.queryLatency.Observe(dur.Seconds(), code)
	if candidates >= 0 {
		m.candidates.Observe(float64(candidates))
	}
}

// IncTextFetch counts a text fetch by result: ok, no_path, or error.
func (m *Metrics) IncTextFetch(result string) {
	if m != nil {
		m.textFetches.Inc(result)
	}
}

func (m *Metrics) ObserveGenerationAttempt(model, auth, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.genAttempts.Inc(model, auth, outcome)
	m.genLatency.Observe(dur.Seconds(), model, auth)
}

func (m *Metrics) IncContextBlock(truncated bool) {
	if m == nil {
		return
	}
	if truncated {
		m.truncatedBlock.Inc("true")
		return
	}
	m.truncatedBlock.Inc("false")
}
