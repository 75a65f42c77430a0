package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	OutputTruncated prometheus.Counter

	// Session metrics
	SessionsActive   prometheus.Gauge
	SessionSpawns    *prometheus.CounterVec
	SessionResets    *prometheus.CounterVec
	SpawnBreakerOpen prometheus.Gauge

	// Background process metrics
	BackgroundLaunched prometheus.Counter
	BackgroundActive   prometheus.Gauge
	BackgroundExits    *prometheus.CounterVec

	// Debug server metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Snapshot for the JSON status endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON status endpoint
type Snapshot struct {
	Commands       int64 `json:"commands"`
	TimedOut       int64 `json:"timed_out"`
	Resets         int64 `json:"resets"`
	ActiveSessions int64 `json:"active_sessions"`
	Background     int64 `json:"background_launched"`
}

// NewMetrics creates a metrics collector registered on reg. Tests pass a
// fresh prometheus.NewRegistry() so collectors never collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentshell_commands_total",
				Help: "Total number of submitted commands",
			},
			[]string{"mode", "outcome"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentshell_command_duration_seconds",
				Help:    "Time from submit to result in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"mode"},
		),
		OutputTruncated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentshell_output_truncated_total",
				Help: "Number of outputs cut to the character budget",
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentshell_sessions_active",
				Help: "Number of live shell sessions",
			},
		),
		SessionSpawns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentshell_session_spawns_total",
				Help: "Shell sessions spawned, by backend",
			},
			[]string{"backend"},
		),
		SessionResets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentshell_session_resets_total",
				Help: "Shell sessions killed and respawned, by reason",
			},
			[]string{"reason"},
		),
		SpawnBreakerOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentshell_spawn_breaker_open",
				Help: "1 while PTY spawning is short-circuited to the fallback backend",
			},
		),

		BackgroundLaunched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentshell_background_launched_total",
				Help: "Background processes launched",
			},
		),
		BackgroundActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentshell_background_active",
				Help: "Background processes still running",
			},
		),
		BackgroundExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentshell_background_exits_total",
				Help: "Background processes finished, by status",
			},
			[]string{"status"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentshell_http_requests_total",
				Help: "Total number of debug server requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentshell_http_request_duration_seconds",
				Help:    "Debug server request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),
	}
}

// RecordCommand records a finished command
func (m *Metrics) RecordCommand(mode, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(mode, outcome).Inc()
	m.CommandDuration.WithLabelValues(mode).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Commands++
	if outcome == "timeout" {
		m.snapshot.TimedOut++
	}
	m.mu.Unlock()
}

// RecordTruncation counts an output cut to the budget
func (m *Metrics) RecordTruncation() {
	if m == nil {
		return
	}
	m.OutputTruncated.Inc()
}

// RecordSpawn counts a spawned session
func (m *Metrics) RecordSpawn(backend string) {
	if m == nil {
		return
	}
	m.SessionSpawns.WithLabelValues(backend).Inc()
	m.SessionsActive.Inc()

	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// RecordSessionEnd counts a session whose process has been killed
func (m *Metrics) RecordSessionEnd() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()

	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// RecordReset counts a kill-and-respawn
func (m *Metrics) RecordReset(reason string) {
	if m == nil {
		return
	}
	m.SessionResets.WithLabelValues(reason).Inc()

	m.mu.Lock()
	m.snapshot.Resets++
	m.mu.Unlock()
}

// SetSpawnBreakerOpen mirrors the PTY spawn breaker state
func (m *Metrics) SetSpawnBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.SpawnBreakerOpen.Set(1)
	} else {
		m.SpawnBreakerOpen.Set(0)
	}
}

// RecordBackgroundLaunch counts a background launch
func (m *Metrics) RecordBackgroundLaunch() {
	if m == nil {
		return
	}
	m.BackgroundLaunched.Inc()
	m.BackgroundActive.Inc()

	m.mu.Lock()
	m.snapshot.Background++
	m.mu.Unlock()
}

// RecordBackgroundExit counts a finished background process
func (m *Metrics) RecordBackgroundExit(status string) {
	if m == nil {
		return
	}
	m.BackgroundActive.Dec()
	m.BackgroundExits.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records a debug server request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Snapshot returns the current counters
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
