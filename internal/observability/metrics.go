package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are defined globally here and registered on the default
// registry, so every binary exposes the full set (unused ones stay at zero).

// namespace defines the global prefix for all metrics (e.g., valkyrie_...).
const namespace = "valkyrie"

// lowLatencyBuckets resolves the assignment hot path (sub-millisecond to 500ms).
var lowLatencyBuckets = []float64{.0005, .001, .002, .005, .010, .020, .050, .100, .500}

var (
	// -------------------------------------------------------------------------
	// API (HTTP)
	// -------------------------------------------------------------------------

	// APIReqDuration measures the latency of HTTP requests.
	// Metric: valkyrie_api_http_handling_seconds
	APIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "path"})

	// APIReqTotal counts the total number of HTTP requests.
	// Metric: valkyrie_api_http_requests_total
	APIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "code"})

	// -------------------------------------------------------------------------
	// ASSIGNMENT
	// -------------------------------------------------------------------------

	// AssignmentsTotal counts variant assignments.
	// outcome is "sticky" (served from session), "computed" or "error".
	AssignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "assignments_total",
		Help:      "Total variant assignments by strategy and outcome",
	}, []string{"strategy", "outcome"})

	// StaleSessionValues counts sticky values discarded because they no longer
	// name a valid variant (tampered or left over from an older definition).
	StaleSessionValues = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "stale_session_values_total",
		Help:      "Sticky session values ignored and reassigned",
	})

	// -------------------------------------------------------------------------
	// SESSION
	// -------------------------------------------------------------------------

	SessionHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "hits_total",
		Help:      "Total session lookups that found a value",
	}, []string{"backend"})

	SessionMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "misses_total",
		Help:      "Total session lookups that found nothing",
	}, []string{"backend"})

	// SessionBackendErrors counts failed session reads/writes. Failures degrade
	// to a miss (read) or a dropped write, so assignment keeps working.
	SessionBackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "backend_errors_total",
		Help:      "Total session backend failures",
	}, []string{"backend", "op"})

	// SessionItems reflects the number of entries held by the in-process backend.
	SessionItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "memory_items_count",
		Help:      "Current number of entries in the in-memory session backend",
	})

	RedisPoolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "redis_pool_total_conns",
		Help:      "Total connections in the Redis pool",
	})

	RedisPoolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "redis_pool_idle_conns",
		Help:      "Idle connections in the Redis pool",
	})

	RedisPoolTimeouts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "redis_pool_timeouts",
		Help:      "Cumulative number of Redis pool wait timeouts",
	})

	// -------------------------------------------------------------------------
	// REGISTRY (PostgreSQL)
	// -------------------------------------------------------------------------

	// DatabasePoolConnections exposes pgxpool state: total, idle, in_use, max.
	DatabasePoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "PostgreSQL pool connections by state",
	}, []string{"state"})

	// -------------------------------------------------------------------------
	// EVENT STORE
	// -------------------------------------------------------------------------

	EventsTrackedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "tracked_total",
		Help:      "Total events accepted by the event store",
	}, []string{"kind"})

	EventsPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "persisted_total",
		Help:      "Total events durably written to day-files",
	})

	EventStoreWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "write_errors_total",
		Help:      "Total failed day-file writes",
	})

	// EventsUnencodableTotal counts buffered events dropped because they could not be
	// serialized. Track rejects such events up front, so this should stay at zero.
	EventsUnencodableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "unencodable_total",
		Help:      "Total buffered events dropped because they could not be encoded",
	})

	EventStoreQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "queue_depth",
		Help:      "Events enqueued but not yet handed to a writer",
	})

	// EventStoreFlushDuration measures how long a full Flush takes.
	EventStoreFlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "flush_duration_seconds",
		Help:      "Time taken to flush all writer buffers",
		Buckets:   prometheus.DefBuckets,
	})

	// -------------------------------------------------------------------------
	// REPORTS
	// -------------------------------------------------------------------------

	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "generation_seconds",
		Help:      "Time taken to build a report",
		Buckets:   prometheus.DefBuckets,
	})

	ReportDaysScanned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "days_scanned_total",
		Help:      "Total day-files read while building reports",
	})

	// ReportCorruptDaysSkipped counts day-files that failed to parse and were
	// treated as empty. A non-zero value means reports undercount.
	ReportCorruptDaysSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "corrupt_days_skipped_total",
		Help:      "Total day-files skipped because they were not valid event arrays",
	})
)
