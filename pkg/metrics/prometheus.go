// Package metrics provides Prometheus metrics for the gatewatch attendance pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the gatewatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Ingestion metrics
	detectionsAccepted  prometheus.Counter
	detectionsRejected  *prometheus.CounterVec
	detectionsDuplicate prometheus.Counter

	// Matching metrics
	matchLatency  prometheus.Histogram
	matchHits     prometheus.Counter
	matchMisses   prometheus.Counter
	matchErrors   *prometheus.CounterVec
	enrolledCount prometheus.Gauge

	// Attendance metrics
	transitions     *prometheus.CounterVec
	reviewQueueSize prometheus.Gauge
	openRecords     prometheus.Gauge

	// Broadcast metrics
	subscriberCount prometheus.Gauge
	eventsPublished prometheus.Counter
	eventsDelivered prometheus.Counter
	eventsDropped   prometheus.Counter

	// Sync metrics
	syncAttempts   prometheus.Counter
	syncSuccesses  prometheus.Counter
	syncFailures   *prometheus.CounterVec
	syncDeadLetter prometheus.Counter
	syncBacklog    prometheus.Gauge

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Queue metrics
	queueCapacity    prometheus.Gauge
	queueSize        prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueue     prometheus.Counter
	queueDequeue     prometheus.Counter
	queueErrors      *prometheus.CounterVec

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var defaultManager *Manager
var defaultRegistry *prometheus.Registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	defaultRegistry = prometheus.NewRegistry()
	defaultManager = NewManager(WithPrometheusRegistry(defaultRegistry))
}

// NewManager creates a metrics manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gatewatch",
		subsystem:        "pipeline",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.detectionsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detections_accepted_total",
		Help:      "Total number of detections accepted at ingestion",
	})

	m.detectionsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "detections_rejected_total",
			Help:      "Total number of detections rejected at ingestion",
		},
		[]string{"reason"},
	)

	m.detectionsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detections_duplicate_total",
		Help:      "Total number of duplicate detection submissions",
	})

	m.matchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_latency_milliseconds",
		Help:      "Identity matching latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.matchHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_hits_total",
		Help:      "Total number of detections matched to an enrolled identity",
	})

	m.matchMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_misses_total",
		Help:      "Total number of detections with no identity above threshold",
	})

	m.matchErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "match_errors_total",
			Help:      "Total number of matching errors",
		},
		[]string{"kind"},
	)

	m.enrolledCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "enrolled_identities",
		Help:      "Number of identities in the signature store",
	})

	m.transitions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "attendance_transitions_total",
			Help:      "Total number of attendance state transitions by outcome",
		},
		[]string{"outcome"},
	)

	m.reviewQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "review_queue_size",
		Help:      "Number of detections pending manual review",
	})

	m.openRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attendance_open_records",
		Help:      "Number of attendance records with a check-in and no check-out",
	})

	m.subscriberCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_subscribers",
		Help:      "Number of live subscribers",
	})

	m.eventsPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_published_total",
		Help:      "Total number of events published to the broadcaster",
	})

	m.eventsDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_delivered_total",
		Help:      "Total number of events delivered to subscriber buffers",
	})

	m.eventsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_dropped_total",
		Help:      "Total number of events dropped from full subscriber buffers",
	})

	m.syncAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_attempts_total",
		Help:      "Total number of external sync attempts",
	})

	m.syncSuccesses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_successes_total",
		Help:      "Total number of successful external syncs",
	})

	m.syncFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "sync_failures_total",
			Help:      "Total number of failed external sync attempts by class",
		},
		[]string{"class"},
	)

	m.syncDeadLetter = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_dead_letter_total",
		Help:      "Total number of sync jobs moved to the dead-letter list",
	})

	m.syncBacklog = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_backlog",
		Help:      "Number of sync jobs waiting for an attempt",
	})

	m.cacheHits = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "cache_hits_total",
			Help:      "Total number of live cache hits",
		},
		[]string{"kind"},
	)

	m.cacheMisses = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "cache_misses_total",
			Help:      "Total number of live cache misses",
		},
		[]string{"kind"},
	)

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum detection queue capacity",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of queued detections",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue utilization ratio (current size / capacity)",
	})

	m.queueEnqueue = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of detections enqueued",
	})

	m.queueDequeue = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of detections dequeued",
	})

	m.queueErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "queue_errors_total",
			Help:      "Total number of queue errors by reason",
		},
		[]string{"reason"},
	)

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of pipeline workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "End-to-end detection processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of worker errors",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)
}

// Package-level helpers operating on the default manager.

func RecordDetectionAccepted()             { defaultManager.detectionsAccepted.Inc() }
func RecordDetectionRejected(reason string) {
	defaultManager.detectionsRejected.WithLabelValues(reason).Inc()
}
func RecordDetectionDuplicate() { defaultManager.detectionsDuplicate.Inc() }

func RecordMatchLatency(latencyMs float64) { defaultManager.matchLatency.Observe(latencyMs) }
func RecordMatchHit()                      { defaultManager.matchHits.Inc() }
func RecordMatchMiss()                     { defaultManager.matchMisses.Inc() }
func RecordMatchError(kind string)         { defaultManager.matchErrors.WithLabelValues(kind).Inc() }
func UpdateEnrolledIdentities(count int)   { defaultManager.enrolledCount.Set(float64(count)) }

func RecordTransition(outcome string) { defaultManager.transitions.WithLabelValues(outcome).Inc() }
func UpdateReviewQueueSize(size int)  { defaultManager.reviewQueueSize.Set(float64(size)) }
func UpdateOpenRecords(count int)     { defaultManager.openRecords.Set(float64(count)) }

func UpdateSubscriberCount(count int) { defaultManager.subscriberCount.Set(float64(count)) }
func RecordEventPublished()           { defaultManager.eventsPublished.Inc() }
func RecordEventDelivered()           { defaultManager.eventsDelivered.Inc() }
func RecordEventDropped()             { defaultManager.eventsDropped.Inc() }

func RecordSyncAttempt()             { defaultManager.syncAttempts.Inc() }
func RecordSyncSuccess()             { defaultManager.syncSuccesses.Inc() }
func RecordSyncFailure(class string) { defaultManager.syncFailures.WithLabelValues(class).Inc() }
func RecordSyncDeadLetter()          { defaultManager.syncDeadLetter.Inc() }
func UpdateSyncBacklog(size int)     { defaultManager.syncBacklog.Set(float64(size)) }

func RecordCacheHit(kind string)  { defaultManager.cacheHits.WithLabelValues(kind).Inc() }
func RecordCacheMiss(kind string) { defaultManager.cacheMisses.WithLabelValues(kind).Inc() }

func UpdateQueueCapacity(capacity int) { defaultManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueSize(size int)         { defaultManager.queueSize.Set(float64(size)) }
func UpdateQueueUtilization(ratio float64) {
	defaultManager.queueUtilization.Set(ratio)
}
func RecordQueueEnqueue()              { defaultManager.queueEnqueue.Inc() }
func RecordQueueDequeue()              { defaultManager.queueDequeue.Inc() }
func RecordQueueError(reason string)   { defaultManager.queueErrors.WithLabelValues(reason).Inc() }

func UpdateWorkerCount(count int) { defaultManager.workerCount.Set(float64(count)) }
func RecordWorkerProcessingLatency(latencyMs float64) {
	defaultManager.workerProcessingLatency.Observe(latencyMs)
}
func RecordWorkerError() { defaultManager.workerErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	defaultManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	defaultManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
}

// GetRegistry returns the registry backing the default manager.
func GetRegistry() *prometheus.Registry {
	return defaultRegistry
}
