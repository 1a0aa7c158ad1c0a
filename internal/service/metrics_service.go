package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a point-in-time view of the counters served at /metrics.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	GradesSaved              uint64    `json:"grades_saved"`
	GradeSaveErrors          uint64    `json:"grade_save_errors"`
	GradesQueued             uint64    `json:"grades_queued"`
	OfflineQueueDepth        int64     `json:"offline_queue_depth"`
	BulkOperations           uint64    `json:"bulk_operations"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService owns the Prometheus registry for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	gradeSaves      *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	bulkOperations  *prometheus.CounterVec
	gradeAPILatency *prometheus.HistogramVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	requestCount         uint64
	requestDurationTotal uint64
	savedCount           uint64
	saveErrorCount       uint64
	queuedCount          uint64
	bulkCount            uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	depth                int64
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	gradeSaves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_saves_total",
		Help: "Grade save attempts by result",
	}, []string{"result"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offline_queue_depth",
		Help: "Grades waiting in the offline queue",
	})

	bulkOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_operations_total",
		Help: "Bulk grading operations applied by kind",
	}, []string{"kind"})

	gradeAPILatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grade_api_request_duration_seconds",
		Help:    "Latency of calls to the grade API",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of offline queue queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, gradeSaves, queueDepth, bulkOperations, gradeAPILatency, cacheLatency, cacheHits, cacheMisses, dbQueryDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		gradeSaves:      gradeSaves,
		queueDepth:      queueDepth,
		bulkOperations:  bulkOperations,
		gradeAPILatency: gradeAPILatency,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordGradeSaves adds n to the save counter for result (success, error, queued, replayed).
func (m *MetricsService) RecordGradeSaves(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.gradeSaves.WithLabelValues(result).Add(float64(n))
	switch result {
	case "success", "replayed":
		atomic.AddUint64(&m.savedCount, uint64(n))
	case "error":
		atomic.AddUint64(&m.saveErrorCount, uint64(n))
	case "queued":
		atomic.AddUint64(&m.queuedCount, uint64(n))
	}
}

// SetOfflineQueueDepth publishes the current queue length.
func (m *MetricsService) SetOfflineQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
	atomic.StoreInt64(&m.depth, int64(depth))
}

// RecordBulkOperation counts one applied bulk operation.
func (m *MetricsService) RecordBulkOperation(kind string) {
	if m == nil {
		return
	}
	m.bulkOperations.WithLabelValues(kind).Inc()
	atomic.AddUint64(&m.bulkCount, 1)
}

// ObserveGradeAPI records the latency of one grade API call.
func (m *MetricsService) ObserveGradeAPI(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gradeAPILatency.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		GradesSaved:              atomic.LoadUint64(&m.savedCount),
		GradeSaveErrors:          atomic.LoadUint64(&m.saveErrorCount),
		GradesQueued:             atomic.LoadUint64(&m.queuedCount),
		OfflineQueueDepth:        atomic.LoadInt64(&m.depth),
		BulkOperations:           atomic.LoadUint64(&m.bulkCount),
		CacheHitRatio:            ratio,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
