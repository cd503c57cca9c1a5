package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 文本生成调用，按模型与结果统计
	GenerationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_generation_requests_total",
			Help: "Total number of text generation calls",
		},
		[]string{"model", "mode", "outcome"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_generation_duration_seconds",
			Help:    "Duration of text generation calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "mode"},
	)

	// 使用兜底回复的次数
	FallbackCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_fallback_replies_total",
			Help: "Replies persisted from the canned fallback table",
		},
		[]string{"mode"},
	)

	StreamChunkCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tutor_stream_chunks_total",
			Help: "Chunks relayed to streaming clients",
		},
	)

	XPAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_xp_awarded_total",
			Help: "Experience points awarded",
		},
		[]string{"subject"},
	)

	LevelUpCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_level_ups_total",
			Help: "Level increases",
		},
		[]string{"subject"},
	)

	ModuleCompletedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_modules_completed_total",
			Help: "Learning path modules completed",
		},
		[]string{"path"},
	)

	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tutor_active_streams",
			Help: "Streaming replies currently in flight",
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(GenerationCounter)
		prometheus.MustRegister(GenerationDuration)
		prometheus.MustRegister(FallbackCounter)
		prometheus.MustRegister(StreamChunkCounter)
		prometheus.MustRegister(XPAwarded)
		prometheus.MustRegister(LevelUpCounter)
		prometheus.MustRegister(ModuleCompletedCounter)
		prometheus.MustRegister(ActiveStreams)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
