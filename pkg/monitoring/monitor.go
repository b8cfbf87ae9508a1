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
)

// 学习业务指标
var (
	EnrollmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elearning_enrollments_total",
			Help: "Number of course enrollments created",
		},
	)

	AttemptsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elearning_quiz_attempts_finalized_total",
			Help: "Number of quiz attempts finalized, by outcome",
		},
		[]string{"outcome"},
	)

	CoursesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elearning_courses_completed_total",
			Help: "Number of enrollments that reached 100% progress",
		},
	)

	ProgressRecomputeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elearning_progress_recompute_failures_total",
			Help: "Best-effort progress recomputations that failed",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(EnrollmentsTotal)
		prometheus.MustRegister(AttemptsFinalized)
		prometheus.MustRegister(CoursesCompleted)
		prometheus.MustRegister(ProgressRecomputeFailures)
	})
}

// ObserveAttempt 记录一次测验结果
func ObserveAttempt(passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	AttemptsFinalized.WithLabelValues(outcome).Inc()
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
