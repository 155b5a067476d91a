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
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	LevelAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "code4kids_level_attempts_total",
			Help: "Level attempts recorded, by level and outcome",
		},
		[]string{"level", "success"},
	)

	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "code4kids_achievements_unlocked_total",
			Help: "Achievements awarded, by id",
		},
		[]string{"achievement"},
	)

	ProgressMigrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "code4kids_progress_migrations_total",
			Help: "Legacy progress documents patched, by migration kind",
		},
		[]string{"kind"},
	)

	VersionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "code4kids_docstore_version_conflicts_total",
			Help: "Conditional progress writes rejected because the document changed",
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			LevelAttempts,
			AchievementsUnlocked,
			ProgressMigrations,
			VersionConflicts,
		)
	})
}

func RecordAttempt(levelID int, success bool) {
	LevelAttempts.WithLabelValues(strconv.Itoa(levelID), strconv.FormatBool(success)).Inc()
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
