package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// surface 把路由分成三类：web API、docker 客户端入口、运维端点。
// docker 那边走 blob 上传，延迟分布和 /api 完全不是一回事，分开看。
var (
	reqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "registry_console",
			Name:      "http_requests_total",
			Help:      "Requests handled, by surface/route/status",
		},
		[]string{"surface", "path", "method", "status"},
	)
	reqLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "registry_console",
			Name:      "http_request_duration_seconds",
			Help:      "Request latency, by surface/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"surface", "path", "method"},
	)
)

func init() { prometheus.MustRegister(reqTotal, reqLatency) }

func surfaceOf(path string) string {
	switch {
	case strings.HasPrefix(path, "/api"):
		return "api"
	case strings.HasPrefix(path, "/v2") || path == "/token":
		return "docker"
	default:
		return "ops" // /health /metrics
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		sf := surfaceOf(path)
		reqTotal.WithLabelValues(sf, path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		reqLatency.WithLabelValues(sf, path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
