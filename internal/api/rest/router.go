package rest

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/smokewatch/internal/domain/telemetry"
	"github.com/oshokin/smokewatch/internal/metrics"
)

// Service abstracts the ingestion and query operations the transport depends on.
type Service interface {
	Ingest(ctx context.Context, payload map[string]any, source telemetry.Source) telemetry.DeviceRecord
	RejectPayload(ctx context.Context, source telemetry.Source, err error)
	ListDevices(ctx context.Context) []telemetry.DeviceRecord
	GetDevice(ctx context.Context, deviceID string) (telemetry.DeviceRecord, bool)
	LatestDevice(ctx context.Context) telemetry.DeviceRecord
	ListAlarms(ctx context.Context) []telemetry.AlarmEvent
	ListAlarmsFor(ctx context.Context, deviceID string) []telemetry.AlarmEvent
}

// HealthCheck reports the state of one dependency; nil means healthy.
type HealthCheck func() error

// routerConfig collects optional router collaborators.
type routerConfig struct {
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	stream   http.Handler
	checks   map[string]HealthCheck
}

// Option configures the router.
type Option func(*routerConfig)

// WithMetrics records HTTP metrics into m and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(c *routerConfig) {
		c.metrics = m
		c.gatherer = gatherer
	}
}

// WithStream serves the live WebSocket stream on /ws.
func WithStream(stream http.Handler) Option {
	return func(c *routerConfig) {
		c.stream = stream
	}
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(c *routerConfig) {
		if check != nil {
			c.checks[name] = check
		}
	}
}

// NewRouter wires the HTTP routes. Request logs go through the logger in ctx.
func NewRouter(ctx context.Context, svc Service, opts ...Option) *gin.Engine {
	cfg := &routerConfig{
		checks: make(map[string]HealthCheck),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestContext(ctx))
	r.Use(accessLog(cfg.metrics))
	r.Use(cors.Default())

	h := &handlers{
		service: svc,
		checks:  cfg.checks,
	}

	api := r.Group("/api")
	api.POST("/data", h.ingest)
	api.POST("/telemetry", h.ingest)
	api.GET("/latest", h.latest)
	api.GET("/devices", h.listDevices)
	api.GET("/devices/:id", h.getDevice)
	api.GET("/devices/:id/alarms", h.deviceAlarms)
	api.GET("/alarms", h.listAlarms)

	r.GET("/health", h.health)

	if cfg.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{})))
	}

	if cfg.stream != nil {
		r.GET("/ws", gin.WrapH(cfg.stream))
	}

	return r
}
