package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"reportnotifier/internal/service"
	"reportnotifier/pkg/otel"
)

// Pinger checks the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSource reports the last cycle.
type StatusSource interface {
	Status() service.Status
}

// Broker reports the event publisher connection.
type Broker interface {
	IsConnected() bool
}

type Router struct {
	Engine *gin.Engine
}

// NewRouter builds the health and metrics routes. broker may be nil when
// lifecycle events are disabled.
func NewRouter(logger *zap.Logger, db Pinger, broker Broker, status StatusSource) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), otel.GinMiddleware(), requestLogger(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		if broker != nil && !broker.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, status.Status())
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{Engine: r}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
