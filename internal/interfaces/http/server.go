// Package http exposes the gin ingress and status surface: message
// injection for non-Telegram sources, conversation search, health and
// status probes, and the websocket delivery stream.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chatwork/chatwork/gateway/internal/infrastructure/config"
	"github.com/chatwork/chatwork/gateway/internal/infrastructure/monitoring"
	"github.com/chatwork/chatwork/gateway/internal/interfaces/http/handlers"
	"github.com/chatwork/chatwork/gateway/internal/interfaces/websocket"
)

// Server wraps the gin HTTP server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

func NewServer(
	cfg config.HTTPConfig,
	messages *handlers.MessageHandler,
	status *handlers.StatusHandler,
	hub *websocket.Hub,
	monitor *monitoring.Monitor,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	router.GET("/healthz", status.Health)
	router.GET("/metrics", gin.WrapH(monitor.PrometheusHandler()))

	api := router.Group("/api/v1")
	{
		api.POST("/messages", messages.Ingest)
		api.GET("/search", messages.Search)
		api.GET("/status", status.Status)
		api.GET("/workspaces/:name", status.Workspace)
	}
	router.GET("/ws/deliveries", gin.WrapF(hub.ServeWS))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start listens in a background goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
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
