// Package http provides the HTTP adapter for the override authorization
// service. It translates requests into decider and engine calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
	"github.com/retailcore/pos-approval/internal/policy"
	"github.com/retailcore/pos-approval/internal/report"
	"github.com/retailcore/pos-approval/internal/repository"
	"github.com/retailcore/pos-approval/internal/store"
	"github.com/retailcore/pos-approval/pkg/metrics"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// NewServer creates the HTTP server and wires all routes
func NewServer(
	config ServerConfig,
	decider *policy.Decider,
	engine *approval.Engine,
	configStore *store.Store,
	audit *repository.AuditRepository,
	exporter *report.Exporter,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery())
	router.Use(server.loggingMiddleware())

	handlers := NewHandlers(decider, engine, configStore, audit, exporter, collector, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/attempts/evaluate", handlers.EvaluateAttempt)

		api.POST("/requests", handlers.CreateRequest)
		api.GET("/requests/:id", handlers.GetRequest)
		api.GET("/requests/:id/events", handlers.ListRequestEvents)
		api.POST("/requests/:id/approve", handlers.ApproveRequest)
		api.POST("/requests/:id/deny", handlers.DenyRequest)
		api.POST("/requests/:id/cancel", handlers.CancelRequest)

		admin := api.Group("/admin")
		{
			admin.GET("/tiers", handlers.ListTiers)
			admin.PUT("/tiers", handlers.ReplaceTiers)
			admin.GET("/rules", handlers.ListRules)
			admin.POST("/rules", handlers.SaveRule)
			admin.PUT("/rules/:id", handlers.SaveRule)
			admin.DELETE("/rules/:id", handlers.DeleteRule)
			admin.GET("/reports/overrides", handlers.ExportOverrides)
		}
	}

	return server
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// Start runs the server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
