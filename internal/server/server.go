// Package server exposes the engine's operations over HTTP. It is a
// thin boundary: all risk and workflow semantics live in the engine.
package server

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/internal/engine"
	"github.com/voltex/riskflow/pkg/errors"
)

// Server is the riskflow HTTP API server.
type Server struct {
	engine *engine.Engine
	cfg    config.ServerConfig
	logger *zap.Logger
	router *gin.Engine
	http   *http.Server
}

// New creates the HTTP server and its routes.
func New(eng *engine.Engine, cfg config.ServerConfig, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, "2006-01-02T15:04:05Z07:00", true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.Default())

	s := &Server{
		engine: eng,
		cfg:    cfg,
		logger: logger,
		router: router,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/trades/assess", s.assessTrade)
		v1.POST("/approvals", s.createApproval)
		v1.GET("/approvals", s.listApprovals)
		v1.GET("/approvals/:id", s.getApproval)
		v1.POST("/approvals/:id/decision", s.recordDecision)
		v1.POST("/approvals/:id/execute", s.executeApproval)
		v1.POST("/approvals/:id/cancel", s.cancelApproval)
	}
}

// Router returns the configured gin engine, for tests and embedding.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr()))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// statusFor maps engine error kinds to HTTP status codes.
func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindBlockedAssessment:
		return http.StatusUnprocessableEntity
	case errors.KindInvalidTransition:
		return http.StatusConflict
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindExecutionFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	var engineErr *errors.Error
	if errors.As(err, &engineErr) {
		c.JSON(status, gin.H{"error": engineErr})
		return
	}
	c.JSON(status, gin.H{"error": gin.H{"kind": "Unknown", "message": err.Error()}})
}
