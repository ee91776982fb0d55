// Package api exposes the curation engine over HTTP with gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/middleware"
	"github.com/phetools-curation-server/internal/service"
)

// Version is reported by /health.
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	cfg       domain.ServerConfig
	curation  *service.CurationService
	hierarchy domain.Hierarchy
	metrics   *Metrics
	logger    *logrus.Logger
	router    *gin.Engine
	server    *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg domain.ServerConfig, h domain.Hierarchy, curation *service.CurationService, logger *logrus.Logger) *Server {
	if logger.GetLevel() >= logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RequestTimeout(cfg.WriteTimeout))

	server := &Server{
		cfg:       cfg,
		curation:  curation,
		hierarchy: h,
		metrics:   NewMetrics(),
		logger:    logger,
		router:    router,
	}
	if cfg.EnableMetrics {
		router.Use(server.metrics.Middleware())
	}

	server.setupRoutes()
	return server
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.cfg.EnableMetrics {
		s.router.GET("/metrics", s.metrics.Handler())
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/cells/parse", s.handleParseCell)
		v1.POST("/terms/arrange", s.handleArrange)
		v1.POST("/templates", s.handleCreateTemplate)
		v1.POST("/templates/validate", s.handleValidateTemplate)
		v1.POST("/cohorts/sanitize", s.handleSanitize)
		v1.POST("/cohorts/merge", s.handleMerge)
		v1.POST("/cohorts/qc", s.handleQC)

		v1.GET("/cohorts", s.handleListCohorts)
		v1.POST("/cohorts", s.handleSaveCohort)
		v1.GET("/cohorts/:id", s.handleGetCohort)
		v1.GET("/cohorts/:id/table", s.handleExportTable)
		v1.DELETE("/cohorts/:id", s.handleDeleteCohort)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	}
	if v, ok := s.hierarchy.(interface{ Version() string }); ok {
		body["hpo_version"] = v.Version()
	}
	c.JSON(http.StatusOK, body)
}

// abort writes err in the MCPError envelope with a status derived from its
// code.
func (s *Server) abort(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := statusFor(code)
	resp := domain.NewMCPError(code, err.Error(), "", c.GetString(middleware.CorrelationIDKey))

	var mcpErr *domain.MCPError
	if errors.As(err, &mcpErr) {
		resp.Message = mcpErr.Message
		resp.Details = mcpErr.Details
	}
	var errs *domain.ValidationErrors
	if errors.As(err, &errs) {
		c.AbortWithStatusJSON(status, gin.H{"error": resp, "errors": errs.Messages()})
		return
	}
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("code", code).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": resp})
}

func statusFor(code string) int {
	switch code {
	case domain.ErrInvalidInput, domain.ErrValidation, domain.ErrTermLookup:
		return http.StatusBadRequest
	case domain.ErrStructural:
		return http.StatusUnprocessableEntity
	case domain.ErrNotFoundCode:
		return http.StatusNotFound
	case domain.ErrExternalAPI:
		return http.StatusBadGateway
	case domain.ErrDatabaseError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
