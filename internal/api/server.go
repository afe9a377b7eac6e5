// Package api exposes the read-only status HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dawnkeeper/dawnkeeper/internal/config"
	"github.com/dawnkeeper/dawnkeeper/internal/errors"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/metrics"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
	"github.com/dawnkeeper/dawnkeeper/internal/registry"
)

// Server represents the HTTP status server
type Server struct {
	router     *gin.Engine
	config     config.ServerConfig
	registry   *registry.Registry
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server
	startedAt  time.Time
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new status server
func NewServer(cfg config.ServerConfig, reg *registry.Registry, m *metrics.Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		router:    gin.New(),
		config:    cfg,
		registry:  reg,
		metrics:   m,
		logger:    logger,
		startedAt: time.Now(),
	}
	server.router.HandleMethodNotAllowed = true
	server.router.Use(gin.Recovery())
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/accounts", s.handleAccounts)
		v1.GET("/accounts/:username", s.handleAccount)
	}
}

// accountDTO is the wire shape of one account. Tokens and passwords
// never leave the process.
type accountDTO struct {
	Username      string                `json:"username"`
	Status        models.AccountStatus  `json:"status"`
	UserID        string                `json:"user_id,omitempty"`
	LoginAttempts int                   `json:"login_attempts"`
	LoginTime     *time.Time            `json:"login_time,omitempty"`
	TokenExpiry   *time.Time            `json:"token_expiry,omitempty"`
	LastKeepAlive *time.Time            `json:"last_keepalive,omitempty"`
	KeepAlives    models.KeepAliveStats `json:"keepalives"`
	Points        models.PointsSnapshot `json:"points"`
	UptimeSeconds float64               `json:"uptime_seconds"`
}

func toDTO(acc models.Account, now time.Time) accountDTO {
	dto := accountDTO{
		Username:      acc.Username,
		Status:        acc.Status,
		UserID:        acc.UserID,
		LoginAttempts: acc.LoginAttempts,
		KeepAlives:    acc.Stats,
		Points:        acc.Points,
		UptimeSeconds: acc.Uptime(now).Seconds(),
	}
	if !acc.LoginTime.IsZero() {
		t := acc.LoginTime
		dto.LoginTime = &t
	}
	if !acc.TokenExpiry.IsZero() {
		t := acc.TokenExpiry
		dto.TokenExpiry = &t
	}
	if !acc.LastKeepAlive.IsZero() {
		t := acc.LastKeepAlive
		dto.LastKeepAlive = &t
	}
	return dto
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"accounts":       s.registry.Len(),
	})
}

func (s *Server) handleAccounts(c *gin.Context) {
	now := time.Now()
	accounts := s.registry.All()

	out := make([]accountDTO, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, toDTO(acc, now))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (s *Server) handleAccount(c *gin.Context) {
	username := c.Param("username")
	acc, ok := s.registry.Lookup(username)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, toDTO(acc, time.Now()))
}

// Start begins serving in a background goroutine. The returned error
// only covers listener setup; serve failures are logged.
func (s *Server) Start() error {
	s.httpServer = NewHTTPServer(s.config.Addr(), s.router)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			s.logger.Error("status server failed", "error", err.Error())
		}
	}()

	// Give the listener a moment to fail fast on bind errors.
	select {
	case err := <-errCh:
		return &errors.ErrServerStart{Addr: s.config.Addr(), Err: err}
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	return GracefulShutdown(s.httpServer, s.config.ShutdownTimeout)
}
