// Package api serves health, scheduler status, and Prometheus metrics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/fincrawl/internal/logger"
	"github.com/jonesrussell/fincrawl/internal/orchestrator"
	"github.com/jonesrussell/fincrawl/internal/scheduler"
)

const (
	serviceName      = "fincrawl"
	statusTimeout    = 5 * time.Second
	readHeaderTimout = 10 * time.Second
)

// Scheduler is what the server exposes.
type Scheduler interface {
	Status(ctx context.Context) scheduler.Status
	RunOnce(ctx context.Context) (*orchestrator.Batch, error)
	Running() bool
}

// Config configures the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
	Version      string
}

// Server is the status HTTP server.
type Server struct {
	router *gin.Engine
	server *http.Server
	sched  Scheduler
	log    logger.Logger
	start  time.Time
	cfg    Config
}

// NewServer builds the router. gatherer backs /metrics; nil uses the default registry.
func NewServer(cfg Config, sched Scheduler, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router: gin.New(),
		sched:  sched,
		log:    log,
		start:  time.Now(),
		cfg:    cfg,
	}
	s.router.Use(recoveryMiddleware(log), loggerMiddleware(log))

	s.router.GET("/health", s.health)
	s.router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	s.router.GET("/status", s.status)
	s.router.POST("/run", s.run)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", logger.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields at most one error.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown stops accepting requests and drains open ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": s.cfg.Version,
		"uptime":  time.Since(s.start).Round(time.Second).String(),
	})
}

func (s *Server) status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
	defer cancel()
	c.JSON(http.StatusOK, s.sched.Status(ctx))
}

// run starts a crawl in the background. The run outlives the request.
func (s *Server) run(c *gin.Context) {
	if s.sched.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "a crawl run is already in progress"})
		return
	}

	go func() {
		if _, err := s.sched.RunOnce(context.Background()); err != nil {
			s.log.Error("Manual crawl run failed", logger.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
