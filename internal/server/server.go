package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/luminadash/backend/internal/api/http"
	"github.com/luminadash/backend/internal/api/middleware"
	"github.com/luminadash/backend/internal/client"
	"github.com/luminadash/backend/internal/events"
	"github.com/luminadash/backend/internal/infrastructure/config"
	"github.com/luminadash/backend/internal/infrastructure/monitoring"
	"github.com/luminadash/backend/internal/logging"
	"github.com/luminadash/backend/internal/queue"
	"github.com/luminadash/backend/internal/ws"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	queue   *queue.Queue
	client  *client.Client
	hub     *ws.Hub
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	stopGauges chan struct{}
}

// Options carries the domain dependencies the server exposes.
type Options struct {
	Config   *config.Config
	Logger   *logging.Logger
	Registry *queue.Registry

	// Targets configures the outbound client; may be empty.
	Targets []client.TargetConfig
}

// New assembles the queue, outbound client, metrics and routes.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	logger := opts.Logger
	if logger == nil {
		if cfg.Logging.Development {
			logger = logging.NewDevelopment()
		} else {
			logger = logging.NewDefault()
		}
	}

	logger.Info("initializing server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	// Metrics first; the queue and client report into them.
	metrics := monitoring.NewMetrics()
	hub := ws.NewHub()
	sink := events.Multi{
		events.NewZapSink(logger),
		monitoring.NewSink(metrics),
		hub,
	}

	registry := opts.Registry
	if registry == nil {
		registry = queue.NewRegistry()
	}
	q := queue.New(cfg.Queue, registry, logger, sink)

	cl, err := client.New(cfg.Client, logger, sink, opts.Targets...)
	if err != nil {
		return nil, fmt.Errorf("configure outbound client: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	handlers := apihttp.NewHandlers(q, cl, metrics, logger)
	wsHandler := ws.NewHandler(hub, logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Job management
	router.POST("/jobs", handlers.SubmitJob)
	router.GET("/jobs/kinds", handlers.ListKinds)
	router.GET("/jobs/:id", handlers.GetJob)
	router.GET("/jobs/:id/wait", handlers.WaitJob)
	router.DELETE("/jobs/:id", handlers.DeleteJob)

	// Batch operations
	router.POST("/jobs/batch", handlers.CreateBatch)
	router.POST("/jobs/batch/status", handlers.BatchStatus)
	router.DELETE("/jobs/cleanup", handlers.CleanupJobs)

	// WebSocket job event stream
	router.GET("/ws/jobs", wsHandler.HandleConnection)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		router:     router,
		queue:      q,
		client:     cl,
		hub:        hub,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
		stopGauges: make(chan struct{}),
	}, nil
}

// Queue exposes the job queue for work-kind registration and tests.
func (s *Server) Queue() *queue.Queue {
	return s.queue
}

// Client exposes the outbound dependency client.
func (s *Server) Client() *client.Client {
	return s.client
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the worker pool and serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	if err := s.queue.Start(); err != nil {
		return fmt.Errorf("start queue: %w", err)
	}
	go s.updateQueueGauges()

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting HTTP server", zap.String("addr", addr))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// updateQueueGauges keeps the per-status job gauges current.
func (s *Server) updateQueueGauges() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for status, count := range s.queue.Stats() {
				s.metrics.SetJobsByStatus(string(status), count)
			}
		case <-s.stopGauges:
			return
		}
	}
}

// Shutdown stops accepting requests, drains the worker pool, and syncs logs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	close(s.stopGauges)

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown failed", zap.Error(err))
		}
	}
	if err := s.queue.Stop(ctx); err != nil {
		s.logger.Error("queue shutdown failed", zap.Error(err))
		return err
	}

	s.logger.Sync()
	return nil
}
