package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/sessiongate/internal/api/http"
	"github.com/GriffinCanCode/sessiongate/internal/api/middleware"
	"github.com/GriffinCanCode/sessiongate/internal/automation"
	"github.com/GriffinCanCode/sessiongate/internal/automation/bridge"
	"github.com/GriffinCanCode/sessiongate/internal/domain/session"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/config"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/sessiongate/internal/storage/profiles"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	sessions *session.Manager
	profiles *profiles.Store
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// Option customises NewServer
type Option func(*options)

type options struct {
	driver automation.Driver
	ping   func(ctx context.Context) error
	logger *logging.Logger
}

// WithDriver replaces the bridge driver. ping, when set, backs the
// readiness probe.
func WithDriver(driver automation.Driver, ping func(ctx context.Context) error) Option {
	return func(o *options) {
		o.driver = driver
		o.ping = ping
	}
}

// WithLogger replaces the logger built from the configuration
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing session gateway",
		zap.String("port", cfg.Server.Port),
		zap.String("bridge", cfg.Automation.BridgeURL),
		zap.String("profiles", cfg.Profiles.Dir),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("sessiongate", logger.Logger)

	driver, ping := o.driver, o.ping
	if driver == nil {
		bcfg := bridge.DefaultConfig()
		bcfg.BaseURL = cfg.Automation.BridgeURL
		bcfg.RequestTimeout = cfg.Automation.RequestTimeout
		bcfg.QueryRetries = cfg.Automation.QueryRetries
		bcfg.HandshakeTimeout = cfg.Automation.HandshakeTimeout
		bcfg.BreakerFailures = cfg.Breaker.MaxFailures
		bcfg.BreakerTimeout = cfg.Breaker.Timeout

		d, err := bridge.New(bcfg, logger.Logger, metrics)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to create bridge driver: %w", err)
		}
		driver, ping = d, d.Ping
	}

	store, err := profiles.NewStore(cfg.Profiles.Dir, logger.Logger)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	if existing, err := store.List(); err == nil && len(existing) > 0 {
		logger.Info("Found persisted profiles", zap.Strings("sessions", existing))
	}

	scfg := session.DefaultConfig()
	scfg.Workers = cfg.Workers.Handshakes
	scfg.Launch = automation.LaunchOptions{
		Headless:    cfg.Automation.Headless,
		BrowserArgs: cfg.Automation.BrowserArgs,
	}
	sessions, err := session.NewManager(driver, store, logger.Logger, scfg)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}
	sessions.WithMetrics(metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Probes share the metrics registry
	health := healthcheck.NewMetricsHandler(metrics.Registry(), "sessiongate")
	health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(cfg.Health.MaxGoroutines))
	if ping != nil {
		timeout := cfg.Health.BridgeTimeout
		health.AddReadinessCheck("bridge", healthcheck.Timeout(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return ping(ctx)
		}, timeout))
	}

	router.GET("/live", gin.WrapF(health.LiveEndpoint))
	router.GET("/ready", gin.WrapF(health.ReadyEndpoint))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/log/level", gin.WrapH(logger.LevelHandler()))
	router.PUT("/log/level", gin.WrapH(logger.LevelHandler()))

	apihttp.NewHandlers(sessions, logger.Logger).
		WithMetrics(metrics).
		WithProfiles(store).
		Routes(router)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		sessions: sessions,
		profiles: store,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops. A server stopped by
// Close returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close gracefully shuts down the server: in-flight requests drain, then
// every session client is closed. Persisted profiles are kept.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to stop HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}

	if err := s.sessions.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to stop session manager", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to stop session manager: %w", err))
	}
	s.logger.Info("Closed all sessions")

	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
