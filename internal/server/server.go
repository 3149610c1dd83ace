package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/haskel/agupredict/internal/config"
	"github.com/haskel/agupredict/internal/forecast"
	"github.com/haskel/agupredict/internal/invoker"
	"github.com/haskel/agupredict/internal/metrics"
	"github.com/haskel/agupredict/internal/server/middleware"
	"github.com/haskel/agupredict/internal/stats"
)

// Forecaster runs the training and prediction scripts.
type Forecaster interface {
	Train(ctx context.Context, agu string, in forecast.TrainInput) (*invoker.Result, error)
	Predict(ctx context.Context, agu string, in forecast.PredictInput) (*invoker.Result, error)
}

type Server struct {
	httpServer  *http.Server
	forecaster  Forecaster
	tracker     *stats.Tracker
	metrics     *metrics.Metrics
	config      *config.Config
	logger      *slog.Logger
	version     string
	authConfig  *middleware.AuthConfig
	rateLimiter *middleware.RateLimiter
}

// New builds the HTTP server. tracker and m may be nil; the stats and
// metrics endpoints are then served empty or not at all.
func New(cfg *config.Config, f Forecaster, tracker *stats.Tracker, m *metrics.Metrics, logger *slog.Logger, version string) *Server {
	authConfig := &middleware.AuthConfig{
		Enabled:  cfg.Auth.Enabled,
		User:     cfg.Auth.User,
		Password: cfg.Auth.Password,
	}

	s := &Server{
		forecaster: f,
		tracker:    tracker,
		metrics:    m,
		config:     cfg,
		logger:     logger,
		version:    version,
		authConfig: authConfig,
		rateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			Enabled:           cfg.Server.RateLimit.Enabled,
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		}),
	}

	mux := s.setupRoutes()

	var obs middleware.RequestObserver
	if m != nil {
		obs = m
	}

	handler := middleware.Chain(
		mux,
		middleware.Recovery(logger),
		middleware.Metrics(obs),
		middleware.Logging(logger),
		middleware.SecurityHeaders(),
		s.rateLimiter.Middleware(),
		middleware.Auth(authConfig, "/health", "/ready", cfg.Metrics.Path),
		middleware.MaxBody(cfg.Server.MaxBodyBytes),
	)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// ReloadConfig applies the settings that can change without a restart.
// Only credentials qualify: listener, scripts and limits are fixed at
// startup.
func (s *Server) ReloadConfig(cfg *config.Config) {
	s.authConfig.Update(cfg.Auth.Enabled, cfg.Auth.User, cfg.Auth.Password)

	s.logger.Info("configuration reloaded",
		"auth_enabled", cfg.Auth.Enabled,
	)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("server starting",
		"addr", s.httpServer.Addr,
		"scripts_dir", s.config.Scripts.Dir,
		"interpreter", s.config.Scripts.Interpreter,
	)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown waits for in-flight requests, and so for their scripts, until
// ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	defer s.rateLimiter.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
