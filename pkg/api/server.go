// Package api serves the photo search HTTP interface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roverlens/marsphotos/pkg/retrieval"
)

const DefaultShutdownTimeout = 10 * time.Second

// Retriever answers photo searches. *retrieval.Retriever implements it.
type Retriever interface {
	Retrieve(ctx context.Context, raw retrieval.RawQuery) (retrieval.Result, error)
}

// Config holds the listener settings.
type Config struct {
	Port            int
	FrontendURL     string
	ShutdownTimeout time.Duration
}

// Address returns the listen address.
func (c Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Server wires the echo instance to a Retriever.
type Server struct {
	echo      *echo.Echo
	config    Config
	retriever Retriever
	logger    *zap.Logger
	reporter  retrieval.Reporter
	gatherer  prometheus.Gatherer
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithReporter sends 5xx failures to r.
func WithReporter(r retrieval.Reporter) ServerOption {
	return func(s *Server) { s.reporter = r }
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

// New builds the server and registers its middleware and routes.
func New(cfg Config, r Retriever, opts ...ServerOption) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	s := &Server{
		echo:      echo.New(),
		config:    cfg,
		retriever: r,
		logger:    zap.NewNop(),
		reporter:  nopReporter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.String("ip", v.RemoteIP),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			s.logger.Info("request", fields...)
			return nil
		},
	}))
	if s.config.FrontendURL != "" {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{s.config.FrontendURL},
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{echo.HeaderContentType},
		}))
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/", s.root)
	s.echo.GET("/healthz", s.healthCheck)
	s.echo.GET("/api/photos/search", s.searchPhotos)
	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting http server", zap.String("address", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured budget.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	return nil
}

type nopReporter struct{}

func (nopReporter) CaptureError(error, string) {}
