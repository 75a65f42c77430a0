package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentshell/internal/api/middleware"
	handlers "github.com/GriffinCanCode/agentshell/internal/http"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal"
	"github.com/GriffinCanCode/agentshell/internal/service"
)

const shutdownTimeout = 5 * time.Second

// Options holds the server dependencies
type Options struct {
	Addr        string
	Development bool
	// CORSOrigins enables CORS for the listed origins; empty disables it
	CORSOrigins []string
	RateLimit   middleware.RateLimitConfig
	Manager     *terminal.Manager
	Registry    *service.Registry
	Gatherer    prometheus.Gatherer
	Metrics     *monitoring.Metrics
	Logger      *logging.Logger
}

// Server is the debug HTTP server exposing metrics and session state
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *logging.Logger
}

// NewServer builds the router. Nothing listens until Run.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(opts.Metrics))
	if len(opts.CORSOrigins) > 0 {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig(opts.CORSOrigins)))
	}

	h := handlers.NewHandlers(opts.Manager, opts.Registry, opts.Metrics)

	router.GET("/healthz", h.Health)
	router.GET("/sessions", h.ListSessions)
	router.GET("/background", h.ListBackground)
	router.GET("/background/:id", h.GetBackground)
	router.GET("/services", h.ListServices)
	router.POST("/services/execute", middleware.RateLimit(opts.RateLimit), h.ExecuteService)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: opts.Logger,
	}
}

// Handler returns the router for in-process use
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens until Shutdown. It returns nil after a graceful stop.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting debug server", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down debug server")

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
