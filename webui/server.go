// Package webui is the HTTP and WebSocket surface of the story pipeline.
package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storybook/core"
	"storybook/metrics"
	"storybook/pipeline"
	"storybook/session"
	"storybook/webui/auth"
)

// ServerConfig configures the Server.
type ServerConfig struct {
	Addr              string
	AllowedOrigins    []string
	MaxBodyBytes      int64
	AcquireRatePerMin int
	AcquireBurst      int
	SecureCookies     bool
	// DashboardPassword, when set, requires a login for /api/status and
	// /api/tasks.
	DashboardPassword string
	DashboardAuth     auth.Config

	ReadHeaderTimeout time.Duration
	// WriteTimeout bounds a whole response, including a batch acquisition;
	// zero disables it.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LogSkipPaths []string
	Version      string
	Broadcaster  BroadcasterConfig
}

// DefaultServerConfig returns a ServerConfig with the documented defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              core.DefaultListenAddr,
		AllowedOrigins:    []string{"*"},
		MaxBodyBytes:      core.DefaultMaxBodyMB << 20,
		AcquireRatePerMin: core.DefaultAcquireRatePerMin,
		AcquireBurst:      DefaultAcquireBurst,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		LogSkipPaths:      []string{"/health"},
		Version:           "dev",
		Broadcaster:       DefaultBroadcasterConfig(),
		DashboardAuth:     auth.DefaultConfig(),
	}
}

// ServerConfigFromCore applies the loaded configuration to the defaults.
func ServerConfigFromCore(cfg *core.Config, version string) ServerConfig {
	sc := DefaultServerConfig()
	sc.Addr = cfg.ListenAddr
	sc.AllowedOrigins = cfg.AllowedOrigins
	sc.MaxBodyBytes = cfg.MaxBodyBytes
	sc.AcquireRatePerMin = cfg.AcquireRatePerMin
	sc.DashboardPassword = cfg.DashboardPassword
	sc.Version = version
	return sc
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Pipeline   *pipeline.Pipeline
	Sessions   *session.Store
	Metrics    metrics.Collector
	Model      ModelStatus
	History    HistorySource
	Operations OperationCounter
	Logger     *zap.Logger
}

// Server owns the HTTP server, its routes and the progress broadcaster.
type Server struct {
	httpServer  *http.Server
	mux         *http.ServeMux
	config      ServerConfig
	logger      *zap.Logger
	storyAPI    *StoryAPI
	dashboard   *DashboardAPI
	broadcaster *Broadcaster
	limiter     *RateLimiter
}

// NewServer wires routes and middleware. It does not start listening.
func NewServer(config ServerConfig, deps Deps) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, errors.New("webui: pipeline is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("webui: session store is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	broadcaster := NewBroadcaster(config.Broadcaster, logger)
	limiter := NewRateLimiter(config.AcquireRatePerMin, config.AcquireBurst, deps.Sessions.TTL())

	s := &Server{
		mux:         http.NewServeMux(),
		config:      config,
		logger:      logger,
		broadcaster: broadcaster,
		limiter:     limiter,
		storyAPI:    NewStoryAPI(deps.Pipeline, deps.Sessions, limiter, broadcaster, config.SecureCookies, logger),
		dashboard: NewDashboardAPI(deps.Metrics, DashboardSources{
			Model:        deps.Model,
			History:      deps.History,
			Operations:   deps.Operations,
			SessionCount: deps.Sessions.Count,
			ClientCount:  broadcaster.ClientCount,
		}, DashboardAPIConfig{DefaultLimit: 20, MaxLimit: 100, Version: config.Version}, logger),
	}

	if config.DashboardPassword != "" {
		authConfig := config.DashboardAuth
		authConfig.SecureCookies = config.SecureCookies
		authConfig.ClientIP = getClientIP
		authConfig.WriteError = writeError
		guard, err := auth.NewGuard(config.DashboardPassword, authConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("webui: dashboard password: %w", err)
		}
		s.dashboard.RequireLogin(guard)
	}

	s.dashboard.RegisterRoutes(s.mux)
	s.storyAPI.RegisterRoutes(s.mux)
	s.mux.HandleFunc("/", s.handleNotFound)

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ErrorLog:          zap.NewStdLog(logger.With(zap.String("component", "http"))),
	}

	logger.Info("HTTP server configured",
		zap.String("addr", config.Addr),
		zap.Strings("allowed_origins", config.AllowedOrigins),
		zap.Int("acquire_rate_per_min", config.AcquireRatePerMin),
		zap.Bool("dashboard_login", config.DashboardPassword != ""))
	return s, nil
}

// Handler returns the routed handler with middleware applied, outermost
// first: logging, panic recovery, CORS, body limit.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = MaxBody(s.config.MaxBodyBytes)(h)
	h = CORS(s.config.AllowedOrigins)(h)
	h = Recover(s.logger)(h)
	h = NewLoggingMiddleware(s.logger, s.config.LogSkipPaths...).Handler(h)
	return h
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("webui: listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown. ErrServerClosed is not an error.
// Request contexts are independent of ctx; Shutdown drains them.
func (s *Server) Serve(_ context.Context, ln net.Listener) error {
	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webui: serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded
// by the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("webui: shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Broadcaster returns the WebSocket hub. Run it alongside the server.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
