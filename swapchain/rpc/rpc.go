// Package rpc serves the ledger over ConnectRPC.
package rpc

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/config"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/ledger"
	"github.com/Cogwheel-Validator/spectra-swapchain/swapchain/rpc/v1connect"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "rpc").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// ServerConfig holds configuration for the RPC server
type ServerConfig struct {
	Address               string
	AllowedOrigins        []string
	EnableMetrics         bool
	RatePerMinute         int
	MaxConcurrentRequests int
	RequestTimeout        time.Duration
	OTelConfig            *OTelConfig
}

// DefaultServerConfig returns a default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:               "localhost:8080",
		AllowedOrigins:        []string{"http://localhost:3000", "http://localhost:8080"},
		EnableMetrics:         true,
		MaxConcurrentRequests: 200,
		RequestTimeout:        30 * time.Second,
	}
}

// ServerConfigFromNode builds the server configuration of swapchaind.
func ServerConfigFromNode(c *config.NodeConfig) *ServerConfig {
	return &ServerConfig{
		Address:               fmt.Sprintf("%s:%d", c.Host, c.Port),
		AllowedOrigins:        c.AllowedOrigins,
		EnableMetrics:         true,
		RatePerMinute:         c.RatePerMinute,
		MaxConcurrentRequests: c.MaxConcurrentRequests,
		RequestTimeout:        time.Duration(c.RequestTimeoutSeconds) * time.Second,
		OTelConfig:            OTelConfigFromNode(c),
	}
}

// Server wraps the HTTP server and provides lifecycle management
type Server struct {
	config       *ServerConfig
	httpServer   *http.Server
	otelShutdown func(context.Context) error
}

// NewServer creates an RPC server for rt. The server reports ready once the
// router program is registered at routerID.
func NewServer(ctx context.Context, cfg *ServerConfig, rt *ledger.Runtime, routerID solana.PublicKey) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}

	var otelShutdown func(context.Context) error
	if cfg.OTelConfig.enabled() {
		shutdown, err := NewOTelSDK(ctx, cfg.OTelConfig)
		if err != nil {
			// keep serving without telemetry
			Logger.Error().Err(err).Msg("Failed to initialize OpenTelemetry")
		} else {
			otelShutdown = shutdown
		}
	}

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(zerologMiddleware)
	mux.Use(zerologRecoverer)
	mux.Use(middleware.RealIP)
	mux.Use(forwardedIPMiddleware)
	mux.Use(middleware.Compress(5))
	if cfg.RequestTimeout > 0 {
		mux.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RatePerMinute, time.Minute))
	}
	if cfg.MaxConcurrentRequests > 0 {
		mux.Use(middleware.Throttle(cfg.MaxConcurrentRequests))
	}

	if cfg.EnableMetrics {
		mux.Handle("/server/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/server/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, `{"status":"healthy","service":"swapchaind"}`)
	})
	mux.HandleFunc("/server/ready", func(w http.ResponseWriter, r *http.Request) {
		for _, p := range rt.Programs() {
			if p.ID.Equals(routerID) {
				writeStatus(w, http.StatusOK, `{"status":"ready"}`)
				return
			}
		}
		writeStatus(w, http.StatusServiceUnavailable, `{"status":"router program not registered"}`)
	})

	connectOpts := []connect.HandlerOption{
		connect.WithRecover(recoverHandler),
		connect.WithInterceptors(
			loggingInterceptor(),
			noCacheInterceptor(),
		),
	}
	if cfg.OTelConfig != nil && cfg.OTelConfig.EnableTracing {
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			Logger.Warn().Err(err).Msg("Failed to create OTEL interceptor, continuing without it")
		} else {
			connectOpts = append(connectOpts, connect.WithInterceptors(otelInterceptor))
		}
	}

	path, handler := v1connect.NewLedgerServiceHandler(NewLedgerServer(rt, routerID), connectOpts...)
	mux.Handle(path+"*", handler)

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           h2c.NewHandler(newCORSHandler(cfg.AllowedOrigins, mux), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		config:       cfg,
		httpServer:   httpServer,
		otelShutdown: otelShutdown,
	}, nil
}

func writeStatus(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving RPC requests without TLS
func (s *Server) Start() error {
	s.logServerInfo("http")
	return s.httpServer.ListenAndServe()
}

// StartTLS begins serving RPC requests with TLS
func (s *Server) StartTLS(certFile, keyFile string) error {
	s.logServerInfo("https")
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) logServerInfo(protocol string) {
	Logger.Info().
		Str("address", s.config.Address).
		Str("protocol", protocol).
		Msg("Swapchain RPC server starting")

	Logger.Info().Msg("Available endpoints:")
	Logger.Info().Msgf("\tRPC: /%s/*", v1connect.LedgerServiceName)
	Logger.Info().Msg("\tHealth: /server/health")
	Logger.Info().Msg("\tReady: /server/ready")
	if s.config.EnableMetrics {
		Logger.Info().Msg("\tMetrics: /server/metrics")
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	Logger.Info().Msg("Shutting down RPC server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		Logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	// flush pending telemetry after the last request
	if s.otelShutdown != nil {
		if err := s.otelShutdown(ctx); err != nil {
			Logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
			return err
		}
	}

	Logger.Info().Msg("Server shutdown complete")
	return nil
}

// recoverHandler handles panics in RPC handlers
func recoverHandler(ctx context.Context, spec connect.Spec, header http.Header, p any) error {
	Logger.Error().
		Interface("panic", p).
		Str("procedure", spec.Procedure).
		Msg("Panic in RPC handler")
	return connect.NewError(connect.CodeInternal, fmt.Errorf("internal server error"))
}
