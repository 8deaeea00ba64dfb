// Package server assembles the echo service: operation routes on a gin
// engine, wrapped by the timing, request-ID and bearer-auth layers.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Wang-tianhao/echo-auth-service/internal/api"
	"github.com/Wang-tianhao/echo-auth-service/internal/config"
	"github.com/Wang-tianhao/echo-auth-service/jwtauth"
	"github.com/Wang-tianhao/echo-auth-service/pipeline"
	"github.com/Wang-tianhao/echo-auth-service/requestid"
	"github.com/Wang-tianhao/echo-auth-service/servertiming"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var (
	// ErrStart is returned when the listener fails
	ErrStart = errors.New("server failed to start")

	// ErrShutdown is returned when graceful shutdown does not complete
	ErrShutdown = errors.New("server shutdown failed")
)

// Server is the assembled echo service
type Server struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	signer   *jwtauth.Signer
	verifier *jwtauth.Verifier
	metrics  *metrics
	handler  http.Handler
}

// New builds the service from a validated configuration
func New(cfg *config.AppConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	signer, err := jwtauth.NewSigner(cfg.ServerName, cfg.Auth.PrivateKeyPEM,
		jwtauth.WithTokenDuration(cfg.Auth.TokenDuration),
	)
	if err != nil {
		return nil, err
	}

	var verifierOpts []jwtauth.VerifierOption
	if cfg.Auth.VerifyIssuer {
		verifierOpts = append(verifierOpts, jwtauth.WithIssuerCheck())
	}
	verifier, err := jwtauth.NewVerifier(cfg.ServerName, cfg.Auth.PublicKeyPEM, verifierOpts...)
	if err != nil {
		return nil, err
	}

	authCfg, err := jwtauth.NewConfig(
		jwtauth.WithVerifier(verifier),
		jwtauth.WithBypassPaths(cfg.Auth.BypassPaths...),
		jwtauth.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	m := newMetrics()

	timingOpts := []servertiming.Option{servertiming.WithObserver(m.duration)}
	if cfg.Timing.Description != "" {
		timingOpts = append(timingOpts, servertiming.WithDescription(cfg.Timing.Description))
	}
	timing, err := servertiming.New(cfg.ServerName, timingOpts...)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	api.NewHandlers(signer, logger).Register(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))

	svc := pipeline.Stack(pipeline.FromHandler(engine),
		m.countLayer(),
		timing,
		requestid.Layer(),
		jwtauth.BearerAuth(authCfg),
	)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		signer:   signer,
		verifier: verifier,
		metrics:  m,
		handler:  pipeline.Handler(svc, logger),
	}, nil
}

// Handler returns the fully layered HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Signer returns the token signer used by signin
func (s *Server) Signer() *jwtauth.Signer {
	return s.signer
}

// Verifier returns the token verifier used by the auth layer
func (s *Server) Verifier() *jwtauth.Verifier {
	return s.verifier
}

// Run listens on the configured port until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.logger.Info("listening",
		slog.String("addr", srv.Addr),
		slog.String("server_name", s.cfg.ServerName),
	)

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Join(ErrShutdown, err)
		}
		runErr = <-errCh
	case runErr = <-errCh:
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, runErr)
	}
	s.logger.Info("server stopped")
	return nil
}

// requestLogger logs one line per routed request
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		id, _ := requestid.FromContext(c.Request.Context())
		logger.InfoContext(c.Request.Context(), "request",
			slog.String("request_id", id),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
