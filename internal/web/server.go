// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package web provides the HTTP transport for Gatehouse: the form-action
// endpoints (login, register, logout), the protected dashboard, and the
// access-gate middleware that guards it.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// AuthService defines the authentication operations needed by the web
// handlers.
type AuthService interface {
	// Login authenticates a user and issues a session.
	Login(ctx context.Context, email, password, userAgent, ipAddress string) (*auth.Session, string, error)

	// Register creates an account and issues a session for it.
	Register(ctx context.Context, name, email, password, userAgent, ipAddress string) (*auth.User, *auth.Session, string, error)

	// Logout revokes the session identified by the token.
	Logout(ctx context.Context, token string) error

	// SessionUser resolves a token to its session and user.
	SessionUser(ctx context.Context, token string) (*auth.User, *auth.Session, error)
}

// CookieConfig controls the session cookie the server sets.
type CookieConfig struct {
	// Name is the cookie name.
	Name string

	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// Server is the Gatehouse web server.
type Server struct {
	addr        string
	authService AuthService
	cookie      CookieConfig
	engine      *gin.Engine
	listener    net.Listener
	httpServer  *http.Server
	logger      *slog.Logger
	running     atomic.Bool
}

// NewServer creates a web server listening on addr once started.
// Returns an error if any required dependency is missing.
func NewServer(addr string, authService AuthService, cookie CookieConfig, logger *slog.Logger) (*Server, error) {
	if addr == "" {
		return nil, oops.Errorf("listen address is required")
	}
	if authService == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if cookie.Name == "" {
		return nil, oops.Errorf("cookie name is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		addr:        addr,
		authService: authService,
		cookie:      cookie,
		logger:      logger,
	}
	s.engine = s.buildEngine()
	return s, nil
}

// buildEngine wires the routes. Split out so tests can exercise the handler
// tree through httptest without binding a listener.
func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestMetrics())

	engine.GET("/", s.redirectIfAuthenticated("/dashboard"), s.handleLanding)
	engine.GET("/login", s.redirectIfAuthenticated("/dashboard"), s.handleLoginPage)
	engine.GET("/register", s.redirectIfAuthenticated("/dashboard"), s.handleRegisterPage)

	engine.POST("/login", s.handleLogin)
	engine.POST("/register", s.handleRegister)
	engine.POST("/logout", s.handleLogout)

	engine.GET("/dashboard", s.requireSession(), s.handleDashboard)

	return engine
}

// Handler returns the HTTP handler tree, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving HTTP.
// It returns an error channel that will receive any errors from the HTTP
// server after it starts. The channel is closed when the server stops
// gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the web server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}

	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
