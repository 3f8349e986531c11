// Package server wires the HTTP surface: the WebSocket endpoint, the
// internal notification hooks, and observability routes.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/starts-with-effort/dandd-realtime/internal/config"
	"github.com/starts-with-effort/dandd-realtime/internal/domain"
	"github.com/starts-with-effort/dandd-realtime/internal/hub"
	"github.com/starts-with-effort/dandd-realtime/internal/redis"
)

// postgresHealthChecker is a minimal interface for PostgreSQL health checks
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

// redisHealthChecker is a minimal interface for Redis health checks
type redisHealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	hub       *hub.Hub
	notifier  domain.Notifier
	validator domain.CredentialValidator
	startTime time.Time

	postgresHealthCheck postgresHealthChecker
	redisHealthCheck    redisHealthChecker
}

// NewServer builds the echo server. redisClient may be nil when the
// cross-instance relay is disabled.
func NewServer(cfg *config.Config, connections *hub.Hub, notifier domain.Notifier, validator domain.CredentialValidator, pool *pgxpool.Pool, redisClient *redis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		hub:       connections,
		notifier:  notifier,
		validator: validator,
		startTime: time.Now(),
	}
	if pool != nil {
		srv.postgresHealthCheck = pool
	}
	if redisClient != nil {
		srv.redisHealthCheck = redisClient
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
