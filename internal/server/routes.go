package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Real-time endpoint: auth happens in-band on the first frame
	s.echo.GET("/ws", s.handleWebSocket)

	// Mutation hooks, called by the web API layer after a successful commit.
	// Exposed on an internal path; the deployment keeps it off the public
	// listener.
	s.echo.POST("/internal/notify/pedido-creado/:id", s.handleNotifyOrderCreated)
	s.echo.POST("/internal/notify/orden-actualizada/:id", s.handleNotifyOrderLineUpdated)
	s.echo.GET("/internal/connections", s.handleConnections)
}
