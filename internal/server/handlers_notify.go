package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// The notify endpoints return 202 immediately: delivery is best-effort and
// the caller's transaction has already committed.

func (s *Server) handleNotifyOrderCreated(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing id"})
	}
	s.notifier.NotifyOrderCreated(id)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleNotifyOrderLineUpdated(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing id"})
	}
	s.notifier.NotifyOrderLineUpdated(id)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleConnections(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"connections": s.hub.Sessions(),
	})
}
