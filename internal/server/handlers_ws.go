package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/starts-with-effort/dandd-realtime/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from a separate origin
	},
}

// handshakeFrame is the first message a client must send after the upgrade.
type handshakeFrame struct {
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

// handleWebSocket runs the connection lifecycle: upgrade, in-band credential
// handshake, registration, read pump, unregistration. A connection that
// fails the handshake is closed without any response payload; the client is
// told nothing about why.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	connectionID := uuid.New()
	log := logging.WithConnection(connectionID.String())

	// The first frame must arrive within the grace period, or the
	// half-open connection is dropped.
	_ = conn.SetReadDeadline(time.Now().Add(s.config.AuthGracePeriod))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		log.Debug("Connection closed before handshake", "error", err)
		_ = conn.Close()
		return nil
	}

	var handshake handshakeFrame
	// A malformed frame leaves the token empty; the validator rejects it.
	_ = json.Unmarshal(frame, &handshake)

	// The upgrade hijacks the connection, so the request context no longer
	// cancels on client disconnect. Validation is bounded by its own
	// deadline instead; if the client closed mid-validation the registration
	// is undone right away by the read pump's first failing read.
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.AuthGracePeriod)
	defer cancel()
	identity, err := s.validator.Validate(ctx, handshake.Auth.Token)
	if err != nil {
		log.Info("Rejecting unauthenticated connection")
		_ = conn.Close()
		return nil
	}

	if err := s.hub.Register(connectionID, conn, identity); err != nil {
		log.Warn("Failed to register connection", "error", err)
		_ = conn.Close()
		return nil
	}

	// Read pump — blocks until the connection closes. Inbound frames after
	// the handshake are ignored; the channel is push-only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(connectionID)

	return nil
}
