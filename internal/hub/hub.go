// Package hub tracks authenticated WebSocket connections and fans events out
// to all of them. A single actor goroutine owns the registry map; every
// mutation and read goes through its command channel.
package hub

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/starts-with-effort/dandd-realtime/internal/domain"
	"github.com/starts-with-effort/dandd-realtime/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// Session describes a live authenticated connection.
type Session struct {
	ID          uuid.UUID       `json:"id"`
	Identity    domain.Identity `json:"identity"`
	ConnectedAt time.Time       `json:"connected_at"`
}

type session struct {
	writer      *clientWriter
	identity    domain.Identity
	connectedAt time.Time
}

// --- Command types ---

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connectionID uuid.UUID
	connection   *websocket.Conn
	identity     domain.Identity
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connectionID uuid.UUID
}

type broadcastCmd struct {
	baseHubCmd
	data []byte
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type sessionsCmd struct {
	baseHubCmd
	replyChannel chan []Session
}

type stopCmd struct {
	baseHubCmd
}

// Hub is the connection registry actor. Connections are registered only
// after their credential has been validated, so membership in the registry
// is exactly eligibility for broadcast.
type Hub struct {
	cmdCh          chan hubCmd
	clock          clockwork.Clock
	sessions       map[uuid.UUID]*session
	maxConnections int
	sendBufferSize int
	done           chan struct{}
	stopTimeout    time.Duration
}

func New(clock clockwork.Clock, maxConnections, sendBufferSize int) *Hub {
	h := &Hub{
		cmdCh:          make(chan hubCmd, 256),
		clock:          clock,
		sessions:       make(map[uuid.UUID]*session),
		maxConnections: maxConnections,
		sendBufferSize: sendBufferSize,
		done:           make(chan struct{}),
		stopTimeout:    stopTimeout,
	}
	go h.run()
	return h
}

// --- Public API ---

// Register adds an authenticated connection to the registry and starts its
// writer. Returns an error if the connection limit is reached.
func (h *Hub) Register(connectionID uuid.UUID, conn *websocket.Conn, identity domain.Identity) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{connectionID: connectionID, connection: conn, identity: identity, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a connection. Idempotent: unknown ids are a no-op, so
// the transport close path and an explicit reject path may both call it.
func (h *Hub) Unregister(connectionID uuid.UUID) {
	h.cmdCh <- unregisterCmd{connectionID: connectionID}
}

// Broadcast queues data for delivery to every registered connection.
// Delivery is best-effort and at-most-once per connection.
func (h *Hub) Broadcast(data []byte) {
	h.cmdCh <- broadcastCmd{data: data}
}

// ClientCount returns the number of registered connections.
// Returns -1 if the command times out.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Sessions returns a copy of the live session set.
func (h *Hub) Sessions() []Session {
	replyCh := make(chan []Session, 1)
	h.cmdCh <- sessionsCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case sessions := <-replyCh:
		return sessions
	case <-timer.Chan():
		slog.Warn("Sessions timed out", "timeout", commandTimeout)
		return nil
	}
}

// Stop shuts down the hub, closing all client connections.
// Blocks until the hub goroutine has exited or timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timeout := h.clock.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Hub stop timeout exceeded, forcing exit", "timeout", h.stopTimeout)
		close(h.done)
	}
}

// --- Actor loop ---

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAllClients("internal error")
		}
	}()
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connectionID)
		case broadcastCmd:
			h.handleBroadcast(c.data)
		case clientCountCmd:
			c.replyChannel <- len(h.sessions)
		case sessionsCmd:
			c.replyChannel <- h.snapshotSessions()
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.sessions) >= h.maxConnections {
		slog.Warn("Rejecting connection: max connections reached", "max_connections", h.maxConnections)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max connections (%d) reached", h.maxConnections)
		return
	}

	h.sessions[c.connectionID] = &session{
		writer:      newClientWriter(c.connection, h.clock, h.sendBufferSize),
		identity:    c.identity,
		connectedAt: h.clock.Now(),
	}

	metrics.ConnectedClients.Set(float64(len(h.sessions)))

	slog.Info("Client registered",
		"connection_id", c.connectionID.String(),
		"user_id", c.identity.UserID,
		"username", c.identity.Username,
		"total_clients", len(h.sessions),
	)
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(connectionID uuid.UUID) {
	s, exists := h.sessions[connectionID]
	if !exists {
		return
	}

	s.writer.stop()
	delete(h.sessions, connectionID)

	metrics.ConnectedClients.Set(float64(len(h.sessions)))

	slog.Info("Client unregistered",
		"connection_id", connectionID.String(),
		"username", s.identity.Username,
		"remaining_clients", len(h.sessions),
	)
}

func (h *Hub) handleBroadcast(data []byte) {
	// The writer goroutine drains sendChannel, so a full buffer means the
	// client has stopped reading. Evict instead of blocking the actor.
	var slow []uuid.UUID
	for connectionID, s := range h.sessions {
		select {
		case s.writer.sendChannel <- data:
		default:
			slow = append(slow, connectionID)
		}
	}

	for _, connectionID := range slow {
		slog.Warn("Disconnecting slow client", "connection_id", connectionID.String())
		metrics.SlowClientsEvicted.Inc()
		metrics.BroadcastSendFailuresTotal.Inc()
		h.handleUnregister(connectionID)
	}
}

func (h *Hub) snapshotSessions() []Session {
	sessions := make([]Session, 0, len(h.sessions))
	for connectionID, s := range h.sessions {
		sessions = append(sessions, Session{
			ID:          connectionID,
			Identity:    s.identity,
			ConnectedAt: s.connectedAt,
		})
	}
	return sessions
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "connected_clients", len(h.sessions))
	h.closeAllClients("Server shutting down")
}

// closeAllClients closes all client connections with the given reason.
// Used during panic recovery and graceful shutdown.
func (h *Hub) closeAllClients(reason string) {
	for connectionID, s := range h.sessions {
		s.writer.stopGraceful(reason)
		delete(h.sessions, connectionID)
	}
	metrics.ConnectedClients.Set(0)
}
