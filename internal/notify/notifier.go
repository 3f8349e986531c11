// Package notify turns domain mutation events into broadcast payloads.
// Snapshots are loaded fresh from storage at publish time so the payload
// always reflects the latest committed state.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starts-with-effort/dandd-realtime/internal/domain"
	"github.com/starts-with-effort/dandd-realtime/internal/metrics"
)

const (
	snapshotTimeout = 5 * time.Second
	relayTimeout    = 5 * time.Second
)

// Broadcaster is the hub-side contract the notifier delivers to.
type Broadcaster interface {
	Broadcast(data []byte)
}

// Relay forwards envelopes to other server instances. Optional.
type Relay interface {
	Publish(ctx context.Context, envelope []byte) error
}

// Envelope is the wire framing for outbound events.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// job carries one event through the pipeline. prev is the done channel of
// the previously admitted job: snapshot loads run concurrently across
// workers, but delivery waits on prev so every connection observes events
// in the order the Notify* calls were made.
type job struct {
	event domain.Event
	prev  <-chan struct{}
	done  chan struct{}
}

// Notifier consumes events from a bounded queue with a fixed worker pool.
// A full queue drops the event (counted and logged) rather than blocking the
// mutation path that triggered it.
type Notifier struct {
	store     domain.SnapshotRepository
	hub       Broadcaster
	relay     Relay
	queue     chan *job
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	workers   int

	mu      sync.Mutex
	stopped bool
	last    chan struct{}
}

func New(store domain.SnapshotRepository, hub Broadcaster, relay Relay, queueSize, workers int) *Notifier {
	return &Notifier{
		store:   store,
		hub:     hub,
		relay:   relay,
		queue:   make(chan *job, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool.
func (n *Notifier) Start() {
	n.startOnce.Do(func() {
		for range n.workers {
			n.wg.Add(1)
			go n.worker()
		}
	})
}

// Stop closes the queue and waits for in-flight events to drain. Events
// enqueued after Stop are dropped.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		n.stopped = true
		close(n.queue)
		n.mu.Unlock()
		n.wg.Wait()
	})
}

// NotifyOrderCreated implements domain.Notifier.
func (n *Notifier) NotifyOrderCreated(orderID string) {
	n.enqueue(domain.Event{Kind: domain.OrderCreated, ID: orderID})
}

// NotifyOrderLineUpdated implements domain.Notifier.
func (n *Notifier) NotifyOrderLineUpdated(orderLineID string) {
	n.enqueue(domain.Event{Kind: domain.OrderLineUpdated, ID: orderLineID})
}

func (n *Notifier) enqueue(event domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped {
		metrics.EventsDroppedTotal.WithLabelValues("stopped").Inc()
		slog.Warn("Notifier stopped, dropping event", "event_id", event.ID)
		return
	}

	j := &job{event: event, prev: n.last, done: make(chan struct{})}
	select {
	case n.queue <- j:
		n.last = j.done
	default:
		metrics.EventsDroppedTotal.WithLabelValues("queue_full").Inc()
		slog.Warn("Event queue full, dropping event", "event_id", event.ID)
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for j := range n.queue {
		name, data := n.buildEnvelope(j.event)
		if j.prev != nil {
			<-j.prev
		}
		if data != nil {
			n.deliver(j.event, name, data)
		}
		close(j.done)
	}
}

// buildEnvelope loads the snapshot and marshals the wire envelope. A nil
// payload means the event is dropped; the job still completes so later
// events are not held up.
func (n *Notifier) buildEnvelope(event domain.Event) (string, []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	var (
		name    string
		payload any
		err     error
	)
	switch event.Kind {
	case domain.OrderCreated:
		name = domain.EventOrderCreated
		payload, err = n.store.LoadOrder(ctx, event.ID)
	case domain.OrderLineUpdated:
		name = domain.EventOrderLineUpdated
		payload, err = n.store.LoadOrderLine(ctx, event.ID)
	default:
		slog.Warn("Unknown event kind", "kind", event.Kind)
		return "", nil
	}

	if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrOrderLineNotFound) {
		// Row vanished between trigger and load. Clients simply never see
		// this particular update.
		metrics.EventsDroppedTotal.WithLabelValues("not_found").Inc()
		slog.Info("Entity vanished before broadcast, dropping event", "event", name, "event_id", event.ID)
		return "", nil
	}
	if err != nil {
		metrics.EventsDroppedTotal.WithLabelValues("load_failed").Inc()
		slog.Error("Failed to load snapshot", "event", name, "event_id", event.ID, "error", err)
		return "", nil
	}

	data, err := json.Marshal(Envelope{Event: name, Data: payload})
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "event", name, "error", err)
		return "", nil
	}
	return name, data
}

func (n *Notifier) deliver(event domain.Event, name string, data []byte) {
	n.hub.Broadcast(data)
	metrics.BroadcastsTotal.WithLabelValues(name).Inc()

	if n.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		defer cancel()
		if err := n.relay.Publish(ctx, data); err != nil {
			slog.Error("Failed to relay event", "event", name, "error", err)
		}
	}

	slog.Debug("Event published", "event", name, "event_id", event.ID)
}
