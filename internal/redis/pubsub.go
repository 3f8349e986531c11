package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

const eventChannel = "pos:events"

// relayMessage wraps an event envelope with the originating instance id so
// an instance can skip messages it published itself.
type relayMessage struct {
	Instance string          `json:"instance"`
	Envelope json.RawMessage `json:"envelope"`
}

// EventRelay fans event envelopes out to every server instance via Redis
// Pub/Sub. Each instance broadcasts relayed envelopes to its local clients.
type EventRelay struct {
	rdb      *goredis.Client
	instance string
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEventRelay creates a relay identified by instance (any unique string).
func NewEventRelay(client *Client, instance string) *EventRelay {
	return &EventRelay{rdb: client.rdb, instance: instance}
}

// Publish sends an envelope to all subscribed instances.
func (r *EventRelay) Publish(ctx context.Context, envelope []byte) error {
	msg := relayMessage{Instance: r.instance, Envelope: envelope}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}
	return r.rdb.Publish(ctx, eventChannel, data).Err()
}

// Subscribe starts consuming relayed envelopes from other instances and
// hands them to deliver. Call Close to stop.
func (r *EventRelay) Subscribe(ctx context.Context, deliver func(envelope []byte)) {
	subCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	sub := r.rdb.Subscribe(subCtx, eventChannel)

	go func() {
		defer close(r.done)
		defer func() { _ = sub.Close() }()

		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var relayed relayMessage
				if err := json.Unmarshal([]byte(msg.Payload), &relayed); err != nil {
					slog.Error("Failed to unmarshal relay message", "error", err)
					continue
				}
				if relayed.Instance == r.instance {
					continue
				}
				deliver(relayed.Envelope)
			case <-subCtx.Done():
				return
			}
		}
	}()
}

// Close stops the subscription loop.
func (r *EventRelay) Close() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
