package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starts-with-effort/dandd-realtime/internal/domain"
)

type fakeStore struct {
	mu         sync.Mutex
	orders     map[string]*domain.OrderSnapshot
	orderLines map[string]*domain.OrderLineSnapshot
	loads      int
}

func (f *fakeStore) LoadOrder(_ context.Context, orderID string) (*domain.OrderSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	order, ok := f.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeStore) LoadOrderLine(_ context.Context, orderLineID string) (*domain.OrderLineSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	line, ok := f.orderLines[orderLineID]
	if !ok {
		return nil, domain.ErrOrderLineNotFound
	}
	return line, nil
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeBroadcaster) Broadcast(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
}

func (f *fakeBroadcaster) all() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.messages...)
}

type fakeRelay struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakeRelay) Publish(_ context.Context, envelope []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, envelope)
	return nil
}

func isoTime(s string) *string { return &s }

func testStore() *fakeStore {
	return &fakeStore{
		orders: map[string]*domain.OrderSnapshot{
			"P001": {
				ID:            "P001",
				Mesa:          domain.MesaRef{ID: "M01", Numero: 1},
				Subtotal:      25.5,
				Total:         30.0,
				FechaCreacion: isoTime("2025-05-10"),
				HoraCreacion:  isoTime("12:30:00"),
			},
		},
		orderLines: map[string]*domain.OrderLineSnapshot{
			"O001": {
				ID:       "O001",
				PedidoID: "P001",
				MenuItem: domain.MenuItemRef{ID: "MI01", Nombre: "Bandeja paisa", Precio: 25.5},
				Estado:   domain.EstadoRef{ID: "E2", Nombre: "En preparación"},
			},
		},
	}
}

func waitForMessages(b *fakeBroadcaster, expected int) bool {
	for range 100 {
		if len(b.all()) == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestNotifier_OrderCreated(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	n := New(testStore(), broadcaster, nil, 16, 2)
	n.Start()
	t.Cleanup(n.Stop)

	n.NotifyOrderCreated("P001")
	require.True(t, waitForMessages(broadcaster, 1))

	var envelope struct {
		Event string               `json:"event"`
		Data  domain.OrderSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(broadcaster.all()[0], &envelope))
	assert.Equal(t, "pedido_creado", envelope.Event)
	assert.Equal(t, "P001", envelope.Data.ID)
	assert.Equal(t, 1, envelope.Data.Mesa.Numero)
	assert.Equal(t, 30.0, envelope.Data.Total)
	require.NotNil(t, envelope.Data.HoraCreacion)
	assert.Equal(t, "12:30:00", *envelope.Data.HoraCreacion)
	assert.Nil(t, envelope.Data.HoraPago)
}

func TestNotifier_OrderLineUpdated(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	n := New(testStore(), broadcaster, nil, 16, 2)
	n.Start()
	t.Cleanup(n.Stop)

	n.NotifyOrderLineUpdated("O001")
	require.True(t, waitForMessages(broadcaster, 1))

	var envelope struct {
		Event string                   `json:"event"`
		Data  domain.OrderLineSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(broadcaster.all()[0], &envelope))
	assert.Equal(t, "orden_actualizada", envelope.Event)
	assert.Equal(t, "O001", envelope.Data.ID)
	assert.Equal(t, "P001", envelope.Data.PedidoID)
	assert.Equal(t, "En preparación", envelope.Data.Estado.Nombre)
}

func TestNotifier_VanishedEntityIsDroppedSilently(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	n := New(testStore(), broadcaster, nil, 16, 2)
	n.Start()

	n.NotifyOrderCreated("P999")
	n.NotifyOrderLineUpdated("O999")
	n.Stop()

	assert.Empty(t, broadcaster.all())
}

func TestNotifier_RelayReceivesEnvelope(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	relay := &fakeRelay{}
	n := New(testStore(), broadcaster, relay, 16, 1)
	n.Start()

	n.NotifyOrderCreated("P001")
	n.Stop()

	require.Len(t, relay.payloads, 1)
	assert.JSONEq(t, string(broadcaster.all()[0]), string(relay.payloads[0]))
}

func TestNotifier_StopDrainsQueue(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	n := New(testStore(), broadcaster, nil, 16, 1)
	n.Start()

	for range 5 {
		n.NotifyOrderCreated("P001")
	}
	n.Stop()

	assert.Len(t, broadcaster.all(), 5)
}

// slowStore delays the load of one order to simulate an uneven database.
type slowStore struct {
	*fakeStore
	slowID string
	delay  time.Duration
}

func (s *slowStore) LoadOrder(ctx context.Context, orderID string) (*domain.OrderSnapshot, error) {
	if orderID == s.slowID {
		time.Sleep(s.delay)
	}
	return s.fakeStore.LoadOrder(ctx, orderID)
}

func TestNotifier_SlowLoadDoesNotReorderDelivery(t *testing.T) {
	store := testStore()
	store.orders["P002"] = &domain.OrderSnapshot{ID: "P002", Mesa: domain.MesaRef{ID: "M02", Numero: 2}}
	broadcaster := &fakeBroadcaster{}
	n := New(&slowStore{fakeStore: store, slowID: "P001", delay: 100 * time.Millisecond}, broadcaster, nil, 16, 4)
	n.Start()

	// P002 loads instantly but was published second; it must not arrive first.
	n.NotifyOrderCreated("P001")
	n.NotifyOrderCreated("P002")
	n.Stop()

	messages := broadcaster.all()
	require.Len(t, messages, 2)
	var ids []string
	for _, msg := range messages {
		var envelope struct {
			Data domain.OrderSnapshot `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &envelope))
		ids = append(ids, envelope.Data.ID)
	}
	assert.Equal(t, []string{"P001", "P002"}, ids)
}

func TestNotifier_NotifyAfterStopIsDropped(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	n := New(testStore(), broadcaster, nil, 16, 2)
	n.Start()
	n.Stop()

	assert.NotPanics(t, func() {
		n.NotifyOrderCreated("P001")
		n.NotifyOrderLineUpdated("O001")
	})
	assert.Empty(t, broadcaster.all())
}

func TestNotifier_QueueFullDropsEvent(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	n := New(testStore(), broadcaster, nil, 1, 1)
	// Workers not started: the queue holds one event, the rest are dropped.

	for range 10 {
		n.NotifyOrderCreated("P001")
	}

	n.Start()
	n.Stop()

	assert.Len(t, broadcaster.all(), 1)
}
