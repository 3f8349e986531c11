package domain

// Event names on the wire. The field names below follow the external API
// contract, which is Spanish throughout.
const (
	EventOrderCreated     = "pedido_creado"
	EventOrderLineUpdated = "orden_actualizada"
)

type EventKind int

const (
	OrderCreated EventKind = iota
	OrderLineUpdated
)

// Event is a transient notification trigger. It carries only the entity id;
// the payload is loaded fresh at broadcast time.
type Event struct {
	Kind EventKind
	ID   string
}

// Notifier is the hook domain mutation logic calls after a successful commit.
// Both methods are fire-and-forget from the caller's perspective.
type Notifier interface {
	NotifyOrderCreated(orderID string)
	NotifyOrderLineUpdated(orderLineID string)
}
