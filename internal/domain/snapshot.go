package domain

import "context"

// Snapshot payloads are fully-resolved, denormalized reads of an entity's
// current state, computed fresh from storage at broadcast time and never
// cached. Timestamps are ISO-8601 strings, nil when the column is null.

type MenuItemRef struct {
	ID     string  `json:"id"`
	Nombre string  `json:"nombre"`
	Precio float64 `json:"precio"`
}

type EstadoRef struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
}

type MesaRef struct {
	ID     string `json:"id"`
	Numero int    `json:"numero"`
}

// OrderLineSnapshot is the payload of an orden_actualizada event.
type OrderLineSnapshot struct {
	ID           string      `json:"id"`
	PedidoID     string      `json:"pedido"`
	MenuItem     MenuItemRef `json:"menu_item"`
	Estado       EstadoRef   `json:"estado"`
	Anotacion    *string     `json:"anotacion"`
	HoraCreacion *string     `json:"hora_creacion"`
	HoraEntrega  *string     `json:"hora_entrega"`
}

// OrderSnapshot is the payload of a pedido_creado event.
type OrderSnapshot struct {
	ID            string  `json:"id"`
	Mesa          MesaRef `json:"mesa"`
	Subtotal      float64 `json:"subtotal"`
	Total         float64 `json:"total"`
	FechaCreacion *string `json:"fecha_creacion"`
	HoraCreacion  *string `json:"hora_creacion"`
	HoraPago      *string `json:"hora_pago"`
}

// SnapshotRepository abstracts the read accessors backed by the persistent
// store. Implementations return ErrOrderNotFound / ErrOrderLineNotFound when
// the row vanished between trigger and load.
type SnapshotRepository interface {
	LoadOrder(ctx context.Context, orderID string) (*OrderSnapshot, error)
	LoadOrderLine(ctx context.Context, orderLineID string) (*OrderLineSnapshot, error)
}
