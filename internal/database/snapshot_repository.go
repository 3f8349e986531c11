package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/starts-with-effort/dandd-realtime/internal/domain"
	"github.com/starts-with-effort/dandd-realtime/internal/metrics"
)

// SnapshotRepo implements domain.SnapshotRepository backed by PostgreSQL.
// Every load runs the full join so the payload reflects the latest committed
// state at read time. Timestamp columns are formatted to ISO-8601 in SQL to
// keep null handling in one place.
type SnapshotRepo struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

func NewSnapshotRepo(pool *pgxpool.Pool, clock clockwork.Clock) *SnapshotRepo {
	return &SnapshotRepo{pool: pool, clock: clock}
}

func (r *SnapshotRepo) LoadOrder(ctx context.Context, orderID string) (*domain.OrderSnapshot, error) {
	start := r.clock.Now()
	defer func() {
		metrics.SnapshotLoadDuration.WithLabelValues("pedido").Observe(r.clock.Since(start).Seconds())
	}()

	var snapshot domain.OrderSnapshot
	err := r.pool.QueryRow(ctx, `
		SELECT p.id,
		       m.id, m.numero,
		       p.subtotal, p.total,
		       p.fecha_creacion::text,
		       to_char(p.hora_creacion, 'HH24:MI:SS'),
		       to_char(p.hora_pago, 'HH24:MI:SS')
		FROM pedidos p
		JOIN mesas m ON m.id = p.mesa_id
		WHERE p.id = $1
	`, orderID).Scan(
		&snapshot.ID,
		&snapshot.Mesa.ID, &snapshot.Mesa.Numero,
		&snapshot.Subtotal, &snapshot.Total,
		&snapshot.FechaCreacion, &snapshot.HoraCreacion, &snapshot.HoraPago,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	return &snapshot, nil
}

func (r *SnapshotRepo) LoadOrderLine(ctx context.Context, orderLineID string) (*domain.OrderLineSnapshot, error) {
	start := r.clock.Now()
	defer func() {
		metrics.SnapshotLoadDuration.WithLabelValues("orden").Observe(r.clock.Since(start).Seconds())
	}()

	var snapshot domain.OrderLineSnapshot
	err := r.pool.QueryRow(ctx, `
		SELECT o.id, o.pedido_id,
		       mi.id, mi.nombre, mi.precio,
		       e.id, e.nombre,
		       o.anotacion,
		       to_char(o.hora_creacion, 'HH24:MI:SS'),
		       to_char(o.hora_entrega, 'HH24:MI:SS')
		FROM ordenes o
		JOIN menu_items mi ON mi.id = o.menu_item_id
		JOIN estados e ON e.id = o.estado_id
		WHERE o.id = $1
	`, orderLineID).Scan(
		&snapshot.ID, &snapshot.PedidoID,
		&snapshot.MenuItem.ID, &snapshot.MenuItem.Nombre, &snapshot.MenuItem.Precio,
		&snapshot.Estado.ID, &snapshot.Estado.Nombre,
		&snapshot.Anotacion, &snapshot.HoraCreacion, &snapshot.HoraEntrega,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderLineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order line %s: %w", orderLineID, err)
	}

	return &snapshot, nil
}
