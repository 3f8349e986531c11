// Package database provides the PostgreSQL-backed read repositories.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 25

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations creates the tables the read paths need. The schema is owned
// by the web API layer in production; this keeps local development and tests
// self-sufficient.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS usuarios (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS mesas (
			id TEXT PRIMARY KEY,
			numero INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS estados (
			id TEXT PRIMARY KEY,
			nombre TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS menu_items (
			id TEXT PRIMARY KEY,
			nombre TEXT NOT NULL,
			precio NUMERIC(10,2) NOT NULL,
			descripcion TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS pedidos (
			id TEXT PRIMARY KEY,
			hora_creacion TIME NOT NULL DEFAULT CURRENT_TIME,
			hora_pago TIME,
			fecha_creacion DATE NOT NULL DEFAULT CURRENT_DATE,
			subtotal NUMERIC(10,2) NOT NULL DEFAULT 0,
			total NUMERIC(10,2) NOT NULL DEFAULT 0,
			usuario_id TEXT NOT NULL REFERENCES usuarios(id),
			mesa_id TEXT NOT NULL REFERENCES mesas(id)
		)`,
		`CREATE TABLE IF NOT EXISTS ordenes (
			id TEXT PRIMARY KEY,
			hora_creacion TIME NOT NULL DEFAULT CURRENT_TIME,
			hora_entrega TIME,
			anotacion TEXT,
			pedido_id TEXT NOT NULL REFERENCES pedidos(id) ON DELETE CASCADE,
			menu_item_id TEXT NOT NULL REFERENCES menu_items(id),
			estado_id TEXT NOT NULL REFERENCES estados(id)
		)`,
	}

	for _, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	slog.Info("Database migrations completed")
	return nil
}
