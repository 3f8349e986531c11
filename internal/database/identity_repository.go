package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starts-with-effort/dandd-realtime/internal/domain"
)

// IdentityRepo implements domain.IdentityRepository backed by PostgreSQL.
type IdentityRepo struct {
	pool *pgxpool.Pool
}

func NewIdentityRepo(pool *pgxpool.Pool) *IdentityRepo {
	return &IdentityRepo{pool: pool}
}

func (r *IdentityRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, is_active
		FROM usuarios
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Username, &user.Active)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
