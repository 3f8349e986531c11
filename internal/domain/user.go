package domain

import "context"

type User struct {
	ID       string `db:"id"`
	Username string `db:"username"`
	Active   bool   `db:"is_active"`
}

// Identity is the verified principal attached to a connection after its
// credential has been validated. Immutable once attached.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// IdentityRepository abstracts user lookup against the identity store.
type IdentityRepository interface {
	GetUser(ctx context.Context, userID string) (*User, error)
}

// CredentialValidator verifies a raw bearer credential and resolves it to a
// live identity. Every failure path returns ErrCredentialRejected.
type CredentialValidator interface {
	Validate(ctx context.Context, rawToken string) (Identity, error)
}
