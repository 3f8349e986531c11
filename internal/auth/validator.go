// Package auth verifies bearer credentials against the identity store.
package auth

import (
	"context"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starts-with-effort/dandd-realtime/internal/domain"
	"github.com/starts-with-effort/dandd-realtime/internal/metrics"
)

// Validator verifies HS256-signed tokens issued by the web API layer and
// resolves the embedded subject to an active user. It fails closed: every
// failure path, including an unreachable identity store, collapses to
// domain.ErrCredentialRejected so callers uniformly disconnect without
// leaking a reason to the client.
type Validator struct {
	secret []byte
	users  domain.IdentityRepository
}

func NewValidator(secret string, users domain.IdentityRepository) *Validator {
	return &Validator{secret: []byte(secret), users: users}
}

func (v *Validator) Validate(ctx context.Context, rawToken string) (domain.Identity, error) {
	if rawToken == "" {
		return v.reject("missing_token", nil)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return v.reject("invalid_token", err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return v.reject("invalid_token", err)
	}

	user, err := v.users.GetUser(ctx, subject)
	if err != nil {
		return v.reject("user_lookup_failed", err)
	}
	if !user.Active {
		return v.reject("user_inactive", nil)
	}

	return domain.Identity{UserID: user.ID, Username: user.Username}, nil
}

func (v *Validator) reject(reason string, cause error) (domain.Identity, error) {
	metrics.AuthRejectionsTotal.WithLabelValues(reason).Inc()
	if cause != nil {
		slog.Debug("Credential rejected", "reason", reason, "error", cause)
	} else {
		slog.Debug("Credential rejected", "reason", reason)
	}
	return domain.Identity{}, domain.ErrCredentialRejected
}
