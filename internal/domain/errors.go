package domain

import "errors"

var (
	// ErrCredentialRejected covers every credential failure mode: missing,
	// malformed, expired, unknown subject, inactive user, identity store
	// unreachable. Callers disconnect without distinguishing the cause.
	ErrCredentialRejected = errors.New("credential rejected")

	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderLineNotFound = errors.New("order line not found")
	ErrUserNotFound      = errors.New("user not found")
)
