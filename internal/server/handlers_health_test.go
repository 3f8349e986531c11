package server

import (
	"context"
	"errors"
)

// failingChecker always reports the backend as down.
type failingChecker struct{}

func (failingChecker) Ping(context.Context) error {
	return errors.New("connection refused")
}
