package core

import (
	"context"
)

// ShutdownFunc releases one resource during graceful shutdown. The context
// carries the remaining shutdown deadline.
type ShutdownFunc func(ctx context.Context) error

// Closer adapts a plain Close method to a ShutdownFunc.
func Closer(close func() error) ShutdownFunc {
	return func(context.Context) error {
		return close()
	}
}
