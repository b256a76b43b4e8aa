// Package tx provides transaction management abstractions.
// Domain services depend on Manager; implementations live in infrastructure/storage.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
// If fn returns an error the work is rolled back, otherwise committed.
// Nested calls reuse the transaction already carried by ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
