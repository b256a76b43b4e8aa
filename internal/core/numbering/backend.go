package numbering

import (
	"context"
)

// Backend is the remote numbering store the allocator talks to.
// Implementations must send a bearer credential on every call.
type Backend interface {
	// ListConfigs returns every persisted config.
	ListConfigs(ctx context.Context) ([]Config, error)

	// AdvanceNumber moves currentNumber of docType to newValue.
	// The store applies it only when its current value is newValue-1.
	AdvanceNumber(ctx context.Context, docType DocumentType, newValue int64) error

	// CheckDuplicateNumber reports whether a persisted document of docType already uses number.
	CheckDuplicateNumber(ctx context.Context, docType DocumentType, number int64) (bool, error)

	// SaveConfig creates or replaces the config of docType and returns the stored object.
	SaveConfig(ctx context.Context, docType DocumentType, startingNumber int64, prefix string) (Config, error)
}
