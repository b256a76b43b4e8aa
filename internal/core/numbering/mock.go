package numbering

import (
	"context"
	"time"
)

// MockBackend is a test implementation of Backend.
// Use in unit tests to avoid network dependencies.
type MockBackend struct {
	ListConfigsFunc          func(ctx context.Context) ([]Config, error)
	AdvanceNumberFunc        func(ctx context.Context, docType DocumentType, newValue int64) error
	CheckDuplicateNumberFunc func(ctx context.Context, docType DocumentType, number int64) (bool, error)
	SaveConfigFunc           func(ctx context.Context, docType DocumentType, startingNumber int64, prefix string) (Config, error)
}

// ListConfigs implements Backend.
func (m *MockBackend) ListConfigs(ctx context.Context) ([]Config, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return DefaultConfigs(), nil
}

// AdvanceNumber implements Backend.
func (m *MockBackend) AdvanceNumber(ctx context.Context, docType DocumentType, newValue int64) error {
	if m.AdvanceNumberFunc != nil {
		return m.AdvanceNumberFunc(ctx, docType, newValue)
	}
	return nil
}

// CheckDuplicateNumber implements Backend.
func (m *MockBackend) CheckDuplicateNumber(ctx context.Context, docType DocumentType, number int64) (bool, error) {
	if m.CheckDuplicateNumberFunc != nil {
		return m.CheckDuplicateNumberFunc(ctx, docType, number)
	}
	return false, nil
}

// SaveConfig implements Backend.
func (m *MockBackend) SaveConfig(ctx context.Context, docType DocumentType, startingNumber int64, prefix string) (Config, error) {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, docType, startingNumber, prefix)
	}
	return Config{
		Type:           docType,
		StartingNumber: startingNumber,
		CurrentNumber:  startingNumber,
		Prefix:         prefix,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// Ensure compile-time interface compliance.
var _ Backend = (*MockBackend)(nil)
