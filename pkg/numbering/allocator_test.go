package numbering

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logibill/internal/core/apperror"
	corenumbering "logibill/internal/core/numbering"
	"logibill/pkg/logger"
)

// fakeBackend simulates the remote store with compare-and-set advances.
type fakeBackend struct {
	mu         sync.Mutex
	configs    map[corenumbering.DocumentType]corenumbering.Config
	documents  map[corenumbering.DocumentType]map[int64]bool
	listCalls  int
	listErr    error
	advanceErr error
	dupErr     error
	saveErr    error
}

func newFakeBackend(cfgs ...corenumbering.Config) *fakeBackend {
	b := &fakeBackend{
		configs:   make(map[corenumbering.DocumentType]corenumbering.Config),
		documents: make(map[corenumbering.DocumentType]map[int64]bool),
	}
	for _, c := range cfgs {
		b.configs[c.Type] = c
	}
	return b
}

func (b *fakeBackend) ListConfigs(ctx context.Context) ([]corenumbering.Config, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := make([]corenumbering.Config, 0, len(b.configs))
	for _, c := range b.configs {
		out = append(out, c)
	}
	return out, nil
}

func (b *fakeBackend) AdvanceNumber(ctx context.Context, docType corenumbering.DocumentType, newValue int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.advanceErr != nil {
		return b.advanceErr
	}
	cfg, ok := b.configs[docType]
	if !ok {
		return apperror.NewNotFound("numbering config", docType)
	}
	if cfg.CurrentNumber != newValue-1 {
		return apperror.NewConcurrentModification("numbering config", docType)
	}
	cfg.CurrentNumber = newValue
	b.configs[docType] = cfg
	return nil
}

func (b *fakeBackend) CheckDuplicateNumber(ctx context.Context, docType corenumbering.DocumentType, number int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dupErr != nil {
		return false, b.dupErr
	}
	return b.documents[docType][number], nil
}

func (b *fakeBackend) SaveConfig(ctx context.Context, docType corenumbering.DocumentType, startingNumber int64, prefix string) (corenumbering.Config, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return corenumbering.Config{}, b.saveErr
	}
	cfg := corenumbering.Config{
		ID:             "cfg-" + string(docType),
		Type:           docType,
		StartingNumber: startingNumber,
		CurrentNumber:  startingNumber,
		Prefix:         prefix,
		UpdatedAt:      time.Now().UTC(),
	}
	b.configs[docType] = cfg
	return cfg, nil
}

func (b *fakeBackend) record(docType corenumbering.DocumentType, number int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.documents[docType] == nil {
		b.documents[docType] = make(map[int64]bool)
	}
	b.documents[docType][number] = true
}

func newTestAllocator(b corenumbering.Backend, opts ...Option) *Allocator {
	return New(b, append([]Option{WithLogger(logger.NewNop())}, opts...)...)
}

func TestInitialize_LoadsFromBackend(t *testing.T) {
	b := newFakeBackend(corenumbering.Config{Type: corenumbering.TypeInvoice, StartingNumber: 1, CurrentNumber: 2050, Prefix: "INV"})
	a := newTestAllocator(b)

	assert.False(t, a.Initialized())
	a.Initialize(context.Background())
	assert.True(t, a.Initialized())

	cfg, ok := a.GetConfig(corenumbering.TypeInvoice)
	require.True(t, ok)
	assert.Equal(t, int64(2050), cfg.CurrentNumber)

	_, ok = a.GetConfig(corenumbering.TypeConsignment)
	assert.False(t, ok, "cache must mirror the backend, not the defaults")
}

func TestInitialize_Idempotent(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	a := newTestAllocator(b)
	ctx := context.Background()

	a.Initialize(ctx)
	a.Initialize(ctx)

	assert.Equal(t, 1, b.listCalls)
}

func TestInitialize_FallsBackToDefaults(t *testing.T) {
	b := newFakeBackend()
	b.listErr = errors.New("connection refused")
	a := newTestAllocator(b)

	a.Initialize(context.Background())

	cfg, ok := a.GetConfig(corenumbering.TypeInvoice)
	require.True(t, ok)
	assert.Equal(t, int64(1001), cfg.StartingNumber)
	assert.Equal(t, int64(1001), cfg.CurrentNumber)
	assert.Equal(t, "INV", cfg.Prefix)

	cfg, ok = a.GetConfig(corenumbering.TypeConsignment)
	require.True(t, ok)
	assert.Equal(t, int64(5001), cfg.StartingNumber)
	assert.Equal(t, int64(5001), cfg.CurrentNumber)
	assert.Equal(t, "LR", cfg.Prefix)
}

func TestLoadConfigs_ReplacesCache(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	a := newTestAllocator(b)
	ctx := context.Background()
	a.Initialize(ctx)

	b.mu.Lock()
	delete(b.configs, corenumbering.TypeConsignment)
	b.mu.Unlock()

	require.NoError(t, a.LoadConfigs(ctx))
	_, ok := a.GetConfig(corenumbering.TypeConsignment)
	assert.False(t, ok)
	assert.Len(t, a.GetAllConfigs(), 1)
}

func TestLoadConfigs_Error(t *testing.T) {
	b := newFakeBackend()
	b.listErr = errors.New("503")
	a := newTestAllocator(b)

	err := a.LoadConfigs(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeNumberingLoad))
}

func TestGetNextNumber_ReturnsPreviousAndAdvances(t *testing.T) {
	b := newFakeBackend(corenumbering.Config{Type: corenumbering.TypeInvoice, StartingNumber: 1, CurrentNumber: 2050, Prefix: "INV"})
	a := newTestAllocator(b)
	ctx := context.Background()

	a.Initialize(ctx)
	num, err := a.GetNextNumber(ctx, corenumbering.TypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(2050), num)

	cfg, _ := a.GetConfig(corenumbering.TypeInvoice)
	assert.Equal(t, int64(2051), cfg.CurrentNumber)
}

func TestGetNextNumber_Monotonic(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	a := newTestAllocator(b)
	ctx := context.Background()

	prev := int64(0)
	for i := 0; i < 20; i++ {
		num, err := a.GetNextNumber(ctx, corenumbering.TypeConsignment)
		require.NoError(t, err)
		if prev != 0 {
			assert.Equal(t, prev+1, num)
		}
		prev = num
	}
	assert.Equal(t, int64(5020), prev)
}

func TestGetNextNumber_AutoInitializes(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	a := newTestAllocator(b)

	num, err := a.GetNextNumber(context.Background(), corenumbering.TypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), num)
	assert.True(t, a.Initialized())
}

func TestGetNextNumber_ConfigNotFound(t *testing.T) {
	b := newFakeBackend(corenumbering.Config{Type: corenumbering.TypeInvoice, StartingNumber: 1, CurrentNumber: 1})
	a := newTestAllocator(b)

	_, err := a.GetNextNumber(context.Background(), corenumbering.TypeConsignment)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeNumberingConfigNotFound))
}

func TestGetNextNumber_BackendFailureKeepsCache(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	a := newTestAllocator(b)
	ctx := context.Background()
	a.Initialize(ctx)

	b.advanceErr = errors.New("timeout")
	_, err := a.GetNextNumber(ctx, corenumbering.TypeInvoice)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeNumberingUpdate))

	cfg, _ := a.GetConfig(corenumbering.TypeInvoice)
	assert.Equal(t, int64(1001), cfg.CurrentNumber, "cache must not drift ahead of the store")

	b.advanceErr = nil
	num, err := a.GetNextNumber(ctx, corenumbering.TypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), num)
}

func TestGetNextNumber_LostUpdateResyncs(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	a := newTestAllocator(b)
	ctx := context.Background()
	a.Initialize(ctx)

	// Another client allocates 1001 and 1002 behind our back.
	require.NoError(t, b.AdvanceNumber(ctx, corenumbering.TypeInvoice, 1002))
	require.NoError(t, b.AdvanceNumber(ctx, corenumbering.TypeInvoice, 1003))

	_, err := a.GetNextNumber(ctx, corenumbering.TypeInvoice)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeNumberingUpdate))

	num, err := a.GetNextNumber(ctx, corenumbering.TypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(1003), num)
}

func TestGetNextNumber_ConcurrentCallsAreUnique(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	a := newTestAllocator(b)
	ctx := context.Background()

	const workers = 16
	results := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := a.GetNextNumber(ctx, corenumbering.TypeInvoice)
			assert.NoError(t, err)
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for num := range results {
		assert.False(t, seen[num], "duplicate allocation %d", num)
		seen[num] = true
	}
	assert.Len(t, seen, workers)
}

func TestValidateManualNumber(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	b.record(corenumbering.TypeInvoice, 1500)
	a := newTestAllocator(b)
	ctx := context.Background()

	res := a.ValidateManualNumber(ctx, corenumbering.TypeInvoice, 1500)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Message, "INV1500")

	res = a.ValidateManualNumber(ctx, corenumbering.TypeInvoice, 1501)
	assert.True(t, res.Valid)

	cfg, _ := a.GetConfig(corenumbering.TypeInvoice)
	assert.Equal(t, int64(1001), cfg.CurrentNumber, "validation never reserves")
}

func TestValidateManualNumber_MissingConfig(t *testing.T) {
	b := newFakeBackend(corenumbering.Config{Type: corenumbering.TypeInvoice, StartingNumber: 1, CurrentNumber: 1})
	a := newTestAllocator(b)

	res := a.ValidateManualNumber(context.Background(), corenumbering.TypeConsignment, 10)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Message)
}

func TestValidateManualNumber_FailOpen(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	b.dupErr = errors.New("network unreachable")
	a := newTestAllocator(b)

	res := a.ValidateManualNumber(context.Background(), corenumbering.TypeInvoice, 42)
	assert.True(t, res.Valid)
}

func TestValidateManualNumber_FailClosed(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	b.dupErr = errors.New("network unreachable")
	a := newTestAllocator(b, WithDuplicatePolicy(FailClosed))

	res := a.ValidateManualNumber(context.Background(), corenumbering.TypeInvoice, 42)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Message)
}

func TestSaveConfig(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	a := newTestAllocator(b)
	ctx := context.Background()

	saved, err := a.SaveConfig(ctx, corenumbering.TypeConsignment, 9000, "LR")
	require.NoError(t, err)
	assert.Equal(t, "cfg-consignment", saved.ID)

	cfg, ok := a.GetConfig(corenumbering.TypeConsignment)
	require.True(t, ok)
	assert.Equal(t, int64(9000), cfg.StartingNumber)
	assert.Equal(t, "LR9000", a.FormatNumber(corenumbering.TypeConsignment, 9000))
}

func TestSaveConfig_Rejected(t *testing.T) {
	b := newFakeBackend(corenumbering.DefaultConfigs()...)
	b.saveErr = apperror.NewValidation("startingNumber must be >= 1")
	a := newTestAllocator(b)
	ctx := context.Background()
	a.Initialize(ctx)

	_, err := a.SaveConfig(ctx, corenumbering.TypeInvoice, 0, "INV")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeNumberingSave))

	cfg, _ := a.GetConfig(corenumbering.TypeInvoice)
	assert.Equal(t, int64(1001), cfg.StartingNumber)
}

func TestFormatNumber(t *testing.T) {
	b := newFakeBackend(
		corenumbering.Config{Type: corenumbering.TypeInvoice, StartingNumber: 1, CurrentNumber: 1, Prefix: "INV"},
		corenumbering.Config{Type: corenumbering.TypeConsignment, StartingNumber: 1, CurrentNumber: 1, Prefix: ""},
	)
	a := newTestAllocator(b)
	a.Initialize(context.Background())

	assert.Equal(t, "INV1007", a.FormatNumber(corenumbering.TypeInvoice, 1007))
	assert.Equal(t, "1007", a.FormatNumber(corenumbering.TypeConsignment, 1007))
}

func TestGetAllConfigs_Uninitialized(t *testing.T) {
	a := newTestAllocator(newFakeBackend(corenumbering.DefaultConfigs()...))

	assert.Empty(t, a.GetAllConfigs())
	_, ok := a.GetConfig(corenumbering.TypeInvoice)
	assert.False(t, ok)
}

func TestAllocator_WithMockBackend(t *testing.T) {
	var advanced []int64
	mock := &corenumbering.MockBackend{
		AdvanceNumberFunc: func(ctx context.Context, docType corenumbering.DocumentType, newValue int64) error {
			advanced = append(advanced, newValue)
			return nil
		},
	}
	a := newTestAllocator(mock)
	ctx := context.Background()

	first, err := a.GetNextNumber(ctx, corenumbering.TypeInvoice)
	require.NoError(t, err)
	second, err := a.GetNextNumber(ctx, corenumbering.TypeInvoice)
	require.NoError(t, err)

	assert.Equal(t, int64(1001), first)
	assert.Equal(t, int64(1002), second)
	assert.Equal(t, []int64{1002, 1003}, advanced)
}
