// Package numbering provides the client-side document number allocator.
//
// The allocator keeps an in-memory copy of the numbering configs held by a
// remote Backend, proposes the next number of a document type and validates
// numbers entered by hand. The backend is the sole authority: the local cache
// only moves after the backend confirmed a write.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"logibill/internal/core/apperror"
	corenumbering "logibill/internal/core/numbering"
	"logibill/pkg/logger"
)

// DuplicatePolicy decides what ValidateManualNumber does when the duplicate check cannot complete.
type DuplicatePolicy int

const (
	// FailOpen accepts the number when the check fails.
	FailOpen DuplicatePolicy = iota
	// FailClosed rejects the number when the check fails and asks the caller to retry.
	FailClosed
)

// Option configures an Allocator.
type Option func(*Allocator)

// WithDuplicatePolicy sets the policy applied when the duplicate check fails.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(a *Allocator) { a.policy = p }
}

// WithLogger sets the logger used for fallback and fail-open warnings.
func WithLogger(l *logger.Logger) Option {
	return func(a *Allocator) { a.log = l }
}

// WithDefaults replaces the bootstrap configs used when the initial load fails.
func WithDefaults(cfgs []corenumbering.Config) Option {
	return func(a *Allocator) { a.defaults = cfgs }
}

// Allocator allocates sequential document numbers against a Backend.
// It is safe for concurrent use; allocations within one Allocator are serialized.
type Allocator struct {
	backend  corenumbering.Backend
	policy   DuplicatePolicy
	defaults []corenumbering.Config
	log      *logger.Logger

	// initMu guards the Uninitialized -> Ready transition.
	initMu      sync.Mutex
	initialized bool

	// allocMu serializes the read/advance/commit sequence of GetNextNumber.
	allocMu sync.Mutex

	mu      sync.RWMutex
	configs map[corenumbering.DocumentType]corenumbering.Config
}

// New creates an Allocator in the Uninitialized state.
func New(backend corenumbering.Backend, opts ...Option) *Allocator {
	a := &Allocator{
		backend:  backend,
		policy:   FailOpen,
		defaults: corenumbering.DefaultConfigs(),
		log:      logger.Default(),
		configs:  make(map[corenumbering.DocumentType]corenumbering.Config),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithComponent("numbering.allocator")
	return a
}

// Initialized reports whether the allocator reached the Ready state.
func (a *Allocator) Initialized() bool {
	a.initMu.Lock()
	defer a.initMu.Unlock()
	return a.initialized
}

// Initialize loads configs from the backend once. If the load fails the
// bootstrap defaults are cached instead. It never fails.
func (a *Allocator) Initialize(ctx context.Context) {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	if a.initialized {
		return
	}

	if err := a.LoadConfigs(ctx); err != nil {
		a.log.WithContext(ctx).Warnw("numbering configs unavailable, using defaults", "error", err)
		a.replaceCache(a.defaults)
	}
	a.initialized = true
}

// LoadConfigs fetches every config from the backend and replaces the cache.
func (a *Allocator) LoadConfigs(ctx context.Context) error {
	cfgs, err := a.backend.ListConfigs(ctx)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeNumberingLoad) {
			return err
		}
		return apperror.NewNumberingLoad(err)
	}
	a.replaceCache(cfgs)
	return nil
}

func (a *Allocator) replaceCache(cfgs []corenumbering.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.configs)
	for _, cfg := range cfgs {
		a.configs[cfg.Type] = cfg
	}
}

// GetNextNumber allocates the next number of docType and returns it.
// The cache advances only after the backend acknowledged the new current value.
func (a *Allocator) GetNextNumber(ctx context.Context, docType corenumbering.DocumentType) (int64, error) {
	a.Initialize(ctx)

	a.allocMu.Lock()
	defer a.allocMu.Unlock()

	cfg, ok := a.GetConfig(docType)
	if !ok {
		return 0, apperror.NewNumberingConfigNotFound(docType.String())
	}

	allocated := cfg.CurrentNumber
	if err := a.backend.AdvanceNumber(ctx, docType, allocated+1); err != nil {
		if isLostUpdate(err) {
			// Another client moved the counter; resync so the next call starts from the authoritative value.
			if loadErr := a.LoadConfigs(ctx); loadErr != nil {
				a.log.WithContext(ctx).Warnw("resync after lost update failed", "type", docType, "error", loadErr)
			}
		}
		if apperror.HasCode(err, apperror.CodeNumberingUpdate) {
			return 0, err
		}
		return 0, apperror.NewNumberingUpdate(docType.String(), err)
	}

	a.mu.Lock()
	// A concurrent SaveConfig may have replaced the entry; never move it backwards.
	if cur, ok := a.configs[docType]; ok && cur.CurrentNumber <= allocated {
		cur.CurrentNumber = allocated + 1
		a.configs[docType] = cur
	}
	a.mu.Unlock()

	a.log.WithContext(ctx).Debugw("number allocated", "type", docType, "number", allocated)
	return allocated, nil
}

func isLostUpdate(err error) bool {
	for err != nil {
		if appErr, ok := err.(*apperror.AppError); ok && appErr.HTTPStatus == http.StatusConflict {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// ValidateManualNumber checks a user-supplied number for docType.
// A validated number is not reserved.
func (a *Allocator) ValidateManualNumber(ctx context.Context, docType corenumbering.DocumentType, number int64) corenumbering.ValidationResult {
	a.Initialize(ctx)

	if _, ok := a.GetConfig(docType); !ok {
		return corenumbering.ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("numbering is not configured for %s", docType),
		}
	}

	if number < 1 {
		return corenumbering.ValidationResult{
			Valid:   false,
			Message: "number must be a positive integer",
		}
	}

	duplicate, err := a.backend.CheckDuplicateNumber(ctx, docType, number)
	if err != nil {
		if a.policy == FailClosed {
			return corenumbering.ValidationResult{
				Valid:   false,
				Message: "could not verify the number is unused, please retry",
			}
		}
		a.log.WithContext(ctx).Warnw("duplicate check failed, accepting number",
			"type", docType, "number", number, "error", err)
		return corenumbering.ValidationResult{Valid: true}
	}

	if duplicate {
		return corenumbering.ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s number %s is already in use", docType, a.FormatNumber(docType, number)),
		}
	}
	return corenumbering.ValidationResult{Valid: true}
}

// SaveConfig persists a config and caches the object returned by the backend verbatim.
func (a *Allocator) SaveConfig(ctx context.Context, docType corenumbering.DocumentType, startingNumber int64, prefix string) (corenumbering.Config, error) {
	saved, err := a.backend.SaveConfig(ctx, docType, startingNumber, prefix)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeNumberingSave) {
			return corenumbering.Config{}, err
		}
		return corenumbering.Config{}, apperror.NewNumberingSave(docType.String(), err)
	}

	a.mu.Lock()
	a.configs[docType] = saved
	a.mu.Unlock()

	return saved, nil
}

// FormatNumber renders number with the prefix configured for docType.
func (a *Allocator) FormatNumber(docType corenumbering.DocumentType, number int64) string {
	cfg, _ := a.GetConfig(docType)
	return cfg.Format(number)
}

// GetConfig returns the cached config of docType without touching the network.
func (a *Allocator) GetConfig(docType corenumbering.DocumentType) (corenumbering.Config, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cfg, ok := a.configs[docType]
	return cfg, ok
}

// GetAllConfigs returns every cached config ordered by type.
func (a *Allocator) GetAllConfigs() []corenumbering.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]corenumbering.Config, 0, len(a.configs))
	for _, cfg := range a.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
