// Package memory provides in-process implementations of the numbering store.
// Used by tests and by the server when STORE=memory.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"logibill/internal/core/apperror"
	"logibill/internal/core/numbering"
	"logibill/internal/core/tx"
	domain "logibill/internal/domain/numbering"
)

// Store keeps configs and issued document numbers in maps.
type Store struct {
	mu        sync.RWMutex
	configs   map[numbering.DocumentType]numbering.Config
	documents map[numbering.DocumentType]map[int64]struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		configs:   make(map[numbering.DocumentType]numbering.Config),
		documents: make(map[numbering.DocumentType]map[int64]struct{}),
	}
}

// Ensure compile-time interface compliance.
var _ domain.Repository = (*Store)(nil)

// List implements domain.Repository.
func (s *Store) List(ctx context.Context) ([]numbering.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]numbering.Config, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

// Get implements domain.Repository.
func (s *Store) Get(ctx context.Context, docType numbering.DocumentType) (numbering.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.configs[docType]
	if !ok {
		return numbering.Config{}, apperror.NewNotFound("numbering config", docType)
	}
	return c, nil
}

// Upsert implements domain.Repository.
func (s *Store) Upsert(ctx context.Context, cfg numbering.Config) (numbering.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.configs[cfg.Type]; ok {
		cfg.ID = existing.ID
		cfg.CurrentNumber = max(cfg.CurrentNumber, existing.CurrentNumber)
	}
	s.configs[cfg.Type] = cfg
	return cfg, nil
}

// CompareAndSetCurrent implements domain.Repository.
func (s *Store) CompareAndSetCurrent(ctx context.Context, docType numbering.DocumentType, expected, next int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.configs[docType]
	if !ok || c.CurrentNumber != expected {
		return false, nil
	}
	c.CurrentNumber = next
	c.UpdatedAt = at
	s.configs[docType] = c
	return true, nil
}

// DocumentExists implements domain.Repository.
func (s *Store) DocumentExists(ctx context.Context, docType numbering.DocumentType, number int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.documents[docType][number]
	return ok, nil
}

// RecordDocument implements domain.Repository.
func (s *Store) RecordDocument(ctx context.Context, docType numbering.DocumentType, number int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nums, ok := s.documents[docType]
	if !ok {
		nums = make(map[int64]struct{})
		s.documents[docType] = nums
	}
	if _, exists := nums[number]; exists {
		return apperror.NewDuplicate(string(docType), "number", strconv.FormatInt(number, 10))
	}
	nums[number] = struct{}{}
	return nil
}

// Seed stores cfgs as-is, overwriting existing entries.
func (s *Store) Seed(cfgs ...numbering.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cfgs {
		s.configs[c.Type] = c
	}
}

// TxManager serializes units of work. It provides isolation, not rollback.
type TxManager struct {
	mu sync.Mutex
}

// Ensure compile-time interface compliance.
var _ tx.Manager = (*TxManager)(nil)

type txKey struct{}

// RunInTransaction implements tx.Manager.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, struct{}{}))
}

// AuditLog keeps audit entries in memory.
type AuditLog struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

// Record implements domain.AuditLog.
func (l *AuditLog) Record(ctx context.Context, entry domain.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries.
func (l *AuditLog) Entries() []domain.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.AuditEntry(nil), l.entries...)
}
