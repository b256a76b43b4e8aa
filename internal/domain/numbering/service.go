package numbering

import (
	"context"
	"regexp"
	"time"

	"logibill/internal/core/apperror"
	appctx "logibill/internal/core/context"
	"logibill/internal/core/id"
	"logibill/internal/core/numbering"
	"logibill/internal/core/tx"
	"logibill/pkg/logger"
)

// MaxPrefixLen bounds the cosmetic prefix of a config.
const MaxPrefixLen = 16

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9/-]*$`)

// Service owns numbering configs. It is the serialization point for all clients.
type Service struct {
	repo    Repository
	txm     tx.Manager
	audit   AuditLog
	metrics Metrics
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAuditLog records every mutation in log.
func WithAuditLog(log AuditLog) ServiceOption {
	return func(s *Service) { s.audit = log }
}

// WithMetrics reports numbering events to m.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a numbering service.
func NewService(repo Repository, txm tx.Manager, opts ...ServiceOption) *Service {
	s := &Service{
		repo: repo,
		txm:  txm,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every config.
func (s *Service) List(ctx context.Context) ([]numbering.Config, error) {
	return s.repo.List(ctx)
}

// Get returns one config.
func (s *Service) Get(ctx context.Context, docType numbering.DocumentType) (numbering.Config, error) {
	if err := validateType(docType); err != nil {
		return numbering.Config{}, err
	}
	return s.repo.Get(ctx, docType)
}

// Advance moves currentNumber of docType to newValue. The store must hold newValue-1,
// otherwise another client allocated first and a concurrent-modification error is returned.
func (s *Service) Advance(ctx context.Context, docType numbering.DocumentType, newValue int64) (numbering.Config, error) {
	if err := validateType(docType); err != nil {
		return numbering.Config{}, err
	}
	if newValue < 2 {
		return numbering.Config{}, apperror.NewValidation("currentNumber must be greater than 1").
			WithDetail("currentNumber", newValue)
	}

	var result numbering.Config
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		before, err := s.repo.Get(ctx, docType)
		if err != nil {
			return err
		}

		now := s.now()
		ok, err := s.repo.CompareAndSetCurrent(ctx, docType, newValue-1, newValue, now)
		if err != nil {
			return apperror.NewInternal(err)
		}
		if !ok {
			s.lostUpdate(docType)
			return apperror.NewConcurrentModification("numbering config", docType).
				WithDetail("expected", newValue-1).
				WithDetail("stored", before.CurrentNumber)
		}

		result = before
		result.CurrentNumber = newValue
		result.UpdatedAt = now

		return s.record(ctx, AuditEntry{
			DocType: docType,
			Action:  AuditActionAdvance,
			Before:  &before,
			After:   &result,
			Number:  newValue - 1,
			At:      now,
		})
	})
	if err != nil {
		return numbering.Config{}, err
	}

	if s.metrics != nil {
		s.metrics.NumberAdvanced(docType)
	}
	logger.Debug(ctx, "numbering advanced", "type", docType, "current_number", newValue)
	return result, nil
}

// CheckDuplicate reports whether a document of docType already uses number.
func (s *Service) CheckDuplicate(ctx context.Context, docType numbering.DocumentType, number int64) (bool, error) {
	if err := validateType(docType); err != nil {
		return false, err
	}
	if number < 1 {
		return false, apperror.NewValidation("number must be positive").WithDetail("number", number)
	}

	dup, err := s.repo.DocumentExists(ctx, docType, number)
	if err != nil {
		return false, apperror.NewInternal(err)
	}
	if s.metrics != nil {
		s.metrics.DuplicateChecked(docType, dup)
	}
	return dup, nil
}

// Save creates or replaces the config of docType.
//
// A new config starts at startingNumber. An existing config keeps its
// currentNumber unless startingNumber is ahead of it, so a save never
// re-issues a number.
func (s *Service) Save(ctx context.Context, docType numbering.DocumentType, startingNumber int64, prefix string) (numbering.Config, error) {
	if err := validateType(docType); err != nil {
		return numbering.Config{}, err
	}
	if startingNumber < 1 {
		return numbering.Config{}, apperror.NewValidation("startingNumber must be at least 1").
			WithDetail("startingNumber", startingNumber)
	}
	if len(prefix) > MaxPrefixLen || !prefixPattern.MatchString(prefix) {
		return numbering.Config{}, apperror.NewValidation("prefix must be up to 16 letters, digits, '-' or '/'").
			WithDetail("prefix", prefix)
	}

	var saved numbering.Config
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.now()
		next := numbering.Config{
			Type:           docType,
			StartingNumber: startingNumber,
			CurrentNumber:  startingNumber,
			Prefix:         prefix,
			UpdatedAt:      now,
		}

		existing, err := s.repo.Get(ctx, docType)
		var before *numbering.Config
		switch {
		case err == nil:
			before = &existing
			next.ID = existing.ID
			next.CurrentNumber = max(existing.CurrentNumber, startingNumber)
		case apperror.IsNotFound(err):
			next.ID = id.New().String()
		default:
			return err
		}

		saved, err = s.repo.Upsert(ctx, next)
		if err != nil {
			return apperror.NewInternal(err)
		}

		return s.record(ctx, AuditEntry{
			DocType: docType,
			Action:  AuditActionSave,
			Before:  before,
			After:   &saved,
			At:      now,
		})
	})
	if err != nil {
		return numbering.Config{}, err
	}

	if s.metrics != nil {
		s.metrics.ConfigSaved(docType)
	}
	logger.Info(ctx, "numbering config saved",
		"type", docType,
		"starting_number", saved.StartingNumber,
		"current_number", saved.CurrentNumber,
		"prefix", saved.Prefix,
	)
	return saved, nil
}

// RecordDocument registers number as used by a persisted document of docType.
func (s *Service) RecordDocument(ctx context.Context, docType numbering.DocumentType, number int64) error {
	if err := validateType(docType); err != nil {
		return err
	}
	if number < 1 {
		return apperror.NewValidation("number must be positive").WithDetail("number", number)
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.RecordDocument(ctx, docType, number); err != nil {
			return err
		}
		return s.record(ctx, AuditEntry{
			DocType: docType,
			Action:  AuditActionRecord,
			Number:  number,
			At:      s.now(),
		})
	})
}

func (s *Service) record(ctx context.Context, entry AuditEntry) error {
	if s.audit == nil {
		return nil
	}
	if entry.ClientID == "" {
		entry.ClientID = appctx.GetClientID(ctx)
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

func (s *Service) lostUpdate(docType numbering.DocumentType) {
	if s.metrics != nil {
		s.metrics.LostUpdate(docType)
	}
}

func validateType(docType numbering.DocumentType) error {
	if !docType.Valid() {
		return apperror.NewValidation("unknown document type").
			WithDetail("type", docType).
			WithDetail("allowed", numbering.DocumentTypes)
	}
	return nil
}
