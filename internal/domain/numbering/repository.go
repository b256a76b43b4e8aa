// Package numbering implements the authoritative numbering store behind the numbering API.
package numbering

import (
	"context"
	"time"

	"logibill/internal/core/numbering"
)

// Repository persists numbering configs and issued document numbers.
type Repository interface {
	// List returns every config ordered by type.
	List(ctx context.Context) ([]numbering.Config, error)

	// Get returns the config of docType or an apperror NotFound.
	// Inside a transaction the row is locked until commit.
	Get(ctx context.Context, docType numbering.DocumentType) (numbering.Config, error)

	// Upsert inserts or replaces the config keyed by type and returns the stored row.
	Upsert(ctx context.Context, cfg numbering.Config) (numbering.Config, error)

	// CompareAndSetCurrent sets current_number to next only if it equals expected.
	// It reports whether a row was changed.
	CompareAndSetCurrent(ctx context.Context, docType numbering.DocumentType, expected, next int64, at time.Time) (bool, error)

	// DocumentExists reports whether a document of docType with number was recorded.
	DocumentExists(ctx context.Context, docType numbering.DocumentType, number int64) (bool, error)

	// RecordDocument stores an issued document number. Returns apperror Duplicate if it exists.
	RecordDocument(ctx context.Context, docType numbering.DocumentType, number int64) error
}

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionSave    AuditAction = "save"
	AuditActionAdvance AuditAction = "advance"
	AuditActionRecord  AuditAction = "record_document"
)

// AuditEntry describes one mutation of numbering state.
type AuditEntry struct {
	DocType  numbering.DocumentType
	Action   AuditAction
	ClientID string
	Before   *numbering.Config
	After    *numbering.Config
	Number   int64
	At       time.Time
}

// AuditLog records numbering mutations.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Metrics receives numbering events. All methods must be safe for concurrent use.
type Metrics interface {
	NumberAdvanced(docType numbering.DocumentType)
	LostUpdate(docType numbering.DocumentType)
	DuplicateChecked(docType numbering.DocumentType, duplicate bool)
	ConfigSaved(docType numbering.DocumentType)
}
