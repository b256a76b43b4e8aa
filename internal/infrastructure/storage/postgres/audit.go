package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"logibill/internal/core/id"
	"logibill/internal/core/numbering"
	domain "logibill/internal/domain/numbering"
)

const auditTable = "numbering_audit"

// CompressionAlgo specifies the compression algorithm used for stored changes.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// Changes is the before/after snapshot persisted per audit row.
type Changes struct {
	Before *numbering.Config `json:"before,omitempty"`
	After  *numbering.Config `json:"after,omitempty"`
}

// AuditLog writes numbering audit entries into numbering_audit.
type AuditLog struct {
	db                QuerierSource
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// QuerierSource yields the querier bound to ctx.
type QuerierSource interface {
	GetQuerier(ctx context.Context) Querier
}

// Ensure compile-time interface compliance.
var _ domain.AuditLog = (*AuditLog)(nil)

// NewAuditLog creates an audit log. Changes larger than compressThreshold bytes
// are stored zstd-compressed; a non-positive threshold means 4KB.
func NewAuditLog(db QuerierSource, compressThreshold int) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if compressThreshold <= 0 {
		compressThreshold = 4 * 1024
	}
	return &AuditLog{
		db:                db,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: compressThreshold,
	}, nil
}

// auditRow is the stored shape of one entry.
type auditRow struct {
	ID                string
	DocType           numbering.DocumentType
	Action            domain.AuditAction
	ClientID          string
	Number            int64
	Changes           []byte
	ChangesCompressed []byte
	CompressionAlgo   CompressionAlgo
	CreatedAt         time.Time
}

// Record implements domain.AuditLog.
func (l *AuditLog) Record(ctx context.Context, entry domain.AuditEntry) error {
	row, err := l.encode(entry)
	if err != nil {
		return err
	}

	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert(auditTable).
		Columns("id", "doc_type", "action", "client_id", "number",
			"changes", "changes_compressed", "compression_algo", "created_at").
		Values(row.ID, row.DocType, row.Action, row.ClientID, row.Number,
			row.Changes, row.ChangesCompressed, row.CompressionAlgo, row.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := l.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", auditTable, err)
	}
	return nil
}

func (l *AuditLog) encode(entry domain.AuditEntry) (auditRow, error) {
	changes, err := json.Marshal(Changes{Before: entry.Before, After: entry.After})
	if err != nil {
		return auditRow{}, fmt.Errorf("marshal changes: %w", err)
	}

	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	row := auditRow{
		ID:              id.New().String(),
		DocType:         entry.DocType,
		Action:          entry.Action,
		ClientID:        entry.ClientID,
		Number:          entry.Number,
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       at,
	}
	if len(changes) > l.compressThreshold {
		row.ChangesCompressed = l.encoder.EncodeAll(changes, nil)
		row.Changes = nil
		row.CompressionAlgo = CompressionZstd
	}
	return row, nil
}

// DecodeChanges restores the before/after snapshot of a stored row.
func (l *AuditLog) DecodeChanges(algo CompressionAlgo, plain, compressed []byte) (Changes, error) {
	data := plain
	if algo == CompressionZstd {
		decompressed, err := l.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return Changes{}, fmt.Errorf("decompress changes: %w", err)
		}
		data = decompressed
	}

	var c Changes
	if err := json.Unmarshal(data, &c); err != nil {
		return Changes{}, fmt.Errorf("unmarshal changes: %w", err)
	}
	return c, nil
}
