// Package numbering_repo provides the PostgreSQL implementation of the numbering repository.
package numbering_repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"logibill/internal/core/apperror"
	"logibill/internal/core/numbering"
	domain "logibill/internal/domain/numbering"
	"logibill/internal/infrastructure/storage/postgres"
)

const (
	configsTable   = "numbering_configs"
	documentsTable = "issued_documents"

	uniqueViolation = "23505"
)

var configColumns = []string{"id", "type", "starting_number", "current_number", "prefix", "updated_at"}

var tracer = otel.Tracer("logibill/numbering_repo")

// QuerierSource yields the querier bound to ctx. Implemented by *postgres.TxManager.
type QuerierSource interface {
	GetQuerier(ctx context.Context) postgres.Querier
	InTx(ctx context.Context) bool
}

// Repo stores numbering configs and issued document numbers.
type Repo struct {
	db QuerierSource
}

// Ensure compile-time interface compliance.
var _ domain.Repository = (*Repo)(nil)

// New creates a numbering repository.
func New(db QuerierSource) *Repo {
	return &Repo{db: db}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// List implements domain.Repository.
func (r *Repo) List(ctx context.Context) ([]numbering.Config, error) {
	sql, args, err := listQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	var cfgs []numbering.Config
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &cfgs, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", configsTable, err)
	}
	return cfgs, nil
}

// Get implements domain.Repository. Inside a transaction the row is locked.
func (r *Repo) Get(ctx context.Context, docType numbering.DocumentType) (numbering.Config, error) {
	sql, args, err := getQuery(docType, r.db.InTx(ctx)).ToSql()
	if err != nil {
		return numbering.Config{}, fmt.Errorf("build get: %w", err)
	}

	var cfg numbering.Config
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &cfg, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return numbering.Config{}, apperror.NewNotFound("numbering config", docType)
		}
		return numbering.Config{}, fmt.Errorf("get %s: %w", configsTable, err)
	}
	return cfg, nil
}

// Upsert implements domain.Repository. current_number never decreases.
func (r *Repo) Upsert(ctx context.Context, cfg numbering.Config) (numbering.Config, error) {
	ctx, span := tracer.Start(ctx, "numbering.upsert",
		trace.WithAttributes(attribute.String("numbering.type", cfg.Type.String())))
	defer span.End()

	sql, args, err := upsertQuery(cfg).ToSql()
	if err != nil {
		return numbering.Config{}, fmt.Errorf("build upsert: %w", err)
	}

	var saved numbering.Config
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &saved, sql, args...); err != nil {
		span.RecordError(err)
		return numbering.Config{}, fmt.Errorf("upsert %s: %w", configsTable, err)
	}
	return saved, nil
}

// CompareAndSetCurrent implements domain.Repository.
func (r *Repo) CompareAndSetCurrent(ctx context.Context, docType numbering.DocumentType, expected, next int64, at time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "numbering.compare_and_set",
		trace.WithAttributes(
			attribute.String("numbering.type", docType.String()),
			attribute.Int64("numbering.expected", expected),
		))
	defer span.End()

	sql, args, err := casQuery(docType, expected, next, at).ToSql()
	if err != nil {
		return false, fmt.Errorf("build compare-and-set: %w", err)
	}

	tag, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("compare-and-set %s: %w", configsTable, err)
	}
	applied := tag.RowsAffected() == 1
	span.SetAttributes(attribute.Bool("numbering.applied", applied))
	return applied, nil
}

// DocumentExists implements domain.Repository.
func (r *Repo) DocumentExists(ctx context.Context, docType numbering.DocumentType, number int64) (bool, error) {
	sql, args, err := existsQuery(docType, number).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var exists bool
	if err := r.db.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s: %w", documentsTable, err)
	}
	return exists, nil
}

// RecordDocument implements domain.Repository.
func (r *Repo) RecordDocument(ctx context.Context, docType numbering.DocumentType, number int64) error {
	sql, args, err := builder().
		Insert(documentsTable).
		Columns("type", "number").
		Values(docType, number).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.NewDuplicate(docType.String(), "number", strconv.FormatInt(number, 10))
		}
		return fmt.Errorf("insert %s: %w", documentsTable, err)
	}
	return nil
}

func listQuery() squirrel.SelectBuilder {
	return builder().
		Select(configColumns...).
		From(configsTable).
		OrderBy("type")
}

func getQuery(docType numbering.DocumentType, forUpdate bool) squirrel.SelectBuilder {
	q := builder().
		Select(configColumns...).
		From(configsTable).
		Where(squirrel.Eq{"type": docType})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func upsertQuery(cfg numbering.Config) squirrel.InsertBuilder {
	return builder().
		Insert(configsTable).
		Columns(configColumns...).
		Values(cfg.ID, cfg.Type, cfg.StartingNumber, cfg.CurrentNumber, cfg.Prefix, cfg.UpdatedAt).
		Suffix(`ON CONFLICT (type) DO UPDATE SET
			starting_number = EXCLUDED.starting_number,
			current_number = GREATEST(` + configsTable + `.current_number, EXCLUDED.current_number),
			prefix = EXCLUDED.prefix,
			updated_at = EXCLUDED.updated_at
		RETURNING id, type, starting_number, current_number, prefix, updated_at`)
}

func casQuery(docType numbering.DocumentType, expected, next int64, at time.Time) squirrel.UpdateBuilder {
	return builder().
		Update(configsTable).
		Set("current_number", next).
		Set("updated_at", at).
		Where(squirrel.Eq{"type": docType, "current_number": expected})
}

func existsQuery(docType numbering.DocumentType, number int64) squirrel.SelectBuilder {
	return builder().
		Select("1").
		From(documentsTable).
		Where(squirrel.Eq{"type": docType, "number": number}).
		Prefix("SELECT EXISTS (").
		Suffix(")")
}
