// Package postgres persists the filing registry.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/finraglab/finrag/internal/core/domain"
)

// OpenDB opens a pgx-backed database handle and verifies connectivity.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const schemaLockID = 814203

// EnsureSchema creates the filings table. The advisory lock serializes
// concurrent instances racing the DDL at startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS filings (
			id            TEXT PRIMARY KEY,
			filename      TEXT NOT NULL,
			source_doc    TEXT NOT NULL,
			storage_key   TEXT NOT NULL,
			status        TEXT NOT NULL,
			element_count INTEGER NOT NULL DEFAULT 0,
			chunk_count   INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create filings table: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS filings_source_doc_idx ON filings (source_doc)"); err != nil {
		return fmt.Errorf("create filings index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

type FilingRepository struct {
	db *sql.DB
}

func NewFilingRepository(db *sql.DB) *FilingRepository {
	return &FilingRepository{db: db}
}

func (r *FilingRepository) Create(ctx context.Context, f *domain.Filing) error {
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO filings (id, filename, source_doc, storage_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.Filename, f.SourceDoc, f.StorageKey, string(f.Status), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert filing: %w", err)
	}
	return nil
}

func (r *FilingRepository) GetByID(ctx context.Context, id string) (*domain.Filing, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, filename, source_doc, storage_key, status,
		       element_count, chunk_count, error_message, created_at, updated_at
		FROM filings WHERE id = $1`, id)

	var f domain.Filing
	var status string
	err := row.Scan(&f.ID, &f.Filename, &f.SourceDoc, &f.StorageKey, &status,
		&f.ElementCount, &f.ChunkCount, &f.ErrorMessage, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrFilingNotFound, "get filing", err)
	}
	if err != nil {
		return nil, fmt.Errorf("select filing: %w", err)
	}
	f.Status = domain.FilingStatus(status)
	return &f, nil
}

func (r *FilingRepository) UpdateStatus(ctx context.Context, id string, status domain.FilingStatus, errorMessage string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE filings SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`,
		id, string(status), errorMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update filing status: %w", err)
	}
	return requireRow(res, id)
}

func (r *FilingRepository) SaveCounts(ctx context.Context, id string, elements, chunks int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE filings SET element_count = $2, chunk_count = $3, updated_at = $4 WHERE id = $1`,
		id, elements, chunks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update filing counts: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrFilingNotFound, "update filing", fmt.Errorf("id %s", id))
	}
	return nil
}
