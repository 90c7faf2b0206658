package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/finraglab/finrag/internal/core/domain"
)

func newMockRepo(t *testing.T) (*FilingRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFilingRepository(db), mock
}

func TestCreateInsertsFiling(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO filings").
		WithArgs("id-1", "acme.pdf", "acme", "id-1/acme.pdf", "received",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	f := &domain.Filing{
		ID: "id-1", Filename: "acme.pdf", SourceDoc: "acme",
		StorageKey: "id-1/acme.pdf", Status: domain.FilingReceived,
	}
	if err := repo.Create(context.Background(), f); err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.CreatedAt.IsZero() || f.UpdatedAt.IsZero() {
		t.Fatal("timestamps must be set on create")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetByIDScansFiling(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "filename", "source_doc", "storage_key", "status",
		"element_count", "chunk_count", "error_message", "created_at", "updated_at",
	}).AddRow("id-1", "acme.pdf", "acme", "id-1/acme.pdf", "indexed", 120, 34, "", now, now)
	mock.ExpectQuery("SELECT id, filename").WithArgs("id-1").WillReturnRows(rows)

	f, err := repo.GetByID(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.Status != domain.FilingIndexed || f.ChunkCount != 34 {
		t.Fatalf("bad scan %+v", f)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT id, filename").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrFilingNotFound) {
		t.Fatalf("expected filing not found, got %v", err)
	}
}

func TestUpdateStatusRequiresExistingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE filings SET status").
		WithArgs("missing", "failed", "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.FilingFailed, "boom")
	if !domain.IsKind(err, domain.ErrFilingNotFound) {
		t.Fatalf("expected filing not found, got %v", err)
	}
}

func TestSaveCounts(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE filings SET element_count").
		WithArgs("id-1", 120, 34, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveCounts(context.Background(), "id-1", 120, 34); err != nil {
		t.Fatalf("save counts: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
