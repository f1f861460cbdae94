package index

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

func newMockPostgres(t *testing.T) (*sqlBackend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(len(migrations)))

	b, err := newSQLBackend(context.Background(), db, dialectPostgres)
	require.NoError(t, err)
	return b, mock
}

func TestPostgresMigrationsUseNumberedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE file_records ADD COLUMN mime_type")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)")).
		WithArgs(2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, runMigrations(context.Background(), db, dialectPostgres))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsert(t *testing.T) {
	b, mock := newMockPostgres(t)
	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	rec := record("blob-pg", "0xaa", at)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO file_records")+"(?s).*"+regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)")+".*ON CONFLICT").
		WithArgs("blob-pg", "0xaa", "blob-pg.bin", int64(42), "AES-GCM", "tx-blob-pg", "encrypted", "application/octet-stream", "2025-06-01T08:30:00.000000000Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, b.upsert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByOwner(t *testing.T) {
	b, mock := newMockPostgres(t)

	columns := []string{"blob_id", "owner", "file_name", "file_size_bytes", "algorithm", "tx_id", "status", "mime_type", "uploaded_at"}
	rows := sqlmock.NewRows(columns).
		AddRow("b2", "0xaa", "two.bin", int64(2), "", "tx-2", "stored", "text/plain", "2025-06-02T00:00:00.000000000Z").
		AddRow("b1", "0xaa", "one.bin", int64(1), "AES", "tx-1", "encrypted", "text/plain", "2025-06-01T00:00:00.000000000Z")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE owner = $1")).
		WithArgs("0xaa").
		WillReturnRows(rows)

	got, err := b.listByOwner(context.Background(), "0xaa")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "b2", got[0].BlobID)
	require.Equal(t, models.FileStatusStored, got[0].Status)
	require.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), got[0].UploadedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListEmpty(t *testing.T) {
	b, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM file_records")).
		WithArgs("0xnone").
		WillReturnRows(sqlmock.NewRows([]string{"blob_id"}))

	got, err := b.listByOwner(context.Background(), "0xnone")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}
