package index

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/models"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	pgMaxOpenConns  = 10
	pgMaxIdleConns  = 5
	connMaxLifetime = 5 * time.Minute

	// fixed width so lexical order matches time order
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type sqlBackend struct {
	db      *sql.DB
	dialect dialect
}

func openSQLite(ctx context.Context, path string) (*sqlBackend, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	b, err := newSQLBackend(ctx, db, dialectSQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func newSQLBackend(ctx context.Context, db *sql.DB, d dialect) (*sqlBackend, error) {
	if err := runMigrations(ctx, db, d); err != nil {
		return nil, err
	}
	return &sqlBackend{db: db, dialect: d}, nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}

const upsertRecordSQL = `INSERT INTO file_records
  (blob_id, owner, file_name, file_size_bytes, algorithm, tx_id, status, mime_type, uploaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (blob_id) DO UPDATE SET
  owner = excluded.owner,
  file_name = excluded.file_name,
  file_size_bytes = excluded.file_size_bytes,
  algorithm = excluded.algorithm,
  tx_id = excluded.tx_id,
  status = excluded.status,
  mime_type = excluded.mime_type,
  uploaded_at = excluded.uploaded_at`

const listByOwnerSQL = `SELECT blob_id, owner, file_name, file_size_bytes, algorithm, tx_id, status, mime_type, uploaded_at
FROM file_records
WHERE owner = ?
ORDER BY uploaded_at DESC, blob_id DESC`

func (b *sqlBackend) upsert(ctx context.Context, rec models.FileRecord) error {
	_, err := b.db.ExecContext(ctx, b.dialect.rebind(upsertRecordSQL),
		rec.BlobID,
		rec.Owner,
		rec.FileName,
		rec.FileSizeBytes,
		rec.Algorithm,
		rec.TxID,
		string(rec.Status),
		rec.MimeType,
		rec.UploadedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert file record: %w", err)
	}
	return nil
}

func (b *sqlBackend) listByOwner(ctx context.Context, owner string) ([]models.FileRecord, error) {
	rows, err := b.db.QueryContext(ctx, b.dialect.rebind(listByOwnerSQL), owner)
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	defer rows.Close()

	records := []models.FileRecord{}
	for rows.Next() {
		var (
			rec        models.FileRecord
			status     string
			uploadedAt string
		)
		if err := rows.Scan(
			&rec.BlobID,
			&rec.Owner,
			&rec.FileName,
			&rec.FileSizeBytes,
			&rec.Algorithm,
			&rec.TxID,
			&status,
			&rec.MimeType,
			&uploadedAt,
		); err != nil {
			return nil, err
		}
		rec.Status = models.FileStatus(status)
		ts, err := time.Parse(timestampLayout, uploadedAt)
		if err != nil {
			return nil, fmt.Errorf("parse uploaded_at for %s: %w", rec.BlobID, err)
		}
		rec.UploadedAt = ts
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (b *sqlBackend) close() error {
	return b.db.Close()
}
