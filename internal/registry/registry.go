// Package registry is the durable mapping from a logical uploaded file to
// the vector record ids it produced.
//
// File rows are created once per successful ingestion and deleted only as a
// unit; there is no update operation. Duplicate file names are permitted and
// become distinct rows.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koopa0/chatbot-rag/internal/log"
)

var (
	// ErrNotFound indicates no File row exists for the given id.
	ErrNotFound = errors.New("file not found")

	// ErrWrite indicates a registry read or write failed at the database.
	ErrWrite = errors.New("registry operation failed")
)

// File is a persisted registry record.
type File struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"file_name"`
	FileKey   string    `json:"file_key"`
	RecordIDs []string  `json:"records_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// DBTX is the database surface Store needs. *pgxpool.Pool satisfies it;
// tests substitute a fake.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages File rows in PostgreSQL.
type Store struct {
	db     DBTX
	logger log.Logger
}

// New creates a Store.
func New(db DBTX, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const insertSQL = `
INSERT INTO files (file_name, file_key, records_ids)
VALUES ($1, $2, $3)
RETURNING id, file_name, file_key, records_ids, created_at`

// Insert creates a File row and returns it with its assigned id and
// timestamp. recordIDs may be empty.
func (s *Store) Insert(ctx context.Context, fileName, fileKey string, recordIDs []string) (File, error) {
	if recordIDs == nil {
		recordIDs = []string{}
	}

	var f File
	err := s.db.QueryRow(ctx, insertSQL, fileName, fileKey, recordIDs).
		Scan(&f.ID, &f.FileName, &f.FileKey, &f.RecordIDs, &f.CreatedAt)
	if err != nil {
		return File{}, fmt.Errorf("%w: inserting %q: %v", ErrWrite, fileName, err)
	}

	s.logger.Debug("inserted file", "id", f.ID, "file_name", f.FileName, "records", len(f.RecordIDs))
	return f, nil
}

const listSQL = `
SELECT id, file_name, file_key, records_ids, created_at
FROM files
ORDER BY id`

// List returns all File rows in insertion order.
func (s *Store) List(ctx context.Context) ([]File, error) {
	rows, err := s.db.Query(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: listing files: %v", ErrWrite, err)
	}
	defer rows.Close()

	files := make([]File, 0)
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.FileName, &f.FileKey, &f.RecordIDs, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning file row: %v", ErrWrite, err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating file rows: %v", ErrWrite, err)
	}
	return files, nil
}

const getSQL = `
SELECT id, file_name, file_key, records_ids, created_at
FROM files
WHERE id = $1`

// GetByID returns the File with the given id, or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (File, error) {
	var f File
	err := s.db.QueryRow(ctx, getSQL, id).
		Scan(&f.ID, &f.FileName, &f.FileKey, &f.RecordIDs, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return File{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return File{}, fmt.Errorf("%w: getting file %d: %v", ErrWrite, id, err)
	}
	return f, nil
}

// DeleteByID removes the File row only; vector records referenced by the row
// are the caller's responsibility and must be deleted first.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting file %d: %v", ErrWrite, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	s.logger.Debug("deleted file", "id", id)
	return nil
}
