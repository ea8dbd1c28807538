// Package docstore provides the persistent per-document store: payload bytes
// plus the int8 embedding, keyed by document id.
//
// It is backed by SQLite in WAL mode, so writes are durable as soon as they
// return - independent of the index snapshot cycle. The store only deals in
// raw bytes; payload encoding is the caller's concern.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a document id is not present in the store.
var ErrNotFound = errors.New("document not found")

const dbFileName = "documents.db"

// Record is a single stored document: the opaque payload and its int8
// embedding.
type Record struct {
	Payload []byte
	EmbInt8 []int8
}

// Store is a persistent key-value store for document records.
//
// All methods are safe for concurrent use (database/sql pools connections).
type Store struct {
	db *sql.DB
}

// Open opens or creates the store inside dir. Parent directories are created
// if they do not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		payload BLOB NOT NULL,
		emb_int8 BLOB NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put inserts or replaces the record for id.
func (s *Store) Put(ctx context.Context, id int64, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, payload, emb_int8) VALUES (?, ?, ?)`,
		id, rec.Payload, int8ToBytes(rec.EmbInt8),
	)
	return err
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	var payload, emb []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, emb_int8 FROM documents WHERE id = ?`, id,
	).Scan(&payload, &emb)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, err
	}
	return Record{Payload: payload, EmbInt8: bytesToInt8(emb)}, nil
}

// Delete removes the record for id, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// Contains reports whether id is present.
func (s *Store) Contains(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE id = ?`, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Snapshot writes a consistent copy of the store to path (VACUUM INTO).
// The target file must not exist.
func (s *Store) Snapshot(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path)
	if err != nil {
		return fmt.Errorf("failed to snapshot store: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func int8ToBytes(v []int8) []byte {
	b := make([]byte, len(v))
	for i, x := range v {
		b[i] = byte(x)
	}
	return b
}

func bytesToInt8(b []byte) []int8 {
	v := make([]int8, len(b))
	for i, x := range b {
		v[i] = int8(x)
	}
	return v
}
