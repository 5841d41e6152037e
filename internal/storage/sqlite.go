package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/careervec/internal/models"
)

// CatalogFileName is the catalog database file created in the storage directory.
const CatalogFileName = "catalog.db"

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		name TEXT NOT NULL,
		format TEXT NOT NULL,
		size INTEGER NOT NULL,
		mtime INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts the entry or replaces the row with the same ID, keeping its created_at.
func (c *SQLiteCatalog) Upsert(ctx context.Context, entry *models.CatalogEntry) error {
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (id, path, name, format, size, mtime, chunk_count, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   path = excluded.path,
		   name = excluded.name,
		   format = excluded.format,
		   size = excluded.size,
		   mtime = excluded.mtime,
		   chunk_count = excluded.chunk_count,
		   content = excluded.content,
		   updated_at = excluded.updated_at`,
		entry.ID, entry.Path, entry.Name, entry.Format, entry.Size, entry.ModTime,
		entry.ChunkCount, entry.Content, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", entry.Path, err)
	}
	return nil
}

const selectColumns = `SELECT id, path, name, format, size, mtime, chunk_count, content, created_at, updated_at FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.CatalogEntry, error) {
	var e models.CatalogEntry
	if err := row.Scan(&e.ID, &e.Path, &e.Name, &e.Format, &e.Size, &e.ModTime,
		&e.ChunkCount, &e.Content, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// Get returns the entry with the given ID, or ErrNotFound.
func (c *SQLiteCatalog) Get(ctx context.Context, id string) (*models.CatalogEntry, error) {
	e, err := scanEntry(c.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns every entry ordered by path.
func (c *SQLiteCatalog) List(ctx context.Context) ([]*models.CatalogEntry, error) {
	rows, err := c.db.QueryContext(ctx, selectColumns+` ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes an entry by ID. Deleting a missing entry is not an error.
func (c *SQLiteCatalog) Delete(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// Reset removes every entry.
func (c *SQLiteCatalog) Reset(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

// Count returns the number of entries.
func (c *SQLiteCatalog) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Close closes the database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
