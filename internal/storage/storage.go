// Package storage records which source files have been ingested (the catalog)
// and reports disk usage of the persisted state.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/careervec/internal/models"
)

// ErrNotFound is returned when a catalog entry does not exist.
var ErrNotFound = errors.New("catalog entry not found")

// Catalog persists one entry per ingested file. The ingestion pipeline compares
// entries with the files on disk to decide between skip, append and rebuild.
type Catalog interface {
	Upsert(ctx context.Context, entry *models.CatalogEntry) error
	Get(ctx context.Context, id string) (*models.CatalogEntry, error)
	List(ctx context.Context) ([]*models.CatalogEntry, error)
	Delete(ctx context.Context, id string) error
	// Reset removes every entry.
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Close() error
}
