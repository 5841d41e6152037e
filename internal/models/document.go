// Package models defines core data structures for parsed documents, chunks, and search hits.
package models

import "time"

// Metadata is a descriptive record stored alongside (not inside) an embedding vector.
// Records are position-aligned with the vectors of the similarity index.
type Metadata = map[string]any

// ParsedDocument is the normalized text of one source file plus its provenance.
type ParsedDocument struct {
	ID       string           `json:"id"`
	Content  string           `json:"content"`
	Format   string           `json:"format"`
	Metadata DocumentMetadata `json:"metadata"`
}

// DocumentMetadata describes the file a ParsedDocument was read from.
type DocumentMetadata struct {
	FilePath string    `json:"file_path"`
	FileName string    `json:"file_name"`
	FileSize int64     `json:"file_size"`
	Format   string    `json:"format"`
	ModTime  time.Time `json:"mod_time"`
}

// TextChunk is a contiguous substring of a source document, the unit of embedding and retrieval.
type TextChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// CatalogEntry records a file that has been ingested into the vector store.
type CatalogEntry struct {
	ID         string    `json:"id" db:"id"`
	Path       string    `json:"path" db:"path"`
	Name       string    `json:"name" db:"name"`
	Format     string    `json:"format" db:"format"`
	Size       int64     `json:"size" db:"size"`
	ModTime    int64     `json:"mtime" db:"mtime"` // UnixNano
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
	Content    string    `json:"-" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
