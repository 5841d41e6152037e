// Package store keeps an embedder, a similarity index and position-aligned
// metadata together, and persists the pair to a storage directory.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/careervec/internal/embedding"
	"github.com/hyperjump/careervec/internal/models"
	"github.com/hyperjump/careervec/internal/storage"
	"github.com/hyperjump/careervec/internal/vector"
	"github.com/hyperjump/careervec/pkg/utils"
	"go.uber.org/zap"
)

// ErrArgumentMismatch is returned when supplied metadata does not line up with the texts.
var ErrArgumentMismatch = errors.New("argument mismatch")

// File names used under the storage directory.
const (
	IndexFileName    = "vector_index.bin"
	MetadataFileName = "vector_metadata.json"
)

const (
	// DefaultK is used by Search when k <= 0.
	DefaultK = 5
	// defaultPreviewChars is the length of the "text" field in generated metadata.
	defaultPreviewChars = 100
)

// Config describes the store to construct.
type Config struct {
	// ModelName is recorded for status output; empty means the embedder's name.
	ModelName  string
	Dimension  int
	IndexType  string
	StorageDir string
}

// VectorStore owns one index (absent until the first insert), the metadata list
// aligned with it by position, and the embedder used for documents and queries.
// It is not safe for concurrent use; callers serialize access.
type VectorStore struct {
	modelName  string
	dimension  int
	kind       vector.IndexType
	storageDir string

	embedder embedding.Embedder
	index    vector.Index
	metadata []models.Metadata
	logger   *zap.Logger
}

// New validates cfg, checks the embedder against the configured dimension,
// creates the storage directory and reloads any persisted index. A missing,
// partial or unreadable pair on disk is logged and the store starts empty.
func New(cfg Config, embedder embedding.Embedder, logger *zap.Logger) (*VectorStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", vector.ErrInvalidArgument, cfg.Dimension)
	}
	kind, err := vector.ParseIndexType(cfg.IndexType)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", vector.ErrInvalidArgument)
	}
	if embedder.Dimensions() != cfg.Dimension {
		return nil, fmt.Errorf("%w: embedder %s produces %d dimensions, store configured for %d",
			vector.ErrDimensionMismatch, embedder.ModelName(), embedder.Dimensions(), cfg.Dimension)
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "."
	}
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	name := cfg.ModelName
	if name == "" {
		name = embedder.ModelName()
	}
	if kind != vector.IndexTypeFlat {
		logger.Warn("approximate index not implemented, using exact search", zap.String("index_type", string(kind)))
	}

	s := &VectorStore{
		modelName:  name,
		dimension:  cfg.Dimension,
		kind:       kind,
		storageDir: cfg.StorageDir,
		embedder:   embedder,
		metadata:   []models.Metadata{},
		logger:     logger,
	}
	s.load()
	return s, nil
}

// load restores the persisted pair if both files are present and agree.
func (s *VectorStore) load() {
	indexPath, metadataPath := s.Paths()
	indexExists := fileExists(indexPath)
	metadataExists := fileExists(metadataPath)

	switch {
	case !indexExists && !metadataExists:
		s.logger.Info("no persisted index, starting empty", zap.String("storage_dir", s.storageDir))
		return
	case indexExists != metadataExists:
		s.logger.Warn("persisted index is incomplete, starting empty",
			zap.String("index_path", indexPath),
			zap.Bool("index_exists", indexExists),
			zap.String("metadata_path", metadataPath),
			zap.Bool("metadata_exists", metadataExists))
		return
	}

	idx, meta, err := s.readPersisted(indexPath, metadataPath)
	if err != nil {
		s.logger.Warn("failed to load persisted index, starting empty", zap.Error(err))
		return
	}
	s.index = idx
	s.metadata = meta
	s.logger.Info("loaded persisted index",
		zap.Int("vectors", idx.Size()),
		zap.String("index_path", indexPath))
}

func (s *VectorStore) readPersisted(indexPath, metadataPath string) (vector.Index, []models.Metadata, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read index: %w", err)
	}
	idx, err := vector.NewVectorIndex(string(s.kind), s.dimension)
	if err != nil {
		return nil, nil, err
	}
	if err := idx.UnmarshalBinary(data); err != nil {
		return nil, nil, fmt.Errorf("decode index: %w", err)
	}

	raw, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta []models.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("decode metadata: %w", err)
	}
	if meta == nil {
		meta = []models.Metadata{}
	}
	if len(meta) != idx.Size() {
		return nil, nil, fmt.Errorf("%w: %d metadata records for %d vectors",
			vector.ErrCorruptIndex, len(meta), idx.Size())
	}
	return idx, meta, nil
}

// AddDocuments embeds texts in one batch, normalizes the vectors, inserts them and
// appends one metadata record per text. A nil metadata slice means a default
// record {"text": first 100 characters}. Empty texts is a no-op.
func (s *VectorStore) AddDocuments(ctx context.Context, texts []string, metadata []models.Metadata) error {
	if len(texts) == 0 {
		return nil
	}
	if metadata != nil && len(metadata) != len(texts) {
		return fmt.Errorf("%w: %d metadata records for %d texts", ErrArgumentMismatch, len(metadata), len(texts))
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("embedder returned %d embeddings for %d texts", len(embeddings), len(texts))
	}
	vectors := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		v, err := s.prepare(emb)
		if err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		vectors[i] = v
	}

	if s.index == nil {
		idx, err := vector.NewVectorIndex(string(s.kind), s.dimension)
		if err != nil {
			return err
		}
		s.index = idx
	}
	if err := s.index.Add(ctx, vectors); err != nil {
		return fmt.Errorf("insert vectors: %w", err)
	}

	for i, text := range texts {
		if metadata != nil {
			s.metadata = append(s.metadata, metadata[i])
		} else {
			s.metadata = append(s.metadata, models.Metadata{"text": utils.Prefix(text, defaultPreviewChars)})
		}
	}
	s.logger.Debug("added documents", zap.Int("count", len(texts)), zap.Int("total", s.index.Size()))
	return nil
}

// Search returns up to k hits for query, closest first. k <= 0 means DefaultK.
// An absent or empty index returns an empty result.
func (s *VectorStore) Search(ctx context.Context, query string, k int) ([]*models.SearchHit, error) {
	hits := []*models.SearchHit{}
	if s.index == nil || s.index.Size() == 0 {
		return hits, nil
	}
	if k <= 0 {
		k = DefaultK
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedder returned %d embeddings for 1 query", len(embeddings))
	}
	q, err := s.prepare(embeddings[0])
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	neighbors, err := s.index.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	for _, n := range neighbors {
		if n.Position < 0 || n.Position >= len(s.metadata) {
			continue
		}
		hits = append(hits, &models.SearchHit{
			Score:    vector.SimilarityFromDistance(n.Distance),
			Metadata: s.metadata[n.Position],
		})
	}
	return hits, nil
}

// prepare checks the length of an embedding and returns a unit-length copy.
// The copy keeps cached embeddings owned by the embedder untouched.
func (s *VectorStore) prepare(emb []float32) ([]float32, error) {
	if len(emb) != s.dimension {
		return nil, fmt.Errorf("%w: embedding has %d values, expected %d", vector.ErrDimensionMismatch, len(emb), s.dimension)
	}
	v := make([]float32, len(emb))
	copy(v, emb)
	vector.NormalizeL2(v)
	return v, nil
}

// Save writes the index and metadata. Empty paths mean the defaults; relative
// paths are resolved under the storage directory. Each file is written to a
// temporary name and renamed into place. Without an index nothing is written.
func (s *VectorStore) Save(indexPath, metadataPath string) error {
	if s.index == nil {
		s.logger.Info("no index to save")
		return nil
	}
	defIndex, defMeta := s.Paths()
	indexPath = s.resolve(indexPath, defIndex)
	metadataPath = s.resolve(metadataPath, defMeta)

	data, err := s.index.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := writeFileAtomic(indexPath, data); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.metadata); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := writeFileAtomic(metadataPath, buf.Bytes()); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	s.logger.Info("saved index",
		zap.Int("vectors", s.index.Size()),
		zap.String("index_path", indexPath),
		zap.String("metadata_path", metadataPath))
	return nil
}

func (s *VectorStore) resolve(path, def string) string {
	if path == "" {
		return def
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.storageDir, path)
}

// Clear drops the index and metadata in memory. Files on disk are untouched until the next Save.
func (s *VectorStore) Clear() {
	s.index = nil
	s.metadata = []models.Metadata{}
	s.logger.Info("cleared vector store")
}

// Purge clears the store and removes the persisted pair at the default paths.
func (s *VectorStore) Purge() error {
	s.Clear()
	indexPath, metadataPath := s.Paths()
	for _, p := range []string{indexPath, metadataPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// Size returns the number of stored vectors.
func (s *VectorStore) Size() int {
	if s.index == nil {
		return 0
	}
	return s.index.Size()
}

// HasIndex reports whether an index exists (it is created on first insert or reload).
func (s *VectorStore) HasIndex() bool {
	return s.index != nil
}

// Dimension returns the configured vector length.
func (s *VectorStore) Dimension() int { return s.dimension }

// IndexType returns the configured index kind.
func (s *VectorStore) IndexType() string { return string(s.kind) }

// ModelName returns the embedding model name.
func (s *VectorStore) ModelName() string { return s.modelName }

// StorageDir returns the directory holding the persisted files.
func (s *VectorStore) StorageDir() string { return s.storageDir }

// Metadata returns a copy of the metadata list.
func (s *VectorStore) Metadata() []models.Metadata {
	out := make([]models.Metadata, len(s.metadata))
	copy(out, s.metadata)
	return out
}

// Paths returns the default index and metadata file paths.
func (s *VectorStore) Paths() (indexPath, metadataPath string) {
	return filepath.Join(s.storageDir, IndexFileName), filepath.Join(s.storageDir, MetadataFileName)
}

// Status reports the store configuration, size and disk usage. Documents is left
// for the caller, which owns the catalog.
func (s *VectorStore) Status() (*models.Status, error) {
	st := &models.Status{
		Model:      s.modelName,
		Dimension:  s.dimension,
		IndexType:  string(s.kind),
		Vectors:    s.Size(),
		HasIndex:   s.HasIndex(),
		StorageDir: s.storageDir,
	}
	usage, err := storage.UsageOf(s.storageDir, IndexFileName, MetadataFileName)
	if err != nil {
		return st, fmt.Errorf("disk usage: %w", err)
	}
	st.IndexBytes = usage.IndexBytes
	st.MetadataBytes = usage.MetadataBytes
	st.CatalogBytes = usage.CatalogBytes
	st.DiskBytes = usage.TotalBytes
	return st, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
