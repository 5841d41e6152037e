package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/careervec/internal/extract"
	"github.com/hyperjump/careervec/internal/models"
	"github.com/hyperjump/careervec/internal/storage"
	"github.com/hyperjump/careervec/internal/store"
	"github.com/hyperjump/careervec/pkg/utils"
	"go.uber.org/zap"
)

// Metadata keys written for every chunk.
const (
	MetaSourceFile  = "source_file"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaFileFormat  = "file_format"
	MetaTextPreview = "text_preview"
	MetaChunkID     = "chunk_id"
	MetaDocumentID  = "document_id"
)

const previewChars = 100

// DefaultProbeQueries are run after ingestion to sanity-check retrieval.
var DefaultProbeQueries = []string{
	"machine learning experience",
	"programming languages",
	"work experience",
}

// Indexer runs the ingestion pipeline: parse the data directory, chunk, attach
// metadata, add to the vector store, record the files in the catalog and save.
type Indexer struct {
	store       *store.VectorStore
	catalog     storage.Catalog
	parser      *extract.Parser
	chunker     *Chunker
	profilePath string
	logger      *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithProfilePath makes Run write profile.json to path. The file is also excluded from parsing.
func WithProfilePath(path string) IndexerOption {
	return func(idx *Indexer) { idx.profilePath = path }
}

// NewIndexer creates an indexer. catalog may be nil, in which case every Run rebuilds the store.
func NewIndexer(vs *store.VectorStore, catalog storage.Catalog, parser *extract.Parser, chunker *Chunker, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:   vs,
		catalog: catalog,
		parser:  parser,
		chunker: chunker,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	return idx
}

// Report summarizes one Run.
type Report struct {
	Documents    int           `json:"documents"`
	Indexed      int           `json:"indexed"`
	Skipped      int           `json:"skipped"`
	Chunks       int           `json:"chunks"`
	Rebuilt      bool          `json:"rebuilt"`
	TotalVectors int           `json:"total_vectors"`
	Failures     []string      `json:"failures,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// Run ingests dataDir. Files whose size and modification time match the catalog
// are skipped and new files are appended. A changed or removed file, or a
// catalog that disagrees with the store, clears the store and re-embeds every
// document, because the index cannot remove vectors. When no document is left
// the store, its files and the catalog are cleared.
func (idx *Indexer) Run(ctx context.Context, dataDir string) (*Report, error) {
	start := time.Now()
	report := &Report{}

	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: data directory not found: %s", extract.ErrPathInvalid, dataDir)
	}

	idx.logger.Info("parsing documents", zap.String("dir", dataDir))
	docs, errs := idx.parser.ParseDirectory(dataDir)
	for _, e := range errs {
		report.Failures = append(report.Failures, e.Error())
	}
	docs = idx.withoutProfile(docs)
	report.Documents = len(docs)
	if len(docs) == 0 {
		idx.logger.Warn("no documents found to parse", zap.String("dir", dataDir))
		stale, err := idx.hasState(ctx)
		if err != nil {
			return nil, err
		}
		if stale {
			idx.logger.Info("all documents removed, clearing vector store")
			if err := idx.reset(ctx); err != nil {
				return nil, err
			}
			report.Rebuilt = true
		}
		report.TotalVectors = idx.store.Size()
		report.Duration = time.Since(start)
		return report, nil
	}
	idx.logger.Info("parsed documents", zap.Int("count", len(docs)), zap.Int("failed", len(errs)))

	if idx.profilePath != "" {
		if err := extract.WriteProfile(docs, idx.profilePath); err != nil {
			return nil, err
		}
		idx.logger.Info("wrote profile", zap.String("path", idx.profilePath))
	}

	pending, rebuild, err := idx.plan(ctx, docs)
	if err != nil {
		return nil, err
	}
	if rebuild {
		idx.logger.Info("rebuilding vector store", zap.Int("documents", len(docs)))
		if err := idx.reset(ctx); err != nil {
			return nil, err
		}
	}
	report.Rebuilt = rebuild
	report.Skipped = len(docs) - len(pending)

	var texts []string
	var metadata []models.Metadata
	chunkCounts := make([]int, len(pending))
	for i, doc := range pending {
		chunks := idx.chunker.ChunkDocument(doc.ID, Preprocess(doc.Content))
		if len(chunks) == 0 {
			idx.logger.Warn("document has no text", zap.String("file", doc.Metadata.FileName))
		}
		chunkCounts[i] = len(chunks)
		for _, ch := range chunks {
			texts = append(texts, ch.Content)
			metadata = append(metadata, chunkMetadata(doc, ch, len(chunks)))
		}
	}
	idx.logger.Info("created text chunks", zap.Int("chunks", len(texts)), zap.Int("documents", len(pending)))

	if err := idx.store.AddDocuments(ctx, texts, metadata); err != nil {
		return nil, fmt.Errorf("add chunks: %w", err)
	}
	if err := idx.store.Save("", ""); err != nil {
		return nil, fmt.Errorf("save vector store: %w", err)
	}
	if err := idx.record(ctx, pending, chunkCounts); err != nil {
		return nil, err
	}

	report.Indexed = len(pending)
	report.Chunks = len(texts)
	report.TotalVectors = idx.store.Size()
	report.Duration = time.Since(start)
	idx.logger.Info("ingestion complete",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("chunks", report.Chunks),
		zap.Int("total_vectors", report.TotalVectors),
		zap.Bool("rebuilt", report.Rebuilt),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// plan returns the documents to embed and whether the store must be rebuilt first.
func (idx *Indexer) plan(ctx context.Context, docs []*models.ParsedDocument) ([]*models.ParsedDocument, bool, error) {
	if idx.catalog == nil {
		return docs, true, nil
	}
	entries, err := idx.catalog.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list catalog: %w", err)
	}

	current := make(map[string]*models.ParsedDocument, len(docs))
	for _, doc := range docs {
		current[doc.ID] = doc
	}
	known := make(map[string]bool, len(entries))
	cataloged := 0
	for _, e := range entries {
		known[e.ID] = true
		cataloged += e.ChunkCount
		doc, ok := current[e.ID]
		if !ok {
			idx.logger.Info("document removed", zap.String("path", e.Path))
			return docs, true, nil
		}
		if doc.Metadata.FileSize != e.Size || doc.Metadata.ModTime.UnixNano() != e.ModTime {
			idx.logger.Info("document changed", zap.String("path", e.Path))
			return docs, true, nil
		}
	}
	if cataloged != idx.store.Size() {
		idx.logger.Info("catalog and vector store disagree",
			zap.Int("cataloged_chunks", cataloged),
			zap.Int("stored_vectors", idx.store.Size()))
		return docs, true, nil
	}

	var pending []*models.ParsedDocument
	for _, doc := range docs {
		if known[doc.ID] {
			idx.logger.Debug("skipping unchanged document", zap.String("file", doc.Metadata.FileName))
			continue
		}
		pending = append(pending, doc)
	}
	return pending, false, nil
}

// reset empties the store, removes its persisted files and clears the catalog.
// The files go too because Save writes nothing when no chunk is added afterwards.
func (idx *Indexer) reset(ctx context.Context) error {
	if err := idx.store.Purge(); err != nil {
		return fmt.Errorf("purge vector store: %w", err)
	}
	if idx.catalog != nil {
		if err := idx.catalog.Reset(ctx); err != nil {
			return fmt.Errorf("reset catalog: %w", err)
		}
	}
	return nil
}

// hasState reports whether anything was ingested before: vectors in the store,
// an index on disk or rows in the catalog.
func (idx *Indexer) hasState(ctx context.Context) (bool, error) {
	if idx.store.HasIndex() || idx.store.Size() > 0 {
		return true, nil
	}
	indexPath, metadataPath := idx.store.Paths()
	for _, p := range []string{indexPath, metadataPath} {
		if _, err := os.Stat(p); err == nil {
			return true, nil
		}
	}
	if idx.catalog == nil {
		return false, nil
	}
	n, err := idx.catalog.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count catalog: %w", err)
	}
	return n > 0, nil
}

func (idx *Indexer) record(ctx context.Context, docs []*models.ParsedDocument, chunkCounts []int) error {
	if idx.catalog == nil {
		return nil
	}
	for i, doc := range docs {
		entry := &models.CatalogEntry{
			ID:         doc.ID,
			Path:       doc.Metadata.FilePath,
			Name:       doc.Metadata.FileName,
			Format:     doc.Format,
			Size:       doc.Metadata.FileSize,
			ModTime:    doc.Metadata.ModTime.UnixNano(),
			ChunkCount: chunkCounts[i],
			Content:    doc.Content,
		}
		if err := idx.catalog.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("record %s: %w", doc.Metadata.FileName, err)
		}
	}
	return nil
}

func (idx *Indexer) withoutProfile(docs []*models.ParsedDocument) []*models.ParsedDocument {
	if idx.profilePath == "" {
		return docs
	}
	profile, err := filepath.Abs(idx.profilePath)
	if err != nil {
		return docs
	}
	out := docs[:0]
	for _, doc := range docs {
		if filepath.Clean(doc.Metadata.FilePath) == profile {
			continue
		}
		out = append(out, doc)
	}
	return out
}

func chunkMetadata(doc *models.ParsedDocument, ch *models.TextChunk, total int) models.Metadata {
	return models.Metadata{
		MetaSourceFile:  doc.Metadata.FileName,
		MetaChunkIndex:  ch.Index,
		MetaTotalChunks: total,
		MetaFileFormat:  doc.Format,
		MetaTextPreview: utils.Truncate(ch.Content, previewChars),
		MetaChunkID:     ch.ID,
		MetaDocumentID:  doc.ID,
	}
}

// ProbeResult holds the hits for one probe query.
type ProbeResult struct {
	Query string              `json:"query"`
	Hits  []*models.SearchHit `json:"hits"`
}

// Probe runs each query against the store and returns the hits, k per query.
// Empty queries means DefaultProbeQueries.
func (idx *Indexer) Probe(ctx context.Context, queries []string, k int) ([]ProbeResult, error) {
	if len(queries) == 0 {
		queries = DefaultProbeQueries
	}
	results := make([]ProbeResult, 0, len(queries))
	for _, q := range queries {
		hits, err := idx.store.Search(ctx, q, k)
		if err != nil {
			return nil, fmt.Errorf("probe %q: %w", q, err)
		}
		for _, h := range hits {
			idx.logger.Info("probe hit",
				zap.String("query", q),
				zap.Float64("score", h.Score),
				zap.Any("source_file", h.Metadata[MetaSourceFile]))
		}
		results = append(results, ProbeResult{Query: q, Hits: hits})
	}
	return results, nil
}
