package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/careervec/internal/embedding"
	"github.com/hyperjump/careervec/internal/extract"
	"github.com/hyperjump/careervec/internal/fileid"
	"github.com/hyperjump/careervec/internal/storage"
	"github.com/hyperjump/careervec/internal/store"
)

const testDim = 32

type testEnv struct {
	dataDir    string
	storageDir string
	catalog    *storage.SQLiteCatalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		dataDir:    filepath.Join(root, "data"),
		storageDir: filepath.Join(root, "models"),
	}
	if err := os.MkdirAll(env.dataDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(env.storageDir, 0755); err != nil {
		t.Fatal(err)
	}
	cat, err := storage.NewSQLiteCatalog(filepath.Join(env.storageDir, storage.CatalogFileName))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cat.Close() })
	env.catalog = cat
	return env
}

// indexer builds a fresh store over the env's storage directory, reloading whatever was saved.
func (env *testEnv) indexer(t *testing.T, catalog storage.Catalog, opts ...IndexerOption) (*Indexer, *store.VectorStore) {
	t.Helper()
	emb := embedding.NewHashEmbedder("test-model", testDim)
	vs, err := store.New(store.Config{Dimension: testDim, IndexType: "flat", StorageDir: env.storageDir}, emb, nil)
	if err != nil {
		t.Fatal(err)
	}
	chunker, err := NewChunker(60, 10)
	if err != nil {
		t.Fatal(err)
	}
	return NewIndexer(vs, catalog, extract.NewParser(nil), chunker, opts...), vs
}

func (env *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(env.dataDir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const resume = "Jane Doe. Senior software engineer with eight years of Go and Python. " +
	"Built machine learning pipelines for fraud detection. Led a team of four engineers."

const transcript = "Bachelor of Science in Computer Science. Coursework in algorithms, " +
	"databases and statistics. Graduated with honors."

func TestRun_MissingDirectory(t *testing.T) {
	env := newTestEnv(t)
	idx, _ := env.indexer(t, env.catalog)
	_, err := idx.Run(context.Background(), filepath.Join(env.dataDir, "missing"))
	if !errors.Is(err, extract.ErrPathInvalid) {
		t.Fatalf("Run(missing) error = %v, want ErrPathInvalid", err)
	}
}

func TestRun_EmptyDirectory(t *testing.T) {
	env := newTestEnv(t)
	idx, vs := env.indexer(t, env.catalog)
	report, err := idx.Run(context.Background(), env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 0 || report.Indexed != 0 || report.Chunks != 0 {
		t.Errorf("report = %+v, want zero counts", report)
	}
	if vs.Size() != 0 {
		t.Errorf("store size = %d, want 0", vs.Size())
	}
}

func TestRun_IndexesDocuments(t *testing.T) {
	env := newTestEnv(t)
	profile := filepath.Join(env.dataDir, "profile.json")
	idx, vs := env.indexer(t, env.catalog, WithProfilePath(profile))
	resumePath := env.write(t, "resume.txt", resume)
	env.write(t, "transcript.md", transcript)
	ctx := context.Background()

	report, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 2 || report.Indexed != 2 || report.Skipped != 0 {
		t.Errorf("report = %+v, want 2 documents indexed", report)
	}
	if report.Rebuilt {
		t.Error("first run into an empty catalog should append, not rebuild")
	}
	if report.Chunks < 3 {
		t.Errorf("chunks = %d, want at least 3", report.Chunks)
	}
	if vs.Size() != report.Chunks || report.TotalVectors != report.Chunks {
		t.Errorf("store size = %d, total = %d, chunks = %d", vs.Size(), report.TotalVectors, report.Chunks)
	}

	indexPath, metaPath := vs.Paths()
	for _, p := range []string{indexPath, metaPath, profile} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}

	md := vs.Metadata()
	first := md[0]
	for _, key := range []string{MetaSourceFile, MetaChunkIndex, MetaTotalChunks, MetaFileFormat, MetaTextPreview, MetaChunkID, MetaDocumentID} {
		if _, ok := first[key]; !ok {
			t.Errorf("metadata missing %q: %v", key, first)
		}
	}
	if first[MetaSourceFile] != "resume.txt" {
		t.Errorf("source_file = %v, want resume.txt (name order)", first[MetaSourceFile])
	}
	if first[MetaFileFormat] != ".txt" {
		t.Errorf("file_format = %v, want .txt", first[MetaFileFormat])
	}
	if first[MetaDocumentID] != fileid.DocumentID(resumePath) {
		t.Errorf("document_id = %v, want %s", first[MetaDocumentID], fileid.DocumentID(resumePath))
	}
	if first[MetaChunkIndex] != 0 {
		t.Errorf("chunk_index = %v, want 0", first[MetaChunkIndex])
	}

	n, err := env.catalog.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("catalog count = %d, want 2", n)
	}
	entry, err := env.catalog.Get(ctx, fileid.DocumentID(resumePath))
	if err != nil {
		t.Fatal(err)
	}
	if entry.Name != "resume.txt" || entry.ChunkCount == 0 {
		t.Errorf("catalog entry = %+v", entry)
	}
}

func TestRun_SkipsUnchangedAndReloads(t *testing.T) {
	env := newTestEnv(t)
	profile := filepath.Join(env.dataDir, "profile.json")
	idx, vs := env.indexer(t, env.catalog, WithProfilePath(profile))
	env.write(t, "resume.txt", resume)
	env.write(t, "transcript.md", transcript)
	ctx := context.Background()

	first, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}

	// A new process reloads the saved store; profile.json in the data dir must not be ingested.
	idx2, vs2 := env.indexer(t, env.catalog, WithProfilePath(profile))
	if vs2.Size() != vs.Size() {
		t.Fatalf("reloaded size = %d, want %d", vs2.Size(), vs.Size())
	}
	second, err := idx2.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if second.Documents != 2 {
		t.Errorf("documents = %d, want 2 (profile.json excluded)", second.Documents)
	}
	if second.Rebuilt || second.Indexed != 0 || second.Skipped != 2 {
		t.Errorf("second report = %+v, want everything skipped", second)
	}
	if second.TotalVectors != first.TotalVectors {
		t.Errorf("total vectors = %d, want %d", second.TotalVectors, first.TotalVectors)
	}
}

func TestRun_AppendsNewDocuments(t *testing.T) {
	env := newTestEnv(t)
	idx, vs := env.indexer(t, env.catalog)
	env.write(t, "resume.txt", resume)
	ctx := context.Background()

	first, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	env.write(t, "transcript.md", transcript)
	second, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if second.Rebuilt {
		t.Error("adding a file should not rebuild")
	}
	if second.Indexed != 1 || second.Skipped != 1 {
		t.Errorf("report = %+v, want 1 indexed 1 skipped", second)
	}
	if vs.Size() != first.Chunks+second.Chunks {
		t.Errorf("store size = %d, want %d", vs.Size(), first.Chunks+second.Chunks)
	}
}

func TestRun_RebuildsOnChangeAndRemoval(t *testing.T) {
	env := newTestEnv(t)
	idx, vs := env.indexer(t, env.catalog)
	resumePath := env.write(t, "resume.txt", resume)
	transcriptPath := env.write(t, "transcript.md", transcript)
	ctx := context.Background()

	if _, err := idx.Run(ctx, env.dataDir); err != nil {
		t.Fatal(err)
	}

	env.write(t, "resume.txt", resume+" Also speaks fluent Spanish and Portuguese.")
	changed, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if !changed.Rebuilt || changed.Indexed != 2 {
		t.Errorf("after change report = %+v, want rebuild of 2 documents", changed)
	}
	if vs.Size() != changed.Chunks {
		t.Errorf("store size = %d, want %d (no stale vectors)", vs.Size(), changed.Chunks)
	}

	if err := os.Remove(transcriptPath); err != nil {
		t.Fatal(err)
	}
	removed, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if !removed.Rebuilt || removed.Indexed != 1 {
		t.Errorf("after removal report = %+v, want rebuild of 1 document", removed)
	}
	if vs.Size() != removed.Chunks {
		t.Errorf("store size = %d, want %d", vs.Size(), removed.Chunks)
	}
	for _, m := range vs.Metadata() {
		if m[MetaSourceFile] != "resume.txt" {
			t.Errorf("stale metadata after removal: %v", m)
		}
	}
	entries, err := env.catalog.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != fileid.DocumentID(resumePath) {
		t.Errorf("catalog entries = %v, want only resume.txt", entries)
	}
}

func TestRun_ClearsWhenAllDocumentsRemoved(t *testing.T) {
	env := newTestEnv(t)
	idx, vs := env.indexer(t, env.catalog)
	resumePath := env.write(t, "resume.txt", resume)
	ctx := context.Background()

	first, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if first.Chunks == 0 {
		t.Fatal("expected chunks from the first run")
	}

	if err := os.Remove(resumePath); err != nil {
		t.Fatal(err)
	}
	report, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Rebuilt || report.Documents != 0 || report.TotalVectors != 0 {
		t.Errorf("report = %+v, want a rebuild to an empty store", report)
	}
	if vs.Size() != 0 {
		t.Errorf("store size = %d, want 0", vs.Size())
	}
	hits, err := vs.Search(ctx, "machine learning", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("search returned %d hits from a removed file", len(hits))
	}
	if n, err := env.catalog.Count(ctx); err != nil || n != 0 {
		t.Errorf("catalog count = %d, %v, want 0", n, err)
	}

	_, reloaded := env.indexer(t, env.catalog)
	if reloaded.Size() != 0 || reloaded.HasIndex() {
		t.Errorf("reloaded store has %d vectors, want an empty store", reloaded.Size())
	}

	again, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if again.Rebuilt {
		t.Error("an already empty store should not be rebuilt again")
	}
}

func TestRun_RebuildWithoutTextRemovesSavedIndex(t *testing.T) {
	env := newTestEnv(t)
	idx, vs := env.indexer(t, env.catalog)
	env.write(t, "resume.txt", resume)
	ctx := context.Background()

	if _, err := idx.Run(ctx, env.dataDir); err != nil {
		t.Fatal(err)
	}

	// the file stays but loses all of its text
	env.write(t, "resume.txt", "   \n  ")
	report, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Rebuilt || report.Chunks != 0 {
		t.Errorf("report = %+v, want a rebuild with no chunks", report)
	}
	if vs.Size() != 0 {
		t.Errorf("store size = %d, want 0", vs.Size())
	}
	indexPath, metadataPath := vs.Paths()
	for _, p := range []string{indexPath, metadataPath} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should be removed, stat err = %v", filepath.Base(p), err)
		}
	}

	_, reloaded := env.indexer(t, env.catalog)
	if reloaded.Size() != 0 {
		t.Errorf("reloaded store has %d vectors, want 0", reloaded.Size())
	}
}

func TestRun_RebuildsWhenStoreIsLost(t *testing.T) {
	env := newTestEnv(t)
	idx, vs := env.indexer(t, env.catalog)
	env.write(t, "resume.txt", resume)
	ctx := context.Background()

	first, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	indexPath, metaPath := vs.Paths()
	_ = os.Remove(indexPath)
	_ = os.Remove(metaPath)

	idx2, vs2 := env.indexer(t, env.catalog)
	second, err := idx2.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Rebuilt || vs2.Size() != first.Chunks {
		t.Errorf("report = %+v, size = %d, want rebuild to %d vectors", second, vs2.Size(), first.Chunks)
	}
}

func TestRun_WithoutCatalogAlwaysRebuilds(t *testing.T) {
	env := newTestEnv(t)
	idx, vs := env.indexer(t, nil)
	env.write(t, "resume.txt", resume)
	ctx := context.Background()

	first, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	second, err := idx.Run(ctx, env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Rebuilt {
		t.Error("expected rebuild without a catalog")
	}
	if vs.Size() != first.Chunks {
		t.Errorf("store size = %d, want %d (no duplicates)", vs.Size(), first.Chunks)
	}
}

func TestRun_ReportsFailures(t *testing.T) {
	env := newTestEnv(t)
	idx, _ := env.indexer(t, env.catalog)
	env.write(t, "resume.txt", resume)
	env.write(t, "broken.docx", "this is not a zip archive")

	report, err := idx.Run(context.Background(), env.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 1 || len(report.Failures) != 1 {
		t.Errorf("report = %+v, want 1 document and 1 failure", report)
	}
}

func TestProbe(t *testing.T) {
	env := newTestEnv(t)
	idx, _ := env.indexer(t, env.catalog)
	env.write(t, "resume.txt", resume)
	env.write(t, "transcript.md", transcript)
	ctx := context.Background()

	if _, err := idx.Run(ctx, env.dataDir); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Probe(ctx, nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(DefaultProbeQueries) {
		t.Fatalf("got %d probe results, want %d", len(results), len(DefaultProbeQueries))
	}
	for i, r := range results {
		if r.Query != DefaultProbeQueries[i] {
			t.Errorf("result %d query = %q", i, r.Query)
		}
		if len(r.Hits) == 0 || len(r.Hits) > 3 {
			t.Errorf("query %q: %d hits, want 1..3", r.Query, len(r.Hits))
		}
		for j := 1; j < len(r.Hits); j++ {
			if r.Hits[j].Score > r.Hits[j-1].Score {
				t.Errorf("query %q: hits not ordered by score", r.Query)
			}
		}
	}

	custom, err := idx.Probe(ctx, []string{"Go engineer"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(custom) != 1 || len(custom[0].Hits) != 1 {
		t.Errorf("custom probe = %+v", custom)
	}
}
