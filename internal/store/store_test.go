package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/careervec/internal/embedding"
	"github.com/hyperjump/careervec/internal/models"
	"github.com/hyperjump/careervec/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 64

// countingEmbedder wraps the hash embedder, counts batch calls and can return
// vectors of the wrong length.
type countingEmbedder struct {
	*embedding.HashEmbedder
	calls  int
	outDim int
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out, err := e.HashEmbedder.EmbedBatch(ctx, texts)
	if err != nil || e.outDim == 0 {
		return out, err
	}
	for i := range out {
		out[i] = make([]float32, e.outDim)
	}
	return out, nil
}

func newTestStore(t *testing.T, dir string) (*VectorStore, *countingEmbedder) {
	t.Helper()
	emb := &countingEmbedder{HashEmbedder: embedding.NewHashEmbedder("test-model", testDim)}
	s, err := New(Config{Dimension: testDim, IndexType: "flat", StorageDir: dir}, emb, nil)
	require.NoError(t, err)
	return s, emb
}

var careerTexts = []string{
	"Built data pipelines in Python and Airflow for a fintech startup.",
	"Led a team of five Go engineers building payment APIs.",
	"Bachelor of Science in Computer Science, minor in statistics.",
}

func TestNew_Validation(t *testing.T) {
	dir := t.TempDir()
	emb := embedding.NewHashEmbedder("m", testDim)

	_, err := New(Config{Dimension: 0, StorageDir: dir}, emb, nil)
	assert.True(t, errors.Is(err, vector.ErrInvalidArgument), "zero dimension: %v", err)

	_, err = New(Config{Dimension: testDim, IndexType: "lsh", StorageDir: dir}, emb, nil)
	assert.True(t, errors.Is(err, vector.ErrUnsupportedIndexType), "unknown kind: %v", err)

	_, err = New(Config{Dimension: 384, StorageDir: dir}, emb, nil)
	assert.True(t, errors.Is(err, vector.ErrDimensionMismatch), "embedder dimension: %v", err)

	_, err = New(Config{Dimension: testDim, StorageDir: dir}, nil, nil)
	assert.Error(t, err)
}

func TestNew_CreatesStorageDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "models")
	s, _ := newTestStore(t, dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, s.StorageDir())
	assert.Equal(t, "test-model", s.ModelName())
	assert.Equal(t, testDim, s.Dimension())
	assert.Equal(t, "flat", s.IndexType())
}

func TestSearch_EmptyStore(t *testing.T) {
	s, emb := newTestStore(t, t.TempDir())
	hits, err := s.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
	assert.Equal(t, 0, emb.calls, "empty store should not embed the query")
}

func TestAddDocuments_EmptyIsNoop(t *testing.T) {
	s, emb := newTestStore(t, t.TempDir())
	require.NoError(t, s.AddDocuments(context.Background(), nil, nil))
	assert.False(t, s.HasIndex())
	assert.Equal(t, 0, emb.calls)
}

func TestAddDocuments_SingleBatch(t *testing.T) {
	s, emb := newTestStore(t, t.TempDir())
	require.NoError(t, s.AddDocuments(context.Background(), careerTexts, nil))
	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, 3, s.Size())
	assert.Len(t, s.Metadata(), 3)
}

func TestAddDocuments_DefaultMetadata(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	long := strings.Repeat("ü", 150)
	require.NoError(t, s.AddDocuments(context.Background(), []string{"short text", long}, nil))
	meta := s.Metadata()
	assert.Equal(t, "short text", meta[0]["text"])
	assert.Equal(t, strings.Repeat("ü", 100), meta[1]["text"])
}

func TestAddDocuments_ArgumentMismatch(t *testing.T) {
	s, emb := newTestStore(t, t.TempDir())
	err := s.AddDocuments(context.Background(), careerTexts, []models.Metadata{{"a": 1}})
	assert.True(t, errors.Is(err, ErrArgumentMismatch), "got %v", err)
	assert.Equal(t, 0, emb.calls, "mismatch must be detected before embedding")
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Metadata())
}

func TestAddDocuments_EmbedderDimensionMismatch(t *testing.T) {
	s, emb := newTestStore(t, t.TempDir())
	emb.outDim = testDim + 1
	err := s.AddDocuments(context.Background(), careerTexts, nil)
	assert.True(t, errors.Is(err, vector.ErrDimensionMismatch), "got %v", err)
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Metadata())
}

func TestAddDocuments_MetadataAlignment(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		texts := []string{fmt.Sprintf("role %d", i), fmt.Sprintf("skill %d", i)}
		meta := []models.Metadata{{"n": i * 2}, {"n": i*2 + 1}}
		require.NoError(t, s.AddDocuments(ctx, texts, meta))
		assert.Equal(t, s.Size(), len(s.Metadata()))
	}
	for i, m := range s.Metadata() {
		assert.Equal(t, i, m["n"])
	}
}

func TestSearch_SelfQuery(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	ctx := context.Background()
	meta := []models.Metadata{{"id": "pipelines"}, {"id": "payments"}, {"id": "degree"}}
	require.NoError(t, s.AddDocuments(ctx, careerTexts, meta))

	hits, err := s.Search(ctx, careerTexts[1], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "payments", hits[0].Metadata["id"])
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

// scaledEmbedder returns its own fixed vectors, which are not unit length, so tests
// can check the store normalizes and leaves them unmodified.
type scaledEmbedder struct {
	vectors map[string][]float32
}

func newScaledEmbedder() *scaledEmbedder {
	vec := func(x, y, z float32) []float32 {
		v := make([]float32, testDim)
		v[0], v[1], v[2] = x, y, z
		return v
	}
	return &scaledEmbedder{vectors: map[string][]float32{
		"go engineer":      vec(3, 4, 0),
		"data scientist":   vec(0, 0, 10),
		"senior go lead":   vec(6, 8, 0),
		"tiny data intern": vec(0, 0, 0.5),
	}}
}

func (e *scaledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (e *scaledEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *scaledEmbedder) Dimensions() int   { return testDim }
func (e *scaledEmbedder) ModelName() string { return "scaled" }
func (e *scaledEmbedder) Close() error      { return nil }

func storedVectors(t *testing.T, s *VectorStore) [][]float32 {
	t.Helper()
	flat, ok := s.index.(*vector.FlatIndex)
	require.True(t, ok, "index is %T", s.index)
	out := make([][]float32, flat.Size())
	for i := range out {
		v, ok := flat.Vector(i)
		require.True(t, ok)
		out[i] = v
	}
	return out
}

func TestAddDocuments_NormalizesVectors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	emb := newScaledEmbedder()
	s, err := New(Config{Dimension: testDim, StorageDir: dir}, emb, nil)
	require.NoError(t, err)

	require.NoError(t, s.AddDocuments(ctx, []string{"go engineer", "data scientist"}, nil))
	for i, v := range storedVectors(t, s) {
		assert.InDelta(t, 1.0, vector.L2Norm(v), 1e-6, "vector %d", i)
	}

	// embedder output is copied before normalization
	assert.Equal(t, float32(3), emb.vectors["go engineer"][0])
	assert.Equal(t, float32(4), emb.vectors["go engineer"][1])
	assert.Equal(t, float32(10), emb.vectors["data scientist"][2])

	// same direction, different length: only normalized vectors meet at distance 0
	hits, err := s.Search(ctx, "senior go lead", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "go engineer", hits[0].Metadata["text"])
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	hits, err = s.Search(ctx, "tiny data intern", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "data scientist", hits[0].Metadata["text"])
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, float32(0.5), emb.vectors["tiny data intern"][2])

	require.NoError(t, s.Save("", ""))
	reloaded, err := New(Config{Dimension: testDim, StorageDir: dir}, newScaledEmbedder(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Size())
	for i, v := range storedVectors(t, reloaded) {
		assert.InDelta(t, 1.0, vector.L2Norm(v), 1e-6, "reloaded vector %d", i)
	}
	hits, err = reloaded.Search(ctx, "senior go lead", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestSearch_ClampsAndOrders(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	ctx := context.Background()
	require.NoError(t, s.AddDocuments(ctx, careerTexts, nil))

	hits, err := s.Search(ctx, "Go payment APIs", 100)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i, h := range hits {
		assert.Greater(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, hits[i-1].Score, h.Score, "scores must be non-increasing")
		}
	}
}

func TestSearch_DefaultK(t *testing.T) {
	s, _ := newTestStore(t, t.TempDir())
	ctx := context.Background()
	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("project number %d", i)
	}
	require.NoError(t, s.AddDocuments(ctx, texts, nil))
	hits, err := s.Search(ctx, "project", 0)
	require.NoError(t, err)
	assert.Len(t, hits, DefaultK)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, _ := newTestStore(t, dir)
	meta := []models.Metadata{{"source_file": "a.pdf"}, {"source_file": "b.docx"}, {"source_file": "c.md"}}
	require.NoError(t, s.AddDocuments(ctx, careerTexts, meta))
	require.NoError(t, s.Save("", ""))

	before, err := s.Search(ctx, "statistics degree", 3)
	require.NoError(t, err)

	reloaded, _ := newTestStore(t, dir)
	assert.Equal(t, 3, reloaded.Size())
	after, err := reloaded.Search(ctx, "statistics degree", 3)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Score, after[i].Score)
		assert.Equal(t, before[i].Metadata["source_file"], after[i].Metadata["source_file"])
	}

	// reloaded store keeps accepting inserts
	require.NoError(t, reloaded.AddDocuments(ctx, []string{"Kubernetes certification"}, nil))
	assert.Equal(t, 4, reloaded.Size())
	assert.Len(t, reloaded.Metadata(), 4)
}

func TestSave_MetadataIsIndentedJSONArray(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestStore(t, dir)
	require.NoError(t, s.AddDocuments(context.Background(), []string{"<b>R&D</b> lead"}, nil))
	require.NoError(t, s.Save("", ""))

	_, metaPath := s.Paths()
	raw, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "[\n  {"), "got %q", raw)
	assert.Contains(t, string(raw), "<b>R&D</b>")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded, 1)
}

func TestSave_NoIndexWritesNothing(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestStore(t, dir)
	require.NoError(t, s.Save("", ""))
	indexPath, metaPath := s.Paths()
	assert.NoFileExists(t, indexPath)
	assert.NoFileExists(t, metaPath)
}

func TestSave_CustomPaths(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestStore(t, dir)
	require.NoError(t, s.AddDocuments(context.Background(), careerTexts, nil))

	abs := filepath.Join(t.TempDir(), "elsewhere.json")
	require.NoError(t, s.Save("snapshots/idx.bin", abs))
	assert.FileExists(t, filepath.Join(dir, "snapshots", "idx.bin"))
	assert.FileExists(t, abs)

	indexPath, metaPath := s.Paths()
	assert.NoFileExists(t, indexPath)
	assert.NoFileExists(t, metaPath)
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, _ := newTestStore(t, dir)
	require.NoError(t, s.AddDocuments(ctx, careerTexts, nil))
	require.NoError(t, s.Save("", ""))

	s.Clear()
	assert.Equal(t, 0, s.Size())
	assert.False(t, s.HasIndex())
	assert.Empty(t, s.Metadata())
	hits, err := s.Search(ctx, "python", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// disk untouched until the next save
	indexPath, metaPath := s.Paths()
	assert.FileExists(t, indexPath)
	assert.FileExists(t, metaPath)
	reloaded, _ := newTestStore(t, dir)
	assert.Equal(t, 3, reloaded.Size())
}

func TestLoad_RecoversFromBadState(t *testing.T) {
	seed := func(t *testing.T) string {
		dir := t.TempDir()
		s, _ := newTestStore(t, dir)
		require.NoError(t, s.AddDocuments(context.Background(), careerTexts, nil))
		require.NoError(t, s.Save("", ""))
		return dir
	}

	tests := []struct {
		name   string
		damage func(t *testing.T, dir string)
	}{
		{"metadata missing", func(t *testing.T, dir string) {
			require.NoError(t, os.Remove(filepath.Join(dir, MetadataFileName)))
		}},
		{"index missing", func(t *testing.T, dir string) {
			require.NoError(t, os.Remove(filepath.Join(dir, IndexFileName)))
		}},
		{"index corrupt", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), []byte("garbage"), 0644))
		}},
		{"metadata corrupt", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFileName), []byte("{not json"), 0644))
		}},
		{"count disagreement", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFileName), []byte(`[{"text":"only one"}]`), 0644))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := seed(t)
			tt.damage(t, dir)
			s, _ := newTestStore(t, dir)
			assert.Equal(t, 0, s.Size())
			assert.Empty(t, s.Metadata())

			// a clean slate still works
			require.NoError(t, s.AddDocuments(context.Background(), []string{"fresh start"}, nil))
			assert.Equal(t, 1, s.Size())
		})
	}
}

func TestLoad_DimensionChangeStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestStore(t, dir)
	require.NoError(t, s.AddDocuments(context.Background(), careerTexts, nil))
	require.NoError(t, s.Save("", ""))

	emb := embedding.NewHashEmbedder("bigger", 128)
	other, err := New(Config{Dimension: 128, StorageDir: dir}, emb, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, other.Size())
}

func TestApproximateKindBehavesExactly(t *testing.T) {
	emb := embedding.NewHashEmbedder("m", testDim)
	s, err := New(Config{Dimension: testDim, IndexType: "hnsw", StorageDir: t.TempDir()}, emb, nil)
	require.NoError(t, err)
	assert.Equal(t, "hnsw", s.IndexType())
	ctx := context.Background()
	require.NoError(t, s.AddDocuments(ctx, careerTexts, nil))
	hits, err := s.Search(ctx, careerTexts[2], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestStore(t, dir)

	st, err := s.Status()
	require.NoError(t, err)
	assert.False(t, st.HasIndex)
	assert.Equal(t, 0, st.Vectors)
	assert.Zero(t, st.DiskBytes)

	require.NoError(t, s.AddDocuments(context.Background(), careerTexts, nil))
	require.NoError(t, s.Save("", ""))
	st, err = s.Status()
	require.NoError(t, err)
	assert.True(t, st.HasIndex)
	assert.Equal(t, len(careerTexts), st.Vectors)
	assert.Equal(t, "test-model", st.Model)
	assert.Equal(t, int64(16+len(careerTexts)*testDim*4), st.IndexBytes)
	assert.Positive(t, st.MetadataBytes)
	assert.Equal(t, st.IndexBytes+st.MetadataBytes, st.DiskBytes)
}

func TestPurge(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestStore(t, dir)
	require.NoError(t, s.Purge(), "purge with nothing on disk")

	require.NoError(t, s.AddDocuments(context.Background(), careerTexts, nil))
	require.NoError(t, s.Save("", ""))
	require.NoError(t, s.Purge())
	assert.Equal(t, 0, s.Size())
	indexPath, metaPath := s.Paths()
	assert.NoFileExists(t, indexPath)
	assert.NoFileExists(t, metaPath)

	reloaded, _ := newTestStore(t, dir)
	assert.Equal(t, 0, reloaded.Size())
}
