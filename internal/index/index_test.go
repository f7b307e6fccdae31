package index

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insurance-rag/internal/embedding"
	"insurance-rag/internal/models"
)

// memStore keeps saved builds in memory keyed by location.
type memStore struct {
	saved   map[string]*memSearcher
	saveErr error
}

func newMemStore() *memStore { return &memStore{saved: map[string]*memSearcher{}} }

func (m *memStore) Save(_ context.Context, location string, manifest Manifest, chunks []string, vectors [][]float32) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[location] = &memSearcher{buildID: manifest.BuildID, chunks: chunks, vectors: vectors}
	return nil
}

func (m *memStore) Open(_ context.Context, location string) (Searcher, error) {
	s, ok := m.saved[location]
	if !ok {
		return nil, os.ErrNotExist
	}
	return s, nil
}

type memSearcher struct {
	buildID string
	chunks  []string
	vectors [][]float32
}

func (s *memSearcher) Len() int { return len(s.vectors) }

func (s *memSearcher) Search(_ context.Context, q []float32, k int) ([]Hit, error) {
	hits := make([]Hit, 0, len(s.vectors))
	for i, v := range s.vectors {
		hits = append(hits, Hit{Position: i, Score: embedding.Dot(q, v), Content: s.chunks[i], BuildID: s.buildID})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	for len(hits) < k {
		hits = append(hits, Hit{Position: NoMatch})
	}
	return hits, nil
}

var corpus = []string{
	"Hospital stays are covered up to $1500/day with a $500 deductible.",
	"Flood damage is excluded and requires separate insurance.",
	"A 30-day grace period is provided for late payments.",
	"Claims are processed within 10-15 business days.",
}

func newTestBuilder(store Store) *Builder {
	return NewBuilder(embedding.NewProvider(embedding.NewHashEmbedder(256), "hash:256"), store)
}

func paths(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "index.gob"), filepath.Join(dir, "meta.json")
}

func TestBuildThenLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	indexPath, metaPath := paths(t)

	manifest, err := newTestBuilder(store).BuildAndSaveIndex(ctx, corpus, indexPath, metaPath)
	require.NoError(t, err)
	assert.Equal(t, len(corpus), manifest.Count)
	assert.Equal(t, 256, manifest.Dimension)
	assert.Equal(t, "hash:256", manifest.Model)
	assert.NotEmpty(t, manifest.BuildID)

	searcher, chunks, err := NewLoader(store).LoadIndex(ctx, indexPath, metaPath)
	require.NoError(t, err)
	assert.Equal(t, corpus, chunks)
	assert.Equal(t, len(corpus), searcher.Len())
}

func TestMetadataFileFormat(t *testing.T) {
	indexPath, metaPath := paths(t)
	_, err := newTestBuilder(newMemStore()).BuildAndSaveIndex(context.Background(), corpus, indexPath, metaPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metaPath)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc["chunks"], len(corpus))
	assert.Contains(t, doc, "build_id")
	assert.Contains(t, doc, "checksum")
	// $ and / survive unescaped so the file stays readable
	assert.Contains(t, string(data), "$1500/day")
}

func TestBuildBuildsFreshIDs(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(newMemStore())
	indexPath, metaPath := paths(t)

	m1, err := b.BuildAndSaveIndex(ctx, corpus, indexPath, metaPath)
	require.NoError(t, err)
	m2, err := b.BuildAndSaveIndex(ctx, corpus, indexPath, metaPath)
	require.NoError(t, err)
	assert.NotEqual(t, m1.BuildID, m2.BuildID)
	assert.Equal(t, m1.Checksum, m2.Checksum)
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(newMemStore())
	indexPath, metaPath := paths(t)

	_, err := b.BuildAndSaveIndex(ctx, nil, indexPath, metaPath)
	assert.ErrorIs(t, err, models.ErrEmptyInput)
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	_, err = b.BuildAndSaveIndex(ctx, []string{"fine", "  "}, indexPath, metaPath)
	assert.ErrorIs(t, err, models.ErrEmptyInput)

	_, err = os.Stat(metaPath)
	assert.True(t, os.IsNotExist(err), "nothing is written on validation failure")
}

func TestBuildRejectsInvalidUTF8(t *testing.T) {
	store := newMemStore()
	indexPath, metaPath := paths(t)

	latin1 := []string{"Caf\xe9 coverage includes flood.", "Hospital stays are covered."}
	_, err := newTestBuilder(store).BuildAndSaveIndex(context.Background(), latin1, indexPath, metaPath)
	require.Error(t, err)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
	assert.ErrorContains(t, err, "chunk 0 is not valid UTF-8")

	_, statErr := os.Stat(metaPath)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, store.saved)
}

func TestBuildThenLoadNonASCII(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	indexPath, metaPath := paths(t)

	chunks := []string{"Café coverage includes flood \uFFFD damage.", "Prämie: 1200 € pro Jahr."}
	_, err := newTestBuilder(store).BuildAndSaveIndex(ctx, chunks, indexPath, metaPath)
	require.NoError(t, err)

	_, got, err := NewLoader(store).LoadIndex(ctx, indexPath, metaPath)
	require.NoError(t, err)
	assert.Equal(t, chunks, got)
}

func TestBuildPropagatesStoreErrors(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	indexPath, metaPath := paths(t)

	_, err := newTestBuilder(store).BuildAndSaveIndex(context.Background(), corpus, indexPath, metaPath)
	require.Error(t, err)
	assert.Equal(t, models.KindIO, models.KindOf(err))
	assert.ErrorContains(t, err, "disk full")

	_, statErr := os.Stat(metaPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadMissingFiles(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	indexPath, metaPath := paths(t)

	_, _, err := NewLoader(store).LoadIndex(ctx, indexPath, metaPath)
	assert.Equal(t, models.KindIO, models.KindOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, WriteMetadata(metaPath, Metadata{Manifest: Manifest{Count: 1}, Chunks: []string{"x"}}))
	_, _, err = NewLoader(store).LoadIndex(ctx, indexPath, metaPath)
	assert.Equal(t, models.KindIO, models.KindOf(err))
}

func TestLoadCorruptMetadata(t *testing.T) {
	_, metaPath := paths(t)
	require.NoError(t, os.WriteFile(metaPath, []byte("{not json"), 0o644))

	_, _, err := NewLoader(newMemStore()).LoadIndex(context.Background(), "idx", metaPath)
	assert.Equal(t, models.KindIO, models.KindOf(err))
}

func TestLoadDetectsMismatchedPair(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	b := newTestBuilder(store)
	dir := t.TempDir()

	_, err := b.BuildAndSaveIndex(ctx, corpus, filepath.Join(dir, "a.gob"), filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	_, err = b.BuildAndSaveIndex(ctx, corpus[:2], filepath.Join(dir, "b.gob"), filepath.Join(dir, "b.json"))
	require.NoError(t, err)

	// index from build a, metadata from build b
	_, _, err = NewLoader(store).LoadIndex(ctx, filepath.Join(dir, "a.gob"), filepath.Join(dir, "b.json"))
	assert.ErrorIs(t, err, models.ErrCorpusMismatch)
	assert.Equal(t, models.KindConsistency, models.KindOf(err))
}

func TestLoadDetectsEditedMetadata(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	indexPath, metaPath := paths(t)
	_, err := newTestBuilder(store).BuildAndSaveIndex(ctx, corpus, indexPath, metaPath)
	require.NoError(t, err)

	meta, err := ReadMetadata(metaPath)
	require.NoError(t, err)
	meta.Chunks[0], meta.Chunks[1] = meta.Chunks[1], meta.Chunks[0]
	require.NoError(t, WriteMetadata(metaPath, meta))

	_, _, err = NewLoader(store).LoadIndex(ctx, indexPath, metaPath)
	assert.ErrorIs(t, err, models.ErrCorpusMismatch)
}

func TestReadLegacyMetadata(t *testing.T) {
	_, metaPath := paths(t)
	require.NoError(t, os.WriteFile(metaPath, []byte(`{"chunks": ["a", "b"]}`), 0o644))

	meta, err := ReadMetadata(metaPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, meta.Chunks)
	assert.Equal(t, 2, meta.Count)
	assert.Empty(t, meta.BuildID)
	assert.NoError(t, Verify(meta, 2))
	assert.ErrorIs(t, Verify(meta, 3), models.ErrCorpusMismatch)
}

func TestReadMetadataWithoutChunks(t *testing.T) {
	_, metaPath := paths(t)
	require.NoError(t, os.WriteFile(metaPath, []byte(`{"build_id": "x"}`), 0o644))

	_, err := ReadMetadata(metaPath)
	assert.ErrorContains(t, err, "chunks")
}

func TestChecksumIsOrderSensitive(t *testing.T) {
	assert.NotEqual(t, Checksum([]string{"a", "b"}), Checksum([]string{"b", "a"}))
	assert.NotEqual(t, Checksum([]string{"ab", "c"}), Checksum([]string{"a", "bc"}))
	assert.Equal(t, Checksum(corpus), Checksum(append([]string(nil), corpus...)))
}

func TestPositionInvariant(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	indexPath, metaPath := paths(t)
	_, err := newTestBuilder(store).BuildAndSaveIndex(ctx, corpus, indexPath, metaPath)
	require.NoError(t, err)

	searcher, chunks, err := NewLoader(store).LoadIndex(ctx, indexPath, metaPath)
	require.NoError(t, err)

	p := embedding.NewProvider(embedding.NewHashEmbedder(256), "hash:256")
	for i, chunk := range chunks {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			v, err := p.EmbedQuery(ctx, chunk)
			require.NoError(t, err)
			hits, err := searcher.Search(ctx, v, 1)
			require.NoError(t, err)
			assert.Equal(t, i, hits[0].Position)
			assert.Equal(t, chunk, chunks[hits[0].Position])
		})
	}
}
