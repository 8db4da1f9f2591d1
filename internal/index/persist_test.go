package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vedaquery/internal/domain"
)

func populatedIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New(3)
	require.NoError(t, err)
	entries := []Entry{
		{ChunkID: "gita_0000", Embedding: []float64{1, 2, 3}, Preview: "first verse",
			Attrs: domain.Attributes{Kind: domain.KindVerse, SizeChars: 11, LineCount: 1,
				Extra: map[string]string{"verse_range": "2.1"}}},
		{ChunkID: "gita_0001", Embedding: []float64{-1, 0.5, 2}, Preview: "second verse",
			Attrs: domain.Attributes{Kind: domain.KindVerse, SizeChars: 12, LineCount: 1}},
		{ChunkID: "veda_0000", Embedding: []float64{0.3, -0.3, 0.9}, Preview: "a paragraph",
			Attrs: domain.Attributes{Kind: domain.KindParagraph, SizeChars: 11, LineCount: 2}},
	}
	_, err = ix.Add(entries, false)
	require.NoError(t, err)
	return ix
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	ix := populatedIndex(t)
	base := filepath.Join(t.TempDir(), "idx")
	require.NoError(t, ix.Persist(base))

	restored, err := New(3)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(base))
	assert.Equal(t, ix.Len(), restored.Len())

	queries := [][]float64{
		{1, 0, 0},
		{0.2, 0.9, -0.1},
		{-1, -1, -1},
	}
	for _, q := range queries {
		want, err := ix.Search(q, 3, nil)
		require.NoError(t, err)
		got, err := restored.Search(q, 3, nil)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].ChunkID, got[i].ChunkID)
			assert.InDelta(t, want[i].Similarity, got[i].Similarity, 1e-12)
			assert.Equal(t, want[i].Attrs, got[i].Attrs)
			assert.Equal(t, want[i].Preview, got[i].Preview)
		}
	}
}

func TestRestoreMissingSidecar(t *testing.T) {
	ix := populatedIndex(t)
	base := filepath.Join(t.TempDir(), "idx")
	require.NoError(t, ix.Persist(base))
	require.NoError(t, os.Remove(base+sidecarSuffix))

	restored, _ := New(3)
	err := restored.Restore(base)
	assert.ErrorIs(t, err, domain.ErrPersistenceCorrupt)
	assert.Equal(t, 0, restored.Len())
}

func TestRestoreMissingVectorBlob(t *testing.T) {
	ix := populatedIndex(t)
	base := filepath.Join(t.TempDir(), "idx")
	require.NoError(t, ix.Persist(base))
	require.NoError(t, os.Remove(base+vectorsSuffix))

	restored, _ := New(3)
	err := restored.Restore(base)
	assert.ErrorIs(t, err, domain.ErrPersistenceCorrupt)
}

func TestRestoreNothingPersisted(t *testing.T) {
	restored, _ := New(3)
	err := restored.Restore(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, domain.ErrPersistenceCorrupt)
}

func TestRestoreTruncatedBlob(t *testing.T) {
	ix := populatedIndex(t)
	base := filepath.Join(t.TempDir(), "idx")
	require.NoError(t, ix.Persist(base))

	data, err := os.ReadFile(base + vectorsSuffix)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(base+vectorsSuffix, data[:len(data)-8], 0o644))

	restored, _ := New(3)
	err = restored.Restore(base)
	assert.ErrorIs(t, err, domain.ErrPersistenceCorrupt)
}

func TestRestoreDimensionMismatch(t *testing.T) {
	ix := populatedIndex(t)
	base := filepath.Join(t.TempDir(), "idx")
	require.NoError(t, ix.Persist(base))

	restored, _ := New(5)
	err := restored.Restore(base)
	assert.ErrorIs(t, err, domain.ErrPersistenceCorrupt)
}

func TestPersistEmptyIndex(t *testing.T) {
	ix, _ := New(2)
	base := filepath.Join(t.TempDir(), "idx")
	require.NoError(t, ix.Persist(base))

	restored, _ := New(2)
	require.NoError(t, restored.Restore(base))
	assert.Equal(t, 0, restored.Len())
}

func TestPersistOverwritesPrevious(t *testing.T) {
	ix := populatedIndex(t)
	base := filepath.Join(t.TempDir(), "idx")
	require.NoError(t, ix.Persist(base))

	ix.DeleteBySource("gita")
	require.NoError(t, ix.Persist(base))

	restored, _ := New(3)
	require.NoError(t, restored.Restore(base))
	assert.Equal(t, 1, restored.Len())
	_, err := restored.Get("veda_0000")
	assert.NoError(t, err)
}
