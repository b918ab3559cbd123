package flat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-agent/backend/internal/domain"
)

func mustPassage(t *testing.T, id, docID, content string, index int, embedding []float32) domain.Passage {
	t.Helper()
	p, err := domain.NewPassage(id, docID, content, index, embedding)
	require.NoError(t, err)
	return p
}

func TestAddAndSearchRoundTrip(t *testing.T) {
	idx, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	target := mustPassage(t, "c1", "d1", "Hypertension responds to lifestyle changes.", 0, []float32{1, 0, 0})
	other := mustPassage(t, "c2", "d1", "Statutes of limitations vary by jurisdiction.", 1, []float32{0, 1, 0})
	far := mustPassage(t, "c3", "d2", "Contract formation requires offer and acceptance.", 0, []float32{0, 0, 5})

	require.NoError(t, idx.Add(ctx, []domain.Passage{target, other, far}))

	// Searching with a vector equal to an inserted embedding must return
	// that passage with the smallest distance.
	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "c1", matches[0].Passage.ID)
	assert.Equal(t, float32(0), matches[0].Distance)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
	assert.LessOrEqual(t, matches[1].Distance, matches[2].Distance)
}

func TestSearchTruncatesToK(t *testing.T) {
	idx, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	passages := []domain.Passage{
		mustPassage(t, "c1", "d1", "first", 0, []float32{1, 0}),
		mustPassage(t, "c2", "d1", "second", 1, []float32{0, 1}),
		mustPassage(t, "c3", "d1", "third", 2, []float32{1, 1}),
	}
	require.NoError(t, idx.Add(ctx, passages))

	matches, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, err := New(t.TempDir())
	require.NoError(t, err)

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDimensionMismatchRejected(t *testing.T) {
	idx, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.Passage{
		mustPassage(t, "c1", "d1", "first", 0, []float32{1, 0, 0}),
	}))

	err = idx.Add(ctx, []domain.Passage{
		mustPassage(t, "c2", "d1", "second", 1, []float32{1, 0}),
	})
	assert.ErrorContains(t, err, "dimension mismatch")

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, []domain.Passage{
		mustPassage(t, "c1", "d1", "persisted passage", 0, []float32{0.5, 0.5}),
	}))

	reopened, err := New(dir)
	require.NoError(t, err)

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)
	assert.Equal(t, 2, stats.Dimension)

	matches, err := reopened.Search(ctx, []float32{0.5, 0.5}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "persisted passage", matches[0].Passage.Content)
}

func TestRemoveDocumentIsLossless(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, []domain.Passage{
		mustPassage(t, "c1", "d1", "doomed passage", 0, []float32{1, 0}),
		mustPassage(t, "c2", "d2", "surviving passage", 0, []float32{0, 1}),
	}))

	require.NoError(t, idx.RemoveDocument(ctx, "d1"))

	// The surviving document must still be searchable, including after a
	// reload from disk.
	for _, index := range []*Index{idx, mustReopen(t, dir)} {
		matches, err := index.Search(ctx, []float32{0, 1}, 5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "c2", matches[0].Passage.ID)
		assert.Equal(t, float32(0), matches[0].Distance)
	}
}

func mustReopen(t *testing.T, dir string) *Index {
	t.Helper()
	idx, err := New(dir)
	require.NoError(t, err)
	return idx
}
