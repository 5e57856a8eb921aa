package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c0", Text: "strong parameters guide", Kind: domain.SourceDoc, SourceTag: "7.1", OriginPath: "guides/a.md"},
		{ID: "c1", Text: "filter rename diff", Kind: domain.SourceDiff, SourceTag: "5.2->6.0", OriginPath: "app/c.rb"},
		{ID: "c2", Text: "zeitwerk notes", Kind: domain.SourceDoc, SourceTag: "7.0", OriginPath: "guides/b.md"},
	}
}

func TestPutBatch_AssignsDenseOrdinals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBatch(ctx, sampleChunks()))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	for i, want := range []string{"c0", "c1", "c2"} {
		chunk, err := s.GetByOrdinal(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, want, chunk.ID)
		assert.Equal(t, i, chunk.Ordinal)
	}
}

func TestPutBatch_ReplacesPriorCorpus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBatch(ctx, sampleChunks()))
	require.NoError(t, s.PutBatch(ctx, sampleChunks()[:1]))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.GetChunk(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPutBatch_RejectsInvalidChunk(t *testing.T) {
	s := newTestStore(t)

	err := s.PutBatch(context.Background(), []domain.Chunk{{ID: "", Text: "x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// A failed batch leaves nothing behind.
	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetChunk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutBatch(ctx, sampleChunks()))

	chunk, err := s.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDiff, chunk.Kind)
	assert.Equal(t, "5.2->6.0", chunk.SourceTag)
	assert.Equal(t, "app/c.rb", chunk.OriginPath)
	assert.Equal(t, 1, chunk.Ordinal)

	_, err = s.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_OrdinalOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutBatch(ctx, sampleChunks()))

	chunks, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Ordinal)
	}
}

func TestNewStore_Reopens(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.PutBatch(context.Background(), sampleChunks()))
	require.NoError(t, s1.Close())

	s2, err := NewStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	count, err := s2.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
