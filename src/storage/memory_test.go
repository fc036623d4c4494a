package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityQuery(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)
	ctx := context.Background()

	got, err := s.SimilarityQuery(ctx, "700", "beach", 3)
	require.NoError(t, err)
	assert.Empty(t, got, "new users have no memory")

	_, err = s.Merge(ctx, "700", facts("activities", map[string]float64{"surfing": 0.9, "museum visits": 0.6}))
	require.NoError(t, err)
	_, err = s.Merge(ctx, "700", facts("climate_preference", map[string]float64{"tropical": 0.8}))
	require.NoError(t, err)
	require.NoError(t, s.Remember(ctx, "700", "trip", "past trip to Bali, Indonesia: surfing and temples"))

	n, err := s.MemoryCount(ctx, "700")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err = s.SimilarityQuery(ctx, "700", "surfing", 10)
	require.NoError(t, err)
	assert.Len(t, got, 4, "k is clamped to the collection size")
	assert.Contains(t, got[:2], "activities: surfing")

	got, err = s.SimilarityQuery(ctx, "700", "museum", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"activities: museum visits"}, got)

	// repeated facts replace their document instead of duplicating it
	_, err = s.Merge(ctx, "700", facts("activities", map[string]float64{"surfing": 1.0}))
	require.NoError(t, err)
	n, err = s.MemoryCount(ctx, "700")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	reopened := newTestStore(t, dir)
	n, err = reopened.MemoryCount(ctx, "700")
	require.NoError(t, err)
	assert.Equal(t, 4, n, "index is persisted")
}

func TestLexicalEmbeddingIsNormalised(t *testing.T) {
	embed := LexicalEmbedding(32)
	v, err := embed(context.Background(), "Hiking hikes HIKING")
	require.NoError(t, err)
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	assert.InDelta(t, 1.0, sum, 1e-5)

	empty, err := embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, float32(1), empty[0])
}
