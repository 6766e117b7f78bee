package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"the quick brown fox"})
	require.NoError(t, err)
	b, err := e.Embed(ctx, []string{"the quick brown fox"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashEmbedderShape(t *testing.T) {
	e := NewHashEmbedder(0)
	ctx := context.Background()

	dim, err := e.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultHashDimension, dim)

	texts := []string{"alpha beta", "gamma delta", ""}
	vecs, err := e.Embed(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for _, v := range vecs {
		assert.Len(t, v, dim)
	}
}

func TestHashEmbedderTokenOverlapScoresHigher(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	vecs, err := e.Embed(ctx, []string{
		"fox jumping over fences",
		"the quick brown fox jumps over the lazy dog",
		"completely unrelated quarterly revenue report",
	})
	require.NoError(t, err)

	near := dot(vecs[0], vecs[1])
	far := dot(vecs[0], vecs[2])
	assert.Greater(t, near, far)
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
