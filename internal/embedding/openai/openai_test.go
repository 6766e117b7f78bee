package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, batchSizes *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*batchSizes = append(*batchSizes, len(req.Input))

		type entry struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		var out struct {
			Data []entry `json:"data"`
		}
		for i := range req.Input {
			out.Data = append(out.Data, entry{Index: i, Embedding: []float32{float32(i), 1}})
		}
		require.NoError(t, json.NewEncoder(w).Encode(out))
	}))
}

func TestEmbedSplitsIntoBatches(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret")
	var batchSizes []int
	srv := newTestServer(t, &batchSizes)
	defer srv.Close()

	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		APIKeyEnv: "TEST_EMBED_KEY",
		Model:     "test-model",
		BatchSize: 2,
	})
	require.NoError(t, err)

	vecs, err := c.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, []int{2, 2, 1}, batchSizes)
	for _, v := range vecs {
		assert.Len(t, v, 2)
	}
}

func TestEmbedSingleBatchByDefault(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret")
	var batchSizes []int
	srv := newTestServer(t, &batchSizes)
	defer srv.Close()

	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		APIKeyEnv: "TEST_EMBED_KEY",
		Model:     "test-model",
	})
	require.NoError(t, err)

	vecs, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []int{3}, batchSizes, "three inputs fit one default-sized batch")
}
