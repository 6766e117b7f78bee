package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "hash", cfg.Embedder.Type)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, 1200, cfg.Chunker.MaxChars)
	assert.Equal(t, 120, cfg.Chunker.EffectiveOverlap())
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.35, cfg.Retrieval.MinScore, 1e-6)
	assert.Equal(t, 4000, cfg.Retrieval.MaxContextChars)
	assert.Equal(t, 20000, cfg.Fetch.MaxChars)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
enabled: true
embedder:
  type: ollama
vector_store:
  type: qdrant
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Embedder.Ollama)
	assert.Equal(t, "http://localhost:11434", cfg.Embedder.Ollama.Host)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Ollama.Model)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "localhost:6334", cfg.VectorStore.Qdrant.Addr)
	assert.Equal(t, "guildmem", cfg.VectorStore.Collection)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoadKeepsExplicitZeroOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunker:
  max_chars: 500
  overlap: 0
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Chunker.Overlap)
	assert.Equal(t, 0, cfg.Chunker.EffectiveOverlap(), "explicit zero is not replaced by the default")
}

func TestLoadScalesDefaultOverlapToSmallWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunker:
  max_chars: 100
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Chunker.EffectiveOverlap(), "default overlap must stay below max_chars")
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown embedder", "embedder:\n  type: quantum\n"},
		{"unknown store", "vector_store:\n  type: csv\n"},
		{"overlap not below max_chars", "chunker:\n  max_chars: 100\n  overlap: 100\n"},
		{"min_score above one", "retrieval:\n  min_score: 1.5\n"},
		{"guild min_score above one", "guilds:\n  42:\n    min_score: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	require.NoError(t, cfg.SetGuildTopK(42, 8))
	require.NoError(t, cfg.SetGuildMinScore(42, 0.6))

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.TopKFor(42))
	assert.InDelta(t, 0.6, loaded.MinScoreFor(42), 1e-6)
}

func TestGuildOverridesFallBack(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.SetGuildTopK(1, 10))

	assert.Equal(t, 10, cfg.TopKFor(1))
	assert.InDelta(t, 0.35, cfg.MinScoreFor(1), 1e-6, "min_score not overridden, global applies")
	assert.Equal(t, 5, cfg.TopKFor(2), "other guilds stay global")
	assert.InDelta(t, 0.35, cfg.MinScoreFor(2), 1e-6)
}

func TestSetGuildOverridesValidate(t *testing.T) {
	cfg := defaultConfig()
	assert.Error(t, cfg.SetGuildTopK(1, 0))
	assert.Error(t, cfg.SetGuildTopK(1, -3))
	assert.Error(t, cfg.SetGuildMinScore(1, 0))
	assert.Error(t, cfg.SetGuildMinScore(1, 1.1))
	require.NoError(t, cfg.SetGuildMinScore(1, 1))
}
