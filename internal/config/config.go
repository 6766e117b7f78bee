package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// OllamaEmbedderConfig holds connection details for a local Ollama server.
type OllamaEmbedderConfig struct {
	Host        string `yaml:"host"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	Ollama *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how message text is split into chunks. Overlap is
// a pointer so an explicit zero survives loading; nil means "use the
// default".
type ChunkerConfig struct {
	MaxChars int  `yaml:"max_chars"`
	Overlap  *int `yaml:"overlap"`
}

// EffectiveOverlap returns the configured overlap, or 0 when unset.
func (c ChunkerConfig) EffectiveOverlap() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string        `yaml:"type"`
	Collection string        `yaml:"collection"`
	Qdrant     *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Addr      string `yaml:"addr"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// RetrievalConfig holds the global retrieval knobs. Per-guild values in
// Guilds override them.
type RetrievalConfig struct {
	TopK            int     `yaml:"top_k"`
	MinScore        float32 `yaml:"min_score"`
	MaxContextChars int     `yaml:"max_context_chars"`
}

// GuildOverrides is the per-guild subset of retrieval settings. Zero values
// fall back to the global RetrievalConfig.
type GuildOverrides struct {
	TopK     int     `yaml:"top_k,omitempty"`
	MinScore float32 `yaml:"min_score,omitempty"`
}

// FetchConfig tunes web page fetching for URL ingestion.
type FetchConfig struct {
	MaxChars       int     `yaml:"max_chars"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Enabled     bool                     `yaml:"enabled"`
	Embedder    EmbedderConfig           `yaml:"embedder"`
	Chunker     ChunkerConfig            `yaml:"chunker"`
	VectorStore VectorStoreConfig        `yaml:"vector_store"`
	Retrieval   RetrievalConfig          `yaml:"retrieval"`
	Fetch       FetchConfig              `yaml:"fetch"`
	Guilds      map[int64]GuildOverrides `yaml:"guilds,omitempty"`
}

// TopKFor returns the effective result limit for a guild.
func (c *AppConfig) TopKFor(guildID int64) int {
	if g, ok := c.Guilds[guildID]; ok && g.TopK > 0 {
		return g.TopK
	}
	return c.Retrieval.TopK
}

// MinScoreFor returns the effective score threshold for a guild.
func (c *AppConfig) MinScoreFor(guildID int64) float32 {
	if g, ok := c.Guilds[guildID]; ok && g.MinScore > 0 {
		return g.MinScore
	}
	return c.Retrieval.MinScore
}

// SetGuildTopK stores a per-guild result limit. It rejects non-positive
// values; removing an override means deleting the map entry.
func (c *AppConfig) SetGuildTopK(guildID int64, topK int) error {
	if topK <= 0 {
		return fmt.Errorf("config: top_k must be positive, got %d", topK)
	}
	if c.Guilds == nil {
		c.Guilds = make(map[int64]GuildOverrides)
	}
	g := c.Guilds[guildID]
	g.TopK = topK
	c.Guilds[guildID] = g
	return nil
}

// SetGuildMinScore stores a per-guild score threshold in (0, 1].
func (c *AppConfig) SetGuildMinScore(guildID int64, minScore float32) error {
	if minScore <= 0 || minScore > 1 {
		return fmt.Errorf("config: min_score must be in (0, 1], got %g", minScore)
	}
	if c.Guilds == nil {
		c.Guilds = make(map[int64]GuildOverrides)
	}
	g := c.Guilds[guildID]
	g.MinScore = minScore
	c.Guilds[guildID] = g
	return nil
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/guildmem/config.yaml.
// If neither exists, it writes defaults to ~/.config/guildmem/config.yaml and
// returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "guildmem", "config.yaml"), nil
}

func intPtr(v int) *int { return &v }

func defaultConfig() *AppConfig {
	return &AppConfig{
		Enabled:     true,
		Embedder:    EmbedderConfig{Type: "hash"},
		Chunker:     ChunkerConfig{MaxChars: 1200, Overlap: intPtr(120)},
		VectorStore: VectorStoreConfig{Type: "memory", Collection: "guildmem"},
		Retrieval:   RetrievalConfig{TopK: 5, MinScore: 0.35, MaxContextChars: 4000},
		Fetch:       FetchConfig{MaxChars: 20000, TimeoutSecs: 20, RequestsPerSec: 1},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 1200
	}
	if cfg.Chunker.Overlap == nil {
		overlap := 120
		if overlap >= cfg.Chunker.MaxChars {
			overlap = cfg.Chunker.MaxChars / 10
		}
		cfg.Chunker.Overlap = &overlap
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "guildmem"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MinScore == 0 {
		cfg.Retrieval.MinScore = 0.35
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 4000
	}
	if cfg.Fetch.MaxChars == 0 {
		cfg.Fetch.MaxChars = 20000
	}
	if cfg.Fetch.TimeoutSecs == 0 {
		cfg.Fetch.TimeoutSecs = 20
	}
	if cfg.Fetch.RequestsPerSec == 0 {
		cfg.Fetch.RequestsPerSec = 1
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.Host == "" {
			cfg.Embedder.Ollama.Host = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "nomic-embed-text"
		}
		if cfg.Embedder.Ollama.TimeoutSecs == 0 {
			cfg.Embedder.Ollama.TimeoutSecs = 60
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.Addr == "" {
			cfg.VectorStore.Qdrant.Addr = "localhost:6334"
		}
		if cfg.VectorStore.Qdrant.APIKeyEnv == "" {
			cfg.VectorStore.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
	}
}

func validate(cfg *AppConfig) error {
	switch cfg.Embedder.Type {
	case "hash", "ollama", "openai":
	default:
		return fmt.Errorf("config: unknown embedder type %q", cfg.Embedder.Type)
	}
	switch cfg.VectorStore.Type {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("config: unknown vector store type %q", cfg.VectorStore.Type)
	}
	if cfg.Chunker.MaxChars <= 0 {
		return fmt.Errorf("config: chunker max_chars must be positive, got %d", cfg.Chunker.MaxChars)
	}
	if overlap := cfg.Chunker.EffectiveOverlap(); overlap < 0 || overlap >= cfg.Chunker.MaxChars {
		return fmt.Errorf("config: chunker overlap must be in [0, max_chars), got %d", overlap)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("config: retrieval top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinScore < 0 || cfg.Retrieval.MinScore > 1 {
		return fmt.Errorf("config: retrieval min_score must be in [0, 1], got %g", cfg.Retrieval.MinScore)
	}
	for guild, g := range cfg.Guilds {
		if g.TopK < 0 {
			return fmt.Errorf("config: guild %d top_k must not be negative", guild)
		}
		if g.MinScore < 0 || g.MinScore > 1 {
			return fmt.Errorf("config: guild %d min_score must be in [0, 1]", guild)
		}
	}
	return nil
}
