package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"guildmem/internal/config"
	"guildmem/internal/embedding"
	"guildmem/internal/embedding/openai"
	"guildmem/internal/service"
	"guildmem/internal/vectorstore"
	"guildmem/internal/vectorstore/memory"
	"guildmem/internal/vectorstore/qdrant"
)

var (
	cfgPath string
	verbose bool

	cfg        *config.AppConfig
	cfgFile    string // path the config was loaded from, for settings writes
	pipeline   *service.Pipeline
	logHandler *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "guildmem",
	Short: "Long-term chat memory: ingest, search, retention",
	Long: `guildmem maintains a vector index of chat messages, web pages and
documents, scoped per guild, and answers similarity queries against it.
Ingestion deduplicates identical content; retention and privacy commands
remove or export stored records by user, message or age.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logHandler = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		var err error
		if cfgPath == "" {
			cfg, cfgFile, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(cfgPath)
			cfgFile = cfgPath
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// getPipeline assembles the engine once per invocation. A disabled pipeline
// surfaces as a plain message, not a stack of errors.
func getPipeline(cmd *cobra.Command) (*service.Pipeline, error) {
	if pipeline != nil {
		return pipeline, nil
	}
	store, err := buildStore()
	if err != nil {
		return nil, err
	}
	embedder, err := buildEmbedder()
	if err != nil {
		return nil, err
	}
	p, err := service.New(cmd.Context(), cfg, store, embedder, logHandler)
	if err != nil {
		if errors.Is(err, service.ErrDisabled) {
			return nil, errors.New("pipeline is disabled in the config; set enabled: true")
		}
		return nil, err
	}
	pipeline = p
	return pipeline, nil
}

func buildStore() (vectorstore.Store, error) {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.New(), nil
	case "qdrant":
		return qdrant.New(qdrant.Config{
			Addr:   cfg.VectorStore.Qdrant.Addr,
			APIKey: os.Getenv(cfg.VectorStore.Qdrant.APIKeyEnv),
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

func buildEmbedder() (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hash", "":
		return embedding.NewHashEmbedder(0), nil
	case "ollama":
		return embedding.NewOllama(embedding.OllamaConfig{
			Host:    cfg.Embedder.Ollama.Host,
			Model:   cfg.Embedder.Ollama.Model,
			Timeout: time.Duration(cfg.Embedder.Ollama.TimeoutSecs) * time.Second,
		})
	case "openai":
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}
