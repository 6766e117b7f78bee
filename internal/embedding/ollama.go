package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaConfig configures the Ollama embedding backend.
type OllamaConfig struct {
	Host    string // base URL, defaults to http://localhost:11434
	Model   string
	Timeout time.Duration
}

// Ollama embeds text through a local Ollama server.
type Ollama struct {
	client *api.Client
	model  string

	mu  sync.Mutex
	dim int
}

// NewOllama creates the client. The server is not contacted until the first
// Dimension or Embed call.
func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("embedding: invalid ollama host %q: %w", host, err)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding: ollama model not configured")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Ollama{
		client: api.NewClient(base, &http.Client{Timeout: timeout}),
		model:  cfg.Model,
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

// Dimension probes the model with a short input once and caches the result.
func (o *Ollama) Dimension(ctx context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dim > 0 {
		return o.dim, nil
	}
	vec, err := o.embedOne(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("embedding: probe dimension: %w", err)
	}
	o.dim = len(vec)
	return o.dim, nil
}

func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := o.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// embedOne issues a single embedding request with retries and exponential
// backoff; the model may still be loading on the first call.
func (o *Ollama) embedOne(ctx context.Context, text string) ([]float32, error) {
	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<attempt) * 500 * time.Millisecond):
			}
		}
		resp, err := o.client.Embeddings(ctx, &api.EmbeddingRequest{
			Model:  o.model,
			Prompt: text,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Embedding) == 0 {
			lastErr = fmt.Errorf("embedding: empty vector from model %q", o.model)
			continue
		}
		vec := make([]float32, len(resp.Embedding))
		for i, v := range resp.Embedding {
			vec[i] = float32(v)
		}
		return vec, nil
	}
	return nil, fmt.Errorf("embedding: ollama request failed after %d attempts: %w", maxRetries, lastErr)
}
