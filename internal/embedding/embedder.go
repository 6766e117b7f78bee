package embedding

import "context"

// Embedder converts text into fixed-length float vectors. Implementations
// must be deterministic for identical input and return one vector per input
// text, in order.
type Embedder interface {
	Name() string

	// Dimension reports the vector length this embedder produces. Remote
	// backends may probe the model on first call and cache the answer.
	Dimension(ctx context.Context) (int, error)

	// Embed returns one vector per input text, same order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
