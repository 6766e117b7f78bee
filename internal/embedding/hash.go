package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// HashEmbedder is a deterministic feature-hashing vectorizer: tokens are
// hashed into a fixed number of buckets with a hash-derived sign, then the
// vector is L2-normalized. It needs no model and no corpus preparation,
// which makes it the offline and test backend. Semantically close texts do
// not land close together; only token overlap does.
type HashEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

// DefaultHashDimension is used when the config leaves the dimension unset.
const DefaultHashDimension = 256

// NewHashEmbedder creates a hash embedder with the given dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
	}
}

func (e *HashEmbedder) Name() string { return "hash" }

// Dimension is fixed at construction.
func (e *HashEmbedder) Dimension(context.Context) (int, error) { return e.dimension, nil }

// Embed hashes each text on a bounded worker pool so large batches of this
// CPU-bound work do not serialize on the calling goroutine.
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, text := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vectors[i] = e.embedOne(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		sign := float32(1)
		if (sum>>63)&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
