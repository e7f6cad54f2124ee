package embedding

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

// Embedder is the interface internal/memory.Embedder also satisfies;
// declared locally to avoid an import cycle back into internal/memory.
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// CachingEmbedder wraps an Embedder with a bounded in-memory cache keyed
// on a content hash, so repeated recall queries and re-indexing passes
// over the same text don't re-issue an Ollama request each time. Recall
// is called on every Reasoning Loop turn (spec.md §4.5 step 2) against
// text that often repeats across a conversation (the same greeting, the
// same recurring topic), so this is a genuinely hot path.
type CachingEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float64]
}

// NewCachingEmbedder wraps inner with an LRU cache holding up to size
// entries.
func NewCachingEmbedder(inner Embedder, size int) (*CachingEmbedder, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, err
	}
	return &CachingEmbedder{inner: inner, cache: c}, nil
}

func (c *CachingEmbedder) Embed(text string) ([]float64, error) {
	key := hashText(text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.Embed(text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func hashText(text string) string {
	sum := blake3.Sum256([]byte(text))
	return string(sum[:])
}
