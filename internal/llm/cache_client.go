package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"conduit/internal/agent"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cachingClient memoizes structured answers by model and prompt.
type cachingClient struct {
	underlying Client
	cache      *lru.Cache[string, map[string]any]
}

// NewCachingClient wraps client with an LRU of the given size. A size below
// one returns client unchanged.
func NewCachingClient(client Client, size int) (Client, error) {
	if size < 1 {
		return client, nil
	}
	cache, err := lru.New[string, map[string]any](size)
	if err != nil {
		return nil, err
	}
	return &cachingClient{underlying: client, cache: cache}, nil
}

func (c *cachingClient) GenerateStructured(ctx context.Context, prompt string) (map[string]any, error) {
	key := cacheKey(c.underlying.Model(), prompt)
	if cached, ok := c.cache.Get(key); ok {
		return agent.CloneMap(cached), nil
	}
	out, err := c.underlying.GenerateStructured(ctx, prompt)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, agent.CloneMap(out))
	return out, nil
}

func (c *cachingClient) Model() string { return c.underlying.Model() }

func cacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}
