package storage

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// ThumbnailCache keeps recently served thumbnails in memory, bounded by
// total byte size.
type ThumbnailCache struct {
	cache *ristretto.Cache[string, []byte]
}

func NewThumbnailCache(maxBytes int64) (*ThumbnailCache, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxBytes / 1024 * 10, // ~10 counters per expected 1KiB+ entry
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache: %w", err)
	}

	return &ThumbnailCache{cache: c}, nil
}

func (c *ThumbnailCache) Get(key string) ([]byte, bool) {
	return c.cache.Get(key)
}

// Set admits the entry asynchronously; a following Get may still miss.
func (c *ThumbnailCache) Set(key string, data []byte) {
	c.cache.Set(key, data, int64(len(data)))
}

func (c *ThumbnailCache) Delete(key string) {
	c.cache.Del(key)
}

// Wait blocks until pending writes are applied.
func (c *ThumbnailCache) Wait() {
	c.cache.Wait()
}

func (c *ThumbnailCache) Close() {
	c.cache.Close()
}
