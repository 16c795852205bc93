package artifact

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore wraps a Store with a read-through LRU over retrieved
// content. Only full (non-manifest-only) retrievals are cached, since
// ManifestOnly reads are already index lookups with no disk/network cost.
type CachedStore struct {
	Store
	cache *lru.Cache[string, RetrieveResult]
}

// NewCachedStore wraps store with an LRU of the given size. size <= 0 is
// treated as a one-entry cache.
func NewCachedStore(store Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[string, RetrieveResult](size)
	if err != nil {
		return nil, &IOError{Err: err}
	}
	return &CachedStore{Store: store, cache: c}, nil
}

// Retrieve serves full reads from cache when present; manifest-only reads
// and cache misses fall through to the wrapped store.
func (c *CachedStore) Retrieve(ctx context.Context, id string, opts RetrieveOptions) (RetrieveResult, error) {
	if opts.ManifestOnly {
		return c.Store.Retrieve(ctx, id, opts)
	}
	if cached, ok := c.cache.Get(id); ok {
		return cached, nil
	}
	result, err := c.Store.Retrieve(ctx, id, opts)
	if err != nil {
		return RetrieveResult{}, err
	}
	c.cache.Add(id, result)
	return result, nil
}

// StoreArtifact writes through the wrapped store and seeds the cache with
// the content that was just written.
func (c *CachedStore) StoreArtifact(ctx context.Context, typ Type, content []byte, metadata map[string]any) (Manifest, error) {
	manifest, err := c.Store.StoreArtifact(ctx, typ, content, metadata)
	if err != nil {
		return Manifest{}, err
	}
	c.cache.Add(manifest.ArtifactID, RetrieveResult{Manifest: manifest, Content: content})
	return manifest, nil
}

// Delete evicts the cache entry before delegating.
func (c *CachedStore) Delete(ctx context.Context, id string) (bool, error) {
	c.cache.Remove(id)
	return c.Store.Delete(ctx, id)
}
