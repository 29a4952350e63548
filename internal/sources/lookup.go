package sources

import (
	"context"

	"github.com/lepinkainen/bookfeed/internal/cache"
	"github.com/lepinkainen/bookfeed/internal/dedup"
	"github.com/lepinkainen/bookfeed/internal/normalize"
)

const lookupCacheTable = "lookup_cache"

type cachedSupplement struct {
	Supplement *normalize.Supplement `json:"supplement,omitempty"`
	NotFound   bool                  `json:"not_found"`
}

// CachedLookup memoizes another Lookup in the sqlite cache. Misses are cached
// for a shorter time than hits; errors are never cached.
type CachedLookup struct {
	next Lookup
}

// NewCachedLookup wraps next with the lookup cache.
func NewCachedLookup(next Lookup) *CachedLookup {
	return &CachedLookup{next: next}
}

// Lookup implements Lookup.
func (c *CachedLookup) Lookup(ctx context.Context, title, author string) (*normalize.Supplement, error) {
	key := dedup.Fold(title) + "|" + dedup.Fold(author)

	result, _, err := cache.GetOrFetchWithTTL(lookupCacheTable, key,
		func() (cachedSupplement, error) {
			sup, err := c.next.Lookup(ctx, title, author)
			if err != nil {
				return cachedSupplement{}, err
			}
			return cachedSupplement{Supplement: sup, NotFound: sup == nil}, nil
		},
		cache.SelectNegativeCacheTTL(func(r cachedSupplement) bool { return r.NotFound }),
	)
	if err != nil {
		return nil, err
	}
	return result.Supplement, nil
}
