package cache

// All cache tables share the cache_key/data/cached_at/expires_at layout.

// LookupCacheSchema holds supplemental per-work search results keyed by title and author.
const LookupCacheSchema = `
CREATE TABLE IF NOT EXISTS lookup_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lookup_expires_at ON lookup_cache(expires_at);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	LookupCacheSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names.
// Table names are interpolated into SQL, so nothing outside this set is accepted.
var ValidCacheTableNames = map[string]bool{
	"lookup_cache": true,
}
