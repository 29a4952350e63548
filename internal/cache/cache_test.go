package cache

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lepinkainen/bookfeed/internal/testutil"
	"github.com/spf13/viper"
)

type testLookup struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	NotFound bool   `json:"not_found"`
}

func setupTestCache(t *testing.T) *CacheDB {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("cache.ttl", "1h")

	env := testutil.NewTestEnv(t)
	cache, err := NewCacheDB(filepath.Join(env.RootDir(), "test_cache.db"))
	if err != nil {
		t.Fatalf("Failed to create cache database: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	if err := cache.CreateTable(LookupCacheSchema); err != nil {
		t.Fatalf("Failed to create lookup table: %v", err)
	}
	return cache
}

func withGlobalCache(t *testing.T, cache *CacheDB) {
	t.Helper()

	oldCache := globalCache
	globalCache = cache
	globalCacheOnce = sync.Once{}
	globalCacheOnce.Do(func() {})

	t.Cleanup(func() {
		globalCache = oldCache
		globalCacheOnce = sync.Once{}
	})
}

func expire(t *testing.T, cache *CacheDB, key string) {
	t.Helper()

	past := time.Now().UTC().Add(-time.Minute)
	if _, err := cache.db.Exec("UPDATE lookup_cache SET expires_at = ? WHERE cache_key = ?", past, key); err != nil {
		t.Fatalf("Failed to expire entry: %v", err)
	}
}

func hasEntry(t *testing.T, cache *CacheDB, key string) bool {
	t.Helper()

	var n int
	if err := cache.db.QueryRow("SELECT COUNT(*) FROM lookup_cache WHERE cache_key = ?", key).Scan(&n); err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	return n > 0
}

func TestCacheDB_GetSet(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set("lookup_cache", "dune|herbert", `{"id":"0441013597"}`, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, found, err := cache.Get("lookup_cache", "dune|herbert")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected entry to be found")
	}
	if data != `{"id":"0441013597"}` {
		t.Errorf("Unexpected data %q", data)
	}

	_, found, err = cache.Get("lookup_cache", "missing")
	if err != nil || found {
		t.Errorf("Expected clean miss, got found=%v err=%v", found, err)
	}
}

func TestCacheDB_GetExpired(t *testing.T) {
	cache := setupTestCache(t)

	_ = cache.Set("lookup_cache", "key", `{}`, time.Hour)
	expire(t, cache, "key")

	_, found, err := cache.Get("lookup_cache", "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expected expired entry to be a miss")
	}
	if !hasEntry(t, cache, "key") {
		t.Error("Expired entry should still exist until cleared")
	}
}

func TestCacheDB_ClearExpired(t *testing.T) {
	cache := setupTestCache(t)

	_ = cache.Set("lookup_cache", "old", `{}`, time.Hour)
	_ = cache.Set("lookup_cache", "fresh", `{}`, time.Hour)
	expire(t, cache, "old")

	removed, err := cache.ClearExpired("lookup_cache")
	if err != nil {
		t.Fatalf("ClearExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 row removed, got %d", removed)
	}
	if hasEntry(t, cache, "old") {
		t.Error("Expected old entry to be removed")
	}
	if !hasEntry(t, cache, "fresh") {
		t.Error("Expected fresh entry to remain")
	}
}

func TestCacheDB_InvalidateSource(t *testing.T) {
	cache := setupTestCache(t)

	_ = cache.Set("lookup_cache", "key1", `{}`, 0)
	_ = cache.Set("lookup_cache", "key2", `{}`, 0)

	rowsDeleted, err := cache.InvalidateSource("lookup_cache")
	if err != nil {
		t.Fatalf("Failed to invalidate cache: %v", err)
	}
	if rowsDeleted != 2 {
		t.Errorf("Expected 2 rows deleted, got %d", rowsDeleted)
	}
	if hasEntry(t, cache, "key1") {
		t.Error("Expected key1 to be invalidated")
	}
}

func TestCacheDB_RejectsUnknownTable(t *testing.T) {
	cache := setupTestCache(t)

	if _, err := cache.InvalidateSource("lookup_cache; DROP TABLE lookup_cache"); err == nil {
		t.Error("Expected error for invalid table name")
	}
	if err := cache.Set("nope_cache", "k", "v", 0); err == nil {
		t.Error("Expected error for invalid table name")
	}
}

func TestGetOrFetchWithTTL_CacheMissThenHit(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	calls := 0
	fetch := func() (testLookup, error) {
		calls++
		return testLookup{ID: "0441013597", Title: "Dune"}, nil
	}

	first, fromCache, err := GetOrFetchWithTTL("lookup_cache", "dune", fetch, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected first call to miss")
	}

	second, fromCache, err := GetOrFetchWithTTL("lookup_cache", "dune", fetch, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache {
		t.Error("Expected second call to hit")
	}
	if calls != 1 {
		t.Errorf("Expected one fetch, got %d", calls)
	}
	if first != second {
		t.Errorf("Expected %+v, got %+v", first, second)
	}
}

func TestGetOrFetchWithTTL_FetchErrorNotCached(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	boom := errors.New("upstream unavailable")
	_, _, err := GetOrFetchWithTTL("lookup_cache", "key", func() (testLookup, error) {
		return testLookup{}, boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped fetch error, got %v", err)
	}
	if hasEntry(t, cache, "key") {
		t.Error("Fetch errors must not be cached")
	}
}

func TestGetOrFetchWithTTL_NegativeEntriesExpireSooner(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	selector := SelectNegativeCacheTTL(func(r testLookup) bool { return r.NotFound })

	_, _, err := GetOrFetchWithTTL("lookup_cache", "missing", func() (testLookup, error) {
		return testLookup{NotFound: true}, nil
	}, selector)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	_, _, err = GetOrFetchWithTTL("lookup_cache", "found", func() (testLookup, error) {
		return testLookup{ID: "1"}, nil
	}, selector)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var negative, positive time.Time
	if err := cache.db.QueryRow("SELECT expires_at FROM lookup_cache WHERE cache_key = ?", "missing").Scan(&negative); err != nil {
		t.Fatalf("Failed to read negative entry: %v", err)
	}
	if err := cache.db.QueryRow("SELECT expires_at FROM lookup_cache WHERE cache_key = ?", "found").Scan(&positive); err != nil {
		t.Fatalf("Failed to read positive entry: %v", err)
	}
	if !negative.Before(positive) {
		t.Errorf("Expected negative entry (%v) to expire before positive entry (%v)", negative, positive)
	}
}

func TestSelectNegativeCacheTTL(t *testing.T) {
	selector := SelectNegativeCacheTTL(func(r testLookup) bool { return r.NotFound })

	if ttl := selector(testLookup{NotFound: true}); ttl != NegativeCacheTTL {
		t.Errorf("Expected %v for not found result, got %v", NegativeCacheTTL, ttl)
	}
	if ttl := selector(testLookup{ID: "1"}); ttl != DefaultCacheTTL {
		t.Errorf("Expected %v for found result, got %v", DefaultCacheTTL, ttl)
	}
}

func TestInvalidateCacheCmd(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)
	_ = cache.Set("lookup_cache", "key", `{}`, 0)

	if err := (&InvalidateCacheCmd{Source: "lookup"}).Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if hasEntry(t, cache, "key") {
		t.Error("Expected lookup cache to be empty")
	}

	if err := (&InvalidateCacheCmd{Source: "tmdb"}).Run(); err == nil {
		t.Error("Expected unknown source to fail")
	}
}

func TestPruneExpiredCmd(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)
	_ = cache.Set("lookup_cache", "old", `{}`, time.Hour)
	_ = cache.Set("lookup_cache", "fresh", `{}`, time.Hour)
	expire(t, cache, "old")

	if err := (&PruneExpiredCmd{}).Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if hasEntry(t, cache, "old") {
		t.Error("Expected expired entry to be pruned")
	}
	if !hasEntry(t, cache, "fresh") {
		t.Error("Expected live entry to remain")
	}

	if err := (&PruneExpiredCmd{Source: "lookup"}).Run(); err != nil {
		t.Fatalf("Run with source failed: %v", err)
	}
	if err := (&PruneExpiredCmd{Source: "tmdb"}).Run(); err == nil {
		t.Error("Expected unknown source to fail")
	}
}
