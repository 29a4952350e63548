package cache

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache to invalidate: lookup" required:""`
}

// Run clears every entry of the named cache.
func (i *InvalidateCacheCmd) Run() error {
	tableName := i.Source + "_cache"
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache source '%s'; valid sources are: %s", i.Source, validSources())
	}

	slog.Info("Invalidating cache", "source", i.Source, "database", viper.GetString("cache.dbfile"))

	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	rowsDeleted, err := cacheInstance.InvalidateSource(tableName)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", rowsDeleted)
	return nil
}

// PruneExpiredCmd removes expired entries, leaving live ones in place.
type PruneExpiredCmd struct {
	Source string `arg:"" optional:"" help:"Cache to prune (all caches when omitted)"`
}

func (p *PruneExpiredCmd) Run() error {
	tables := make([]string, 0, len(ValidCacheTableNames))
	if p.Source != "" {
		tableName := p.Source + "_cache"
		if !ValidCacheTableNames[tableName] {
			return fmt.Errorf("invalid cache source '%s'; valid sources are: %s", p.Source, validSources())
		}
		tables = append(tables, tableName)
	} else {
		for table := range ValidCacheTableNames {
			tables = append(tables, table)
		}
		sort.Strings(tables)
	}

	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	var total int64
	for _, table := range tables {
		removed, err := cacheInstance.ClearExpired(table)
		if err != nil {
			return fmt.Errorf("failed to prune %s: %w", table, err)
		}
		total += removed
	}

	slog.Info("Expired cache entries pruned", "tables", len(tables), "rows_deleted", total)
	return nil
}

func validSources() string {
	names := make([]string, 0, len(ValidCacheTableNames))
	for table := range ValidCacheTableNames {
		names = append(names, strings.TrimSuffix(table, "_cache"))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
