package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bookfeed/internal/config"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongodb"
	DriverMemory   = "memory"
)

// Stores is the trending/catalog pair every refresh writes to.
type Stores struct {
	Trending Collection
	Catalog  Collection
}

// Close closes both collections.
func (s Stores) Close() error {
	var errs []error
	for _, c := range []Collection{s.Trending, s.Catalog} {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// OpenCollection opens one named collection with the configured driver.
func OpenCollection(ctx context.Context, s config.StoreSettings, name string) (Collection, error) {
	switch s.Driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, s.DSN, name)
	case DriverPostgres:
		return OpenPostgres(ctx, s.DSN, name)
	case DriverMongo:
		return OpenMongo(ctx, s.DSN, s.Database, name)
	case DriverMemory:
		if err := ValidateName(name); err != nil {
			return nil, err
		}
		return NewMemoryStore(name), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", s.Driver)
	}
}

// Open opens the trending and catalog collections. An unknown driver or an
// invalid collection name is an error. A store that cannot be reached is
// returned as an Unavailable collection, leaving the caller's ping to report it.
func Open(ctx context.Context, s config.StoreSettings) (Stores, error) {
	trending, err := openOrUnavailable(ctx, s, s.TrendingCollection)
	if err != nil {
		return Stores{}, fmt.Errorf("open %s: %w", s.TrendingCollection, err)
	}

	catalog, err := openOrUnavailable(ctx, s, s.CatalogCollection)
	if err != nil {
		if closeErr := trending.Close(); closeErr != nil {
			slog.Warn("Failed to close store", "collection", s.TrendingCollection, "error", closeErr)
		}
		return Stores{}, fmt.Errorf("open %s: %w", s.CatalogCollection, err)
	}

	slog.Debug("Opened stores", "driver", s.Driver, "trending", trending.Name(), "catalog", catalog.Name())
	return Stores{Trending: trending, Catalog: catalog}, nil
}

func openOrUnavailable(ctx context.Context, s config.StoreSettings, name string) (Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	switch s.Driver {
	case DriverSQLite, DriverPostgres, DriverMongo, DriverMemory, "":
	default:
		return nil, fmt.Errorf("unknown store driver %q", s.Driver)
	}

	c, err := OpenCollection(ctx, s, name)
	if err != nil {
		slog.Warn("Store unavailable", "driver", s.Driver, "collection", name, "error", err)
		return Unavailable(name, err), nil
	}
	return c, nil
}
