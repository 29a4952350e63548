// Package datastore persists catalog records in named collections keyed by
// ExternalID. Collections only ever insert; rows are never updated in place.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lepinkainen/bookfeed/internal/catalog"
)

var (
	// ErrDuplicateKey is returned by InsertOne when the ExternalID already exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrEmptyFilter is returned by DeleteMany for a filter that would match every row.
	ErrEmptyFilter = errors.New("refusing to delete with an empty filter")
)

// titleMatchLimit caps how many rows FindByTitle returns.
const titleMatchLimit = 20

// Filter selects rows for bulk deletion.
type Filter struct {
	// IngestedBefore matches rows stamped strictly before this instant.
	IngestedBefore time.Time
}

// Empty reports whether the filter has no conditions.
func (f Filter) Empty() bool {
	return f.IngestedBefore.IsZero()
}

// Collection is one persistent set of catalog records.
type Collection interface {
	// Name returns the collection (table) name.
	Name() string
	Ping(ctx context.Context) error
	// FindByID returns nil, nil when no record has the id.
	FindByID(ctx context.Context, id string) (*catalog.Record, error)
	// FindByTitle matches titles exactly, ignoring case.
	FindByTitle(ctx context.Context, title string) ([]catalog.Record, error)
	// InsertOne never overwrites; an existing id yields ErrDuplicateKey.
	InsertOne(ctx context.Context, rec catalog.Record) error
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

var validCollectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateName rejects collection names that are unsafe to interpolate into SQL.
func ValidateName(name string) error {
	if !validCollectionName.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}
