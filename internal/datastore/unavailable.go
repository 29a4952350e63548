package datastore

import (
	"context"
	"fmt"

	"github.com/lepinkainen/bookfeed/internal/catalog"
)

// unavailableCollection stands in for a collection that could not be opened.
// Every operation returns the open error.
type unavailableCollection struct {
	name string
	err  error
}

// Unavailable returns a Collection whose operations all fail with err.
func Unavailable(name string, err error) Collection {
	return &unavailableCollection{name: name, err: fmt.Errorf("store %s unavailable: %w", name, err)}
}

func (u *unavailableCollection) Name() string { return u.name }

func (u *unavailableCollection) Ping(context.Context) error { return u.err }

func (u *unavailableCollection) FindByID(context.Context, string) (*catalog.Record, error) {
	return nil, u.err
}

func (u *unavailableCollection) FindByTitle(context.Context, string) ([]catalog.Record, error) {
	return nil, u.err
}

func (u *unavailableCollection) InsertOne(context.Context, catalog.Record) error { return u.err }

func (u *unavailableCollection) DeleteMany(context.Context, Filter) (int64, error) { return 0, u.err }

func (u *unavailableCollection) Count(context.Context) (int64, error) { return 0, u.err }

func (u *unavailableCollection) Close() error { return nil }
