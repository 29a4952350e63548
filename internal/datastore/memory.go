package datastore

import (
	"context"
	"sync"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	"golang.org/x/text/cases"
)

// MemoryStore is an in-process Collection. Contents are lost on Close.
type MemoryStore struct {
	name string

	mu    sync.Mutex
	order []string
	rows  map[string]catalog.Record
}

// NewMemoryStore returns an empty collection.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name, rows: make(map[string]catalog.Record)}
}

func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) FindByID(_ context.Context, id string) (*catalog.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) FindByTitle(_ context.Context, title string) ([]catalog.Record, error) {
	fold := cases.Fold()
	want := fold.String(title)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []catalog.Record
	for _, id := range s.order {
		rec := s.rows[id]
		if fold.String(rec.Title) == want {
			out = append(out, rec)
			if len(out) == titleMatchLimit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertOne(_ context.Context, rec catalog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[rec.ExternalID]; ok {
		return ErrDuplicateKey
	}
	s.rows[rec.ExternalID] = rec
	s.order = append(s.order, rec.ExternalID)
	return nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, filter Filter) (int64, error) {
	if filter.Empty() {
		return 0, ErrEmptyFilter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.order[:0]
	for _, id := range s.order {
		if s.rows[id].IngestedAt.Before(filter.IngestedBefore) {
			delete(s.rows, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}

func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

// All returns a snapshot in insertion order.
func (s *MemoryStore) All() []catalog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]catalog.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]catalog.Record)
	s.order = nil
	return nil
}
