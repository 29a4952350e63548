package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	"github.com/lepinkainen/bookfeed/internal/datastore"
	"github.com/lepinkainen/bookfeed/internal/metrics"
)

func (t *StoreTally) add(outcome string) {
	switch outcome {
	case metrics.InsertAdded:
		t.Added++
	case metrics.InsertExisting:
		t.Existing++
	default:
		t.Errors++
	}
}

// Sync inserts every record into both stores. Each insert is independent:
// a failure in one store or for one record never stops the others.
func (p *Pipeline) Sync(ctx context.Context, records []catalog.Record) PerStore {
	var out PerStore
	stamp := p.now().UTC()

	for _, rec := range records {
		rec.IngestedAt = stamp
		out.Trending.add(p.insert(ctx, p.stores.Trending, rec))
		out.Catalog.add(p.insert(ctx, p.stores.Catalog, rec))
	}
	return out
}

func (p *Pipeline) insert(ctx context.Context, store datastore.Collection, rec catalog.Record) string {
	outcome := metrics.InsertAdded
	err := store.InsertOne(ctx, rec)
	switch {
	case errors.Is(err, datastore.ErrDuplicateKey):
		outcome = metrics.InsertExisting
	case err != nil:
		outcome = metrics.InsertError
		slog.Error("Insert failed", "store", store.Name(), "id", rec.ExternalID, "title", rec.Title, "error", err)
	}
	p.metrics.ObserveInsert(store.Name(), outcome)
	return outcome
}

// replaceTrending removes trending rows ingested before the run started.
func (p *Pipeline) replaceTrending(ctx context.Context, run *PipelineRun) {
	n, err := p.stores.Trending.DeleteMany(ctx, datastore.Filter{IngestedBefore: run.StartedAt})
	if err != nil {
		slog.Warn("Failed to remove stale trending rows", "store", p.stores.Trending.Name(), "error", err)
		return
	}
	slog.Info("Removed stale trending rows", "store", p.stores.Trending.Name(), "deleted", n)
}
