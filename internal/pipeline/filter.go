package pipeline

import (
	"context"
	"log/slog"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	"github.com/lepinkainen/bookfeed/internal/datastore"
)

// exists reports whether either store already holds rec, by id or by title.
// Lookup errors count as "not found": the insert's unique key still guards
// against duplicates.
func (p *Pipeline) exists(ctx context.Context, rec catalog.Record) bool {
	for _, store := range p.collections() {
		if p.existsIn(ctx, store, rec) {
			return true
		}
	}
	return false
}

func (p *Pipeline) existsIn(ctx context.Context, store datastore.Collection, rec catalog.Record) bool {
	found, err := store.FindByID(ctx, rec.ExternalID)
	if err != nil {
		slog.Debug("Existence lookup failed", "store", store.Name(), "id", rec.ExternalID, "error", err)
	} else if found != nil {
		return true
	}

	matches, err := store.FindByTitle(ctx, rec.Title)
	if err != nil {
		slog.Debug("Title lookup failed", "store", store.Name(), "title", rec.Title, "error", err)
		return false
	}
	for _, m := range matches {
		if !p.settings.StrictTitleMatch || catalog.SharesAuthor(m.Authors, rec.Authors) {
			return true
		}
	}
	return false
}

// filterNew moves candidates that neither store knows into the run, stopping
// as soon as the target is reached.
func (p *Pipeline) filterNew(ctx context.Context, run *PipelineRun, batch []catalog.Record) int {
	added := 0
	for _, rec := range batch {
		if run.Done() || ctx.Err() != nil {
			break
		}
		if p.exists(ctx, rec) {
			run.existing++
			continue
		}
		if run.accept(rec) {
			added++
		}
	}
	return added
}
