// Package sources fetches raw catalog items from external book APIs.
package sources

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	errs "github.com/lepinkainen/bookfeed/internal/errors"
	"github.com/lepinkainen/bookfeed/internal/normalize"
	"github.com/lepinkainen/bookfeed/internal/querygen"
	"github.com/lepinkainen/bookfeed/internal/ratelimit"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves raw items for a set of queries. It never fails as a
// whole: per-query failures contribute zero items.
type Fetcher interface {
	Name() string
	Policy() normalize.Policy
	// Fetch stops once budget raw items have been collected; budget <= 0
	// means no limit. The result never exceeds budget.
	Fetch(ctx context.Context, queries []querygen.Query, budget int) []normalize.RawItem
}

// batchSettings control how queries are spread over time.
type batchSettings struct {
	size  int
	delay time.Duration
}

type fetchFunc func(ctx context.Context, q querygen.Query) ([]normalize.RawItem, error)

// runBatches executes queries in sequential batches of concurrent requests.
// Within a batch, results are concatenated in query order.
func runBatches(ctx context.Context, source string, b batchSettings, queries []querygen.Query, budget int, fetch fetchFunc) []normalize.RawItem {
	size := max(b.size, 1)
	var out []normalize.RawItem

	for start := 0; start < len(queries); start += size {
		if budget > 0 && len(out) >= budget {
			break
		}
		if start > 0 {
			if err := ratelimit.Sleep(ctx, b.delay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		batch := queries[start:min(start+size, len(queries))]
		results := make([][]normalize.RawItem, len(batch))
		var rateLimited atomic.Int32

		var g errgroup.Group
		g.SetLimit(size)
		for i, q := range batch {
			g.Go(func() error {
				items, err := fetch(ctx, q)
				switch {
				case err == nil:
					results[i] = items
				case errs.IsRateLimitError(err):
					rateLimited.Add(1)
					slog.Warn("Rate limited, query skipped", "source", source, "query", q.Text())
				case ctx.Err() != nil:
					// Cancelled; the loop exits below.
				default:
					slog.Warn("Query failed, skipping", "source", source, "query", q.Text(), "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()

		for _, items := range results {
			out = append(out, items...)
		}
		if n := rateLimited.Load(); n > 0 {
			slog.Info("Backing off before next batch", "source", source, "rate_limited", n)
		}
	}

	if budget > 0 && len(out) > budget {
		out = out[:budget]
	}
	return out
}
