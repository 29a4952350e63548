package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	"github.com/lepinkainen/bookfeed/internal/datastore"
	"github.com/lepinkainen/bookfeed/internal/dedup"
	"github.com/lepinkainen/bookfeed/internal/metrics"
	"github.com/lepinkainen/bookfeed/internal/normalize"
	"github.com/lepinkainen/bookfeed/internal/querygen"
	"github.com/lepinkainen/bookfeed/internal/sources"
)

// Run statuses recorded in metrics.
const (
	StatusOK        = "ok"
	StatusShortfall = "shortfall"
	StatusFailed    = "failed"
)

const pingTimeout = 10 * time.Second

// QueryGenerator produces the queries for a round. Later rounds are wider.
type QueryGenerator interface {
	Generate(round int) []querygen.Query
}

// Settings tune the guarantee loop.
type Settings struct {
	MaxRounds int
	// QueriesPerRound caps round 1; each later round may use QueryGrowth more.
	// Zero disables the cap.
	QueriesPerRound int
	QueryGrowth     int
	// FetchBudget is the raw item budget per fetcher per round. Zero means
	// three times the records still needed.
	FetchBudget      int
	StrictTitleMatch bool
	ReplaceTrending  bool
}

// Pipeline wires the refresh stages together.
type Pipeline struct {
	queries    QueryGenerator
	fetchers   []sources.Fetcher
	normalizer *normalize.Normalizer
	stores     datastore.Stores
	settings   Settings
	metrics    *metrics.Manager
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records run metrics in m.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline. Fetchers are consumed in the given order, so the
// richest source should come first.
func New(queries QueryGenerator, fetchers []sources.Fetcher, n *normalize.Normalizer, stores datastore.Stores, s Settings, opts ...Option) *Pipeline {
	p := &Pipeline{
		queries:    queries,
		fetchers:   fetchers,
		normalizer: n,
		stores:     stores,
		settings:   s,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.settings.MaxRounds < 1 {
		p.settings.MaxRounds = 1
	}
	return p
}

func (p *Pipeline) collections() []datastore.Collection {
	return []datastore.Collection{p.stores.Trending, p.stores.Catalog}
}

// checkStores fails only when no store answers.
func (p *Pipeline) checkStores(ctx context.Context) error {
	var failures []error
	for _, store := range p.collections() {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			slog.Warn("Store unreachable", "store", store.Name(), "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", store.Name(), err))
		}
	}
	if len(failures) == len(p.collections()) {
		return fmt.Errorf("no store reachable: %w", errors.Join(failures...))
	}
	return nil
}

// RefreshTrending finds up to target new records and commits them to both
// stores. It always returns a Result; partial store failures and shortfalls
// are reported in it, not as errors.
func (p *Pipeline) RefreshTrending(ctx context.Context, target int) Result {
	start := p.now()
	run := newRun(target, start.UTC())
	logger := slog.With("run", run.ID.String())

	finish := func(res Result, status string) Result {
		elapsed := p.now().Sub(start)
		res.ProcessingTimeSeconds = elapsed.Seconds()
		p.metrics.ObserveRun(status, res.NewRecordCount, elapsed)
		return res
	}
	fail := func(err error) Result {
		logger.Error("Refresh failed", "error", err)
		res := run.result()
		res.Error = err.Error()
		return finish(res, StatusFailed)
	}

	if target < 1 {
		return fail(fmt.Errorf("target must be positive, got %d", target))
	}
	if err := p.checkStores(ctx); err != nil {
		return fail(err)
	}

	logger.Info("Starting refresh", "target", target, "max_rounds", p.settings.MaxRounds)

	for round := 1; round <= p.settings.MaxRounds && !run.Done(); round++ {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("refresh cancelled: %w", err))
		}
		p.runRound(ctx, run, round)
	}
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("refresh cancelled: %w", err))
	}

	status := StatusOK
	if !run.Done() {
		status = StatusShortfall
		logger.Warn("Target not reached", "target", target, "found", len(run.Candidates()), "rounds", run.rounds)
	}

	res := run.result()
	res.PerStore = p.Sync(ctx, run.Candidates())
	if p.settings.ReplaceTrending && res.PerStore.Trending.Added > 0 {
		p.replaceTrending(ctx, run)
	}
	res.Success = true

	logger.Info("Refresh complete",
		"new_records", res.NewRecordCount,
		"rounds", res.Attempts,
		"fetched", run.fetched,
		"rejected", run.rejected,
		"already_stored", run.existing,
		"trending_added", res.PerStore.Trending.Added,
		"catalog_added", res.PerStore.Catalog.Added,
	)
	return finish(res, status)
}

func (p *Pipeline) runRound(ctx context.Context, run *PipelineRun, round int) {
	run.rounds++
	p.metrics.ObserveRound()

	queries := p.queries.Generate(round)
	if limit := p.queryLimit(round); limit > 0 && len(queries) > limit {
		queries = queries[:limit]
	}

	budget := p.settings.FetchBudget
	if budget <= 0 {
		budget = 3 * run.Remaining()
	}

	batch := p.collect(ctx, run, queries, budget)
	unique := dedup.New().Unique(batch)
	added := p.filterNew(ctx, run, unique)

	slog.Info("Round finished",
		"run", run.ID.String(),
		"round", round,
		"queries", len(queries),
		"valid", len(batch),
		"unique", len(unique),
		"new", added,
		"total", len(run.Candidates()),
	)
}

func (p *Pipeline) queryLimit(round int) int {
	if p.settings.QueriesPerRound <= 0 {
		return 0
	}
	return p.settings.QueriesPerRound + p.settings.QueryGrowth*(round-1)
}

// collect fetches from every source in priority order and keeps the items
// that pass validation.
func (p *Pipeline) collect(ctx context.Context, run *PipelineRun, queries []querygen.Query, budget int) []catalog.Record {
	var out []catalog.Record
	for _, f := range p.fetchers {
		if ctx.Err() != nil {
			break
		}
		items := f.Fetch(ctx, queries, budget)
		run.fetched += len(items)

		policy := f.Policy()
		for _, item := range items {
			rec, err := p.normalizer.Normalize(item, policy)
			if err != nil {
				run.rejected++
				p.metrics.ObserveRejection(f.Name())
				slog.Debug("Item rejected", "source", f.Name(), "reason", err)
				continue
			}
			out = append(out, rec)
		}
	}
	return out
}
