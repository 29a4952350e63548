// Package trending wires the refresh pipeline to its sources and stores and
// guards it against overlapping runs.
package trending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/lepinkainen/bookfeed/internal/datastore"
	"github.com/lepinkainen/bookfeed/internal/metrics"
	"github.com/lepinkainen/bookfeed/internal/normalize"
	"github.com/lepinkainen/bookfeed/internal/pipeline"
	"github.com/lepinkainen/bookfeed/internal/querygen"
	"github.com/lepinkainen/bookfeed/internal/sources"
)

// ErrRunInProgress is returned when a refresh is requested while another is running.
var ErrRunInProgress = errors.New("a trending refresh is already running")

// Refresher runs one refresh.
type Refresher interface {
	RefreshTrending(ctx context.Context, target int) pipeline.Result
}

// CollectionStats is the row count of one collection.
type CollectionStats struct {
	Name  string
	Count int64
}

// Service is the entry point for refreshes, pruning and stats.
type Service struct {
	mu            sync.Mutex
	refresher     Refresher
	stores        datastore.Stores
	metrics       *metrics.Manager
	defaultTarget int
	now           func() time.Time
}

// Option configures NewService.
type Option func(*serviceOptions)

type serviceOptions struct {
	metrics     *metrics.Manager
	sourceOpts  []sources.Option
	normOptions []normalize.Option
}

// WithMetrics shares m with the caller, e.g. to serve it over HTTP.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithSourceOptions passes options to both source clients.
func WithSourceOptions(opts ...sources.Option) Option {
	return func(o *serviceOptions) { o.sourceOpts = append(o.sourceOpts, opts...) }
}

// WithNormalizeOptions passes options to the normalizer.
func WithNormalizeOptions(opts ...normalize.Option) Option {
	return func(o *serviceOptions) { o.normOptions = append(o.normOptions, opts...) }
}

// NewService opens the stores and assembles the pipeline from s.
func NewService(ctx context.Context, s config.Settings, opts ...Option) (*Service, error) {
	o := serviceOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewManager()
	}

	vocab := querygen.DefaultVocabulary()
	if s.VocabularyFile != "" {
		v, err := querygen.LoadVocabulary(s.VocabularyFile)
		if err != nil {
			return nil, err
		}
		vocab = v
	}

	stores, err := datastore.Open(ctx, s.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}

	sourceOpts := append([]sources.Option{sources.WithMetrics(o.metrics)}, o.sourceOpts...)
	googleBooks := sources.NewGoogleBooks(s.GoogleBooks, sourceOpts...)
	lookup := sources.NewCachedLookup(googleBooks)
	fetchers := []sources.Fetcher{googleBooks, sources.NewOpenLibrary(s.OpenLibrary, lookup, sourceOpts...)}
	if s.IncludeRecent {
		fetchers = append(fetchers, sources.NewOpenLibraryRecent(s.OpenLibraryRecent, lookup, sourceOpts...))
	}

	normalizer := normalize.New(normalize.Options{
		MinDescription: s.MinDescription,
		MaxDescription: s.MaxDescription,
		MinYear:        s.MinYear,
		CategoryLimit:  s.CategoryLimit,
		ImageProxy:     s.ImageProxy,
		StockThumbnail: s.StockThumbnail,
	}, o.normOptions...)

	p := pipeline.New(
		querygen.NewGenerator(vocab),
		fetchers,
		normalizer,
		stores,
		pipeline.Settings{
			MaxRounds:        s.MaxRounds,
			QueriesPerRound:  s.QueriesPerRound,
			QueryGrowth:      s.QueryGrowth,
			FetchBudget:      s.FetchBudget,
			StrictTitleMatch: s.StrictTitleMatch,
			ReplaceTrending:  s.ReplaceTrending,
		},
		pipeline.WithMetrics(o.metrics),
	)

	slog.Debug("Trending service ready", "store", s.Store.Driver, "target", s.TargetCount)
	return newService(p, stores, o.metrics, s.TargetCount), nil
}

func newService(r Refresher, stores datastore.Stores, m *metrics.Manager, target int) *Service {
	return &Service{
		refresher:     r,
		stores:        stores,
		metrics:       m,
		defaultTarget: target,
		now:           time.Now,
	}
}

// Refresh runs the pipeline once. A target below 1 uses the configured
// default. Only one refresh runs at a time; others get ErrRunInProgress.
func (s *Service) Refresh(ctx context.Context, target int) (pipeline.Result, error) {
	if target < 1 {
		target = s.defaultTarget
	}
	if !s.mu.TryLock() {
		return pipeline.Result{}, ErrRunInProgress
	}
	defer s.mu.Unlock()

	return s.refresher.RefreshTrending(ctx, target), nil
}

// Prune deletes trending rows ingested more than olderThan ago. The catalog
// is never pruned.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("prune age must be positive, got %s", olderThan)
	}
	cutoff := s.now().Add(-olderThan)
	n, err := s.stores.Trending.DeleteMany(ctx, datastore.Filter{IngestedBefore: cutoff})
	if err != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", s.stores.Trending.Name(), err)
	}
	slog.Info("Pruned trending rows", "store", s.stores.Trending.Name(), "cutoff", cutoff.Format(time.RFC3339), "deleted", n)
	return n, nil
}

// Stats counts the rows of both collections.
func (s *Service) Stats(ctx context.Context) ([]CollectionStats, error) {
	var out []CollectionStats
	for _, c := range []datastore.Collection{s.stores.Trending, s.stores.Catalog} {
		n, err := c.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.Name(), err)
		}
		out = append(out, CollectionStats{Name: c.Name(), Count: n})
	}
	return out, nil
}

// Metrics returns the service's metrics manager.
func (s *Service) Metrics() *metrics.Manager {
	return s.metrics
}

// Close releases the stores.
func (s *Service) Close() error {
	return s.stores.Close()
}
