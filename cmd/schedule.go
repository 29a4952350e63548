package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/lepinkainen/bookfeed/internal/metrics"
	"github.com/lepinkainen/bookfeed/internal/trending"
	"golang.org/x/sync/errgroup"
)

// ScheduleCmd refreshes on a fixed interval until interrupted.
type ScheduleCmd struct {
	Interval    time.Duration `help:"Time between refreshes" default:"6h"`
	Target      int           `short:"n" help:"Number of new records per refresh (0 uses refresh.target)"`
	MetricsAddr string        `help:"Address to serve /metrics on (empty disables)" default:":9108"`
	RunNow      bool          `help:"Refresh once immediately on start" default:"true" negatable:""`
}

func (s *ScheduleCmd) Run() error {
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", s.Interval)
	}

	ctx, stop := signalContext()
	defer stop()

	m := metrics.NewManager()
	svc, closeSvc, err := openService(ctx, config.Load(), trending.WithMetrics(m))
	if err != nil {
		return err
	}
	defer closeSvc()

	g, ctx := errgroup.WithContext(ctx)
	if s.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              s.MetricsAddr,
			Handler:           metricsHandler(svc.Metrics()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("Serving metrics", "addr", s.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		return scheduleLoop(ctx, svc, s.Interval, s.Target, s.RunNow)
	})

	return g.Wait()
}

func metricsHandler(m *metrics.Manager) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// scheduleLoop starts a refresh on every tick. A tick that arrives while a
// refresh is still running is skipped.
func scheduleLoop(ctx context.Context, svc refreshService, interval time.Duration, target int, runNow bool) error {
	var runs errgroup.Group
	defer func() { _ = runs.Wait() }()

	start := func() {
		runs.Go(func() error {
			refreshOnce(ctx, svc, target)
			return nil
		})
	}

	if runNow {
		start()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopping")
			return nil
		case <-ticker.C:
			start()
		}
	}
}

func refreshOnce(ctx context.Context, svc refreshService, target int) {
	res, err := svc.Refresh(ctx, target)
	if errors.Is(err, trending.ErrRunInProgress) {
		slog.Warn("Skipping refresh, previous run still in progress")
		return
	}
	if err != nil {
		slog.Error("Refresh failed", "error", err)
		return
	}
	if !res.Success {
		slog.Error("Refresh failed", "run", res.RunID, "error", res.Error)
		return
	}
	slog.Info("Scheduled refresh done",
		"run", res.RunID,
		"new_records", res.NewRecordCount,
		"target", res.TargetCount,
		"shortfall", res.Shortfall,
	)
}
