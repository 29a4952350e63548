package cmd

import (
	"fmt"
	"time"

	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/lepinkainen/bookfeed/internal/report"
)

// PruneCmd deletes trending rows older than a cutoff.
type PruneCmd struct {
	OlderThan time.Duration `help:"Delete trending rows ingested longer ago than this" default:"168h"`
}

func (p *PruneCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	svc, closeSvc, err := openService(ctx, config.Load())
	if err != nil {
		return err
	}
	defer closeSvc()

	n, err := svc.Prune(ctx, p.OlderThan)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Deleted %d trending rows older than %s\n", n, p.OlderThan)
	return nil
}

// StatsCmd prints per-collection row counts.
type StatsCmd struct{}

func (s *StatsCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	svc, closeSvc, err := openService(ctx, config.Load())
	if err != nil {
		return err
	}
	defer closeSvc()

	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, report.Collections(stats))
	return nil
}
