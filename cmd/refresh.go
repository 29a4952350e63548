package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/lepinkainen/bookfeed/internal/fileutil"
	"github.com/lepinkainen/bookfeed/internal/pipeline"
	"github.com/lepinkainen/bookfeed/internal/report"
	"github.com/spf13/viper"
)

// runArchive is the on-disk record of one refresh.
type runArchive struct {
	Result  pipeline.Result  `json:"result"`
	Records []catalog.Record `json:"records"`
}

// RefreshCmd runs one refresh.
type RefreshCmd struct {
	Target          int    `short:"n" help:"Number of new records to find (0 uses refresh.target)"`
	JSON            bool   `help:"Print the result as JSON"`
	ReplaceTrending bool   `help:"Remove trending rows from earlier runs once new rows are added"`
	ArchiveDir      string `help:"Directory to write the run result and its records to (defaults to refresh.archive_dir)"`
}

func (r *RefreshCmd) Run() error {
	settings := config.Load()
	if r.ReplaceTrending {
		settings.ReplaceTrending = true
	}

	ctx, stop := signalContext()
	defer stop()

	svc, closeSvc, err := openService(ctx, settings)
	if err != nil {
		return err
	}
	defer closeSvc()

	res, err := svc.Refresh(ctx, r.Target)
	if err != nil {
		return err
	}

	archiveDir := r.ArchiveDir
	if archiveDir == "" {
		archiveDir = viper.GetString("refresh.archive_dir")
	}
	if archiveDir != "" && res.RunID != "" {
		path := fileutil.ArchivePath(archiveDir, res.RunID, time.Now())
		if _, err := fileutil.WriteJSONFile(runArchive{Result: res, Records: res.Records}, path, false); err != nil {
			slog.Warn("Failed to write run archive", "path", path, "error", err)
		} else {
			slog.Info("Wrote run archive", "path", path)
		}
	}

	if r.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		_, _ = fmt.Fprintln(stdout, report.Summary(res, report.Compute(res.Records, settings.StockThumbnail)))
	}

	if !res.Success {
		return fmt.Errorf("refresh failed: %s", res.Error)
	}
	return nil
}
