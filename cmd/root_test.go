package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/bookfeed/internal/catalog"
	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/lepinkainen/bookfeed/internal/metrics"
	"github.com/lepinkainen/bookfeed/internal/pipeline"
	"github.com/lepinkainen/bookfeed/internal/testutil"
	"github.com/lepinkainen/bookfeed/internal/trending"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu       sync.Mutex
	targets  []int
	result   pipeline.Result
	err      error
	pruned   time.Duration
	stats    []trending.CollectionStats
	closed   bool
	settings config.Settings
	logs     bool
}

func (f *fakeService) Refresh(_ context.Context, target int) (pipeline.Result, error) {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.mu.Unlock()
	if f.logs {
		slog.Info("Starting refresh", "target", target)
		slog.Info("Refresh complete", "new", f.result.NewRecordCount)
	}
	return f.result, f.err
}

func (f *fakeService) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	f.pruned = olderThan
	return 4, nil
}

func (f *fakeService) Stats(context.Context) ([]trending.CollectionStats, error) {
	return f.stats, nil
}

func (f *fakeService) Metrics() *metrics.Manager { return metrics.NewManager() }

func (f *fakeService) Close() error {
	f.closed = true
	return nil
}

func (f *fakeService) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.targets)
}

func resetCmdState(t *testing.T) *bytes.Buffer {
	t.Helper()
	testutil.ResetConfig(t)

	origService := newService
	origStdout := stdout
	origLogOutput := logOutput
	origLogger := slog.Default()
	buf := &bytes.Buffer{}
	stdout = buf
	logOutput = io.Discard
	t.Cleanup(func() {
		newService = origService
		stdout = origStdout
		logOutput = origLogOutput
		slog.SetDefault(origLogger)
	})
	return buf
}

func useFakeService(t *testing.T, f *fakeService) {
	t.Helper()
	newService = func(_ context.Context, s config.Settings, _ ...trending.Option) (refreshService, error) {
		f.settings = s
		return f, nil
	}
}

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	originalArgs := os.Args
	os.Args = append([]string{"bookfeed"}, args...)
	t.Cleanup(func() { os.Args = originalArgs })

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("bookfeed"),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)

	return cli, ctx
}

func TestUpdateGlobalConfig(t *testing.T) {
	resetCmdState(t)

	cli := &CLI{
		LogLevel:    "debug",
		StoreDriver: "postgres",
		StoreDSN:    "postgres://localhost/books",
		CacheDBFile: "/tmp/cache.db",
	}

	updateGlobalConfig(cli)

	assert.Equal(t, "debug", viper.GetString("log.level"))
	assert.Equal(t, "postgres", viper.GetString("store.driver"))
	assert.Equal(t, "postgres://localhost/books", viper.GetString("store.dsn"))
	assert.Equal(t, "/tmp/cache.db", viper.GetString("cache.dbfile"))
	assert.Equal(t, "720h", viper.GetString("cache.ttl"), "unset flags keep the configured value")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("loud"))
}

func TestRefreshCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "--store-driver", "memory", "refresh", "-n", "7", "--json", "--replace-trending")

	assert.Equal(t, "memory", cli.StoreDriver)
	assert.Equal(t, 7, cli.Refresh.Target)
	assert.True(t, cli.Refresh.JSON)
	assert.True(t, cli.Refresh.ReplaceTrending)
}

func TestCachePruneExpiredParsing(t *testing.T) {
	resetCmdState(t)

	cli, ctx := parseCLI(t, "cache", "prune-expired", "lookup")

	assert.Equal(t, "cache prune-expired <source>", ctx.Command())
	assert.Equal(t, "lookup", cli.Cache.PruneExpired.Source)
}

func TestScheduleCommandDefaults(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "schedule", "--no-run-now")

	assert.Equal(t, 6*time.Hour, cli.Schedule.Interval)
	assert.Equal(t, ":9108", cli.Schedule.MetricsAddr)
	assert.False(t, cli.Schedule.RunNow)
}

func TestRefreshRun_Summary(t *testing.T) {
	out := resetCmdState(t)
	f := &fakeService{result: pipeline.Result{RunID: "abc", Success: true, TargetCount: 3, NewRecordCount: 3}}
	useFakeService(t, f)

	cli, ctx := parseCLI(t, "refresh", "-n", "3", "--replace-trending")
	updateGlobalConfig(cli)
	require.NoError(t, ctx.Run())

	assert.Equal(t, []int{3}, f.targets)
	assert.True(t, f.settings.ReplaceTrending)
	assert.True(t, f.closed)
	assert.Contains(t, out.String(), "Trending refresh abc")
}

func TestRefreshRun_JSON(t *testing.T) {
	out := resetCmdState(t)
	f := &fakeService{result: pipeline.Result{RunID: "abc", Success: true, TargetCount: 5, NewRecordCount: 4, Shortfall: 1}}
	useFakeService(t, f)

	cli, ctx := parseCLI(t, "refresh", "--json")
	updateGlobalConfig(cli)
	require.NoError(t, ctx.Run())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, float64(4), decoded["newRecordCount"])
	assert.Equal(t, float64(1), decoded["shortfall"])
	assert.Contains(t, decoded, "perStore")
	assert.NotContains(t, decoded, "Records")
}

func TestRefreshRun_JSONKeepsLogsOffStdout(t *testing.T) {
	out := resetCmdState(t)
	logs := &bytes.Buffer{}
	logOutput = logs
	initLogging(slog.LevelInfo)

	f := &fakeService{logs: true, result: pipeline.Result{RunID: "abc", Success: true, TargetCount: 2, NewRecordCount: 2}}
	useFakeService(t, f)

	cli, ctx := parseCLI(t, "refresh", "--json")
	updateGlobalConfig(cli)
	require.NoError(t, ctx.Run())

	dec := json.NewDecoder(bytes.NewReader(out.Bytes()))
	var decoded map[string]any
	require.NoError(t, dec.Decode(&decoded))
	assert.Equal(t, "abc", decoded["runId"])
	assert.ErrorIs(t, dec.Decode(&decoded), io.EOF, "stdout holds exactly one JSON value")

	assert.Contains(t, logs.String(), "Starting refresh")
	assert.Contains(t, logs.String(), "Refresh complete")
	assert.NotContains(t, out.String(), "Starting refresh")
}

func TestRefreshRun_Failure(t *testing.T) {
	resetCmdState(t)
	useFakeService(t, &fakeService{result: pipeline.Result{Error: "no store reachable"}})

	cli, ctx := parseCLI(t, "refresh")
	updateGlobalConfig(cli)
	err := ctx.Run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no store reachable")
}

func TestRefreshRun_ServiceError(t *testing.T) {
	resetCmdState(t)
	newService = func(context.Context, config.Settings, ...trending.Option) (refreshService, error) {
		return nil, errors.New("failed to open stores: boom")
	}

	cli, ctx := parseCLI(t, "refresh")
	updateGlobalConfig(cli)
	err := ctx.Run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestPruneAndStatsRun(t *testing.T) {
	out := resetCmdState(t)
	f := &fakeService{stats: []trending.CollectionStats{{Name: "trending_books", Count: 9}}}
	useFakeService(t, f)

	_, ctx := parseCLI(t, "prune", "--older-than", "48h")
	require.NoError(t, ctx.Run())
	assert.Equal(t, 48*time.Hour, f.pruned)
	assert.Contains(t, out.String(), "Deleted 4 trending rows")

	_, ctx = parseCLI(t, "stats")
	require.NoError(t, ctx.Run())
	assert.Contains(t, out.String(), "trending_books")
}

func TestStatsRun_MemoryStore(t *testing.T) {
	out := resetCmdState(t)
	viper.Set("store.driver", "memory")

	_, ctx := parseCLI(t, "stats")
	require.NoError(t, ctx.Run())

	assert.Contains(t, out.String(), "catalog_books")
}

func TestScheduleLoop(t *testing.T) {
	f := &fakeService{result: pipeline.Result{Success: true}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- scheduleLoop(ctx, f, 5*time.Millisecond, 2, true) }()

	require.Eventually(t, func() bool { return f.refreshCount() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, target := range f.targets {
		assert.Equal(t, 2, target)
	}
}

func TestScheduleLoop_SkipsOverlappingRun(t *testing.T) {
	f := &fakeService{err: trending.ErrRunInProgress}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A refresh reporting ErrRunInProgress is skipped, not fatal.
	require.NoError(t, scheduleLoop(ctx, f, time.Hour, 1, true))
	assert.Equal(t, 1, f.refreshCount())
}

func TestMetricsHandler(t *testing.T) {
	m := metrics.NewManager(metrics.WithNamespace("cmdtest"))
	m.ObserveRound()
	h := metricsHandler(m)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), "cmdtest_refresh_rounds_total 1")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rr.Code)
}

func TestRefreshRun_WritesArchive(t *testing.T) {
	resetCmdState(t)
	dir := t.TempDir()
	useFakeService(t, &fakeService{result: pipeline.Result{
		RunID:   "run-7",
		Success: true,
		Records: []catalog.Record{{ExternalID: "0441013597", Title: "Dune"}},
	}})

	cli, ctx := parseCLI(t, "refresh", "--archive-dir", dir)
	updateGlobalConfig(cli)
	require.NoError(t, ctx.Run())

	matches, err := filepath.Glob(filepath.Join(dir, "*-run-7.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var archive struct {
		Result  map[string]any   `json:"result"`
		Records []catalog.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(data, &archive))
	assert.Equal(t, "run-7", archive.Result["runId"])
	require.Len(t, archive.Records, 1)
	assert.Equal(t, "Dune", archive.Records[0].Title)
}
