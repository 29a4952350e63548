package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/bookfeed/internal/cache"
	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/lepinkainen/bookfeed/internal/metrics"
	"github.com/lepinkainen/bookfeed/internal/pipeline"
	"github.com/lepinkainen/bookfeed/internal/trending"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

// refreshService is the part of trending.Service the commands use.
type refreshService interface {
	Refresh(ctx context.Context, target int) (pipeline.Result, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
	Stats(ctx context.Context) ([]trending.CollectionStats, error)
	Metrics() *metrics.Manager
	Close() error
}

var (
	newService = func(ctx context.Context, s config.Settings, opts ...trending.Option) (refreshService, error) {
		svc, err := trending.NewService(ctx, s, opts...)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	stdout io.Writer = os.Stdout
	// Logs stay off stdout so `refresh --json` output can be piped.
	logOutput io.Writer = os.Stderr
)

// CLI represents the complete command structure for the bookfeed application
type CLI struct {
	// Global flags. Empty values keep what config.yaml or the environment set.
	LogLevel    string `help:"Log level (debug, info, warn, error)"`
	StoreDriver string `help:"Store backend (sqlite, postgres, mongodb, memory)"`
	StoreDSN    string `help:"Store DSN, or database file path for sqlite"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)"`

	Refresh  RefreshCmd  `cmd:"" help:"Find new trending books and store them"`
	Schedule ScheduleCmd `cmd:"" help:"Refresh periodically and serve metrics"`
	Prune    PruneCmd    `cmd:"" help:"Delete old trending rows"`
	Stats    StatsCmd    `cmd:"" help:"Show collection row counts"`
	Cache    CacheCmd    `cmd:"" help:"Manage the lookup cache"`
}

// CacheCmd groups cache maintenance subcommands.
type CacheCmd struct {
	Invalidate   cache.InvalidateCacheCmd `cmd:"" help:"Remove every entry of a cache"`
	PruneExpired cache.PruneExpiredCmd    `cmd:"" name:"prune-expired" help:"Remove expired cache entries"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(slog.LevelInfo)
	initConfig()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bookfeed"),
		kong.Description("Keeps a trending book collection stocked with new titles from public catalog APIs."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)
	initLogging(parseLogLevel(viper.GetString("log.level")))

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.InitConfig()

	viper.SetEnvPrefix("BOOKFEED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, env := range map[string]string{
		"googlebooks.api_key": "GOOGLE_BOOKS_API_KEY",
		"store.dsn":           "BOOKFEED_STORE_DSN",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			slog.Error("Failed to bind environment variable", "key", key, "error", err)
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Info("Config file not found, writing default config file...")
			if err := viper.SafeWriteConfig(); err != nil {
				slog.Error("Error writing config file", "error", err)
			}
			os.Exit(0)
		}
		slog.Error("Fatal error config file", "error", err)
		os.Exit(1)
	}
}

func updateGlobalConfig(cli *CLI) {
	for key, value := range map[string]string{
		"log.level":    cli.LogLevel,
		"store.driver": cli.StoreDriver,
		"store.dsn":    cli.StoreDSN,
		"cache.dbfile": cli.CacheDBFile,
		"cache.ttl":    cli.CacheTTL,
	} {
		if value != "" {
			viper.Set(key, value)
		}
	}
}

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func initLogging(level slog.Level) {
	handler := humanlog.NewHandler(logOutput, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openService(ctx context.Context, s config.Settings, opts ...trending.Option) (refreshService, func(), error) {
	svc, err := newService(ctx, s, opts...)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := svc.Close(); err != nil {
			slog.Warn("Failed to close stores", "error", err)
		}
	}
	return svc, closeFn, nil
}
