package config

import (
	"time"

	"github.com/spf13/viper"
)

// StoreSettings selects and addresses the persistent document stores.
type StoreSettings struct {
	// Driver is one of sqlite, postgres, mongodb or memory.
	Driver string
	// DSN is the sqlite file path, postgres connection string or mongodb URI.
	DSN string
	// Database is the mongodb database name; unused by the other drivers.
	Database           string
	TrendingCollection string
	CatalogCollection  string
}

// SourceSettings configures how one catalog API is called.
type SourceSettings struct {
	BaseURL           string
	APIKey            string
	PageSize          int
	BatchSize         int
	RequestsPerSecond int
	InterBatchDelay   time.Duration
	RateLimitBackoff  time.Duration
	RequestTimeout    time.Duration
}

// Settings is a typed snapshot of the refresh configuration.
type Settings struct {
	TargetCount     int
	MaxRounds       int
	QueriesPerRound int
	QueryGrowth     int
	// FetchBudget is the raw item budget per fetcher per round. Zero means
	// three times the remaining target.
	FetchBudget      int
	StrictTitleMatch bool
	ReplaceTrending  bool

	MinDescription int
	MaxDescription int
	MinYear        int
	CategoryLimit  int
	ImageProxy     string
	StockThumbnail string

	VocabularyFile string

	GoogleBooks       SourceSettings
	OpenLibrary       SourceSettings
	// OpenLibraryRecent is the optional newest-first search, used only
	// when IncludeRecent is set.
	OpenLibraryRecent SourceSettings
	IncludeRecent     bool
	Store             StoreSettings
}

// InitConfig registers defaults for every refresh setting
func InitConfig() {
	viper.SetDefault("log.level", "info")

	viper.SetDefault("refresh.target", 50)
	viper.SetDefault("refresh.max_rounds", 5)
	viper.SetDefault("refresh.queries_per_round", 24)
	viper.SetDefault("refresh.query_growth", 12)
	viper.SetDefault("refresh.fetch_budget", 0)
	viper.SetDefault("refresh.strict_title_match", true)
	viper.SetDefault("refresh.replace_trending", false)
	viper.SetDefault("refresh.archive_dir", "")

	viper.SetDefault("normalize.min_description", 80)
	viper.SetDefault("normalize.max_description", 600)
	viper.SetDefault("normalize.min_year", 1800)
	viper.SetDefault("normalize.category_limit", 3)
	viper.SetDefault("normalize.image_proxy", "")
	viper.SetDefault("normalize.stock_thumbnail", "https://covers.openlibrary.org/b/id/10909258-M.jpg")

	viper.SetDefault("querygen.vocabulary_file", "")

	viper.SetDefault("googlebooks.base_url", "https://www.googleapis.com/books/v1")
	viper.SetDefault("googlebooks.page_size", 20)
	viper.SetDefault("googlebooks.batch_size", 4)
	viper.SetDefault("googlebooks.requests_per_second", 2)
	viper.SetDefault("googlebooks.inter_batch_delay", "1500ms")
	viper.SetDefault("googlebooks.rate_limit_backoff", "10s")
	viper.SetDefault("googlebooks.request_timeout", "15s")

	viper.SetDefault("openlibrary.base_url", "https://openlibrary.org")
	viper.SetDefault("openlibrary.page_size", 12)
	viper.SetDefault("openlibrary.batch_size", 5)
	viper.SetDefault("openlibrary.requests_per_second", 3)
	viper.SetDefault("openlibrary.inter_batch_delay", "1s")
	viper.SetDefault("openlibrary.rate_limit_backoff", "10s")
	viper.SetDefault("openlibrary.request_timeout", "20s")

	viper.SetDefault("openlibrary_recent.enabled", false)
	viper.SetDefault("openlibrary_recent.base_url", "https://openlibrary.org")
	viper.SetDefault("openlibrary_recent.page_size", 10)
	viper.SetDefault("openlibrary_recent.batch_size", 2)
	viper.SetDefault("openlibrary_recent.requests_per_second", 1)
	viper.SetDefault("openlibrary_recent.inter_batch_delay", "4s")
	viper.SetDefault("openlibrary_recent.rate_limit_backoff", "10s")
	viper.SetDefault("openlibrary_recent.request_timeout", "20s")

	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.dsn", "./bookfeed.db")
	viper.SetDefault("store.database", "bookrec")
	viper.SetDefault("store.trending_collection", "trending_books")
	viper.SetDefault("store.catalog_collection", "catalog_books")

	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h")
}

// Load reads the current viper state into a Settings value.
func Load() Settings {
	return Settings{
		TargetCount:      viper.GetInt("refresh.target"),
		MaxRounds:        viper.GetInt("refresh.max_rounds"),
		QueriesPerRound:  viper.GetInt("refresh.queries_per_round"),
		QueryGrowth:      viper.GetInt("refresh.query_growth"),
		FetchBudget:      viper.GetInt("refresh.fetch_budget"),
		StrictTitleMatch: viper.GetBool("refresh.strict_title_match"),
		ReplaceTrending:  viper.GetBool("refresh.replace_trending"),

		MinDescription: viper.GetInt("normalize.min_description"),
		MaxDescription: viper.GetInt("normalize.max_description"),
		MinYear:        viper.GetInt("normalize.min_year"),
		CategoryLimit:  viper.GetInt("normalize.category_limit"),
		ImageProxy:     viper.GetString("normalize.image_proxy"),
		StockThumbnail: viper.GetString("normalize.stock_thumbnail"),

		VocabularyFile: viper.GetString("querygen.vocabulary_file"),

		GoogleBooks:       loadSource("googlebooks"),
		OpenLibrary:       loadSource("openlibrary"),
		OpenLibraryRecent: loadSource("openlibrary_recent"),
		IncludeRecent:     viper.GetBool("openlibrary_recent.enabled"),
		Store: StoreSettings{
			Driver:             viper.GetString("store.driver"),
			DSN:                viper.GetString("store.dsn"),
			Database:           viper.GetString("store.database"),
			TrendingCollection: viper.GetString("store.trending_collection"),
			CatalogCollection:  viper.GetString("store.catalog_collection"),
		},
	}
}

func loadSource(key string) SourceSettings {
	return SourceSettings{
		BaseURL:           viper.GetString(key + ".base_url"),
		APIKey:            viper.GetString(key + ".api_key"),
		PageSize:          viper.GetInt(key + ".page_size"),
		BatchSize:         viper.GetInt(key + ".batch_size"),
		RequestsPerSecond: viper.GetInt(key + ".requests_per_second"),
		InterBatchDelay:   viper.GetDuration(key + ".inter_batch_delay"),
		RateLimitBackoff:  viper.GetDuration(key + ".rate_limit_backoff"),
		RequestTimeout:    viper.GetDuration(key + ".request_timeout"),
	}
}
