package testutil

import (
	"testing"

	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/spf13/viper"
)

// ResetConfig resets viper to the registered defaults and restores a clean
// viper when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	config.InitConfig()

	t.Cleanup(viper.Reset)
}

// SetTestConfig resets the configuration and applies overrides that keep
// tests fast: no inter-batch delays, no backoff sleeps, no request pacing.
func SetTestConfig(t *testing.T, overrides map[string]any) {
	t.Helper()

	ResetConfig(t)
	for _, source := range []string{"googlebooks", "openlibrary", "openlibrary_recent"} {
		viper.Set(source+".inter_batch_delay", "0s")
		viper.Set(source+".rate_limit_backoff", "0s")
		viper.Set(source+".requests_per_second", 0)
		viper.Set(source+".request_timeout", "2s")
	}
	viper.Set("cache.dbfile", t.TempDir()+"/cache.db")

	for key, value := range overrides {
		viper.Set(key, value)
	}
}
