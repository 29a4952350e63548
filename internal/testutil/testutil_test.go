package testutil

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestEnvWritesInsideSandbox(t *testing.T) {
	env := NewTestEnv(t)

	path := env.WriteFileString("nested/vocab.yaml", "genres: [fantasy]\n")

	assert.True(t, env.FileExists("nested/vocab.yaml"))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "genres: [fantasy]\n", string(content))
	assert.True(t, env.isWithinSandbox(path))
	assert.False(t, env.isWithinSandbox("/etc/passwd"))
}

func TestSetTestConfigDisablesDelays(t *testing.T) {
	SetTestConfig(t, map[string]any{"refresh.target": 3})

	assert.Equal(t, 3, viper.GetInt("refresh.target"))
	assert.Zero(t, viper.GetDuration("googlebooks.inter_batch_delay"))
	assert.Zero(t, viper.GetDuration("openlibrary.rate_limit_backoff"))
	assert.Equal(t, 0, viper.GetInt("googlebooks.requests_per_second"))
}
