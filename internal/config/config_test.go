package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(EnvMap{"ETHERSCAN_API_KEY": "key"})
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.ExplorerAPIKey)
	assert.Equal(t, "https://api.etherscan.io/api", cfg.ExplorerBaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "transactions.csv", cfg.ExportPath)
	assert.Equal(t, "ETH", cfg.NativeSymbol)
	assert.Equal(t, 10000, cfg.PageSize)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.PageDelay)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Zero(t, cfg.RunTimeout)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 30*time.Minute, cfg.RunLockTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "txexport-runs", cfg.KafkaTopic)
	assert.Equal(t, 100, cfg.Log.MaxSizeMB)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(EnvMap{
		"ETHERSCAN_API_KEY":  "key",
		"ETHERSCAN_BASE_URL": "https://api-sepolia.etherscan.io/api",
		"PAGE_SIZE":          "500",
		"MAX_ATTEMPTS":       "2",
		"RETRY_BASE_DELAY":   "250ms",
		"RUN_TIMEOUT":        "10m",
		"KAFKA_BROKERS":      "a:9092, b:9092,,",
		"REDIS_ADDR":         " 127.0.0.1:6379 ",
		"LOG_FORMAT":         "json",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://api-sepolia.etherscan.io/api", cfg.ExplorerBaseURL)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]EnvMap{
		"missing key":     {},
		"blank key":       {"ETHERSCAN_API_KEY": "  "},
		"zero page size":  {"ETHERSCAN_API_KEY": "k", "PAGE_SIZE": "0"},
		"bad attempts":    {"ETHERSCAN_API_KEY": "k", "MAX_ATTEMPTS": "many"},
		"too many tries":  {"ETHERSCAN_API_KEY": "k", "MAX_ATTEMPTS": "21"},
		"bad delay":       {"ETHERSCAN_API_KEY": "k", "RETRY_BASE_DELAY": "soon"},
		"negative period": {"ETHERSCAN_API_KEY": "k", "PAGE_DELAY": "-1s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(env)
			assert.Error(t, err)
		})
	}

	_, err := Load(nil)
	assert.Error(t, err)

	cfg, err := Load(EnvMap{"ETHERSCAN_API_KEY": "k", "MAX_ATTEMPTS": "20"})
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.MaxAttempts)
}

func TestLoadFromFileLayersUnderEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ETHERSCAN_API_KEY=from-file\nEXPORT_PATH=file.csv\nPAGE_SIZE=42\n"), 0o644))
	t.Setenv("EXPORT_PATH", "env.csv")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.ExplorerAPIKey)
	assert.Equal(t, "env.csv", cfg.ExportPath)
	assert.Equal(t, 42, cfg.PageSize)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
