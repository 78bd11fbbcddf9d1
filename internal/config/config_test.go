package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.MySQL.DSN)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 10, cfg.Ledger.LowStockThreshold)
	assert.Equal(t, 3, cfg.Ledger.WriteRetries)
	assert.Equal(t, 64, cfg.Bus.ObserverBufferSize)
	assert.Equal(t, 5*time.Second, cfg.Gateway.ReconnectDelay)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  addr: ":9090"
mysql:
  dsn: "root:root@tcp(db:3306)/storeledger?parseTime=true"
ledger:
  low_stock_threshold: 25
gateway:
  reconnect_delay: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "root:root@tcp(db:3306)/storeledger?parseTime=true", cfg.MySQL.DSN)
	assert.Equal(t, 25, cfg.Ledger.LowStockThreshold)
	assert.Equal(t, 2*time.Second, cfg.Gateway.ReconnectDelay)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Ledger.WriteRetries)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  low_stock_threshold: 25\n"), 0o600))

	t.Setenv("STOCKLEDGER_LEDGER_LOW_STOCK_THRESHOLD", "40")
	t.Setenv("STOCKLEDGER_HTTP_ADDR", ":7070")
	t.Setenv("STOCKLEDGER_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Ledger.LowStockThreshold)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"negative threshold", map[string]string{"STOCKLEDGER_LEDGER_LOW_STOCK_THRESHOLD": "-1"}},
		{"negative retries", map[string]string{"STOCKLEDGER_LEDGER_WRITE_RETRIES": "-1"}},
		{"zero buffer", map[string]string{"STOCKLEDGER_BUS_OBSERVER_BUFFER_SIZE": "0"}},
		{"zero reconnect delay", map[string]string{"STOCKLEDGER_GATEWAY_RECONNECT_DELAY": "0s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
