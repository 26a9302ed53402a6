package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // keep any developer .env out of the test

	cfg, err := LoadConfig("book-engine")
	require.NoError(t, err)

	assert.Equal(t, "book-engine", cfg.ServiceName)
	assert.Equal(t, "BTC-USD", cfg.Symbol)
	assert.Equal(t, "book-engine-v1", cfg.ConsumerGroup)
	assert.Equal(t, ":50051", cfg.GRPCAddr())
	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, 250*time.Millisecond, cfg.OutboxInterval())
}

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	file := filepath.Join(dir, "book.yaml")
	require.NoError(t, os.WriteFile(file, []byte("symbol: ETH-USD\ntick_size: \"0.5\"\nhttp_port: 9000\nlog_level: debug\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT_GRPC=6000\nLOG_LEVEL=error\n"), 0o644))

	t.Setenv("BOOK_CONFIG_FILE", file)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Cleanup(func() { os.Unsetenv("PORT_GRPC") }) // set on the process by godotenv

	cfg, err := LoadConfig("book-engine")
	require.NoError(t, err)

	assert.Equal(t, "ETH-USD", cfg.Symbol, "from yaml")
	assert.Equal(t, "0.5", cfg.TickSize, "from yaml")
	assert.Equal(t, 9000, cfg.HTTPPort, "from yaml")
	assert.Equal(t, 6000, cfg.GRPCPort, "from .env")
	assert.Equal(t, "warn", cfg.LogLevel, "environment wins over .env and yaml")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Setenv("BOOK_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig("book-engine")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default("book-engine")
	require.NoError(t, cfg.Validate())

	cfg.Symbol = ""
	assert.Error(t, cfg.Validate())

	cfg = Default("book-engine")
	cfg.OutboxBatchSize = 0
	assert.Error(t, cfg.Validate())
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
