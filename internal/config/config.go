package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds configuration for all services
type Config struct {
	// Service name
	ServiceName string `yaml:"service_name"`

	// Instrument served by this engine
	Symbol string `yaml:"symbol"`

	// Price increment as a decimal string; inbound prices are converted to ticks of this size
	TickSize string `yaml:"tick_size"`

	// gRPC server port
	GRPCPort int `yaml:"grpc_port"`

	// HTTP server port
	HTTPPort int `yaml:"http_port"`

	// Log level: debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// Kafka brokers (comma-separated)
	KafkaBrokers string `yaml:"kafka_brokers"`

	// Consumer group for order commands
	ConsumerGroup string `yaml:"consumer_group"`

	// Directory for the sqlite outbox
	DataDir string `yaml:"data_dir"`

	// Outbox publisher tick and batch size
	OutboxIntervalMs int `yaml:"outbox_interval_ms"`
	OutboxBatchSize  int `yaml:"outbox_batch_size"`
}

// Default returns the built-in configuration for serviceName
func Default(serviceName string) *Config {
	return &Config{
		ServiceName:      serviceName,
		Symbol:           "BTC-USD",
		TickSize:         "0.01",
		GRPCPort:         50051,
		HTTPPort:         8080,
		LogLevel:         "info",
		KafkaBrokers:     "127.0.0.1:9092",
		ConsumerGroup:    serviceName + "-v1",
		DataDir:          "./data",
		OutboxIntervalMs: 250,
		OutboxBatchSize:  100,
	}
}

// LoadConfig layers configuration sources, later ones winning:
// defaults, the YAML file named by BOOK_CONFIG_FILE, a .env file, and
// the process environment.
func LoadConfig(serviceName string) (*Config, error) {
	cfg := Default(serviceName)

	if path := os.Getenv("BOOK_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env is optional; existing environment variables are not overridden
	_ = godotenv.Load()

	cfg.Symbol = getEnvAsString("BOOK_SYMBOL", cfg.Symbol)
	cfg.TickSize = getEnvAsString("BOOK_TICK_SIZE", cfg.TickSize)
	cfg.GRPCPort = getEnvAsInt("PORT_GRPC", cfg.GRPCPort)
	cfg.HTTPPort = getEnvAsInt("PORT_HTTP", cfg.HTTPPort)
	cfg.LogLevel = getEnvAsString("LOG_LEVEL", cfg.LogLevel)
	cfg.KafkaBrokers = getEnvAsString("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.ConsumerGroup = getEnvAsString("KAFKA_CONSUMER_GROUP", cfg.ConsumerGroup)
	cfg.DataDir = getEnvAsString("DATA_DIR", cfg.DataDir)
	cfg.OutboxIntervalMs = getEnvAsInt("OUTBOX_INTERVAL_MS", cfg.OutboxIntervalMs)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the services cannot start with
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if c.TickSize == "" {
		return fmt.Errorf("tick size cannot be empty")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("outbox batch size must be greater than 0")
	}
	if c.OutboxIntervalMs <= 0 {
		return fmt.Errorf("outbox interval must be greater than 0")
	}
	return nil
}

// GRPCAddr returns the gRPC server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Brokers splits KafkaBrokers into trimmed, non-empty addresses
func (c *Config) Brokers() []string {
	return SplitBrokers(c.KafkaBrokers)
}

// OutboxInterval returns the publisher tick as a duration
func (c *Config) OutboxInterval() time.Duration {
	return time.Duration(c.OutboxIntervalMs) * time.Millisecond
}

// SplitBrokers parses a comma-separated broker list
func SplitBrokers(s string) []string {
	brokers := make([]string, 0)
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
