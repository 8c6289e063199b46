package config

import (
	"errors"
	"fmt"

	"firestore-collection/internal/shared/database"

	"github.com/caarlos0/env/v6"
)

// Hard limit of writes a single store transaction may carry
const maxTransactionWritesLimit = 500

// WritesConfig tunes the write coordinator
type WritesConfig struct {
	// BulkConcurrency bounds in-flight operations of one bulk writer
	BulkConcurrency int `env:"BULK_CONCURRENCY" envDefault:"20" json:"bulk_concurrency"`

	// ChunkSize is the page size used when wiping a whole collection
	ChunkSize int `env:"DELETE_CHUNK_SIZE" envDefault:"200" json:"chunk_size"`

	// MaxTransactionWrites caps the number of writes in one transactional batch
	MaxTransactionWrites int `env:"MAX_TRANSACTION_WRITES" envDefault:"500" json:"max_transaction_writes"`

	// TransactionRetries is how often the in-memory store re-runs a conflicting transaction
	TransactionRetries int `env:"TRANSACTION_RETRIES" envDefault:"5" json:"transaction_retries"`
}

// LoggingConfig selects the logger backend
type LoggingConfig struct {
	Backend string `env:"LOG_BACKEND" envDefault:"logrus" json:"backend"`
	Level   string `env:"LOG_LEVEL" envDefault:"info" json:"level"`
	Format  string `env:"LOG_FORMAT" envDefault:"text" json:"format"`
}

// Config holds all configuration for the collection module.
type Config struct {
	// Store is "mongodb" or "memory"
	Store   string                    `env:"COLLECTION_STORE" envDefault:"mongodb" json:"store"`
	Mongo   database.ConnectionConfig `json:"mongo"`
	Redis   RedisConfig               `json:"redis"`
	Writes  WritesConfig              `json:"writes"`
	Logging LoggingConfig             `json:"logging"`
}

// LoadConfig loads configuration from environment variables and applies defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load collection configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.Mongo); err != nil {
		return nil, errors.New("failed to load mongo configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.Redis); err != nil {
		return nil, errors.New("failed to load redis configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.Writes); err != nil {
		return nil, errors.New("failed to load write configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.Logging); err != nil {
		return nil, errors.New("failed to load logging configuration from environment: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate clamps write settings and rejects unusable values
func (c *Config) Validate() error {
	switch c.Store {
	case "mongodb", "memory":
	default:
		return fmt.Errorf("unknown COLLECTION_STORE %q", c.Store)
	}
	if c.Store == "mongodb" && c.Mongo.URI == "" {
		return errors.New("MONGODB_URI environment variable is not set")
	}

	if c.Writes.BulkConcurrency < 1 {
		c.Writes.BulkConcurrency = 1
	}
	if c.Writes.ChunkSize < 1 {
		c.Writes.ChunkSize = 1
	}
	if c.Writes.ChunkSize > maxTransactionWritesLimit {
		c.Writes.ChunkSize = maxTransactionWritesLimit
	}
	if c.Writes.MaxTransactionWrites < 1 || c.Writes.MaxTransactionWrites > maxTransactionWritesLimit {
		c.Writes.MaxTransactionWrites = maxTransactionWritesLimit
	}
	if c.Writes.TransactionRetries < 0 {
		c.Writes.TransactionRetries = 0
	}
	return nil
}

// DefaultWritesConfig returns the write settings used when nothing is configured
func DefaultWritesConfig() WritesConfig {
	return WritesConfig{
		BulkConcurrency:      20,
		ChunkSize:            200,
		MaxTransactionWrites: maxTransactionWritesLimit,
		TransactionRetries:   5,
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Store:  "mongodb",
		Mongo:  *database.DefaultConnectionConfig(),
		Redis:  DefaultRedisConfig(),
		Writes: DefaultWritesConfig(),
		Logging: LoggingConfig{
			Backend: "logrus",
			Level:   "info",
			Format:  "text",
		},
	}
}
