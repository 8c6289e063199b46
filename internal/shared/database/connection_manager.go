package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"firestore-collection/internal/shared/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectionManager owns the Mongo client and caches database handles by name
type ConnectionManager struct {
	client      *mongo.Client
	connections map[string]*mongo.Database
	mu          sync.RWMutex
	logger      logger.Logger
	config      *ConnectionConfig
}

// ConnectionConfig holds the client settings for the document store
type ConnectionConfig struct {
	URI               string        `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	Database          string        `env:"MONGODB_DATABASE" envDefault:"collections"`
	ConnectionTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize       uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"50"`
	MinPoolSize       uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"2"`
}

// DefaultConnectionConfig returns the defaults used when no environment is set
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		URI:               "mongodb://localhost:27017",
		Database:          "collections",
		ConnectionTimeout: 10 * time.Second,
		MaxPoolSize:       50,
		MinPoolSize:       2,
	}
}

// Connect dials Mongo and verifies the primary is reachable.
// Transactions need a replica set or sharded cluster.
func Connect(ctx context.Context, config *ConnectionConfig, log logger.Logger) (*ConnectionManager, error) {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	if log == nil {
		log = logger.Nop()
	}

	opts := options.Client().
		ApplyURI(config.URI).
		SetConnectTimeout(config.ConnectionTimeout).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.ConnectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"database": config.Database,
	}).Info("Connected to MongoDB")

	return NewConnectionManager(client, config, log), nil
}

// NewConnectionManager wraps an already connected client
func NewConnectionManager(client *mongo.Client, config *ConnectionConfig, log logger.Logger) *ConnectionManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ConnectionManager{
		client:      client,
		connections: make(map[string]*mongo.Database),
		logger:      log.WithComponent("connection-manager"),
		config:      config,
	}
}

// Client returns the underlying client, used for sessions
func (cm *ConnectionManager) Client() *mongo.Client {
	return cm.client
}

// Database returns the configured default database
func (cm *ConnectionManager) Database() *mongo.Database {
	return cm.DatabaseByName(cm.config.Database)
}

// DatabaseByName returns a cached handle for name
func (cm *ConnectionManager) DatabaseByName(name string) *mongo.Database {
	cm.mu.RLock()
	if db, exists := cm.connections[name]; exists {
		cm.mu.RUnlock()
		return db
	}
	cm.mu.RUnlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if db, exists := cm.connections[name]; exists {
		return db
	}

	db := cm.client.Database(name)
	cm.connections[name] = db
	cm.logger.Debugf("Opened database handle %s", name)
	return db
}

// GetConnectionCount returns the number of cached database handles
func (cm *ConnectionManager) GetConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// Close drops the cached handles and disconnects the client
func (cm *ConnectionManager) Close(ctx context.Context) error {
	cm.mu.Lock()
	cm.connections = make(map[string]*mongo.Database)
	cm.mu.Unlock()

	if cm.client == nil {
		return nil
	}
	if err := cm.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	cm.logger.Info("Closed MongoDB connection")
	return nil
}
