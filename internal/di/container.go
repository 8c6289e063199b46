package di

import (
	"context"
	"fmt"
	"sync"
	"time"

	"firestore-collection/internal/collection"
	"firestore-collection/internal/collection/config"
	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/usecase"
	"firestore-collection/internal/shared/logger"
)

const shutdownTimeout = 30 * time.Second

// Container owns the collection module and its configuration
type Container struct {
	mu sync.RWMutex

	CollectionModule *collection.CollectionModule
	Config           *config.Config
	Logger           logger.Logger
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{}
}

// Initialize loads configuration from the environment when none was set and
// starts the collection module.
func (c *Container) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.CollectionModule != nil {
		return nil
	}
	if c.Config == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		c.Config = cfg
	}
	if c.Logger == nil {
		c.Logger = logger.New(c.Config.Logging.Backend, c.Config.Logging.Level, c.Config.Logging.Format)
	}

	module, err := collection.NewCollectionModule(ctx, c.Config, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create collection module: %w", err)
	}
	c.CollectionModule = module
	return nil
}

// Collection resolves the facade of def; Initialize must have run
func (c *Container) Collection(def model.Definition, hooks usecase.WriterConfig) (*usecase.Collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.CollectionModule == nil {
		return nil, fmt.Errorf("collection module must be initialized before resolving %s", def.Name)
	}
	return c.CollectionModule.Collection(def, hooks)
}

// SyncManager returns the module's sync manager
func (c *Container) SyncManager() (*usecase.SyncManager, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.CollectionModule == nil {
		return nil, fmt.Errorf("collection module must be initialized before sync")
	}
	return c.CollectionModule.Sync, nil
}

// HealthCheck pings Redis when the change store uses it
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.CollectionModule != nil && c.CollectionModule.RedisClient != nil {
		if err := c.CollectionModule.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis health check failed: %w", err)
		}
	}
	return nil
}

// Close shuts the module down with a timeout
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.CollectionModule == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := c.CollectionModule.Stop(ctx)
	c.CollectionModule = nil
	if err != nil && c.Logger != nil {
		c.Logger.Warnf("Cleanup errors occurred: %v", err)
	}
	return err
}
