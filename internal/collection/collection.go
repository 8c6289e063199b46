// Package collection wires the document collection layer: the document
// store, the change store feeding incremental sync, and one facade per
// collection definition.
package collection

import (
	"context"
	"fmt"
	"sync"

	redispersistence "firestore-collection/internal/collection/adapter/persistence"
	"firestore-collection/internal/collection/adapter/persistence/memory"
	mongopersistence "firestore-collection/internal/collection/adapter/persistence/mongodb"
	"firestore-collection/internal/collection/adapter/validation"
	"firestore-collection/internal/collection/config"
	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	"firestore-collection/internal/collection/usecase"
	"firestore-collection/internal/shared/database"
	"firestore-collection/internal/shared/eventbus"
	"firestore-collection/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

// CollectionModule owns the shared infrastructure of every collection
type CollectionModule struct {
	Config      *config.Config
	Store       repository.DocumentStore
	ChangeStore repository.ChangeStore
	EventBus    eventbus.EventBusInterface
	Sync        *usecase.SyncManager
	Logger      logger.Logger

	RedisClient *redis.Client

	mu          sync.Mutex
	collections map[string]*usecase.Collection
}

// NewCollectionModule connects the configured store. With Redis disabled
// the sync bookkeeping lives in process memory.
func NewCollectionModule(ctx context.Context, cfg *config.Config, log logger.Logger) (*CollectionModule, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.New(cfg.Logging.Backend, cfg.Logging.Level, cfg.Logging.Format)
	}
	log.Info("Initializing collection module...")

	var store repository.DocumentStore
	switch cfg.Store {
	case "memory":
		store = memory.NewStore(memory.Options{
			TransactionRetries: cfg.Writes.TransactionRetries,
			BulkConcurrency:    cfg.Writes.BulkConcurrency,
			Logger:             log,
		})
		log.Warn("Using the in-memory document store; data is lost on exit")
	default:
		cm, err := database.Connect(ctx, &cfg.Mongo, log)
		if err != nil {
			return nil, err
		}
		store = mongopersistence.NewDocumentStore(cm, mongopersistence.Options{
			BulkConcurrency: cfg.Writes.BulkConcurrency,
			Logger:          log,
		})
	}

	m := &CollectionModule{
		Config:      cfg,
		Store:       store,
		EventBus:    eventbus.NewEventBus(log),
		Logger:      log,
		collections: make(map[string]*usecase.Collection),
	}

	if cfg.Redis.Enabled {
		m.RedisClient = config.NewRedisClient(&cfg.Redis)
		if err := m.RedisClient.Ping(ctx).Err(); err != nil {
			_ = store.Close(ctx)
			_ = m.RedisClient.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		m.ChangeStore = redispersistence.NewRedisChangeStore(m.RedisClient, log, cfg.Redis.StreamMaxLength)
		log.Info("RedisChangeStore initialized successfully.")
	} else {
		m.ChangeStore = memory.NewChangeStore()
	}

	m.Sync = usecase.NewSyncManager(m.ChangeStore, store, log)
	m.Sync.Register(m.EventBus)

	log.Info("Collection module initialized successfully.")
	return m, nil
}

// Collection returns the facade of def, building it on first use. Rules add
// CEL checks on top of the definition's schema.
func (m *CollectionModule) Collection(def model.Definition, hooks usecase.WriterConfig, rules ...validation.Rule) (*usecase.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.collections[def.Name]; ok {
		return c, nil
	}

	validator, err := validation.ForDefinition(def, rules...)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", def.Name, err)
	}
	c := usecase.NewCollection(m.Store, def, usecase.CollectionOptions{
		Hooks:                hooks,
		Validator:            validator,
		EventBus:             m.EventBus,
		Logger:               m.Logger,
		MaxTransactionWrites: m.Config.Writes.MaxTransactionWrites,
		DeleteChunkSize:      m.Config.Writes.ChunkSize,
	})
	m.collections[def.Name] = c
	return c, nil
}

// Stop closes the store and the Redis client
func (m *CollectionModule) Stop(ctx context.Context) error {
	var err error
	if m.Store != nil {
		err = multierr.Append(err, m.Store.Close(ctx))
	}
	if m.RedisClient != nil {
		err = multierr.Append(err, m.RedisClient.Close())
	}
	return err
}
