package usecase

import (
	"context"
	"fmt"
	"time"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	"firestore-collection/internal/shared/eventbus"
	"firestore-collection/internal/shared/logger"

	"github.com/samber/lo"
)

// SyncResult is the delta of one collection since a client timestamp
type SyncResult struct {
	Collection string         `json:"collection"`
	Items      []model.Record `json:"items"`
	DeletedIDs []string       `json:"deletedIds"`
	// LastUpdated is the timestamp to pass as since on the next call
	LastUpdated int64 `json:"lastUpdated"`
	// FullSync is set when the deletion log does not reach back to since.
	// Items then holds the whole collection and the client drops its copy.
	FullSync bool `json:"fullSync"`
}

// SyncManager keeps per-collection sync bookkeeping up to date from
// write summaries and answers incremental sync queries.
type SyncManager struct {
	changes repository.ChangeStore
	reader  repository.DocumentReader
	log     logger.Logger
	clock   func() time.Time
}

// NewSyncManager creates a sync manager reading documents through reader
func NewSyncManager(changes repository.ChangeStore, reader repository.DocumentReader, log logger.Logger) *SyncManager {
	if log == nil {
		log = logger.Nop()
	}
	return &SyncManager{
		changes: changes,
		reader:  reader,
		log:     log.WithComponent("sync-manager"),
		clock:   time.Now,
	}
}

// WithClock replaces the clock used to stamp deletions
func (m *SyncManager) WithClock(clock func() time.Time) *SyncManager {
	m.clock = clock
	return m
}

// Register subscribes the manager to collection write events
func (m *SyncManager) Register(bus eventbus.EventBusInterface) {
	bus.Subscribe(eventbus.EventTypeCollectionWritten, m.handleEvent)
	bus.Subscribe(eventbus.EventTypeCollectionDeleted, m.handleEvent)
}

func (m *SyncManager) handleEvent(ctx context.Context, event eventbus.Event) error {
	summary, ok := event.Data().(model.WriteSummary)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", event.Type(), event.Data())
	}
	return m.OnWrite(ctx, summary)
}

// OnWrite records one write summary
func (m *SyncManager) OnWrite(ctx context.Context, summary model.WriteSummary) error {
	now := m.clock().UnixMilli()
	coll := summary.Collection
	log := m.log.WithContext(ctx).WithFields(map[string]interface{}{"collection": coll})

	if summary.CollectionDeleted {
		log.Info("Collection wiped, clients will fully resync")
		return m.changes.ResetCollection(ctx, coll, now)
	}

	if ts := summary.MaxUpdated(); ts > 0 {
		if err := m.changes.AdvanceLastUpdated(ctx, coll, ts); err != nil {
			return err
		}
	}

	if len(summary.Deleted) > 0 {
		deletions := lo.Map(summary.Deleted, func(r model.Record, _ int) repository.Deletion {
			return repository.Deletion{ID: r.ID(), DeletedAt: now}
		})
		if err := m.changes.RecordDeletions(ctx, coll, deletions); err != nil {
			return err
		}
		if err := m.changes.AdvanceLastUpdated(ctx, coll, now); err != nil {
			return err
		}
		log.Debugf("Recorded %d deletions", len(deletions))
	}
	return nil
}

// QuerySync returns what changed in collection after since
func (m *SyncManager) QuerySync(ctx context.Context, collection string, since int64) (*SyncResult, error) {
	state, err := m.changes.GetState(ctx, collection)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Collection: collection, LastUpdated: state.LastUpdated, DeletedIDs: []string{}}
	if since >= state.LastUpdated && since > 0 {
		result.Items = []model.Record{}
		return result, nil
	}

	q := model.Where(model.FieldUpdated, model.OperatorGreaterThan, since)
	if since < state.OldestDeleted {
		result.FullSync = true
		q = model.Query{}
	}

	items, err := m.reader.Query(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	result.Items = items

	if !result.FullSync {
		deleted, err := m.changes.DeletedSince(ctx, collection, since)
		if err != nil {
			return nil, err
		}
		result.DeletedIDs = lo.Uniq(lo.Map(deleted, func(d repository.Deletion, _ int) string { return d.ID }))
	}

	m.log.WithContext(ctx).Debugf("Sync of %s since %d: %d items, %d deleted, full=%t",
		collection, since, len(result.Items), len(result.DeletedIDs), result.FullSync)
	return result, nil
}
