package persistence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"firestore-collection/internal/collection/domain/repository"
	"firestore-collection/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

const (
	keyPrefix          = "collection-sync:"
	fieldLastUpdated   = "lastUpdated"
	fieldOldestDeleted = "oldestDeleted"
	fieldUpdatedAt     = "updatedAt"

	defaultStreamMaxLength = 10000
)

// advanceScript sets hash field ARGV[1] to ARGV[2] only when that is larger
var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local ts = tonumber(ARGV[2])
if ts > cur then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[2], 'updatedAt', ARGV[3])
  return 1
end
return 0
`)

// RedisChangeStore implements ChangeStore with one hash per collection for
// the sync state and one Redis Stream per collection for the deletion log.
type RedisChangeStore struct {
	client    *redis.Client
	logger    logger.Logger
	maxLength int64
}

var _ repository.ChangeStore = (*RedisChangeStore)(nil)

// NewRedisChangeStore creates a Redis-backed change store. Deletion streams
// are trimmed to maxLength entries.
func NewRedisChangeStore(client *redis.Client, log logger.Logger, maxLength int64) *RedisChangeStore {
	if log == nil {
		log = logger.Nop()
	}
	if maxLength <= 0 {
		maxLength = defaultStreamMaxLength
	}
	return &RedisChangeStore{
		client:    client,
		logger:    log.WithComponent("redis-change-store"),
		maxLength: maxLength,
	}
}

func stateKey(collection string) string {
	return keyPrefix + collection
}

func deletionsKey(collection string) string {
	return keyPrefix + collection + ":deleted"
}

// GetState reads the sync hash; a collection never written has a zero state
func (r *RedisChangeStore) GetState(ctx context.Context, collection string) (*repository.SyncState, error) {
	values, err := r.client.HGetAll(ctx, stateKey(collection)).Result()
	if err != nil {
		r.logger.Errorf("Failed to read sync state of %s: %v", collection, err)
		return nil, err
	}

	state := &repository.SyncState{
		Collection:    collection,
		LastUpdated:   cast.ToInt64(values[fieldLastUpdated]),
		OldestDeleted: cast.ToInt64(values[fieldOldestDeleted]),
	}
	if ms := cast.ToInt64(values[fieldUpdatedAt]); ms > 0 {
		state.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return state, nil
}

func (r *RedisChangeStore) advance(ctx context.Context, collection, field string, ts int64) error {
	now := time.Now().UnixMilli()
	err := advanceScript.Run(ctx, r.client, []string{stateKey(collection)}, field, ts, now).Err()
	if err != nil && err != redis.Nil {
		r.logger.Errorf("Failed to advance %s of %s: %v", field, collection, err)
		return err
	}
	return nil
}

// AdvanceLastUpdated raises lastUpdated atomically
func (r *RedisChangeStore) AdvanceLastUpdated(ctx context.Context, collection string, ts int64) error {
	return r.advance(ctx, collection, fieldLastUpdated, ts)
}

// RecordDeletions appends to the collection's deletion stream. When the
// stream reaches its maximum length, oldestDeleted follows its first entry
// so clients older than the log fall back to a full sync.
func (r *RedisChangeStore) RecordDeletions(ctx context.Context, collection string, deletions []repository.Deletion) error {
	if len(deletions) == 0 {
		return nil
	}
	stream := deletionsKey(collection)

	pipe := r.client.Pipeline()
	for _, d := range deletions {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			MaxLen: r.maxLength,
			Approx: true,
			Values: map[string]interface{}{
				"id":        d.ID,
				"deletedAt": d.DeletedAt,
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Errorf("Failed to record %d deletions of %s: %v", len(deletions), collection, err)
		return err
	}

	length, err := r.client.XLen(ctx, stream).Result()
	if err != nil {
		return err
	}
	if length < r.maxLength {
		return nil
	}

	head, err := r.client.XRangeN(ctx, stream, "-", "+", 1).Result()
	if err != nil || len(head) == 0 {
		return err
	}
	oldest := cast.ToInt64(head[0].Values["deletedAt"])
	r.logger.Debugf("Deletion log of %s trimmed, oldest entry at %d", collection, oldest)
	return r.advance(ctx, collection, fieldOldestDeleted, oldest)
}

// ResetCollection drops the deletion stream after a collection wipe
func (r *RedisChangeStore) ResetCollection(ctx context.Context, collection string, ts int64) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, deletionsKey(collection))
		pipe.HSet(ctx, stateKey(collection), fieldOldestDeleted, ts, fieldUpdatedAt, now)
		return nil
	})
	if err != nil {
		r.logger.Errorf("Failed to reset sync state of %s: %v", collection, err)
		return err
	}
	return r.AdvanceLastUpdated(ctx, collection, ts)
}

// DeletedSince scans the deletion stream for entries newer than since
func (r *RedisChangeStore) DeletedSince(ctx context.Context, collection string, since int64) ([]repository.Deletion, error) {
	msgs, err := r.client.XRange(ctx, deletionsKey(collection), "-", "+").Result()
	if err != nil {
		if err == redis.Nil {
			return []repository.Deletion{}, nil
		}
		return nil, fmt.Errorf("read deletion log of %s: %w", collection, err)
	}

	out := make([]repository.Deletion, 0, len(msgs))
	for _, msg := range msgs {
		at := cast.ToInt64(msg.Values["deletedAt"])
		if at <= since {
			continue
		}
		id, ok := msg.Values["id"].(string)
		if !ok {
			r.logger.Warnf("Skipping malformed deletion entry %s", msg.ID)
			continue
		}
		out = append(out, repository.Deletion{ID: id, DeletedAt: at})
	}
	return out, nil
}
