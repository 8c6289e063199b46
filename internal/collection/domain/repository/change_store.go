package repository

import (
	"context"
	"time"
)

// SyncState is the per-collection bookkeeping kept for incremental sync
type SyncState struct {
	Collection    string    `json:"collection"`
	LastUpdated   int64     `json:"lastUpdated"`
	OldestDeleted int64     `json:"oldestDeleted"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Deletion is one entry of the deletion log
type Deletion struct {
	ID        string `json:"id"`
	DeletedAt int64  `json:"deletedAt"`
}

// ChangeStore persists sync state and the deletion log
type ChangeStore interface {
	GetState(ctx context.Context, collection string) (*SyncState, error)
	// AdvanceLastUpdated raises LastUpdated to ts when ts is larger
	AdvanceLastUpdated(ctx context.Context, collection string, ts int64) error
	RecordDeletions(ctx context.Context, collection string, deletions []Deletion) error
	// ResetCollection drops the deletion log, sets OldestDeleted to ts and
	// raises LastUpdated to ts
	ResetCollection(ctx context.Context, collection string, ts int64) error
	DeletedSince(ctx context.Context, collection string, since int64) ([]Deletion, error)
}
