package memory

import (
	"context"
	"sync"
	"time"

	"firestore-collection/internal/collection/domain/repository"
)

// ChangeStore keeps sync state in process memory
type ChangeStore struct {
	mu        sync.Mutex
	states    map[string]*repository.SyncState
	deletions map[string][]repository.Deletion
}

var _ repository.ChangeStore = (*ChangeStore)(nil)

// NewChangeStore creates an empty change store
func NewChangeStore() *ChangeStore {
	return &ChangeStore{
		states:    make(map[string]*repository.SyncState),
		deletions: make(map[string][]repository.Deletion),
	}
}

func (s *ChangeStore) stateLocked(collection string) *repository.SyncState {
	st, ok := s.states[collection]
	if !ok {
		st = &repository.SyncState{Collection: collection}
		s.states[collection] = st
	}
	return st
}

// GetState returns a copy of the collection's state
func (s *ChangeStore) GetState(_ context.Context, collection string) (*repository.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := *s.stateLocked(collection)
	return &st, nil
}

func (s *ChangeStore) AdvanceLastUpdated(_ context.Context, collection string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(collection)
	if ts > st.LastUpdated {
		st.LastUpdated = ts
		st.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *ChangeStore) RecordDeletions(_ context.Context, collection string, deletions []repository.Deletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletions[collection] = append(s.deletions[collection], deletions...)
	return nil
}

func (s *ChangeStore) ResetCollection(_ context.Context, collection string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deletions, collection)
	st := s.stateLocked(collection)
	st.OldestDeleted = ts
	if ts > st.LastUpdated {
		st.LastUpdated = ts
	}
	st.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *ChangeStore) DeletedSince(_ context.Context, collection string, since int64) ([]repository.Deletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []repository.Deletion{}
	for _, d := range s.deletions[collection] {
		if d.DeletedAt > since {
			out = append(out, d)
		}
	}
	return out, nil
}
