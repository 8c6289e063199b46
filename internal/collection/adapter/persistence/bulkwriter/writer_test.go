package bulkwriter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDocumentWriter is a testify mock of repository.DocumentWriter
type MockDocumentWriter struct {
	mock.Mock
}

func (m *MockDocumentWriter) Create(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	return m.Called(ctx, ref, record).Error(0)
}

func (m *MockDocumentWriter) Set(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	return m.Called(ctx, ref, record).Error(0)
}

func (m *MockDocumentWriter) Update(ctx context.Context, ref model.DocumentRef, patch model.Record) error {
	return m.Called(ctx, ref, patch).Error(0)
}

func (m *MockDocumentWriter) Delete(ctx context.Context, ref model.DocumentRef) error {
	return m.Called(ctx, ref).Error(0)
}

func ref(id string) model.DocumentRef { return model.NewDocumentRef("users", id) }

func TestWriter_AllSucceed(t *testing.T) {
	target := new(MockDocumentWriter)
	target.On("Create", mock.Anything, ref("a"), mock.Anything).Return(nil)
	target.On("Set", mock.Anything, ref("b"), mock.Anything).Return(nil)
	target.On("Update", mock.Anything, ref("c"), mock.Anything).Return(nil)
	target.On("Delete", mock.Anything, ref("d")).Return(nil)

	w := New(context.Background(), target, Options{Concurrency: 2})
	w.Create(ref("a"), model.Record{"_id": "a"})
	w.Set(ref("b"), model.Record{"_id": "b"})
	w.Update(ref("c"), model.Record{"x": 1})
	w.Delete(ref("d"))

	require.NoError(t, w.Close(context.Background()))
	target.AssertExpectations(t)
}

func TestWriter_CollectsEveryFailure(t *testing.T) {
	target := new(MockDocumentWriter)
	target.On("Create", mock.Anything, ref("a"), mock.Anything).Return(nil)
	target.On("Create", mock.Anything, ref("b"), mock.Anything).Return(apperrors.NewAlreadyExistsError("users", "b"))
	target.On("Update", mock.Anything, ref("c"), mock.Anything).Return(apperrors.NewDocumentNotFoundError("users", "c"))

	w := New(context.Background(), target, Options{})
	w.Create(ref("a"), model.Record{})
	w.Create(ref("b"), model.Record{})
	w.Update(ref("c"), model.Record{})

	err := w.Close(context.Background())
	require.Error(t, err)

	var bulkErr *apperrors.BulkWriteError
	require.True(t, errors.As(err, &bulkErr))
	assert.Equal(t, []string{"b", "c"}, bulkErr.FailedIDs())
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestWriter_RetriesWhenHandlerSaysSo(t *testing.T) {
	target := new(MockDocumentWriter)
	transient := errors.New("unavailable")
	target.On("Set", mock.Anything, ref("a"), mock.Anything).Return(transient).Twice()
	target.On("Set", mock.Anything, ref("a"), mock.Anything).Return(nil).Once()

	w := New(context.Background(), target, Options{})
	var seen []int
	w.OnWriteError(func(a repository.BulkWriteAttempt) bool {
		seen = append(seen, a.Attempts)
		return errors.Is(a.Err, transient)
	})
	w.Set(ref("a"), model.Record{})

	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, []int{1, 2}, seen)
	target.AssertNumberOfCalls(t, "Set", 3)
}

func TestWriter_RetryCappedByMaxAttempts(t *testing.T) {
	target := new(MockDocumentWriter)
	target.On("Delete", mock.Anything, ref("a")).Return(errors.New("down"))

	w := New(context.Background(), target, Options{MaxAttempts: 3})
	w.OnWriteError(func(repository.BulkWriteAttempt) bool { return true })
	w.Delete(ref("a"))

	assert.Error(t, w.Close(context.Background()))
	target.AssertNumberOfCalls(t, "Delete", 3)
}

func TestWriter_WriteAfterCloseFails(t *testing.T) {
	w := New(context.Background(), new(MockDocumentWriter), Options{})
	require.NoError(t, w.Close(context.Background()))

	w.Delete(ref("late"))
	err := w.Close(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

// blockingWriter counts concurrent calls
type blockingWriter struct {
	MockDocumentWriter
	inFlight, peak int32
}

func (b *blockingWriter) Set(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	n := atomic.AddInt32(&b.inFlight, 1)
	for {
		p := atomic.LoadInt32(&b.peak)
		if n <= p || atomic.CompareAndSwapInt32(&b.peak, p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&b.inFlight, -1)
	return nil
}

func TestWriter_BoundsConcurrency(t *testing.T) {
	target := &blockingWriter{}
	w := New(context.Background(), target, Options{Concurrency: 3})
	for i := 0; i < 12; i++ {
		w.Set(ref(string(rune('a'+i))), model.Record{})
	}
	require.NoError(t, w.Close(context.Background()))
	assert.LessOrEqual(t, atomic.LoadInt32(&target.peak), int32(3))
}

func TestWriter_CancelledContextFailsWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(ctx, new(MockDocumentWriter), Options{})
	w.Create(ref("a"), model.Record{})

	err := w.Close(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}
