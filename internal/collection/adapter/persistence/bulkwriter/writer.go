package bulkwriter

import (
	"context"
	"errors"
	"sort"
	"sync"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"
	"firestore-collection/internal/shared/logger"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is recorded for writes queued after Close
var ErrClosed = errors.New("bulk writer closed")

const (
	defaultConcurrency = 20
	defaultMaxAttempts = 10
)

// Options configures a Writer
type Options struct {
	// Concurrency bounds in-flight writes
	Concurrency int
	// MaxAttempts caps retries granted by the error handler
	MaxAttempts int
	Logger      logger.Logger
}

// Writer runs queued single-document writes against a DocumentWriter
// with bounded concurrency and collects every failure.
type Writer struct {
	target repository.DocumentWriter
	ctx    context.Context
	group  errgroup.Group
	log    logger.Logger

	maxAttempts int

	mu       sync.Mutex
	seq      int
	closed   bool
	handler  repository.WriteErrorHandler
	failures []indexedFailure
}

type indexedFailure struct {
	seq     int
	failure apperrors.WriteFailure
}

var _ repository.BulkWriter = (*Writer)(nil)

// New creates a Writer. Writes run with ctx.
func New(ctx context.Context, target repository.DocumentWriter, opts Options) *Writer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	w := &Writer{
		target:      target,
		ctx:         ctx,
		log:         opts.Logger.WithComponent("bulk-writer"),
		maxAttempts: opts.MaxAttempts,
	}
	w.group.SetLimit(opts.Concurrency)
	return w
}

func (w *Writer) Create(ref model.DocumentRef, record model.Record) {
	w.enqueue(model.WriteOp{Ref: ref, Verb: model.VerbCreate, Payload: record})
}

func (w *Writer) Set(ref model.DocumentRef, record model.Record) {
	w.enqueue(model.WriteOp{Ref: ref, Verb: model.VerbSet, Payload: record})
}

func (w *Writer) Update(ref model.DocumentRef, patch model.Record) {
	w.enqueue(model.WriteOp{Ref: ref, Verb: model.VerbUpdate, Payload: patch})
}

func (w *Writer) Delete(ref model.DocumentRef) {
	w.enqueue(model.WriteOp{Ref: ref, Verb: model.VerbDelete})
}

// OnWriteError registers the retry policy
func (w *Writer) OnWriteError(handler repository.WriteErrorHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = handler
}

func (w *Writer) enqueue(op model.WriteOp) {
	w.mu.Lock()
	seq := w.seq
	w.seq++
	closed := w.closed
	w.mu.Unlock()

	if closed {
		w.fail(seq, op, ErrClosed)
		return
	}

	// Go blocks while Concurrency writes are in flight
	w.group.Go(func() error {
		w.run(seq, op)
		return nil
	})
}

func (w *Writer) run(seq int, op model.WriteOp) {
	for attempt := 1; ; attempt++ {
		if err := w.ctx.Err(); err != nil {
			w.fail(seq, op, err)
			return
		}

		err := w.apply(op)
		if err == nil {
			return
		}

		w.mu.Lock()
		handler := w.handler
		w.mu.Unlock()

		if handler != nil && attempt < w.maxAttempts &&
			handler(repository.BulkWriteAttempt{Op: op, Err: err, Attempts: attempt}) {
			w.log.Debugf("Retrying %s %s (attempt %d)", op.Verb, op.Ref, attempt+1)
			continue
		}
		w.fail(seq, op, err)
		return
	}
}

func (w *Writer) apply(op model.WriteOp) error {
	switch op.Verb {
	case model.VerbCreate:
		return w.target.Create(w.ctx, op.Ref, op.Payload)
	case model.VerbSet:
		return w.target.Set(w.ctx, op.Ref, op.Payload)
	case model.VerbUpdate:
		return w.target.Update(w.ctx, op.Ref, op.Payload)
	case model.VerbDelete:
		return w.target.Delete(w.ctx, op.Ref)
	default:
		return apperrors.NewInternalError("unknown write verb: " + string(op.Verb))
	}
}

func (w *Writer) fail(seq int, op model.WriteOp, err error) {
	w.log.WithFields(map[string]interface{}{
		"document": op.Ref.Path(),
		"verb":     string(op.Verb),
		"error":    err.Error(),
	}).Warn("Bulk write failed")

	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures = append(w.failures, indexedFailure{
		seq: seq,
		failure: apperrors.WriteFailure{
			DocumentID: op.Ref.ID,
			Operation:  string(op.Verb),
			Err:        err,
		},
	})
}

// Close waits for every queued write and returns the aggregated failures
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = w.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sort.Slice(w.failures, func(i, j int) bool { return w.failures[i].seq < w.failures[j].seq })
	failures := make([]apperrors.WriteFailure, 0, len(w.failures))
	for _, f := range w.failures {
		failures = append(failures, f.failure)
	}
	return apperrors.NewBulkWriteError(failures)
}
