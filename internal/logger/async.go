package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// queued pairs a record with the request ID captured at log time, since
// workers handle records on a background context.
type queued struct {
	rec       slog.Record
	requestID string
}

// AsyncHandler moves record formatting and I/O off the caller's goroutine.
// Records are dropped, and counted, when the buffer is full.
type AsyncHandler struct {
	inner   slog.Handler
	ch      chan queued
	wg      *sync.WaitGroup
	dropped *atomic.Int64
	mu      *sync.RWMutex // guards closed against concurrent sends
	closed  *bool
}

// NewAsyncHandler creates an AsyncHandler with the given buffer size and worker count.
func NewAsyncHandler(inner slog.Handler, bufSize, workers int) *AsyncHandler {
	if workers < 1 {
		workers = 1
	}
	h := &AsyncHandler{
		inner:   inner,
		ch:      make(chan queued, bufSize),
		wg:      &sync.WaitGroup{},
		dropped: &atomic.Int64{},
		mu:      &sync.RWMutex{},
		closed:  new(bool),
	}
	for range workers {
		h.wg.Add(1)
		go h.drain()
	}
	return h
}

func (h *AsyncHandler) drain() {
	defer h.wg.Done()
	for q := range h.ch {
		ctx := context.Background()
		if q.requestID != "" {
			ctx = WithRequestID(ctx, q.requestID)
		}
		_ = h.inner.Handle(ctx, q.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record without blocking.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	h.mu.RLock()
	defer h.mu.RUnlock()
	if *h.closed {
		h.dropped.Add(1)
		return nil
	}
	select {
	case h.ch <- queued{rec: rec.Clone(), requestID: RequestID(ctx)}:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same queue but wrapping a derived inner handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.inner = h.inner.WithAttrs(attrs)
	return &c
}

// WithGroup returns a handler sharing the same queue but wrapping a derived inner handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.inner = h.inner.WithGroup(name)
	return &c
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops accepting records and waits for the workers to drain the buffer.
// Calling Close more than once is safe.
func (h *AsyncHandler) Close() {
	h.mu.Lock()
	if *h.closed {
		h.mu.Unlock()
		return
	}
	*h.closed = true
	close(h.ch)
	h.mu.Unlock()
	h.wg.Wait()
}
