package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GustheTrader/Build-flow/internal/agents"
	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
	"github.com/GustheTrader/Build-flow/internal/port/messagequeue"
)

var testNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

var testThresholds = agent.Thresholds{Low: 0.95, High: 0.80}

func fixedClock() func() time.Time { return func() time.Time { return testNow } }

// seqIDs returns an ID generator yielding prefix-1, prefix-2, ...
func seqIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// stubAgent returns a canned result or error.
type stubAgent struct {
	kind  agent.Kind
	res   agent.Result
	err   error
	calls int
}

func (a *stubAgent) Kind() agent.Kind { return a.kind }

func (a *stubAgent) Process(_ context.Context, _ agent.Input) (agent.Result, error) {
	a.calls++
	return a.res, a.err
}

var _ agents.Agent = (*stubAgent)(nil)

// failingStore wraps a store and fails selected operations.
type failingStore struct {
	kvstore.Store
	failRPush bool
	failSet   bool
}

var errInjected = fmt.Errorf("injected: %w", domain.ErrStorage)

func (s *failingStore) RPush(ctx context.Context, key string, values ...string) error {
	if s.failRPush {
		return errInjected
	}
	return s.Store.RPush(ctx, key, values...)
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.failSet {
		return errInjected
	}
	return s.Store.Set(ctx, key, value, ttl)
}

// recordingQueue captures published messages.
type recordingQueue struct {
	mu       sync.Mutex
	subjects []string
	data     [][]byte
	err      error
}

func (q *recordingQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.subjects = append(q.subjects, subject)
	q.data = append(q.data, data)
	return nil
}

func (q *recordingQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (q *recordingQueue) Drain() error      { return nil }
func (q *recordingQueue) Close() error      { return nil }
func (q *recordingQueue) IsConnected() bool { return q.err == nil }

func (q *recordingQueue) published() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.subjects...)
}

// recordingHub captures broadcast events.
type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, eventType)
}

func (h *recordingHub) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}
