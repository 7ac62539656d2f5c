package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/GustheTrader/Build-flow/internal/adapter/otel"
	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/agent"
	"github.com/GustheTrader/Build-flow/internal/domain/review"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
	"github.com/GustheTrader/Build-flow/internal/port/messagequeue"
)

const (
	keyReviewRequest = "hitl:request:"
	keyReviewPending = "hitl:pending"
	keyReviewClaim   = "hitl:claim:"
)

// ReviewQueue owns the lifecycle of human review requests. Pending requests
// are listed in the order they were raised.
type ReviewQueue struct {
	store   kvstore.Store
	ttl     time.Duration
	events  *EventPublisher
	metrics *cfotel.Metrics
	now     func() time.Time
	newID   func() string
}

// NewReviewQueue creates a queue whose requests expire after ttl.
func NewReviewQueue(store kvstore.Store, ttl time.Duration) *ReviewQueue {
	return &ReviewQueue{store: store, ttl: ttl, now: time.Now, newID: uuid.NewString}
}

// SetEvents wires event publication.
func (q *ReviewQueue) SetEvents(p *EventPublisher) { q.events = p }

// SetMetrics enables OpenTelemetry instruments.
func (q *ReviewQueue) SetMetrics(m *cfotel.Metrics) { q.metrics = m }

func reviewKey(id string) string { return keyReviewRequest + id }

// Enqueue stores a new pending request holding a copy of rec. Escalating the
// same recommendation twice creates two requests.
func (q *ReviewQueue) Enqueue(ctx context.Context, rec agent.Recommendation, projectID string) (*review.Request, error) {
	req := &review.Request{
		ID:             q.newID(),
		ProjectID:      projectID,
		Recommendation: freeze(rec),
		Status:         review.StatusPending,
		CreatedAt:      q.now().UTC(),
	}
	if err := putJSON(ctx, q.store, reviewKey(req.ID), req, q.ttl); err != nil {
		return nil, fmt.Errorf("store review request: %w", err)
	}
	if err := q.store.RPush(ctx, keyReviewPending, req.ID); err != nil {
		return nil, fmt.Errorf("queue review request: %w", err)
	}

	if q.metrics != nil {
		q.metrics.ReviewsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("agent.kind", string(rec.AgentKind))))
	}
	q.events.Publish(ctx, messagequeue.SubjectHITLCreated, hitlPayload(req))
	return req, nil
}

// freeze deep-copies the mutable parts of a recommendation so later changes
// by the caller do not leak into the stored request.
func freeze(rec agent.Recommendation) agent.Recommendation {
	rec.Payload = deepCopyMap(rec.Payload)
	rec.Metadata = deepCopyMap(rec.Metadata)
	return rec
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = deepCopyValue(t[i])
		}
		return cp
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// Get returns a request by id.
func (q *ReviewQueue) Get(ctx context.Context, id string) (*review.Request, error) {
	req, err := getJSON[review.Request](ctx, q.store, reviewKey(id))
	if err != nil {
		return nil, fmt.Errorf("review request %s: %w", id, err)
	}
	return req, nil
}

// List returns requests with the given status, or every request for an
// empty status. Pending requests come back in FIFO order; other listings
// are ordered by creation time.
func (q *ReviewQueue) List(ctx context.Context, status review.Status) ([]review.Request, error) {
	if status == review.StatusPending {
		return q.listPending(ctx)
	}

	keys, err := q.store.Keys(ctx, keyReviewRequest)
	if err != nil {
		return nil, err
	}
	reqs, err := loadAll[review.Request](ctx, q.store, keys, func(k string) string { return k })
	if err != nil {
		return nil, err
	}
	if status != "" {
		reqs = slices.DeleteFunc(reqs, func(r review.Request) bool { return r.Status != status })
	}
	slices.SortFunc(reqs, func(a, b review.Request) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return reqs, nil
}

// listPending loads the pending queue in FIFO order. Ids whose request has
// expired are pruned from the queue.
func (q *ReviewQueue) listPending(ctx context.Context) ([]review.Request, error) {
	ids, err := q.store.LRange(ctx, keyReviewPending, 0, -1)
	if err != nil {
		return nil, err
	}
	reqs, err := loadAll[review.Request](ctx, q.store, ids, reviewKey)
	if err != nil {
		return nil, err
	}
	if len(reqs) < len(ids) {
		live := make(map[string]bool, len(reqs))
		for _, r := range reqs {
			live[r.ID] = true
		}
		for _, id := range ids {
			if live[id] {
				continue
			}
			if _, err := q.store.LRem(ctx, keyReviewPending, id); err != nil {
				slog.WarnContext(ctx, "prune expired review failed", "id", id, "error", err)
			}
		}
	}
	return slices.DeleteFunc(reqs, func(r review.Request) bool { return r.Status != review.StatusPending }), nil
}

// PendingCount returns how many live requests are waiting for a decision.
func (q *ReviewQueue) PendingCount(ctx context.Context) (int, error) {
	reqs, err := q.listPending(ctx)
	if err != nil {
		return 0, err
	}
	return len(reqs), nil
}

// Approve accepts a pending recommendation as is.
func (q *ReviewQueue) Approve(ctx context.Context, id, reviewerID, notes string) (*review.Request, error) {
	return q.resolve(ctx, id, review.StatusApproved, review.Decision{ReviewerID: reviewerID, Notes: notes})
}

// Reject declines a pending recommendation.
func (q *ReviewQueue) Reject(ctx context.Context, id, reviewerID, notes string) (*review.Request, error) {
	return q.resolve(ctx, id, review.StatusRejected, review.Decision{ReviewerID: reviewerID, Notes: notes})
}

// Modify approves a pending recommendation with a replacement payload. The
// original recommendation stays untouched.
func (q *ReviewQueue) Modify(ctx context.Context, id, reviewerID, notes string, payload map[string]any) (*review.Request, error) {
	return q.resolve(ctx, id, review.StatusModified, review.Decision{ReviewerID: reviewerID, Notes: notes, Payload: payload})
}

// resolve applies a decision. Concurrent decisions on one request race for
// a claim counter in the store; only the first claimant writes.
func (q *ReviewQueue) resolve(ctx context.Context, id string, target review.Status, d review.Decision) (*review.Request, error) {
	ctx, span := cfotel.StartReviewSpan(ctx, id, string(target))
	defer span.End()

	req, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Resolve(target, d, q.now()); err != nil {
		return nil, err
	}

	claimKey := keyReviewClaim + id
	n, err := q.store.Incr(ctx, claimKey)
	if err != nil {
		return nil, fmt.Errorf("claim review %s: %w", id, err)
	}
	if n > 1 {
		return nil, fmt.Errorf("review %s was already resolved: %w", id, domain.ErrInvalidTransition)
	}
	if q.ttl > 0 {
		if err := q.store.Expire(ctx, claimKey, q.ttl); err != nil {
			slog.WarnContext(ctx, "review claim expiry failed", "id", id, "error", err)
		}
	}

	if err := putJSON(ctx, q.store, reviewKey(id), req, q.ttl); err != nil {
		if derr := q.store.Delete(ctx, claimKey); derr != nil {
			slog.ErrorContext(ctx, "review claim release failed", "id", id, "error", derr)
		}
		return nil, fmt.Errorf("store review decision: %w", err)
	}
	if _, err := q.store.LRem(ctx, keyReviewPending, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(ctx, "pending queue cleanup failed", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "review resolved", "id", id, "status", req.Status, "reviewer", req.ReviewerID)
	if q.metrics != nil {
		q.metrics.ReviewsResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(req.Status))))
	}
	q.events.Publish(ctx, messagequeue.SubjectHITLResolved, hitlPayload(req))
	return req, nil
}

func hitlPayload(r *review.Request) messagequeue.HITLEventPayload {
	return messagequeue.HITLEventPayload{
		RequestID:  r.ID,
		ProjectID:  r.ProjectID,
		AgentKind:  string(r.Recommendation.AgentKind),
		Status:     string(r.Status),
		Confidence: r.Recommendation.Confidence,
		ReviewerID: r.ReviewerID,
	}
}
