package memkv

import (
	"context"
	"testing"
	"time"

	"github.com/GustheTrader/Build-flow/internal/port/kvstore/kvstoretest"
)

func TestCompliance(t *testing.T) {
	kvstoretest.RunComplianceTests(t, New(), "test:")
}

func TestIncrOnNonInteger(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("abc"), 0)
	if _, err := s.Incr(ctx, "k"); err == nil {
		t.Fatal("expected error incrementing a non-integer value")
	}
}

func TestExpiryUsesClock(t *testing.T) {
	s := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Set(ctx, "hitl:request:1", []byte("{}"), time.Hour)
	_ = s.RPush(ctx, "hitl:pending", "1")
	_ = s.Expire(ctx, "hitl:pending", time.Minute)

	now = now.Add(59 * time.Minute)
	if _, err := s.Get(ctx, "hitl:request:1"); err != nil {
		t.Fatalf("entry expired early: %v", err)
	}
	if n, _ := s.LLen(ctx, "hitl:pending"); n != 0 {
		t.Fatalf("list should have expired, len %d", n)
	}

	now = now.Add(time.Minute)
	if _, err := s.Get(ctx, "hitl:request:1"); err == nil {
		t.Fatal("entry should expire at its deadline")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("abc"), 0)
	b, _ := s.Get(ctx, "k")
	b[0] = 'z'
	again, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value was mutated through Get: %s", again)
	}
}
