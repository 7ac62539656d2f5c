// Package cachetest holds the compliance suite shared by cache adapters.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/GustheTrader/Build-flow/internal/port/cache"
)

// RunComplianceTests runs the standard suite against c.
func RunComplianceTests(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "project:p1", []byte(`{"id":"p1"}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "project:p1")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected hit after Set")
		}
		if string(val) != `{"id":"p1"}` {
			t.Fatalf("got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "project:none")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "invoice:i1", []byte("x"), time.Minute)
		if err := c.Delete(ctx, "invoice:i1"); err != nil {
			t.Fatal(err)
		}
		if _, found, _ := c.Get(ctx, "invoice:i1"); found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		if err := c.Delete(ctx, "vendor:never"); err != nil {
			t.Fatalf("Delete of a missing key: %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "task:t1", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "task:t1", []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, "task:t1")
		if err != nil || !found {
			t.Fatalf("found=%v err=%v", found, err)
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2, got %s", val)
		}
	})
}
