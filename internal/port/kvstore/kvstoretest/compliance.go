// Package kvstoretest provides the compliance suite every kvstore.Store
// adapter runs in its own tests.
package kvstoretest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

// RunComplianceTests runs the standard suite against s. Keys are namespaced
// with prefix so the suite can share a live backend with other data.
func RunComplianceTests(t *testing.T, s kvstore.Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	k := func(name string) string { return prefix + name }

	t.Run("SetAndGet", func(t *testing.T) {
		if err := s.Set(ctx, k("blob"), []byte(`{"a":1}`), 0); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, k("blob"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != `{"a":1}` {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("GetMissIsNotFound", func(t *testing.T) {
		_, err := s.Get(ctx, k("missing"))
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = s.Set(ctx, k("ow"), []byte("v1"), 0)
		_ = s.Set(ctx, k("ow"), []byte("v2"), 0)
		got, err := s.Get(ctx, k("ow"))
		if err != nil || string(got) != "v2" {
			t.Fatalf("got %q, %v", got, err)
		}
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		_ = s.Set(ctx, k("del"), []byte("x"), 0)
		if err := s.Delete(ctx, k("del")); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, k("del")); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if _, err := s.Get(ctx, k("del")); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("TTLExpires", func(t *testing.T) {
		if err := s.Set(ctx, k("ttl"), []byte("x"), 50*time.Millisecond); err != nil {
			t.Fatal(err)
		}
		time.Sleep(120 * time.Millisecond)
		if _, err := s.Get(ctx, k("ttl")); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected expiry, got %v", err)
		}
		keys, err := s.Keys(ctx, k("ttl"))
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 0 {
			t.Fatalf("expired key still listed: %v", keys)
		}
	})

	t.Run("Expire", func(t *testing.T) {
		_ = s.Set(ctx, k("exp"), []byte("x"), 0)
		if err := s.Expire(ctx, k("exp"), 50*time.Millisecond); err != nil {
			t.Fatal(err)
		}
		time.Sleep(120 * time.Millisecond)
		if _, err := s.Get(ctx, k("exp")); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected expiry, got %v", err)
		}
	})

	t.Run("KeysByPrefix", func(t *testing.T) {
		for _, name := range []string{"scan:1", "scan:2", "scanx"} {
			_ = s.Set(ctx, k(name), []byte("x"), 0)
		}
		keys, err := s.Keys(ctx, k("scan:"))
		if err != nil {
			t.Fatal(err)
		}
		slices.Sort(keys)
		if !slices.Equal(keys, []string{k("scan:1"), k("scan:2")}) {
			t.Fatalf("unexpected keys %v", keys)
		}
	})

	t.Run("Sets", func(t *testing.T) {
		if err := s.SAdd(ctx, k("set"), "a", "b", "a"); err != nil {
			t.Fatal(err)
		}
		_ = s.SAdd(ctx, k("set"), "c")
		if err := s.SRem(ctx, k("set"), "b", "zzz"); err != nil {
			t.Fatal(err)
		}
		got, err := s.SMembers(ctx, k("set"))
		if err != nil {
			t.Fatal(err)
		}
		slices.Sort(got)
		if !slices.Equal(got, []string{"a", "c"}) {
			t.Fatalf("members = %v", got)
		}
		empty, err := s.SMembers(ctx, k("noset"))
		if err != nil || len(empty) != 0 {
			t.Fatalf("missing set: %v %v", empty, err)
		}
	})

	t.Run("ListsKeepOrder", func(t *testing.T) {
		if err := s.RPush(ctx, k("list"), "1", "2", "3", "2"); err != nil {
			t.Fatal(err)
		}
		all, err := s.LRange(ctx, k("list"), 0, -1)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(all, []string{"1", "2", "3", "2"}) {
			t.Fatalf("range = %v", all)
		}
		tail, _ := s.LRange(ctx, k("list"), -2, -1)
		if !slices.Equal(tail, []string{"3", "2"}) {
			t.Fatalf("tail = %v", tail)
		}
		n, err := s.LRem(ctx, k("list"), "2")
		if err != nil || n != 2 {
			t.Fatalf("LRem = %d, %v", n, err)
		}
		n, err = s.LRem(ctx, k("list"), "absent")
		if err != nil || n != 0 {
			t.Fatalf("LRem absent = %d, %v", n, err)
		}
		l, _ := s.LLen(ctx, k("list"))
		if l != 2 {
			t.Fatalf("LLen = %d", l)
		}
		none, err := s.LRange(ctx, k("nolist"), 0, -1)
		if err != nil || len(none) != 0 {
			t.Fatalf("missing list: %v %v", none, err)
		}
	})

	t.Run("SortedSets", func(t *testing.T) {
		_ = s.ZAdd(ctx, k("z"), 30, "c")
		_ = s.ZAdd(ctx, k("z"), 10, "a")
		_ = s.ZAdd(ctx, k("z"), 20, "b")
		_ = s.ZAdd(ctx, k("z"), 5, "c") // rescore
		got, err := s.ZRange(ctx, k("z"))
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(got, []string{"c", "a", "b"}) {
			t.Fatalf("zrange = %v", got)
		}
		_ = s.ZRem(ctx, k("z"), "a")
		got, _ = s.ZRange(ctx, k("z"))
		if !slices.Equal(got, []string{"c", "b"}) {
			t.Fatalf("zrange after rem = %v", got)
		}
	})

	t.Run("IncrIsAtomic", func(t *testing.T) {
		const workers, per = 8, 10
		var wg sync.WaitGroup
		errs := make(chan error, workers*per)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range per {
					if _, err := s.Incr(ctx, k("counter")); err != nil {
						errs <- err
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatal(err)
		}
		n, err := s.Incr(ctx, k("counter"))
		if err != nil {
			t.Fatal(err)
		}
		if n != workers*per+1 {
			t.Fatalf("counter = %d, want %d", n, workers*per+1)
		}
	})

	t.Run("ConcurrentPushes", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.RPush(ctx, k("cpush"), fmt.Sprint(i))
			}()
		}
		wg.Wait()
		n, err := s.LLen(ctx, k("cpush"))
		if err != nil || n != 20 {
			t.Fatalf("LLen = %d, %v", n, err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Fatal(err)
		}
	})
}
