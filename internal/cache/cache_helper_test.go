package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type cachedThing struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestHelper(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheHelper(client, "test:"), mr
}

func TestCacheHelper_SetGet(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	want := cachedThing{ID: "t1", Name: "Weekly Mock"}
	if err := helper.Set(ctx, "id:t1", want, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got cachedThing
	if err := helper.Get(ctx, "id:t1", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := helper.Get(ctx, "id:missing", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestCacheHelper_Delete(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	if err := helper.Set(ctx, "id:t1", cachedThing{ID: "t1"}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := helper.Delete(ctx, "id:t1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var got cachedThing
	if err := helper.Get(ctx, "id:t1", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("expected miss after delete, got %v", err)
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	for _, key := range []string{"exams:acme", "exams:other", "sets:1"} {
		if err := helper.Set(ctx, key, cachedThing{ID: key}, time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "exams:*"); err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}

	var got cachedThing
	if err := helper.Get(ctx, "exams:acme", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("exams:acme should be invalidated, got %v", err)
	}
	if err := helper.Get(ctx, "sets:1", &got); err != nil {
		t.Errorf("sets:1 should survive, got %v", err)
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return &cachedThing{ID: "t1", Name: "Weekly Mock"}, nil
	}

	var got cachedThing
	if err := helper.CacheOrExecute(ctx, "id:t1", &got, time.Minute, fetch); err != nil {
		t.Fatalf("CacheOrExecute failed: %v", err)
	}
	if got.Name != "Weekly Mock" {
		t.Errorf("got %+v", got)
	}

	// Second call is served from cache
	var again cachedThing
	if err := helper.CacheOrExecute(ctx, "id:t1", &again, time.Minute, fetch); err != nil {
		t.Fatalf("second CacheOrExecute failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
	if again != got {
		t.Errorf("cached value differs: %+v vs %+v", again, got)
	}
}

func TestCacheHelper_CacheOrExecute_FetchError(t *testing.T) {
	helper, _ := newTestHelper(t)

	wantErr := errors.New("db down")
	var got cachedThing
	err := helper.CacheOrExecute(context.Background(), "id:t1", &got, time.Minute, func() (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected fetch error, got %v", err)
	}
}

func TestCacheHelper_NilClientDegradesGracefully(t *testing.T) {
	helper := NewCacheHelper(nil, "test:")
	ctx := context.Background()

	if err := helper.Set(ctx, "k", "v", time.Minute); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Set = %v, want ErrCacheNotAvailable", err)
	}
	var got string
	if err := helper.Get(ctx, "k", &got); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Get = %v, want ErrCacheNotAvailable", err)
	}
	if err := helper.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete with nil client should be a no-op, got %v", err)
	}

	// CacheOrExecute still fetches
	calls := 0
	if err := helper.CacheOrExecute(ctx, "k", &got, time.Minute, func() (interface{}, error) {
		calls++
		return "fetched", nil
	}); err != nil {
		t.Fatalf("CacheOrExecute failed: %v", err)
	}
	if got != "fetched" || calls != 1 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}
