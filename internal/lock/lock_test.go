package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/revolutionai/storefront/internal/clock"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	l := NewLocal(clk)

	token, ok, err := l.TryLock(ctx, "sweeper", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("expected first lock, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.TryLock(ctx, "sweeper", time.Minute); ok {
		t.Fatalf("lock must be exclusive while held")
	}
	if _, ok, _ := l.TryLock(ctx, "other", time.Minute); !ok {
		t.Fatalf("different keys must not contend")
	}

	if err := l.Release(ctx, "sweeper", "someone-else"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := l.TryLock(ctx, "sweeper", time.Minute); ok {
		t.Fatalf("release with a foreign token must not unlock")
	}

	if err := l.Release(ctx, "sweeper", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := l.TryLock(ctx, "sweeper", time.Minute); !ok {
		t.Fatalf("expected lock after release")
	}
}

func TestLocalLockerExpiry(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	l := NewLocal(clk)

	if _, ok, _ := l.TryLock(ctx, "sweeper", time.Minute); !ok {
		t.Fatalf("expected lock")
	}
	clk.Advance(time.Minute)
	if _, ok, _ := l.TryLock(ctx, "sweeper", time.Minute); !ok {
		t.Fatalf("expired lock should be taken over")
	}
}

func TestLockArguments(t *testing.T) {
	lockers := map[string]Locker{
		"local": NewLocal(nil),
		"redis": NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})),
	}
	for name, l := range lockers {
		if _, _, err := l.TryLock(context.Background(), "", time.Minute); !errors.Is(err, ErrEmptyKey) {
			t.Fatalf("%s: expected ErrEmptyKey, got %v", name, err)
		}
		if _, _, err := l.TryLock(context.Background(), "key", 0); !errors.Is(err, ErrInvalidTTL) {
			t.Fatalf("%s: expected ErrInvalidTTL, got %v", name, err)
		}
		if err := l.Release(context.Background(), "key", ""); err != nil {
			t.Fatalf("%s: release without token: %v", name, err)
		}
	}
}
