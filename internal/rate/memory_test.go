package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(3, time.Hour) // ventana larga: no rota durante el test

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ip-1")
		if err != nil {
			t.Fatalf("Allow err: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d should be allowed", i+1)
		}
		if want := int64(2 - i); res.Remaining != want {
			t.Fatalf("hit %d remaining: got %d want %d", i+1, res.Remaining, want)
		}
	}

	res, err := l.Allow(ctx, "ip-1")
	if err != nil {
		t.Fatalf("Allow err: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth hit should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("denied result must carry RetryAfter, got %v", res.RetryAfter)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(1, time.Hour)

	if res, _ := l.Allow(ctx, "ip-1"); !res.Allowed {
		t.Fatal("first key first hit should pass")
	}
	if res, _ := l.Allow(ctx, "ip-1"); res.Allowed {
		t.Fatal("first key second hit should be denied")
	}
	if res, _ := l.Allow(ctx, "ip-2"); !res.Allowed {
		t.Fatal("other key must have its own window")
	}
}

func TestMemoryLimiter_WindowRollover(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(1, 50*time.Millisecond)

	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("first hit should pass")
	}
	if res, _ := l.Allow(ctx, "k"); res.Allowed {
		t.Fatal("second hit in window should be denied")
	}

	time.Sleep(60 * time.Millisecond)
	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("hit after rollover should pass")
	}
}
