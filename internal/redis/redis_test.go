package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// testStore reads to REDIS_TEST_ADDR (host:port) or skips.
func testStore(t *testing.T) Config {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	host, port, _ := strings.Cut(addr, ":")
	return Config{Host: host, Port: port}
}

func TestPresenceConnectionCounting(t *testing.T) {
	cfg := testStore(t)
	ctx := context.Background()
	client, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	store := NewPresenceStore(client, time.Minute)
	userID := uuid.NewString()

	first, err := store.Connect(ctx, userID, "a")
	if err != nil || !first {
		t.Fatalf("first connect = %v, %v", first, err)
	}
	first, err = store.Connect(ctx, userID, "b")
	if err != nil || first {
		t.Fatalf("second connect = %v, %v", first, err)
	}
	if online, _ := store.IsOnline(ctx, userID); !online {
		t.Fatalf("user should be online")
	}

	last, err := store.Disconnect(ctx, userID, "a")
	if err != nil || last {
		t.Fatalf("first disconnect = %v, %v", last, err)
	}
	last, err = store.Disconnect(ctx, userID, "b")
	if err != nil || !last {
		t.Fatalf("last disconnect = %v, %v", last, err)
	}
	if online, _ := store.IsOnline(ctx, userID); online {
		t.Fatalf("user should be offline")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	cfg := testStore(t)
	ctx := context.Background()
	client, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	limiter := NewRateLimiter(client, RateLimitConfig{AuthLimit: 2, AuthWindow: time.Minute})
	ip := "test-" + uuid.NewString()
	defer limiter.ResetAuth(ctx, ip)

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowAuth(ctx, ip)
		if err != nil || !res.Allowed {
			t.Fatalf("attempt %d = %+v, %v", i, res, err)
		}
	}
	res, err := limiter.AllowAuth(ctx, ip)
	if err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if res.Allowed || res.Remaining != 0 {
		t.Fatalf("third attempt = %+v, want blocked", res)
	}
}

func TestConfigAddr(t *testing.T) {
	if got := (Config{Host: "cache", Port: "6380"}).Addr(); got != "cache:6380" {
		t.Fatalf("addr = %s", got)
	}
}
