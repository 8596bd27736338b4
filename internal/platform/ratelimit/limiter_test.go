package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	_ Allower = (*Limiter)(nil)
	_ Allower = (*LocalLimiter)(nil)
)

func TestLimiterSlidingWindow(t *testing.T) {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
	t.Cleanup(func() { _ = client.Close() })

	pingCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		t.Skipf("skip: redis not available at %s: %v", redisAddr, err)
	}

	limiter := NewLimiter(client)

	key := fmt.Sprintf("test:rl:%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Del(ctx, key).Err()
	})

	window := 2 * time.Second
	limit := 3

	callAllow := func(member string) (bool, time.Duration) {
		ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()

		allowed, retryAfter, err := limiter.Allow(ctx, key, limit, window, member)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		return allowed, retryAfter
	}

	for i := 0; i < limit; i++ {
		if allowed, _ := callAllow(fmt.Sprintf("%d-%d", time.Now().UnixNano(), i)); !allowed {
			t.Fatalf("expected allowed at attempt %d", i+1)
		}
	}

	allowed, retryAfter := callAllow(fmt.Sprintf("%d-over", time.Now().UnixNano()))
	if allowed {
		t.Fatalf("expected denied at attempt %d", limit+1)
	}
	if retryAfter <= 0 || retryAfter > window {
		t.Fatalf("unexpected retryAfter: %v (window=%v)", retryAfter, window)
	}

	time.Sleep(retryAfter + 200*time.Millisecond)
	if allowed, _ = callAllow(fmt.Sprintf("%d-after", time.Now().UnixNano())); !allowed {
		t.Fatalf("expected allowed after waiting, retryAfter=%v", retryAfter)
	}
}
