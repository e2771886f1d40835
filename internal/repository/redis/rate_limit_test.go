package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRateLimitRepository_RecordAndCount(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "market:rate-limit", TTL: 2 * time.Minute})

	ctx := context.Background()
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := repo.RecordAttempt(ctx, "otp:buyer@example.com", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := repo.CountAttempts(ctx, "otp:buyer@example.com", time.Minute, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts in window, got %d", count)
	}

	count, err = repo.CountAttempts(ctx, "otp:other@example.com", time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected isolated identifiers, got %d", count)
	}
}

func TestRateLimitRepository_TrimWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "market:rate-limit"})

	ctx := context.Background()
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

	if err := repo.RecordAttempt(ctx, "otp:buyer@example.com", now.Add(-5*time.Minute)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := repo.RecordAttempt(ctx, "otp:buyer@example.com", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	if err := repo.TrimWindow(ctx, "otp:buyer@example.com", time.Minute, now); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	count, err := repo.CountAttempts(ctx, "otp:buyer@example.com", 10*time.Minute, now)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected stale attempt to be trimmed, got %d", count)
	}
}

func TestRateLimitRepository_OldestAttempt(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "market:rate-limit"})

	ctx := context.Background()
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

	_, found, err := repo.OldestAttempt(ctx, "otp:buyer@example.com", time.Minute, now)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if found {
		t.Fatalf("expected no attempt for fresh identifier")
	}

	first := now.Add(-30 * time.Second)
	if err := repo.RecordAttempt(ctx, "otp:buyer@example.com", first); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if err := repo.RecordAttempt(ctx, "otp:buyer@example.com", now); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	oldest, found, err := repo.OldestAttempt(ctx, "otp:buyer@example.com", time.Minute, now)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected an attempt inside the window")
	}
	if !oldest.Equal(first) {
		t.Fatalf("expected oldest %v, got %v", first, oldest)
	}
}

func TestRateLimitRepository_DefaultKeyPrefix(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{})

	if err := repo.RecordAttempt(context.Background(), "otp:buyer@example.com", time.Now()); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	if !server.Exists("market:rate-limit:otp:buyer@example.com") {
		t.Fatalf("expected attempt stored under the default prefix")
	}
}

func TestRateLimitRepository_AppliesTTL(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "market:rate-limit", TTL: 2 * time.Minute})

	ctx := context.Background()
	if err := repo.RecordAttempt(ctx, "otp:buyer@example.com", time.Now()); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	ttl := server.TTL("market:rate-limit:otp:buyer@example.com")
	if ttl != 2*time.Minute {
		t.Fatalf("expected 2m TTL on the key, got %v", ttl)
	}
}
