package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arpit8955/ecommerce/internal/orders"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}

	rdb := New(fmt.Sprintf("%s:%s", host, port.Port()))
	t.Cleanup(func() { _ = rdb.Close() })
	if err := Ping(ctx, rdb); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return rdb
}

func TestRedis(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	t.Run("order cache", func(t *testing.T) {
		c := NewOrderCache(rdb, nil)
		if _, ok := c.GetOrder(ctx, "o-1"); ok {
			t.Fatalf("unexpected hit")
		}
		c.PutOrder(ctx, &orders.Order{ID: "o-1", UserID: "u1", Status: orders.StatusPaid,
			Items: []orders.LineItem{{ProductID: "p1", Quantity: 2, PriceAtPurchaseCents: 300}}})
		got, ok := c.GetOrder(ctx, "o-1")
		if !ok || got.Status != orders.StatusPaid || got.Items[0].Quantity != 2 {
			t.Fatalf("cached = %+v", got)
		}
		ttl := rdb.TTL(ctx, fmt.Sprintf(KeyOrder, "o-1")).Val()
		if ttl <= 0 || ttl > TTLOrderCache {
			t.Fatalf("ttl = %s", ttl)
		}

		_ = rdb.Set(ctx, fmt.Sprintf(KeyOrder, "bad"), "{", time.Minute).Err()
		if _, ok := c.GetOrder(ctx, "bad"); ok {
			t.Fatalf("corrupt entry must be a miss")
		}
	})

	t.Run("lock", func(t *testing.T) {
		l := NewLocker(rdb)
		release, ok, err := l.TryLock(ctx, "reaper", time.Minute)
		if err != nil || !ok {
			t.Fatalf("first lock: %v %v", ok, err)
		}
		if _, ok, _ := l.TryLock(ctx, "reaper", time.Minute); ok {
			t.Fatalf("lock acquired twice")
		}
		release()
		release2, ok, err := l.TryLock(ctx, "reaper", time.Minute)
		if err != nil || !ok {
			t.Fatalf("lock after release: %v %v", ok, err)
		}
		// a stale release must not drop someone else's lock
		release()
		if exists, _ := Exists(ctx, rdb, fmt.Sprintf(KeyLock, "reaper")); !exists {
			t.Fatalf("stale release deleted the current holder's lock")
		}
		release2()
	})

	t.Run("dedup", func(t *testing.T) {
		d := NewDedup(rdb, "notifier")
		first, err := d.MarkOnce(ctx, "e-1")
		if err != nil || !first {
			t.Fatalf("first mark: %v %v", first, err)
		}
		again, _ := d.MarkOnce(ctx, "e-1")
		if again {
			t.Fatalf("event seen twice")
		}
		other, _ := NewDedup(rdb, "audit").MarkOnce(ctx, "e-1")
		if !other {
			t.Fatalf("services must not share dedup keys")
		}
	})
}
