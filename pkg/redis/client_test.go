package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/microcommerce-backend/pkg/config"
)

func TestIncrWithTTLStartsWindowOnFirstHit(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, "login:ip:1.2.3.4", time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}

	key := "microcommerce:rl:login:ip:1.2.3.4"
	if fake.ttlMillis[key] != time.Minute.Milliseconds() {
		t.Fatalf("expected window ttl on %s, got %v", key, fake.ttlMillis)
	}
	if fake.expires != 1 {
		t.Fatalf("ttl should be set once per window, set %d times", fake.expires)
	}
}

func TestSetNXGetDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.LockKey("cron-worker")

	if ok, err := client.SetNX(ctx, key, "owner-a", time.Minute); err != nil || !ok {
		t.Fatalf("expected first setnx to win, ok=%v err=%v", ok, err)
	}
	if ok, err := client.SetNX(ctx, key, "owner-b", time.Minute); err != nil || ok {
		t.Fatalf("expected second setnx to lose, ok=%v err=%v", ok, err)
	}
	if owner, err := client.Get(ctx, key); err != nil || owner != "owner-a" {
		t.Fatalf("expected owner-a, got %q err=%v", owner, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, key); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestGetDelClaimsOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.AccessSessionKey("jti-1")

	if err := client.Set(ctx, key, "refresh-digest", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := client.GetDel(ctx, key); err != nil || got != "refresh-digest" {
		t.Fatalf("expected first getdel to return value, got %q err=%v", got, err)
	}
	if _, err := client.GetDel(ctx, key); err != redis.Nil {
		t.Fatalf("expected redis.Nil on second getdel, got %v", err)
	}
	if _, err := (&Client{}).GetDel(ctx, key); err == nil {
		t.Fatal("expected getdel on disconnected client to fail")
	}
}

func TestDisconnectedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping on disconnected client to fail")
	}
	if _, err := client.IncrWithTTL(context.Background(), "k", time.Second); err == nil {
		t.Fatal("expected incr on disconnected client to fail")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close should be a no-op, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("u:42|POST|/api/orders/checkout", "k1"): "microcommerce:idem:u:42|POST|/api/orders/checkout:k1",
		client.AccessSessionKey("jti-1"):                               "microcommerce:session:jti-1",
		client.LockKey("cron-worker"):                                  "microcommerce:lock:cron-worker",
		client.IdempotencyKey("scope", " "):                            "microcommerce:idem:scope",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestOptionsRequiresEndpoint(t *testing.T) {
	if _, err := options(configFor("", "")); err == nil {
		t.Fatal("expected error without url or address")
	}
	opts, err := options(configFor("redis://localhost:6379/2", ""))
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 10 {
		t.Fatalf("unexpected options db=%d pool=%d", opts.DB, opts.PoolSize)
	}
}

func configFor(url, addr string) config.RedisConfig {
	return config.RedisConfig{URL: url, Address: addr, PoolSize: 10, DialTimeout: time.Second}
}

type fakeCommands struct {
	data      map[string]string
	counters  map[string]int64
	ttlMillis map[string]int64
	expires   int
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		data:      map[string]string{},
		counters:  map[string]int64{},
		ttlMillis: map[string]int64{},
	}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := f.Get(ctx, key)
	delete(f.data, key)
	return cmd
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval emulates the fixed window script.
func (f *fakeCommands) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	f.counters[key]++
	if f.counters[key] == 1 {
		f.ttlMillis[key] = args[0].(int64)
		f.expires++
	}
	return redis.NewCmdResult(f.counters[key], nil)
}
