package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryQueueDeliversToWorkers(t *testing.T) {
	queue := NewMemoryQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	seen := map[string]bool{}
	got := make(chan struct{}, 3)
	done := make(chan error, 1)
	go func() {
		done <- queue.Consume(ctx, 2, func(_ context.Context, id string) error {
			mu.Lock()
			seen[id] = true
			mu.Unlock()
			got <- struct{}{}
			return nil
		})
	}()

	for _, id := range []string{"a", "b", "c"} {
		if err := queue.Publish(ctx, id); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-got:
		case <-ctx.Done():
			t.Fatalf("timed out waiting for delivery")
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("consume returned %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("seen = %v", seen)
	}
}

func TestMemoryQueueRetriesFailedSessionOnce(t *testing.T) {
	queue := NewMemoryQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- queue.Consume(ctx, 1, func(_ context.Context, id string) error {
			calls <- id
			if id == "flaky" {
				return errors.New("prover offline")
			}
			return nil
		})
	}()

	next := func() string {
		select {
		case id := <-calls:
			return id
		case <-ctx.Done():
			t.Fatalf("timed out waiting for delivery")
			return ""
		}
	}

	if err := queue.Publish(ctx, "flaky"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if first, second := next(), next(); first != "flaky" || second != "flaky" {
		t.Fatalf("deliveries = %s, %s", first, second)
	}
	for _, id := range []string{"ok", "last"} {
		if err := queue.Publish(ctx, id); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
		if got := next(); got != id {
			t.Fatalf("failed session delivered a third time before %s: got %s", id, got)
		}
	}
	cancel()
	<-done
}

func TestMemoryQueueRejectsAfterClose(t *testing.T) {
	queue := NewMemoryQueue(1)
	if err := queue.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := queue.Publish(context.Background(), "a"); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("publish after close = %v", err)
	}
}

func TestMemoryQueuePublishHonoursContext(t *testing.T) {
	queue := NewMemoryQueue(1)
	if err := queue.Publish(context.Background(), "a"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := queue.Publish(ctx, "b"); !errors.Is(err, context.Canceled) {
		t.Fatalf("full queue publish = %v", err)
	}
}

func TestBrokerQueuesRequireAddress(t *testing.T) {
	if _, err := NewRedisQueue(context.Background(), RedisQueueConfig{}); err == nil {
		t.Fatalf("expected error for empty redis address")
	}
	if _, err := NewRabbitMQQueue(RabbitMQConfig{}); err == nil {
		t.Fatalf("expected error for empty rabbitmq url")
	}
}

func TestRedisQueueDefaults(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	q := newRedisQueue(client, RedisQueueConfig{})
	if q.pending != "zkpong:sessions" || q.processing != "zkpong:sessions:processing" || q.wait != 5*time.Second {
		t.Fatalf("defaults = %q %q %s", q.pending, q.processing, q.wait)
	}
	q = newRedisQueue(client, RedisQueueConfig{Queue: "custom", BlockWait: time.Second})
	if q.pending != "custom" || q.processing != "custom:processing" || q.wait != time.Second {
		t.Fatalf("overrides = %q %q %s", q.pending, q.processing, q.wait)
	}
}

// scriptedRedis 拦截所有命令：第一次 BLMOVE 返回 raw，之后返回空结果，其余命令记录后直接成功。
type scriptedRedis struct {
	mu     sync.Mutex
	raw    string
	served bool
	cmds   [][]any
}

func (h *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *scriptedRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.cmds = append(h.cmds, cmd.Args())
		switch c := cmd.(type) {
		case *redis.StringCmd:
			switch {
			case ctx.Err() != nil:
				c.SetErr(ctx.Err())
			case h.served:
				c.SetErr(redis.Nil)
			default:
				h.served = true
				c.SetVal(h.raw)
			}
		case *redis.IntCmd:
			c.SetVal(1)
		}
		return cmd.Err()
	}
}

func TestRedisQueueRequeuesFailedSessionAtTail(t *testing.T) {
	raw, err := encodeEnvelope("s-retry", time.UnixMilli(1))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	hook := &scriptedRedis{raw: string(raw)}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	client.AddHook(hook)
	q := newRedisQueue(client, RedisQueueConfig{Queue: "jobs", BlockWait: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err = q.work(ctx, func(_ context.Context, id string) error {
		if id != "s-retry" {
			t.Errorf("handler got %q", id)
		}
		cancel()
		return errors.New("prover offline")
	})
	if err != nil {
		t.Fatalf("work: %v", err)
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	var names []string
	for _, args := range hook.cmds {
		names = append(names, fmt.Sprint(args[0]))
	}
	if len(hook.cmds) < 3 {
		t.Fatalf("commands = %v", names)
	}
	blmove, push, lrem := hook.cmds[0], hook.cmds[1], hook.cmds[2]
	if fmt.Sprint(blmove[0]) != "blmove" || fmt.Sprint(blmove[3]) != "RIGHT" {
		t.Fatalf("pop = %v", blmove)
	}
	if fmt.Sprint(push[0]) != "lpush" || push[1] != "jobs" || fmt.Sprint(push[2]) != string(raw) {
		t.Fatalf("failed session requeued with %v, want lpush onto the end opposite to blmove", push)
	}
	if fmt.Sprint(lrem[0]) != "lrem" || lrem[1] != "jobs:processing" {
		t.Fatalf("processing cleanup = %v", lrem)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	body, err := encodeEnvelope("s-1", at)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(body) != `{"session_id":"s-1","enqueued_at":1700000000123}` {
		t.Fatalf("body = %s", body)
	}
	env, err := decodeEnvelope(body)
	if err != nil || env.SessionID != "s-1" || env.EnqueuedAt != at.UnixMilli() {
		t.Fatalf("decode = %+v, %v", env, err)
	}
	if _, err := encodeEnvelope("", at); err == nil {
		t.Fatalf("expected error for empty session id")
	}
}

func TestDecodeEnvelopeAcceptsPlainID(t *testing.T) {
	env, err := decodeEnvelope([]byte(" legacy-id \n"))
	if err != nil || env.SessionID != "legacy-id" {
		t.Fatalf("plain id = %+v, %v", env, err)
	}
	for _, body := range []string{"", "   ", "{not json", `{"enqueued_at":1}`} {
		if _, err := decodeEnvelope([]byte(body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}
