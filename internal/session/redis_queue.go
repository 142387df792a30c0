package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ZKPong/pkg/logger"
)

// RedisQueueConfig 描述 Redis 队列的连接参数。
type RedisQueueConfig struct {
	Address   string
	Password  string
	DB        int
	Queue     string
	BlockWait time.Duration
}

// RedisQueue 使用两个 Redis list 实现可靠队列：消息先由 BLMOVE 移入 processing 列表，
// 处理完成后再删除；进程异常退出时留在 processing 中的消息会在下次 Consume 时放回待处理列表。
type RedisQueue struct {
	client     *redis.Client
	pending    string
	processing string
	wait       time.Duration
	now        func() time.Time
}

// NewRedisQueue 创建 Redis 队列实例。
func NewRedisQueue(ctx context.Context, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return newRedisQueue(client, cfg), nil
}

func newRedisQueue(client *redis.Client, cfg RedisQueueConfig) *RedisQueue {
	key := cfg.Queue
	if key == "" {
		key = "zkpong:sessions"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisQueue{
		client:     client,
		pending:    key,
		processing: key + ":processing",
		wait:       wait,
		now:        time.Now,
	}
}

// Publish 把会话消息压入待处理列表的左端。
func (q *RedisQueue) Publish(ctx context.Context, sessionID string) error {
	body, err := encodeEnvelope(sessionID, q.now())
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.pending, body).Err(); err != nil {
		return fmt.Errorf("Redis 发布会话失败: %w", err)
	}
	return nil
}

// Consume 启动 workerCount 个协程，直到 ctx 取消或 Redis 返回不可恢复的错误。
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	if err := q.requeueProcessing(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.work(ctx, handler); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (q *RedisQueue) work(ctx context.Context, handler Handler) error {
	log := logger.Named("redis_queue")
	for {
		raw, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", q.wait).Result()
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				continue
			case ctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("Redis 取会话失败: %w", err)
			}
		}

		env, decodeErr := decodeEnvelope([]byte(raw))
		if decodeErr != nil {
			log.Warn("丢弃无法解析的队列消息", "error", decodeErr)
		} else if handlerErr := handler(ctx, env.SessionID); handlerErr != nil {
			log.Warn("会话处理失败，重新入队", "session_id", env.SessionID, "error", handlerErr)
			// 压回左端排到队尾，BLMOVE 从右端取，其他会话先被处理。由下一次 Claim 判定会话是否仍需处理。
			if err := q.client.LPush(context.WithoutCancel(ctx), q.pending, raw).Err(); err != nil {
				log.Error("会话重新入队失败", "session_id", env.SessionID, "error", err)
			}
		}
		if err := q.client.LRem(context.WithoutCancel(ctx), q.processing, 1, raw).Err(); err != nil {
			log.Error("清理 processing 列表失败", "error", err)
		}
	}
}

// requeueProcessing 把上次运行遗留在 processing 列表中的消息移回待处理列表。
func (q *RedisQueue) requeueProcessing(ctx context.Context) error {
	moved := 0
	for {
		_, err := q.client.LMove(ctx, q.processing, q.pending, "RIGHT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return fmt.Errorf("恢复 processing 列表失败: %w", err)
		}
		moved++
	}
	if moved > 0 {
		logger.Named("redis_queue").Info("恢复未完成的会话", "count", moved)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
