package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ZKPong/pkg/logger"
)

// RabbitMQConfig 描述 RabbitMQ 队列的连接参数。
type RabbitMQConfig struct {
	URL        string
	Queue      string
	Prefetch   int
	Durable    bool
	AutoDelete bool
}

// RabbitMQQueue 使用 RabbitMQ 实现会话队列。发布走一条开启了 confirm 模式的 channel，
// 每个消费协程各自持有一条 channel，prefetch 按协程生效。
type RabbitMQQueue struct {
	conn     *amqp.Connection
	queue    string
	prefetch int

	mu  sync.Mutex
	pub *amqp.Channel
	now func() time.Time
}

// NewRabbitMQQueue 连接 RabbitMQ 并声明队列。
func NewRabbitMQQueue(cfg RabbitMQConfig) (*RabbitMQQueue, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "zkpong.sessions"
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if _, err := pub.QueueDeclare(queue, cfg.Durable, cfg.AutoDelete, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("声明 RabbitMQ 队列失败: %w", err)
	}
	if err := pub.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("开启 RabbitMQ confirm 模式失败: %w", err)
	}
	return &RabbitMQQueue{conn: conn, queue: queue, prefetch: prefetch, pub: pub, now: time.Now}, nil
}

// Publish 投递持久化消息并等待 broker 确认。
func (q *RabbitMQQueue) Publish(ctx context.Context, sessionID string) error {
	if q == nil || q.pub == nil {
		return errors.New("RabbitMQ 队列未初始化")
	}
	now := q.now()
	body, err := encodeEnvelope(sessionID, now)
	if err != nil {
		return err
	}

	// amqp channel 不支持并发发布。
	q.mu.Lock()
	confirm, err := q.pub.PublishWithDeferredConfirmWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    sessionID,
		Timestamp:    now,
		Body:         body,
	})
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("RabbitMQ 发布会话失败: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("RabbitMQ 拒绝了会话 %s", sessionID)
	}
	return nil
}

// Consume 使用手动确认模式消费队列。处理失败的消息首次重新入队，再次失败则丢弃。
func (q *RabbitMQQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if q == nil || q.conn == nil {
		return errors.New("RabbitMQ 队列未初始化")
	}
	if workerCount <= 0 {
		workerCount = 1
	}

	deliveries := make([]<-chan amqp.Delivery, 0, workerCount)
	channels := make([]*amqp.Channel, 0, workerCount)
	defer func() {
		for _, ch := range channels {
			_ = ch.Close()
		}
	}()
	for i := 0; i < workerCount; i++ {
		ch, err := q.conn.Channel()
		if err != nil {
			return fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
		}
		channels = append(channels, ch)
		if err := ch.Qos(q.prefetch, 0, false); err != nil {
			return fmt.Errorf("设置 RabbitMQ QOS 失败: %w", err)
		}
		msgs, err := ch.Consume(q.queue, fmt.Sprintf("zkpong-worker-%d", i), false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("订阅 RabbitMQ 队列失败: %w", err)
		}
		deliveries = append(deliveries, msgs)
	}

	log := logger.Named("rabbitmq_queue")
	var wg sync.WaitGroup
	for _, msgs := range deliveries {
		wg.Add(1)
		go func(msgs <-chan amqp.Delivery) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					env, err := decodeEnvelope(msg.Body)
					if err != nil {
						log.Warn("丢弃无法解析的队列消息", "message_id", msg.MessageId, "error", err)
						_ = msg.Reject(false)
						continue
					}
					if err := handler(ctx, env.SessionID); err != nil {
						log.Warn("会话处理失败", "session_id", env.SessionID, "redelivered", msg.Redelivered, "error", err)
						_ = msg.Nack(false, !msg.Redelivered)
						continue
					}
					_ = msg.Ack(false)
				}
			}
		}(msgs)
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close 关闭发布 channel 与连接。
func (q *RabbitMQQueue) Close() error {
	if q == nil {
		return nil
	}
	if q.pub != nil {
		_ = q.pub.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
