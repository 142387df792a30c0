package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"ZKPong/pkg/logger"
)

// MemoryQueue 使用 channel 模拟消息队列，适用于单进程部署和测试。
// 处理失败的会话重新入队一次，再次失败则丢弃。
type MemoryQueue struct {
	ch     chan string
	mu     sync.RWMutex
	closed bool

	retryMu sync.Mutex
	retried map[string]bool
}

// NewMemoryQueue 创建一个内存队列。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size), retried: make(map[string]bool)}
}

// ErrQueueClosed 表示队列已关闭。
var ErrQueueClosed = errors.New("队列已关闭")

// Publish 将会话投递到队列。
func (q *MemoryQueue) Publish(ctx context.Context, sessionID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- sessionID:
		return nil
	}
}

// Consume 启动指定数量的工作协程消费队列中的会话，直到 ctx 取消。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	log := logger.Named("memory_queue")
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case sessionID, ok := <-q.ch:
					if !ok {
						return
					}
					if err := handler(ctx, sessionID); err != nil {
						q.fail(ctx, sessionID, err, log)
						continue
					}
					q.retryMu.Lock()
					delete(q.retried, sessionID)
					q.retryMu.Unlock()
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// fail 记录处理失败，首次失败时把会话重新放回队列。
func (q *MemoryQueue) fail(ctx context.Context, sessionID string, err error, log *slog.Logger) {
	q.retryMu.Lock()
	redelivered := q.retried[sessionID]
	if redelivered {
		delete(q.retried, sessionID)
	} else {
		q.retried[sessionID] = true
	}
	q.retryMu.Unlock()

	log.Warn("会话处理失败", "session_id", sessionID, "redelivered", redelivered, "error", err)
	if redelivered || ctx.Err() != nil {
		return
	}
	if !q.requeue(sessionID) {
		log.Warn("队列已满或已关闭，放弃重新入队", "session_id", sessionID)
		q.retryMu.Lock()
		delete(q.retried, sessionID)
		q.retryMu.Unlock()
	}
}

// requeue 以非阻塞方式重新投递，工作协程自身不能阻塞在满队列上。
func (q *MemoryQueue) requeue(sessionID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- sessionID:
		return true
	default:
		return false
	}
}

// Close 关闭内存队列。
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if !q.closed {
		close(q.ch)
		q.closed = true
	}
	q.mu.Unlock()
	return nil
}
