package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Handler 处理来自消息队列的会话 ID。
type Handler func(ctx context.Context, sessionID string) error

// Producer 负责向队列投递会话。
type Producer interface {
	Publish(ctx context.Context, sessionID string) error
	Close() error
}

// Consumer 负责从队列中消费会话。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}

// envelope 是 Redis 与 RabbitMQ 队列中的消息体。
type envelope struct {
	SessionID  string `json:"session_id"`
	EnqueuedAt int64  `json:"enqueued_at"`
}

func encodeEnvelope(sessionID string, now time.Time) ([]byte, error) {
	if sessionID == "" {
		return nil, errors.New("会话 ID 不能为空")
	}
	return json.Marshal(envelope{SessionID: sessionID, EnqueuedAt: now.UnixMilli()})
}

// decodeEnvelope 也接受只包含会话 ID 的纯文本消息。
func decodeEnvelope(body []byte) (envelope, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return envelope{}, errors.New("空的队列消息")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return envelope{SessionID: trimmed}, nil
	}
	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return envelope{}, fmt.Errorf("解析队列消息失败: %w", err)
	}
	if env.SessionID == "" {
		return envelope{}, errors.New("队列消息缺少 session_id")
	}
	return env, nil
}
