package pong

import (
	"context"
	"time"
)

// Scheduler 决定何时执行下一帧。Next 阻塞到下一帧或 ctx 结束。
type Scheduler interface {
	Next(ctx context.Context) error
}

// TickerScheduler 以固定帧率驱动游戏。
type TickerScheduler struct {
	ticker *time.Ticker
}

// NewTickerScheduler 创建帧率为 fps 的调度器，fps 非正时取 60。
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = 60
	}
	return &TickerScheduler{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

func (s *TickerScheduler) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticker.C:
		return nil
	}
}

// Stop 释放底层 ticker。
func (s *TickerScheduler) Stop() {
	s.ticker.Stop()
}

// ImmediateScheduler 不等待，用于无界面模拟与测试。
type ImmediateScheduler struct{}

func (ImmediateScheduler) Next(ctx context.Context) error {
	return ctx.Err()
}
