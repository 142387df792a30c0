package pong

import (
	"fmt"
)

// Tuning 汇总画布尺寸与速度常量，所有尺寸单位均为像素。
type Tuning struct {
	Width        int `json:"width"`
	Height       int `json:"height"`
	Grid         int `json:"grid"`
	PaddleHeight int `json:"paddle_height"`
	PaddleSpeed  int `json:"paddle_speed"`
	BallSpeed    int `json:"ball_speed"`
	MaxTicks     int `json:"max_ticks"`
}

// DefaultTuning 返回演示版本使用的参数：750x585 画布，15 像素网格。
func DefaultTuning() Tuning {
	return Tuning{
		Width:        750,
		Height:       585,
		Grid:         15,
		PaddleHeight: 80,
		PaddleSpeed:  6,
		BallSpeed:    5,
		MaxTicks:     10,
	}
}

// Wall 返回上下墙体厚度，与网格大小一致。
func (t Tuning) Wall() int { return t.Grid }

// MaxPaddleY 返回挡板顶边允许的最大纵坐标。
func (t Tuning) MaxPaddleY() int { return t.Height - t.Wall() - t.PaddleHeight }

// LeftPaddleX 与 RightPaddleX 返回两块挡板的固定横坐标。
func (t Tuning) LeftPaddleX() int { return 2 * t.Grid }

func (t Tuning) RightPaddleX() int { return t.Width - 3*t.Grid }

// WithMaxTicks 返回修改了回合预算的副本。
func (t Tuning) WithMaxTicks(n int) Tuning {
	t.MaxTicks = n
	return t
}

// Validate 检查参数是否能构成一个可运行的场地。
func (t Tuning) Validate() error {
	switch {
	case t.Grid <= 0:
		return fmt.Errorf("grid must be positive, got %d", t.Grid)
	case t.PaddleHeight <= 0:
		return fmt.Errorf("paddle height must be positive, got %d", t.PaddleHeight)
	case t.PaddleSpeed <= 0 || t.BallSpeed <= 0:
		return fmt.Errorf("speeds must be positive, got paddle=%d ball=%d", t.PaddleSpeed, t.BallSpeed)
	case t.MaxTicks <= 0:
		return fmt.Errorf("max ticks must be positive, got %d", t.MaxTicks)
	case t.MaxPaddleY() < t.Wall():
		return fmt.Errorf("canvas height %d too small for paddle height %d", t.Height, t.PaddleHeight)
	case t.RightPaddleX() <= t.LeftPaddleX()+t.Grid:
		return fmt.Errorf("canvas width %d too small for two paddles", t.Width)
	}
	return nil
}
