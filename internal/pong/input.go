package pong

import (
	"fmt"
	"strings"
)

// Side 标识左右两块挡板。
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// MarshalText 实现 encoding.TextMarshaler。
func (s Side) MarshalText() ([]byte, error) {
	if s != Left && s != Right {
		return nil, fmt.Errorf("invalid side %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler。
func (s *Side) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "left":
		*s = Left
	case "right":
		*s = Right
	default:
		return fmt.Errorf("unknown side %q", string(text))
	}
	return nil
}

// Direction 为挡板的运动意图。
type Direction int

const (
	Stop Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return "stop"
}

// MarshalText 实现 encoding.TextMarshaler。
func (d Direction) MarshalText() ([]byte, error) {
	if d < Stop || d > Down {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler。
func (d *Direction) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "up":
		*d = Up
	case "down":
		*d = Down
	case "stop", "":
		*d = Stop
	default:
		return fmt.Errorf("unknown direction %q", string(text))
	}
	return nil
}

// Velocity 把方向映射为挡板 DY，画布纵轴向下为正。
func (d Direction) Velocity(speed int) int {
	switch d {
	case Up:
		return -speed
	case Down:
		return speed
	}
	return 0
}

// Command 是输入端发送到游戏收件箱的指令。
type Command struct {
	Side      Side      `json:"side"`
	Direction Direction `json:"direction"`
}

// ScriptedInput 在状态到达 Tick 时、执行下一次 Step 之前生效。
type ScriptedInput struct {
	Tick      int       `json:"tick"`
	Side      Side      `json:"side"`
	Direction Direction `json:"direction"`
}

// Command 返回脚本项对应的指令。
func (in ScriptedInput) Command() Command {
	return Command{Side: in.Side, Direction: in.Direction}
}

// ValidateScript 检查脚本中的回合号是否落在 [0, maxTicks) 内。
func ValidateScript(script []ScriptedInput, maxTicks int) error {
	for i, in := range script {
		if in.Tick < 0 || in.Tick >= maxTicks {
			return fmt.Errorf("script[%d]: tick %d outside [0, %d)", i, in.Tick, maxTicks)
		}
		if in.Side != Left && in.Side != Right {
			return fmt.Errorf("script[%d]: invalid side", i)
		}
		if in.Direction < Stop || in.Direction > Down {
			return fmt.Errorf("script[%d]: invalid direction", i)
		}
	}
	return nil
}

func apply(s *GameState, cmd Command, speed int) {
	dy := cmd.Direction.Velocity(speed)
	if cmd.Side == Right {
		s.RightPaddle.DY = dy
		return
	}
	s.LeftPaddle.DY = dy
}
