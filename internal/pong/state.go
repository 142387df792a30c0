package pong

// Entity 表示挡板或球。球的水平速度保存在 GameState.BallDX 中。
type Entity struct {
	X, Y          int
	Width, Height int
	DY            int
}

// Rect 返回实体的包围盒。
func (e Entity) Rect() Rect {
	return Rect{X: e.X, Y: e.Y, Width: e.Width, Height: e.Height}
}

// GameState 是模拟推进的全部状态，按值复制即得到完整快照。
type GameState struct {
	Ball        Entity
	LeftPaddle  Entity
	RightPaddle Entity

	BallDX     int
	Tick       int
	LeftScore  int
	RightScore int

	IsFirstPlayer bool

	// LeftWon 与 RightWon 只在最后一个回合由 Finalize 设置。
	LeftWon  bool
	RightWon bool
}

// NewGameState 创建开局状态：挡板垂直居中，球位于画布中心并朝右上角运动。
func NewGameState(t Tuning) GameState {
	paddleY := t.Height/2 - t.PaddleHeight/2
	paddle := func(x int) Entity {
		return Entity{X: x, Y: paddleY, Width: t.Grid, Height: t.PaddleHeight}
	}
	return GameState{
		Ball: Entity{
			X:      t.Width / 2,
			Y:      t.Height / 2,
			Width:  t.Grid,
			Height: t.Grid,
			DY:     -t.BallSpeed,
		},
		LeftPaddle:    paddle(t.LeftPaddleX()),
		RightPaddle:   paddle(t.RightPaddleX()),
		BallDX:        t.BallSpeed,
		IsFirstPlayer: true,
	}
}
