package pong

// Step 将状态推进一个回合。唯一的外部输入是回合之间设置的挡板 DY。
func Step(s *GameState, t Tuning) {
	wall := t.Wall()

	movePaddle(&s.LeftPaddle, wall, t.MaxPaddleY())
	movePaddle(&s.RightPaddle, wall, t.MaxPaddleY())

	s.Ball.X += s.BallDX
	s.Ball.Y += s.Ball.DY

	// 回弹位置固定在墙边，与越界距离无关。
	if s.Ball.Y < wall {
		s.Ball.Y = wall
		s.Ball.DY = -s.Ball.DY
	} else if s.Ball.Y+t.Grid > t.Height-wall {
		s.Ball.Y = t.Height - 2*wall
		s.Ball.DY = -s.Ball.DY
	}

	if s.Ball.X < 0 || s.Ball.X > t.Width {
		if s.Ball.X < 0 {
			s.RightScore++
		} else {
			s.LeftScore++
		}
		resetBall(s, t)
	}

	switch {
	case Collides(s.Ball.Rect(), s.LeftPaddle.Rect()):
		bounce(s)
		s.Ball.X = s.LeftPaddle.X + s.LeftPaddle.Width
	case Collides(s.Ball.Rect(), s.RightPaddle.Rect()):
		bounce(s)
		s.Ball.X = s.RightPaddle.X - s.Ball.Width
	}

	s.Tick++
	s.IsFirstPlayer = !s.IsFirstPlayer
}

func movePaddle(p *Entity, minY, maxY int) {
	p.Y += p.DY
	if p.Y < minY {
		p.Y = minY
	} else if p.Y > maxY {
		p.Y = maxY
	}
}

// resetBall 把球放回中心并把速度归一到 BallSpeed：水平方向反向，
// 垂直方向 -speed*sign(dy)*-1 化简后保持原符号。
func resetBall(s *GameState, t Tuning) {
	s.Ball.X = t.Width / 2
	s.Ball.Y = t.Height / 2
	s.BallDX = t.BallSpeed * sign(s.BallDX) * -1
	s.Ball.DY = -t.BallSpeed * sign(s.Ball.DY) * -1
}

func bounce(s *GameState) {
	s.BallDX = -s.BallDX
	s.BallDX += sign(s.BallDX)
	s.Ball.DY += sign(s.Ball.DY)
}
