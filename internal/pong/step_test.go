package pong

import (
	"math/rand/v2"
	"testing"
)

func TestCollidesUsesHalfOpenEdges(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	if !Collides(a, Rect{X: 9, Y: 9, Width: 5, Height: 5}) {
		t.Fatalf("overlapping corner should collide")
	}
	if Collides(a, Rect{X: 10, Y: 0, Width: 5, Height: 5}) {
		t.Fatalf("touching edges must not collide")
	}
	if Collides(a, Rect{X: 0, Y: 10, Width: 5, Height: 5}) {
		t.Fatalf("touching bottom edge must not collide")
	}
}

func TestNewGameStateMatchesDemoLayout(t *testing.T) {
	tn := DefaultTuning()
	s := NewGameState(tn)

	if s.Ball.X != 375 || s.Ball.Y != 292 || s.BallDX != 5 || s.Ball.DY != -5 {
		t.Fatalf("ball = %+v dx=%d", s.Ball, s.BallDX)
	}
	if s.LeftPaddle.X != 30 || s.RightPaddle.X != 705 {
		t.Fatalf("paddle x = %d/%d", s.LeftPaddle.X, s.RightPaddle.X)
	}
	if s.LeftPaddle.Y != 252 || s.RightPaddle.Y != 252 {
		t.Fatalf("paddle y = %d/%d", s.LeftPaddle.Y, s.RightPaddle.Y)
	}
	if !s.IsFirstPlayer || s.Tick != 0 {
		t.Fatalf("unexpected bookkeeping: %+v", s)
	}
	if tn.MaxPaddleY() != 490 {
		t.Fatalf("max paddle y = %d", tn.MaxPaddleY())
	}
}

func TestPaddleClampKeepsVelocity(t *testing.T) {
	tn := DefaultTuning()
	s := NewGameState(tn)
	s.LeftPaddle.Y, s.LeftPaddle.DY = 20, -6
	s.RightPaddle.Y, s.RightPaddle.DY = 488, 6

	Step(&s, tn)

	if s.LeftPaddle.Y != 15 || s.LeftPaddle.DY != -6 {
		t.Fatalf("left paddle = %+v", s.LeftPaddle)
	}
	if s.RightPaddle.Y != 490 || s.RightPaddle.DY != 6 {
		t.Fatalf("right paddle = %+v", s.RightPaddle)
	}

	Step(&s, tn)
	if s.LeftPaddle.Y != 15 || s.RightPaddle.Y != 490 {
		t.Fatalf("paddles should stay clamped: %d/%d", s.LeftPaddle.Y, s.RightPaddle.Y)
	}
}

func TestWallBounceSnapsToFixedTargets(t *testing.T) {
	tn := DefaultTuning()

	top := NewGameState(tn)
	top.Ball.Y, top.Ball.DY = 17, -5
	Step(&top, tn)
	if top.Ball.Y != 15 || top.Ball.DY != 5 {
		t.Fatalf("top bounce: y=%d dy=%d", top.Ball.Y, top.Ball.DY)
	}

	bottom := NewGameState(tn)
	bottom.Ball.Y, bottom.Ball.DY = 553, 5
	Step(&bottom, tn)
	if bottom.Ball.Y != 555 || bottom.Ball.DY != -5 {
		t.Fatalf("bottom bounce: y=%d dy=%d", bottom.Ball.Y, bottom.Ball.DY)
	}
}

func TestScoringResetsBallToCentre(t *testing.T) {
	tn := DefaultTuning()

	s := NewGameState(tn)
	s.Ball.X, s.Ball.Y, s.BallDX, s.Ball.DY = 2, 100, -5, -5
	Step(&s, tn)
	if s.RightScore != 1 || s.LeftScore != 0 {
		t.Fatalf("score = %d-%d", s.LeftScore, s.RightScore)
	}
	if s.Ball.X != 375 || s.Ball.Y != 292 {
		t.Fatalf("ball not centred: %+v", s.Ball)
	}
	if s.BallDX != 5 || s.Ball.DY != -5 {
		t.Fatalf("velocity after left exit: dx=%d dy=%d", s.BallDX, s.Ball.DY)
	}

	s = NewGameState(tn)
	s.Ball.X, s.Ball.Y, s.BallDX, s.Ball.DY = 748, 100, 7, 3
	Step(&s, tn)
	if s.LeftScore != 1 {
		t.Fatalf("left should score, got %d-%d", s.LeftScore, s.RightScore)
	}
	if s.BallDX != -5 || s.Ball.DY != 5 {
		t.Fatalf("velocity after right exit: dx=%d dy=%d", s.BallDX, s.Ball.DY)
	}
}

func TestPaddleHitAcceleratesAndSnaps(t *testing.T) {
	tn := DefaultTuning()

	s := NewGameState(tn)
	s.Ball.X, s.Ball.Y, s.BallDX, s.Ball.DY = 50, 260, -7, 3
	Step(&s, tn)
	if s.BallDX != 8 || s.Ball.DY != 4 || s.Ball.X != 45 {
		t.Fatalf("left hit: x=%d dx=%d dy=%d", s.Ball.X, s.BallDX, s.Ball.DY)
	}

	s = NewGameState(tn)
	s.Ball.X, s.Ball.Y, s.BallDX, s.Ball.DY = 695, 260, 6, -2
	Step(&s, tn)
	if s.BallDX != -7 || s.Ball.DY != -3 || s.Ball.X != 690 {
		t.Fatalf("right hit: x=%d dx=%d dy=%d", s.Ball.X, s.BallDX, s.Ball.DY)
	}
}

func TestLeftPaddleWinsSimultaneousOverlap(t *testing.T) {
	tn := DefaultTuning()
	s := NewGameState(tn)
	s.RightPaddle.X = 40
	s.Ball.X, s.Ball.Y, s.BallDX, s.Ball.DY = 30, 260, 1, 2

	Step(&s, tn)

	if s.Ball.X != 45 {
		t.Fatalf("ball should snap to the left paddle edge, got x=%d", s.Ball.X)
	}
	if s.BallDX != -2 || s.Ball.DY != 3 {
		t.Fatalf("only one bounce should apply: dx=%d dy=%d", s.BallDX, s.Ball.DY)
	}
}

func TestFinalizeAndOutcome(t *testing.T) {
	cases := []struct {
		left, right int
		want        Outcome
	}{
		{2, 1, OutcomeLeft},
		{0, 3, OutcomeRight},
		{1, 1, OutcomeTie},
	}
	for _, tc := range cases {
		s := GameState{Tick: 10, LeftScore: tc.left, RightScore: tc.right}
		Finalize(&s)
		if s.LeftWon && s.RightWon {
			t.Fatalf("both flags set for %d-%d", tc.left, tc.right)
		}
		if got := OutcomeOf(s, 10); got != tc.want {
			t.Fatalf("%d-%d: outcome = %s, want %s", tc.left, tc.right, got, tc.want)
		}
	}
	if OutcomeOf(GameState{Tick: 3}, 10) != OutcomeUndecided {
		t.Fatalf("mid game outcome should be undecided")
	}
}

func TestLongRandomRunKeepsInvariants(t *testing.T) {
	tn := DefaultTuning()
	wall := tn.Wall()
	rng := rand.New(rand.NewPCG(7, 11))
	directions := []Direction{Stop, Up, Down}

	s := NewGameState(tn)
	for tick := 0; tick < 50000; tick++ {
		if rng.IntN(8) == 0 {
			side := Left
			if rng.IntN(2) == 1 {
				side = Right
			}
			apply(&s, Command{Side: side, Direction: directions[rng.IntN(len(directions))]}, tn.PaddleSpeed)
		}
		prev := s
		Step(&s, tn)

		for _, p := range []Entity{s.LeftPaddle, s.RightPaddle} {
			if p.Y < wall || p.Y > tn.MaxPaddleY() {
				t.Fatalf("tick %d: paddle y %d outside [%d, %d]", s.Tick, p.Y, wall, tn.MaxPaddleY())
			}
		}
		if s.Ball.Y < wall || s.Ball.Y+tn.Grid > tn.Height-wall {
			t.Fatalf("tick %d: ball y %d outside the walls", s.Tick, s.Ball.Y)
		}
		if s.Ball.X < 0 || s.Ball.X > tn.Width {
			t.Fatalf("tick %d: ball x %d outside the field", s.Tick, s.Ball.X)
		}
		dl, dr := s.LeftScore-prev.LeftScore, s.RightScore-prev.RightScore
		if dl < 0 || dr < 0 || dl+dr > 1 {
			t.Fatalf("tick %d: score moved %d:%d -> %d:%d", s.Tick, prev.LeftScore, prev.RightScore, s.LeftScore, s.RightScore)
		}
		if s.Tick != prev.Tick+1 || s.IsFirstPlayer == prev.IsFirstPlayer {
			t.Fatalf("tick %d: bookkeeping did not advance", s.Tick)
		}
	}
}
