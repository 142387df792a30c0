package pong

import (
	"context"
	"errors"
	"testing"
)

type frames []GameState

func (f *frames) Record(s GameState) { *f = append(*f, s) }

func TestTenTickDemoScenario(t *testing.T) {
	var rec frames
	g := NewGame(DefaultTuning(), &rec)

	final, err := g.Run(context.Background(), ImmediateScheduler{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if final.Ball.X != 425 || final.Ball.Y != 242 {
		t.Fatalf("ball = (%d, %d), want (425, 242)", final.Ball.X, final.Ball.Y)
	}
	if final.BallDX != 5 || final.Ball.DY != -5 {
		t.Fatalf("velocity = (%d, %d)", final.BallDX, final.Ball.DY)
	}
	if final.LeftPaddle.Y != 252 || final.RightPaddle.Y != 252 {
		t.Fatalf("paddles moved: %d/%d", final.LeftPaddle.Y, final.RightPaddle.Y)
	}
	if final.LeftScore != 0 || final.RightScore != 0 || final.LeftWon || final.RightWon {
		t.Fatalf("expected scoreless tie: %+v", final)
	}
	if OutcomeOf(final, 10) != OutcomeTie {
		t.Fatalf("outcome = %s", OutcomeOf(final, 10))
	}
	if final.Tick != 10 || !final.IsFirstPlayer {
		t.Fatalf("tick=%d first=%v", final.Tick, final.IsFirstPlayer)
	}

	if len(rec) != 11 {
		t.Fatalf("recorded %d frames, want 11", len(rec))
	}
	for i, s := range rec {
		if s.Tick != i {
			t.Fatalf("frame %d has tick %d", i, s.Tick)
		}
		if s.IsFirstPlayer != (i%2 == 0) {
			t.Fatalf("frame %d parity = %v", i, s.IsFirstPlayer)
		}
	}
	if rec[0] != NewGameState(DefaultTuning()) {
		t.Fatalf("first frame must be the initial state")
	}
}

func TestTickAfterBudgetIsNoop(t *testing.T) {
	var rec frames
	g := NewGame(DefaultTuning().WithMaxTicks(2), &rec)
	for g.Tick() {
	}
	if g.Tick() {
		t.Fatalf("tick after budget should report false")
	}
	if len(rec) != 3 {
		t.Fatalf("recorded %d frames, want 3", len(rec))
	}
}

func TestInboxAppliesBetweenTicks(t *testing.T) {
	g := NewGame(DefaultTuning(), nil)
	if !g.Send(Command{Side: Left, Direction: Up}) {
		t.Fatalf("send should succeed")
	}
	g.Tick()
	if got := g.State().LeftPaddle.Y; got != 246 {
		t.Fatalf("left paddle y = %d, want 246", got)
	}

	g.Tick()
	if got := g.State().LeftPaddle.Y; got != 240 {
		t.Fatalf("key press should persist, y = %d", got)
	}

	g.Send(Command{Side: Left, Direction: Stop})
	g.Tick()
	if got := g.State().LeftPaddle.Y; got != 240 {
		t.Fatalf("stop should freeze paddle, y = %d", got)
	}
}

func TestInboxFullRejectsSend(t *testing.T) {
	g := NewGame(DefaultTuning(), nil, WithInboxSize(1))
	if !g.Send(Command{Side: Right, Direction: Down}) {
		t.Fatalf("first send should fit")
	}
	if g.Send(Command{Side: Right, Direction: Up}) {
		t.Fatalf("second send should be rejected")
	}
}

func TestScriptIsDeterministic(t *testing.T) {
	script := []ScriptedInput{
		{Tick: 0, Side: Right, Direction: Down},
		{Tick: 3, Side: Left, Direction: Up},
		{Tick: 5, Side: Right, Direction: Stop},
	}
	if err := ValidateScript(script, 10); err != nil {
		t.Fatalf("validate: %v", err)
	}

	run := func() GameState {
		g := NewGame(DefaultTuning(), nil, WithScript(script))
		s, err := g.Run(context.Background(), ImmediateScheduler{})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return s
	}
	a, b := run(), run()
	if a != b {
		t.Fatalf("runs diverged:\n%+v\n%+v", a, b)
	}
	if a.RightPaddle.Y != 252+5*6 {
		t.Fatalf("right paddle y = %d", a.RightPaddle.Y)
	}
	if a.LeftPaddle.Y != 252-7*6 {
		t.Fatalf("left paddle y = %d", a.LeftPaddle.Y)
	}
}

func TestValidateScriptRejectsOutOfRange(t *testing.T) {
	if err := ValidateScript([]ScriptedInput{{Tick: 10}}, 10); err == nil {
		t.Fatalf("tick equal to budget should be rejected")
	}
	if err := ValidateScript([]ScriptedInput{{Tick: -1}}, 10); err == nil {
		t.Fatalf("negative tick should be rejected")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	var rec frames
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGame(DefaultTuning(), &rec).Run(ctx, ImmediateScheduler{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(rec) != 1 {
		t.Fatalf("only the opening frame should be recorded, got %d", len(rec))
	}
}
