package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli/v2"

	"ZKPong/internal/bootstrap"
	"ZKPong/internal/pong"
	"ZKPong/internal/transcript"
	"ZKPong/pkg/logger"
)

// keyHold 是最后一次按键之后挡板继续移动的时长，终端不会上报按键抬起。
const keyHold = 150 * time.Millisecond

var errAborted = errors.New("对局被中止")

func (e *env) playCommand() *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "在终端中对局 (W/S 控制左挡板，方向键控制右挡板，Esc 退出)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "ticks", Usage: "回合预算，缺省使用配置"},
			&cli.IntFlag{Name: "fps", Usage: "帧率，缺省使用配置"},
			outFlag(),
		},
		Action: func(c *cli.Context) error {
			tuning := bootstrap.Tuning(e.cfg)
			if n := c.Int("ticks"); n > 0 {
				tuning = tuning.WithMaxTicks(n)
			}
			fps := e.cfg.Game.FPS
			if n := c.Int("fps"); n > 0 {
				fps = n
			}

			screen, err := tcell.NewScreen()
			if err != nil {
				return err
			}
			if err := screen.Init(); err != nil {
				return err
			}

			rec := transcript.NewRecorder(tuning.MaxTicks + 1)
			final, err := play(c.Context, screen, tuning, fps, rec)
			screen.Fini()
			if err != nil {
				return err
			}

			logger.L().Info("对局结束", "ticks", final.Tick, "outcome", string(pong.OutcomeOf(final, tuning.MaxTicks)),
				"score", fmt.Sprintf("%d:%d", final.LeftScore, final.RightScore))
			return writeJSON(c, rec.Freeze().Entries())
		},
	}
}

type playResult struct {
	state pong.GameState
	err   error
}

// play 在 screen 上运行一局，游戏循环与事件循环分属两个 goroutine，仅通过收件箱与帧通道交互。
func play(ctx context.Context, screen tcell.Screen, tuning pong.Tuning, fps int, rec pong.Recorder) (pong.GameState, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan pong.GameState, 1)
	game := pong.NewGame(tuning, rec, pong.WithFrameHook(func(s pong.GameState) {
		select {
		case frames <- s:
		default:
		}
	}))

	sched := pong.NewTickerScheduler(fps)
	defer sched.Stop()
	done := make(chan playResult, 1)
	go func() {
		state, err := game.Run(ctx, sched)
		done <- playResult{state: state, err: err}
	}()

	events := make(chan tcell.Event, 32)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	pressed := make(map[pong.Side]time.Time)
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
					cancel()
					continue
				}
				if cmd, ok := keyCommand(ev.Key(), ev.Rune()); ok {
					game.Send(cmd)
					pressed[cmd.Side] = time.Now()
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case s := <-frames:
			for side, at := range pressed {
				if time.Since(at) > keyHold {
					game.Send(pong.Command{Side: side, Direction: pong.Stop})
					delete(pressed, side)
				}
			}
			draw(screen, s, tuning)
		case res := <-done:
			if res.err != nil {
				if errors.Is(res.err, context.Canceled) {
					return res.state, errAborted
				}
				return res.state, res.err
			}
			draw(screen, res.state, tuning)
			return res.state, nil
		}
	}
}

// keyCommand 把按键映射为挡板指令：W/S 控制左挡板，上下方向键控制右挡板。
func keyCommand(key tcell.Key, r rune) (pong.Command, bool) {
	switch key {
	case tcell.KeyUp:
		return pong.Command{Side: pong.Right, Direction: pong.Up}, true
	case tcell.KeyDown:
		return pong.Command{Side: pong.Right, Direction: pong.Down}, true
	case tcell.KeyRune:
		switch r {
		case 'w', 'W':
			return pong.Command{Side: pong.Left, Direction: pong.Up}, true
		case 's', 'S':
			return pong.Command{Side: pong.Left, Direction: pong.Down}, true
		}
	}
	return pong.Command{}, false
}

// cell 把画布坐标按比例缩放到终端单元格。
func cell(v, span, cells int) int {
	if span <= 0 || cells <= 0 {
		return 0
	}
	c := v * cells / span
	if c >= cells {
		c = cells - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func draw(screen tcell.Screen, s pong.GameState, t pong.Tuning) {
	w, h := screen.Size()
	if w <= 0 || h <= 1 {
		return
	}
	screen.Clear()

	wall := tcell.StyleDefault.Foreground(tcell.ColorGray)
	// 第 0 行显示比分，比赛区域从第 1 行开始。
	rows := h - 1
	for x := 0; x < w; x++ {
		screen.SetContent(x, 1, '▀', nil, wall)
		screen.SetContent(x, h-1, '▄', nil, wall)
	}

	fillRect := func(e pong.Entity, r rune, style tcell.Style) {
		x0, x1 := cell(e.X, t.Width, w), cell(e.X+e.Width-1, t.Width, w)
		y0, y1 := cell(e.Y, t.Height, rows), cell(e.Y+e.Height-1, t.Height, rows)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				screen.SetContent(x, y+1, r, nil, style)
			}
		}
	}
	fillRect(s.LeftPaddle, '█', tcell.StyleDefault.Foreground(tcell.ColorGreen))
	fillRect(s.RightPaddle, '█', tcell.StyleDefault.Foreground(tcell.ColorBlue))
	fillRect(s.Ball, '●', tcell.StyleDefault.Foreground(tcell.ColorYellow))

	status := fmt.Sprintf(" %d : %d   tick %d/%d", s.LeftScore, s.RightScore, s.Tick, t.MaxTicks)
	if s.Tick >= t.MaxTicks {
		status += "   " + string(pong.OutcomeOf(s, t.MaxTicks))
	}
	for i, r := range []rune(status) {
		if i >= w {
			break
		}
		screen.SetContent(i, 0, r, nil, tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true))
	}
	screen.Show()
}
