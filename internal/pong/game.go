package pong

import (
	"context"
)

// Recorder 接收每一帧的状态快照。
type Recorder interface {
	Record(state GameState)
}

// Game 在单个 goroutine 中驱动一局比赛：收件箱中的指令只在两帧之间生效，
// 因此 Step 运行期间挡板速度不会被并发修改。
type Game struct {
	tuning   Tuning
	state    GameState
	inbox    chan Command
	recorder Recorder
	script   map[int][]Command
	onFrame  func(GameState)
	started  bool
}

// Option 定义 Game 的可选配置。
type Option func(*Game)

// WithInboxSize 设置输入收件箱的缓冲大小。
func WithInboxSize(n int) Option {
	return func(g *Game) {
		if n > 0 {
			g.inbox = make(chan Command, n)
		}
	}
}

// WithScript 预置按回合生效的输入脚本。
func WithScript(script []ScriptedInput) Option {
	return func(g *Game) {
		for _, in := range script {
			g.script[in.Tick] = append(g.script[in.Tick], in.Command())
		}
	}
}

// WithFrameHook 在每帧记录后回调，渲染器只读使用该状态。
func WithFrameHook(fn func(GameState)) Option {
	return func(g *Game) {
		g.onFrame = fn
	}
}

// NewGame 创建一局新的比赛。recorder 可以为 nil。
func NewGame(t Tuning, recorder Recorder, opts ...Option) *Game {
	g := &Game{
		tuning:   t,
		state:    NewGameState(t),
		inbox:    make(chan Command, 64),
		recorder: recorder,
		script:   make(map[int][]Command),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Send 以非阻塞方式投递指令，收件箱已满时返回 false。
func (g *Game) Send(cmd Command) bool {
	select {
	case g.inbox <- cmd:
		return true
	default:
		return false
	}
}

// Start 记录第 0 回合的开局快照，重复调用无效。
func (g *Game) Start() {
	if g.started {
		return
	}
	g.started = true
	g.emit()
}

// Done 报告回合预算是否已经耗尽。
func (g *Game) Done() bool {
	return g.state.Tick >= g.tuning.MaxTicks
}

// State 返回当前状态的副本。
func (g *Game) State() GameState {
	return g.state
}

// Tick 处理待执行的输入并推进一帧；到达预算时设置胜负标志。
// 比赛已经结束时返回 false。
func (g *Game) Tick() bool {
	g.Start()
	if g.Done() {
		return false
	}
	g.drain()
	for _, cmd := range g.script[g.state.Tick] {
		apply(&g.state, cmd, g.tuning.PaddleSpeed)
	}

	Step(&g.state, g.tuning)
	if g.Done() {
		Finalize(&g.state)
	}
	g.emit()
	return true
}

// Run 按调度器节奏推进直到预算耗尽，返回最终状态。
func (g *Game) Run(ctx context.Context, sched Scheduler) (GameState, error) {
	g.Start()
	for !g.Done() {
		if err := sched.Next(ctx); err != nil {
			return g.state, err
		}
		g.Tick()
	}
	return g.state, nil
}

func (g *Game) drain() {
	for {
		select {
		case cmd := <-g.inbox:
			apply(&g.state, cmd, g.tuning.PaddleSpeed)
		default:
			return
		}
	}
}

func (g *Game) emit() {
	if g.recorder != nil {
		g.recorder.Record(g.state)
	}
	if g.onFrame != nil {
		g.onFrame(g.state)
	}
}
