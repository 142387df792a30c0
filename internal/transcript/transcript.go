package transcript

import (
	"fmt"
	"sync"

	"ZKPong/internal/pong"
)

// Entry 是某一回合完整游戏状态的值快照，字段名与证明输入的线格式一致。
type Entry struct {
	GameTick         int  `json:"game_tick"`
	BallX            int  `json:"ball_x"`
	BallY            int  `json:"ball_y"`
	BallDX           int  `json:"ball_dx"`
	BallDY           int  `json:"ball_dy"`
	LeftPaddleX      int  `json:"leftPaddle_x"`
	LeftPaddleY      int  `json:"leftPaddle_y"`
	LeftPaddleDY     int  `json:"leftPaddle_dy"`
	LeftPaddleScore  int  `json:"leftPaddle_score"`
	RightPaddleX     int  `json:"rightPaddle_x"`
	RightPaddleY     int  `json:"rightPaddle_y"`
	RightPaddleDY    int  `json:"rightPaddle_dy"`
	RightPaddleScore int  `json:"rightPaddle_score"`
	LeftPaddleWon    bool `json:"leftPaddle_won"`
	RightPaddleWon   bool `json:"rightPaddle_won"`
	IsFirstPlayer    bool `json:"is_first_player"`
}

// Snapshot 复制状态中的每个字段。
func Snapshot(s pong.GameState) Entry {
	return Entry{
		GameTick:         s.Tick,
		BallX:            s.Ball.X,
		BallY:            s.Ball.Y,
		BallDX:           s.BallDX,
		BallDY:           s.Ball.DY,
		LeftPaddleX:      s.LeftPaddle.X,
		LeftPaddleY:      s.LeftPaddle.Y,
		LeftPaddleDY:     s.LeftPaddle.DY,
		LeftPaddleScore:  s.LeftScore,
		RightPaddleX:     s.RightPaddle.X,
		RightPaddleY:     s.RightPaddle.Y,
		RightPaddleDY:    s.RightPaddle.DY,
		RightPaddleScore: s.RightScore,
		LeftPaddleWon:    s.LeftWon,
		RightPaddleWon:   s.RightWon,
		IsFirstPlayer:    s.IsFirstPlayer,
	}
}

// Recorder 持有一局比赛的转录日志，Freeze 之后不可再写入。
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	frozen  bool
}

// NewRecorder 创建一个容量为 capacity 的记录器。
func NewRecorder(capacity int) *Recorder {
	if capacity < 0 {
		capacity = 0
	}
	return &Recorder{entries: make([]Entry, 0, capacity)}
}

// Record 追加一条快照。冻结后调用属于编程错误，会 panic。
func (r *Recorder) Record(s pong.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(fmt.Sprintf("transcript: record tick %d after freeze", s.Tick))
	}
	r.entries = append(r.entries, Snapshot(s))
}

// Len 返回已记录的条目数。
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Freeze 冻结记录器并返回只读日志，可重复调用。
func (r *Recorder) Freeze() Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	return Log{entries: r.entries}
}

// Log 是冻结后的只读转录日志。
type Log struct {
	entries []Entry
}

// NewLog 用外部提供的条目构造日志，条目会被复制。
func NewLog(entries []Entry) Log {
	return Log{entries: append([]Entry(nil), entries...)}
}

// Len 返回条目数。
func (l Log) Len() int { return len(l.entries) }

// At 返回第 i 条，越界时 panic。
func (l Log) At(i int) Entry { return l.entries[i] }

// Entries 返回条目的副本，永远不为 nil。
func (l Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Final 返回最后一条记录，日志为空时 ok 为 false。
func (l Log) Final() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}
