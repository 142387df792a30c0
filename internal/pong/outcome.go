package pong

// Outcome 描述一局结束时的胜负。
type Outcome string

const (
	OutcomeUndecided Outcome = "undecided"
	OutcomeLeft      Outcome = "left"
	OutcomeRight     Outcome = "right"
	// OutcomeTie 表示比分相同，两个胜利标志都为 false，不做加赛。
	OutcomeTie Outcome = "tie"
)

// Finalize 根据比分设置胜利标志，严格大于才算获胜。
func Finalize(s *GameState) {
	s.LeftWon = s.LeftScore > s.RightScore
	s.RightWon = s.RightScore > s.LeftScore
}

// OutcomeOf 返回一个已结束状态的结果；tick 小于 maxTicks 时返回 OutcomeUndecided。
func OutcomeOf(s GameState, maxTicks int) Outcome {
	if s.Tick < maxTicks {
		return OutcomeUndecided
	}
	switch {
	case s.LeftWon:
		return OutcomeLeft
	case s.RightWon:
		return OutcomeRight
	}
	return OutcomeTie
}
