package transcript

import (
	"fmt"

	xerrors "ZKPong/internal/errors"
)

// Validate 检查外部提交的转录：非空、首条为第 0 回合、回合号严格递增，
// 胜利标志只能出现在最后一条，且必须与最终比分一致。
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return invalid("transcript is empty", -1)
	}
	if entries[0].GameTick != 0 {
		return invalid(fmt.Sprintf("first entry has tick %d, want 0", entries[0].GameTick), 0)
	}
	last := len(entries) - 1
	for i, e := range entries {
		if i > 0 && e.GameTick <= entries[i-1].GameTick {
			return invalid(fmt.Sprintf("tick %d does not increase after %d", e.GameTick, entries[i-1].GameTick), i)
		}
		if i < last && (e.LeftPaddleWon || e.RightPaddleWon) {
			return invalid("outcome flag set before the final entry", i)
		}
	}
	final := entries[last]
	if final.LeftPaddleWon && final.RightPaddleWon {
		return invalid("both players marked as winner", last)
	}
	if final.LeftPaddleWon != (final.LeftPaddleScore > final.RightPaddleScore) ||
		final.RightPaddleWon != (final.RightPaddleScore > final.LeftPaddleScore) {
		return invalid(fmt.Sprintf("outcome flags disagree with final score %d:%d",
			final.LeftPaddleScore, final.RightPaddleScore), last)
	}
	return nil
}

func invalid(msg string, index int) error {
	opts := []xerrors.Option{}
	if index >= 0 {
		opts = append(opts, xerrors.WithMetadata("entry", fmt.Sprint(index)))
	}
	return xerrors.New(xerrors.CodeTranscriptInvalid, msg, opts...)
}
