package groth16

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// EntryVars 是转录条目在电路中的私有见证，字段顺序即承诺的哈希顺序。
type EntryVars struct {
	Tick          frontend.Variable
	BallX         frontend.Variable
	BallY         frontend.Variable
	BallDX        frontend.Variable
	BallDY        frontend.Variable
	LeftX         frontend.Variable
	LeftY         frontend.Variable
	LeftDY        frontend.Variable
	LeftScore     frontend.Variable
	RightX        frontend.Variable
	RightY        frontend.Variable
	RightDY       frontend.Variable
	RightScore    frontend.Variable
	LeftWon       frontend.Variable
	RightWon      frontend.Variable
	IsFirstPlayer frontend.Variable
}

func (e *EntryVars) fields() []frontend.Variable {
	return []frontend.Variable{
		e.Tick, e.BallX, e.BallY, e.BallDX, e.BallDY,
		e.LeftX, e.LeftY, e.LeftDY, e.LeftScore,
		e.RightX, e.RightY, e.RightDY, e.RightScore,
		e.LeftWon, e.RightWon, e.IsFirstPlayer,
	}
}

// EndgameCircuit 证明一份长度固定的转录满足日志不变量，且胜负标志与最终比分一致。
// Keys 依次为 User1.X、User1.Y、User2.X、User2.Y 的高低 128 位。
type EndgameCircuit struct {
	Commitment frontend.Variable    `gnark:",public"`
	Keys       [8]frontend.Variable `gnark:",public"`
	LeftWon    frontend.Variable    `gnark:",public"`
	RightWon   frontend.Variable    `gnark:",public"`
	FinalTick  frontend.Variable    `gnark:",public"`

	Entries []EntryVars

	Wall       int `gnark:"-"`
	MaxPaddleY int `gnark:"-"`
}

// Define 声明电路约束。
func (c *EndgameCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	span := c.MaxPaddleY - c.Wall
	last := len(c.Entries) - 1
	for i := range c.Entries {
		e := &c.Entries[i]

		api.AssertIsEqual(e.Tick, i)
		api.AssertIsBoolean(e.IsFirstPlayer)
		if i == 0 {
			api.AssertIsEqual(e.IsFirstPlayer, 1)
		} else {
			api.AssertIsEqual(e.IsFirstPlayer, api.Sub(1, c.Entries[i-1].IsFirstPlayer))
		}

		api.AssertIsLessOrEqual(api.Sub(e.LeftY, c.Wall), span)
		api.AssertIsLessOrEqual(api.Sub(e.RightY, c.Wall), span)

		api.AssertIsBoolean(e.LeftWon)
		api.AssertIsBoolean(e.RightWon)
		if i < last {
			api.AssertIsEqual(e.LeftWon, 0)
			api.AssertIsEqual(e.RightWon, 0)
		}

		h.Write(e.fields()...)
	}

	final := &c.Entries[last]
	cmp := api.Cmp(final.LeftScore, final.RightScore)
	api.AssertIsEqual(final.LeftWon, api.IsZero(api.Sub(cmp, 1)))
	api.AssertIsEqual(final.RightWon, api.IsZero(api.Add(cmp, 1)))
	api.AssertIsEqual(final.LeftWon, c.LeftWon)
	api.AssertIsEqual(final.RightWon, c.RightWon)
	api.AssertIsEqual(final.Tick, c.FinalTick)

	h.Write(c.Keys[:]...)
	api.AssertIsEqual(h.Sum(), c.Commitment)
	return nil
}
