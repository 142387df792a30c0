package groth16

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"ZKPong/internal/identity"
	"ZKPong/internal/proofinput"
	"ZKPong/internal/transcript"
)

func entryFields(e transcript.Entry) []int64 {
	return []int64{
		int64(e.GameTick), int64(e.BallX), int64(e.BallY), int64(e.BallDX), int64(e.BallDY),
		int64(e.LeftPaddleX), int64(e.LeftPaddleY), int64(e.LeftPaddleDY), int64(e.LeftPaddleScore),
		int64(e.RightPaddleX), int64(e.RightPaddleY), int64(e.RightPaddleDY), int64(e.RightPaddleScore),
		flag(e.LeftPaddleWon), flag(e.RightPaddleWon), flag(e.IsFirstPlayer),
	}
}

func flag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// keyLimbs 把两把公钥拆成 8 个 128 位整数。
func keyLimbs(u1, u2 identity.PublicKey) ([8]*big.Int, error) {
	var out [8]*big.Int
	for i, k := range []identity.PublicKey{u1, u2} {
		raw, err := k.Bytes()
		if err != nil {
			return out, fmt.Errorf("user_%d: %w", i+1, err)
		}
		for j := 0; j < 4; j++ {
			out[i*4+j] = new(big.Int).SetBytes(raw[j*16 : (j+1)*16])
		}
	}
	return out, nil
}

// Commit 计算转录与双方公钥的 MiMC 承诺，与电路内的哈希顺序一致。
func Commit(input *proofinput.ProofInput) (fr.Element, error) {
	var out fr.Element
	limbs, err := keyLimbs(input.User1, input.User2)
	if err != nil {
		return out, err
	}

	h := mimc.NewMiMC()
	var el fr.Element
	for _, e := range input.GameLog {
		for _, v := range entryFields(e) {
			el.SetInt64(v)
			b := el.Bytes()
			h.Write(b[:])
		}
	}
	for _, l := range limbs {
		el.SetBigInt(l)
		b := el.Bytes()
		h.Write(b[:])
	}
	out.SetBytes(h.Sum(nil))
	return out, nil
}
