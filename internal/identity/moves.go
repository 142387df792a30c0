package identity

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/transcript"
)

// Move 为一个回合里两块挡板的输入速度。
type Move struct {
	LeftPaddleDY  int `json:"leftPaddle_dy"`
	RightPaddleDY int `json:"rightPaddle_dy"`
}

// MoveOf 从转录条目中取出挡板速度。
func MoveOf(e transcript.Entry) Move {
	return Move{LeftPaddleDY: e.LeftPaddleDY, RightPaddleDY: e.RightPaddleDY}
}

// Signature 为 secp256k1 可恢复签名。
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

func (sig Signature) bytes() ([]byte, error) {
	r, err := decodeCoordinate(sig.R)
	if err != nil {
		return nil, fmt.Errorf("r: %w", err)
	}
	s, err := decodeCoordinate(sig.S)
	if err != nil {
		return nil, fmt.Errorf("s: %w", err)
	}
	if sig.V != 0 && sig.V != 1 {
		return nil, fmt.Errorf("v must be 0 or 1, got %d", sig.V)
	}
	out := append(r, s...)
	return append(out, byte(sig.V)), nil
}

// MoveDigest 计算条目状态与输入的 Keccak-256 摘要。每个字段编码为 32 字节
// 大端补码，顺序固定。
func MoveDigest(e transcript.Entry, m Move) []byte {
	fields := []int{
		e.BallX, e.BallY, e.BallDX, e.BallDY,
		e.GameTick, boolInt(e.IsFirstPlayer),
		e.LeftPaddleX, e.LeftPaddleY, e.LeftPaddleScore, boolInt(e.LeftPaddleWon),
		e.RightPaddleX, e.RightPaddleY, e.RightPaddleScore, boolInt(e.RightPaddleWon),
		m.LeftPaddleDY, m.RightPaddleDY,
	}
	var buf bytes.Buffer
	for _, v := range fields {
		buf.Write(math.U256Bytes(big.NewInt(int64(v))))
	}
	return crypto.Keccak256(buf.Bytes())
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Signer 使用固定私钥为每个回合的输入签名。
type Signer struct {
	key *ecdsa.PrivateKey
	pub PublicKey
}

// NewSigner 由私钥创建签名器。
func NewSigner(secret [32]byte) (*Signer, error) {
	key, err := toECDSA(secret)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, pub: publicKeyOf(&key.PublicKey)}, nil
}

// PublicKey 返回签名器对应的公钥。
func (s *Signer) PublicKey() PublicKey { return s.pub }

// SignMove 对条目与输入的摘要签名。
func (s *Signer) SignMove(e transcript.Entry, m Move) (Signature, error) {
	raw, err := crypto.Sign(MoveDigest(e, m), s.key)
	if err != nil {
		return Signature{}, xerrors.Wrap(xerrors.CodeKeyDerivation, err, "sign move")
	}
	return Signature{
		R: hexutil.Encode(raw[:32]),
		S: hexutil.Encode(raw[32:64]),
		V: int(raw[64]),
	}, nil
}

// VerifyMoves 校验每条签名都由 key 对相应条目与输入签出。三个列表长度必须一致。
func VerifyMoves(entries []transcript.Entry, moves []Move, sigs []Signature, key PublicKey) error {
	if len(moves) != len(entries) || len(sigs) != len(entries) {
		return xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("got %d entries, %d moves, %d signatures", len(entries), len(moves), len(sigs)))
	}
	want, err := key.Bytes()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "malformed public key")
	}
	for i := range entries {
		sig, err := sigs[i].bytes()
		if err != nil {
			return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "malformed signature",
				xerrors.WithMetadata("entry", fmt.Sprint(i)))
		}
		got, err := crypto.Ecrecover(MoveDigest(entries[i], moves[i]), sig)
		if err != nil || !bytes.Equal(got[1:], want) {
			return xerrors.New(xerrors.CodeVerificationFailure, "move signature does not match user key",
				xerrors.WithMetadata("entry", fmt.Sprint(i)))
		}
	}
	return nil
}
