package proofinput

import (
	"context"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/identity"
	"ZKPong/internal/transcript"
)

// GameMove 为一个回合的挡板输入，对应线格式中的 game_moves 元素。
type GameMove = identity.Move

// Signature 对应线格式中的 signatures 元素。
type Signature = identity.Signature

// ProofInput 是交给证明器的固定结构输入。Index 只是会话占位编号，恒为 0。
type ProofInput struct {
	Index      int                `json:"index"`
	GameLog    []transcript.Entry `json:"game_log"`
	GameMoves  []GameMove         `json:"game_moves"`
	Signatures []Signature        `json:"signatures"`
	User1      identity.PublicKey `json:"user_1"`
	User2      identity.PublicKey `json:"user_2"`
}

// Signed 报告输入是否携带逐回合签名。
func (in *ProofInput) Signed() bool {
	return len(in.Signatures) > 0
}

// VerifySignatures 在携带签名时校验全部签名均来自 User1。
func (in *ProofInput) VerifySignatures() error {
	if !in.Signed() {
		return nil
	}
	return identity.VerifyMoves(in.GameLog, in.GameMoves, in.Signatures, in.User1)
}

// KeyDeriver 由私钥派生公钥。
type KeyDeriver interface {
	DerivePublicKey(secret [32]byte) (identity.PublicKey, error)
}

// Builder 在比赛结束后把冻结的转录组装成证明输入。
type Builder struct {
	deriver KeyDeriver
	secret  [32]byte
	signed  bool
}

// Option 定义 Builder 的可选配置。
type Option func(*Builder)

// WithSecret 替换默认的演示私钥。
func WithSecret(secret [32]byte) Option {
	return func(b *Builder) { b.secret = secret }
}

// WithSignedMoves 开启逐回合输入签名。
func WithSignedMoves(enabled bool) Option {
	return func(b *Builder) { b.signed = enabled }
}

// NewBuilder 创建 Builder；deriver 为空时使用 secp256k1 派生。
func NewBuilder(deriver KeyDeriver, opts ...Option) *Builder {
	if deriver == nil {
		deriver = identity.Deriver{}
	}
	b := &Builder{deriver: deriver, secret: identity.DefaultSecret}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build 组装证明输入。两名玩家使用同一私钥派生的公钥，move 与签名列表默认为空。
func (b *Builder) Build(ctx context.Context, log transcript.Log) (*ProofInput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if log.Len() == 0 {
		return nil, xerrors.New(xerrors.CodeTranscriptInvalid, "transcript is empty")
	}

	key, err := b.deriver.DerivePublicKey(b.secret)
	if err != nil {
		if _, ok := xerrors.From(err); ok {
			return nil, err
		}
		return nil, xerrors.Wrap(xerrors.CodeKeyDerivation, err, "")
	}

	input := &ProofInput{
		Index:      0,
		GameLog:    log.Entries(),
		GameMoves:  []GameMove{},
		Signatures: []Signature{},
		User1:      key,
		User2:      key,
	}
	if b.signed {
		if err := b.sign(input); err != nil {
			return nil, err
		}
	}
	return input, nil
}

func (b *Builder) sign(input *ProofInput) error {
	signer, err := identity.NewSigner(b.secret)
	if err != nil {
		return err
	}
	input.GameMoves = make([]GameMove, len(input.GameLog))
	input.Signatures = make([]Signature, len(input.GameLog))
	for i, e := range input.GameLog {
		move := identity.MoveOf(e)
		sig, err := signer.SignMove(e, move)
		if err != nil {
			return err
		}
		input.GameMoves[i], input.Signatures[i] = move, sig
	}
	return nil
}
