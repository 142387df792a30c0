package prover

import (
	"context"
	"fmt"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/proofinput"
)

// Proof 为证明后端返回的证明对象。
type Proof struct {
	Backend      string   `json:"backend"`
	Proof        []byte   `json:"proof"`
	PublicInputs []string `json:"public_inputs"`
}

// Prover 由证明输入生成证明。
type Prover interface {
	GenerateProof(ctx context.Context, input *proofinput.ProofInput) (*Proof, error)
}

// Verifier 校验证明，返回 false 表示证明不成立。
type Verifier interface {
	VerifyProof(ctx context.Context, proof *Proof) (bool, error)
}

// Backend 同时具备生成与校验能力。
type Backend interface {
	Prover
	Verifier
	Name() string
}

// ProveAndVerify 先调用一次证明器，再把证明交给校验器一次，不做重试。
func ProveAndVerify(ctx context.Context, p Prover, v Verifier, input *proofinput.ProofInput) (*Proof, error) {
	if p == nil || v == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "prover backend not configured")
	}
	proof, err := p.GenerateProof(ctx, input)
	if err != nil {
		return nil, asCode(xerrors.CodeProverFailure, err)
	}
	if proof == nil {
		return nil, xerrors.New(xerrors.CodeProverFailure, "prover returned no proof")
	}

	ok, err := v.VerifyProof(ctx, proof)
	if err != nil {
		return proof, asCode(xerrors.CodeVerificationFailure, err)
	}
	if !ok {
		return proof, xerrors.New(xerrors.CodeVerificationFailure, "proof rejected by verifier",
			xerrors.WithMetadata("backend", proof.Backend))
	}
	return proof, nil
}

func asCode(code xerrors.Code, err error) error {
	if xerrors.HasCode(err, code) {
		return err
	}
	return xerrors.Wrap(code, err, "")
}

// Limited 在调用下层证明器前检查转录长度。
type Limited struct {
	Prover
	MaxEntries int
}

// GenerateProof 拒绝超过 MaxEntries 的输入。
func (l Limited) GenerateProof(ctx context.Context, input *proofinput.ProofInput) (*Proof, error) {
	if input == nil {
		return nil, xerrors.New(xerrors.CodeProverFailure, "nil proof input")
	}
	if l.MaxEntries > 0 && len(input.GameLog) > l.MaxEntries {
		return nil, xerrors.New(xerrors.CodeProverFailure,
			fmt.Sprintf("game log has %d entries, limit is %d", len(input.GameLog), l.MaxEntries),
			xerrors.WithMetadata("reason", "oversized_input"))
	}
	return l.Prover.GenerateProof(ctx, input)
}
