package prover

import (
	"context"
	"errors"
	"testing"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/proofinput"
	"ZKPong/internal/transcript"
)

type stubProver struct {
	calls int
	proof *Proof
	err   error
}

func (s *stubProver) GenerateProof(context.Context, *proofinput.ProofInput) (*Proof, error) {
	s.calls++
	return s.proof, s.err
}

type stubVerifier struct {
	calls int
	ok    bool
	err   error
}

func (s *stubVerifier) VerifyProof(context.Context, *Proof) (bool, error) {
	s.calls++
	return s.ok, s.err
}

func sampleInput(n int) *proofinput.ProofInput {
	return &proofinput.ProofInput{GameLog: make([]transcript.Entry, n)}
}

func TestProveAndVerifyHappyPath(t *testing.T) {
	p := &stubProver{proof: &Proof{Backend: "stub"}}
	v := &stubVerifier{ok: true}
	proof, err := ProveAndVerify(context.Background(), p, v, sampleInput(3))
	if err != nil {
		t.Fatalf("prove and verify: %v", err)
	}
	if proof.Backend != "stub" || p.calls != 1 || v.calls != 1 {
		t.Fatalf("proof=%+v prover calls=%d verifier calls=%d", proof, p.calls, v.calls)
	}
}

func TestProverFailureIsTerminal(t *testing.T) {
	p := &stubProver{err: errors.New("constraint not satisfied")}
	v := &stubVerifier{ok: true}
	_, err := ProveAndVerify(context.Background(), p, v, sampleInput(3))
	if xerrors.CodeOf(err) != xerrors.CodeProverFailure {
		t.Fatalf("err = %v", err)
	}
	if xerrors.RetryableError(err) {
		t.Fatalf("prover failure must not be retryable")
	}
	if v.calls != 0 {
		t.Fatalf("verifier must not run after prover failure")
	}
}

func TestVerifierRejectionAndError(t *testing.T) {
	p := &stubProver{proof: &Proof{Backend: "stub"}}

	_, err := ProveAndVerify(context.Background(), p, &stubVerifier{ok: false}, sampleInput(1))
	if xerrors.CodeOf(err) != xerrors.CodeVerificationFailure {
		t.Fatalf("rejection err = %v", err)
	}

	_, err = ProveAndVerify(context.Background(), p, &stubVerifier{err: errors.New("bad encoding")}, sampleInput(1))
	if xerrors.CodeOf(err) != xerrors.CodeVerificationFailure {
		t.Fatalf("verifier error = %v", err)
	}
}

func TestLimitedRejectsOversizedInput(t *testing.T) {
	inner := &stubProver{proof: &Proof{}}
	limited := Limited{Prover: inner, MaxEntries: 4}

	if _, err := limited.GenerateProof(context.Background(), sampleInput(5)); xerrors.CodeOf(err) != xerrors.CodeProverFailure {
		t.Fatalf("err = %v", err)
	}
	if inner.calls != 0 {
		t.Fatalf("inner prover should not be called")
	}
	if _, err := limited.GenerateProof(context.Background(), sampleInput(4)); err != nil {
		t.Fatalf("within limit: %v", err)
	}
}

func TestMissingBackend(t *testing.T) {
	_, err := ProveAndVerify(context.Background(), nil, nil, sampleInput(1))
	if xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("err = %v", err)
	}
}
