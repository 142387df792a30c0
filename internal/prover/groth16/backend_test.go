package groth16

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/pong"
	"ZKPong/internal/proofinput"
	"ZKPong/internal/prover"
	"ZKPong/internal/transcript"
)

func buildInput(t *testing.T, tn pong.Tuning, script ...pong.ScriptedInput) *proofinput.ProofInput {
	t.Helper()
	rec := transcript.NewRecorder(tn.MaxTicks + 1)
	if _, err := pong.NewGame(tn, rec, pong.WithScript(script)).Run(context.Background(), pong.ImmediateScheduler{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	input, err := proofinput.NewBuilder(nil).Build(context.Background(), rec.Freeze())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return input
}

func shapeFor(tn pong.Tuning, n int) *EndgameCircuit {
	return &EndgameCircuit{Entries: make([]EntryVars, n), Wall: tn.Wall(), MaxPaddleY: tn.MaxPaddleY()}
}

func TestCommitIsDeterministicAndBinding(t *testing.T) {
	tn := pong.DefaultTuning().WithMaxTicks(4)
	input := buildInput(t, tn)

	a, err := Commit(input)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	b, _ := Commit(input)
	if !a.Equal(&b) {
		t.Fatalf("commitment is not deterministic")
	}

	input.GameLog[2].BallDY = -input.GameLog[2].BallDY
	c, _ := Commit(input)
	if a.Equal(&c) {
		t.Fatalf("commitment ignores entry fields")
	}
}

func TestCircuitAcceptsRecordedGame(t *testing.T) {
	tn := pong.DefaultTuning().WithMaxTicks(4)
	input := buildInput(t, tn, pong.ScriptedInput{Tick: 1, Side: pong.Right, Direction: pong.Up})

	assignment, public, err := assign(input, tn)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(public) != publicInputCount {
		t.Fatalf("public inputs = %d", len(public))
	}
	if err := test.IsSolved(shapeFor(tn, len(input.GameLog)), assignment, ecc.BN254.ScalarField()); err != nil {
		t.Fatalf("recorded game should satisfy the circuit: %v", err)
	}
}

func TestCircuitRejectsContradictoryOutcome(t *testing.T) {
	tn := pong.DefaultTuning().WithMaxTicks(4)
	input := buildInput(t, tn)
	input.GameLog[len(input.GameLog)-1].LeftPaddleWon = true

	assignment, _, err := assign(input, tn)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := test.IsSolved(shapeFor(tn, len(input.GameLog)), assignment, ecc.BN254.ScalarField()); err == nil {
		t.Fatalf("a win flag on a 0-0 game must not satisfy the circuit")
	}
}

func TestCircuitRejectsBrokenParity(t *testing.T) {
	tn := pong.DefaultTuning().WithMaxTicks(4)
	input := buildInput(t, tn)
	input.GameLog[2].IsFirstPlayer = !input.GameLog[2].IsFirstPlayer

	assignment, _, _ := assign(input, tn)
	if err := test.IsSolved(shapeFor(tn, len(input.GameLog)), assignment, ecc.BN254.ScalarField()); err == nil {
		t.Fatalf("broken turn parity must not satisfy the circuit")
	}
}

func TestProveVerifyRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	tn := pong.DefaultTuning().WithMaxTicks(3)
	backend := New(tn)
	input := buildInput(t, tn)

	proof, err := prover.ProveAndVerify(context.Background(), backend, backend, input)
	if err != nil {
		t.Fatalf("prove and verify: %v", err)
	}
	if proof.Backend != Name || len(proof.Proof) == 0 {
		t.Fatalf("unexpected proof: backend=%s bytes=%d", proof.Backend, len(proof.Proof))
	}
	if proof.PublicInputs[11] != "3" || proof.PublicInputs[9] != "0" || proof.PublicInputs[10] != "0" {
		t.Fatalf("public outcome inputs = %v", proof.PublicInputs[9:])
	}

	tampered := *proof
	tampered.PublicInputs = append([]string(nil), proof.PublicInputs...)
	tampered.PublicInputs[9] = "1"
	ok, err := backend.VerifyProof(context.Background(), &tampered)
	if err != nil || ok {
		t.Fatalf("tampered proof: ok=%v err=%v", ok, err)
	}

	input.GameLog[len(input.GameLog)-1].RightPaddleWon = true
	if _, err := backend.GenerateProof(context.Background(), input); xerrors.CodeOf(err) != xerrors.CodeProverFailure {
		t.Fatalf("unsatisfiable witness err = %v", err)
	}

	var sol bytes.Buffer
	if err := backend.ExportSolidity(4, &sol); err != nil {
		t.Fatalf("export solidity: %v", err)
	}
	if !strings.Contains(sol.String(), "contract Verifier") {
		t.Fatalf("solidity output does not declare the verifier contract")
	}
}

func TestKeysPersistAcrossBackends(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	tn := pong.DefaultTuning().WithMaxTicks(2)
	dir := t.TempDir()
	input := buildInput(t, tn)

	proof, err := New(tn, WithKeysDir(dir)).GenerateProof(context.Background(), input)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, name := range []string{circuitFile, provingFile, verifyingFile} {
		path := filepath.Join(dir, "endgame-w15-p490-n3", name)
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Fatalf("key file %s not stored: %v", name, err)
		}
	}

	restarted := New(tn, WithKeysDir(dir))
	ok, err := restarted.VerifyProof(context.Background(), proof)
	if err != nil || !ok {
		t.Fatalf("verify with stored keys: ok=%v err=%v", ok, err)
	}

	var first, second bytes.Buffer
	if err := restarted.ExportSolidity(3, &first); err != nil {
		t.Fatalf("export solidity: %v", err)
	}
	if err := New(tn, WithKeysDir(dir)).ExportSolidity(3, &second); err != nil {
		t.Fatalf("export solidity: %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("exported verifier differs between processes sharing a keys dir")
	}

	if ok, err := New(tn).VerifyProof(context.Background(), proof); err == nil || ok {
		t.Fatalf("backend without keys dir should not verify: ok=%v err=%v", ok, err)
	}
}

func TestVerifyRejectsMalformedProof(t *testing.T) {
	backend := New(pong.DefaultTuning())
	if _, err := backend.VerifyProof(context.Background(), &prover.Proof{Backend: "other"}); err == nil {
		t.Fatalf("foreign backend should error")
	}
	if _, err := backend.VerifyProof(context.Background(), &prover.Proof{Backend: Name, PublicInputs: []string{"1"}}); err == nil {
		t.Fatalf("short public input list should error")
	}
	public := make([]string, publicInputCount)
	for i := range public {
		public[i] = "0"
	}
	if _, err := backend.VerifyProof(context.Background(), &prover.Proof{Backend: Name, PublicInputs: public}); err == nil {
		t.Fatalf("missing verifying key should error")
	}
	empty := New(pong.DefaultTuning(), WithKeysDir(t.TempDir()))
	if _, err := empty.VerifyProof(context.Background(), &prover.Proof{Backend: Name, PublicInputs: public}); err == nil {
		t.Fatalf("empty keys dir should not trigger setup during verification")
	}
}
