package proofinput

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/identity"
	"ZKPong/internal/pong"
	"ZKPong/internal/transcript"
)

type fixedDeriver struct {
	calls int
	key   identity.PublicKey
	err   error
}

func (f *fixedDeriver) DerivePublicKey([32]byte) (identity.PublicKey, error) {
	f.calls++
	return f.key, f.err
}

func demoLog(t *testing.T) transcript.Log {
	t.Helper()
	rec := transcript.NewRecorder(11)
	if _, err := pong.NewGame(pong.DefaultTuning(), rec).Run(context.Background(), pong.ImmediateScheduler{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	return rec.Freeze()
}

func TestBuildFixedShape(t *testing.T) {
	deriver := &fixedDeriver{key: identity.PublicKey{X: "0x01", Y: "0x02"}}
	input, err := NewBuilder(deriver).Build(context.Background(), demoLog(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if deriver.calls != 1 {
		t.Fatalf("deriver called %d times, want 1", deriver.calls)
	}
	if input.Index != 0 || len(input.GameLog) != 11 {
		t.Fatalf("index=%d entries=%d", input.Index, len(input.GameLog))
	}
	if input.User1 != input.User2 || input.User1 != deriver.key {
		t.Fatalf("users = %+v / %+v", input.User1, input.User2)
	}
	if input.GameMoves == nil || input.Signatures == nil || input.Signed() {
		t.Fatalf("move and signature lists must be empty, not nil")
	}

	data, err := json.Marshal(input)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, frag := range []string{`"index":0`, `"game_moves":[]`, `"signatures":[]`, `"user_1":{"x":"0x01","y":"0x02"}`} {
		if !strings.Contains(string(data), frag) {
			t.Fatalf("missing %s in %s", frag, data)
		}
	}

	var back ProofInput
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(&back, input) {
		t.Fatalf("round trip changed the input")
	}
}

func TestBuildPropagatesDeriverFailure(t *testing.T) {
	deriver := &fixedDeriver{err: errors.New("hsm offline")}
	_, err := NewBuilder(deriver).Build(context.Background(), demoLog(t))
	if xerrors.CodeOf(err) != xerrors.CodeKeyDerivation {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildRejectsEmptyLog(t *testing.T) {
	_, err := NewBuilder(nil).Build(context.Background(), transcript.NewLog(nil))
	if xerrors.CodeOf(err) != xerrors.CodeTranscriptInvalid {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildWithDefaultDeriverUsesSecp256k1(t *testing.T) {
	input, err := NewBuilder(nil).Build(context.Background(), demoLog(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want, _ := identity.Deriver{}.DerivePublicKey(identity.DefaultSecret)
	if input.User1 != want {
		t.Fatalf("user key = %+v, want %+v", input.User1, want)
	}
}

func TestSignedMovesExtension(t *testing.T) {
	input, err := NewBuilder(nil, WithSignedMoves(true)).Build(context.Background(), demoLog(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(input.GameMoves) != 11 || len(input.Signatures) != 11 {
		t.Fatalf("moves=%d signatures=%d", len(input.GameMoves), len(input.Signatures))
	}
	if err := input.VerifySignatures(); err != nil {
		t.Fatalf("verify: %v", err)
	}

	input.GameLog[5].BallX++
	if err := input.VerifySignatures(); xerrors.CodeOf(err) != xerrors.CodeVerificationFailure {
		t.Fatalf("tampered log err = %v", err)
	}
}
