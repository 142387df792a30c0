package identity

import (
	"strings"
	"testing"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/transcript"
)

func TestDeriveIsStableAndWellFormed(t *testing.T) {
	a, err := Deriver{}.DerivePublicKey(DefaultSecret)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, _ := Deriver{}.DerivePublicKey(DefaultSecret)
	if a != b {
		t.Fatalf("derivation is not deterministic")
	}
	for _, coord := range []string{a.X, a.Y} {
		if !strings.HasPrefix(coord, "0x") || len(coord) != 66 {
			t.Fatalf("coordinate %q is not 32-byte hex", coord)
		}
	}
	if raw, err := a.Bytes(); err != nil || len(raw) != 64 {
		t.Fatalf("bytes = %d, %v", len(raw), err)
	}
}

func TestDeriveRejectsZeroSecret(t *testing.T) {
	_, err := Deriver{}.DerivePublicKey([32]byte{})
	if xerrors.CodeOf(err) != xerrors.CodeKeyDerivation {
		t.Fatalf("err = %v", err)
	}
}

func TestParseSecret(t *testing.T) {
	got, err := ParseSecret("0b9b3adee6b3d81b28a0886b2a8415c7da31291a5e96bb7a56639e177d301beb")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != DefaultSecret {
		t.Fatalf("parsed secret differs from the default")
	}
	if _, err := ParseSecret("0x1234"); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("short secret err = %v", err)
	}
	if _, err := ParseSecret("zz"); err == nil {
		t.Fatalf("non-hex secret should fail")
	}
}

func TestSignedMovesVerify(t *testing.T) {
	signer, err := NewSigner(DefaultSecret)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	entries := []transcript.Entry{
		{GameTick: 0, BallX: 375, BallY: 292, BallDX: 5, BallDY: -5, IsFirstPlayer: true},
		{GameTick: 1, BallX: 380, BallY: 287, BallDX: 5, BallDY: -5, LeftPaddleDY: -6},
	}
	moves := make([]Move, len(entries))
	sigs := make([]Signature, len(entries))
	for i, e := range entries {
		moves[i] = MoveOf(e)
		if sigs[i], err = signer.SignMove(e, moves[i]); err != nil {
			t.Fatalf("sign: %v", err)
		}
	}

	if err := VerifyMoves(entries, moves, sigs, signer.PublicKey()); err != nil {
		t.Fatalf("verify: %v", err)
	}

	moves[1].LeftPaddleDY = 6
	err = VerifyMoves(entries, moves, sigs, signer.PublicKey())
	if xerrors.CodeOf(err) != xerrors.CodeVerificationFailure {
		t.Fatalf("tampered move err = %v", err)
	}

	if err := VerifyMoves(entries, moves[:1], sigs, signer.PublicKey()); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("length mismatch err = %v", err)
	}
}

func TestMoveDigestDependsOnEveryField(t *testing.T) {
	base := transcript.Entry{GameTick: 4, BallX: 10}
	d1 := MoveDigest(base, Move{})
	base.RightPaddleWon = true
	d2 := MoveDigest(base, Move{})
	if string(d1) == string(d2) {
		t.Fatalf("digest ignores outcome flags")
	}
	if len(d1) != 32 {
		t.Fatalf("digest length = %d", len(d1))
	}
	neg := MoveDigest(transcript.Entry{}, Move{LeftPaddleDY: -6})
	pos := MoveDigest(transcript.Entry{}, Move{LeftPaddleDY: 6})
	if string(neg) == string(pos) {
		t.Fatalf("digest must distinguish the velocity sign")
	}
}
