package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/proofinput"
	"ZKPong/internal/prover"
	"ZKPong/internal/transcript"
)

func TestRemoteProveAndVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		switch r.URL.Path {
		case "/api/prove":
			var in proofinput.ProofInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				t.Fatalf("decode input: %v", err)
			}
			if len(in.GameLog) != 2 || in.GameMoves == nil {
				t.Fatalf("unexpected input: %+v", in)
			}
			_ = json.NewEncoder(w).Encode(prover.Proof{Backend: "noir", Proof: []byte{1, 2, 3}})
		case "/api/verify":
			var p prover.Proof
			_ = json.NewDecoder(r.Body).Decode(&p)
			_ = json.NewEncoder(w).Encode(map[string]bool{"verified": len(p.Proof) == 3})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := New(srv.URL+"/api", time.Second)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	input := &proofinput.ProofInput{
		GameLog:    []transcript.Entry{{GameTick: 0}, {GameTick: 1}},
		GameMoves:  []proofinput.GameMove{},
		Signatures: []proofinput.Signature{},
	}
	proof, err := prover.ProveAndVerify(context.Background(), client, client, input)
	if err != nil {
		t.Fatalf("prove and verify: %v", err)
	}
	if proof.Backend != "noir" {
		t.Fatalf("backend = %s", proof.Backend)
	}
}

func TestRemoteErrorsMapToProofCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"UNSAT","message":"constraint 7 failed"}}`))
	}))
	defer srv.Close()

	client, _ := New(srv.URL, time.Second)
	_, err := client.GenerateProof(context.Background(), &proofinput.ProofInput{})
	if xerrors.CodeOf(err) != xerrors.CodeProverFailure {
		t.Fatalf("err = %v", err)
	}

	_, err = prover.ProveAndVerify(context.Background(), staticProver{}, client, &proofinput.ProofInput{})
	if xerrors.CodeOf(err) != xerrors.CodeVerificationFailure {
		t.Fatalf("verify err = %v", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not a url", 0); err == nil {
		t.Fatalf("expected error")
	}
}

type staticProver struct{}

func (staticProver) GenerateProof(context.Context, *proofinput.ProofInput) (*prover.Proof, error) {
	return &prover.Proof{Backend: "static"}, nil
}
