package bootstrap

import (
	"context"
	"testing"

	"ZKPong/internal/auth"
	"ZKPong/internal/config"
	"ZKPong/internal/prover"
	"ZKPong/internal/prover/groth16"
	"ZKPong/internal/transcript"
)

func TestDefaultsWireLocalComponents(t *testing.T) {
	cfg := config.Default(t.TempDir())

	if got := Tuning(cfg).MaxTicks; got != 10 {
		t.Fatalf("max ticks = %d", got)
	}
	p, v, err := ProverBackend(cfg)
	if err != nil {
		t.Fatalf("prover backend: %v", err)
	}
	limited, ok := p.(prover.Limited)
	if !ok || limited.MaxEntries != cfg.Prover.MaxEntries {
		t.Fatalf("prover not limited: %#v", p)
	}
	backend, ok := v.(*groth16.Backend)
	if !ok {
		t.Fatalf("verifier = %T", v)
	}
	if backend.KeysDir() == "" || backend.KeysDir() != Groth16(cfg, Tuning(cfg)).KeysDir() {
		t.Fatalf("daemon and cli resolve different keys dirs: %q", backend.KeysDir())
	}

	svc, err := AuthService(cfg)
	if err != nil || svc.Mode() != auth.ModeDisabled {
		t.Fatalf("auth = %v, %v", svc.Mode(), err)
	}
	anchor, err := Anchor(context.Background(), cfg)
	if err != nil || anchor != nil {
		t.Fatalf("anchor without rpc url = %v, %v", anchor, err)
	}
	if Alerts(cfg) == nil {
		t.Fatalf("nil dispatcher")
	}
}

func TestInputBuilderUsesConfiguredSecret(t *testing.T) {
	cfg := config.Default(t.TempDir())
	base, err := InputBuilder(cfg)
	if err != nil {
		t.Fatalf("default builder: %v", err)
	}
	cfg.Identity.Secret = "0x0101010101010101010101010101010101010101010101010101010101010101"
	custom, err := InputBuilder(cfg)
	if err != nil {
		t.Fatalf("custom builder: %v", err)
	}

	log := transcript.NewLog([]transcript.Entry{{GameTick: 0}})
	a, err := base.Build(context.Background(), log)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, err := custom.Build(context.Background(), log)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if a.User1 == b.User1 {
		t.Fatalf("custom secret did not change the public key")
	}

	cfg.Identity.Secret = "not-hex"
	if _, err := InputBuilder(cfg); err == nil {
		t.Fatalf("expected error for invalid secret")
	}
}

func TestUnknownBackendsAreRejected(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Prover.Backend = "stark"
	if _, _, err := ProverBackend(cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	cfg.Prover.Backend = "remote"
	cfg.Prover.RemoteURL = ""
	if _, _, err := ProverBackend(cfg); err == nil {
		t.Fatalf("expected error for remote backend without url")
	}
	cfg.Auth.Mode = "jwt"
	if _, err := AuthService(cfg); err == nil {
		t.Fatalf("expected error for jwt without secret")
	}
}
