// Package bootstrap 把配置转换为守护进程与命令行共用的组件。
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"ZKPong/internal/auth"
	"ZKPong/internal/config"
	"ZKPong/internal/identity"
	"ZKPong/internal/observability/alerting"
	"ZKPong/internal/pong"
	"ZKPong/internal/proofinput"
	"ZKPong/internal/prover"
	"ZKPong/internal/prover/groth16"
	"ZKPong/internal/prover/remote"
	"ZKPong/internal/web3"
	"ZKPong/internal/web3/ethereum"
	"ZKPong/pkg/logger"
)

// InitLogger 按配置初始化全局日志。
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	})
}

// Tuning 返回配置回合预算下的场地参数。
func Tuning(cfg *config.Config) pong.Tuning {
	return pong.DefaultTuning().WithMaxTicks(cfg.Game.MaxTicks)
}

// InputBuilder 按身份配置创建证明输入构造器。
func InputBuilder(cfg *config.Config) (*proofinput.Builder, error) {
	secret := identity.DefaultSecret
	if cfg.Identity.Secret != "" {
		parsed, err := identity.ParseSecret(cfg.Identity.Secret)
		if err != nil {
			return nil, err
		}
		secret = parsed
	}
	return proofinput.NewBuilder(nil,
		proofinput.WithSecret(secret),
		proofinput.WithSignedMoves(cfg.Identity.SignedMoves),
	), nil
}

// ProverBackend 根据 prover.backend 选择本地 Groth16 或远程证明服务，并施加输入长度上限。
func ProverBackend(cfg *config.Config) (prover.Prover, prover.Verifier, error) {
	var backend prover.Backend
	switch cfg.Prover.Backend {
	case "", "groth16":
		backend = Groth16(cfg, Tuning(cfg))
	case "remote":
		client, err := remote.New(cfg.Prover.RemoteURL, cfg.ProverTimeout())
		if err != nil {
			return nil, nil, err
		}
		backend = client
	default:
		return nil, nil, fmt.Errorf("未知的证明后端: %s", cfg.Prover.Backend)
	}
	return prover.Limited{Prover: backend, MaxEntries: cfg.Prover.MaxEntries}, backend, nil
}

// Groth16 创建本地 Groth16 后端，密钥保存在 prover.keys_dir。
func Groth16(cfg *config.Config, t pong.Tuning) *groth16.Backend {
	return groth16.New(t, groth16.WithKeysDir(cfg.Prover.KeysDir))
}

// AuthService 创建 API 认证服务。
func AuthService(cfg *config.Config) (*auth.Service, error) {
	return auth.NewService(auth.Config{
		Mode:   auth.Mode(cfg.Auth.Mode),
		Secret: cfg.Auth.Secret,
		Issuer: cfg.Auth.Issuer,
		TTL:    time.Duration(cfg.Auth.TTLMinutes) * time.Minute,
	})
}

// Alerts 返回日志告警，配置了 webhook 时同时推送到 webhook。
func Alerts(cfg *config.Config) *alerting.FanoutDispatcher {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if cfg.Runtime.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: cfg.Runtime.WebhookURL})
	}
	return alerting.NewFanout(notifiers...)
}

// Anchor 在配置了 RPC 地址时连接以太坊节点，否则返回 nil。
func Anchor(ctx context.Context, cfg *config.Config) (web3.Client, error) {
	if cfg.Web3.RPCURL == "" {
		return nil, nil
	}
	client, err := ethereum.NewClient(ctx, ethereum.Config{
		Name:    "anchor",
		RPCURL:  cfg.Web3.RPCURL,
		Timeout: time.Duration(cfg.Web3.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
