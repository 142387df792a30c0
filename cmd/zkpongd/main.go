package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ZKPong/internal/api"
	"ZKPong/internal/bootstrap"
	"ZKPong/internal/config"
	"ZKPong/internal/session"
	"ZKPong/internal/storage/mysql"
	"ZKPong/pkg/logger"
)

// main 是 zkpong 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("zkpongd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("ZKPONG_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "zkpong.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := bootstrap.InitLogger(cfg); err != nil {
		return err
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	builder, err := bootstrap.InputBuilder(cfg)
	if err != nil {
		return err
	}
	proofProver, proofVerifier, err := bootstrap.ProverBackend(cfg)
	if err != nil {
		return err
	}
	authService, err := bootstrap.AuthService(cfg)
	if err != nil {
		return err
	}

	processorOpts := []session.ProcessorOption{
		session.WithWorkerCount(cfg.Queue.Workers),
		session.WithProveTimeout(cfg.ProverTimeout()),
		session.WithAlertDispatcher(bootstrap.Alerts(cfg)),
	}
	anchor, err := bootstrap.Anchor(ctx, cfg)
	if err != nil {
		return err
	}
	if anchor != nil {
		defer anchor.Close()
		processorOpts = append(processorOpts, session.WithAnchor(anchor))
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	queue, err := openQueue(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return err
	}
	service := session.NewService(store, queue,
		session.WithTuning(bootstrap.Tuning(cfg)),
		session.WithMaxTicksLimit(cfg.Game.MaxTicksLimit),
		session.WithInputBuilder(builder),
	)
	defer func() {
		if err := service.Close(); err != nil {
			logger.L().Error("关闭会话服务失败", slog.Any("error", err))
		}
	}()

	processor := session.NewProcessor(builder, proofProver, proofVerifier, store, queue, processorOpts...)
	processorCtx, processorCancel := context.WithCancel(ctx)
	processorDone := make(chan struct{})
	defer func() {
		processorCancel()
		<-processorDone
	}()

	go func() {
		defer close(processorDone)
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("会话处理器异常退出", slog.Any("error", err))
		}
	}()

	logger.L().Info("zkpongd 已启动",
		slog.String("address", cfg.Server.Address),
		slog.String("store", cfg.Storage.SessionStore.Driver),
		slog.String("queue", cfg.Queue.Driver),
		slog.String("prover", cfg.Prover.Backend),
		slog.String("auth", cfg.Auth.Mode),
	)
	server := api.NewServer(cfg.Server.Address, service,
		api.WithAuth(authService),
		api.WithShutdownTimeout(cfg.ShutdownTimeout()),
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	storeCfg := cfg.Storage.SessionStore
	switch storeCfg.Driver {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "mysql":
		db, err := mysql.Open(ctx, mysql.Config{
			DSN:             storeCfg.DSN,
			MaxOpenConns:    storeCfg.MaxOpenConns,
			MaxIdleConns:    storeCfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(storeCfg.ConnMaxLifetime) * time.Second,
			AutoMigrate:     storeCfg.AutoMigrate,
		})
		if err != nil {
			return nil, err
		}
		return session.NewMySQLStore(db), nil
	default:
		return nil, fmt.Errorf("未知的会话存储驱动: %s", storeCfg.Driver)
	}
}

func openQueue(ctx context.Context, cfg *config.Config) (session.Queue, error) {
	switch cfg.Queue.Driver {
	case "", "memory":
		return session.NewMemoryQueue(cfg.Queue.Buffer), nil
	case "redis":
		queue, err := session.NewRedisQueue(ctx, session.RedisQueueConfig{
			Address:  cfg.Queue.Redis.Address,
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
			Queue:    cfg.Queue.Redis.Key,
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	case "rabbitmq":
		queue, err := session.NewRabbitMQQueue(session.RabbitMQConfig{
			URL:      cfg.Queue.RabbitMQ.URL,
			Queue:    cfg.Queue.RabbitMQ.Queue,
			Prefetch: cfg.Queue.RabbitMQ.Prefetch,
			Durable:  true,
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Queue.Driver)
	}
}
