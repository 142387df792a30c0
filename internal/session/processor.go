package session

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/observability/alerting"
	"ZKPong/internal/observability/metrics"
	"ZKPong/internal/prover"
	"ZKPong/internal/web3"
	"ZKPong/pkg/logger"
)

// Processor 从队列消费会话，生成并校验证明。
type Processor struct {
	builder      InputBuilder
	prover       prover.Prover
	verifier     prover.Verifier
	store        Store
	consumer     Consumer
	workerCount  int
	proveTimeout time.Duration
	logger       *slog.Logger
	alerter      alerting.Dispatcher
	anchor       web3.Anchor
	now          func() time.Time
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithProveTimeout 限制单个会话证明与校验的总耗时。
func WithProveTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.proveTimeout = d
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// WithAnchor 为校验通过的会话记录链 ID 与区块高度。
func WithAnchor(anchor web3.Anchor) ProcessorOption {
	return func(p *Processor) {
		p.anchor = anchor
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(builder InputBuilder, p prover.Prover, v prover.Verifier, store Store, consumer Consumer, opts ...ProcessorOption) *Processor {
	proc := &Processor{
		builder:     builder,
		prover:      p,
		verifier:    v,
		store:       store,
		consumer:    consumer,
		workerCount: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(proc)
		}
	}
	if proc.workerCount <= 0 {
		proc.workerCount = 1
	}
	if proc.logger == nil {
		proc.logger = logger.Named("processor")
	}
	return proc
}

// Start 启动会话处理循环，阻塞直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置会话消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, sessionID string) error {
	if p.store == nil || p.builder == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	session, err := p.store.Claim(ctx, sessionID)
	if err != nil {
		if stdErrors.Is(err, ErrSessionNotFound) || stdErrors.Is(err, ErrSessionCompleted) || stdErrors.Is(err, ErrSessionConflict) {
			p.logger.Debug("跳过会话", slog.String("session_id", sessionID), slog.String("reason", err.Error()))
			return nil
		}
		logger.L().Error("领取会话失败", slog.Any("error", err), slog.String("session_id", sessionID))
		p.emitAlert(ctx, &Session{ID: sessionID}, CodeSessionProcessing, err, "claim")
		return err
	}

	input, err := p.builder.Build(ctx, session.Log())
	if err != nil {
		return p.fail(ctx, session, err, "build")
	}

	proveCtx := ctx
	if p.proveTimeout > 0 {
		var cancel context.CancelFunc
		proveCtx, cancel = context.WithTimeout(ctx, p.proveTimeout)
		defer cancel()
	}
	start := p.now()
	proof, err := prover.ProveAndVerify(proveCtx, p.prover, p.verifier, input)
	elapsed := p.now().Sub(start)
	if err != nil {
		if proveCtx.Err() != nil && !xerrors.HasCode(err, xerrors.CodeTimeout) {
			err = xerrors.Wrap(xerrors.CodeTimeout, err, "证明超时")
		}
		result := metrics.ResultFailed
		if xerrors.HasCode(err, xerrors.CodeVerificationFailure) {
			result = metrics.ResultRejected
		}
		metrics.ObserveProof(result, elapsed)
		return p.fail(ctx, session, err, "prove")
	}
	metrics.ObserveProof(metrics.ResultVerified, elapsed)

	record := ProofResult{
		Backend:      proof.Backend,
		Proof:        proof.Proof,
		PublicInputs: proof.PublicInputs,
		VerifiedAt:   p.now().Unix(),
	}
	if p.anchor != nil {
		snapshot, anchorErr := p.anchor.FetchChainSnapshot(ctx)
		if anchorErr != nil {
			logger.L().Warn("获取链上锚点失败", slog.Any("error", anchorErr), slog.String("session_id", session.ID))
		} else {
			record.ChainID = snapshot.ChainID
			record.BlockNumber = snapshot.BlockNumber
		}
	}

	if err := p.store.MarkSucceeded(context.WithoutCancel(ctx), session.ID, record); err != nil {
		logger.L().Error("标记会话成功状态失败", slog.Any("error", err), slog.String("session_id", session.ID))
		p.emitAlert(ctx, session, CodeSessionProcessing, err, "store")
		return err
	}
	logger.Audit().Info("会话证明成功",
		slog.String("session_id", session.ID),
		slog.String("backend", record.Backend),
		slog.String("outcome", string(session.Outcome)),
		slog.Int("entries", len(session.Transcript)),
		slog.Duration("duration", elapsed),
		slog.String("chain_id", record.ChainID),
		slog.String("block_number", record.BlockNumber),
	)
	return nil
}

// fail 记录终态失败。返回 nil 表示消息已处理完毕，无需重投。
func (p *Processor) fail(ctx context.Context, session *Session, cause error, stage string) error {
	code := xerrors.CodeOf(cause)
	if code == xerrors.CodeUnknown {
		code = CodeSessionProcessing
	}
	if err := p.store.MarkFailed(context.WithoutCancel(ctx), session.ID, code, cause.Error()); err != nil {
		logger.L().Error("标记会话失败状态出错", slog.Any("error", err), slog.String("session_id", session.ID))
		return err
	}
	logger.Audit().Warn("会话证明失败",
		slog.String("session_id", session.ID),
		slog.String("stage", stage),
		slog.String("error", cause.Error()),
		slog.String("error_code", string(code)),
		slog.Int("attempts", session.Attempts),
	)
	if xerrors.AttributesOf(code).Alert {
		p.emitAlert(ctx, session, code, cause, stage)
	}
	return nil
}

func (p *Processor) emitAlert(ctx context.Context, session *Session, code xerrors.Code, cause error, stage string) {
	if p == nil || p.alerter == nil || session == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	message := attrs.Message
	metadata := map[string]string{"stage": stage}
	if cause != nil {
		message = cause.Error()
		metadata["cause"] = cause.Error()
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   attrs.Severity,
		SessionID:  session.ID,
		Attempts:   session.Attempts,
		Metadata:   metadata,
		OccurredAt: p.now(),
	}
	if err := p.alerter.Notify(context.WithoutCancel(ctx), event); err != nil {
		logger.L().Error("告警通知失败",
			slog.Any("error", err),
			slog.String("session_id", session.ID),
			slog.String("stage", stage),
		)
	}
}
