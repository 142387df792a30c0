package session

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/pong"
	"ZKPong/internal/proofinput"
	"ZKPong/internal/transcript"
	"ZKPong/pkg/logger"
)

// SimulateRequest 描述一局由服务端无头运行的对局。
type SimulateRequest struct {
	ID       string               `json:"id,omitempty"`
	MaxTicks int                  `json:"max_ticks,omitempty"`
	Script   []pong.ScriptedInput `json:"script,omitempty"`
}

// SubmitRequest 描述一份在别处录制好的转录。
type SubmitRequest struct {
	ID         string             `json:"id,omitempty"`
	Transcript []transcript.Entry `json:"transcript"`
}

// InputBuilder 把转录组装为证明输入。
type InputBuilder interface {
	Build(ctx context.Context, log transcript.Log) (*proofinput.ProofInput, error)
}

// Service 负责会话的创建与查询。
type Service struct {
	store    Store
	producer Producer
	builder  InputBuilder
	tuning   pong.Tuning
	limit    int
}

// ServiceOption 定义可选配置。
type ServiceOption func(*Service)

// WithTuning 指定模拟使用的场地参数。
func WithTuning(t pong.Tuning) ServiceOption {
	return func(s *Service) { s.tuning = t }
}

// WithMaxTicksLimit 限制单局允许的最大 tick 数。
func WithMaxTicksLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithInputBuilder 指定 BuildInput 使用的证明输入构造器。
func WithInputBuilder(b InputBuilder) ServiceOption {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// NewService 构造会话服务。
func NewService(store Store, producer Producer, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		producer: producer,
		builder:  proofinput.NewBuilder(nil),
		tuning:   pong.DefaultTuning(),
		limit:    1024,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Simulate 无头运行一局对局，保存转录并投递到证明队列。
func (s *Service) Simulate(ctx context.Context, req SimulateRequest) (*Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	maxTicks := req.MaxTicks
	if maxTicks == 0 {
		maxTicks = s.tuning.MaxTicks
	}
	if maxTicks <= 0 || maxTicks > s.limit {
		return nil, xerrors.New(CodeSessionValidation,
			fmt.Sprintf("max_ticks 必须在 1 到 %d 之间", s.limit),
			xerrors.WithMetadata("max_ticks", fmt.Sprint(maxTicks)))
	}
	if err := pong.ValidateScript(req.Script, maxTicks); err != nil {
		return nil, xerrors.Wrap(CodeSessionValidation, err, "输入脚本无效")
	}
	if existing, err := s.lookup(ctx, req.ID); existing != nil || err != nil {
		return existing, err
	}

	tuning := s.tuning.WithMaxTicks(maxTicks)
	recorder := transcript.NewRecorder(maxTicks + 1)
	final, err := pong.NewGame(tuning, recorder, pong.WithScript(req.Script)).Run(ctx, pong.ImmediateScheduler{})
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:         req.ID,
		Status:     StatusPending,
		Source:     SourceSimulated,
		MaxTicks:   maxTicks,
		Script:     append([]pong.ScriptedInput(nil), req.Script...),
		Transcript: recorder.Freeze().Entries(),
		Outcome:    pong.OutcomeOf(final, maxTicks),
	}
	return s.enqueue(ctx, session)
}

// SubmitTranscript 校验外部录制的转录并投递到证明队列。
func (s *Service) SubmitTranscript(ctx context.Context, req SubmitRequest) (*Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(req.Transcript) > s.limit+1 {
		return nil, xerrors.New(CodeSessionValidation,
			fmt.Sprintf("转录最多包含 %d 条记录", s.limit+1),
			xerrors.WithMetadata("entries", fmt.Sprint(len(req.Transcript))))
	}
	if err := transcript.Validate(req.Transcript); err != nil {
		return nil, err
	}
	if existing, err := s.lookup(ctx, req.ID); existing != nil || err != nil {
		return existing, err
	}

	final := req.Transcript[len(req.Transcript)-1]
	session := &Session{
		ID:         req.ID,
		Status:     StatusPending,
		Source:     SourceSubmitted,
		MaxTicks:   final.GameTick,
		Transcript: append([]transcript.Entry(nil), req.Transcript...),
		Outcome:    outcomeOf(final),
	}
	return s.enqueue(ctx, session)
}

// outcomeOf 按最终比分判定胜负，Validate 已保证胜利标志与比分一致。
func outcomeOf(final transcript.Entry) pong.Outcome {
	switch {
	case final.LeftPaddleScore > final.RightPaddleScore:
		return pong.OutcomeLeft
	case final.RightPaddleScore > final.LeftPaddleScore:
		return pong.OutcomeRight
	}
	return pong.OutcomeTie
}

func (s *Service) ready() error {
	if s.store == nil || s.producer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "会话服务未初始化")
	}
	return nil
}

// lookup 实现按客户端 ID 的幂等：已存在时直接返回已有会话。
func (s *Service) lookup(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	existing, err := s.store.Get(ctx, id)
	if err == nil {
		return existing, nil
	}
	if stdErrors.Is(err, ErrSessionNotFound) {
		return nil, nil
	}
	return nil, err
}

func (s *Service) enqueue(ctx context.Context, session *Session) (*Session, error) {
	session.ID = strings.TrimSpace(session.ID)
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if err := s.store.Create(ctx, session); err != nil {
		if stdErrors.Is(err, ErrSessionConflict) {
			existing, getErr := s.store.Get(ctx, session.ID)
			if getErr == nil {
				return existing, nil
			}
			if !stdErrors.Is(getErr, ErrSessionNotFound) {
				return nil, getErr
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, session.ID); err != nil {
		logger.L().Error("会话入队失败", slog.Any("error", err), slog.String("session_id", session.ID))
		wrapped := xerrors.Wrap(CodeSessionPublish, err, "发布会话到队列失败")
		_ = s.store.MarkFailed(ctx, session.ID, CodeSessionPublish, wrapped.Error())
		return nil, wrapped
	}
	logger.Audit().Info("会话入队成功",
		slog.String("session_id", session.ID),
		slog.String("source", string(session.Source)),
		slog.Int("entries", len(session.Transcript)),
		slog.String("outcome", string(session.Outcome)),
	)
	return session, nil
}

// Get 返回指定会话的状态。
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "会话存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// BuildInput 返回会话转录对应的证明输入，与处理器交给证明器的内容一致。
func (s *Service) BuildInput(ctx context.Context, id string) (*proofinput.ProofInput, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.builder.Build(ctx, session.Log())
}

// List 返回符合过滤条件的会话列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Session, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "会话存储未初始化")
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 返回符合过滤条件的会话统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (Stats, error) {
	if s.store == nil {
		return Stats{}, xerrors.New(xerrors.CodeInitializationFailure, "会话存储未初始化")
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// Close 释放资源。
func (s *Service) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return err
		}
	}
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// WaitUntilCompleted 轮询会话状态直到终态或 ctx 结束。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Session, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		session, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if session.Finished() {
			return session, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
