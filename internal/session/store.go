package session

import (
	"context"

	xerrors "ZKPong/internal/errors"
)

// Store 抽象了会话状态的持久化接口。
type Store interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Claim(ctx context.Context, id string) (*Session, error)
	MarkSucceeded(ctx context.Context, id string, result ProofResult) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string) error
	List(ctx context.Context, opts ListOptions) ([]*Session, error)
	Stats(ctx context.Context, opts ListOptions) (Stats, error)
	Close() error
}
