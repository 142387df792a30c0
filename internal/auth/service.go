package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"ZKPong/pkg/logger"
)

// Service 负责签发与校验 API 访问令牌。
type Service struct {
	mode   Mode
	secret []byte
	issuer string
	ttl    time.Duration
	audit  *slog.Logger
	now    func() time.Time
}

// NewService 构造认证服务。jwt 模式要求配置密钥。
func NewService(cfg Config) (*Service, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if mode == "" {
		mode = ModeDisabled
	}
	svc := &Service{
		mode:   mode,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		audit:  logger.Audit(),
		now:    time.Now,
	}
	switch mode {
	case ModeDisabled:
		return svc, nil
	case ModeJWT:
		if strings.TrimSpace(cfg.Secret) == "" {
			return nil, errors.New("jwt secret must be configured")
		}
		svc.secret = []byte(cfg.Secret)
		if svc.ttl <= 0 {
			svc.ttl = time.Hour
		}
		if svc.issuer == "" {
			svc.issuer = "zkpong"
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

// Mode 返回当前认证方式。
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// IssueToken 为 subject 签发 HS256 令牌，scopes 为空时使用 DefaultScopes。
func (s *Service) IssueToken(subject string, scopes ...string) (string, time.Time, error) {
	if s == nil || s.mode != ModeJWT {
		return "", time.Time{}, ErrDisabled
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("token subject must not be empty")
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	issued := s.now()
	expires := issued.Add(s.ttl)
	claims := Claims{
		Scopes: append([]string(nil), scopes...),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// AuthenticateRequest 校验 Authorization 头中的 Bearer 令牌。
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	if s == nil || s.mode == ModeDisabled {
		return nil, ErrDisabled
	}
	parts := strings.SplitN(strings.TrimSpace(authorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, ErrMissingToken
	}
	raw := strings.TrimSpace(parts[1])
	if raw == "" {
		return nil, ErrMissingToken
	}
	return s.verify(raw)
}

func (s *Service) verify(raw string) (*Subject, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	subject := &Subject{
		Name:   claims.Subject,
		Scopes: append([]string(nil), claims.Scopes...),
	}
	if claims.ExpiresAt != nil {
		subject.ExpiresAt = claims.ExpiresAt.Time
	}
	return subject, nil
}
