package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// 认证子系统返回的通用错误。
var (
	ErrDisabled         = errors.New("authentication disabled")
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingToken     = errors.New("missing bearer token")
	ErrPermissionDenied = errors.New("permission denied")
)

// Mode 枚举支持的认证方式。
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeJWT      Mode = "jwt"
)

// API 使用的权限范围。
const (
	ScopeSessionsRead  = "sessions:read"
	ScopeSessionsWrite = "sessions:write"
)

// DefaultScopes 是未指定范围时签发的权限。
var DefaultScopes = []string{ScopeSessionsRead, ScopeSessionsWrite}

// Config 配置认证服务。
type Config struct {
	Mode   Mode
	Secret string
	Issuer string
	TTL    time.Duration
}

// Claims 是签入令牌的声明。
type Claims struct {
	Scopes []string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Subject 是通过认证的调用方。
type Subject struct {
	Name      string
	Scopes    []string
	ExpiresAt time.Time
}

// HasScope 判断主体是否拥有指定权限。
func (s *Subject) HasScope(scope string) bool {
	if s == nil {
		return false
	}
	want := strings.ToLower(strings.TrimSpace(scope))
	for _, granted := range s.Scopes {
		if strings.ToLower(strings.TrimSpace(granted)) == want {
			return true
		}
	}
	return false
}

// Authorize 确认主体拥有全部所需权限。
func (s *Subject) Authorize(scopes ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	for _, scope := range scopes {
		if scope == "" {
			continue
		}
		if !s.HasScope(scope) {
			return fmt.Errorf("%w: missing %s", ErrPermissionDenied, scope)
		}
	}
	return nil
}
