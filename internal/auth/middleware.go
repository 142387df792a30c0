package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	loggerpkg "ZKPong/pkg/logger"
)

// MiddlewareConfig 配置认证中间件。
type MiddlewareConfig struct {
	// RequiredScopes 按 HTTP 方法列出所需权限，"*" 为兜底。
	RequiredScopes map[string][]string
	// AuditEvent 指定审计日志的事件名，默认使用请求路径。
	AuditEvent string
}

// DefaultMiddlewareConfig 要求读请求具备 sessions:read，写请求具备 sessions:write。
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{RequiredScopes: map[string][]string{
		http.MethodGet:  {ScopeSessionsRead},
		http.MethodPost: {ScopeSessionsWrite},
		"*":             {ScopeSessionsWrite},
	}}
}

// Middleware 返回执行认证与授权的 HTTP 中间件。disabled 模式下直接放行。
func (s *Service) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s == nil || s.mode == ModeDisabled {
				next.ServeHTTP(w, r)
				return
			}
			logger := s.audit
			if logger == nil {
				logger = loggerpkg.Audit()
			}

			subject, err := s.AuthenticateRequest(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeDenied(w, http.StatusUnauthorized, "UNAUTHORIZED", err)
				logger.Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", http.StatusUnauthorized,
					"error", err.Error(),
				)
				return
			}

			scopes := cfg.RequiredScopes[r.Method]
			if len(scopes) == 0 {
				scopes = cfg.RequiredScopes["*"]
			}
			if err := subject.Authorize(scopes...); err != nil {
				writeDenied(w, http.StatusForbidden, "FORBIDDEN", err)
				logger.Warn("permission_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", http.StatusForbidden,
					"error", err.Error(),
					"subject", subject.Name,
				)
				return
			}

			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(aw, r.WithContext(WithSubject(r.Context(), subject)))
			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			logger.Info("api_request",
				"event", event,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"subject", subject.Name,
			)
		})
	}
}

func writeDenied(w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrMissingToken) {
		message = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="zkpong"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// auditWriter 记录下游写出的状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
