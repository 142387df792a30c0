package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ZKPong/internal/auth"
	"ZKPong/internal/observability/metrics"
	"ZKPong/internal/proofinput"
	"ZKPong/internal/session"
)

// SessionService 是 API 依赖的会话操作。
type SessionService interface {
	Simulate(ctx context.Context, req session.SimulateRequest) (*session.Session, error)
	SubmitTranscript(ctx context.Context, req session.SubmitRequest) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	BuildInput(ctx context.Context, id string) (*proofinput.ProofInput, error)
	List(ctx context.Context, opts ...session.ListOption) ([]*session.Session, error)
	Stats(ctx context.Context, opts ...session.ListOption) (session.Stats, error)
}

// Server 负责暴露 REST 接口。
type Server struct {
	addr            string
	sessions        SessionService
	auth            *auth.Service
	shutdownTimeout time.Duration
	maxBodyBytes    int64
}

// Option 定义可选配置。
type Option func(*Server)

// WithAuth 为 /api/v1 下的路由启用令牌认证。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) { s.auth = svc }
}

// WithShutdownTimeout 设置优雅关闭的等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, sessions SessionService, opts ...Option) *Server {
	s := &Server{
		addr:            addr,
		sessions:        sessions,
		shutdownTimeout: 5 * time.Second,
		maxBodyBytes:    8 << 20,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由树。
func (s *Server) Handler() http.Handler {
	protect := s.auth.Middleware(auth.DefaultMiddlewareConfig())
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}
	route("POST /api/v1/sessions", s.handleSimulate)
	route("GET /api/v1/sessions", s.handleListSessions)
	route("GET /api/v1/sessions/{id}", s.handleGetSession)
	route("GET /api/v1/sessions/{id}/input", s.handleProofInput)
	route("GET /api/v1/sessions/{id}/report", s.handleReport)
	route("POST /api/v1/transcripts", s.handleSubmitTranscript)
	route("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	return instrument(mux)
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument 以路由模式为标签记录请求数与耗时。
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.ObserveHTTPRequest(pattern, r.Method, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "服务已关闭")
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
