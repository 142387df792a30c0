package session

import (
	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/pong"
	"ZKPong/internal/prover"
	"ZKPong/internal/transcript"
)

// Status 表示会话在证明流水线中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Source 标识转录的来源。
type Source string

const (
	SourceSimulated Source = "simulated"
	SourceSubmitted Source = "submitted"
)

// ProofResult 保存一次成功校验的证明及其链上锚点。
type ProofResult struct {
	Backend      string   `json:"backend"`
	Proof        []byte   `json:"proof"`
	PublicInputs []string `json:"public_inputs"`
	ChainID      string   `json:"chain_id,omitempty"`
	BlockNumber  string   `json:"block_number,omitempty"`
	VerifiedAt   int64    `json:"verified_at"`
}

// ProverProof 还原为证明后端使用的结构。
func (r ProofResult) ProverProof() prover.Proof {
	return prover.Proof{Backend: r.Backend, Proof: r.Proof, PublicInputs: r.PublicInputs}
}

// Session 是一局对局从转录到证明的完整记录。
type Session struct {
	ID         string               `json:"id"`
	Status     Status               `json:"status"`
	Source     Source               `json:"source"`
	MaxTicks   int                  `json:"max_ticks"`
	Script     []pong.ScriptedInput `json:"script,omitempty"`
	Transcript []transcript.Entry   `json:"transcript"`
	Outcome    pong.Outcome         `json:"outcome"`
	Result     *ProofResult         `json:"result,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
	ErrorCode  string               `json:"error_code,omitempty"`
	Attempts   int                  `json:"attempts"`
	CreatedAt  int64                `json:"created_at"`
	UpdatedAt  int64                `json:"updated_at"`
}

// Log 返回会话转录的只读视图。
func (s *Session) Log() transcript.Log {
	return transcript.NewLog(s.Transcript)
}

// Finished 判断会话是否已经到达终态。
func (s *Session) Finished() bool {
	return s.Status == StatusSucceeded || s.Status == StatusFailed
}

var (
	// ErrSessionNotFound 表示指定的会话不存在。
	ErrSessionNotFound = xerrors.New(CodeSessionNotFound, "session not found")
	// ErrSessionConflict 表示会话在当前状态下无法进行所请求的操作。
	ErrSessionConflict = xerrors.New(CodeSessionConflict, "session conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrSessionCompleted 表示会话已经结束，不会再次证明。
	ErrSessionCompleted = xerrors.New(CodeSessionCompleted, "session already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
)

const (
	CodeSessionNotFound   xerrors.Code = "SESSION_NOT_FOUND"
	CodeSessionConflict   xerrors.Code = "SESSION_CONFLICT"
	CodeSessionCompleted  xerrors.Code = "SESSION_COMPLETED"
	CodeSessionValidation xerrors.Code = "SESSION_VALIDATION_FAILED"
	CodeSessionPublish    xerrors.Code = "SESSION_PUBLISH_FAILED"
	CodeSessionProcessing xerrors.Code = "SESSION_PROCESSING_FAILED"
)

func init() {
	xerrors.Register(CodeSessionNotFound, xerrors.Attributes{
		Message:  "session not found",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeSessionConflict, xerrors.Attributes{
		Message:  "session conflict",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeSessionCompleted, xerrors.Attributes{
		Message:  "session already completed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeSessionValidation, xerrors.Attributes{
		Message:  "session validation failed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeSessionPublish, xerrors.Attributes{
		Message:  "failed to publish session",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
	xerrors.Register(CodeSessionProcessing, xerrors.Attributes{
		Message:  "session processing failed",
		Severity: xerrors.SeverityWarning,
		Alert:    true,
	})
}

// IsValidStatus 检查给定的会话状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneSession(s *Session) *Session {
	clone := *s
	if s.Script != nil {
		clone.Script = append([]pong.ScriptedInput(nil), s.Script...)
	}
	if s.Transcript != nil {
		clone.Transcript = append([]transcript.Entry(nil), s.Transcript...)
	}
	if s.Result != nil {
		result := *s.Result
		result.Proof = append([]byte(nil), s.Result.Proof...)
		result.PublicInputs = append([]string(nil), s.Result.PublicInputs...)
		clone.Result = &result
	}
	return &clone
}
